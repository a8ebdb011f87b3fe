package extract

import (
	"regexp"
	"strings"

	"missionctl/internal/model"
)

var (
	projectHeadingRe = regexp.MustCompile(`^##\s+(.+?)\s*$`)
	projectScalarRe  = regexp.MustCompile(`^\s*\*\*(Status|URL|Purpose|Tech Stack):\*\*\s*(.+?)\s*$`)
)

// Projects parses the projects document. Every level-2 heading opens a new
// project; "**Status:**", "**URL:**", "**Purpose:**" and "**Tech Stack:**"
// lines inside its body fill the scalar fields, and any other non-blank,
// non-heading line is kept as a free-form detail. The returned order slice
// preserves document order for the identifiers in the map.
func Projects(text string) (map[string]model.Project, []string) {
	projects := map[string]model.Project{}
	var order []string
	var currentID string

	for _, line := range strings.Split(text, "\n") {
		if m := projectHeadingRe.FindStringSubmatch(line); m != nil {
			name := strings.TrimSpace(m[1])
			id := model.AgentID(name)
			if id == "" {
				currentID = ""
				continue
			}
			if _, seen := projects[id]; !seen {
				order = append(order, id)
			}
			projects[id] = model.Project{ID: id, Name: name, Status: "Unknown"}
			currentID = id
			continue
		}

		if currentID == "" {
			continue
		}
		p := projects[currentID]

		if m := projectScalarRe.FindStringSubmatch(line); m != nil {
			val := strings.TrimSpace(m[2])
			switch m[1] {
			case "Status":
				p.Status = val
			case "URL":
				p.URL = val
			case "Purpose":
				p.Purpose = val
			case "Tech Stack":
				for _, part := range strings.Split(val, ",") {
					if part = strings.TrimSpace(part); part != "" {
						p.TechStack = append(p.TechStack, part)
					}
				}
			}
			projects[currentID] = p
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		p.Details = append(p.Details, trimmed)
		projects[currentID] = p
	}

	return projects, order
}
