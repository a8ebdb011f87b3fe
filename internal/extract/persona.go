package extract

import (
	"regexp"
	"strings"

	"missionctl/internal/model"
)

var (
	headingRe = regexp.MustCompile(`^#{2,3}\s+(.+?)\s*$`)
	bulletRe  = regexp.MustCompile(`^\s*[-*]\s+(.+?)\s*$`)
	scalarRe  = regexp.MustCompile(`^\s*\*\*([A-Za-z ]+):\*\*\s*(.+?)\s*$`)
)

// Persona parses one agent's SOUL.md. Bullets accumulate under the most
// recently seen heading (matched case-insensitively), "**Key:** value" lines
// fill the scalar fields, and the personality bullets collapse into one
// semicolon-joined summary. Returns nil only for input with no recognizable
// content at all.
func Persona(text string) *model.Persona {
	var (
		p           model.Persona
		section     string
		personality []string
		matched     bool
	)

	for _, line := range strings.Split(text, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			section = strings.ToLower(strings.TrimSpace(m[1]))
			continue
		}

		if m := scalarRe.FindStringSubmatch(line); m != nil {
			val := strings.TrimSpace(m[2])
			switch strings.ToLower(strings.TrimSpace(m[1])) {
			case "model":
				p.Model, matched = val, true
			case "base", "base model":
				p.Base, matched = val, true
			case "purpose":
				p.Purpose, matched = val, true
			}
			continue
		}

		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := PlainText(m[1])
		if item == "" {
			continue
		}
		switch {
		case strings.Contains(section, "specialt"):
			p.Specialties = append(p.Specialties, item)
			matched = true
		case strings.Contains(section, "when to use"):
			p.WhenToUse = append(p.WhenToUse, item)
			matched = true
		case strings.Contains(section, "core truth"):
			p.CoreTruths = append(p.CoreTruths, item)
			matched = true
		case strings.Contains(section, "personality"):
			personality = append(personality, item)
			matched = true
		}
	}

	if len(personality) > 0 {
		p.Personality = strings.Join(personality, "; ")
	}
	if !matched {
		return nil
	}
	return &p
}
