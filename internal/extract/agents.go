// Package extract converts the raw text of one hand-edited markdown document
// into typed records. The source files are prose, not a formal grammar, so
// every extractor is built on permissive patterns: a line that matches
// contributes a record, a line that doesn't is skipped. No extractor returns
// an error or panics, whatever the input.
package extract

import (
	"regexp"
	"strings"

	"missionctl/internal/model"
)

var (
	// | **Name** | Role | Model | Responsibility |
	rosterRowRe = regexp.MustCompile(`\|\s*\*\*([^*]+)\*\*\s*\|\s*([^|]+)\|\s*([^|]+)\|\s*([^|]+)\|`)
	// - **Label:** description  (or just - **Label**)
	rosterItemRe = regexp.MustCompile(`^\s*-\s*\*\*([^*]+)\*\*`)
)

// Agents parses the agent roster document. The primary layout is a markdown
// table with a bold name column; a bulleted "- **Label:** ..." line below a
// table row appends to the responsibilities of the most recent agent. If the
// same name appears twice the later row wins.
func Agents(text string) []*model.Agent {
	var (
		agents  []*model.Agent
		byID    = map[string]int{}
		current *model.Agent
	)

	for _, line := range strings.Split(text, "\n") {
		if m := rosterRowRe.FindStringSubmatch(line); m != nil {
			name := strings.TrimSpace(m[1])
			id := model.AgentID(name)
			if id == "" {
				continue
			}
			agent := &model.Agent{
				ID:               id,
				Name:             name,
				Role:             strings.TrimSpace(m[2]),
				Model:            strings.ToLower(strings.TrimSpace(m[3])),
				Responsibilities: []string{strings.TrimSpace(m[4])},
				Skills:           []string{},
			}
			if idx, ok := byID[id]; ok {
				agents[idx] = agent // last row wins
			} else {
				byID[id] = len(agents)
				agents = append(agents, agent)
			}
			current = agent
			continue
		}

		if current == nil {
			continue
		}
		if m := rosterItemRe.FindStringSubmatch(line); m != nil {
			item := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m[1]), ":"))
			if item != "" {
				current.Responsibilities = append(current.Responsibilities, item)
			}
		}
	}

	return agents
}
