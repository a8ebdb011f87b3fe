package extract

import (
	"regexp"
	"strings"

	"missionctl/internal/model"
)

// UncategorizedSection is assigned to checkbox lines that appear before any
// level-2 heading, so early entries are kept rather than dropped.
const UncategorizedSection = "Uncategorized"

var (
	taskSectionRe  = regexp.MustCompile(`^##+\s+(.+?)\s*$`)
	taskCheckboxRe = regexp.MustCompile(`^\s*-\s*\[([ xX])\]\s*(.+?)\s*$`)
	boldTitleRe    = regexp.MustCompile(`^\*\*(.+?)\*\*\s*(.*)$`)
	priorityTagRe  = regexp.MustCompile(`(?i)\s*\[(P[0-3]|HIGH|MEDIUM|LOW|URGENT)\]`)
	assigneeRe     = regexp.MustCompile(`(?:^|\s)@([A-Za-z0-9_-]+)`)
	detailSepRe    = regexp.MustCompile(`\s*[—–]\s*|\s+-\s+`)
	leadingSepRe   = regexp.MustCompile(`^[—–-]\s*`)
	lastUpdatedRe  = regexp.MustCompile(`Last updated:\s*(\d{4}-\d{2}-\d{2})`)
)

// Tasks parses the task-list document. The nearest preceding level-2 heading
// names each task's section verbatim; unknown headings are kept as-is so no
// entry is silently reclassified. A bracketed priority tag and an @assignee
// token are recognized anywhere on the line and stripped from the title.
func Tasks(text string) model.TaskList {
	list := model.TaskList{Tasks: []model.Task{}}

	if m := lastUpdatedRe.FindStringSubmatch(text); m != nil {
		list.LastUpdated = m[1]
	}

	section := UncategorizedSection
	for _, line := range strings.Split(text, "\n") {
		if m := taskSectionRe.FindStringSubmatch(line); m != nil {
			section = strings.TrimSpace(m[1])
			continue
		}

		m := taskCheckboxRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		task := model.Task{
			Completed: strings.EqualFold(m[1], "x"),
			Section:   section,
		}

		rest := m[2]
		if pm := priorityTagRe.FindStringSubmatch(rest); pm != nil {
			task.Priority = strings.ToUpper(pm[1])
			rest = priorityTagRe.ReplaceAllString(rest, "")
		}
		if am := assigneeRe.FindStringSubmatch(rest); am != nil {
			task.Assignee = am[1]
			rest = assigneeRe.ReplaceAllString(rest, "")
		}

		if bm := boldTitleRe.FindStringSubmatch(strings.TrimSpace(rest)); bm != nil {
			task.Title = strings.TrimSpace(bm[1])
			task.Detail = strings.TrimSpace(leadingSepRe.ReplaceAllString(strings.TrimSpace(bm[2]), ""))
		} else {
			title, detail := splitDetail(rest)
			task.Title = title
			task.Detail = detail
		}
		if task.Title == "" {
			continue
		}

		list.Tasks = append(list.Tasks, task)
	}

	return list
}

// splitDetail separates a plain (unbolded) task line into title and detail at
// the first em-dash or spaced-hyphen separator.
func splitDetail(s string) (string, string) {
	if loc := detailSepRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[:loc[0]]), strings.TrimSpace(s[loc[1]:])
	}
	return strings.TrimSpace(s), ""
}
