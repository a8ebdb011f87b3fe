package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"missionctl/internal/model"
)

func TestTasks_CompletedWithDetail(t *testing.T) {
	text := `## Recently Completed
- [x] **Ship v1** — done early
`
	got := Tasks(text)
	want := []model.Task{{
		Title:     "Ship v1",
		Completed: true,
		Section:   "Recently Completed",
		Detail:    "done early",
	}}
	if diff := cmp.Diff(want, got.Tasks); diff != "" {
		t.Errorf("Tasks() mismatch (-want +got):\n%s", diff)
	}
}

func TestTasks_PriorityAndAssignee(t *testing.T) {
	got := Tasks("## In Progress\n- [ ] **Fix bug** [P1] @dex\n")
	if len(got.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(got.Tasks))
	}
	task := got.Tasks[0]
	if task.Title != "Fix bug" || task.Completed || task.Priority != "P1" || task.Assignee != "dex" {
		t.Errorf("unexpected task: %+v", task)
	}
}

func TestTasks_PriorityWordsCaseInsensitive(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"- [ ] **A** [high]", "HIGH"},
		{"- [ ] **B** [Low]", "LOW"},
		{"- [ ] **C** [p3]", "P3"},
		{"- [ ] **D** [urgent]", "URGENT"},
	}
	for _, tt := range tests {
		got := Tasks(tt.line)
		if len(got.Tasks) != 1 || got.Tasks[0].Priority != tt.want {
			t.Errorf("Tasks(%q) priority = %+v, want %s", tt.line, got.Tasks, tt.want)
		}
	}
}

func TestTasks_SectionVerbatimAndUnknownKept(t *testing.T) {
	text := `## Weird Custom Bucket
- [ ] **Keep me**
`
	got := Tasks(text)
	if len(got.Tasks) != 1 || got.Tasks[0].Section != "Weird Custom Bucket" {
		t.Errorf("unknown heading should be preserved verbatim, got %+v", got.Tasks)
	}
}

func TestTasks_CheckboxBeforeHeading(t *testing.T) {
	got := Tasks("- [ ] **Early bird**\n## Backlog\n- [ ] **Later**\n")
	if len(got.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(got.Tasks))
	}
	if got.Tasks[0].Section != UncategorizedSection {
		t.Errorf("pre-heading task section = %q, want %q", got.Tasks[0].Section, UncategorizedSection)
	}
	if got.Tasks[1].Section != "Backlog" {
		t.Errorf("second task section = %q, want Backlog", got.Tasks[1].Section)
	}
}

func TestTasks_PlainTitleWithoutBold(t *testing.T) {
	got := Tasks("## Backlog\n- [ ] tidy the docs - low effort\n")
	if len(got.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(got.Tasks))
	}
	if got.Tasks[0].Title != "tidy the docs" || got.Tasks[0].Detail != "low effort" {
		t.Errorf("unexpected plain task: %+v", got.Tasks[0])
	}
}

func TestTasks_LastUpdatedStamp(t *testing.T) {
	got := Tasks("Last updated: 2026-02-14\n\n## In Progress\n- [ ] **Thing**\n")
	if got.LastUpdated != "2026-02-14" {
		t.Errorf("LastUpdated = %q, want 2026-02-14", got.LastUpdated)
	}
}

func TestTasks_TotalParse(t *testing.T) {
	inputs := []string{
		"",
		"## Heading only",
		"- [?] malformed checkbox",
		"- [ ] ",
		"random prose\nwith lines\n",
		"\x00\x01\x02",
	}
	for _, in := range inputs {
		got := Tasks(in)
		if got.Tasks == nil {
			t.Errorf("Tasks(%q) returned nil slice", in)
		}
		if len(got.Tasks) != 0 {
			t.Errorf("Tasks(%q) = %d tasks, want 0", in, len(got.Tasks))
		}
	}
}
