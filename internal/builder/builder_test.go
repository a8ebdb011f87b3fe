package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"missionctl/internal/workspace"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func seedWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, workspace.DefaultAgentsFile), `# Agents
| Agent | Role | Model | Responsibility |
|-------|------|-------|----------------|
| **Quinn** | Code Architect | model-x | reviews code |
| **Dex** | Implementer | model-y | ships features |
`)
	writeFile(t, filepath.Join(root, workspace.DefaultTasksFile), `Last updated: 2026-03-01

## In Progress
- [ ] **Fix bug** [P1] @dex

## Recently Completed
- [x] **Ship v1** — done early
`)
	writeFile(t, filepath.Join(root, workspace.DefaultProjectsFile), `## Mission Control
**Status:** Active
`)
	writeFile(t, filepath.Join(root, "agents", "quinn", "SOUL.md"), `## Specialties
- Architecture review
`)
	writeFile(t, filepath.Join(root, "agents", "hawthorne", "SOUL.md"), `## Core Truths
- Prune relentlessly
`)
	return root
}

func TestBuild_FullWorkspace(t *testing.T) {
	b := New(workspace.NewReader(seedWorkspace(t)), nil, nil)

	doc, err := b.Build(context.Background())
	require.NoError(t, err)

	// Roster agents in discovery order, plus the synthesized orphan.
	require.Equal(t, []string{"quinn", "dex", "hawthorne"}, doc.AgentOrder)
	require.NotNil(t, doc.Agents["quinn"].Soul)
	require.Equal(t, []string{"Architecture review"}, doc.Agents["quinn"].Soul.Specialties)
	require.Nil(t, doc.Agents["dex"].Soul)

	orphan := doc.Agents["hawthorne"]
	require.Equal(t, "Hawthorne", orphan.Name)
	require.Equal(t, "Subagent", orphan.Role)
	require.Equal(t, "unknown", orphan.Model)
	require.Equal(t, []string{"Prune relentlessly"}, orphan.Soul.CoreTruths)

	require.Len(t, doc.Tasks, 2)
	require.Equal(t, "2026-03-01", doc.TasksUpdated)
	require.Equal(t, []string{"missioncontrol"}, doc.ProjectOrder)

	require.NotZero(t, doc.Metadata.GeneratedAt)
	require.Equal(t, "1.0.0", doc.Metadata.SchemaVersion)
	require.Equal(t, []string{"preferences"}, doc.Metadata.MissingSources)
}

func TestBuild_PreferencesNote(t *testing.T) {
	root := seedWorkspace(t)
	writeFile(t, filepath.Join(root, workspace.DefaultPreferencesFile),
		"# Preferences\n\nPrefer **short** answers.\n")

	doc, err := New(workspace.NewReader(root), nil, nil).Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Preferences\n\nPrefer short answers.", doc.Preferences)
	require.Empty(t, doc.Metadata.MissingSources)
}

func TestBuild_MissingTaskFileDegradesGracefully(t *testing.T) {
	root := seedWorkspace(t)
	require.NoError(t, os.Remove(filepath.Join(root, workspace.DefaultTasksFile)))

	doc, err := New(workspace.NewReader(root), nil, nil).Build(context.Background())
	require.NoError(t, err)
	require.Empty(t, doc.Tasks)
	require.NotEmpty(t, doc.Agents)
	require.NotEmpty(t, doc.Projects)
}

func TestBuild_MissingRootFails(t *testing.T) {
	b := New(workspace.NewReader(filepath.Join(t.TempDir(), "nope")), nil, nil)
	_, err := b.Build(context.Background())
	require.Error(t, err)
}

func TestBuild_GenerationTimestampStrictlyIncreases(t *testing.T) {
	b := New(workspace.NewReader(seedWorkspace(t)), nil, nil)

	prev, err := b.Build(context.Background())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		next, err := b.Build(context.Background())
		require.NoError(t, err)
		require.True(t, next.Metadata.GeneratedAt.After(prev.Metadata.GeneratedAt),
			"generation %d not after previous", i)
		prev = next
	}
}

func TestBuild_PersonaSubstringMatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, workspace.DefaultAgentsFile),
		"| **Quinn** | Architect | m | reviews |\n")
	// Directory name contains the roster id but is not equal to it.
	writeFile(t, filepath.Join(root, "agents", "quinn-coder", "SOUL.md"),
		"## Specialties\n- code\n")

	doc, err := New(workspace.NewReader(root), nil, nil).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.AgentOrder, 1)
	require.NotNil(t, doc.Agents["quinn"].Soul)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	b := New(workspace.NewReader(seedWorkspace(t)), nil, nil)
	doc, err := b.Build(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), DefaultSnapshotRelPath)
	require.NoError(t, WriteSnapshot(path, doc))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Equal(t, doc.AgentOrder, loaded.AgentOrder)
	require.Equal(t, doc.Tasks, loaded.Tasks)
	require.Equal(t, doc.Metadata.SchemaVersion, loaded.Metadata.SchemaVersion)

	// Overwrite with a newer document; only the latest survives.
	doc2, err := b.Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, WriteSnapshot(path, doc2))
	loaded2, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.True(t, loaded2.Metadata.GeneratedAt.After(loaded.Metadata.GeneratedAt))
}

func TestLoadSnapshot_Missing(t *testing.T) {
	doc, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Nil(t, doc)
}
