// Package builder orchestrates one build of the aggregate document: read the
// workspace, run the extractors, merge personas into the roster, attach git
// analytics, and stamp metadata. The builder writes no shared state and sends
// no notifications; the caller owns publication and broadcast.
package builder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"missionctl/internal/extract"
	"missionctl/internal/gitstats"
	"missionctl/internal/model"
	"missionctl/internal/workspace"
)

// Builder produces immutable AggregateDocuments for one workspace.
type Builder struct {
	reader  *workspace.Reader
	scanner *gitstats.Scanner
	logger  *zap.Logger

	lastGenerated time.Time // enforces a strictly increasing generation stamp
}

// New creates a Builder. A nil scanner disables git analytics (used in tests).
func New(reader *workspace.Reader, scanner *gitstats.Scanner, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{reader: reader, scanner: scanner, logger: logger}
}

// Build assembles a fresh document. It returns an error only when the
// workspace root itself is unusable; every partial-data condition degrades to
// an emptier document.
func (b *Builder) Build(ctx context.Context) (*model.AggregateDocument, error) {
	start := time.Now()

	if err := b.reader.CheckRoot(); err != nil {
		return nil, fmt.Errorf("build aborted: %w", err)
	}

	docs := b.reader.ReadDocuments()

	doc := &model.AggregateDocument{
		Agents:   map[string]*model.Agent{},
		Tasks:    []model.Task{},
		Projects: map[string]model.Project{},
	}

	for _, agent := range extract.Agents(docs.Agents.Text) {
		doc.Agents[agent.ID] = agent
		doc.AgentOrder = append(doc.AgentOrder, agent.ID)
	}
	b.mergePersonas(doc)

	taskList := extract.Tasks(docs.Tasks.Text)
	doc.Tasks = taskList.Tasks
	doc.TasksUpdated = taskList.LastUpdated

	doc.Projects, doc.ProjectOrder = extract.Projects(docs.Projects.Text)

	if docs.Preferences.Found {
		doc.Preferences = strings.TrimSpace(extract.PlainText(docs.Preferences.Text))
	}

	var missing []string
	for _, src := range []struct {
		name string
		doc  workspace.Document
	}{
		{"agents", docs.Agents},
		{"tasks", docs.Tasks},
		{"projects", docs.Projects},
		{"preferences", docs.Preferences},
	} {
		if !src.doc.Found {
			missing = append(missing, src.name)
		}
	}

	if b.scanner != nil {
		doc.Analytics = b.scanner.Scan(ctx)
	} else {
		doc.Analytics = model.Analytics{Error: "analytics disabled"}
	}

	doc.Metadata = model.Metadata{
		GeneratedAt:    b.nextGenerated(),
		SchemaVersion:  model.SchemaVersion,
		Workspace:      b.reader.Root(),
		BuildTimeMs:    time.Since(start).Milliseconds(),
		MissingSources: missing,
	}
	if doc.Analytics.LastCommit != nil {
		doc.Metadata.LastCommit = doc.Analytics.LastCommit.FullHash
		doc.Metadata.LastCommitAt = doc.Analytics.LastCommit.Date
	}

	b.logger.Info("document built",
		zap.Int("agents", len(doc.Agents)),
		zap.Int("tasks", len(doc.Tasks)),
		zap.Int("projects", len(doc.Projects)),
		zap.Int64("buildTimeMs", doc.Metadata.BuildTimeMs))

	return doc, nil
}

// nextGenerated returns a timestamp strictly after the previous build's.
// Builds are serialized by the watcher, so no lock is needed here.
func (b *Builder) nextGenerated() time.Time {
	now := time.Now()
	if !now.After(b.lastGenerated) {
		now = b.lastGenerated.Add(time.Nanosecond)
	}
	b.lastGenerated = now
	return now
}

// mergePersonas attaches each located persona document to its roster agent.
// Directory names and roster names rarely match exactly, so matching falls
// back to substring containment between the normalized directory name and the
// agent id; the first matching roster agent wins for a given persona, and a
// later persona for the same agent overwrites an earlier one. A persona with
// no roster match gets a synthesized minimal agent rather than being dropped.
func (b *Builder) mergePersonas(doc *model.AggregateDocument) {
	for _, pf := range b.reader.Personas() {
		persona := extract.Persona(pf.Text)
		if persona == nil {
			continue
		}
		persona.Path = pf.Path

		dirID := model.AgentID(pf.Dir)
		matched := ""
		for _, id := range doc.AgentOrder {
			if strings.Contains(dirID, id) || strings.Contains(id, dirID) {
				matched = id
				break
			}
		}

		if matched != "" {
			doc.Agents[matched].Soul = persona
			continue
		}

		if dirID == "" {
			continue
		}
		b.logger.Debug("synthesizing agent for orphan persona", zap.String("dir", pf.Dir))
		doc.Agents[dirID] = &model.Agent{
			ID:               dirID,
			Name:             displayName(pf.Dir),
			Role:             "Subagent",
			Model:            "unknown",
			Responsibilities: []string{"See persona document"},
			Skills:           []string{},
			Soul:             persona,
		}
		doc.AgentOrder = append(doc.AgentOrder, dirID)
	}
}

// displayName capitalizes a directory name for use as a synthesized agent's
// display name ("quinn" -> "Quinn").
func displayName(dir string) string {
	dir = strings.ToLower(strings.TrimSpace(dir))
	if dir == "" {
		return dir
	}
	return strings.ToUpper(dir[:1]) + dir[1:]
}
