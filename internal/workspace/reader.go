// Package workspace reads the markdown source-of-truth files for one
// deployment of the dashboard. Missing files are an expected condition, not
// an error: every read reports present-or-absent so the builder can still
// produce a document with empty collections.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default top-level document names inside a workspace root.
const (
	DefaultAgentsFile      = "AGENTS.md"
	DefaultTasksFile       = "active-tasks.md"
	DefaultProjectsFile    = "projects.md"
	DefaultPreferencesFile = "USER_PREFERENCES.md"

	// AgentsDir holds one subdirectory per agent.
	AgentsDir = "agents"
)

// personaCandidates are the relative paths tried, in order, inside each agent
// subdirectory. The first hit wins.
var personaCandidates = []string{
	"SOUL.md",
	filepath.Join("agent", "SOUL.md"),
	filepath.Join("agents", "SOUL.md"),
}

// Document is the outcome of reading one file: its text if present.
type Document struct {
	Text  string
	Found bool
}

// Documents bundles the top-level workspace files.
type Documents struct {
	Agents      Document
	Tasks       Document
	Projects    Document
	Preferences Document
}

// PersonaFile is a located persona document for one agent subdirectory.
type PersonaFile struct {
	Dir  string // agent subdirectory name, e.g. "quinn"
	Path string // path the document was found at
	Text string
}

// Reader reads one workspace root.
type Reader struct {
	root            string
	agentsFile      string
	tasksFile       string
	projectsFile    string
	preferencesFile string
}

// Option configures a Reader.
type Option func(*Reader)

// WithFileNames overrides the default top-level document names.
func WithFileNames(agents, tasks, projects, preferences string) Option {
	return func(r *Reader) {
		r.agentsFile = agents
		r.tasksFile = tasks
		r.projectsFile = projects
		r.preferencesFile = preferences
	}
}

// NewReader creates a Reader for the given workspace root.
func NewReader(root string, opts ...Option) *Reader {
	r := &Reader{
		root:            root,
		agentsFile:      DefaultAgentsFile,
		tasksFile:       DefaultTasksFile,
		projectsFile:    DefaultProjectsFile,
		preferencesFile: DefaultPreferencesFile,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the workspace root path.
func (r *Reader) Root() string { return r.root }

// CheckRoot verifies the workspace root exists and is a directory. This is
// the one condition that makes a build meaningless.
func (r *Reader) CheckRoot() error {
	info, err := os.Stat(r.root)
	if err != nil {
		return fmt.Errorf("workspace root %s: %w", r.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace root %s is not a directory", r.root)
	}
	return nil
}

// ReadDocuments reads all top-level documents. A missing file yields
// Found=false rather than an error.
func (r *Reader) ReadDocuments() Documents {
	return Documents{
		Agents:      r.readOne(r.agentsFile),
		Tasks:       r.readOne(r.tasksFile),
		Projects:    r.readOne(r.projectsFile),
		Preferences: r.readOne(r.preferencesFile),
	}
}

func (r *Reader) readOne(name string) Document {
	data, err := os.ReadFile(filepath.Join(r.root, name))
	if err != nil {
		return Document{}
	}
	return Document{Text: string(data), Found: true}
}

// Personas enumerates agent subdirectories and locates each one's persona
// document at the first matching candidate path. Directories without one are
// simply absent from the result.
func (r *Reader) Personas() []PersonaFile {
	entries, err := os.ReadDir(filepath.Join(r.root, AgentsDir))
	if err != nil {
		return nil
	}

	var found []PersonaFile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		for _, rel := range personaCandidates {
			path := filepath.Join(r.root, AgentsDir, entry.Name(), rel)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			found = append(found, PersonaFile{
				Dir:  entry.Name(),
				Path: path,
				Text: string(data),
			})
			break
		}
	}
	return found
}
