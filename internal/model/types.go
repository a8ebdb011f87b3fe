// Package model defines the typed document produced by each build of the
// Mission Control data pipeline. An AggregateDocument is assembled fresh on
// every build and never mutated afterwards, which is what makes lock-free
// concurrent reads of the cached copy safe.
package model

import (
	"strings"
	"time"
	"unicode"
)

// SchemaVersion identifies the document shape written to data.json.
const SchemaVersion = "1.0.0"

// Metadata describes one build of the document.
type Metadata struct {
	GeneratedAt   time.Time `json:"generatedAt"`
	SchemaVersion string    `json:"schemaVersion"`
	Workspace     string    `json:"workspace"`
	LastCommit    string    `json:"lastCommit,omitempty"`
	LastCommitAt  string    `json:"lastCommitDate,omitempty"`
	BuildTimeMs   int64     `json:"buildTimeMs"`
	// MissingSources names the source documents that were absent from the
	// workspace for this build, so an emptier-than-expected document is
	// explainable from the document alone.
	MissingSources []string `json:"missingSources,omitempty"`
}

// Persona holds the parsed contents of an agent's SOUL.md.
type Persona struct {
	Personality string   `json:"personality,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
	WhenToUse   []string `json:"whenToUse,omitempty"`
	CoreTruths  []string `json:"coreTruths,omitempty"`
	Model       string   `json:"model,omitempty"`
	Base        string   `json:"base,omitempty"`
	Purpose     string   `json:"purpose,omitempty"`
	Path        string   `json:"path,omitempty"`
}

// Agent is one entry from the roster, optionally enriched with a persona.
type Agent struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Role             string   `json:"role"`
	Model            string   `json:"model"`
	Responsibilities []string `json:"responsibilities"`
	Skills           []string `json:"skills"`
	Soul             *Persona `json:"soul,omitempty"`
}

// Task is a single checkbox line from the task list.
type Task struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Detail    string `json:"detail,omitempty"`
	Section   string `json:"section"`
	Priority  string `json:"priority,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
}

// Project is one level-2 section from the projects document.
type Project struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	URL       string   `json:"url,omitempty"`
	Purpose   string   `json:"purpose,omitempty"`
	TechStack []string `json:"techStack,omitempty"`
	Details   []string `json:"details,omitempty"`
}

// Commit is one entry from the git log.
type Commit struct {
	Hash     string `json:"hash"`
	FullHash string `json:"fullHash"`
	Author   string `json:"author"`
	Email    string `json:"email"`
	Date     string `json:"date"`
	Message  string `json:"message"`
}

// AuthorStats aggregates the commits of one author.
type AuthorStats struct {
	Email       string `json:"email"`
	Commits     int    `json:"commits"`
	FirstCommit string `json:"firstCommit"`
	LastCommit  string `json:"lastCommit"`
}

// LineStats counts additions and deletions across the whole history.
type LineStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// Analytics summarizes the workspace's git history. When the workspace is not
// a repository, or git fails, Error carries the reason and the other fields
// are zero.
type Analytics struct {
	Repository        string                 `json:"repository,omitempty"`
	LastCommit        *Commit                `json:"lastCommit,omitempty"`
	RecentCommits     []Commit               `json:"recentCommits,omitempty"`
	ByAuthor          map[string]AuthorStats `json:"byAuthor,omitempty"`
	ContributionGraph map[string]int         `json:"contributionGraph,omitempty"`
	LinesChanged      LineStats              `json:"linesChanged"`
	Error             string                 `json:"error,omitempty"`
}

// TaskList bundles the parsed tasks with the document's update stamp.
type TaskList struct {
	LastUpdated string `json:"lastUpdated,omitempty"`
	Tasks       []Task `json:"tasks"`
}

// AggregateDocument is the artifact of one build.
type AggregateDocument struct {
	Metadata     Metadata           `json:"metadata"`
	Agents       map[string]*Agent  `json:"agents"`
	AgentOrder   []string           `json:"agentOrder"`
	Tasks        []Task             `json:"tasks"`
	TasksUpdated string             `json:"tasksLastUpdated,omitempty"`
	Projects     map[string]Project `json:"projects"`
	ProjectOrder []string           `json:"projectOrder"`
	Preferences  string             `json:"preferences,omitempty"`
	Analytics    Analytics          `json:"repositoryAnalytics"`
}

// AgentID derives the canonical identifier for an agent display name:
// case-folded with everything but letters and digits stripped.
func AgentID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
