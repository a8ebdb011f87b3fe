// Package gitstats derives repository analytics for a workspace by invoking
// the git CLI. Git is treated as an optional collaborator: a workspace that
// is not a repository, a missing binary, or a slow subprocess all degrade to
// an Analytics value carrying an error string, never a raised error.
package gitstats

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"missionctl/internal/model"
)

const (
	// DefaultDepth bounds the commit log scan.
	DefaultDepth = 50
	// DefaultTimeout bounds each git subprocess. The pipeline runs one build
	// at a time, so an unbounded hang here would stall it indefinitely.
	DefaultTimeout = 5 * time.Second

	shortHashLen = 7
)

// Scanner collects analytics for one repository root.
type Scanner struct {
	root    string
	depth   int
	timeout time.Duration
	logger  *zap.Logger
}

// NewScanner creates a Scanner for the given root.
func NewScanner(root string, depth int, timeout time.Duration, logger *zap.Logger) *Scanner {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{root: root, depth: depth, timeout: timeout, logger: logger}
}

// Scan runs the git subprocesses and assembles the analytics. All failures
// are folded into the Error field.
func (s *Scanner) Scan(ctx context.Context) model.Analytics {
	start := time.Now()

	if err := s.checkRepo(ctx); err != nil {
		s.logger.Debug("skipping git scan", zap.String("root", s.root), zap.Error(err))
		return model.Analytics{Error: "not a git repository"}
	}

	logOut, err := s.run(ctx, "log",
		"--format=%H|%an|%ae|%ad|%s", "--date=iso", "--all",
		fmt.Sprintf("-n%d", s.depth))
	if err != nil {
		s.logger.Warn("git log failed", zap.Error(err))
		return model.Analytics{Error: fmt.Sprintf("git log: %v", err)}
	}

	analytics := Aggregate(s.root, ParseCommits(logOut))

	// The numstat scan covers all history and can fail independently on
	// huge repositories; its loss doesn't invalidate the commit data.
	if numOut, err := s.run(ctx, "log", "--numstat", "--format=", "--all"); err != nil {
		s.logger.Warn("git numstat failed", zap.Error(err))
	} else {
		analytics.LinesChanged = ParseNumstat(numOut)
	}

	s.logger.Debug("git scan complete",
		zap.Int("commits", len(analytics.RecentCommits)),
		zap.Duration("elapsed", time.Since(start)))
	return analytics
}

func (s *Scanner) checkRepo(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = s.root
	return cmd.Run()
}

func (s *Scanner) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.root
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("timed out after %s", s.timeout)
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ParseCommits parses "hash|author|email|date|subject" lines as produced by
// git log. Malformed lines are skipped.
func ParseCommits(out string) []model.Commit {
	var commits []model.Commit
	scanner := bufio.NewScanner(bytes.NewReader([]byte(out)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), "|", 5)
		if len(parts) < 5 {
			continue
		}
		full := strings.TrimSpace(parts[0])
		if full == "" {
			continue
		}
		short := full
		if len(short) > shortHashLen {
			short = short[:shortHashLen]
		}
		date := strings.TrimSpace(parts[3])
		if t, err := time.Parse("2006-01-02 15:04:05 -0700", date); err == nil {
			date = t.UTC().Format(time.RFC3339)
		}
		commits = append(commits, model.Commit{
			Hash:     short,
			FullHash: full,
			Author:   strings.TrimSpace(parts[1]),
			Email:    strings.TrimSpace(parts[2]),
			Date:     date,
			Message:  strings.TrimSpace(parts[4]),
		})
	}
	return commits
}

// Aggregate computes the per-author and per-day rollups from a commit list
// ordered newest first.
func Aggregate(repo string, commits []model.Commit) model.Analytics {
	a := model.Analytics{
		Repository:        repo,
		RecentCommits:     commits,
		ByAuthor:          map[string]model.AuthorStats{},
		ContributionGraph: map[string]int{},
	}
	if len(commits) > 0 {
		a.LastCommit = &commits[0]
	}
	for _, c := range commits {
		stats, ok := a.ByAuthor[c.Author]
		if !ok {
			stats = model.AuthorStats{Email: c.Email, FirstCommit: c.Date, LastCommit: c.Date}
		}
		stats.Commits++
		// Commits arrive newest first, so the earliest seen date is the
		// latest commit and the last seen is the first.
		stats.FirstCommit = c.Date
		a.ByAuthor[c.Author] = stats

		if day, _, found := strings.Cut(c.Date, "T"); found {
			a.ContributionGraph[day]++
		}
	}
	return a
}

// ParseNumstat sums the addition and deletion columns of git log --numstat
// output. Binary-file markers ("-") and malformed lines contribute nothing.
func ParseNumstat(out string) model.LineStats {
	var stats model.LineStats
	scanner := bufio.NewScanner(bytes.NewReader([]byte(out)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		add, err1 := strconv.Atoi(fields[0])
		del, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			continue
		}
		stats.Additions += add
		stats.Deletions += del
	}
	return stats
}
