// Package watcher observes a workspace for markdown changes and drives the
// rebuild pipeline through a debounced state machine:
//
//	Idle -> PendingRebuild -> Building -> Idle
//
// Every matching event while pending re-arms the quiet-period timer, so a
// burst of saves produces one build. Events arriving mid-build mark the
// workspace dirty and trigger exactly one follow-up cycle; two builds never
// run concurrently.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"missionctl/internal/workspace"
)

// DefaultQuietPeriod is the debounce window applied when none is configured.
const DefaultQuietPeriod = 500 * time.Millisecond

// Rebuilder is the pipeline entry point the watcher drives.
type Rebuilder interface {
	Rebuild(ctx context.Context) (int64, error)
}

// Stats counts watcher activity, for diagnostics and tests.
type Stats struct {
	EventsMatched int
	BuildsStarted int
	BuildsFailed  int
	WatchErrors   int
}

// Watcher watches one workspace root.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	rebuild  Rebuilder
	root     string
	snapshot string // absolute path excluded from the watch set
	quiet    time.Duration
	logger   *zap.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	stats   Stats
}

// New creates a Watcher over root driving rebuild. snapshotPath names the
// emitted data.json so its writes don't re-trigger builds; it may be empty.
func New(root string, rebuild Rebuilder, snapshotPath string, quiet time.Duration, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs := snapshotPath
	if abs != "" {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	return &Watcher{
		fsw:      fsw,
		rebuild:  rebuild,
		root:     root,
		snapshot: abs,
		quiet:    quiet,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds the watch points and launches the event loop. Non-blocking;
// already-running watchers return nil.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.addWatches()
	go w.run(ctx)
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		w.logger.Error("closing fs watcher", zap.Error(err))
	}
}

// GetStats returns a copy of the activity counters.
func (w *Watcher) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// addWatches registers the root, the agents directory and its immediate
// subdirectories. fsnotify doesn't recurse, and new agent subdirectories are
// picked up from create events as they appear.
func (w *Watcher) addWatches() {
	if err := w.fsw.Add(w.root); err != nil {
		w.logger.Warn("cannot watch workspace root", zap.String("root", w.root), zap.Error(err))
	}

	agentsDir := filepath.Join(w.root, workspace.AgentsDir)
	if err := w.fsw.Add(agentsDir); err != nil {
		w.logger.Debug("agents dir not watchable yet", zap.Error(err))
		return
	}
	entries, err := os.ReadDir(agentsDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			w.watchAgentTree(filepath.Join(agentsDir, entry.Name()))
		}
	}
}

// watchAgentTree watches one agent directory plus the nested locations a
// persona document may live at.
func (w *Watcher) watchAgentTree(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		return
	}
	for _, nested := range []string{"agent", "agents"} {
		sub := filepath.Join(dir, nested)
		if info, err := os.Stat(sub); err == nil && info.IsDir() {
			if err := w.fsw.Add(sub); err != nil {
				w.logger.Debug("cannot watch nested dir", zap.String("dir", sub), zap.Error(err))
			}
		}
	}
}

// run is the event loop. The debounce timer only exists while a rebuild is
// pending; build results come back on buildDone so filesystem events are
// never starved by a build in progress.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var (
		timer     *time.Timer
		timerC    <-chan time.Time
		building  bool
		dirty     bool
		buildDone = make(chan error, 1)
	)

	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	arm := func() {
		disarm()
		timer = time.NewTimer(w.quiet)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			disarm()
			return

		case <-w.stopCh:
			disarm()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.handleEvent(event) {
				continue
			}
			if building {
				dirty = true
				continue
			}
			arm() // Idle or PendingRebuild: (re-)enter pending

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors must not take the loop down; the host process
			// decides whether to restart the watcher.
			w.logger.Error("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.WatchErrors++
			w.mu.Unlock()

		case <-timerC:
			disarm()
			building = true
			w.mu.Lock()
			w.stats.BuildsStarted++
			w.mu.Unlock()
			go func() {
				_, err := w.rebuild.Rebuild(ctx)
				buildDone <- err
			}()

		case err := <-buildDone:
			building = false
			if err != nil {
				w.mu.Lock()
				w.stats.BuildsFailed++
				w.mu.Unlock()
			}
			if dirty {
				// A change landed mid-build; run one more debounce cycle.
				dirty = false
				arm()
			}
		}
	}
}

// handleEvent reports whether the event concerns the watched file set, and
// registers newly created agent directories along the way.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false // chmod etc.
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if strings.HasPrefix(event.Name, filepath.Join(w.root, workspace.AgentsDir)) {
				w.watchAgentTree(event.Name)
			}
			return false
		}
	}

	if !w.matches(event.Name) {
		return false
	}

	w.logger.Debug("workspace change", zap.String("op", event.Op.String()), zap.String("path", event.Name))
	w.mu.Lock()
	w.stats.EventsMatched++
	w.mu.Unlock()
	return true
}

// matches reports whether a path belongs to the watched file set: markdown
// files, minus the snapshot this pipeline writes, minus dotfiles.
func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if !strings.EqualFold(filepath.Ext(base), ".md") {
		return false
	}
	if w.snapshot != "" {
		if abs, err := filepath.Abs(path); err == nil && abs == w.snapshot {
			return false
		}
	}
	return true
}
