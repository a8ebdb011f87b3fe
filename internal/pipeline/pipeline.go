// Package pipeline ties the builder, cache, snapshot and broadcaster into the
// single rebuild path shared by the file watcher and the on-demand rebuild
// endpoint. One Pipeline exists per workspace; its mutex is what guarantees
// at most one build in flight regardless of who asks.
package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"missionctl/internal/broadcast"
	"missionctl/internal/builder"
	"missionctl/internal/cache"
	"missionctl/internal/model"
)

// Pipeline owns the rebuild path for one workspace.
type Pipeline struct {
	builder      *builder.Builder
	store        *cache.Store
	hub          *broadcast.Hub
	snapshotPath string
	logger       *zap.Logger

	buildMu sync.Mutex
}

// New creates a Pipeline. snapshotPath may be empty to disable the on-disk
// snapshot (tests).
func New(b *builder.Builder, store *cache.Store, hub *broadcast.Hub, snapshotPath string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		builder:      b,
		store:        store,
		hub:          hub,
		snapshotPath: snapshotPath,
		logger:       logger,
	}
}

// Store exposes the cache for read-only consumers.
func (p *Pipeline) Store() *cache.Store { return p.store }

// Hub exposes the broadcaster for subscription.
func (p *Pipeline) Hub() *broadcast.Hub { return p.hub }

// Rebuild runs one build to completion: build, publish, snapshot, broadcast.
// Concurrent callers serialize; each runs its own full build once it acquires
// the turn. On a fatal build error the cache keeps the previous document, a
// buildFailed event goes out, and the error is returned to the caller.
func (p *Pipeline) Rebuild(ctx context.Context) (int64, error) {
	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	start := time.Now()
	doc, err := p.builder.Build(ctx)
	if err != nil {
		p.logger.Error("build failed", zap.Error(err))
		p.hub.Publish(broadcast.BuildFailed(err))
		return 0, err
	}

	version := p.store.Publish(doc)

	if p.snapshotPath != "" {
		if err := builder.WriteSnapshot(p.snapshotPath, doc); err != nil {
			// The in-memory document is already live; losing the cold-start
			// snapshot is not worth failing the build over.
			p.logger.Warn("snapshot write failed", zap.Error(err))
		}
	}

	p.hub.Publish(broadcast.Rebuilt(version, time.Since(start)))
	p.logger.Info("rebuild published",
		zap.Int64("version", version),
		zap.Duration("elapsed", time.Since(start)))
	return version, nil
}

// RestoreSnapshot loads the on-disk snapshot, if any, into an empty cache so
// consumers have data before the first live build completes. A populated
// cache is left untouched.
func (p *Pipeline) RestoreSnapshot() {
	if p.snapshotPath == "" {
		return
	}
	if doc, _ := p.store.Current(); doc != nil {
		return
	}
	doc, err := builder.LoadSnapshot(p.snapshotPath)
	if err != nil {
		p.logger.Warn("snapshot restore failed", zap.Error(err))
		return
	}
	if doc == nil {
		return
	}
	version := p.store.Publish(doc)
	p.logger.Info("restored snapshot", zap.Int64("version", version),
		zap.Time("generatedAt", doc.Metadata.GeneratedAt))
}

// SnapshotPath resolves the snapshot location under a workspace root.
func SnapshotPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, filepath.FromSlash(builder.DefaultSnapshotRelPath))
}

// Document is a convenience for delivery handlers: the current document and
// version together.
func (p *Pipeline) Document() (*model.AggregateDocument, int64) {
	return p.store.Current()
}
