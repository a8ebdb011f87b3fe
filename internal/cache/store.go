// Package cache holds the most recently built document. Publishing swaps a
// single pointer to an immutable snapshot, so readers never take a lock and
// never observe a half-replaced document.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"missionctl/internal/model"
)

// snapshot pairs a document with the version it was published as. The pair is
// immutable; Publish builds a new one and swaps the pointer.
type snapshot struct {
	doc       *model.AggregateDocument
	version   int64
	published time.Time
}

// Store is the version store for one workspace.
type Store struct {
	current atomic.Pointer[snapshot]

	mu sync.Mutex // serializes Publish; reads never take it
}

// NewStore creates an empty Store with version 0.
func NewStore() *Store {
	return &Store{}
}

// Current returns the cached document and its version. Before the first
// publish the document is nil and the version 0. Never blocks, never rebuilds.
func (s *Store) Current() (*model.AggregateDocument, int64) {
	snap := s.current.Load()
	if snap == nil {
		return nil, 0
	}
	return snap.doc, snap.version
}

// LastBuild returns when the current document was published, zero before the
// first publish.
func (s *Store) LastBuild() time.Time {
	snap := s.current.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.published
}

// Publish replaces the cached document, incrementing the version by exactly 1,
// and returns the new version. Safe to call concurrently with any number of
// Current calls.
func (s *Store) Publish(doc *model.AggregateDocument) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var version int64 = 1
	if prev := s.current.Load(); prev != nil {
		version = prev.version + 1
	}
	s.current.Store(&snapshot{doc: doc, version: version, published: time.Now()})
	return version
}
