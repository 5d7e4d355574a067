package engine

import (
	"sync/atomic"

	"github.com/KilimcininKorOglu/mvstore/internal/storage/cache"
	"github.com/google/uuid"
)

// Stats contains engine statistics.
type Stats struct {
	StoreID uuid.UUID
	Version uint64
	Tables  int

	Chunks          int
	DeadChunks      int
	ReclaimedChunks uint64

	ActiveSessions int
	OpenSnapshots  int
	Commits        uint64
	Aborts         uint64
	Conflicts      uint64

	Cache cache.Stats
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	rs := e.current.Load()
	s := Stats{
		StoreID:        e.store.StoreID(),
		Version:        rs.version,
		Tables:         len(rs.tables),
		Chunks:         e.store.Len(),
		ActiveSessions: e.sessions.ActiveCount(),
		OpenSnapshots:  e.snaps.Count(),
		Commits:        e.sessions.Commits(),
		Aborts:         e.sessions.Aborts(),
		Conflicts:      atomic.LoadUint64(&e.conflicts),
		Cache:          e.pages.Stats(),
	}
	e.liveMu.Lock()
	s.DeadChunks = len(e.dead)
	s.ReclaimedChunks = e.reclaimed
	e.liveMu.Unlock()
	return s
}
