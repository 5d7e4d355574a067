package mvcc

import (
	"sync"

	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/cockroachdb/errors"
)

// ErrSnapshotReleased is returned when a snapshot is released more often
// than it was acquired.
var ErrSnapshotReleased = errors.New("snapshot has been released")

// Snapshot is a committed version and the table roots it published.
// Snapshots are shared between readers of the same version; Roots must not
// be modified.
type Snapshot struct {
	Version uint64
	Roots   map[string]codec.Position

	refs int
}

// Root returns the root of table, 0 if the table did not exist.
func (s *Snapshot) Root(table string) codec.Position {
	return s.Roots[table]
}

// SnapshotManager tracks open snapshots by version.
type SnapshotManager struct {
	mu        sync.Mutex
	snapshots map[uint64]*Snapshot
}

// NewSnapshotManager creates an empty manager.
func NewSnapshotManager() *SnapshotManager {
	return &SnapshotManager{snapshots: make(map[uint64]*Snapshot)}
}

// Acquire returns a reference to the snapshot of version, registering it
// with roots on first use.
func (m *SnapshotManager) Acquire(version uint64, roots map[string]codec.Position) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[version]
	if !ok {
		s = &Snapshot{Version: version, Roots: roots}
		m.snapshots[version] = s
	}
	s.refs++
	return s
}

// Release drops one reference to s.
func (m *SnapshotManager) Release(s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.refs <= 0 {
		return ErrSnapshotReleased
	}
	s.refs--
	if s.refs == 0 {
		delete(m.snapshots, s.Version)
	}
	return nil
}

// Oldest returns the oldest version with an open snapshot.
func (m *SnapshotManager) Oldest() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest uint64
	found := false
	for v := range m.snapshots {
		if !found || v < oldest {
			oldest, found = v, true
		}
	}
	return oldest, found
}

// Count returns the number of distinct open versions.
func (m *SnapshotManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// RefCount returns the number of references to version.
func (m *SnapshotManager) RefCount(version uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.snapshots[version]; ok {
		return s.refs
	}
	return 0
}
