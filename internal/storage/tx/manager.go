package tx

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/cockroachdb/errors"
)

// Manager manages session lifecycle: begin, commit, and rollback.
// It assigns unique session IDs, tracks active sessions, and serializes
// commits.
type Manager struct {
	nextID uint64

	mu     sync.RWMutex
	active map[uint64]*Session

	// commitMu serializes commits.
	commitMu sync.Mutex

	commits uint64
	aborts  uint64
}

// NewManager creates a session manager. IDs start at 1; 0 marks a
// committed row.
func NewManager() *Manager {
	return &Manager{
		nextID: 1,
		active: make(map[uint64]*Session),
	}
}

// Begin starts a new session.
func (m *Manager) Begin() *Session {
	id := atomic.AddUint64(&m.nextID, 1) - 1
	s := NewSession(id)

	m.mu.Lock()
	m.active[id] = s
	m.mu.Unlock()
	return s
}

// Get returns the active session with the given ID.
func (m *Manager) Get(id uint64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.active[id]
	if !ok {
		return nil, errors.Wrapf(storage.ErrSessionNotFound, "session %d", id)
	}
	return s, nil
}

// Commit runs apply for s under the commit lock. On success s is marked
// committed; on failure it is aborted. Either way it leaves the active
// set. The caller holds s's lock.
func (m *Manager) Commit(s *Session, apply func(*Session) error) error {
	if !s.IsActive() {
		return errors.Wrapf(storage.ErrSessionClosed, "session %d is %s", s.ID, s.State())
	}

	m.commitMu.Lock()
	err := apply(s)
	m.commitMu.Unlock()

	if err != nil {
		m.end(s, Aborted)
		return err
	}
	m.end(s, Committed)
	return nil
}

// Rollback aborts s and discards its changes. The caller holds s's lock.
func (m *Manager) Rollback(s *Session) error {
	if !s.IsActive() {
		return errors.Wrapf(storage.ErrSessionClosed, "session %d is %s", s.ID, s.State())
	}
	m.end(s, Aborted)
	return nil
}

func (m *Manager) end(s *Session, state State) {
	s.finish(state)
	m.mu.Lock()
	delete(m.active, s.ID)
	m.mu.Unlock()
	if state == Committed {
		atomic.AddUint64(&m.commits, 1)
	} else {
		atomic.AddUint64(&m.aborts, 1)
	}
}

// ActiveCount returns the number of active sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// ActiveIDs returns the IDs of active sessions in ascending order.
func (m *Manager) ActiveIDs() []uint64 {
	m.mu.RLock()
	ids := make([]uint64, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OldestRead returns the smallest read version among active sessions other
// than except that have written something.
func (m *Manager) OldestRead(except uint64) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var oldest uint64
	found := false
	for id, s := range m.active {
		if id == except {
			continue
		}
		v, ok := s.ReadVersion()
		if ok && (!found || v < oldest) {
			oldest, found = v, true
		}
	}
	return oldest, found
}

// Commits returns the number of committed sessions.
func (m *Manager) Commits() uint64 { return atomic.LoadUint64(&m.commits) }

// Aborts returns the number of aborted sessions, including failed commits.
func (m *Manager) Aborts() uint64 { return atomic.LoadUint64(&m.aborts) }

// NextID returns the ID the next session will receive.
func (m *Manager) NextID() uint64 { return atomic.LoadUint64(&m.nextID) }
