package tx

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KilimcininKorOglu/mvstore/internal/storage/mvcc"
)

// State represents the state of a session.
type State int

const (
	// Active indicates the session is in progress.
	Active State = iota
	// Committed indicates the session's changes were committed.
	Committed
	// Aborted indicates the session was rolled back.
	Aborted
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case Committed:
		return "Committed"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Session is a transaction and its pending changes.
//
// A session's own operations are serialized by its lock; callers hold it
// around every method except ID, StartTime and Duration.
type Session struct {
	// ID is the unique session identifier, never 0.
	ID uint64

	// StartTime is when the session began.
	StartTime time.Time

	mu     sync.Mutex
	state  State
	deltas map[string]*mvcc.Delta
	seq    uint64

	// readAt is one more than the committed version the session first
	// wrote against, 0 before its first write.
	readAt atomic.Uint64
}

// NewSession creates an active session.
func NewSession(id uint64) *Session {
	return &Session{
		ID:        id,
		StartTime: time.Now(),
		state:     Active,
		deltas:    make(map[string]*mvcc.Delta),
	}
}

// Lock acquires the session lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// State returns the session state.
func (s *Session) State() State { return s.state }

// IsActive reports whether the session still accepts operations.
func (s *Session) IsActive() bool { return s.state == Active }

// NoteRead records version as the committed version the session writes
// against. Only the first call has an effect. It may be called without
// the session lock.
func (s *Session) NoteRead(version uint64) {
	s.readAt.CompareAndSwap(0, version+1)
}

// ReadVersion returns the version passed to the first NoteRead.
func (s *Session) ReadVersion() (uint64, bool) {
	v := s.readAt.Load()
	if v == 0 {
		return 0, false
	}
	return v - 1, true
}

// Stage records row as the session's newest version of its key in table
// and returns the statement sequence assigned to it.
func (s *Session) Stage(table string, row *mvcc.VersionedRow) uint64 {
	d, ok := s.deltas[table]
	if !ok {
		d = mvcc.NewDelta()
		s.deltas[table] = d
	}
	row.SessionID = s.ID
	row.Seq = s.seq
	s.seq++
	d.Put(row)
	return row.Seq
}

// Delta returns the delta for table, or nil if the session has not
// written it.
func (s *Session) Delta(table string) *mvcc.Delta {
	return s.deltas[table]
}

// Tables returns the written tables in name order.
func (s *Session) Tables() []string {
	names := make([]string, 0, len(s.deltas))
	for name, d := range s.deltas {
		if d.Len() > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// PendingCount returns the number of keys with pending changes.
func (s *Session) PendingCount() int {
	n := 0
	for _, d := range s.deltas {
		n += d.Len()
	}
	return n
}

// Savepoint returns a marker for the current point in the session.
func (s *Session) Savepoint() uint64 { return s.seq }

// RollbackTo discards every change staged after sp was taken.
func (s *Session) RollbackTo(sp uint64) {
	for name, d := range s.deltas {
		d.RollbackTo(sp)
		if d.Len() == 0 {
			delete(s.deltas, name)
		}
	}
}

func (s *Session) finish(state State) {
	s.state = state
	s.deltas = make(map[string]*mvcc.Delta)
}

// Duration returns the time since the session began.
func (s *Session) Duration() time.Duration {
	return time.Since(s.StartTime)
}
