package tx

import (
	"sync"
	"testing"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/mvcc"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
	"github.com/cockroachdb/errors"
)

func row(k int64) *mvcc.VersionedRow {
	return &mvcc.VersionedRow{Key: value.Long(k), Values: []value.Value{value.Long(k * 10)}}
}

// TestSessionState tests session state reporting.
func TestSessionState(t *testing.T) {
	s := NewSession(3)
	if !s.IsActive() || s.State() != Active {
		t.Fatalf("new session state = %s", s.State())
	}
	for state, want := range map[State]string{Active: "Active", Committed: "Committed", Aborted: "Aborted", State(7): "Unknown"} {
		if state.String() != want {
			t.Errorf("String() = %s, want %s", state.String(), want)
		}
	}
	if s.Duration() < 0 {
		t.Error("negative duration")
	}
}

// TestSessionStage tests staging into per-table deltas.
func TestSessionStage(t *testing.T) {
	s := NewSession(5)
	first := s.Stage("b", row(1))
	second := s.Stage("a", row(2))
	s.Stage("a", row(2))

	if first != 0 || second != 1 {
		t.Errorf("sequences = %d, %d", first, second)
	}
	if got := s.Tables(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Tables = %v", got)
	}
	if s.PendingCount() != 2 {
		t.Errorf("PendingCount = %d, want 2", s.PendingCount())
	}
	r, ok := s.Delta("a").Get(value.Long(2))
	if !ok || r.SessionID != 5 || r.Seq != 2 {
		t.Errorf("staged row = %+v", r)
	}
	if s.Delta("missing") != nil {
		t.Error("unwritten table has a delta")
	}
}

// TestSessionSavepoint tests partial rollback.
func TestSessionSavepoint(t *testing.T) {
	s := NewSession(1)
	s.Stage("t", row(1))
	sp := s.Savepoint()
	s.Stage("t", row(2))
	s.Stage("u", row(3))

	s.RollbackTo(sp)
	if s.PendingCount() != 1 {
		t.Errorf("PendingCount = %d after RollbackTo", s.PendingCount())
	}
	if got := s.Tables(); len(got) != 1 || got[0] != "t" {
		t.Errorf("Tables = %v", got)
	}
	if _, ok := s.Delta("t").Get(value.Long(1)); !ok {
		t.Error("change before the savepoint was lost")
	}
}

// =============================================================================
// Manager Tests
// =============================================================================

// TestManagerBegin tests ID assignment and lookup.
func TestManagerBegin(t *testing.T) {
	m := NewManager()
	a := m.Begin()
	b := m.Begin()
	if a.ID != 1 || b.ID != 2 {
		t.Errorf("IDs = %d, %d", a.ID, b.ID)
	}
	if m.NextID() != 3 || m.ActiveCount() != 2 {
		t.Errorf("NextID = %d, ActiveCount = %d", m.NextID(), m.ActiveCount())
	}
	if got, err := m.Get(2); err != nil || got != b {
		t.Errorf("Get(2) = %v, %v", got, err)
	}
	if _, err := m.Get(42); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("Get(42) = %v", err)
	}
	if ids := m.ActiveIDs(); len(ids) != 2 || ids[0] != 1 {
		t.Errorf("ActiveIDs = %v", ids)
	}
}

// TestManagerCommit tests that commit runs apply once and ends the session.
func TestManagerCommit(t *testing.T) {
	m := NewManager()
	s := m.Begin()
	s.Stage("t", row(1))

	calls := 0
	err := m.Commit(s, func(got *Session) error {
		calls++
		if got.PendingCount() != 1 {
			t.Errorf("apply saw %d pending keys", got.PendingCount())
		}
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("Commit = %v, apply calls = %d", err, calls)
	}
	if s.State() != Committed || s.PendingCount() != 0 {
		t.Errorf("state = %s, pending = %d", s.State(), s.PendingCount())
	}
	if m.ActiveCount() != 0 || m.Commits() != 1 {
		t.Errorf("ActiveCount = %d, Commits = %d", m.ActiveCount(), m.Commits())
	}
	if err := m.Commit(s, func(*Session) error { return nil }); !errors.Is(err, storage.ErrSessionClosed) {
		t.Errorf("second Commit = %v", err)
	}
}

// TestManagerCommitFailureAborts tests that a failed apply aborts.
func TestManagerCommitFailureAborts(t *testing.T) {
	m := NewManager()
	s := m.Begin()
	s.Stage("t", row(1))

	err := m.Commit(s, func(*Session) error { return storage.ErrConcurrentUpdate })
	if !errors.Is(err, storage.ErrConcurrentUpdate) {
		t.Fatalf("Commit = %v", err)
	}
	if s.State() != Aborted || m.Aborts() != 1 || m.ActiveCount() != 0 {
		t.Errorf("state = %s, aborts = %d", s.State(), m.Aborts())
	}
}

// TestManagerRollback tests rollback of an active session.
func TestManagerRollback(t *testing.T) {
	m := NewManager()
	s := m.Begin()
	s.Stage("t", row(1))
	if err := m.Rollback(s); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if s.State() != Aborted || s.PendingCount() != 0 {
		t.Errorf("state = %s, pending = %d", s.State(), s.PendingCount())
	}
	if err := m.Rollback(s); !errors.Is(err, storage.ErrSessionClosed) {
		t.Errorf("second Rollback = %v", err)
	}
}

// TestManagerSerializesCommits tests that apply never runs concurrently.
func TestManagerSerializesCommits(t *testing.T) {
	m := NewManager()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		running int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.Begin()
			s.Lock()
			defer s.Unlock()
			m.Commit(s, func(*Session) error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("%d commits applied at once", maxSeen)
	}
	if m.Commits() != 16 {
		t.Errorf("Commits = %d", m.Commits())
	}
}

// TestManagerOldestRead tests the oldest read version across writers.
func TestManagerOldestRead(t *testing.T) {
	m := NewManager()
	a := m.Begin()
	b := m.Begin()
	idle := m.Begin()

	if _, ok := m.OldestRead(0); ok {
		t.Fatal("OldestRead reported a version before any write")
	}
	b.NoteRead(7)
	a.NoteRead(4)
	a.NoteRead(9)

	if v, ok := a.ReadVersion(); !ok || v != 4 {
		t.Errorf("ReadVersion = %d, %v, want 4", v, ok)
	}
	if v, ok := m.OldestRead(0); !ok || v != 4 {
		t.Errorf("OldestRead = %d, %v, want 4", v, ok)
	}
	if v, ok := m.OldestRead(a.ID); !ok || v != 7 {
		t.Errorf("OldestRead excluding a = %d, %v, want 7", v, ok)
	}

	a.Lock()
	m.Rollback(a)
	a.Unlock()
	b.Lock()
	m.Rollback(b)
	b.Unlock()
	if _, ok := m.OldestRead(idle.ID); ok {
		t.Error("OldestRead counted ended sessions")
	}

	zero := m.Begin()
	zero.NoteRead(0)
	if v, ok := m.OldestRead(0); !ok || v != 0 {
		t.Errorf("OldestRead = %d, %v, want version 0", v, ok)
	}
}
