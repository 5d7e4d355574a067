// Package tx implements session management for the mvstore engine.
//
// # Overview
//
// A Session is one in-process transaction. It owns a delta per table it
// has written and a statement sequence used for savepoints:
//
//	s := manager.Begin()
//	s.Lock()
//	s.Stage("accounts", row)
//	s.Unlock()
//
//	err := manager.Commit(s, func(s *tx.Session) error {
//	    // fold s's deltas into new pages
//	})
//
// # Session States
//
//   - Active: the session accepts reads and writes
//   - Committed: its changes are part of a committed version
//   - Aborted: its changes were discarded
//
// # Commit
//
// Commits are serialized by the manager. The apply function runs under the
// commit lock; if it fails the session is aborted and its deltas dropped,
// so a conflicting transaction is retried by beginning a new session.
package tx
