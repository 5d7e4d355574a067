// Package mvcc implements row visibility for concurrent sessions.
//
// # Overview
//
// Committed rows live in copy-on-write B-trees. A session's uncommitted
// changes live in its own Delta, one ordered chain of VersionedRow per key,
// newest first. Nothing else in the process can see a delta; commit is the
// only path from a delta into pages.
//
// # Snapshots
//
// A Snapshot pins a commit version and the table roots that version
// published. SnapshotManager reference counts them so the engine knows the
// oldest version still being read:
//
//	snap := snaps.Acquire(version, roots)
//	defer snaps.Release(snap)
//
// # Cursor
//
// Cursor merges a session's delta with a committed cursor at the snapshot
// root, in key order:
//
//   - a delta row shadows a committed row with the same key
//   - a delta tombstone hides the key from its own session
//   - a committed row carrying another session's id is skipped
//
// The result is the session's own pending writes over everything committed
// before the scan started, and nothing committed after.
package mvcc
