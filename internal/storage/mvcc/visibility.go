package mvcc

import "github.com/KilimcininKorOglu/mvstore/internal/storage/page"

// IsVisible reports whether a committed row is visible to session under
// snap:
//
//  1. A row carrying another session's pending write is not visible.
//  2. A row committed after the snapshot is not visible.
//  3. Otherwise the row is visible.
func IsVisible(row page.Row, snap *Snapshot, session uint64) bool {
	if row.Session != 0 && row.Session != session {
		return false
	}
	if snap != nil && row.Version > snap.Version {
		return false
	}
	return true
}

// IsOwnVisible reports whether a pending version is visible to session.
// Pending versions are only ever visible to their owner, and a tombstone
// hides the key.
func IsOwnVisible(row *VersionedRow, session uint64) bool {
	return row.SessionID == session && !row.Deleted
}
