// Package engine implements the mvstore storage engine that combines the
// chunk store, page cache, B-trees and sessions into one interface.
//
// # Overview
//
//   - Tables are copy-on-write B-trees keyed by value.Value
//   - Sessions stage writes in private deltas and see their own changes
//   - Commit folds a session's deltas into new pages written as one chunk
//   - Readers use the table roots of the version current when they start
//
// # Creating an Engine
//
//	opts := storage.DefaultOptions().WithBackend(storage.BackendPebble)
//	eng, err := engine.Open("/var/lib/mvstore", opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
// # Basic Operations
//
//	sid := eng.Begin()
//	err = eng.Write("users", value.Long(1), []value.Value{value.String("alice")}, sid)
//	row, found, err := eng.Read("users", value.Long(1), sid)
//	err = eng.Commit(sid)
//	if errors.Is(err, storage.ErrConcurrentUpdate) {
//	    // retry in a new session
//	}
//
// # Scans
//
//	c, err := eng.Scan("users", btree.Between(value.Long(1), value.Long(100)), sid)
//	defer c.Close()
//	for c.Next() {
//	    key, cols := c.Key(), c.Values()
//	}
//
// # Chunk Reclamation
//
// Each chunk counts the reachable pages it holds. A chunk whose count drops
// to zero at version V is removed once no snapshot older than V is open.
// The newest chunk is never removed. Counts are rebuilt on open by walking
// every table root.
package engine
