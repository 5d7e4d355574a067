// Package storage provides the shared error taxonomy and options for the
// mvstore storage engine.
//
// # Overview
//
// mvstore is an embeddable, copy-on-write B-tree store with multi-version
// concurrency control. The packages under internal/storage are layered
// leaves first:
//
//   - codec: 64-bit page positions, length classes, varints, array shifts
//   - value: typed row values with comparison and overflow-checked arithmetic
//   - chunk: append-only chunk files over a pluggable backend (file, pebble, memory)
//   - page: tagged leaf/node pages with checksummed, optionally compressed encoding
//   - cache: bounded page cache with LRU and 2Q eviction and reference pinning
//   - btree: copy-on-write builder, point search and ordered range cursor
//   - mvcc: per-session deltas, snapshots and the merging visibility cursor
//   - tx: session lifecycle and serialized commits
//   - engine: the public read/scan/write/commit surface
//
// # Error Handling
//
// Every failure surfaced by the core matches exactly one of the kinds
// declared here:
//
//	ErrInvalidArgument   // position field overflow, API misuse
//	ErrTruncatedData     // varint or page body ended early
//	ErrCorruptPage       // checksum or structural violation
//	ErrConcurrentUpdate  // first committer won, retry the transaction
//
// Backend I/O errors are wrapped with context and returned unchanged in
// kind. Lookups of missing keys are not errors.
//
// # Options
//
//	opts := storage.DefaultOptions().
//	    WithBackend(storage.BackendPebble).
//	    WithCache(storage.CacheConfig{Policy: storage.PolicyLRU, CapacityBytes: 64 << 20})
package storage
