package engine

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/KilimcininKorOglu/mvstore/internal/logging"
	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/btree"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/cache"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/chunk"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/mvcc"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/page"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/tx"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
	"github.com/cockroachdb/errors"
)

// Directory names under the engine path.
const (
	ChunkDir  = "chunks"
	PebbleDir = "pebble"
)

// rootSet is the published state of one committed version.
type rootSet struct {
	version uint64
	tables  map[string]codec.Position
}

// Engine is the storage engine. It is safe for concurrent use by many
// sessions.
type Engine struct {
	opts   storage.Options
	path   string
	logger logging.Logger

	store    *chunk.Store
	pages    *cache.PageCache
	sessions *tx.Manager
	snaps    *mvcc.SnapshotManager

	current atomic.Pointer[rootSet]

	// changes is guarded by the commit lock.
	changes *mvcc.ChangeLog

	// liveMu guards chunk liveness and orders snapshot acquisition against
	// publication and reclamation.
	liveMu    sync.Mutex
	live      map[uint32]int
	dead      map[uint32]uint64
	reclaimed uint64

	conflicts uint64

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates an engine at path.
func Open(path string, opts storage.Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	backend, err := openBackend(path, opts)
	if err != nil {
		return nil, err
	}
	store, err := chunk.Open(backend, opts.ReadOnly, opts.Logger)
	if err != nil {
		backend.Close()
		return nil, err
	}

	e := &Engine{
		opts:     opts,
		path:     path,
		logger:   opts.Logger.WithFields("component", "engine"),
		store:    store,
		sessions: tx.NewManager(),
		snaps:    mvcc.NewSnapshotManager(),
		changes:  mvcc.NewChangeLog(),
		live:     make(map[uint32]int),
		dead:     make(map[uint32]uint64),
	}
	e.pages, err = cache.New(opts.Cache, func(pos codec.Position) (*page.Page, error) {
		return page.Read(store, pos)
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	rs := &rootSet{tables: make(map[string]codec.Position)}
	if meta, ok := store.Latest(); ok {
		rs.version = meta.Version
		for name, pos := range meta.Roots {
			if pos != 0 {
				rs.tables[name] = pos
			}
		}
	}
	e.current.Store(rs)

	if err := e.rebuildLiveness(); err != nil {
		store.Close()
		return nil, err
	}
	if !opts.ReadOnly {
		if err := e.GC(); err != nil {
			e.logger.Warn("chunk reclamation failed", "error", err)
		}
	}

	e.logger.Info("engine opened",
		"path", path,
		"backend", string(opts.Backend),
		"chunks", store.Len(),
		"version", rs.version,
		"tables", len(rs.tables),
	)
	return e, nil
}

func openBackend(path string, opts storage.Options) (chunk.Backend, error) {
	if opts.Backend == storage.BackendMemory {
		return chunk.NewMemBackend(), nil
	}

	dir := filepath.Join(path, ChunkDir)
	if opts.Backend == storage.BackendPebble {
		dir = filepath.Join(path, PebbleDir)
	}
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) || !opts.CreateIfNotExists || opts.ReadOnly {
			return nil, errors.Wrapf(err, "open %s", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}

	if opts.Backend == storage.BackendPebble {
		return chunk.NewPebbleBackend(dir, opts.SyncOnWrite)
	}
	return chunk.NewFileBackend(dir, opts.SyncOnWrite)
}

// rebuildLiveness counts the reachable pages of every chunk from the
// latest roots.
func (e *Engine) rebuildLiveness() error {
	rs := e.current.Load()
	for _, m := range e.store.Chunks() {
		e.live[m.ID] = 0
	}
	for _, root := range rs.tables {
		err := btree.Walk(e.pages, root, func(pos codec.Position) error {
			e.live[pos.ChunkID()]++
			return nil
		})
		if err != nil {
			return err
		}
	}
	e.markDead(rs.version)
	return nil
}

// markDead records version as the death version of every chunk that has
// no reachable page left. The caller holds liveMu or owns e exclusively.
func (e *Engine) markDead(version uint64) {
	latest, _ := e.store.Latest()
	for id, n := range e.live {
		if n > 0 || (latest != nil && id == latest.ID) {
			continue
		}
		if _, ok := e.dead[id]; !ok {
			e.dead[id] = version
		}
	}
}

// Close closes the engine. Open sessions are abandoned.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	if n := e.sessions.ActiveCount(); n > 0 {
		e.logger.Warn("closing with active sessions", "sessions", n)
	}
	err := e.store.Close()
	e.logger.Info("engine closed", "path", e.path, "version", e.current.Load().version)
	return err
}

// Begin starts a session and returns its ID.
func (e *Engine) Begin() uint64 {
	return e.sessions.Begin().ID
}

// session returns the active session sid, locked.
func (e *Engine) session(sid uint64) (*tx.Session, error) {
	s, err := e.sessions.Get(sid)
	if err != nil {
		return nil, err
	}
	s.Lock()
	if !s.IsActive() {
		s.Unlock()
		return nil, errors.Wrapf(storage.ErrSessionClosed, "session %d", sid)
	}
	return s, nil
}

func (e *Engine) checkOpen() error {
	if e.closed {
		return storage.ErrEngineClosed
	}
	return nil
}

// acquire pins the current version.
func (e *Engine) acquire() *mvcc.Snapshot {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	rs := e.current.Load()
	return e.snaps.Acquire(rs.version, rs.tables)
}

// acquireWrite pins the current version for a write by s and records it as
// the version s writes against. Publication prunes the change log under the
// same lock, so no change newer than that version is dropped while s is
// active.
func (e *Engine) acquireWrite(s *tx.Session) *mvcc.Snapshot {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	rs := e.current.Load()
	s.NoteRead(rs.version)
	return e.snaps.Acquire(rs.version, rs.tables)
}

func (e *Engine) release(snap *mvcc.Snapshot) {
	if err := e.snaps.Release(snap); err != nil {
		e.logger.Error("snapshot release failed", "version", snap.Version, "error", err)
	}
}

// Read returns the row for key in table as seen by session sid. A missing
// table or key is reported with found == false.
func (e *Engine) Read(table string, key value.Value, sid uint64) ([]value.Value, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return nil, false, err
	}
	s, err := e.session(sid)
	if err != nil {
		return nil, false, err
	}
	defer s.Unlock()

	if d := s.Delta(table); d != nil {
		if r, ok := d.Get(key); ok {
			if !mvcc.IsOwnVisible(r, sid) {
				return nil, false, nil
			}
			return r.Values, true, nil
		}
	}

	snap := e.acquire()
	defer e.release(snap)
	row, found, err := btree.New(e.pages, snap.Root(table)).Search(key)
	if err != nil || !found || !mvcc.IsVisible(row, snap, sid) {
		return nil, false, err
	}
	return row.Values, true, nil
}

// Scan opens a cursor over r in table as seen by session sid. The cursor
// reads the version current at the call and must be closed.
func (e *Engine) Scan(table string, r btree.Range, sid uint64) (*mvcc.Cursor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	s, err := e.session(sid)
	if err != nil {
		return nil, err
	}
	defer s.Unlock()

	snap := e.acquire()
	tree := btree.New(e.pages, snap.Root(table))
	return mvcc.NewCursor(tree, r, sid, s.Delta(table), snap, e.snaps), nil
}

// Write stages row as the new value of key in table.
func (e *Engine) Write(table string, key value.Value, row []value.Value, sid uint64) error {
	return e.stage(table, &mvcc.VersionedRow{Key: key, Values: row}, sid)
}

// Delete stages a tombstone for key in table. Deleting a missing key is
// not an error.
func (e *Engine) Delete(table string, key value.Value, sid uint64) error {
	return e.stage(table, &mvcc.VersionedRow{Key: key, Deleted: true}, sid)
}

func (e *Engine) stage(table string, row *mvcc.VersionedRow, sid uint64) error {
	if table == "" {
		return storage.InvalidArgumentf("table name is empty")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return err
	}
	if e.opts.ReadOnly {
		return storage.ErrReadOnly
	}
	s, err := e.session(sid)
	if err != nil {
		return err
	}
	defer s.Unlock()

	staged := false
	if d := s.Delta(table); d != nil {
		_, staged = d.Get(row.Key)
	}
	if !staged {
		snap := e.acquireWrite(s)
		base, err := e.committedVersion(snap.Root(table), row.Key)
		e.release(snap)
		if err != nil {
			return err
		}
		row.Base = base
		row.ReadAt = snap.Version
	}
	s.Stage(table, row)
	return nil
}

// committedVersion returns the version of key's committed row in the tree
// at root, 0 if absent.
func (e *Engine) committedVersion(root codec.Position, key value.Value) (uint64, error) {
	row, found, err := btree.New(e.pages, root).Search(key)
	if err != nil || !found {
		return 0, err
	}
	return row.Version, nil
}

// Savepoint returns a marker for RollbackTo.
func (e *Engine) Savepoint(sid uint64) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	s, err := e.session(sid)
	if err != nil {
		return 0, err
	}
	defer s.Unlock()
	return s.Savepoint(), nil
}

// RollbackTo discards the changes sid staged after sp.
func (e *Engine) RollbackTo(sid uint64, sp uint64) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return err
	}
	s, err := e.session(sid)
	if err != nil {
		return err
	}
	defer s.Unlock()
	s.RollbackTo(sp)
	return nil
}

// Rollback discards every change of sid and ends the session.
func (e *Engine) Rollback(sid uint64) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return err
	}
	s, err := e.session(sid)
	if err != nil {
		return err
	}
	defer s.Unlock()
	return e.sessions.Rollback(s)
}

// Commit makes the changes of sid durable and visible to scans started
// afterwards. It fails with storage.ErrConcurrentUpdate when another
// session committed a change to one of the written keys since sid first
// wrote it; the session is then aborted. Once the new version is durable
// Commit returns nil; failing to reclaim old chunks afterwards is logged
// and retried by the next commit.
func (e *Engine) Commit(sid uint64) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return err
	}
	s, err := e.session(sid)
	if err != nil {
		return err
	}
	defer s.Unlock()
	if err := e.sessions.Commit(s, e.apply); err != nil {
		return err
	}
	if err := e.GC(); err != nil {
		e.logger.WithSession(sid).Warn("chunk reclamation failed", "error", err)
	}
	return nil
}

// apply folds the deltas of s into a new chunk. It runs under the commit
// lock.
func (e *Engine) apply(s *tx.Session) error {
	tables := s.Tables()
	if len(tables) == 0 {
		return nil
	}
	if e.opts.ReadOnly {
		return storage.ErrReadOnly
	}

	cur := e.current.Load()
	if err := e.validate(s, cur, tables); err != nil {
		return err
	}

	w, err := e.store.NewWriter()
	if err != nil {
		return err
	}
	version := cur.version + 1
	next := &rootSet{version: version, tables: make(map[string]codec.Position, len(cur.tables)+len(tables))}
	for name, pos := range cur.tables {
		next.tables[name] = pos
	}

	var (
		superseded []codec.Position
		written    []*page.Page
	)
	for _, table := range tables {
		b, err := btree.NewBuilder(e.pages, cur.tables[table], e.opts.SplitSize)
		if err != nil {
			w.Abort()
			return err
		}
		for _, r := range s.Delta(table).Rows(btree.Range{}) {
			if r.Deleted {
				_, err = b.Delete(r.Key)
			} else {
				err = b.Put(r.Key, page.Row{Version: version, Values: r.Values})
			}
			if err != nil {
				w.Abort()
				return err
			}
		}
		root, err := b.Save(w, e.opts.Compression)
		if err != nil {
			w.Abort()
			return err
		}
		superseded = append(superseded, b.Superseded()...)
		written = append(written, b.Written()...)
		if root == 0 {
			delete(next.tables, table)
		} else {
			next.tables[table] = root
		}
	}

	meta, err := w.Seal(version, next.tables)
	if err != nil {
		return errors.Wrapf(err, "seal chunk for version %d", version)
	}
	for _, p := range written {
		e.pages.Put(p.Pos(), p)
	}

	e.liveMu.Lock()
	e.current.Store(next)
	e.live[meta.ID] = meta.PageCount
	for _, pos := range superseded {
		e.live[pos.ChunkID()]--
		e.pages.Invalidate(pos)
	}
	e.markDead(version)
	for _, table := range tables {
		for _, r := range s.Delta(table).Rows(btree.Range{}) {
			e.changes.Record(table, r.Key, version)
		}
	}
	floor, writing := e.sessions.OldestRead(s.ID)
	if !writing {
		floor = version
	}
	e.changes.Prune(floor)
	e.liveMu.Unlock()

	e.logger.WithSession(s.ID).Debug("commit",
		"version", version,
		"chunk", meta.ID,
		"pages", meta.PageCount,
		"keys", s.PendingCount(),
	)
	return nil
}

// validate enforces first-committer-wins for every staged key.
func (e *Engine) validate(s *tx.Session, cur *rootSet, tables []string) error {
	for _, table := range tables {
		for _, r := range s.Delta(table).Rows(btree.Range{}) {
			committed, err := e.committedVersion(cur.tables[table], r.Key)
			if err != nil {
				return err
			}
			changed := e.changes.LastChange(table, r.Key)
			if committed != r.Base || changed > r.ReadAt {
				if committed > changed {
					changed = committed
				}
				atomic.AddUint64(&e.conflicts, 1)
				e.logger.WithSession(s.ID).Warn("commit conflict",
					"table", table,
					"key", r.Key.String(),
					"base", r.Base,
					"read_at", r.ReadAt,
					"changed", changed,
				)
				return errors.Wrapf(storage.ErrConcurrentUpdate,
					"table %q key %s changed at version %d since session %d wrote it at version %d",
					table, r.Key, changed, s.ID, r.ReadAt)
			}
		}
	}
	return nil
}

// GC removes every chunk that no open snapshot can reach.
func (e *Engine) GC() error {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	if e.opts.ReadOnly {
		return nil
	}

	oldest, reading := e.snaps.Oldest()
	latest, _ := e.store.Latest()
	ids := make([]uint32, 0, len(e.dead))
	for id, diedAt := range e.dead {
		if latest != nil && id == latest.ID {
			continue
		}
		if reading && oldest < diedAt {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var reclaimErr error
	for _, id := range ids {
		if err := e.store.Remove(id); err != nil && !errors.Is(err, chunk.ErrChunkNotFound) {
			reclaimErr = errors.CombineErrors(reclaimErr, errors.Wrapf(err, "reclaim chunk %d", id))
			continue
		}
		delete(e.dead, id)
		delete(e.live, id)
		e.reclaimed++
		e.logger.Info("chunk reclaimed", "chunk", id)
	}
	return reclaimErr
}

// Tables returns the names of the committed tables in the current version.
func (e *Engine) Tables() []string {
	rs := e.current.Load()
	names := make([]string, 0, len(rs.tables))
	for name := range rs.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Version returns the current committed version.
func (e *Engine) Version() uint64 {
	return e.current.Load().version
}

// Chunks returns the metadata of every stored chunk, oldest first.
func (e *Engine) Chunks() []*chunk.Meta {
	return e.store.Chunks()
}

// Depth returns the number of levels of table's tree.
func (e *Engine) Depth(table string) (int, error) {
	return btree.New(e.pages, e.current.Load().tables[table]).Depth()
}
