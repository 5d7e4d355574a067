package chunk

import (
	"sort"
	"sync"

	"github.com/KilimcininKorOglu/mvstore/internal/logging"
	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Store errors.
var (
	ErrWriterBusy  = errors.New("a chunk writer is already open")
	ErrStoreClosed = errors.New("chunk store is closed")
)

type sealed struct {
	meta *Meta
	data Data
}

// Store tracks the sealed chunks of a backend and hands out the single
// chunk writer. Sealed chunks are immutable; the store's lock only guards
// the chunk map, so that a chunk is never unmapped while a View reads it.
type Store struct {
	backend Backend
	logger  logging.Logger
	storeID uuid.UUID

	mu       sync.RWMutex
	chunks   map[uint32]*sealed
	latest   uint32
	nextID   uint32
	writing  bool
	readOnly bool
	closed   bool
}

// Open loads and validates every chunk of the backend.
func Open(backend Backend, readOnly bool, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Store{
		backend:  backend,
		logger:   logger,
		chunks:   make(map[uint32]*sealed),
		nextID:   1,
		readOnly: readOnly,
	}

	ids, err := backend.ListChunks()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id == 0 || id > codec.MaxChunkID {
			s.closeAll()
			return nil, storage.Corruptf("chunk id %d out of range", id)
		}
		data, err := backend.ReadChunk(id)
		if err != nil {
			s.closeAll()
			return nil, err
		}
		meta, err := parseChunk(id, data.Bytes())
		if err != nil {
			data.Close()
			s.closeAll()
			return nil, err
		}
		s.chunks[id] = &sealed{meta: meta, data: data}
		if id > s.latest {
			s.latest = id
		}
	}

	if s.latest == 0 {
		s.storeID = uuid.New()
	} else {
		s.storeID = s.chunks[s.latest].meta.StoreID
		s.nextID = s.latest + 1
	}
	for id, c := range s.chunks {
		if c.meta.StoreID != s.storeID {
			s.closeAll()
			return nil, storage.Corruptf("chunk %d belongs to store %s, not %s", id, c.meta.StoreID, s.storeID)
		}
	}

	logger.Debug("chunk store opened", "chunks", len(s.chunks), "latest", s.latest, "store_id", s.storeID.String())
	return s, nil
}

// StoreID returns the identity written into every chunk.
func (s *Store) StoreID() uuid.UUID { return s.storeID }

// Latest returns the metadata of the newest chunk.
func (s *Store) Latest() (*Meta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == 0 {
		return nil, false
	}
	return s.chunks[s.latest].meta, true
}

// Chunks returns the metadata of every sealed chunk in id order.
func (s *Store) Chunks() []*Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	metas := make([]*Meta, 0, len(s.chunks))
	for _, c := range s.chunks {
		metas = append(metas, c.meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })
	return metas
}

// Len returns the number of sealed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// View calls fn with the bytes of the page at pos: from the page's offset
// up to its maximum length, truncated at the chunk's page area. The slice
// is only valid inside fn.
func (s *Store) View(pos codec.Position, fn func([]byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	c, ok := s.chunks[pos.ChunkID()]
	if !ok {
		return storage.Corruptf("page %s: chunk %d not found", pos, pos.ChunkID())
	}
	off := int64(pos.Offset())
	if off < HeaderSize || off >= c.meta.Length {
		return storage.Corruptf("page %s: offset outside chunk of %d bytes", pos, c.meta.Length)
	}
	end := off + int64(pos.MaxLength())
	if end > c.meta.Length {
		end = c.meta.Length
	}
	return fn(c.data.Bytes()[off:end])
}

// Remove deletes a sealed chunk. The newest chunk carries the current
// roots and cannot be removed.
func (s *Store) Remove(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.readOnly {
		return storage.ErrReadOnly
	}
	if id == s.latest {
		return storage.InvalidArgumentf("chunk %d is the newest chunk", id)
	}
	c, ok := s.chunks[id]
	if !ok {
		return errors.Wrapf(ErrChunkNotFound, "chunk %d", id)
	}
	if err := s.backend.RemoveChunk(id); err != nil {
		return err
	}
	delete(s.chunks, id)
	s.logger.Debug("chunk removed", "chunk", id)
	return c.data.Close()
}

// NewWriter opens the next chunk for writing. Only one writer may be open.
func (s *Store) NewWriter() (*Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.readOnly {
		return nil, storage.ErrReadOnly
	}
	if s.writing {
		return nil, ErrWriterBusy
	}
	if s.nextID > codec.MaxChunkID {
		return nil, storage.InvalidArgumentf("chunk id space exhausted")
	}
	s.writing = true

	w := &Writer{store: s, id: s.nextID, buf: codec.NewWriter(4096)}
	appendHeader(w.buf, w.id, s.storeID)
	return w, nil
}

// Close releases every mapped chunk and closes the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.closeAll()
	return s.backend.Close()
}

func (s *Store) closeAll() {
	for id, c := range s.chunks {
		c.data.Close()
		delete(s.chunks, id)
	}
}

// release frees the writer slot. The writer's id is never handed out again,
// whether or not its chunk was sealed.
func (s *Store) release(id uint32) {
	s.mu.Lock()
	s.writing = false
	if s.nextID <= id {
		s.nextID = id + 1
	}
	s.mu.Unlock()
}

// Writer appends pages to the chunk being built. It is not safe for
// concurrent use.
type Writer struct {
	store *Store
	id    uint32
	buf   *codec.Writer
	pages int
	done  bool
}

// ChunkID returns the id the chunk will be sealed under.
func (w *Writer) ChunkID() uint32 { return w.id }

// Size returns the bytes written so far, header included.
func (w *Writer) Size() int { return w.buf.Len() }

// Append writes serialized page bytes and returns their position.
func (w *Writer) Append(data []byte, typ codec.PageType) (codec.Position, error) {
	if w.done {
		return 0, ErrStoreClosed
	}
	pos, err := codec.GetPagePos(w.id, int64(w.buf.Len()), len(data), typ)
	if err != nil {
		return 0, err
	}
	w.buf.Write(data)
	w.pages++
	return pos, nil
}

// Seal writes the footer, persists the chunk and registers it as the newest
// chunk. Once Seal returns nil the chunk is durable; on error nothing is
// registered, the writer is released and its id is retired.
func (w *Writer) Seal(version uint64, roots map[string]codec.Position) (*Meta, error) {
	if w.done {
		return nil, ErrStoreClosed
	}
	w.done = true
	defer w.store.release(w.id)

	meta := &Meta{
		ID:        w.id,
		PageCount: w.pages,
		Length:    int64(w.buf.Len()),
		Version:   version,
		StoreID:   w.store.storeID,
		Roots:     make(map[string]codec.Position, len(roots)),
	}
	for name, pos := range roots {
		meta.Roots[name] = pos
	}
	appendFooter(w.buf, meta)

	data := w.buf.Bytes()
	if err := w.store.backend.WriteChunk(w.id, data); err != nil {
		return nil, err
	}

	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	s.chunks[w.id] = &sealed{meta: meta, data: heapData(data)}
	s.latest = w.id
	s.logger.Debug("chunk sealed", "chunk", w.id, "pages", w.pages, "bytes", len(data), "version", version)
	return meta, nil
}

// Abort discards the chunk without writing it. Its id is retired.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.store.release(w.id)
}
