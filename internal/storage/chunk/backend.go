// Package chunk stores sealed, append-only chunks of serialized pages.
package chunk

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// Backend errors.
var (
	ErrChunkNotFound = errors.New("chunk not found")
	ErrBackendClosed = errors.New("chunk backend is closed")
)

// Data is the readable image of one sealed chunk. Bytes stays valid until
// Close.
type Data interface {
	Bytes() []byte
	Close() error
}

// Backend persists whole chunks by id. WriteChunk must be atomic: after a
// crash a chunk either exists in full or not at all.
type Backend interface {
	WriteChunk(id uint32, data []byte) error
	ReadChunk(id uint32) (Data, error)
	RemoveChunk(id uint32) error
	ListChunks() ([]uint32, error)
	Close() error
}

// heapData is chunk data held in ordinary memory.
type heapData []byte

func (d heapData) Bytes() []byte { return d }
func (d heapData) Close() error  { return nil }

// MemBackend keeps chunks in memory. It is safe for concurrent use.
type MemBackend struct {
	mu     sync.RWMutex
	chunks map[uint32][]byte
	closed bool
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{chunks: make(map[uint32][]byte)}
}

// WriteChunk stores a copy of data.
func (m *MemBackend) WriteChunk(id uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBackendClosed
	}
	m.chunks[id] = append([]byte(nil), data...)
	return nil
}

// ReadChunk returns the stored chunk.
func (m *MemBackend) ReadChunk(id uint32) (Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrBackendClosed
	}
	data, ok := m.chunks[id]
	if !ok {
		return nil, errors.Wrapf(ErrChunkNotFound, "chunk %d", id)
	}
	return heapData(data), nil
}

// RemoveChunk deletes a chunk. Removing a missing chunk is not an error.
func (m *MemBackend) RemoveChunk(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBackendClosed
	}
	delete(m.chunks, id)
	return nil
}

// ListChunks returns the stored chunk ids in ascending order.
func (m *MemBackend) ListChunks() ([]uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrBackendClosed
	}
	ids := make([]uint32, 0, len(m.chunks))
	for id := range m.chunks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close marks the backend closed. The chunks are kept so that a test can
// reopen a store over the same backend with Reopen.
func (m *MemBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Reopen clears the closed flag, simulating a process restart against the
// same storage.
func (m *MemBackend) Reopen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = false
}
