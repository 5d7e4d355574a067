package chunk

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

const pebbleKeyPrefix = "chunk/"

// PebbleBackend stores each chunk as one value in a Pebble database.
// A Pebble batch commit is atomic, which gives WriteChunk its all-or-nothing
// guarantee.
type PebbleBackend struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

// NewPebbleBackend opens (or creates) a Pebble database in dir.
func NewPebbleBackend(dir string, sync bool) (*PebbleBackend, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", dir)
	}
	wo := pebble.NoSync
	if sync {
		wo = pebble.Sync
	}
	return &PebbleBackend{db: db, writeOpts: wo}, nil
}

func pebbleKey(id uint32) []byte {
	return []byte(fmt.Sprintf("%s%08x", pebbleKeyPrefix, id))
}

// WriteChunk stores the chunk under its key.
func (p *PebbleBackend) WriteChunk(id uint32, data []byte) error {
	if err := p.db.Set(pebbleKey(id), data, p.writeOpts); err != nil {
		return errors.Wrapf(err, "write chunk %d", id)
	}
	return nil
}

// ReadChunk copies the chunk out of Pebble.
func (p *PebbleBackend) ReadChunk(id uint32) (Data, error) {
	val, closer, err := p.db.Get(pebbleKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errors.Wrapf(ErrChunkNotFound, "chunk %d", id)
		}
		return nil, errors.Wrapf(err, "read chunk %d", id)
	}
	data := append([]byte(nil), val...)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return heapData(data), nil
}

// RemoveChunk deletes the chunk's key.
func (p *PebbleBackend) RemoveChunk(id uint32) error {
	if err := p.db.Delete(pebbleKey(id), p.writeOpts); err != nil {
		return errors.Wrapf(err, "remove chunk %d", id)
	}
	return nil
}

// ListChunks scans the chunk key range in order.
func (p *PebbleBackend) ListChunks() ([]uint32, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(pebbleKeyPrefix),
		UpperBound: []byte("chunk0"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "list chunks")
	}
	defer iter.Close()

	var ids []uint32
	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		id, err := strconv.ParseUint(key[len(pebbleKeyPrefix):], 16, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(id))
	}
	return ids, iter.Error()
}

// Close flushes and closes the database.
func (p *PebbleBackend) Close() error {
	return p.db.Close()
}
