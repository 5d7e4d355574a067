package chunk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	chunkExt = ".chunk"
	tmpExt   = ".tmp"
)

// FileBackend stores one file per chunk. Files are written with the
// tmp + rename pattern and read back through a read-only memory map.
type FileBackend struct {
	dir  string
	sync bool
}

// NewFileBackend creates a backend rooted at dir. Stale temporary files
// left by an interrupted write are removed.
func NewFileBackend(dir string, sync bool) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create chunk directory %s", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*"+chunkExt+tmpExt))
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		os.Remove(m)
	}
	return &FileBackend{dir: dir, sync: sync}, nil
}

// Dir returns the chunk directory.
func (f *FileBackend) Dir() string { return f.dir }

func (f *FileBackend) path(id uint32) string {
	return filepath.Join(f.dir, fmt.Sprintf("%08x%s", id, chunkExt))
}

// WriteChunk writes the chunk atomically.
func (f *FileBackend) WriteChunk(id uint32, data []byte) error {
	path := f.path(id)
	tmpPath := path + tmpExt

	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "create chunk %d", id)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return errors.Wrapf(err, "write chunk %d", id)
	}

	if f.sync {
		if err := file.Sync(); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return errors.Wrapf(err, "sync chunk %d", id)
		}
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "close chunk %d", id)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "rename chunk %d", id)
	}
	if f.sync {
		return syncDir(f.dir)
	}
	return nil
}

// ReadChunk maps the chunk file into memory.
func (f *FileBackend) ReadChunk(id uint32) (Data, error) {
	file, err := os.Open(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrChunkNotFound, "chunk %d", id)
		}
		return nil, errors.Wrapf(err, "open chunk %d", id)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat chunk %d", id)
	}
	if info.Size() == 0 {
		return heapData(nil), nil
	}

	data, err := mapFile(file, int(info.Size()))
	if err != nil {
		return nil, errors.Wrapf(err, "map chunk %d", id)
	}
	return data, nil
}

// RemoveChunk deletes the chunk file.
func (f *FileBackend) RemoveChunk(id uint32) error {
	if err := os.Remove(f.path(id)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove chunk %d", id)
	}
	return nil
}

// ListChunks returns the ids of the chunk files in ascending order.
func (f *FileBackend) ListChunks() ([]uint32, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list chunks in %s", f.dir)
	}
	var ids []uint32
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, chunkExt) {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, chunkExt), 16, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close is a no-op; mapped chunks are released by their Data.
func (f *FileBackend) Close() error { return nil }

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.Wrapf(err, "sync directory %s", dir)
	}
	return nil
}
