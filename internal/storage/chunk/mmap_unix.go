//go:build unix

package chunk

import (
	"os"

	"golang.org/x/sys/unix"
)

// mappedData is a read-only shared mapping of a chunk file.
type mappedData struct {
	data []byte
}

func (m *mappedData) Bytes() []byte { return m.data }

func (m *mappedData) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

func mapFile(file *os.File, size int) (Data, error) {
	data, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &mappedData{data: data}, nil
}
