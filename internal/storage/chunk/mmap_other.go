//go:build !unix

package chunk

import (
	"io"
	"os"
)

func mapFile(file *os.File, size int) (Data, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, err
	}
	return heapData(data), nil
}
