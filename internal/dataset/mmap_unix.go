//go:build unix

package dataset

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

var errMmapUnsupported = errors.New("memory mapping not supported")

// mappedRegion is a read-only shared mapping of a whole file.
type mappedRegion struct {
	data []byte
}

func (r *mappedRegion) Close() error {
	return unix.Munmap(r.data)
}

// mapPath maps the file at path read-only. Empty files are not mapped and
// return a nil region.
func mapPath(path string) ([]byte, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil, nil
	}
	if int64(int(size)) != size {
		return nil, nil, errors.New("file too large to map")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, &mappedRegion{data: data}, nil
}
