//go:build !unix

package dataset

import (
	"errors"
	"io"
)

var errMmapUnsupported = errors.New("memory mapping not supported")

func mapPath(string) ([]byte, io.Closer, error) {
	return nil, nil, errMmapUnsupported
}
