package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"

	"vecbt/internal/domain"
	"vecbt/internal/util"
)

// LoadOptions controls how a bar file is read and parsed.
type LoadOptions struct {
	// Mmap maps the file into memory instead of reading it into a heap
	// buffer. Ignored on platforms without mapping support.
	Mmap bool
	// Strict aborts the load on the first malformed row. The default
	// (lenient) skips malformed rows and counts them.
	Strict bool
	Logger *slog.Logger
}

// IOError reports a missing or unreadable source file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("dataset: read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError reports one malformed row. Line numbers are 1-based.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dataset: line %d: %s", e.Line, e.Reason)
}

const fieldCount = 6

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads a timestamp,open,high,low,close,volume file into a Dataset.
// An empty file, or one where every row is malformed (lenient mode), yields
// a valid zero-length Dataset.
func Load(path string, opts LoadOptions) (*Dataset, error) {
	logger := util.OrDefault(opts.Logger)

	var (
		data   []byte
		region io.Closer
		err    error
	)
	if opts.Mmap {
		data, region, err = mapPath(path)
		if errors.Is(err, errMmapUnsupported) {
			logger.Debug("memory mapping unavailable, using buffered read", "path", path)
			opts.Mmap = false
		} else if err != nil {
			return nil, &IOError{Path: path, Err: err}
		}
	}
	if !opts.Mmap {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, &IOError{Path: path, Err: err}
		}
	}

	ds, err := Parse(data, opts)
	if err != nil {
		if region != nil {
			region.Close()
		}
		return nil, err
	}
	ds.backing = region

	if ds.skipped > 0 {
		logger.Warn("skipped malformed rows", "path", path, "skipped", ds.skipped, "loaded", ds.Len())
	}
	logger.Debug("dataset loaded", "path", path, "bars", ds.Len(), "mmap", ds.Mapped())
	return ds, nil
}

// Parse converts raw file contents into a Dataset. See Load for the row
// policy.
func Parse(data []byte, opts LoadOptions) (*Dataset, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	ds := New(bytes.Count(data, []byte{'\n'}) + 1)

	lineNo := 0
	seenContent := false
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		lineNo++

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !seenContent {
			seenContent = true
			if isHeader(line) {
				continue
			}
		}

		bar, reason := parseRow(line)
		if reason != "" {
			if opts.Strict {
				return nil, &ParseError{Line: lineNo, Reason: reason}
			}
			ds.skipped++
			continue
		}
		ds.Append(bar)
	}
	return ds, nil
}

// isHeader reports whether the leading token of line is non-numeric.
func isHeader(line []byte) bool {
	c := line[0]
	return !(c >= '0' && c <= '9') && c != '-' && c != '+' && c != '.'
}

// parseRow parses one trimmed, non-empty line. It returns a non-empty
// reason when the row is malformed. Columns past the sixth are ignored.
func parseRow(line []byte) (domain.Bar, string) {
	var fields [fieldCount][]byte
	n := 0
	for n < fieldCount {
		i := bytes.IndexByte(line, ',')
		if i < 0 {
			fields[n] = bytes.TrimSpace(line)
			n++
			line = nil
			break
		}
		fields[n] = bytes.TrimSpace(line[:i])
		n++
		line = line[i+1:]
	}
	if n < fieldCount {
		return domain.Bar{}, fmt.Sprintf("expected %d fields, got %d", fieldCount, n)
	}

	ts, err := util.ParseTimestamp(string(fields[0]))
	if err != nil {
		return domain.Bar{}, err.Error()
	}

	var vals [fieldCount - 1]float64
	for k := 1; k < fieldCount; k++ {
		v, err := strconv.ParseFloat(string(fields[k]), 64)
		if err != nil {
			return domain.Bar{}, fmt.Sprintf("field %d: %v", k+1, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Bar{}, fmt.Sprintf("field %d: non-finite value %q", k+1, fields[k])
		}
		vals[k-1] = v
	}

	bar := domain.Bar{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}
	if !bar.Valid() {
		return domain.Bar{}, "OHLC invariant violated"
	}
	return bar, ""
}
