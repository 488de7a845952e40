// Low-level read primitives for run files.
//
// A reader walks one file forward with a bufio.Scanner, decoding each line
// into its kind and raw body. Errors are prefixed with path:line so a bad
// line can be found without re-scanning. The only backwards read is tail,
// used to fetch the stop document from the end of a plain file without
// touching the rest of it.
package runlog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// tailChunk is the block size for reading a file backwards.
const tailChunk = 4096

// reader yields the lines of one run file in order.
type reader struct {
	src     *source
	scanner *bufio.Scanner
	path    string
	line    int // 1-based number of the last line returned
}

// newReader opens path for a single forward pass. The caller must Close it.
func newReader(path string, config Config) (*reader, error) {
	src, err := open(path)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(src.r)
	scanner.Buffer(make([]byte, config.ReadBuffer), config.MaxRecordSize)
	return &reader{src: src, scanner: scanner, path: path}, nil
}

// next returns the kind and raw body of the next line, or io.EOF once the
// file is exhausted. The body aliases the scanner buffer and is only valid
// until the following call.
func (r *reader) next() (Kind, []byte, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", nil, fmt.Errorf("%s:%d: %w", r.path, r.line+1, err)
		}
		return "", nil, io.EOF
	}
	r.line++
	kind, body, err := decodeLine(r.scanner.Bytes())
	if err != nil {
		return "", nil, r.wrap(err)
	}
	return kind, body, nil
}

// wrap adds the current position to an error found while handling a line.
func (r *reader) wrap(err error) error {
	return fmt.Errorf("%s:%d: %w", r.path, r.line, err)
}

func (r *reader) Close() error {
	return r.src.Close()
}

// first reads the first line of path.
func first(path string, config Config) (Kind, []byte, error) {
	r, err := newReader(path, config)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()

	kind, body, err := r.next()
	if err != nil {
		return "", nil, err
	}
	return kind, bytes.Clone(body), nil
}

// last reads the final line of path. A file with no lines returns an empty
// kind and no error.
func last(path string, config Config) (Kind, []byte, error) {
	src, err := open(path)
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	var data []byte
	if src.codec == CodecPlain {
		data, err = tail(src.f, config.MaxRecordSize)
		if err != nil {
			return "", nil, fmt.Errorf("%s: tail: %w", path, err)
		}
	} else {
		scanner := bufio.NewScanner(src.r)
		scanner.Buffer(make([]byte, config.ReadBuffer), config.MaxRecordSize)
		for scanner.Scan() {
			data = append(data[:0], scanner.Bytes()...)
		}
		if err := scanner.Err(); err != nil {
			return "", nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if data == nil {
		return "", nil, nil
	}

	kind, body, err := decodeLine(data)
	if err != nil {
		return "", nil, fmt.Errorf("%s: last line: %w", path, err)
	}
	return kind, body, nil
}

// tail reads the final line of f backwards from the end, one chunk at a
// time, so the cost is proportional to the line rather than the file. A
// single trailing newline is ignored.
func tail(f *os.File, max int) ([]byte, error) {
	end, err := size(f)
	if err != nil {
		return nil, err
	}
	if end == 0 {
		return nil, nil
	}

	var b [1]byte
	if _, err := f.ReadAt(b[:], end-1); err != nil {
		return nil, err
	}
	if b[0] == '\n' {
		end--
	}

	var buf []byte // bytes [pos, end)
	pos := end
	for pos > 0 {
		n := min(int64(tailChunk), pos)
		chunk := make([]byte, n)
		if _, err := f.ReadAt(chunk, pos-n); err != nil && err != io.EOF {
			return nil, err
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			return append(chunk[i+1:], buf...), nil
		}
		buf = append(chunk, buf...)
		pos -= n
		if len(buf) > max {
			return nil, bufio.ErrTooLong
		}
	}
	return buf, nil
}

func size(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
