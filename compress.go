// Transparent decompression for run files.
//
// Archived runs are often stored compressed. The codec is detected from the
// leading magic bytes rather than the file extension, so a renamed file still
// opens correctly. Compressed sources can only be streamed: the stop lookup
// falls back from a backwards tail read to a full pass for them.
package runlog

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Source codecs.
const (
	CodecPlain = 0
	CodecZstd  = 1
	CodecGzip  = 2
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// source is one scoped open of a run file.
type source struct {
	f       *os.File
	r       io.Reader
	codec   int
	release func()
}

// open opens path and wraps it in a decompressor when the magic bytes ask
// for one. The caller must Close the source.
func open(path string) (*source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var magic [4]byte
	n, err := f.ReadAt(magic[:], 0)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, err
	}

	s := &source{f: f, r: f, codec: sniff(magic[:n])}
	switch s.codec {
	case CodecZstd:
		// One goroutine per decoder: each accessor call owns its own
		// short-lived stream.
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: zstd: %w", path, err)
		}
		s.r = dec
		s.release = dec.Close
	case CodecGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: gzip: %w", path, err)
		}
		s.r = zr
		s.release = func() { zr.Close() }
	}
	return s, nil
}

// Close releases the decompressor, if any, and the file.
func (s *source) Close() error {
	if s.release != nil {
		s.release()
	}
	return s.f.Close()
}

// sniff returns the codec for the leading bytes of a file.
func sniff(magic []byte) int {
	switch {
	case bytes.HasPrefix(magic, zstdMagic):
		return CodecZstd
	case bytes.HasPrefix(magic, gzipMagic):
		return CodecGzip
	default:
		return CodecPlain
	}
}
