// Package deflate produces and consumes the zlib-wrapped (RFC 1950)
// deflate streams used by TIFF compression code 8. It is a thin,
// pool-backed wrapper around github.com/klauspost/compress/zlib so the
// byte stream it emits is interchangeable with any stock zlib decoder.
package deflate

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/ome-io/tiffzarr/corerr"
)

// DefaultLevel is the level used when a caller does not care; it
// matches the deflate default and what most TIFF writers in the wild
// emit for compression code 8.
const DefaultLevel = 6

// MinLevel and MaxLevel bound the accepted compression levels.
const (
	MinLevel = 1
	MaxLevel = 9
)

var writerPool = sync.Pool{
	New: func() any {
		buf := new(bytes.Buffer)
		w, _ := zlib.NewWriterLevel(buf, DefaultLevel)
		return &pooledWriter{writer: w, buf: buf}
	},
}

type pooledWriter struct {
	writer *zlib.Writer
	buf    *bytes.Buffer
}

// Compress produces a zlib-wrapped deflate stream of src at the given
// level (1..9). The result is deterministic for a fixed level and
// input, and its first byte is always the zlib CMF 0x78.
func Compress(src []byte, level int) ([]byte, error) {
	if level < MinLevel || level > MaxLevel {
		return nil, corerr.Newf(corerr.BadTagType, "deflate: level %d out of range [%d,%d]", level, MinLevel, MaxLevel)
	}

	if level == DefaultLevel {
		item := writerPool.Get().(*pooledWriter)
		defer writerPool.Put(item)

		item.buf.Reset()
		item.writer.Reset(item.buf)

		if _, err := item.writer.Write(src); err != nil {
			return nil, err
		}
		if err := item.writer.Close(); err != nil {
			return nil, err
		}

		out := make([]byte, item.buf.Len())
		copy(out, item.buf.Bytes())
		return out, nil
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress consumes a zlib-wrapped deflate stream and returns the
// decoded bytes. Malformed input fails with a CompressionCorrupt error.
func Decompress(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, corerr.Wrap(corerr.CompressionCorrupt, "malformed zlib stream", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, corerr.Wrap(corerr.CompressionCorrupt, "truncated deflate stream", err)
	}
	return out, nil
}

// DecompressInto decompresses src into dst, which must be exactly the
// expected decompressed size. It is used by window reads where the
// caller already knows the uncompressed tile size and wants to avoid
// an extra allocation.
func DecompressInto(dst, src []byte) error {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return corerr.Wrap(corerr.CompressionCorrupt, "malformed zlib stream", err)
	}
	defer r.Close()

	n, err := io.ReadFull(r, dst)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return corerr.Wrap(corerr.CompressionCorrupt, "truncated deflate stream", err)
	}
	if n != len(dst) {
		return corerr.Newf(corerr.CompressionCorrupt, "short read (%d of %d bytes)", n, len(dst))
	}
	return nil
}
