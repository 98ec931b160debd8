package tiff

import (
	"context"
	"io"
	"os"

	"github.com/ome-io/tiffzarr/corerr"
)

// ByteSource is the minimal random-access byte collaborator the codec
// reads through. File-backed, HTTP-range-backed, or in-memory
// implementations all satisfy it; the codec never assumes more.
type ByteSource interface {
	// Length returns the total size of the underlying byte range.
	Length() int64
	// Read returns exactly length bytes starting at offset. A read
	// that would run past end-of-file fails with TruncatedFile.
	Read(ctx context.Context, offset int64, length int64) ([]byte, error)
}

// MemoryByteSource serves reads out of an in-memory buffer.
type MemoryByteSource struct {
	data []byte
}

// NewMemoryByteSource wraps data. The slice is not copied; callers
// must not mutate it afterwards.
func NewMemoryByteSource(data []byte) *MemoryByteSource {
	return &MemoryByteSource{data: data}
}

func (m *MemoryByteSource) Length() int64 { return int64(len(m.data)) }

func (m *MemoryByteSource) Read(ctx context.Context, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, corerr.Wrap(corerr.Cancelled, "read cancelled", err)
	}
	if offset < 0 || length < 0 || offset+length > int64(len(m.data)) {
		return nil, corerr.Newf(corerr.TruncatedFile, "read [%d,%d) past end of %d-byte buffer", offset, offset+length, len(m.data))
	}
	out := make([]byte, length)
	copy(out, m.data[offset:offset+length])
	return out, nil
}

// FileByteSource serves reads out of an *os.File opened for reading.
// Reads are independent pread-style calls; concurrent, non-overlapping
// reads from multiple goroutines are safe.
type FileByteSource struct {
	f    *os.File
	size int64
}

// OpenFileByteSource opens path for reading and stats its size.
func OpenFileByteSource(path string) (*FileByteSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileByteSource{f: f, size: info.Size()}, nil
}

func (s *FileByteSource) Length() int64 { return s.size }

func (s *FileByteSource) Close() error { return s.f.Close() }

func (s *FileByteSource) Read(ctx context.Context, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, corerr.Wrap(corerr.Cancelled, "read cancelled", err)
	}
	if offset < 0 || length < 0 || offset+length > s.size {
		return nil, corerr.Newf(corerr.TruncatedFile, "read [%d,%d) past end of %d-byte file", offset, offset+length, s.size)
	}
	buf := make([]byte, length)
	n, err := s.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, corerr.Wrap(corerr.TruncatedFile, "short read", err)
	}
	if int64(n) != length {
		return nil, corerr.Newf(corerr.TruncatedFile, "short read: got %d of %d bytes", n, length)
	}
	return buf, nil
}
