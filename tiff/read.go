package tiff

import (
	"context"
	"sync"

	"github.com/ome-io/tiffzarr/corerr"
	"github.com/ome-io/tiffzarr/deflate"
	"github.com/ome-io/tiffzarr/dtype"
)

// File is an opened TIFF container: its byte source, its header, and a
// cache of IFDs already parsed, keyed by absolute offset. Parsed IFDs
// are immutable once cached; concurrent reads share the same cache
// safely.
type File struct {
	src    ByteSource
	header *header

	mu    sync.Mutex
	cache map[uint64]*IFD
}

// Open parses the file header and validates magic/endianness. IFDs are
// not read eagerly; use MainChain or ReadIFD.
func Open(ctx context.Context, src ByteSource) (*File, error) {
	h, err := readHeader(ctx, src)
	if err != nil {
		return nil, err
	}
	return &File{src: src, header: h, cache: make(map[uint64]*IFD)}, nil
}

func (f *File) Format() Format          { return f.header.Format }
func (f *File) FirstIFDOffset() uint64  { return f.header.FirstIFDOff }

// ReadIFD parses (or returns the cached parse of) the IFD at offset.
func (f *File) ReadIFD(ctx context.Context, offset uint64) (*IFD, error) {
	f.mu.Lock()
	if cached, ok := f.cache[offset]; ok {
		f.mu.Unlock()
		Logger.Printf("IFD cache hit at offset %d", offset)
		return cached, nil
	}
	f.mu.Unlock()

	ifd, err := readIFDAt(ctx, f.src, f.header.Format, offset)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	// Idempotent on repeated identical parses; last writer wins.
	f.cache[offset] = ifd
	f.mu.Unlock()
	return ifd, nil
}

// MainChain walks the next-IFD links from the first IFD to the end of
// the chain, returning every main (non-Sub) IFD in order.
func (f *File) MainChain(ctx context.Context) ([]*IFD, error) {
	var chain []*IFD
	offset := f.header.FirstIFDOff
	for offset != 0 {
		ifd, err := f.ReadIFD(ctx, offset)
		if err != nil {
			return nil, err
		}
		chain = append(chain, ifd)
		offset = ifd.NextOffset
	}
	return chain, nil
}

// SubIFDs resolves the SubIFDs tag of ifd into parsed child IFDs.
func (f *File) SubIFDs(ctx context.Context, ifd *IFD) ([]*IFD, error) {
	offsets := ifd.SubIFDOffsets()
	subs := make([]*IFD, 0, len(offsets))
	for _, off := range offsets {
		sub, err := f.ReadIFD(ctx, off)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// ElementType resolves ifd's (SampleFormat, BitsPerSample) pair to the
// canonical array dtype.
func ElementType(ifd *IFD) (dtype.ArrayDType, error) {
	format, err := sampleFormatToRaster(ifd.SampleFormat())
	if err != nil {
		return dtype.Invalid, err
	}
	return dtype.TiffToArrayDtype(format, ifd.BitsPerSample())
}

func bytesPerElementFor(ifd *IFD) (int, error) {
	format, err := sampleFormatToRaster(ifd.SampleFormat())
	if err != nil {
		return 0, err
	}
	d, err := dtype.TiffToArrayDtype(format, ifd.BitsPerSample())
	if err != nil {
		return 0, err
	}
	return dtype.BytesPerElement(d)
}

func sampleFormatToRaster(s SampleFormatCode) (dtype.RasterSampleFormat, error) {
	switch s {
	case SampleFormatUnsigned:
		return dtype.Unsigned, nil
	case SampleFormatSigned:
		return dtype.Signed, nil
	case SampleFormatFloat:
		return dtype.Float, nil
	default:
		return dtype.Unsigned, corerr.Newf(corerr.BadTagType, "unrecognised SampleFormat %d", s)
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// SliceTiles returns the number of tiles across and down that cover a
// width x height image with the given tile geometry.
func SliceTiles(width, height, tileW, tileH int) (across, down int) {
	return ceilDiv(width, tileW), ceilDiv(height, tileH)
}

// blockGeometry returns the tile/strip grid for ifd: tile width/height
// (or strip width/rowsPerStrip), and the number of tiles across.
func blockGeometry(ifd *IFD) (tileW, tileH, across int) {
	width, height := ifd.Width(), ifd.Height()
	if ifd.IsTiled() {
		tileW, tileH = ifd.TileWidth(), ifd.TileLength()
		across, _ = SliceTiles(width, height, tileW, tileH)
		return tileW, tileH, across
	}
	rows := ifd.RowsPerStrip()
	if rows <= 0 {
		rows = height
	}
	return width, rows, 1
}

// blockRect returns the pixel rectangle [x0,y0,x0+w,y0+h) covered by
// block index idx. For tiles, w/h is the full (zero-padded) tile size
// rather than its clipped-to-image size; for strips, w is the image
// width and h is the strip's row count, which for the last strip is
// clipped to the image height.
func blockRect(ifd *IFD, idx, tileW, tileH, across int) (x0, y0, w, h int) {
	row := idx / across
	col := idx % across
	x0 = col * tileW
	y0 = row * tileH
	if ifd.IsTiled() {
		return x0, y0, tileW, tileH
	}
	height := ifd.Height()
	stripRows := tileH
	if remaining := height - y0; remaining < stripRows {
		stripRows = remaining
	}
	return x0, y0, ifd.Width(), stripRows
}

func (f *File) fetchBlock(ctx context.Context, ifd *IFD, idx int, wantLen int) ([]byte, error) {
	offsets, counts, err := ifd.TileOrStripOffsets()
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(offsets) {
		return nil, corerr.Newf(corerr.BadOffset, "block index %d out of range [0,%d)", idx, len(offsets))
	}

	raw, err := f.src.Read(ctx, int64(offsets[idx]), int64(counts[idx]))
	if err != nil {
		return nil, err
	}

	var data []byte
	switch ifd.Compression() {
	case CompressionNone:
		data = raw
	case CompressionDeflate:
		data, err = deflate.Decompress(raw)
		if err != nil {
			return nil, err
		}
	default:
		return nil, corerr.Newf(corerr.UnsupportedTagCombination, "unsupported Compression code %d", ifd.Compression())
	}

	if len(data) < wantLen {
		padded := make([]byte, wantLen)
		copy(padded, data)
		data = padded
	}
	return data, nil
}

// ReadWindow decodes the pixel rectangle [left,top,right,bottom) of
// ifd into a row-major, little-endian buffer of
// (right-left)*(bottom-top)*bytesPerElement bytes.
func (f *File) ReadWindow(ctx context.Context, ifd *IFD, left, top, right, bottom int) ([]byte, error) {
	bpe, err := bytesPerElementFor(ifd)
	if err != nil {
		return nil, err
	}
	outW, outH := right-left, bottom-top
	if outW <= 0 || outH <= 0 {
		return nil, corerr.Newf(corerr.BadOffset, "empty window [%d,%d,%d,%d)", left, top, right, bottom)
	}
	out := make([]byte, outW*outH*bpe)

	tileW, tileH, across := blockGeometry(ifd)
	if tileW <= 0 || tileH <= 0 {
		return nil, corerr.New(corerr.UnsupportedTagCombination, "IFD has zero-sized tile/strip geometry")
	}

	colStart, colEnd := left/tileW, (right-1)/tileW
	rowStart, rowEnd := top/tileH, (bottom-1)/tileH

	for row := rowStart; row <= rowEnd; row++ {
		for col := colStart; col <= colEnd; col++ {
			idx := row*across + col
			blockX, blockY, blockW, blockH := blockRect(ifd, idx, tileW, tileH, across)

			data, err := f.fetchBlock(ctx, ifd, idx, blockW*blockH*bpe)
			if err != nil {
				return nil, err
			}

			ix0, iy0 := max(left, blockX), max(top, blockY)
			ix1, iy1 := min(right, blockX+blockW), min(bottom, blockY+blockH)
			rowBytes := (ix1 - ix0) * bpe
			if rowBytes <= 0 {
				continue
			}
			for y := iy0; y < iy1; y++ {
				srcOff := ((y-blockY)*blockW + (ix0 - blockX)) * bpe
				dstOff := ((y-top)*outW + (ix0 - left)) * bpe
				copy(out[dstOff:dstOff+rowBytes], data[srcOff:srcOff+rowBytes])
			}
		}
	}

	return out, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
