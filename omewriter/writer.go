// Package omewriter drives the plane-by-plane assembly of a
// multiscale pixel description into a complete OME-TIFF, reading
// planes through a caller-supplied PlaneReader with bounded
// concurrency, in the style of a bounded worker pool feeding ordered
// result slots.
package omewriter

import (
	"context"
	"sync"

	"github.com/ome-io/tiffzarr/corerr"
	"github.com/ome-io/tiffzarr/deflate"
	"github.com/ome-io/tiffzarr/dtype"
	"github.com/ome-io/tiffzarr/omexml"
	"github.com/ome-io/tiffzarr/pyramid"
	"github.com/ome-io/tiffzarr/tiff"
)

// PlaneReader supplies the dense pixel buffer for one (level, c, z, t)
// plane, in little-endian row-major order, length equal to
// width(L)*height(L)*bytesPerElement. Implementations may internally
// decompress from any backing store; Read must respect ctx
// cancellation.
type PlaneReader interface {
	Read(ctx context.Context, level, c, z, t int) ([]byte, error)
}

// PlaneReaderFunc adapts a plain function to a PlaneReader.
type PlaneReaderFunc func(ctx context.Context, level, c, z, t int) ([]byte, error)

func (f PlaneReaderFunc) Read(ctx context.Context, level, c, z, t int) ([]byte, error) {
	return f(ctx, level, c, z, t)
}

// LevelDims is the pixel width/height of one pyramid level.
type LevelDims struct {
	Width, Height int
}

// Multiscale describes the pixel data to write: base dimensions,
// element type, dimension order, channel metadata, and the width/height
// of each pyramid level (index 0 is the full-resolution level).
type Multiscale struct {
	SizeC, SizeZ, SizeT int
	ElementType         dtype.ArrayDType
	DimensionOrder      omexml.DimensionOrder
	Levels              []LevelDims

	Channels []omexml.OmeChannel

	Name, Creator string

	HasPhysicalSizeX, HasPhysicalSizeY, HasPhysicalSizeZ bool
	PhysicalSizeX, PhysicalSizeY, PhysicalSizeZ           float64
	PhysicalSizeXUnit, PhysicalSizeYUnit, PhysicalSizeZUnit string
}

// WriteOptions controls the physical layout and compression of the
// emitted TIFF.
type WriteOptions struct {
	// Concurrency bounds how many planes are read and tiled at once.
	// Zero defaults to 4.
	Concurrency int

	Compression  tiff.CompressionCode
	DeflateLevel int

	TileWidth, TileHeight int

	// Format is passed through to (tiff.Write): "classic", "bigtiff",
	// or "" / "auto".
	Format string
}

// Write drives the full write orchestration: enumerate every (c, z, t)
// plane exactly once, in an order that is the exact inverse of
// (pyramid.PlaneToIfdIndex) for the given dimension order, read every
// pyramid level of each plane through reader, tile it, and hand the
// resulting descriptors to (tiff.Write).
//
// Completed planes are placed in their IFD slot k regardless of which
// order their reads complete in; the returned bytes are therefore
// deterministic given a deterministic reader.
func Write(ctx context.Context, ms Multiscale, reader PlaneReader, opts WriteOptions) ([]byte, error) {
	if !ms.DimensionOrder.Valid() {
		return nil, corerr.Newf(corerr.InvalidDimensionOrder, "unsupported DimensionOrder %q", ms.DimensionOrder)
	}
	if len(ms.Levels) == 0 {
		return nil, corerr.New(corerr.UnsupportedTagCombination, "multiscale has no levels")
	}
	bpe, err := dtype.BytesPerElement(ms.ElementType)
	if err != nil {
		return nil, err
	}

	totalPlanes := ms.SizeC * ms.SizeZ * ms.SizeT
	if totalPlanes < 1 {
		return nil, corerr.New(corerr.UnsupportedTagCombination, "multiscale has zero planes")
	}

	xmlDoc, err := buildOmeXml(ms)
	if err != nil {
		return nil, err
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}

	descs := make([]*tiff.IFDDescriptor, totalPlanes)
	errs := make([]error, totalPlanes)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range jobs {
				desc, err := buildPlaneDescriptor(ctx, ms, reader, opts, bpe, k)
				descs[k] = desc
				errs[k] = err
			}
		}()
	}

feed:
	for k := 0; k < totalPlanes; k++ {
		select {
		case jobs <- k:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, corerr.Wrap(corerr.Cancelled, "write cancelled", err)
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	descs[0].ImageDescription = xmlDoc

	return tiff.Write(descs, tiff.WriteOptions{Format: opts.Format})
}

// buildPlaneDescriptor reads and tiles every pyramid level of plane k,
// returning a level-0 IFDDescriptor with levels 1..N attached as
// SubIFDs.
func buildPlaneDescriptor(ctx context.Context, ms Multiscale, reader PlaneReader, opts WriteOptions, bpe, k int) (*tiff.IFDDescriptor, error) {
	c, z, t, err := pyramid.IfdIndexToPlane(ms.DimensionOrder, ms.SizeC, ms.SizeZ, ms.SizeT, k)
	if err != nil {
		return nil, err
	}

	var top *tiff.IFDDescriptor
	var subs []*tiff.IFDDescriptor
	for level, dims := range ms.Levels {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		pixels, err := reader.Read(ctx, level, c, z, t)
		if err != nil {
			return nil, err
		}

		desc, err := tileLevel(ms.ElementType, dims, bpe, pixels, opts)
		if err != nil {
			return nil, err
		}
		if level == 0 {
			top = desc
		} else {
			desc.NewSubfileType = true
			subs = append(subs, desc)
		}
	}
	top.SubIFDs = subs
	return top, nil
}

func tileLevel(elementType dtype.ArrayDType, dims LevelDims, bpe int, pixels []byte, opts WriteOptions) (*tiff.IFDDescriptor, error) {
	sampleFormat, bits, err := dtype.ArrayDtypeToTiff(elementType)
	if err != nil {
		return nil, err
	}
	tiffSampleFormat, err := arrayFormatToTiff(sampleFormat)
	if err != nil {
		return nil, err
	}

	tileW, tileH := opts.TileWidth, opts.TileHeight
	if tileW <= 0 || tileW > dims.Width {
		tileW = dims.Width
	}
	if tileH <= 0 || tileH > dims.Height {
		tileH = dims.Height
	}

	compression := opts.Compression
	if compression == 0 {
		compression = tiff.CompressionNone
	}

	tiles := tiff.TileImage(pixels, dims.Width, dims.Height, bpe, tileW, tileH)
	if compression == tiff.CompressionDeflate {
		compressed := make([][]byte, len(tiles))
		level := opts.DeflateLevel
		for i, tile := range tiles {
			c, err := deflate.Compress(tile, level)
			if err != nil {
				return nil, err
			}
			compressed[i] = c
		}
		tiles = compressed
	}

	return &tiff.IFDDescriptor{
		Width: dims.Width, Height: dims.Height,
		BitsPerSample: bits,
		SampleFormat:  tiffSampleFormat,
		Compression:   compression,
		TileWidth:     tileW, TileHeight: tileH,
		Tiles: tiles,
	}, nil
}

func arrayFormatToTiff(f dtype.RasterSampleFormat) (tiff.SampleFormatCode, error) {
	switch f {
	case dtype.Unsigned:
		return tiff.SampleFormatUnsigned, nil
	case dtype.Signed:
		return tiff.SampleFormatSigned, nil
	case dtype.Float:
		return tiff.SampleFormatFloat, nil
	default:
		return 0, corerr.Newf(corerr.UnsupportedDtype, "unrecognised RasterSampleFormat %d", f)
	}
}

func buildOmeXml(ms Multiscale) (string, error) {
	return omexml.Generate(omexml.GenerateInput{
		Name:           ms.Name,
		Creator:        ms.Creator,
		DimensionOrder: ms.DimensionOrder,
		ElementType:    ms.ElementType,
		SizeX:          ms.Levels[0].Width, SizeY: ms.Levels[0].Height,
		SizeZ: ms.SizeZ, SizeC: ms.SizeC, SizeT: ms.SizeT,
		HasPhysicalSizeX: ms.HasPhysicalSizeX, PhysicalSizeX: ms.PhysicalSizeX, PhysicalSizeXUnit: ms.PhysicalSizeXUnit,
		HasPhysicalSizeY: ms.HasPhysicalSizeY, PhysicalSizeY: ms.PhysicalSizeY, PhysicalSizeYUnit: ms.PhysicalSizeYUnit,
		HasPhysicalSizeZ: ms.HasPhysicalSizeZ, PhysicalSizeZ: ms.PhysicalSizeZ, PhysicalSizeZUnit: ms.PhysicalSizeZUnit,
		Channels: ms.Channels,
	})
}
