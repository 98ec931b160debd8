package pyramid

import (
	"context"

	"github.com/ome-io/tiffzarr/corerr"
	"github.com/ome-io/tiffzarr/omexml"
	"github.com/ome-io/tiffzarr/tiff"
)

// Indexer is the (PlaneSelection, level) -> IFD function the read
// facade drives for every pixel access.
type Indexer struct {
	f     *tiff.File
	chain []*tiff.IFD
	info  *Info

	pixels         omexml.OmePixels
	multiFile      bool
	lookup         map[PlaneKey]int
	planesPerImage int
}

// New builds an Indexer for the first Image in parsed, against the
// main IFD chain of an already-opened file.
func New(ctx context.Context, f *tiff.File, parsed *omexml.ParseResult) (*Indexer, error) {
	if len(parsed.Images) == 0 {
		return nil, corerr.New(corerr.InvalidXml, "no Image element with Pixels found")
	}
	pixels := parsed.Images[0].Pixels

	chain, err := f.MainChain(ctx)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, corerr.New(corerr.TruncatedFile, "file has no IFDs")
	}

	planesPerImage := pixels.SizeC * pixels.SizeZ * pixels.SizeT
	if planesPerImage < 1 {
		planesPerImage = 1
	}

	filtered, err := FilterForRootUUID(pixels, parsed.RootUUID)
	if err != nil {
		return nil, err
	}

	info, err := Detect(ctx, f, chain[0], chain, len(parsed.Images))
	if err != nil {
		return nil, err
	}

	return &Indexer{
		f: f, chain: chain, info: info,
		pixels: filtered.Pixels, multiFile: filtered.MultiFile, lookup: filtered.IFDLookup,
		planesPerImage: planesPerImage,
	}, nil
}

// Pixels returns the (possibly multi-file-filtered) OmePixels the
// indexer was built from.
func (idx *Indexer) Pixels() omexml.OmePixels { return idx.pixels }

// Pyramid returns the detected pyramid info.
func (idx *Indexer) Pyramid() *Info { return idx.info }

// IFD resolves (c, z, t, level) to a parsed IFD.
func (idx *Indexer) IFD(ctx context.Context, c, z, t, level int) (*tiff.IFD, error) {
	if !idx.pixels.PlaneSelectionValid(c, z, t) {
		return nil, corerr.Newf(corerr.NoSuchPlane, "(c=%d,z=%d,t=%d) out of range", c, z, t)
	}

	var base *tiff.IFD
	var chainIndex int

	if idx.multiFile {
		chainIdx, err := LookupIFD(idx.lookup, c, z, t)
		if err != nil {
			return nil, err
		}
		if chainIdx < 0 || chainIdx >= len(idx.chain) {
			return nil, corerr.Newf(corerr.NoSuchPlane, "ifd index %d out of range", chainIdx)
		}
		base, chainIndex = idx.chain[chainIdx], chainIdx
	} else {
		planeIdx, err := PlaneToIfdIndex(idx.pixels.DimensionOrder, idx.pixels.SizeC, idx.pixels.SizeZ, idx.pixels.SizeT, c, z, t)
		if err != nil {
			return nil, err
		}
		if planeIdx < 0 || planeIdx >= len(idx.chain) {
			return nil, corerr.Newf(corerr.NoSuchPlane, "plane index %d out of range", planeIdx)
		}
		base, chainIndex = idx.chain[planeIdx], planeIdx
	}

	return LevelIFD(ctx, idx.f, idx.info, base, idx.chain, chainIndex, idx.planesPerImage, level)
}
