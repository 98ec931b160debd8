// Package pyramid builds the (PlaneSelection, level) -> IFD mapping
// the read facade uses for every pixel access: pyramid-level detection
// across the three on-disk conventions this bridge recognises, and
// the DimensionOrder-driven base-IFD index arithmetic, including its
// multi-file OME-TIFF variant.
package pyramid

import (
	"context"

	"github.com/ome-io/tiffzarr/corerr"
	"github.com/ome-io/tiffzarr/omexml"
	"github.com/ome-io/tiffzarr/tiff"
)

// Info describes a detected pyramid.
type Info struct {
	Levels      int
	UsesSubIFDs bool
	Widths      []int
	Heights     []int
}

// Detect runs the three pyramid-detection strategies against an
// opened file's base IFD, in the order the bridge prefers them: SubIFD
// pyramid, legacy OME multi-image chain, cloud-optimised
// strictly-decreasing-size IFD chain. If none apply, Levels is 1.
func Detect(ctx context.Context, f *tiff.File, base *tiff.IFD, chain []*tiff.IFD, omeImageCount int) (*Info, error) {
	if subs := base.SubIFDOffsets(); len(subs) > 0 {
		widths := []int{base.Width()}
		heights := []int{base.Height()}
		for _, off := range subs {
			sub, err := f.ReadIFD(ctx, off)
			if err != nil {
				return nil, err
			}
			widths = append(widths, sub.Width())
			heights = append(heights, sub.Height())
		}
		tiff.Logger.Printf("pyramid strategy: SubIFDs (%d levels)", len(subs)+1)
		return &Info{Levels: len(subs) + 1, UsesSubIFDs: true, Widths: widths, Heights: heights}, nil
	}

	if omeImageCount > 1 {
		widths := make([]int, 0, omeImageCount)
		heights := make([]int, 0, omeImageCount)
		planesPerImage := len(chain) / omeImageCount
		if planesPerImage < 1 {
			planesPerImage = 1
		}
		for level := 0; level < omeImageCount; level++ {
			idx := level * planesPerImage
			if idx >= len(chain) {
				break
			}
			widths = append(widths, chain[idx].Width())
			heights = append(heights, chain[idx].Height())
		}
		if len(widths) > 1 {
			tiff.Logger.Printf("pyramid strategy: legacy OME multi-image chain (%d levels)", len(widths))
			return &Info{Levels: len(widths), UsesSubIFDs: false, Widths: widths, Heights: heights}, nil
		}
	}

	if len(chain) > 1 {
		widths := []int{chain[0].Width()}
		heights := []int{chain[0].Height()}
		decreasing := true
		for i := 1; i < len(chain); i++ {
			if chain[i].Width() >= widths[i-1] || chain[i].Height() >= heights[i-1] {
				decreasing = false
				break
			}
			widths = append(widths, chain[i].Width())
			heights = append(heights, chain[i].Height())
		}
		if decreasing && len(widths) > 1 {
			tiff.Logger.Printf("pyramid strategy: cloud-optimised overview chain (%d levels)", len(widths))
			return &Info{Levels: len(widths), UsesSubIFDs: false, Widths: widths, Heights: heights}, nil
		}
	}

	tiff.Logger.Printf("pyramid strategy: none detected, single level")
	return &Info{Levels: 1, UsesSubIFDs: false, Widths: []int{base.Width()}, Heights: []int{base.Height()}}, nil
}

// LevelIFD resolves level against base's pyramid. level 0 always
// returns base itself. chainIndex is base's position in the main
// chain (used for the legacy-pyramid arithmetic); planesPerImage is
// sizeC*sizeZ*sizeT for the legacy strategy.
func LevelIFD(ctx context.Context, f *tiff.File, info *Info, base *tiff.IFD, chain []*tiff.IFD, chainIndex, planesPerImage, level int) (*tiff.IFD, error) {
	if level == 0 {
		return base, nil
	}
	if level < 0 || level >= info.Levels {
		return nil, corerr.Newf(corerr.NoSuchLevel, "level %d out of range [0,%d)", level, info.Levels)
	}

	if info.UsesSubIFDs {
		subs := base.SubIFDOffsets()
		if level-1 >= len(subs) {
			return nil, corerr.Newf(corerr.NoSuchLevel, "level %d has no corresponding SubIFD", level)
		}
		return f.ReadIFD(ctx, subs[level-1])
	}

	idx := chainIndex + level*planesPerImage
	if idx < 0 || idx >= len(chain) {
		return nil, corerr.Newf(corerr.NoSuchLevel, "level %d maps to chain index %d, out of range", level, idx)
	}
	return chain[idx], nil
}

// PlaneToIfdIndex implements the fastest-to-slowest DimensionOrder
// decomposition of (c, z, t) into a base-chain IFD index:
// i0 + size(d0)*i1 + size(d0)*size(d1)*i2.
func PlaneToIfdIndex(order omexml.DimensionOrder, sizeC, sizeZ, sizeT, c, z, t int) (int, error) {
	if !order.Valid() {
		return 0, corerr.Newf(corerr.InvalidDimensionOrder, "unsupported DimensionOrder %q", order)
	}
	sizes := map[byte]int{'C': sizeC, 'Z': sizeZ, 'T': sizeT}
	idxs := map[byte]int{'C': c, 'Z': z, 'T': t}
	tail := order.Tail()

	index := 0
	multiplier := 1
	for _, d := range tail {
		index += idxs[d] * multiplier
		multiplier *= sizes[d]
	}
	return index, nil
}

// IfdIndexToPlane is the exact inverse of PlaneToIfdIndex.
func IfdIndexToPlane(order omexml.DimensionOrder, sizeC, sizeZ, sizeT, index int) (c, z, t int, err error) {
	if !order.Valid() {
		return 0, 0, 0, corerr.Newf(corerr.InvalidDimensionOrder, "unsupported DimensionOrder %q", order)
	}
	sizes := map[byte]int{'C': sizeC, 'Z': sizeZ, 'T': sizeT}
	tail := order.Tail()

	vals := map[byte]int{}
	remaining := index
	for _, d := range tail {
		size := sizes[d]
		if size <= 0 {
			size = 1
		}
		vals[d] = remaining % size
		remaining /= size
	}
	return vals['C'], vals['Z'], vals['T'], nil
}
