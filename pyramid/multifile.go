package pyramid

import (
	"sort"

	"github.com/ome-io/tiffzarr/corerr"
	"github.com/ome-io/tiffzarr/omexml"
)

// PlaneKey is a dense (c, z, t) coordinate used as a lookup-table key.
type PlaneKey struct {
	C, Z, T int
}

// FilterResult is the outcome of partitioning a multi-file OmePixels
// against the currently-opened file's root UUID.
type FilterResult struct {
	Pixels    omexml.OmePixels
	IFDLookup map[PlaneKey]int
	MultiFile bool
}

// FilterForRootUUID partitions pixels' TiffData entries into local
// (UUID absent or equal to rootUUID) and remote. If every entry is
// local, no filtering is needed and MultiFile is false. Otherwise the
// local entries' global (c, z, t) values are remapped to dense 0-based
// local indices, producing a reduced OmePixels and an explicit
// (c, z, t) -> IFD lookup table.
func FilterForRootUUID(pixels omexml.OmePixels, rootUUID string) (*FilterResult, error) {
	var local []omexml.TiffDataEntry
	var anyRemote bool
	for _, td := range pixels.TiffData {
		if td.UUID == "" || td.UUID == rootUUID {
			local = append(local, td)
		} else {
			anyRemote = true
		}
	}

	if !anyRemote {
		return &FilterResult{Pixels: pixels, MultiFile: false}, nil
	}

	type plane struct {
		global PlaneKey
		ifd    int
	}
	var planes []plane

	for _, td := range local {
		for i := 0; i < td.PlaneCount; i++ {
			c, z, t, err := IfdIndexToPlane(pixels.DimensionOrder, pixels.SizeC, pixels.SizeZ, pixels.SizeT,
				mustIndex(pixels, td)+i)
			if err != nil {
				return nil, err
			}
			planes = append(planes, plane{global: PlaneKey{C: c, Z: z, T: t}, ifd: td.IFD + i})
		}
	}

	cSet, zSet, tSet := map[int]bool{}, map[int]bool{}, map[int]bool{}
	for _, p := range planes {
		cSet[p.global.C], zSet[p.global.Z], tSet[p.global.T] = true, true, true
	}
	cList, zList, tList := sortedKeys(cSet), sortedKeys(zSet), sortedKeys(tSet)
	cIndex, zIndex, tIndex := indexOf(cList), indexOf(zList), indexOf(tList)

	lookup := make(map[PlaneKey]int, len(planes))
	for _, p := range planes {
		key := PlaneKey{C: cIndex[p.global.C], Z: zIndex[p.global.Z], T: tIndex[p.global.T]}
		lookup[key] = p.ifd
	}

	filtered := pixels
	filtered.SizeC, filtered.SizeZ, filtered.SizeT = len(cList), len(zList), len(tList)
	filtered.TiffData = local

	if len(pixels.Channels) > 0 {
		var channels []omexml.OmeChannel
		for _, c := range cList {
			if c >= 0 && c < len(pixels.Channels) {
				channels = append(channels, pixels.Channels[c])
			}
		}
		filtered.Channels = channels
	}

	return &FilterResult{Pixels: filtered, IFDLookup: lookup, MultiFile: true}, nil
}

// mustIndex computes the base IFD index for a TiffData entry's
// starting plane against the entry's pixels' global dimension sizes.
func mustIndex(pixels omexml.OmePixels, td omexml.TiffDataEntry) int {
	idx, err := PlaneToIfdIndex(pixels.DimensionOrder, pixels.SizeC, pixels.SizeZ, pixels.SizeT, td.FirstC, td.FirstZ, td.FirstT)
	if err != nil {
		return 0
	}
	return idx
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func indexOf(sorted []int) map[int]int {
	m := make(map[int]int, len(sorted))
	for i, v := range sorted {
		m[v] = i
	}
	return m
}

// LookupIFD resolves a local (c, z, t) selection against a multi-file
// lookup table.
func LookupIFD(lookup map[PlaneKey]int, c, z, t int) (int, error) {
	ifd, ok := lookup[PlaneKey{C: c, Z: z, T: t}]
	if !ok {
		return 0, corerr.Newf(corerr.NoSuchPlane, "no IFD mapped for (c=%d,z=%d,t=%d)", c, z, t)
	}
	return ifd, nil
}
