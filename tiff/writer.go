package tiff

import (
	"encoding/binary"

	"github.com/ome-io/tiffzarr/corerr"
)

// IFDDescriptor is the writer's input for one image directory: its
// geometry, its already-tiled (and already-compressed, if
// Compression is not CompressionNone) pixel blocks, and an optional
// list of sub-resolution children. Tiles must be in row-major tile
// order (left-to-right, top-to-bottom); for a strip layout (TileWidth
// == 0) each entry is one strip of RowsPerStrip rows.
type IFDDescriptor struct {
	Width, Height int
	BitsPerSample int
	SampleFormat  SampleFormatCode
	Compression   CompressionCode

	TileWidth, TileHeight int
	RowsPerStrip          int

	NewSubfileType   bool
	ImageDescription string

	Tiles    [][]byte
	SubIFDs  []*IFDDescriptor
}

// WriteOptions controls format selection for Write.
type WriteOptions struct {
	// Format is "classic", "bigtiff", or "" / "auto" (the default):
	// classic unless the estimated size requires an upgrade.
	Format string
}

// Write serialises a main-IFD chain (with any attached SubIFDs) into a
// single TIFF byte buffer, following the two-pass placement algorithm:
// resolve tag sizes, place absolute offsets depth-first, then write.
func Write(mainIFDs []*IFDDescriptor, opts WriteOptions) ([]byte, error) {
	format, err := chooseFormat(mainIFDs, opts.Format)
	if err != nil {
		return nil, err
	}

	resolvedMains := make([]*resolvedIFD, len(mainIFDs))
	for i, d := range mainIFDs {
		r, err := resolveNode(d, format)
		if err != nil {
			return nil, err
		}
		resolvedMains[i] = r
	}

	cursor := uint64(headerSize(format))
	for _, r := range resolvedMains {
		cursor = placeTree(r, cursor)
	}
	totalSize := cursor

	if format == FormatClassic && totalSize > classicOffsetLimit {
		return nil, corerr.Newf(corerr.FileTooLarge, "classic TIFF output would be %d bytes, exceeding the 2^32-2 limit", totalSize)
	}

	for i, r := range resolvedMains {
		if i < len(resolvedMains)-1 {
			r.nextOffsetValue = resolvedMains[i+1].ifdOffset
		} else {
			r.nextOffsetValue = 0
		}
		patchTree(r)
	}

	buf := make([]byte, totalSize)
	firstOff := uint64(0)
	if len(resolvedMains) > 0 {
		firstOff = resolvedMains[0].ifdOffset
	}
	writeHeader(buf, format, firstOff)

	for _, r := range resolvedMains {
		writeTree(buf, r, format)
	}

	return buf, nil
}

// chooseFormat runs a size estimate (resolve + place against a
// notional classic layout, discarding the result) to decide whether
// an "auto" request needs to upgrade to BigTIFF, and validates an
// explicit request against the same estimate.
func chooseFormat(mainIFDs []*IFDDescriptor, requested string) (Format, error) {
	if requested == "bigtiff" {
		return FormatBigTIFF, nil
	}

	estimate, err := estimateTotalSize(mainIFDs, FormatClassic)
	if err != nil {
		return FormatClassic, err
	}

	if estimate <= bigtiffUpgradeThreshold {
		return FormatClassic, nil
	}
	if requested == "classic" {
		return FormatClassic, corerr.Newf(corerr.FileTooLarge, "estimated classic TIFF size %d exceeds the auto-upgrade threshold and format=classic was requested", estimate)
	}
	return FormatBigTIFF, nil
}

func estimateTotalSize(mainIFDs []*IFDDescriptor, format Format) (uint64, error) {
	cursor := uint64(headerSize(format))
	for _, d := range mainIFDs {
		r, err := resolveNode(d, format)
		if err != nil {
			return 0, err
		}
		cursor = placeTree(r, cursor)
	}
	return cursor, nil
}

// resolvedEntry is one IFD entry after size resolution: its
// serialised value bytes (which may later be overwritten in place by
// patchTree, without changing their length), and if its payload does
// not fit inline, its offset within the IFD's overflow region.
type resolvedEntry struct {
	ID            TagID
	Type          TypeCode
	Count         uint64
	Raw           []byte
	needsOverflow bool
	overflowAt    int
}

type resolvedIFD struct {
	entries  []resolvedEntry
	tiles    [][]byte
	children []*resolvedIFD

	entryBlockSize int
	overflowSize   int
	tileDataSize   int

	ifdOffset       uint64
	overflowOffset  uint64
	tileDataOffset  uint64
	nextOffsetValue uint64
}

func serializeUints(vals []uint64, typ TypeCode) []byte {
	width := typeSize(typ)
	out := make([]byte, width*len(vals))
	for i, v := range vals {
		chunk := out[i*width : (i+1)*width]
		switch width {
		case 1:
			chunk[0] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(chunk, uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(chunk, uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(chunk, v)
		}
	}
	return out
}

func resolveNode(d *IFDDescriptor, format Format) (*resolvedIFD, error) {
	offsetType := TypeLong
	if format == FormatBigTIFF {
		offsetType = TypeLong8
	}

	var entries []resolvedEntry
	add := func(id TagID, typ TypeCode, vals []uint64) {
		entries = append(entries, resolvedEntry{ID: id, Type: typ, Count: uint64(len(vals)), Raw: serializeUints(vals, typ)})
	}
	addASCII := func(id TagID, s string) {
		raw := append([]byte(s), 0)
		entries = append(entries, resolvedEntry{ID: id, Type: TypeASCII, Count: uint64(len(raw)), Raw: raw})
	}

	add(TagImageWidth, TypeLong, []uint64{uint64(d.Width)})
	add(TagImageLength, TypeLong, []uint64{uint64(d.Height)})
	add(TagBitsPerSample, TypeShort, []uint64{uint64(d.BitsPerSample)})
	add(TagCompression, TypeShort, []uint64{uint64(d.Compression)})
	add(TagPhotometricInterp, TypeShort, []uint64{uint64(PhotometricMinIsBlack)})
	add(TagSamplesPerPixel, TypeShort, []uint64{1})
	add(TagPlanarConfig, TypeShort, []uint64{1})
	add(TagSampleFormat, TypeShort, []uint64{uint64(d.SampleFormat)})
	if d.NewSubfileType {
		add(TagNewSubfileType, TypeLong, []uint64{1})
	}
	if d.ImageDescription != "" {
		addASCII(TagImageDescription, d.ImageDescription)
	}

	byteCounts := make([]uint64, len(d.Tiles))
	for i, t := range d.Tiles {
		byteCounts[i] = uint64(len(t))
	}

	if d.TileWidth > 0 {
		add(TagTileWidth, TypeLong, []uint64{uint64(d.TileWidth)})
		add(TagTileLength, TypeLong, []uint64{uint64(d.TileHeight)})
		add(TagTileOffsets, offsetType, make([]uint64, len(d.Tiles)))
		add(TagTileByteCounts, offsetType, byteCounts)
	} else {
		rowsPerStrip := d.RowsPerStrip
		if rowsPerStrip <= 0 {
			rowsPerStrip = d.Height
		}
		add(TagRowsPerStrip, TypeLong, []uint64{uint64(rowsPerStrip)})
		add(TagStripOffsets, offsetType, make([]uint64, len(d.Tiles)))
		add(TagStripByteCounts, offsetType, byteCounts)
	}

	if len(d.SubIFDs) > 0 {
		add(TagSubIFDs, offsetType, make([]uint64, len(d.SubIFDs)))
	}

	sortResolvedEntries(entries)

	entrySize, countWidth, offsetFieldWidth := entryLayout(format)
	inlineWidth := offsetFieldWidth

	overflowCursor := 0
	for i := range entries {
		payloadSize := len(entries[i].Raw)
		if payloadSize > inlineWidth {
			entries[i].needsOverflow = true
			entries[i].overflowAt = overflowCursor
			overflowCursor += payloadSize
			if overflowCursor%2 != 0 {
				overflowCursor++
			}
		}
	}

	children := make([]*resolvedIFD, len(d.SubIFDs))
	for i, sub := range d.SubIFDs {
		r, err := resolveNode(sub, format)
		if err != nil {
			return nil, err
		}
		children[i] = r
	}

	tileDataSize := 0
	for _, t := range d.Tiles {
		tileDataSize += len(t)
	}

	return &resolvedIFD{
		entries:        entries,
		tiles:          d.Tiles,
		children:       children,
		entryBlockSize: countWidth + len(entries)*entrySize + offsetFieldWidth,
		overflowSize:   overflowCursor,
		tileDataSize:   tileDataSize,
	}, nil
}

func sortResolvedEntries(entries []resolvedEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].ID > entries[j].ID; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

func placeTree(r *resolvedIFD, cursor uint64) uint64 {
	r.ifdOffset = cursor
	cursor += uint64(r.entryBlockSize)
	r.overflowOffset = cursor
	cursor += uint64(r.overflowSize)
	r.tileDataOffset = cursor
	cursor += uint64(r.tileDataSize)
	for _, child := range r.children {
		cursor = placeTree(child, cursor)
	}
	return cursor
}

// patchTree fills in the tile/strip offset arrays and the SubIFDs
// offset array now that every absolute offset is known, and recurses
// into SubIFDs (which never participate in the main chain's
// next-offset links).
func patchTree(r *resolvedIFD) {
	offsets := make([]uint64, len(r.tiles))
	running := r.tileDataOffset
	for i, t := range r.tiles {
		offsets[i] = running
		running += uint64(len(t))
	}

	for i := range r.entries {
		switch r.entries[i].ID {
		case TagTileOffsets, TagStripOffsets:
			r.entries[i].Raw = serializeUints(offsets, r.entries[i].Type)
		case TagSubIFDs:
			childOffsets := make([]uint64, len(r.children))
			for j, c := range r.children {
				childOffsets[j] = c.ifdOffset
			}
			r.entries[i].Raw = serializeUints(childOffsets, r.entries[i].Type)
		}
	}

	for _, child := range r.children {
		child.nextOffsetValue = 0
		patchTree(child)
	}
}

func writeTree(buf []byte, r *resolvedIFD, format Format) {
	entrySize, countWidth, offsetFieldWidth := entryLayout(format)

	pos := r.ifdOffset
	if format == FormatBigTIFF {
		binary.LittleEndian.PutUint64(buf[pos:], uint64(len(r.entries)))
	} else {
		binary.LittleEndian.PutUint16(buf[pos:], uint16(len(r.entries)))
	}
	pos += uint64(countWidth)

	for _, e := range r.entries {
		binary.LittleEndian.PutUint16(buf[pos:], uint16(e.ID))
		binary.LittleEndian.PutUint16(buf[pos+2:], uint16(e.Type))

		if format == FormatBigTIFF {
			binary.LittleEndian.PutUint64(buf[pos+4:], e.Count)
		} else {
			binary.LittleEndian.PutUint32(buf[pos+4:], uint32(e.Count))
		}

		valueFieldOff := pos + uint64(4+offsetFieldWidth)
		if !e.needsOverflow {
			copy(buf[valueFieldOff:valueFieldOff+uint64(offsetFieldWidth)], e.Raw)
		} else {
			absOverflow := r.overflowOffset + uint64(e.overflowAt)
			if format == FormatBigTIFF {
				binary.LittleEndian.PutUint64(buf[valueFieldOff:], absOverflow)
			} else {
				binary.LittleEndian.PutUint32(buf[valueFieldOff:], uint32(absOverflow))
			}
			copy(buf[absOverflow:absOverflow+uint64(len(e.Raw))], e.Raw)
		}

		pos += uint64(entrySize)
	}

	if format == FormatBigTIFF {
		binary.LittleEndian.PutUint64(buf[pos:], r.nextOffsetValue)
	} else {
		binary.LittleEndian.PutUint32(buf[pos:], uint32(r.nextOffsetValue))
	}

	tilePos := r.tileDataOffset
	for _, t := range r.tiles {
		copy(buf[tilePos:tilePos+uint64(len(t))], t)
		tilePos += uint64(len(t))
	}

	for _, child := range r.children {
		writeTree(buf, child, format)
	}
}
