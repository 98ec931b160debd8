package tiff

import (
	"context"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/ome-io/tiffzarr/corerr"
)

// Entry is one decoded IFD entry: a tag id, a type code, and its
// fully materialised value bytes (inline or fetched from the overflow
// region), little-endian encoded per typeSize(Type).
type Entry struct {
	ID    TagID
	Type  TypeCode
	Count uint64
	Raw   []byte
}

// Uints decodes Raw as a sequence of unsigned integers of Type's width
// (1, 2, 4 or 8 bytes), whatever the type's own meaning (a Rational or
// Double comes back as its raw 64-bit word). A type of unknown width,
// or Raw shorter than Count values, returns nil.
func (e Entry) Uints() []uint64 {
	width := typeSize(e.Type)
	if width == 0 || len(e.Raw) < int(e.Count)*width {
		return nil
	}
	out := make([]uint64, e.Count)
	for i := range out {
		chunk := e.Raw[i*width : i*width+width]
		switch width {
		case 1:
			out[i] = uint64(chunk[0])
		case 2:
			out[i] = uint64(binary.LittleEndian.Uint16(chunk))
		case 4:
			out[i] = uint64(binary.LittleEndian.Uint32(chunk))
		case 8:
			out[i] = binary.LittleEndian.Uint64(chunk)
		}
	}
	return out
}

// ASCII returns the NUL-trimmed string content of an ASCII entry.
func (e Entry) ASCII() string {
	return strings.TrimRight(string(e.Raw), "\x00")
}

// IFD is one Image File Directory: its entries (as read, not
// necessarily sorted), its absolute file offset, and the absolute
// offset of the next main-chain IFD (0 if none).
type IFD struct {
	Offset     uint64
	Entries    []Entry
	NextOffset uint64
}

// Find returns the entry for tag, if present.
func (ifd *IFD) Find(tag TagID) (Entry, bool) {
	for _, e := range ifd.Entries {
		if e.ID == tag {
			return e, true
		}
	}
	return Entry{}, false
}

func (ifd *IFD) uintTag(tag TagID, def uint64) uint64 {
	e, ok := ifd.Find(tag)
	if !ok {
		return def
	}
	vals := e.Uints()
	if len(vals) == 0 {
		return def
	}
	return vals[0]
}

func (ifd *IFD) Width() int                 { return int(ifd.uintTag(TagImageWidth, 0)) }
func (ifd *IFD) Height() int                 { return int(ifd.uintTag(TagImageLength, 0)) }
func (ifd *IFD) BitsPerSample() int          { return int(ifd.uintTag(TagBitsPerSample, 1)) }
func (ifd *IFD) SamplesPerPixel() int        { return int(ifd.uintTag(TagSamplesPerPixel, 1)) }
func (ifd *IFD) Compression() CompressionCode { return CompressionCode(ifd.uintTag(TagCompression, uint64(CompressionNone))) }
func (ifd *IFD) SampleFormat() SampleFormatCode {
	return SampleFormatCode(ifd.uintTag(TagSampleFormat, uint64(SampleFormatUnsigned)))
}
func (ifd *IFD) TileWidth() int    { return int(ifd.uintTag(TagTileWidth, 0)) }
func (ifd *IFD) TileLength() int   { return int(ifd.uintTag(TagTileLength, 0)) }
func (ifd *IFD) RowsPerStrip() int { return int(ifd.uintTag(TagRowsPerStrip, 0)) }
func (ifd *IFD) IsTiled() bool     { _, ok := ifd.Find(TagTileWidth); return ok }
func (ifd *IFD) IsReducedResolution() bool { return ifd.uintTag(TagNewSubfileType, 0)&1 == 1 }

func (ifd *IFD) ImageDescription() (string, bool) {
	e, ok := ifd.Find(TagImageDescription)
	if !ok {
		return "", false
	}
	return e.ASCII(), true
}

// TileOrStripOffsets returns the per-block file offsets and the
// matching byte counts, for whichever of the tile/strip tag pairs is
// present.
func (ifd *IFD) TileOrStripOffsets() ([]uint64, []uint64, error) {
	if ifd.IsTiled() {
		off, ok1 := ifd.Find(TagTileOffsets)
		cnt, ok2 := ifd.Find(TagTileByteCounts)
		if !ok1 || !ok2 {
			return nil, nil, corerr.New(corerr.UnsupportedTagCombination, "tiled IFD missing TileOffsets/TileByteCounts")
		}
		return off.Uints(), cnt.Uints(), nil
	}
	off, ok1 := ifd.Find(TagStripOffsets)
	cnt, ok2 := ifd.Find(TagStripByteCounts)
	if !ok1 || !ok2 {
		return nil, nil, corerr.New(corerr.UnsupportedTagCombination, "stripped IFD missing StripOffsets/StripByteCounts")
	}
	return off.Uints(), cnt.Uints(), nil
}

// SubIFDOffsets returns the absolute offsets in the SubIFDs tag, if any.
func (ifd *IFD) SubIFDOffsets() []uint64 {
	e, ok := ifd.Find(TagSubIFDs)
	if !ok {
		return nil
	}
	return e.Uints()
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
}

func readIFDAt(ctx context.Context, src ByteSource, format Format, offset uint64) (*IFD, error) {
	entrySize, countWidth, offsetFieldWidth := entryLayout(format)

	countBuf, err := src.Read(ctx, int64(offset), int64(countWidth))
	if err != nil {
		return nil, err
	}
	count := decodeCount(countBuf, format)

	blockLen := int64(count) * int64(entrySize)
	block, err := src.Read(ctx, int64(offset)+int64(countWidth), blockLen)
	if err != nil {
		return nil, err
	}
	nextBuf, err := src.Read(ctx, int64(offset)+int64(countWidth)+blockLen, int64(offsetFieldWidth))
	if err != nil {
		return nil, err
	}

	ifd := &IFD{Offset: offset, NextOffset: decodeOffsetField(nextBuf, format)}

	for i := uint64(0); i < count; i++ {
		rec := block[i*uint64(entrySize) : (i+1)*uint64(entrySize)]
		entry, err := decodeEntry(ctx, src, format, rec)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue // unrecognised type, skipped per §4.E.5
		}
		ifd.Entries = append(ifd.Entries, *entry)
	}

	return ifd, nil
}

func entryLayout(format Format) (entrySize, countWidth, offsetFieldWidth int) {
	if format == FormatBigTIFF {
		return 20, 8, 8
	}
	return 12, 2, 4
}

func decodeCount(buf []byte, format Format) uint64 {
	if format == FormatBigTIFF {
		return binary.LittleEndian.Uint64(buf)
	}
	return uint64(binary.LittleEndian.Uint16(buf))
}

func decodeOffsetField(buf []byte, format Format) uint64 {
	if format == FormatBigTIFF {
		return binary.LittleEndian.Uint64(buf)
	}
	return uint64(binary.LittleEndian.Uint32(buf))
}

func decodeEntry(ctx context.Context, src ByteSource, format Format, rec []byte) (*Entry, error) {
	tag := TagID(binary.LittleEndian.Uint16(rec[0:2]))
	typ := TypeCode(binary.LittleEndian.Uint16(rec[2:4]))

	width := typeSize(typ)
	if width == 0 {
		Logger.Printf("skipping tag %d: unrecognised type code %d", tag, typ)
		return nil, nil
	}

	var count uint64
	var valueField []byte
	inlineWidth := 4
	if format == FormatBigTIFF {
		count = binary.LittleEndian.Uint64(rec[4:12])
		valueField = rec[12:20]
		inlineWidth = 8
	} else {
		count = uint64(binary.LittleEndian.Uint32(rec[4:8]))
		valueField = rec[8:12]
		inlineWidth = 4
	}

	payloadSize := width * int(count)
	if payloadSize <= inlineWidth {
		return &Entry{ID: tag, Type: typ, Count: count, Raw: append([]byte{}, valueField[:payloadSize]...)}, nil
	}

	offset := decodeOffsetField(valueField, format)
	raw, err := src.Read(ctx, int64(offset), int64(payloadSize))
	if err != nil {
		return nil, corerr.Wrap(corerr.BadOffset, "reading tag overflow region", err)
	}
	return &Entry{ID: tag, Type: typ, Count: count, Raw: raw}, nil
}
