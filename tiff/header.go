package tiff

import (
	"context"
	"encoding/binary"

	"github.com/ome-io/tiffzarr/corerr"
)

// Format distinguishes classic 32-bit-offset TIFF from BigTIFF. The
// writer emits only little-endian files in either format; the reader
// likewise only supports little-endian ("II") input, per the open
// question on big-endian input being out of scope.
type Format int

const (
	FormatClassic Format = iota
	FormatBigTIFF
)

const (
	magicClassic = 42
	magicBigTIFF = 43

	classicHeaderSize = 8
	bigtiffHeaderSize = 16

	// classicOffsetLimit is 2^32-2: the largest offset the classic
	// format can address while leaving room for a terminating 0.
	classicOffsetLimit = uint64(1)<<32 - 2
)

// bigtiffUpgradeThreshold is the ~3.9 GB auto-upgrade trigger. It is a
// var, not a const, so tests can shrink it rather than allocate
// multi-gigabyte fixtures to exercise the upgrade path.
var bigtiffUpgradeThreshold = uint64(3900) * 1024 * 1024

// header is the decoded file header.
type header struct {
	Format      Format
	FirstIFDOff uint64
}

func headerSize(f Format) int {
	if f == FormatBigTIFF {
		return bigtiffHeaderSize
	}
	return classicHeaderSize
}

func readHeader(ctx context.Context, src ByteSource) (*header, error) {
	buf, err := src.Read(ctx, 0, classicHeaderSize)
	if err != nil {
		return nil, err
	}
	if buf[0] != 'I' || buf[1] != 'I' {
		return nil, corerr.New(corerr.BadMagic, "only little-endian (\"II\") TIFF is supported")
	}
	magic := binary.LittleEndian.Uint16(buf[2:4])

	switch magic {
	case magicClassic:
		return &header{
			Format:      FormatClassic,
			FirstIFDOff: uint64(binary.LittleEndian.Uint32(buf[4:8])),
		}, nil
	case magicBigTIFF:
		rest, err := src.Read(ctx, classicHeaderSize, bigtiffHeaderSize-classicHeaderSize)
		if err != nil {
			return nil, err
		}
		offsetWidth := binary.LittleEndian.Uint16(rest[0:2])
		if offsetWidth != 8 {
			return nil, corerr.Newf(corerr.BadMagic, "unexpected BigTIFF offset width %d", offsetWidth)
		}
		return &header{
			Format:      FormatBigTIFF,
			FirstIFDOff: binary.LittleEndian.Uint64(rest[4:12]),
		}, nil
	default:
		return nil, corerr.Newf(corerr.BadMagic, "unrecognised TIFF magic %d", magic)
	}
}

func writeHeader(buf []byte, f Format, firstIFDOff uint64) {
	buf[0], buf[1] = 'I', 'I'
	switch f {
	case FormatClassic:
		binary.LittleEndian.PutUint16(buf[2:4], magicClassic)
		binary.LittleEndian.PutUint32(buf[4:8], uint32(firstIFDOff))
	case FormatBigTIFF:
		binary.LittleEndian.PutUint16(buf[2:4], magicBigTIFF)
		binary.LittleEndian.PutUint16(buf[4:6], 8)
		binary.LittleEndian.PutUint16(buf[6:8], 0)
		binary.LittleEndian.PutUint64(buf[8:16], firstIFDOff)
	}
}
