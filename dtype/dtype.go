// Package dtype is the single-sourced bijection between the three
// spellings of a pixel element type that appear in an OME-TIFF / OME-Zarr
// pair: TIFF's (SampleFormat, BitsPerSample), OME-XML's Pixels "Type"
// attribute, and the Zarr array "data_type" string.
package dtype

import (
	"strings"

	"github.com/ome-io/tiffzarr/corerr"
)

// RasterSampleFormat is the TIFF SampleFormat variant (tag 339). It is a
// closed enumeration; dispatch on it exhaustively rather than by raw
// integer comparison.
type RasterSampleFormat int

const (
	// Unsigned is SampleFormat 1 (also the implicit default when the tag
	// is absent).
	Unsigned RasterSampleFormat = iota
	// Signed is SampleFormat 2.
	Signed
	// Float is SampleFormat 3.
	Float
)

// ArrayDType is the canonical element type used on the array (Zarr) side.
type ArrayDType int

const (
	Invalid ArrayDType = iota
	Int8
	Int16
	Int32
	Uint8
	Uint16
	Uint32
	Float32
	Float64
)

func (d ArrayDType) String() string {
	switch d {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "invalid"
	}
}

type tiffKey struct {
	format RasterSampleFormat
	bits   int
}

var tiffToArray = map[tiffKey]ArrayDType{
	{Unsigned, 8}:  Uint8,
	{Unsigned, 16}: Uint16,
	{Unsigned, 32}: Uint32,
	{Signed, 8}:    Int8,
	{Signed, 16}:   Int16,
	{Signed, 32}:   Int32,
	{Float, 32}:    Float32,
	{Float, 64}:    Float64,
}

var arrayToTiff = func() map[ArrayDType]tiffKey {
	m := make(map[ArrayDType]tiffKey, len(tiffToArray))
	for k, v := range tiffToArray {
		m[v] = k
	}
	return m
}()

// TiffToArrayDtype maps a TIFF (SampleFormat, BitsPerSample) pair onto an
// ArrayDType. 16-bit float and 64-bit integer combinations, among others
// outside the table, fail with an UnsupportedDtype error.
func TiffToArrayDtype(format RasterSampleFormat, bitsPerSample int) (ArrayDType, error) {
	if d, ok := tiffToArray[tiffKey{format, bitsPerSample}]; ok {
		return d, nil
	}
	return Invalid, corerr.Newf(corerr.UnsupportedDtype, "sampleFormat=%d bits=%d", format, bitsPerSample)
}

// ArrayDtypeToTiff is the inverse of TiffToArrayDtype.
func ArrayDtypeToTiff(d ArrayDType) (RasterSampleFormat, int, error) {
	if k, ok := arrayToTiff[d]; ok {
		return k.format, k.bits, nil
	}
	return Unsigned, 0, corerr.New(corerr.UnsupportedDtype, "array dtype "+d.String())
}

// OmeTypeToArrayDtype maps an OME-XML Pixels "Type" attribute
// (case-insensitive) onto an ArrayDType. "float" maps to float32 and
// "double" maps to float64; the six integer names (int8 ... uint32) are
// matched literally. Any other spelling, including "float32" and
// "float64", fails with an UnsupportedDtype error.
func OmeTypeToArrayDtype(omeType string) (ArrayDType, error) {
	switch strings.ToLower(strings.TrimSpace(omeType)) {
	case "float":
		return Float32, nil
	case "double":
		return Float64, nil
	case "int8":
		return Int8, nil
	case "int16":
		return Int16, nil
	case "int32":
		return Int32, nil
	case "uint8":
		return Uint8, nil
	case "uint16":
		return Uint16, nil
	case "uint32":
		return Uint32, nil
	default:
		return Invalid, corerr.New(corerr.UnsupportedDtype, "ome type "+omeType)
	}
}

// ArrayDtypeToOmeType is the inverse of OmeTypeToArrayDtype.
func ArrayDtypeToOmeType(d ArrayDType) (string, error) {
	switch d {
	case Float32:
		return "float", nil
	case Float64:
		return "double", nil
	case Int8, Int16, Int32, Uint8, Uint16, Uint32:
		return d.String(), nil
	default:
		return "", corerr.New(corerr.UnsupportedDtype, "array dtype "+d.String())
	}
}

// BytesPerElement returns the element width in {1,2,4,8} bytes.
func BytesPerElement(d ArrayDType) (int, error) {
	switch d {
	case Int8, Uint8:
		return 1, nil
	case Int16, Uint16:
		return 2, nil
	case Int32, Uint32, Float32:
		return 4, nil
	case Float64:
		return 8, nil
	default:
		return 0, corerr.New(corerr.UnsupportedDtype, "array dtype "+d.String())
	}
}
