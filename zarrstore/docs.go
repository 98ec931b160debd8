package zarrstore

import (
	"github.com/ome-io/tiffzarr/dtype"
	"github.com/ome-io/tiffzarr/omexml"
)

// axis is one emitted Zarr axis: t, c, z, y or x.
type axis struct {
	name string
	kind string // "time", "channel", "space"
	unit string // "" when not known
}

// axes computes the emitted axis order for pixels: t, c, z, y, x with
// any of t, c or z omitted when its size is 1. y and x are always
// present.
func axes(pixels omexml.OmePixels) []axis {
	var out []axis
	if pixels.SizeT > 1 {
		out = append(out, axis{name: "t", kind: "time"})
	}
	if pixels.SizeC > 1 {
		out = append(out, axis{name: "c", kind: "channel"})
	}
	if pixels.SizeZ > 1 {
		out = append(out, axis{name: "z", kind: "space", unit: physicalUnit(pixels.HasPhysicalSizeZ, pixels.PhysicalSizeZUnit)})
	}
	out = append(out, axis{name: "y", kind: "space", unit: physicalUnit(pixels.HasPhysicalSizeY, pixels.PhysicalSizeYUnit)})
	out = append(out, axis{name: "x", kind: "space", unit: physicalUnit(pixels.HasPhysicalSizeX, pixels.PhysicalSizeXUnit)})
	return out
}

func physicalUnit(has bool, unit string) string {
	if !has {
		return ""
	}
	return unit
}

func axisNames(axs []axis) []string {
	names := make([]string, len(axs))
	for i, a := range axs {
		names[i] = a.name
	}
	return names
}

// shapeAt returns, for each emitted axis, its size at pyramid level L.
func shapeAt(pixels omexml.OmePixels, widths, heights []int, level int, axs []axis) []int {
	shape := make([]int, len(axs))
	for i, a := range axs {
		switch a.name {
		case "t":
			shape[i] = pixels.SizeT
		case "c":
			shape[i] = pixels.SizeC
		case "z":
			shape[i] = pixels.SizeZ
		case "y":
			shape[i] = heights[level]
		case "x":
			shape[i] = widths[level]
		}
	}
	return shape
}

// chunkShapeAt returns the chunk shape for each emitted axis at level
// L: 1 along non-spatial axes, min(tileW/tileH, image size) along x/y.
func chunkShapeAt(shape []int, axs []axis, tileW, tileH int) []int {
	chunk := make([]int, len(axs))
	for i, a := range axs {
		switch a.name {
		case "y":
			chunk[i] = minInt(tileH, shape[i])
		case "x":
			chunk[i] = minInt(tileW, shape[i])
		default:
			chunk[i] = 1
		}
	}
	return chunk
}

// scaleAt returns the coordinate-transformation scale for each emitted
// axis at level L: physicalSize*downsampleFactor for spatial axes
// (1.0 when no physical size is known), 1.0 for non-spatial axes.
func scaleAt(pixels omexml.OmePixels, widths, heights []int, level int, axs []axis) []float64 {
	scale := make([]float64, len(axs))
	downX := float64(widths[0]) / float64(widths[level])
	downY := float64(heights[0]) / float64(heights[level])
	for i, a := range axs {
		switch a.name {
		case "x":
			scale[i] = physicalSizeOr1(pixels.HasPhysicalSizeX, pixels.PhysicalSizeX) * downX
		case "y":
			scale[i] = physicalSizeOr1(pixels.HasPhysicalSizeY, pixels.PhysicalSizeY) * downY
		case "z":
			scale[i] = physicalSizeOr1(pixels.HasPhysicalSizeZ, pixels.PhysicalSizeZ)
		default:
			scale[i] = 1.0
		}
	}
	return scale
}

func physicalSizeOr1(has bool, v float64) float64 {
	if !has || v == 0 {
		return 1.0
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// axisDoc is the JSON shape of one entry in the root group's
// "axes" list.
type axisDoc struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Unit string `json:"unit,omitempty"`
}

type scaleTransform struct {
	Type  string    `json:"type"`
	Scale []float64 `json:"scale"`
}

type datasetDoc struct {
	Path                      string           `json:"path"`
	CoordinateTransformations []scaleTransform `json:"coordinateTransformations"`
}

type omeroChannelDoc struct {
	Label  string         `json:"label"`
	Color  string         `json:"color"`
	Window map[string]int `json:"window"`
}

type omeroDoc struct {
	Channels []omeroChannelDoc `json:"channels"`
}

type multiscaleDoc struct {
	Name     string       `json:"name,omitempty"`
	Axes     []axisDoc    `json:"axes"`
	Datasets []datasetDoc `json:"datasets"`
}

type omeAttrDoc struct {
	Version     string          `json:"version"`
	Multiscales []multiscaleDoc `json:"multiscales"`
	Omero       *omeroDoc       `json:"omero,omitempty"`
}

type rootAttributesDoc struct {
	Ome omeAttrDoc `json:"ome"`
}

type rootGroupDoc struct {
	ZarrFormat int               `json:"zarr_format"`
	NodeType   string            `json:"node_type"`
	Attributes rootAttributesDoc `json:"attributes"`
}

type chunkGridDoc struct {
	Name          string              `json:"name"`
	Configuration chunkGridConfigDoc  `json:"configuration"`
}

type chunkGridConfigDoc struct {
	ChunkShape []int `json:"chunk_shape"`
}

type chunkKeyEncodingDoc struct {
	Name          string                    `json:"name"`
	Configuration chunkKeyEncodingConfigDoc `json:"configuration"`
}

type chunkKeyEncodingConfigDoc struct {
	Separator string `json:"separator"`
}

type codecDoc struct {
	Name          string          `json:"name"`
	Configuration codecConfigDoc `json:"configuration"`
}

type codecConfigDoc struct {
	Endian string `json:"endian"`
}

type levelArrayDoc struct {
	ZarrFormat       int                 `json:"zarr_format"`
	NodeType         string              `json:"node_type"`
	Shape            []int               `json:"shape"`
	DataType         string              `json:"data_type"`
	ChunkGrid        chunkGridDoc        `json:"chunk_grid"`
	ChunkKeyEncoding chunkKeyEncodingDoc `json:"chunk_key_encoding"`
	FillValue        int                 `json:"fill_value"`
	Codecs           []codecDoc          `json:"codecs"`
	DimensionNames   []string            `json:"dimension_names"`
}

var defaultOmeroColors = []string{"FF0000", "00FF00", "0000FF", "FFFF00", "FF00FF", "00FFFF"}

// buildOmero synthesises a minimal omero display-hints block: a
// default RGB-cycling colour per channel and a window derived from
// the element type's bit depth. The exact palette is not specified by
// either format, so any deterministic cycling is a valid choice.
func buildOmero(pixels omexml.OmePixels, elementType dtype.ArrayDType) *omeroDoc {
	if len(pixels.Channels) == 0 {
		return nil
	}
	maxVal := 1
	if bpe, err := dtype.BytesPerElement(elementType); err == nil && elementType != dtype.Float32 && elementType != dtype.Float64 {
		maxVal = (1 << uint(bpe*8)) - 1
	}
	channels := make([]omeroChannelDoc, len(pixels.Channels))
	for i, ch := range pixels.Channels {
		label := ch.Name
		if label == "" {
			label = ch.ID
		}
		color := defaultOmeroColors[i%len(defaultOmeroColors)]
		if ch.HasColor {
			color = rgbaToHex(ch.Color)
		}
		channels[i] = omeroChannelDoc{
			Label: label,
			Color: color,
			Window: map[string]int{"min": 0, "max": maxVal},
		}
	}
	return &omeroDoc{Channels: channels}
}

func rgbaToHex(c int32) string {
	u := uint32(c) >> 8 // drop the alpha byte, keep R,G,B
	return hexByte(byte(u>>16)) + hexByte(byte(u>>8)) + hexByte(byte(u))
}

const hexDigits = "0123456789ABCDEF"

func hexByte(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xF]})
}
