// Package omexml parses and generates the bounded subset of OME-XML
// this bridge needs: Image, Pixels, Channel, TiffData and UUID. It
// deliberately does not implement the full OME schema.
package omexml

// DimensionOrder is one of the six permutations of Z/C/T that follow
// the fixed XY prefix in Pixels@DimensionOrder.
type DimensionOrder string

const (
	XYZCT DimensionOrder = "XYZCT"
	XYZTC DimensionOrder = "XYZTC"
	XYCZT DimensionOrder = "XYCZT"
	XYCTZ DimensionOrder = "XYCTZ"
	XYTZC DimensionOrder = "XYTZC"
	XYTCZ DimensionOrder = "XYTCZ"
)

// AllDimensionOrders lists the closed set of six valid orders.
var AllDimensionOrders = []DimensionOrder{XYZCT, XYZTC, XYCZT, XYCTZ, XYTZC, XYTCZ}

// Valid reports whether d is one of the six recognised permutations.
func (d DimensionOrder) Valid() bool {
	switch d {
	case XYZCT, XYZTC, XYCZT, XYCTZ, XYTZC, XYTCZ:
		return true
	default:
		return false
	}
}

// Tail returns the three dimension letters after the fixed XY prefix,
// ordered fastest-to-slowest (index 0 varies fastest).
func (d DimensionOrder) Tail() [3]byte {
	s := string(d)
	return [3]byte{s[2], s[3], s[4]}
}

// OmeImage is one <Image> element with its <Pixels> child.
type OmeImage struct {
	ID     string
	Name   string
	Pixels OmePixels
}

// OmeChannel is one <Channel> child of Pixels.
type OmeChannel struct {
	ID              string
	Name            string
	SamplesPerPixel int
	HasColor        bool
	Color           int32
}

// TiffDataEntry is one <TiffData> child of Pixels, optionally routed to
// another file for multi-file OME-TIFF.
type TiffDataEntry struct {
	FirstC     int
	FirstZ     int
	FirstT     int
	IFD        int
	PlaneCount int

	UUID     string
	FileName string
}

// OmePixels is the parsed content of one <Pixels> element.
type OmePixels struct {
	SizeX, SizeY, SizeZ, SizeC, SizeT int
	DimensionOrder                    DimensionOrder
	Type                              string

	PhysicalSizeX, PhysicalSizeY, PhysicalSizeZ       float64
	HasPhysicalSizeX, HasPhysicalSizeY, HasPhysicalSizeZ bool
	PhysicalSizeXUnit, PhysicalSizeYUnit, PhysicalSizeZUnit string

	BigEndian   bool
	Interleaved bool

	Channels []OmeChannel
	TiffData []TiffDataEntry
}

// PlaneSelection is one (c, z, t) coordinate into an OmePixels.
type PlaneSelection struct {
	C, Z, T int
}

// Valid reports whether the selection is in range for the given sizes.
func (p PlaneSelection) Valid(sizeC, sizeZ, sizeT int) bool {
	return p.C >= 0 && p.C < sizeC && p.Z >= 0 && p.Z < sizeZ && p.T >= 0 && p.T < sizeT
}

// PlaneSelectionValid reports whether (c, z, t) is in range for p's
// own dimension sizes.
func (p OmePixels) PlaneSelectionValid(c, z, t int) bool {
	return PlaneSelection{C: c, Z: z, T: t}.Valid(p.SizeC, p.SizeZ, p.SizeT)
}

const defaultUnit = "µm"
