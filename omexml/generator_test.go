package omexml

import (
	"testing"

	"github.com/ome-io/tiffzarr/dtype"
)

func TestGenerateParseRoundTrip(t *testing.T) {
	in := GenerateInput{
		ImageID:        "Image:0",
		Name:           "sample <&> \"tissue\"",
		Creator:        "tiffzarr",
		DimensionOrder: XYZCT,
		ElementType:    dtype.Uint16,
		SizeX:          128, SizeY: 64, SizeZ: 2, SizeC: 3, SizeT: 1,
		HasPhysicalSizeX: true, PhysicalSizeX: 0.25, PhysicalSizeXUnit: "micrometer",
		Channels: []OmeChannel{
			{ID: "Channel:0:0", Name: "red", SamplesPerPixel: 1, HasColor: true, Color: -65536},
			{ID: "Channel:0:1", Name: "green", SamplesPerPixel: 1},
			{ID: "Channel:0:2", Name: "blue", SamplesPerPixel: 1},
		},
		TiffData: []TiffDataEntry{
			{FirstC: 0, FirstZ: 0, FirstT: 0, IFD: 0, PlaneCount: 1},
		},
	}

	doc, err := Generate(in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !IsOmeXml(doc) {
		t.Fatalf("generated document does not look like OME-XML:\n%s", doc)
	}

	res, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse(Generate(...)): %v\n%s", err, doc)
	}
	if len(res.Images) != 1 {
		t.Fatalf("len(Images) = %d", len(res.Images))
	}
	p := res.Images[0].Pixels
	if p.SizeX != in.SizeX || p.SizeY != in.SizeY || p.SizeZ != in.SizeZ || p.SizeC != in.SizeC || p.SizeT != in.SizeT {
		t.Errorf("size mismatch: %+v", p)
	}
	if p.DimensionOrder != in.DimensionOrder {
		t.Errorf("DimensionOrder = %v, want %v", p.DimensionOrder, in.DimensionOrder)
	}
	gotType, err := dtype.OmeTypeToArrayDtype(p.Type)
	if err != nil || gotType != in.ElementType {
		t.Errorf("Type = %q (err=%v), want element type %v", p.Type, err, in.ElementType)
	}
	if len(p.Channels) != 3 {
		t.Fatalf("len(Channels) = %d", len(p.Channels))
	}
	for i, ch := range in.Channels {
		if p.Channels[i].ID != ch.ID || p.Channels[i].Name != ch.Name {
			t.Errorf("channel %d = %+v, want %+v", i, p.Channels[i], ch)
		}
	}
	if !p.HasPhysicalSizeX || p.PhysicalSizeX != 0.25 || p.PhysicalSizeXUnit != "µm" {
		t.Errorf("physical size X = %v %v %q", p.HasPhysicalSizeX, p.PhysicalSizeX, p.PhysicalSizeXUnit)
	}
	if res.Images[0].Name != in.Name {
		t.Errorf("Name = %q, want %q (escaping round trip)", res.Images[0].Name, in.Name)
	}
	if len(p.TiffData) != 1 {
		t.Fatalf("len(TiffData) = %d, want exactly one TiffData element", len(p.TiffData))
	}
}

func TestGenerateSynthesizesTiffDataWhenOmitted(t *testing.T) {
	in := GenerateInput{
		DimensionOrder: XYZCT,
		ElementType:    dtype.Uint8,
		SizeX:          4, SizeY: 4, SizeC: 2, SizeZ: 3, SizeT: 1,
	}
	doc, err := Generate(in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	res, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	td := res.Images[0].Pixels.TiffData
	if len(td) != 1 {
		t.Fatalf("len(TiffData) = %d, want exactly one synthesised TiffData element", len(td))
	}
	if want := in.SizeC * in.SizeZ * in.SizeT; td[0].PlaneCount != want {
		t.Fatalf("PlaneCount = %d, want %d", td[0].PlaneCount, want)
	}
}

func TestGenerateWithTiffDataUUID(t *testing.T) {
	in := GenerateInput{
		DimensionOrder: XYZCT,
		ElementType:    dtype.Uint8,
		SizeX:          4, SizeY: 4, SizeC: 1,
		TiffData: []TiffDataEntry{
			{FirstC: 0, FirstZ: 0, FirstT: 0, IFD: 0, PlaneCount: 1, UUID: "urn:uuid:abc", FileName: "plane0.tif"},
		},
	}
	doc, err := Generate(in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	res, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	td := res.Images[0].Pixels.TiffData
	if len(td) != 1 || td[0].UUID != "urn:uuid:abc" || td[0].FileName != "plane0.tif" {
		t.Fatalf("TiffData = %+v", td)
	}
}

func TestGenerateRejectsInvalidDimensionOrder(t *testing.T) {
	_, err := Generate(GenerateInput{DimensionOrder: "bogus", ElementType: dtype.Uint8, SizeX: 1, SizeY: 1})
	if err == nil {
		t.Fatal("expected error for invalid DimensionOrder")
	}
}

func TestUnitSymbol(t *testing.T) {
	cases := map[string]string{
		"micrometer": "µm",
		"MICROMETER": "µm",
		"nanometer":  "nm",
		"":           "µm",
		"furlong":    "furlong",
	}
	for in, want := range cases {
		if got := UnitSymbol(in); got != want {
			t.Errorf("UnitSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}
