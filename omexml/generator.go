package omexml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/ome-io/tiffzarr/corerr"

	"github.com/ome-io/tiffzarr/dtype"
)

const omeNamespace = "http://www.openmicroscopy.org/Schemas/OME/2016-06"

// unitSymbols maps the long-form unit names OME-Zarr axes tend to carry
// onto the short symbol OME-XML conventionally uses for PhysicalSize*Unit.
// Anything not in the table is passed through unchanged.
var unitSymbols = map[string]string{
	"micrometer": "µm",
	"nanometer":  "nm",
	"millimeter": "mm",
	"centimeter": "cm",
	"meter":      "m",
	"angstrom":   "Å",
	"second":     "s",
	"millisecond": "ms",
}

// UnitSymbol resolves an axis unit name to the short form OME-XML uses.
func UnitSymbol(unit string) string {
	if sym, ok := unitSymbols[strings.ToLower(unit)]; ok {
		return sym
	}
	if unit == "" {
		return defaultUnit
	}
	return unit
}

// GenerateInput describes one <Image> to render as OME-XML.
type GenerateInput struct {
	ImageID string
	Name    string
	Creator string

	DimensionOrder DimensionOrder
	ElementType    dtype.ArrayDType

	SizeX, SizeY, SizeZ, SizeC, SizeT int

	HasPhysicalSizeX, HasPhysicalSizeY, HasPhysicalSizeZ bool
	PhysicalSizeX, PhysicalSizeY, PhysicalSizeZ           float64
	PhysicalSizeXUnit, PhysicalSizeYUnit, PhysicalSizeZUnit string

	Channels []OmeChannel
	TiffData []TiffDataEntry
}

// Generate renders a minimal but valid OME-XML document wrapping a
// single Image/Pixels, suitable for embedding as the TIFF
// ImageDescription tag on the first IFD of an OME-TIFF file.
func Generate(in GenerateInput) (string, error) {
	if !in.DimensionOrder.Valid() {
		return "", corerr.Newf(corerr.InvalidDimensionOrder, "unsupported DimensionOrder %q", in.DimensionOrder)
	}
	omeType, err := dtype.ArrayDtypeToOmeType(in.ElementType)
	if err != nil {
		return "", err
	}

	imageID := in.ImageID
	if imageID == "" {
		imageID = "Image:0"
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&buf, `<OME xmlns=%s`, escapeAttr(omeNamespace))
	if in.Creator != "" {
		fmt.Fprintf(&buf, ` Creator=%s`, escapeAttr(in.Creator))
	}
	buf.WriteString(">\n")

	fmt.Fprintf(&buf, `  <Image ID=%s`, escapeAttr(imageID))
	if in.Name != "" {
		fmt.Fprintf(&buf, ` Name=%s`, escapeAttr(in.Name))
	}
	buf.WriteString(">\n")

	buf.WriteString(`    <Pixels`)
	fmt.Fprintf(&buf, ` ID=%s`, escapeAttr(imageID+"-Pixels"))
	fmt.Fprintf(&buf, ` DimensionOrder=%s`, escapeAttr(string(in.DimensionOrder)))
	fmt.Fprintf(&buf, ` Type=%s`, escapeAttr(omeType))
	fmt.Fprintf(&buf, ` SizeX=%s SizeY=%s SizeZ=%s SizeC=%s SizeT=%s`,
		escapeAttr(strconv.Itoa(in.SizeX)), escapeAttr(strconv.Itoa(in.SizeY)),
		escapeAttr(strconv.Itoa(in.SizeZ)), escapeAttr(strconv.Itoa(in.SizeC)),
		escapeAttr(strconv.Itoa(in.SizeT)))

	if in.HasPhysicalSizeX {
		fmt.Fprintf(&buf, ` PhysicalSizeX=%s PhysicalSizeXUnit=%s`,
			escapeAttr(formatFloat(in.PhysicalSizeX)), escapeAttr(UnitSymbol(in.PhysicalSizeXUnit)))
	}
	if in.HasPhysicalSizeY {
		fmt.Fprintf(&buf, ` PhysicalSizeY=%s PhysicalSizeYUnit=%s`,
			escapeAttr(formatFloat(in.PhysicalSizeY)), escapeAttr(UnitSymbol(in.PhysicalSizeYUnit)))
	}
	if in.HasPhysicalSizeZ {
		fmt.Fprintf(&buf, ` PhysicalSizeZ=%s PhysicalSizeZUnit=%s`,
			escapeAttr(formatFloat(in.PhysicalSizeZ)), escapeAttr(UnitSymbol(in.PhysicalSizeZUnit)))
	}
	buf.WriteString(">\n")

	channels := in.Channels
	if len(channels) == 0 {
		for i := 0; i < in.SizeC; i++ {
			channels = append(channels, OmeChannel{ID: fmt.Sprintf("Channel:0:%d", i), SamplesPerPixel: 1})
		}
	}
	for i, ch := range channels {
		id := ch.ID
		if id == "" {
			id = fmt.Sprintf("Channel:0:%d", i)
		}
		samples := ch.SamplesPerPixel
		if samples == 0 {
			samples = 1
		}
		fmt.Fprintf(&buf, `      <Channel ID=%s SamplesPerPixel=%s`, escapeAttr(id), escapeAttr(strconv.Itoa(samples)))
		if ch.Name != "" {
			fmt.Fprintf(&buf, ` Name=%s`, escapeAttr(ch.Name))
		}
		if ch.HasColor {
			fmt.Fprintf(&buf, ` Color=%s`, escapeAttr(strconv.FormatInt(int64(ch.Color), 10)))
		}
		buf.WriteString("/>\n")
	}

	tiffData := in.TiffData
	if len(tiffData) == 0 {
		tiffData = []TiffDataEntry{{PlaneCount: in.SizeC * in.SizeZ * in.SizeT}}
	}
	for _, td := range tiffData {
		fmt.Fprintf(&buf, `      <TiffData FirstC=%s FirstZ=%s FirstT=%s IFD=%s PlaneCount=%s`,
			escapeAttr(strconv.Itoa(td.FirstC)), escapeAttr(strconv.Itoa(td.FirstZ)),
			escapeAttr(strconv.Itoa(td.FirstT)), escapeAttr(strconv.Itoa(td.IFD)),
			escapeAttr(strconv.Itoa(td.PlaneCount)))
		if td.UUID == "" {
			buf.WriteString("/>\n")
			continue
		}
		buf.WriteString(">")
		fmt.Fprintf(&buf, `<UUID FileName=%s>%s</UUID>`, escapeAttr(td.FileName), escapeText(td.UUID))
		buf.WriteString("</TiffData>\n")
	}

	buf.WriteString("    </Pixels>\n")
	buf.WriteString("  </Image>\n")
	buf.WriteString("</OME>\n")

	return buf.String(), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func escapeAttr(s string) string {
	var buf bytes.Buffer
	buf.WriteByte('"')
	xml.EscapeText(&buf, []byte(s))
	buf.WriteByte('"')
	return buf.String()
}

func escapeText(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
