package omexml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/ome-io/tiffzarr/corerr"
)

// IsOmeXml reports whether text begins (after optional leading
// whitespace) with either an XML processing instruction or an OME
// element, optionally namespace-prefixed. It is a cheap textual
// predicate, not a validating parse.
func IsOmeXml(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if strings.HasPrefix(trimmed, "<?xml") {
		return true
	}
	if !strings.HasPrefix(trimmed, "<") {
		return false
	}
	body := trimmed[1:]
	// Skip an optional "ns:" prefix.
	if idx := strings.IndexAny(body, ": \t\r\n/>"); idx >= 0 && body[idx] == ':' {
		body = body[idx+1:]
	}
	return strings.HasPrefix(body, "OME") && (len(body) == 3 || isNameBoundary(body[3]))
}

func isNameBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '>', '/':
		return true
	default:
		return false
	}
}

// ParseResult is the outcome of parsing an OME-XML document.
type ParseResult struct {
	RootUUID string
	Images   []OmeImage
}

// charsetReader tolerates OME-XML documents that declare a non-UTF-8
// encoding in their XML prolog but whose body is, in practice, plain
// ASCII (a situation several OME-TIFF producers exhibit). Other
// charsets known to the IANA index in golang.org/x/text are decoded
// through it; unknown names and the common but usually-misleading
// "utf-16" declaration on an ASCII payload are passed through
// unchanged.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "us-ascii", "ascii", "utf-16":
		return input, nil
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return input, nil
	}
	return enc.NewDecoder().Reader(input), nil
}

// Parse extracts the Image/Pixels/Channel/TiffData subset of an OME-XML
// document. Images without a Pixels child are silently dropped. An
// OmePixels with no explicit Channel children has sizeC default
// channels synthesised.
func Parse(text string) (*ParseResult, error) {
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.CharsetReader = charsetReader
	dec.Strict = false

	result := &ParseResult{}

	var (
		inImage        bool
		imageHasPixels bool
		cur            OmeImage

		inPixels   bool
		inTiffData bool
		curTD      int = -1

		inUUID   bool
		uuidText strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, corerr.Wrap(corerr.InvalidXml, "malformed OME-XML", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "OME":
				result.RootUUID = attrValue(t.Attr, "UUID")
			case "Image":
				inImage = true
				imageHasPixels = false
				cur = OmeImage{ID: attrValue(t.Attr, "ID"), Name: attrValue(t.Attr, "Name")}
			case "Pixels":
				if inImage && !imageHasPixels {
					pixels, err := parsePixelsAttrs(t.Attr)
					if err != nil {
						return nil, err
					}
					cur.Pixels = pixels
					imageHasPixels = true
					inPixels = true
				}
			case "Channel":
				if inPixels {
					idx := len(cur.Pixels.Channels)
					cur.Pixels.Channels = append(cur.Pixels.Channels, parseChannelAttrs(t.Attr, idx))
				}
			case "TiffData":
				if inPixels {
					cur.Pixels.TiffData = append(cur.Pixels.TiffData, parseTiffDataAttrs(t.Attr))
					inTiffData = true
					curTD = len(cur.Pixels.TiffData) - 1
				}
			case "UUID":
				if inTiffData && curTD >= 0 {
					cur.Pixels.TiffData[curTD].FileName = attrValue(t.Attr, "FileName")
					inUUID = true
					uuidText.Reset()
				}
			}
		case xml.CharData:
			if inUUID {
				uuidText.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "Pixels":
				inPixels = false
			case "TiffData":
				inTiffData = false
				curTD = -1
			case "UUID":
				if inUUID && curTD >= 0 {
					cur.Pixels.TiffData[curTD].UUID = strings.TrimSpace(uuidText.String())
				}
				inUUID = false
			case "Image":
				if inImage {
					if imageHasPixels {
						synthesiseChannelsIfNeeded(&cur.Pixels)
						result.Images = append(result.Images, cur)
					}
					inImage = false
				}
			}
		}
	}

	return result, nil
}

func synthesiseChannelsIfNeeded(pixels *OmePixels) {
	if len(pixels.Channels) > 0 || pixels.SizeC <= 0 {
		return
	}
	for i := 0; i < pixels.SizeC; i++ {
		pixels.Channels = append(pixels.Channels, OmeChannel{
			ID:              fmt.Sprintf("Channel:0:%d", i),
			SamplesPerPixel: 1,
		})
	}
}

func attrValue(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func attrInt(attrs []xml.Attr, local string, def int) int {
	v := attrValue(attrs, local)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func attrFloat(attrs []xml.Attr, local string) (float64, bool) {
	v := attrValue(attrs, local)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parsePixelsAttrs(attrs []xml.Attr) (OmePixels, error) {
	var p OmePixels

	sizeXStr := attrValue(attrs, "SizeX")
	sizeYStr := attrValue(attrs, "SizeY")
	if sizeXStr == "" || sizeYStr == "" {
		return p, corerr.New(corerr.InvalidXml, "Pixels missing required SizeX/SizeY")
	}

	p.SizeX = attrInt(attrs, "SizeX", 1)
	p.SizeY = attrInt(attrs, "SizeY", 1)
	p.SizeZ = attrInt(attrs, "SizeZ", 1)
	p.SizeC = attrInt(attrs, "SizeC", 1)
	p.SizeT = attrInt(attrs, "SizeT", 1)

	orderStr := attrValue(attrs, "DimensionOrder")
	order := DimensionOrder(orderStr)
	if !order.Valid() {
		return p, corerr.Newf(corerr.InvalidDimensionOrder, "unsupported DimensionOrder %q", orderStr)
	}
	p.DimensionOrder = order

	p.Type = attrValue(attrs, "Type")
	if p.Type == "" {
		p.Type = "uint16"
	}

	if v, ok := attrFloat(attrs, "PhysicalSizeX"); ok {
		p.PhysicalSizeX, p.HasPhysicalSizeX = v, true
	}
	if v, ok := attrFloat(attrs, "PhysicalSizeY"); ok {
		p.PhysicalSizeY, p.HasPhysicalSizeY = v, true
	}
	if v, ok := attrFloat(attrs, "PhysicalSizeZ"); ok {
		p.PhysicalSizeZ, p.HasPhysicalSizeZ = v, true
	}

	p.PhysicalSizeXUnit = orDefault(attrValue(attrs, "PhysicalSizeXUnit"), defaultUnit)
	p.PhysicalSizeYUnit = orDefault(attrValue(attrs, "PhysicalSizeYUnit"), defaultUnit)
	p.PhysicalSizeZUnit = orDefault(attrValue(attrs, "PhysicalSizeZUnit"), defaultUnit)

	p.BigEndian = attrValue(attrs, "BigEndian") == "true"
	p.Interleaved = attrValue(attrs, "Interleaved") == "true"

	return p, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseChannelAttrs(attrs []xml.Attr, index int) OmeChannel {
	c := OmeChannel{
		ID:              attrValue(attrs, "ID"),
		Name:            attrValue(attrs, "Name"),
		SamplesPerPixel: attrInt(attrs, "SamplesPerPixel", 1),
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("Channel:0:%d", index)
	}
	if colorStr := attrValue(attrs, "Color"); colorStr != "" {
		if n, err := strconv.ParseInt(colorStr, 10, 64); err == nil {
			c.HasColor = true
			c.Color = int32(n)
		}
	}
	return c
}

func parseTiffDataAttrs(attrs []xml.Attr) TiffDataEntry {
	return TiffDataEntry{
		FirstC:     attrInt(attrs, "FirstC", 0),
		FirstZ:     attrInt(attrs, "FirstZ", 0),
		FirstT:     attrInt(attrs, "FirstT", 0),
		IFD:        attrInt(attrs, "IFD", 0),
		PlaneCount: firstPositive(attrInt(attrs, "PlaneCount", 0), attrInt(attrs, "NumPlanes", 0), 1),
	}
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 1
}
