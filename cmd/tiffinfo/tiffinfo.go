// Command tiffinfo prints the IFD chain, pyramid structure, and any
// embedded OME-XML of an OME-TIFF file.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ome-io/tiffzarr/omexml"
	"github.com/ome-io/tiffzarr/pyramid"
	"github.com/ome-io/tiffzarr/tiff"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file.tif>\n", os.Args[0])
		os.Exit(2)
	}

	if err := run(os.Args[1]); err != nil {
		log.Fatal(err)
	}
}

func run(path string) error {
	ctx := context.Background()

	src, err := tiff.OpenFileByteSource(path)
	if err != nil {
		return err
	}
	defer src.Close()

	f, err := tiff.Open(ctx, src)
	if err != nil {
		return err
	}

	chain, err := f.MainChain(ctx)
	if err != nil {
		return err
	}

	fmt.Println(path)
	fmt.Printf("Format: %s\n", formatName(f.Format()))
	fmt.Printf("Number of IFDs: %d\n\n", len(chain))

	var parsed *omexml.ParseResult
	for index, ifd := range chain {
		fmt.Printf("- IFD %d\n", index)
		fmt.Printf("Image size: %d x %d\n", ifd.Width(), ifd.Height())
		fmt.Printf("BitsPerSample: %d\n", ifd.BitsPerSample())
		fmt.Printf("SamplesPerPixel: %d\n", ifd.SamplesPerPixel())
		fmt.Printf("Compression: %d\n", ifd.Compression())
		if ifd.IsTiled() {
			fmt.Printf("Tiles: %d x %d\n", ifd.TileWidth(), ifd.TileLength())
		} else {
			fmt.Printf("RowsPerStrip: %d\n", ifd.RowsPerStrip())
		}
		if subs := ifd.SubIFDOffsets(); len(subs) > 0 {
			fmt.Printf("SubIFDs: %d\n", len(subs))
		}

		if desc, ok := ifd.ImageDescription(); ok {
			if omexml.IsOmeXml(desc) {
				fmt.Println("ImageDescription: OME-XML")
				if parsed == nil {
					parsed, err = omexml.Parse(desc)
					if err != nil {
						fmt.Printf("  (parse error: %v)\n", err)
					}
				}
			} else {
				fmt.Printf("ImageDescription: %s\n", desc)
			}
		}
		fmt.Println()
	}

	if parsed != nil && len(parsed.Images) > 0 {
		pixels := parsed.Images[0].Pixels
		fmt.Println("OME-XML summary:")
		fmt.Printf("  DimensionOrder: %s\n", pixels.DimensionOrder)
		fmt.Printf("  Size: X=%d Y=%d Z=%d C=%d T=%d\n", pixels.SizeX, pixels.SizeY, pixels.SizeZ, pixels.SizeC, pixels.SizeT)
		fmt.Printf("  Type: %s\n", pixels.Type)
		fmt.Printf("  Channels: %d\n", len(pixels.Channels))

		idx, err := pyramid.New(ctx, f, parsed)
		if err != nil {
			return err
		}
		info := idx.Pyramid()
		fmt.Printf("  Pyramid levels: %d (SubIFDs: %v)\n", info.Levels, info.UsesSubIFDs)
		for level := 0; level < info.Levels; level++ {
			fmt.Printf("    level %d: %d x %d\n", level, info.Widths[level], info.Heights[level])
		}
	}

	return nil
}

func formatName(f tiff.Format) string {
	switch f {
	case tiff.FormatClassic:
		return "classic"
	case tiff.FormatBigTIFF:
		return "bigtiff"
	default:
		return "unknown"
	}
}
