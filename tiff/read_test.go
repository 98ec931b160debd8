package tiff

import (
	"bytes"
	"context"
	"testing"

	"github.com/ome-io/tiffzarr/deflate"
)

func TestReadWindowTiledDeflateRoundTrip(t *testing.T) {
	const width, height, tile = 48, 48, 32
	pixels := make([]byte, width*height)
	for i := range pixels {
		pixels[i] = byte(i % 256)
	}

	rawTiles := TileImage(pixels, width, height, 1, tile, tile)
	compressed := make([][]byte, len(rawTiles))
	for i, rt := range rawTiles {
		c, err := deflate.Compress(rt, deflate.DefaultLevel)
		if err != nil {
			t.Fatalf("Compress: %v", err)
		}
		compressed[i] = c
	}

	d := &IFDDescriptor{
		Width: width, Height: height,
		BitsPerSample: 8,
		SampleFormat:  SampleFormatUnsigned,
		Compression:   CompressionDeflate,
		TileWidth:     tile, TileHeight: tile,
		Tiles: compressed,
	}

	buf, err := Write([]*IFDDescriptor{d}, WriteOptions{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	ctx := context.Background()
	f, err := Open(ctx, NewMemoryByteSource(buf))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	chain, err := f.MainChain(ctx)
	if err != nil {
		t.Fatalf("MainChain: %v", err)
	}

	full, err := f.ReadWindow(ctx, chain[0], 0, 0, width, height)
	if err != nil {
		t.Fatalf("ReadWindow(full): %v", err)
	}
	if !bytes.Equal(full, pixels) {
		t.Fatalf("full window round trip mismatch")
	}

	sub, err := f.ReadWindow(ctx, chain[0], 16, 16, 40, 40)
	if err != nil {
		t.Fatalf("ReadWindow(sub): %v", err)
	}
	wantW, wantH := 24, 24
	if len(sub) != wantW*wantH {
		t.Fatalf("len(sub) = %d, want %d", len(sub), wantW*wantH)
	}
	for y := 0; y < wantH; y++ {
		for x := 0; x < wantW; x++ {
			want := pixels[(16+y)*width+(16+x)]
			got := sub[y*wantW+x]
			if got != want {
				t.Fatalf("sub[%d,%d] = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	buf := []byte{'I', 'I', 0x00, 0x00, 0, 0, 0, 0}
	_, err := Open(context.Background(), NewMemoryByteSource(buf))
	if err == nil {
		t.Fatal("expected BadMagic error")
	}
}

func TestOpenRejectsBigEndian(t *testing.T) {
	buf := []byte{'M', 'M', 0x00, 0x2A, 0, 0, 0, 8}
	_, err := Open(context.Background(), NewMemoryByteSource(buf))
	if err == nil {
		t.Fatal("expected error for big-endian input")
	}
}
