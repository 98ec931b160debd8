package omewriter

import (
	"context"
	"sync"
	"testing"

	"github.com/ome-io/tiffzarr/dtype"
	"github.com/ome-io/tiffzarr/omexml"
	"github.com/ome-io/tiffzarr/pyramid"
	"github.com/ome-io/tiffzarr/tiff"
)

// recordingReader fills every plane with a byte identifying its own
// (c, z, t) and records the order in which planes were requested at
// level 0.
type recordingReader struct {
	sizeX, sizeY int
	levels       []LevelDims

	mu      sync.Mutex
	visited []int
	order   omexml.DimensionOrder
	sizeC, sizeZ, sizeT int
}

func (r *recordingReader) Read(ctx context.Context, level, c, z, t int) ([]byte, error) {
	if level == 0 {
		k, err := pyramid.PlaneToIfdIndex(r.order, r.sizeC, r.sizeZ, r.sizeT, c, z, t)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.visited = append(r.visited, k)
		r.mu.Unlock()
	}
	dims := r.levels[level]
	buf := make([]byte, dims.Width*dims.Height)
	for i := range buf {
		buf[i] = byte(c*100 + z*10 + t)
	}
	return buf, nil
}

func TestS4WriterVisitsExactIndexSequence(t *testing.T) {
	ctx := context.Background()
	const sizeC, sizeZ, sizeT = 3, 2, 2
	reader := &recordingReader{
		levels: []LevelDims{{Width: 4, Height: 4}},
		order:  omexml.XYTZC,
		sizeC:  sizeC, sizeZ: sizeZ, sizeT: sizeT,
	}
	ms := Multiscale{
		SizeC: sizeC, SizeZ: sizeZ, SizeT: sizeT,
		ElementType:    dtype.Uint8,
		DimensionOrder: omexml.XYTZC,
		Levels:         reader.levels,
	}

	buf, err := Write(ctx, ms, reader, WriteOptions{Concurrency: 1})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(buf) == 0 {
		t.Fatal("expected non-empty output")
	}

	reader.mu.Lock()
	defer reader.mu.Unlock()
	if len(reader.visited) != sizeC*sizeZ*sizeT {
		t.Fatalf("len(visited) = %d, want %d", len(reader.visited), sizeC*sizeZ*sizeT)
	}
	for k, v := range reader.visited {
		if v != k {
			t.Fatalf("visited[%d] = %d, want %d (single-worker order must match k)", k, v, k)
		}
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	const sizeC, sizeZ, sizeT = 2, 1, 1
	levels := []LevelDims{{Width: 8, Height: 8}, {Width: 4, Height: 4}}
	reader := &recordingReader{levels: levels, order: omexml.XYZCT, sizeC: sizeC, sizeZ: sizeZ, sizeT: sizeT}
	ms := Multiscale{
		SizeC: sizeC, SizeZ: sizeZ, SizeT: sizeT,
		ElementType:    dtype.Uint8,
		DimensionOrder: omexml.XYZCT,
		Levels:         levels,
		Channels:       []omexml.OmeChannel{{ID: "Channel:0:0"}, {ID: "Channel:0:1"}},
	}

	buf, err := Write(ctx, ms, reader, WriteOptions{Concurrency: 4, TileWidth: 8, TileHeight: 8})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := tiff.Open(ctx, tiff.NewMemoryByteSource(buf))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	chain, err := f.MainChain(ctx)
	if err != nil {
		t.Fatalf("MainChain: %v", err)
	}
	if len(chain) != sizeC {
		t.Fatalf("len(chain) = %d, want %d", len(chain), sizeC)
	}

	for c := 0; c < sizeC; c++ {
		subs := chain[c].SubIFDOffsets()
		if len(subs) != 1 {
			t.Fatalf("plane %d has %d SubIFDs, want 1", c, len(subs))
		}
		sub, err := f.ReadIFD(ctx, subs[0])
		if err != nil {
			t.Fatalf("ReadIFD: %v", err)
		}
		if !sub.IsReducedResolution() {
			t.Fatalf("plane %d SubIFD missing NewSubfileType", c)
		}
		window, err := f.ReadWindow(ctx, chain[c], 0, 0, 8, 8)
		if err != nil {
			t.Fatalf("ReadWindow: %v", err)
		}
		want := byte(c * 100)
		for _, b := range window {
			if b != want {
				t.Fatalf("plane c=%d has pixel %d, want %d", c, b, want)
			}
		}
	}

	desc, ok := chain[0].ImageDescription()
	if !ok || !omexml.IsOmeXml(desc) {
		t.Fatal("expected OME-XML ImageDescription on first IFD")
	}
	parsed, err := omexml.Parse(desc)
	if err != nil {
		t.Fatalf("Parse(ImageDescription): %v", err)
	}
	if len(parsed.Images) != 1 || len(parsed.Images[0].Pixels.TiffData) != 1 {
		t.Fatalf("expected exactly one TiffData element, got %+v", parsed.Images[0].Pixels.TiffData)
	}
	if got, want := parsed.Images[0].Pixels.TiffData[0].PlaneCount, sizeC*sizeZ*sizeT; got != want {
		t.Fatalf("TiffData PlaneCount = %d, want %d", got, want)
	}
}

func TestWriteRejectsInvalidDimensionOrder(t *testing.T) {
	ctx := context.Background()
	ms := Multiscale{
		SizeC: 1, SizeZ: 1, SizeT: 1,
		ElementType:    dtype.Uint8,
		DimensionOrder: omexml.DimensionOrder("bogus"),
		Levels:         []LevelDims{{Width: 2, Height: 2}},
	}
	_, err := Write(ctx, ms, &recordingReader{levels: ms.Levels}, WriteOptions{})
	if err == nil {
		t.Fatal("expected error for invalid DimensionOrder")
	}
}

func TestWriteCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ms := Multiscale{
		SizeC: 4, SizeZ: 1, SizeT: 1,
		ElementType:    dtype.Uint8,
		DimensionOrder: omexml.XYZCT,
		Levels:         []LevelDims{{Width: 4, Height: 4}},
	}
	_, err := Write(ctx, ms, &recordingReader{levels: ms.Levels, order: omexml.XYZCT, sizeC: 4, sizeZ: 1, sizeT: 1}, WriteOptions{Concurrency: 1})
	if err == nil {
		t.Fatal("expected Cancelled error")
	}
}
