package zarrstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/ome-io/tiffzarr/dtype"
	"github.com/ome-io/tiffzarr/omexml"
	"github.com/ome-io/tiffzarr/pyramid"
	"github.com/ome-io/tiffzarr/tiff"
)

func gradient64() []byte {
	pixels := make([]byte, 64*64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			pixels[y*64+x] = byte((x + y) % 256)
		}
	}
	return pixels
}

func buildSingleLevelStore(t *testing.T) (*Store, *tiff.File) {
	t.Helper()
	ctx := context.Background()

	pixels := gradient64()
	xml, err := omexml.Generate(omexml.GenerateInput{
		DimensionOrder: omexml.XYZCT,
		ElementType:    dtype.Uint8,
		SizeX:          64, SizeY: 64, SizeZ: 1, SizeC: 1, SizeT: 1,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	desc := &tiff.IFDDescriptor{
		Width: 64, Height: 64,
		BitsPerSample:    8,
		SampleFormat:     tiff.SampleFormatUnsigned,
		Compression:      tiff.CompressionNone,
		TileWidth:        64,
		TileHeight:       64,
		ImageDescription: xml,
		Tiles:            [][]byte{pixels},
	}

	buf, err := tiff.Write([]*tiff.IFDDescriptor{desc}, tiff.WriteOptions{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := tiff.Open(ctx, tiff.NewMemoryByteSource(buf))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	parsed, err := omexml.Parse(xml)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, err := pyramid.New(ctx, f, parsed)
	if err != nil {
		t.Fatalf("pyramid.New: %v", err)
	}
	return New(f, idx), f
}

func TestS6ChunkReadMatchesImage(t *testing.T) {
	ctx := context.Background()
	store, _ := buildSingleLevelStore(t)

	data, found, err := store.ReadKey(ctx, "0/c/0/0")
	if err != nil {
		t.Fatalf("ReadKey: %v", err)
	}
	if !found {
		t.Fatal("expected chunk to be found")
	}
	if len(data) != 4096 {
		t.Fatalf("len(data) = %d, want 4096", len(data))
	}
	if !bytes.Equal(data, gradient64()) {
		t.Fatal("chunk bytes do not match source image")
	}
}

func TestS6LevelDocNotFoundBeyondPyramid(t *testing.T) {
	ctx := context.Background()
	store, _ := buildSingleLevelStore(t)

	_, found, err := store.ReadKey(ctx, "2/zarr.json")
	if err != nil {
		t.Fatalf("ReadKey: %v", err)
	}
	if found {
		t.Fatal("expected level 2 to be not found on a one-level file")
	}
}

func TestS6OffImageChunkIsZeroFilled(t *testing.T) {
	ctx := context.Background()
	store, _ := buildSingleLevelStore(t)

	data, found, err := store.ReadKey(ctx, "0/c/2/0")
	if err != nil {
		t.Fatalf("ReadKey: %v", err)
	}
	if !found {
		t.Fatal("expected chunk to be found (zero-filled)")
	}
	if len(data) != 4096 {
		t.Fatalf("len(data) = %d, want 4096", len(data))
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("data[%d] = %d, want 0", i, b)
		}
	}
}

func TestRootGroupDocHasExpectedShape(t *testing.T) {
	ctx := context.Background()
	store, _ := buildSingleLevelStore(t)

	doc, found, err := store.ReadKey(ctx, "zarr.json")
	if err != nil {
		t.Fatalf("ReadKey: %v", err)
	}
	if !found {
		t.Fatal("expected root doc to be found")
	}
	if !bytes.Contains(doc, []byte(`"zarr_format":3`)) {
		t.Fatalf("root doc missing zarr_format: %s", doc)
	}
	if !bytes.Contains(doc, []byte(`"node_type":"group"`)) {
		t.Fatalf("root doc missing node_type: %s", doc)
	}
}

func TestLevelArrayDocShapeMatchesAxes(t *testing.T) {
	ctx := context.Background()
	store, _ := buildSingleLevelStore(t)

	doc, found, err := store.ReadKey(ctx, "0/zarr.json")
	if err != nil {
		t.Fatalf("ReadKey: %v", err)
	}
	if !found {
		t.Fatal("expected level 0 doc to be found")
	}
	if !bytes.Contains(doc, []byte(`"shape":[64,64]`)) {
		t.Fatalf("level doc shape unexpected: %s", doc)
	}
	if !bytes.Contains(doc, []byte(`"dimension_names":["y","x"]`)) {
		t.Fatalf("level doc dimension_names unexpected: %s", doc)
	}
}

func TestReadKeyUnrecognisedIsNotFound(t *testing.T) {
	ctx := context.Background()
	store, _ := buildSingleLevelStore(t)

	_, found, err := store.ReadKey(ctx, "bogus/key/shape")
	if err != nil {
		t.Fatalf("ReadKey: %v", err)
	}
	if found {
		t.Fatal("expected unrecognised key to be not found")
	}
}
