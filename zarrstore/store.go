package zarrstore

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/ome-io/tiffzarr/dtype"
	"github.com/ome-io/tiffzarr/pyramid"
	"github.com/ome-io/tiffzarr/tiff"
)

// Store presents an opened OME-TIFF as a read-only Zarr v3 store.
// Synthesised JSON documents are cached as their encoded byte strings
// so repeated requests for the same key return the identical bytes.
type Store struct {
	f   *tiff.File
	idx *pyramid.Indexer

	mu        sync.Mutex
	rootDoc   []byte
	levelDocs map[int][]byte
}

// New wraps an opened file and its indexer as a Zarr store.
func New(f *tiff.File, idx *pyramid.Indexer) *Store {
	return &Store{f: f, idx: idx, levelDocs: make(map[int][]byte)}
}

// ReadKey resolves a store key. found is false for any unrecognised
// key, out-of-range level, chunk path with the wrong number of
// indices, or (c, z, t) outside the image: absence, not an error. A
// chunk whose y/x position lies entirely past the image edge is found
// and returned as a zero-filled chunk. A non-nil error means the key
// was recognised but decoding the underlying TIFF failed.
func (s *Store) ReadKey(ctx context.Context, key string) (data []byte, found bool, err error) {
	parsed, ok := parseStoreKey(key)
	if !ok {
		return nil, false, nil
	}

	switch parsed.kind {
	case keyRootDoc:
		doc, err := s.rootGroupDoc()
		if err != nil {
			return nil, false, err
		}
		return doc, true, nil

	case keyLevelDoc:
		if parsed.level < 0 || parsed.level >= s.idx.Pyramid().Levels {
			return nil, false, nil
		}
		doc, err := s.levelArrayDoc(parsed.level)
		if err != nil {
			return nil, false, err
		}
		return doc, true, nil

	case keyChunk:
		return s.readChunk(ctx, parsed.level, parsed.indices)

	default:
		return nil, false, nil
	}
}

func (s *Store) rootGroupDoc() ([]byte, error) {
	s.mu.Lock()
	if s.rootDoc != nil {
		defer s.mu.Unlock()
		return s.rootDoc, nil
	}
	s.mu.Unlock()

	pixels := s.idx.Pixels()
	info := s.idx.Pyramid()
	axs := axes(pixels)

	elementType, err := dtype.OmeTypeToArrayDtype(pixels.Type)
	if err != nil {
		return nil, err
	}

	axisDocs := make([]axisDoc, len(axs))
	for i, a := range axs {
		axisDocs[i] = axisDoc{Name: a.name, Type: a.kind, Unit: a.unit}
	}

	datasets := make([]datasetDoc, info.Levels)
	for level := 0; level < info.Levels; level++ {
		scale := scaleAt(pixels, info.Widths, info.Heights, level, axs)
		datasets[level] = datasetDoc{
			Path:                      strconv.Itoa(level),
			CoordinateTransformations: []scaleTransform{{Type: "scale", Scale: scale}},
		}
	}

	doc := rootGroupDoc{
		ZarrFormat: 3,
		NodeType:   "group",
		Attributes: rootAttributesDoc{
			Ome: omeAttrDoc{
				Version: "0.5",
				Multiscales: []multiscaleDoc{{
					Axes:     axisDocs,
					Datasets: datasets,
				}},
				Omero: buildOmero(pixels, elementType),
			},
		},
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rootDoc = encoded
	s.mu.Unlock()
	return encoded, nil
}

func (s *Store) levelArrayDoc(level int) ([]byte, error) {
	s.mu.Lock()
	if cached, ok := s.levelDocs[level]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	pixels := s.idx.Pixels()
	info := s.idx.Pyramid()
	axs := axes(pixels)

	ctx := context.Background()
	tileW, tileH, err := s.levelGeometry(ctx, level)
	if err != nil {
		return nil, err
	}

	elementType, err := dtype.OmeTypeToArrayDtype(pixels.Type)
	if err != nil {
		return nil, err
	}

	shape := shapeAt(pixels, info.Widths, info.Heights, level, axs)
	chunkShape := chunkShapeAt(shape, axs, tileW, tileH)

	doc := levelArrayDoc{
		ZarrFormat: 3,
		NodeType:   "array",
		Shape:      shape,
		DataType:   elementType.String(),
		ChunkGrid: chunkGridDoc{
			Name:          "regular",
			Configuration: chunkGridConfigDoc{ChunkShape: chunkShape},
		},
		ChunkKeyEncoding: chunkKeyEncodingDoc{
			Name:          "default",
			Configuration: chunkKeyEncodingConfigDoc{Separator: "/"},
		},
		FillValue:      0,
		Codecs:         []codecDoc{{Name: "bytes", Configuration: codecConfigDoc{Endian: "little"}}},
		DimensionNames: axisNames(axs),
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.levelDocs[level] = encoded
	s.mu.Unlock()
	return encoded, nil
}

// levelGeometry returns the tile width/height for level, reading an
// arbitrary (c=0,z=0,t=0) plane's IFD; tile geometry is assumed
// constant across planes of a level.
func (s *Store) levelGeometry(ctx context.Context, level int) (tileW, tileH int, err error) {
	ifd, err := s.idx.IFD(ctx, 0, 0, 0, level)
	if err != nil {
		return 0, 0, err
	}
	if ifd.IsTiled() {
		return ifd.TileWidth(), ifd.TileLength(), nil
	}
	return ifd.Width(), ifd.Height(), nil
}

func (s *Store) readChunk(ctx context.Context, level int, indices []int) ([]byte, bool, error) {
	info := s.idx.Pyramid()
	if level < 0 || level >= info.Levels {
		return nil, false, nil
	}
	pixels := s.idx.Pixels()
	axs := axes(pixels)
	if len(indices) != len(axs) {
		return nil, false, nil
	}

	c, z, t, yIdx, xIdx := 0, 0, 0, -1, -1
	for i, a := range axs {
		switch a.name {
		case "t":
			t = indices[i]
		case "c":
			c = indices[i]
		case "z":
			z = indices[i]
		case "y":
			yIdx = indices[i]
		case "x":
			xIdx = indices[i]
		}
	}
	if yIdx < 0 || xIdx < 0 {
		return nil, false, nil
	}
	if !pixels.PlaneSelectionValid(c, z, t) {
		return nil, false, nil
	}

	tileW, tileH, err := s.levelGeometry(ctx, level)
	if err != nil {
		return nil, false, err
	}
	imageW, imageH := info.Widths[level], info.Heights[level]

	elementType, err := dtype.OmeTypeToArrayDtype(pixels.Type)
	if err != nil {
		return nil, false, err
	}
	bpe, err := dtype.BytesPerElement(elementType)
	if err != nil {
		return nil, false, err
	}

	chunkW := minInt(tileW, imageW)
	chunkH := minInt(tileH, imageH)
	out := make([]byte, chunkW*chunkH*bpe)

	left, top := xIdx*chunkW, yIdx*chunkH
	right, bottom := minInt((xIdx+1)*chunkW, imageW), minInt((yIdx+1)*chunkH, imageH)
	if left >= right || top >= bottom || left >= imageW || top >= imageH {
		return out, true, nil
	}

	ifd, err := s.idx.IFD(ctx, c, z, t, level)
	if err != nil {
		return nil, false, err
	}
	window, err := s.f.ReadWindow(ctx, ifd, left, top, right, bottom)
	if err != nil {
		return nil, false, err
	}

	windowW := (right - left) * bpe
	for row := 0; row < bottom-top; row++ {
		srcOff := row * windowW
		dstOff := row * chunkW * bpe
		copy(out[dstOff:dstOff+windowW], window[srcOff:srcOff+windowW])
	}
	return out, true, nil
}
