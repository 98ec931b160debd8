package tiff

import "testing"

func TestSliceTilesNonMultiple(t *testing.T) {
	across, down := SliceTiles(100, 50, 32, 32)
	if across != 4 || down != 2 {
		t.Fatalf("across,down = %d,%d, want 4,2", across, down)
	}
}

func TestTileImageZeroPadsEdges(t *testing.T) {
	width, height := 10, 10
	pixels := make([]byte, width*height)
	for i := range pixels {
		pixels[i] = byte(i + 1)
	}

	tiles := TileImage(pixels, width, height, 1, 8, 8)
	if len(tiles) != 4 {
		t.Fatalf("len(tiles) = %d, want 4", len(tiles))
	}

	// Bottom-right tile: only the top-left 2x2 corner is real data,
	// the rest of the 8x8 tile must be zero.
	brTile := tiles[3]
	if len(brTile) != 64 {
		t.Fatalf("len(tile) = %d, want 64", len(brTile))
	}
	if brTile[0] == 0 {
		t.Fatalf("expected non-zero real pixel at tile origin")
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if y >= 2 || x >= 2 {
				if brTile[y*8+x] != 0 {
					t.Fatalf("tile[%d,%d] = %d, want 0 (padding)", x, y, brTile[y*8+x])
				}
			}
		}
	}
}

func TestPrevPowerOf2(t *testing.T) {
	cases := map[int]int{-5: 1, 0: 1, 1: 1, 2: 2, 3: 2, 4: 4, 5: 4, 1023: 512, 1024: 1024, 1025: 1024}
	for n, want := range cases {
		if got := PrevPowerOf2(n); got != want {
			t.Errorf("PrevPowerOf2(%d) = %d, want %d", n, got, want)
		}
	}
}
