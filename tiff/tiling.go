package tiff

// TileImage partitions a dense, row-major pixels buffer of width x
// height x bpe bytes into tileW x tileH tiles, enumerated row-major
// (left-to-right within a row of tiles, then top-to-bottom). Pixels
// at the right/bottom edges are zero-padded to the full tile size.
func TileImage(pixels []byte, width, height, bpe, tileW, tileH int) [][]byte {
	across, down := SliceTiles(width, height, tileW, tileH)
	tiles := make([][]byte, 0, across*down)

	for row := 0; row < down; row++ {
		for col := 0; col < across; col++ {
			tile := make([]byte, tileW*tileH*bpe)
			x0, y0 := col*tileW, row*tileH
			rowsHere := min(tileH, height-y0)
			colsHere := min(tileW, width-x0)
			if rowsHere > 0 && colsHere > 0 {
				rowBytes := colsHere * bpe
				for y := 0; y < rowsHere; y++ {
					srcOff := ((y0+y)*width + x0) * bpe
					dstOff := (y * tileW) * bpe
					copy(tile[dstOff:dstOff+rowBytes], pixels[srcOff:srcOff+rowBytes])
				}
			}
			tiles = append(tiles, tile)
		}
	}
	return tiles
}

// SliceStrips partitions pixels into full-width horizontal bands of
// rowsPerStrip rows each; the final strip may be shorter and is not
// padded (strips, unlike tiles, are not subject to the zero-padding
// invariant).
func SliceStrips(pixels []byte, width, height, bpe, rowsPerStrip int) [][]byte {
	if rowsPerStrip <= 0 {
		rowsPerStrip = height
	}
	count := ceilDiv(height, rowsPerStrip)
	strips := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		y0 := i * rowsPerStrip
		rows := min(rowsPerStrip, height-y0)
		start := y0 * width * bpe
		end := start + rows*width*bpe
		strips = append(strips, pixels[start:end])
	}
	return strips
}

// PrevPowerOf2 returns the largest power of two <= n for n >= 1, and
// 1 for n <= 0.
func PrevPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
