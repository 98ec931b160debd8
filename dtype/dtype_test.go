package dtype

import "testing"

func TestTiffToArrayDtypeBijection(t *testing.T) {
	cases := []struct {
		format RasterSampleFormat
		bits   int
		want   ArrayDType
	}{
		{Unsigned, 8, Uint8},
		{Unsigned, 16, Uint16},
		{Unsigned, 32, Uint32},
		{Signed, 8, Int8},
		{Signed, 16, Int16},
		{Signed, 32, Int32},
		{Float, 32, Float32},
		{Float, 64, Float64},
	}

	for _, c := range cases {
		got, err := TiffToArrayDtype(c.format, c.bits)
		if err != nil {
			t.Fatalf("TiffToArrayDtype(%v, %d): %v", c.format, c.bits, err)
		}
		if got != c.want {
			t.Fatalf("TiffToArrayDtype(%v, %d) = %v, want %v", c.format, c.bits, got, c.want)
		}

		format, bits, err := ArrayDtypeToTiff(got)
		if err != nil {
			t.Fatalf("ArrayDtypeToTiff(%v): %v", got, err)
		}
		if format != c.format || bits != c.bits {
			t.Fatalf("ArrayDtypeToTiff(%v) = (%v, %d), want (%v, %d)", got, format, bits, c.format, c.bits)
		}
	}
}

func TestTiffToArrayDtypeUnsupported(t *testing.T) {
	unsupported := []struct {
		format RasterSampleFormat
		bits   int
	}{
		{Float, 16},
		{Unsigned, 64},
		{Signed, 64},
	}

	for _, c := range unsupported {
		if _, err := TiffToArrayDtype(c.format, c.bits); err == nil {
			t.Fatalf("TiffToArrayDtype(%v, %d) expected UnsupportedDtype error", c.format, c.bits)
		}
	}
}

func TestOmeTypeToArrayDtype(t *testing.T) {
	cases := map[string]ArrayDType{
		"uint16": Uint16,
		"UINT16": Uint16,
		"float":  Float32,
		"Float":  Float32,
		"double": Float64,
		"int8":   Int8,
	}

	for in, want := range cases {
		got, err := OmeTypeToArrayDtype(in)
		if err != nil {
			t.Fatalf("OmeTypeToArrayDtype(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("OmeTypeToArrayDtype(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := OmeTypeToArrayDtype("bogus"); err == nil {
		t.Fatal("expected error for unknown OME type")
	}
}

func TestRoundTripOmeType(t *testing.T) {
	for _, d := range []ArrayDType{Int8, Int16, Int32, Uint8, Uint16, Uint32, Float32, Float64} {
		omeType, err := ArrayDtypeToOmeType(d)
		if err != nil {
			t.Fatalf("ArrayDtypeToOmeType(%v): %v", d, err)
		}
		back, err := OmeTypeToArrayDtype(omeType)
		if err != nil {
			t.Fatalf("OmeTypeToArrayDtype(%q): %v", omeType, err)
		}
		if back != d {
			t.Fatalf("round trip %v -> %q -> %v", d, omeType, back)
		}
	}
}

func TestBytesPerElement(t *testing.T) {
	cases := map[ArrayDType]int{
		Int8: 1, Uint8: 1,
		Int16: 2, Uint16: 2,
		Int32: 4, Uint32: 4, Float32: 4,
		Float64: 8,
	}
	for d, want := range cases {
		got, err := BytesPerElement(d)
		if err != nil {
			t.Fatalf("BytesPerElement(%v): %v", d, err)
		}
		if got != want {
			t.Fatalf("BytesPerElement(%v) = %d, want %d", d, got, want)
		}
	}
}
