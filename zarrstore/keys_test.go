package zarrstore

import "testing"

func TestParseStoreKeyRootDoc(t *testing.T) {
	for _, key := range []string{"zarr.json", "/zarr.json"} {
		p, ok := parseStoreKey(key)
		if !ok || p.kind != keyRootDoc {
			t.Fatalf("parseStoreKey(%q) = %+v, %v", key, p, ok)
		}
	}
}

func TestParseStoreKeyLevelDoc(t *testing.T) {
	p, ok := parseStoreKey("2/zarr.json")
	if !ok || p.kind != keyLevelDoc || p.level != 2 {
		t.Fatalf("parseStoreKey = %+v, %v", p, ok)
	}
}

func TestParseStoreKeyRejectsNonNumericLevel(t *testing.T) {
	if _, ok := parseStoreKey("abc/zarr.json"); ok {
		t.Fatal("expected rejection of non-numeric level")
	}
	if _, ok := parseStoreKey("abc/c/0/0"); ok {
		t.Fatal("expected rejection of non-numeric chunk level")
	}
}

func TestParseStoreKeyChunk(t *testing.T) {
	p, ok := parseStoreKey("0/c/1/2/3")
	if !ok || p.kind != keyChunk || p.level != 0 {
		t.Fatalf("parseStoreKey = %+v, %v", p, ok)
	}
	if len(p.indices) != 3 || p.indices[0] != 1 || p.indices[1] != 2 || p.indices[2] != 3 {
		t.Fatalf("indices = %v", p.indices)
	}
}

func TestParseStoreKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "bogus", "0/x/1/2", "0/c/1/x"} {
		if _, ok := parseStoreKey(key); ok {
			t.Errorf("parseStoreKey(%q) unexpectedly accepted", key)
		}
	}
}
