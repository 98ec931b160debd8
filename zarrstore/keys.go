// Package zarrstore presents an opened OME-TIFF as a read-only,
// key-addressed Zarr v3 store: a root group document, one array
// document per pyramid level, and chunk bytes decoded on demand from
// the underlying TIFF tiles or strips.
package zarrstore

import (
	"strconv"
	"strings"

	"github.com/ome-io/tiffzarr/corerr"
)

// keyKind is the recognised shape of a store key.
type keyKind int

const (
	keyRootDoc keyKind = iota
	keyLevelDoc
	keyChunk
)

// parsedKey is the decomposition of a store key string.
type parsedKey struct {
	kind    keyKind
	level   int
	indices []int
}

// parseStoreKey decomposes a "/"-separated store key. A leading slash
// is accepted but not required. Returns ok=false for any key shape
// that is not one of the three recognised forms; callers treat that
// as "not found" rather than an error.
func parseStoreKey(key string) (parsedKey, bool) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return parsedKey{}, false
	}

	if key == "zarr.json" {
		return parsedKey{kind: keyRootDoc}, true
	}

	parts := strings.Split(key, "/")
	if len(parts) == 2 && parts[1] == "zarr.json" {
		level, err := strconv.Atoi(parts[0])
		if err != nil {
			return parsedKey{}, false
		}
		return parsedKey{kind: keyLevelDoc, level: level}, true
	}

	if len(parts) >= 3 && parts[1] == "c" {
		level, err := strconv.Atoi(parts[0])
		if err != nil {
			return parsedKey{}, false
		}
		indices := make([]int, 0, len(parts)-2)
		for _, p := range parts[2:] {
			i, err := strconv.Atoi(p)
			if err != nil {
				return parsedKey{}, false
			}
			indices = append(indices, i)
		}
		return parsedKey{kind: keyChunk, level: level, indices: indices}, true
	}

	return parsedKey{}, false
}

// errNotFound is never returned to callers directly; ReadKey reports
// absence via its bool return, matching the facade's "not found is not
// an error" policy. Kept for symmetry with decode-failure paths that
// do return a real error.
var errNotFound = corerr.New(corerr.BadOffset, "store key not found")
