// Command ome2zarr serves the Zarr v3 store view of an OME-TIFF file
// over HTTP, or resolves a single store key to stdout.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/ome-io/tiffzarr/omexml"
	"github.com/ome-io/tiffzarr/pyramid"
	"github.com/ome-io/tiffzarr/tiff"
	"github.com/ome-io/tiffzarr/zarrstore"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file.tif> [key | -serve addr]\n", os.Args[0])
		os.Exit(2)
	}

	path := os.Args[1]
	store, f, err := openStore(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	switch {
	case len(os.Args) >= 4 && os.Args[2] == "-serve":
		serve(store, os.Args[3])
	case len(os.Args) >= 3:
		resolveKey(store, os.Args[2])
	default:
		serve(store, ":8080")
	}
}

func openStore(path string) (*zarrstore.Store, *tiff.FileByteSource, error) {
	ctx := context.Background()

	src, err := tiff.OpenFileByteSource(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := tiff.Open(ctx, src)
	if err != nil {
		src.Close()
		return nil, nil, err
	}

	chain, err := f.MainChain(ctx)
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	if len(chain) == 0 {
		src.Close()
		return nil, nil, fmt.Errorf("%s: no IFDs", path)
	}

	desc, ok := chain[0].ImageDescription()
	if !ok || !omexml.IsOmeXml(desc) {
		src.Close()
		return nil, nil, fmt.Errorf("%s: no OME-XML ImageDescription on first IFD", path)
	}
	parsed, err := omexml.Parse(desc)
	if err != nil {
		src.Close()
		return nil, nil, err
	}

	idx, err := pyramid.New(ctx, f, parsed)
	if err != nil {
		src.Close()
		return nil, nil, err
	}

	return zarrstore.New(f, idx), src, nil
}

func resolveKey(store *zarrstore.Store, key string) {
	data, found, err := store.ReadKey(context.Background(), key)
	if err != nil {
		log.Fatal(err)
	}
	if !found {
		fmt.Fprintf(os.Stderr, "not found: %s\n", key)
		os.Exit(1)
	}
	os.Stdout.Write(data)
}

func serve(store *zarrstore.Store, addr string) {
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		data, found, err := store.ReadKey(r.Context(), key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !found {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(key, "zarr.json") {
			w.Header().Set("Content-Type", "application/json")
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		io.Copy(w, bytes.NewReader(data))
	})

	log.Printf("serving Zarr store on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
