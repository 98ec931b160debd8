package tiff

import (
	"io"
	"log"
)

// Logger receives diagnostic detail the teacher would have printed
// unconditionally (which pyramid strategy got picked, which tags were
// skipped, IFD cache hits). It defaults to discarding everything;
// callers that want the detail reassign it to a logger of their own,
// the way the teacher's own scattered log.Println calls would have
// been silenced with a no-op writer.
var Logger = log.New(io.Discard, "tiff: ", log.Lshortfile)
