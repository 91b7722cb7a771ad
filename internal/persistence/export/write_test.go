package export

import (
	"errors"
	"testing"
)

var errDiskFull = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errDiskFull }

func TestEncodeToReportsZstdFlushError(t *testing.T) {
	ex := ExportV1{Params: Params{BoundingBox: [3][2]int{{0, 1}, {0, 1}, {0, 1}}}}
	// the zstd encoder buffers the small document, so the failure only
	// surfaces when the frame is closed
	if err := encodeTo(failingWriter{}, true, ex); err == nil {
		t.Fatalf("compressed: write error was dropped")
	}
	if err := encodeTo(failingWriter{}, false, ex); !errors.Is(err, errDiskFull) {
		t.Fatalf("plain: expected disk full, got %v", err)
	}
}
