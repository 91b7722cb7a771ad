package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

var ErrMalformed = errors.New("malformed export")

// ExportV1 is a recorded world segment: the bounding box and timespan it
// covers plus one entry per named layer.
type ExportV1 struct {
	Params Params             `json:"params"`
	Layers map[string]LayerV1 `json:"layers"`
}

type Params struct {
	BoundingBox [3][2]int `json:"bounding_box"`
	Timespan    []string  `json:"timespan,omitempty"`
	Title       string    `json:"title,omitempty"`
}

// LayerV1 keeps initial state and ops raw until the layer type is known.
type LayerV1 struct {
	Type    string          `json:"type"`
	Initial json.RawMessage `json:"initial"`
	Ops     json.RawMessage `json:"ops"`
}

// Options control how an export is read.
type Options struct {
	Validate bool
}

// Read loads a .json or .json.zst export.
func Read(path string, opts Options) (ExportV1, error) {
	var ex ExportV1
	f, err := os.Open(path)
	if err != nil {
		return ex, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 256*1024)
	if isCompressed(path) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return ex, err
		}
		defer dec.Close()
		r = dec
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return ex, fmt.Errorf("read export: %w", err)
	}
	return Decode(raw, opts)
}

// Decode parses an uncompressed export document.
func Decode(raw []byte, opts Options) (ExportV1, error) {
	var ex ExportV1
	if opts.Validate {
		if err := validate(raw); err != nil {
			return ex, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if err := json.Unmarshal(raw, &ex); err != nil {
		return ex, fmt.Errorf("%w: json decode: %v", ErrMalformed, err)
	}
	if len(ex.Layers) == 0 {
		return ex, fmt.Errorf("%w: no layers", ErrMalformed)
	}
	return ex, nil
}

// Write stores an export, zstd-compressed when path ends in .zst.
func Write(path string, ex ExportV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encodeTo(f, isCompressed(path), ex); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// encodeTo writes ex as JSON. When compress is set the zstd frame is
// closed before returning, so a failed final flush is reported.
func encodeTo(w io.Writer, compress bool, ex ExportV1) error {
	if !compress {
		return writeJSON(w, ex)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := writeJSON(enc, ex); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("zstd close: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, ex ExportV1) error {
	bw := bufio.NewWriterSize(w, 256*1024)
	if err := json.NewEncoder(bw).Encode(ex); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return bw.Flush()
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// LayerNames returns the layer names in sorted order.
func (ex ExportV1) LayerNames() []string {
	names := make([]string, 0, len(ex.Layers))
	for k := range ex.Layers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
