package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"voxelreplay.ai/internal/sim/palette"
)

// RLE is the VOXELS dump encoding: base64 of (uint16 LE palette id,
// uvarint run) pairs over the chunk storage in y, z, x order, x fastest.
// Runs never cross a Y layer.
const RLE = "PAL16_RLE_YZX"

// Dims is a chunk extent in cells: X, Y, Z.
type Dims [3]int

func (d Dims) Cells() int { return d[0] * d[1] * d[2] }

// Index is the storage offset of local cell (x, y, z).
func (d Dims) Index(x, y, z int) int { return x + d[0]*(z+d[2]*y) }

func (d Dims) layer() int { return d[0] * d[2] }

func (d Dims) check() error {
	if d[0] <= 0 || d[1] <= 0 || d[2] <= 0 {
		return fmt.Errorf("bad chunk dims %v", [3]int(d))
	}
	return nil
}

// EncodeChunk dumps ids, which must hold exactly d.Cells() entries.
func EncodeChunk(d Dims, ids []palette.ID) (string, error) {
	if err := d.check(); err != nil {
		return "", err
	}
	if len(ids) != d.Cells() {
		return "", fmt.Errorf("chunk has %d ids, dims %v need %d", len(ids), [3]int(d), d.Cells())
	}
	layer := d.layer()
	buf := make([]byte, 0, 3*d[1])
	for start := 0; start < len(ids); start += layer {
		row := ids[start : start+layer]
		for i := 0; i < len(row); {
			id := row[i]
			run := 1
			for i+run < len(row) && row[i+run] == id {
				run++
			}
			buf = binary.LittleEndian.AppendUint16(buf, uint16(id))
			buf = binary.AppendUvarint(buf, uint64(run))
			i += run
		}
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// DecodeChunk is the inverse of EncodeChunk.
func DecodeChunk(d Dims, b64 string) ([]palette.ID, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	layer := d.layer()
	out := make([]palette.ID, 0, d.Cells())
	for i := 0; i < len(raw); {
		if len(raw)-i < 2 {
			return nil, fmt.Errorf("truncated id at %d", i)
		}
		id := binary.LittleEndian.Uint16(raw[i:])
		i += 2
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if left := layer - len(out)%layer; run == 0 || run > uint64(left) {
			return nil, fmt.Errorf("run of %d at %d crosses a layer of %d cells", run, i, layer)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, palette.ID(id))
		}
	}
	if len(out) != d.Cells() {
		return nil, fmt.Errorf("decoded %d ids, want %d", len(out), d.Cells())
	}
	return out, nil
}
