package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Mesh buffer encodings used on the viewer wire.
const (
	F32LE = "F32LE"
	U32LE = "U32LE"
)

func EncodeF32LE(v []float32) string {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeF32LE(s string) ([]float32, error) {
	b, err := decode4(s)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

func EncodeU32LE(v []uint32) string {
	b := make([]byte, 4*len(v))
	for i, u := range v {
		binary.LittleEndian.PutUint32(b[4*i:], u)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeU32LE(s string) ([]uint32, error) {
	b, err := decode4(s)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return out, nil
}

func decode4(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("buffer length %d is not a multiple of 4", len(b))
	}
	return b, nil
}
