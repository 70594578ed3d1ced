package store

import (
	"encoding/binary"
	"encoding/json"
	"math"

	memerrors "github.com/rshah/memex/internal/errors"
)

// packEmbedding encodes a float32 vector as packed little-endian bytes.
func packEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// unpackEmbedding decodes a blob written by either the packed little-endian
// format or the legacy JSON-array format, detected by its first byte: '['
// means JSON, anything else means packed floats.
func unpackEmbedding(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}

	if blob[0] == '[' {
		var v []float32
		if err := json.Unmarshal(blob, &v); err != nil {
			return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
		}
		return v, nil
	}

	if len(blob)%4 != 0 {
		return nil, memerrors.New(memerrors.ErrCodeStoreError, "embedding blob length is not a multiple of 4", nil)
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v, nil
}
