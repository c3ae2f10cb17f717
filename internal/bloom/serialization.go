package bloom

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
)

// Serialized is the sidecar JSON representation of a filter.
type Serialized struct {
	Algorithm  string `json:"algorithm"`
	NumBits    int    `json:"num_bits"`
	NumHashes  int    `json:"num_hashes"`
	Count      uint64 `json:"count"`
	Base64Data string `json:"base64_data"`
}

// algorithm identifies the hash scheme so readers can reject filters
// they do not understand.
const algorithm = "murmur3-128/double-hashing"

// Serialize converts the filter to its sidecar representation. The bit
// array is snappy-compressed and base64-encoded:
//   - 8 bytes: numBits (uint64, little-endian)
//   - 8 bytes: numHashes
//   - 8 bytes: count
//   - remaining: bit array words, little-endian
func (f *Filter) Serialize() (*Serialized, error) {
	headerSize := 3 * 8
	buf := make([]byte, headerSize+len(f.bits)*8)

	binary.LittleEndian.PutUint64(buf[0:8], f.numBits)
	binary.LittleEndian.PutUint64(buf[8:16], f.numHashes)
	binary.LittleEndian.PutUint64(buf[16:24], f.count)
	for i, word := range f.bits {
		binary.LittleEndian.PutUint64(buf[headerSize+i*8:], word)
	}

	compressed := snappy.Encode(nil, buf)
	return &Serialized{
		Algorithm:  algorithm,
		NumBits:    int(f.numBits),
		NumHashes:  int(f.numHashes),
		Count:      f.count,
		Base64Data: base64.StdEncoding.EncodeToString(compressed),
	}, nil
}

// Deserialize reconstructs a filter from its sidecar representation.
func Deserialize(s *Serialized) (*Filter, error) {
	if s.Algorithm != algorithm {
		return nil, fmt.Errorf("bloom: unsupported algorithm %q", s.Algorithm)
	}

	compressed, err := base64.StdEncoding.DecodeString(s.Base64Data)
	if err != nil {
		return nil, fmt.Errorf("bloom: invalid base64 data: %w", err)
	}

	buf, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("bloom: failed to decompress filter: %w", err)
	}

	headerSize := 3 * 8
	if len(buf) < headerSize {
		return nil, fmt.Errorf("bloom: serialized filter too short: %d bytes", len(buf))
	}

	numBits := binary.LittleEndian.Uint64(buf[0:8])
	numHashes := binary.LittleEndian.Uint64(buf[8:16])
	count := binary.LittleEndian.Uint64(buf[16:24])

	wordCount := int(numBits / 64)
	if len(buf) != headerSize+wordCount*8 {
		return nil, fmt.Errorf("bloom: serialized filter has %d bytes, want %d", len(buf), headerSize+wordCount*8)
	}

	bits := make([]uint64, wordCount)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(buf[headerSize+i*8:])
	}

	return &Filter{
		bits:      bits,
		numBits:   numBits,
		numHashes: numHashes,
		count:     count,
	}, nil
}
