// Package track parses the fixed-width binary tracks embedded in star
// records.
//
// A track is a sequence of 20-byte records, each holding five big-endian
// IEEE 754 float32 values in the order time, mass, logLum, logRadius,
// logTemp. Big-endian matches AMF ByteArray.readFloat.
package track

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/shpitdev/shz-loader/internal/star"
)

// ErrStride is returned for buffers that are not a whole number of records.
var ErrStride = errors.New("track length is not a multiple of the record size")

const fieldSize = 4

// Parse decodes raw into samples in byte order.
func Parse(raw []byte) ([]star.Sample, error) {
	if len(raw)%star.RecordSize != 0 {
		return nil, ErrStride
	}
	out := make([]star.Sample, 0, len(raw)/star.RecordSize)
	for off := 0; off < len(raw); off += star.RecordSize {
		out = append(out, decodeRecord(raw[off:off+star.RecordSize]))
	}
	return out, nil
}

// decodeRecord reads one record; rec must be exactly RecordSize bytes.
func decodeRecord(rec []byte) star.Sample {
	return star.Sample{
		Time:      field(rec, 0),
		Mass:      field(rec, 1),
		LogLum:    field(rec, 2),
		LogRadius: field(rec, 3),
		LogTemp:   field(rec, 4),
	}
}

func field(rec []byte, i int) float32 {
	off := i * fieldSize
	return math.Float32frombits(binary.BigEndian.Uint32(rec[off : off+fieldSize]))
}

// Aggregate computes the bounds of samples. An empty track yields
// star.EmptyBounds.
func Aggregate(samples []star.Sample) star.Bounds {
	b := star.EmptyBounds()
	for _, s := range samples {
		b.Observe(s)
	}
	return b
}

// Encode packs samples into the binary track layout.
func Encode(samples []star.Sample) []byte {
	out := make([]byte, len(samples)*star.RecordSize)
	for i, s := range samples {
		rec := out[i*star.RecordSize:]
		for j, f := range [...]float32{s.Time, s.Mass, s.LogLum, s.LogRadius, s.LogTemp} {
			binary.BigEndian.PutUint32(rec[j*fieldSize:], math.Float32bits(f))
		}
	}
	return out
}
