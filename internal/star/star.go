package star

import (
	"math"

	"github.com/shpitdev/shz-loader/pkg/amf"
)

// RecordSize is the width of one encoded sample: five 4-byte floats.
const RecordSize = 20

// Sample is one time step of a star's evolutionary track.
type Sample struct {
	Time      float32
	Mass      float32
	LogLum    float32
	LogRadius float32
	LogTemp   float32
}

// Bounds holds the min/max aggregates over a track.
type Bounds struct {
	MaxMass      float32
	MinMass      float32
	MaxLogLum    float32
	MinLogLum    float32
	MaxLogRadius float32
	MinLogRadius float32
}

// EmptyBounds returns bounds seeded with infinite sentinels, which is also
// the result for a track with no samples.
func EmptyBounds() Bounds {
	inf := float32(math.Inf(1))
	return Bounds{
		MaxMass:      -inf,
		MinMass:      inf,
		MaxLogLum:    -inf,
		MinLogLum:    inf,
		MaxLogRadius: -inf,
		MinLogRadius: inf,
	}
}

// Observe widens b to include s.
func (b *Bounds) Observe(s Sample) {
	b.MaxMass = max(b.MaxMass, s.Mass)
	b.MinMass = min(b.MinMass, s.Mass)
	b.MaxLogLum = max(b.MaxLogLum, s.LogLum)
	b.MinLogLum = min(b.MinLogLum, s.LogLum)
	b.MaxLogRadius = max(b.MaxLogRadius, s.LogRadius)
	b.MinLogRadius = min(b.MinLogRadius, s.LogRadius)
}

// Star is one decoded star record.
//
// Fields holds the metadata in source order, including the raw track under
// RawKey until DropRaw. Track and Bounds are only set by a full transform.
type Star struct {
	Index  int
	Fields *amf.Object
	RawKey string
	Raw    amf.ByteArray
	Track  []Sample
	Bounds *Bounds
}

// Name returns the star's "name" field when it is a string.
func (s *Star) Name() string {
	if s == nil {
		return ""
	}
	v, _ := s.Fields.Get("name")
	name, _ := v.(string)
	return name
}

// DropRaw removes the raw track from the record.
func (s *Star) DropRaw() {
	if s.RawKey != "" {
		s.Fields.Delete(s.RawKey)
	}
	s.Raw = nil
}

// Clone returns a copy of s that shares no mutable state with it, apart from
// nested metadata values which are treated as read-only.
func (s *Star) Clone() *Star {
	out := *s
	out.Fields = s.Fields.Clone()
	if s.Track != nil {
		out.Track = append([]Sample(nil), s.Track...)
	}
	if s.Bounds != nil {
		b := *s.Bounds
		out.Bounds = &b
	}
	return &out
}
