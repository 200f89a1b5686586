// Package emit renders star collections as JSON documents and JavaScript
// module exports.
//
// JSON has no literal for non-finite numbers, so they are written as the
// strings "Infinity", "-Infinity" and "NaN". This is how the bounds of a star
// with an empty track appear in every output.
package emit

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/shpitdev/shz-loader/internal/star"
	"github.com/shpitdev/shz-loader/pkg/amf"
	"github.com/shpitdev/shz-loader/pkg/pipeline/schema"
)

const (
	// DefaultBinding is the name the front end imports the data under.
	DefaultBinding = "shzStarData"
	// DefaultTrackField is the key of the parsed track.
	DefaultTrackField = "track"

	// Indent is the pretty-print indentation width.
	Indent = 4

	maxDepth = 256
)

var (
	compactAPI = jsoniter.Config{}.Froze()
	prettyAPI  = jsoniter.Config{IndentionStep: Indent}.Froze()
)

type Options struct {
	Binding    string
	TrackField string
}

// Emitter renders documents. Build one with New.
type Emitter struct {
	binding    string
	trackField string
}

func New(opts Options) *Emitter {
	e := &Emitter{binding: opts.Binding, trackField: opts.TrackField}
	if e.binding == "" {
		e.binding = DefaultBinding
	}
	if e.trackField == "" {
		e.trackField = DefaultTrackField
	}
	return e
}

// Prefix returns the statement that precedes the document in a module file.
func Prefix(binding string) string {
	return "export default const " + binding + " = "
}

// Emit renders stars with the default options.
func Emit(stars []*star.Star, pretty bool) ([]byte, error) {
	return New(Options{}).Emit(stars, pretty)
}

// Emit renders stars as a module export statement.
func (e *Emitter) Emit(stars []*star.Star, pretty bool) ([]byte, error) {
	doc, err := e.Document(stars, pretty)
	if err != nil {
		return nil, err
	}
	prefix := Prefix(e.binding)
	out := make([]byte, 0, len(prefix)+len(doc))
	out = append(out, prefix...)
	return append(out, doc...), nil
}

// Document renders stars as a bare JSON array.
func (e *Emitter) Document(stars []*star.Star, pretty bool) ([]byte, error) {
	api := compactAPI
	if pretty {
		api = prettyAPI
	}
	w := &writer{
		stream:     jsoniter.NewStream(api, nil, 4096),
		trackField: e.trackField,
	}
	w.stars(stars)
	if w.err != nil {
		return nil, w.err
	}
	if w.stream.Error != nil {
		return nil, w.stream.Error
	}
	return append([]byte(nil), w.stream.Buffer()...), nil
}

type writer struct {
	stream     *jsoniter.Stream
	trackField string
	depth      int
	err        error
}

func (w *writer) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf(format, args...)
	}
}

func (w *writer) stars(stars []*star.Star) {
	if len(stars) == 0 {
		w.stream.WriteEmptyArray()
		return
	}
	w.stream.WriteArrayStart()
	for i, s := range stars {
		if i > 0 {
			w.stream.WriteMore()
		}
		w.star(s)
		if w.err != nil {
			return
		}
	}
	w.stream.WriteArrayEnd()
}

func (w *writer) star(s *star.Star) {
	full := s.Bounds != nil
	if !full && s.Fields.Len() == 0 {
		w.stream.WriteEmptyObject()
		return
	}

	w.stream.WriteObjectStart()
	first := true
	field := func(name string) {
		if !first {
			w.stream.WriteMore()
		}
		first = false
		w.stream.WriteObjectField(name)
	}

	s.Fields.Range(func(k string, v any) bool {
		if full && (k == w.trackField || k == s.RawKey || schema.Stars.IsAggregate(k) || schema.Stars.IsExcluded(k)) {
			return true
		}
		field(k)
		w.value(v)
		return w.err == nil
	})
	if w.err != nil {
		return
	}

	if full {
		field(w.trackField)
		w.track(s.Track)
		b := s.Bounds
		vals := [...]float32{b.MaxMass, b.MinMass, b.MaxLogLum, b.MinLogLum, b.MaxLogRadius, b.MinLogRadius}
		for i, f := range schema.Stars.Aggregates {
			field(f.Name)
			w.writeFloat32(vals[i])
		}
	}
	w.stream.WriteObjectEnd()
}

func (w *writer) track(samples []star.Sample) {
	if len(samples) == 0 {
		w.stream.WriteEmptyArray()
		return
	}
	names := schema.Stars.Sample
	w.stream.WriteArrayStart()
	for i, s := range samples {
		if i > 0 {
			w.stream.WriteMore()
		}
		vals := [...]float32{s.Time, s.Mass, s.LogLum, s.LogRadius, s.LogTemp}
		w.stream.WriteObjectStart()
		for j, f := range names {
			if j > 0 {
				w.stream.WriteMore()
			}
			w.stream.WriteObjectField(f.Name)
			w.writeFloat32(vals[j])
		}
		w.stream.WriteObjectEnd()
	}
	w.stream.WriteArrayEnd()
}

func (w *writer) writeFloat32(f float32) {
	if s, ok := nonFinite(float64(f)); ok {
		w.stream.WriteString(s)
		return
	}
	w.stream.WriteFloat32(f)
}

func (w *writer) writeFloat64(f float64) {
	if s, ok := nonFinite(f); ok {
		w.stream.WriteString(s)
		return
	}
	w.stream.WriteFloat64(f)
}

func nonFinite(f float64) (string, bool) {
	switch {
	case math.IsInf(f, 1):
		return "Infinity", true
	case math.IsInf(f, -1):
		return "-Infinity", true
	case math.IsNaN(f):
		return "NaN", true
	default:
		return "", false
	}
}

func (w *writer) value(v any) {
	w.depth++
	defer func() { w.depth-- }()
	if w.depth > maxDepth {
		w.fail("value nested deeper than %d levels, possibly a cyclic reference", maxDepth)
		return
	}

	switch x := v.(type) {
	case nil:
		w.stream.WriteNil()
	case bool:
		w.stream.WriteBool(x)
	case int32:
		w.stream.WriteInt32(x)
	case float64:
		w.writeFloat64(x)
	case float32:
		w.writeFloat32(x)
	case string:
		w.stream.WriteString(x)
	case amf.XML:
		w.stream.WriteString(string(x))
	case time.Time:
		w.stream.WriteString(x.UTC().Format(time.RFC3339Nano))
	case amf.ByteArray:
		w.stream.WriteString(base64.StdEncoding.EncodeToString(x))
	case []any:
		w.list(len(x), func(i int) { w.value(x[i]) })
	case []int32:
		w.list(len(x), func(i int) { w.stream.WriteInt32(x[i]) })
	case []uint32:
		w.list(len(x), func(i int) { w.stream.WriteUint32(x[i]) })
	case []float64:
		w.list(len(x), func(i int) { w.writeFloat64(x[i]) })
	case *amf.Object:
		w.object(x)
	default:
		w.fail("cannot encode %T", v)
	}
}

func (w *writer) list(n int, elem func(i int)) {
	if n == 0 {
		w.stream.WriteEmptyArray()
		return
	}
	w.stream.WriteArrayStart()
	for i := 0; i < n && w.err == nil; i++ {
		if i > 0 {
			w.stream.WriteMore()
		}
		elem(i)
	}
	w.stream.WriteArrayEnd()
}

func (w *writer) object(o *amf.Object) {
	if o.Len() == 0 {
		w.stream.WriteEmptyObject()
		return
	}
	w.stream.WriteObjectStart()
	first := true
	o.Range(func(k string, v any) bool {
		if !first {
			w.stream.WriteMore()
		}
		first = false
		w.stream.WriteObjectField(k)
		w.value(v)
		return w.err == nil
	})
	w.stream.WriteObjectEnd()
}
