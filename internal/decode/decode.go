// Package decode turns the compressed star dataset into star records.
package decode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/spf13/afero"

	"github.com/shpitdev/shz-loader/internal/star"
	"github.com/shpitdev/shz-loader/pkg/amf"
	localio "github.com/shpitdev/shz-loader/pkg/pipeline/io/local"
)

// DefaultRawField is the key holding the encoded track in the source data.
const DefaultRawField = "rawDataTable"

// Codec names the compression applied to the dataset.
type Codec string

const (
	CodecZlib    Codec = "zlib"
	CodecDeflate Codec = "deflate"
	CodecGzip    Codec = "gzip"
)

// ParseCodec parses a codec name. An empty string is CodecZlib.
func ParseCodec(raw string) (Codec, error) {
	switch c := Codec(strings.TrimSpace(strings.ToLower(raw))); c {
	case "":
		return CodecZlib, nil
	case CodecZlib, CodecDeflate, CodecGzip:
		return c, nil
	default:
		return "", fmt.Errorf("unknown compression %q", raw)
	}
}

type Options struct {
	Codec    Codec
	Encoding amf.Encoding
	// RawField is the preferred key of the raw track. When a star lacks it,
	// its only ByteArray-valued field is used instead.
	RawField string
}

func (o Options) withDefaults() Options {
	if o.Codec == "" {
		o.Codec = CodecZlib
	}
	if o.RawField == "" {
		o.RawField = DefaultRawField
	}
	return o
}

// Decompress reverses the dataset compression.
func Decompress(b []byte, codec Codec) ([]byte, error) {
	var (
		r   io.ReadCloser
		err error
	)
	src := bytes.NewReader(b)
	switch codec {
	case CodecZlib, "":
		codec = CodecZlib
		r, err = zlib.NewReader(src)
	case CodecDeflate:
		r = flate.NewReader(src)
	case CodecGzip:
		r, err = gzip.NewReader(src)
	default:
		return nil, fmt.Errorf("unknown compression %q", codec)
	}
	if err != nil {
		return nil, &star.DecompressionError{Codec: string(codec), Err: err}
	}
	defer func() {
		_ = r.Close()
	}()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &star.DecompressionError{Codec: string(codec), Err: err}
	}
	return out, nil
}

// Decode decompresses b and decodes the star array it holds.
func Decode(b []byte, opts Options) ([]*star.Star, error) {
	opts = opts.withDefaults()
	raw, err := Decompress(b, opts.Codec)
	if err != nil {
		return nil, err
	}
	return decodeStars(raw, opts)
}

func decodeStars(raw []byte, opts Options) ([]*star.Star, error) {
	v, err := amf.Decode(raw, opts.Encoding)
	if err != nil {
		return nil, &star.DecodeError{Index: -1, Msg: "invalid amf payload", Err: err}
	}
	return Stars(v, opts.RawField)
}

// Stars checks the shape of a decoded value and splits it into star records.
// Each star gets its own copy of its top-level fields.
func Stars(v any, rawField string) ([]*star.Star, error) {
	if rawField == "" {
		rawField = DefaultRawField
	}
	list, ok := v.([]any)
	if !ok {
		return nil, &star.DecodeError{Index: -1, Msg: fmt.Sprintf("top-level value is %s, want array", describe(v))}
	}

	out := make([]*star.Star, 0, len(list))
	for i, e := range list {
		obj, ok := e.(*amf.Object)
		if !ok {
			return nil, &star.DecodeError{Index: i, Msg: fmt.Sprintf("star is %s, want object", describe(e))}
		}
		key, buf, err := rawTrack(obj, rawField)
		if err != nil {
			return nil, &star.DecodeError{Index: i, Msg: err.Error()}
		}
		out = append(out, &star.Star{
			Index:  i,
			Fields: obj.Clone(),
			RawKey: key,
			Raw:    buf,
		})
	}
	return out, nil
}

func rawTrack(obj *amf.Object, preferred string) (string, amf.ByteArray, error) {
	if v, ok := obj.Get(preferred); ok {
		buf, ok := v.(amf.ByteArray)
		if !ok {
			return "", nil, fmt.Errorf("field %q is %s, want byte array", preferred, describe(v))
		}
		return preferred, buf, nil
	}

	var found []string
	obj.Range(func(k string, v any) bool {
		if _, ok := v.(amf.ByteArray); ok {
			found = append(found, k)
		}
		return true
	})
	switch len(found) {
	case 0:
		return "", nil, fmt.Errorf("missing raw track field %q", preferred)
	case 1:
		v, _ := obj.Get(found[0])
		return found[0], v.(amf.ByteArray), nil
	default:
		return "", nil, fmt.Errorf("no %q field and several byte array fields %q", preferred, found)
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case int32, float64:
		return "a number"
	case string, amf.XML:
		return "a string"
	case time.Time:
		return "a date"
	case []any, []int32, []uint32, []float64:
		return "an array"
	case *amf.Object:
		return "an object"
	case amf.ByteArray:
		return "a byte array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Source loads the star dataset from a file.
type Source struct {
	Fs      afero.Fs
	Path    string
	Options Options
	Logger  log.Logger
}

// Load reads, decompresses and decodes the dataset.
func (s Source) Load(ctx context.Context) ([]*star.Star, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := s.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	opts := s.Options.withDefaults()

	b, err := localio.ReadFile(s.Fs, s.Path)
	if err != nil {
		return nil, star.NewIOError("read", s.Path, err)
	}
	raw, err := Decompress(b, opts.Codec)
	if err != nil {
		return nil, err
	}
	level.Debug(logger).Log(
		"msg", "decompressed dataset",
		"path", s.Path,
		"codec", opts.Codec,
		"compressed", humanize.Bytes(uint64(len(b))),
		"decompressed", humanize.Bytes(uint64(len(raw))),
	)

	stars, err := decodeStars(raw, opts)
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("msg", "decoded dataset", "path", s.Path, "stars", len(stars), "encoding", opts.Encoding)
	return stars, nil
}
