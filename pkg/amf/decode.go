package amf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

// Encoding selects the AMF version of the top-level value.
type Encoding int

const (
	// EncodingAuto picks AMF3 when the stream starts with an AMF3 array
	// marker and AMF0 otherwise.
	EncodingAuto Encoding = iota
	EncodingAMF0
	EncodingAMF3
)

func (e Encoding) String() string {
	switch e {
	case EncodingAMF0:
		return "amf0"
	case EncodingAMF3:
		return "amf3"
	default:
		return "auto"
	}
}

// ParseEncoding parses "auto", "amf0" or "amf3" (case-insensitive). An empty
// string is EncodingAuto.
func ParseEncoding(raw string) (Encoding, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "", "auto":
		return EncodingAuto, nil
	case "amf0", "0":
		return EncodingAMF0, nil
	case "amf3", "3":
		return EncodingAMF3, nil
	default:
		return EncodingAuto, fmt.Errorf("unknown amf encoding %q", raw)
	}
}

// maxDepth bounds container nesting while decoding.
const maxDepth = 512

// Error reports a malformed AMF stream.
type Error struct {
	Offset int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("amf: %s at offset %d", e.Msg, e.Offset)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Decode decodes the first value of b. Bytes after that value are ignored,
// like a reader that only takes the head of a value stream.
func Decode(b []byte, enc Encoding) (any, error) {
	if enc == EncodingAuto {
		enc = EncodingAMF0
		if len(b) > 0 && b[0] == amf3Array {
			enc = EncodingAMF3
		}
	}
	d := &decoder{buf: b}
	if enc == EncodingAMF3 {
		return d.readValue3()
	}
	return d.readValue0()
}

type traits struct {
	class          string
	externalizable bool
	dynamic        bool
	members        []string
}

type decoder struct {
	buf []byte
	off int

	depth int

	// AMF0 reference table.
	refs0 []any

	// AMF3 reference tables.
	strings []string
	objects []any
	traits  []*traits
}

func (d *decoder) errorf(format string, args ...any) error {
	return &Error{Offset: d.off, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) truncated() error {
	return &Error{Offset: d.off, Msg: "unexpected end of data", Err: io.ErrUnexpectedEOF}
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > maxDepth {
		return d.errorf("values nested deeper than %d", maxDepth)
	}
	return nil
}

func (d *decoder) leave() {
	d.depth--
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if n < 0 || n > d.remaining() {
		return nil, d.truncated()
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) u8() (byte, error) {
	if d.remaining() < 1 {
		return 0, d.truncated()
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) f64() (float64, error) {
	b, err := d.bytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// count validates a length prefix against the bytes left, assuming every
// element takes at least minSize bytes.
func (d *decoder) count(n uint32, minSize int) (int, error) {
	if uint64(n)*uint64(minSize) > uint64(d.remaining()) {
		return 0, d.truncated()
	}
	return int(n), nil
}

func msToTime(ms float64) time.Time {
	sec, frac := math.Modf(ms / 1000)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
