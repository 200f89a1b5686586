// Package amftest builds AMF3 payloads for tests.
package amftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/shpitdev/shz-loader/pkg/amf"
)

// Field is one key/value pair of an anonymous dynamic object.
type Field struct {
	Key   string
	Value any
}

// Obj is an anonymous dynamic object; fields are written in order.
type Obj []Field

// Encode writes v as a single AMF3 value without using reference tables.
//
// Supported values: nil, bool, int, int32, float32, float64, string,
// time.Time, []any, Obj, amf.ByteArray and amf.XML.
func Encode(v any) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v)
	return buf.Bytes()
}

// EncodeAMF0 writes v as an AMF0 stream holding the AMF3 encoding behind an
// AVM+ switch marker.
func EncodeAMF0(v any) []byte {
	return append([]byte{0x11}, Encode(v)...)
}

// Zlib compresses b with zlib framing.
func Zlib(b []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Floats packs vals as consecutive big-endian float32 values.
func Floats(vals ...float32) amf.ByteArray {
	out := make([]byte, 4*len(vals))
	for i, f := range vals {
		binary.BigEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// WriteU29 appends the variable-length encoding of v.
func WriteU29(buf *bytes.Buffer, v uint32) {
	v &= 0x1fffffff
	switch {
	case v < 0x80:
		buf.WriteByte(byte(v))
	case v < 0x4000:
		buf.WriteByte(byte(v>>7) | 0x80)
		buf.WriteByte(byte(v & 0x7f))
	case v < 0x200000:
		buf.WriteByte(byte(v>>14) | 0x80)
		buf.WriteByte(byte(v>>7)&0x7f | 0x80)
		buf.WriteByte(byte(v & 0x7f))
	default:
		buf.WriteByte(byte(v>>22) | 0x80)
		buf.WriteByte(byte(v>>15)&0x7f | 0x80)
		buf.WriteByte(byte(v>>8)&0x7f | 0x80)
		buf.WriteByte(byte(v))
	}
}

func writeString(buf *bytes.Buffer, s string) {
	WriteU29(buf, uint32(len(s))<<1|1)
	buf.WriteString(s)
}

func writeValue(buf *bytes.Buffer, v any) {
	switch x := v.(type) {
	case nil:
		buf.WriteByte(0x01)
	case bool:
		if x {
			buf.WriteByte(0x03)
		} else {
			buf.WriteByte(0x02)
		}
	case int:
		if x >= -(1<<28) && x < 1<<28 {
			buf.WriteByte(0x04)
			WriteU29(buf, uint32(x))
			return
		}
		writeValue(buf, float64(x))
	case int32:
		writeValue(buf, int(x))
	case float32:
		writeValue(buf, float64(x))
	case float64:
		buf.WriteByte(0x05)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(x))
		buf.Write(b[:])
	case string:
		buf.WriteByte(0x06)
		writeString(buf, x)
	case amf.XML:
		buf.WriteByte(0x0B)
		WriteU29(buf, uint32(len(x))<<1|1)
		buf.WriteString(string(x))
	case time.Time:
		buf.WriteByte(0x08)
		buf.WriteByte(0x01)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(float64(x.UnixMilli())))
		buf.Write(b[:])
	case amf.ByteArray:
		buf.WriteByte(0x0C)
		WriteU29(buf, uint32(len(x))<<1|1)
		buf.Write(x)
	case []any:
		buf.WriteByte(0x09)
		WriteU29(buf, uint32(len(x))<<1|1)
		buf.WriteByte(0x01)
		for _, e := range x {
			writeValue(buf, e)
		}
	case Obj:
		buf.WriteByte(0x0A)
		// Inline traits, dynamic, no sealed members.
		buf.WriteByte(0x0B)
		writeString(buf, "")
		for _, f := range x {
			writeString(buf, f.Key)
			writeValue(buf, f.Value)
		}
		writeString(buf, "")
	default:
		panic(fmt.Sprintf("amftest: unsupported value %T", v))
	}
}
