package amf

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"
)

// AMF3 type markers.
const (
	amf3Undefined    = 0x00
	amf3Null         = 0x01
	amf3False        = 0x02
	amf3True         = 0x03
	amf3Integer      = 0x04
	amf3Double       = 0x05
	amf3String       = 0x06
	amf3XMLDoc       = 0x07
	amf3Date         = 0x08
	amf3Array        = 0x09
	amf3Object       = 0x0A
	amf3XML          = 0x0B
	amf3ByteArray    = 0x0C
	amf3VectorInt    = 0x0D
	amf3VectorUint   = 0x0E
	amf3VectorDouble = 0x0F
	amf3VectorObject = 0x10
	amf3Dictionary   = 0x11
)

// Externalizable classes whose body is a single AMF3 value.
var proxyClasses = map[string]bool{
	"flex.messaging.io.ArrayCollection": true,
	"flex.messaging.io.ObjectProxy":     true,
}

func (d *decoder) readValue3() (any, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	start := d.off
	marker, err := d.u8()
	if err != nil {
		return nil, err
	}
	switch marker {
	case amf3Undefined, amf3Null:
		return nil, nil
	case amf3False:
		return false, nil
	case amf3True:
		return true, nil
	case amf3Integer:
		v, err := d.u29()
		if err != nil {
			return nil, err
		}
		if v&0x10000000 != 0 {
			return int32(v) - 0x20000000, nil
		}
		return int32(v), nil
	case amf3Double:
		return d.f64()
	case amf3String:
		return d.string3()
	case amf3XMLDoc, amf3XML:
		return d.readXML3()
	case amf3Date:
		return d.readDate3()
	case amf3Array:
		return d.readArray3()
	case amf3Object:
		return d.readObject3()
	case amf3ByteArray:
		return d.readByteArray3()
	case amf3VectorInt, amf3VectorUint, amf3VectorDouble:
		return d.readNumberVector3(marker)
	case amf3VectorObject:
		return d.readObjectVector3()
	case amf3Dictionary:
		return d.readDictionary3()
	default:
		d.off = start
		return nil, d.errorf("unknown amf3 marker 0x%02x", marker)
	}
}

// u29 reads a variable-length 29-bit unsigned integer.
func (d *decoder) u29() (uint32, error) {
	var v uint32
	for i := 0; i < 3; i++ {
		b, err := d.u8()
		if err != nil {
			return 0, err
		}
		v = v<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	b, err := d.u8()
	if err != nil {
		return 0, err
	}
	return v<<8 | uint32(b), nil
}

// header reads a U29 reference header. When the low bit is clear the value
// is a reference into the object table and is returned as ref.
func (d *decoder) header() (n uint32, ref any, isRef bool, err error) {
	start := d.off
	h, err := d.u29()
	if err != nil {
		return 0, nil, false, err
	}
	if h&1 == 0 {
		idx := int(h >> 1)
		if idx >= len(d.objects) {
			d.off = start
			return 0, nil, false, d.errorf("amf3 object reference %d out of range (%d known)", idx, len(d.objects))
		}
		return 0, d.objects[idx], true, nil
	}
	return h >> 1, nil, false, nil
}

func (d *decoder) string3() (string, error) {
	start := d.off
	h, err := d.u29()
	if err != nil {
		return "", err
	}
	if h&1 == 0 {
		idx := int(h >> 1)
		if idx >= len(d.strings) {
			d.off = start
			return "", d.errorf("amf3 string reference %d out of range (%d known)", idx, len(d.strings))
		}
		return d.strings[idx], nil
	}
	n := int(h >> 1)
	if n == 0 {
		return "", nil
	}
	b, err := d.bytes(n)
	if err != nil {
		return "", err
	}
	s := string(b)
	d.strings = append(d.strings, s)
	return s, nil
}

func (d *decoder) readXML3() (any, error) {
	n, ref, isRef, err := d.header()
	if err != nil || isRef {
		return ref, err
	}
	b, err := d.bytes(int(n))
	if err != nil {
		return nil, err
	}
	x := XML(b)
	d.objects = append(d.objects, x)
	return x, nil
}

func (d *decoder) readDate3() (any, error) {
	_, ref, isRef, err := d.header()
	if err != nil || isRef {
		return ref, err
	}
	ms, err := d.f64()
	if err != nil {
		return nil, err
	}
	t := msToTime(ms)
	d.objects = append(d.objects, t)
	return t, nil
}

func (d *decoder) readByteArray3() (any, error) {
	n, ref, isRef, err := d.header()
	if err != nil || isRef {
		return ref, err
	}
	b, err := d.bytes(int(n))
	if err != nil {
		return nil, err
	}
	ba := ByteArray(append([]byte(nil), b...))
	d.objects = append(d.objects, ba)
	return ba, nil
}

func (d *decoder) readArray3() (any, error) {
	dense, ref, isRef, err := d.header()
	if err != nil || isRef {
		return ref, err
	}
	n, err := d.count(dense, 1)
	if err != nil {
		return nil, err
	}

	key, err := d.string3()
	if err != nil {
		return nil, err
	}
	if key == "" {
		list := make([]any, n)
		d.objects = append(d.objects, list)
		for i := range list {
			if list[i], err = d.readValue3(); err != nil {
				return nil, err
			}
		}
		return list, nil
	}

	// Mixed array: associative part first, then the dense part keyed by index.
	obj := NewObject("")
	d.objects = append(d.objects, obj)
	for key != "" {
		v, err := d.readValue3()
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)
		if key, err = d.string3(); err != nil {
			return nil, err
		}
	}
	for i := 0; i < n; i++ {
		v, err := d.readValue3()
		if err != nil {
			return nil, err
		}
		obj.Set(strconv.Itoa(i), v)
	}
	return obj, nil
}

func (d *decoder) readTraits3(h uint32) (*traits, error) {
	// h has already lost the object-reference bit.
	if h&1 == 0 {
		idx := int(h >> 1)
		if idx >= len(d.traits) {
			return nil, d.errorf("amf3 traits reference %d out of range (%d known)", idx, len(d.traits))
		}
		return d.traits[idx], nil
	}
	if h&2 != 0 {
		class, err := d.string3()
		if err != nil {
			return nil, err
		}
		t := &traits{class: class, externalizable: true}
		d.traits = append(d.traits, t)
		return t, nil
	}
	class, err := d.string3()
	if err != nil {
		return nil, err
	}
	count, err := d.count(h>>3, 1)
	if err != nil {
		return nil, err
	}
	t := &traits{class: class, dynamic: h&4 != 0, members: make([]string, count)}
	for i := range t.members {
		if t.members[i], err = d.string3(); err != nil {
			return nil, err
		}
	}
	d.traits = append(d.traits, t)
	return t, nil
}

func (d *decoder) readObject3() (any, error) {
	start := d.off
	h, ref, isRef, err := d.header()
	if err != nil || isRef {
		return ref, err
	}
	t, err := d.readTraits3(h)
	if err != nil {
		return nil, err
	}

	if t.externalizable {
		if !proxyClasses[t.class] {
			d.off = start
			return nil, d.errorf("unsupported externalizable class %q", t.class)
		}
		idx := len(d.objects)
		d.objects = append(d.objects, nil)
		v, err := d.readValue3()
		if err != nil {
			return nil, err
		}
		d.objects[idx] = v
		return v, nil
	}

	obj := NewObject(t.class)
	d.objects = append(d.objects, obj)
	for _, name := range t.members {
		v, err := d.readValue3()
		if err != nil {
			return nil, err
		}
		obj.Set(name, v)
	}
	if !t.dynamic {
		return obj, nil
	}
	for {
		key, err := d.string3()
		if err != nil {
			return nil, err
		}
		if key == "" {
			return obj, nil
		}
		v, err := d.readValue3()
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)
	}
}

func (d *decoder) readNumberVector3(marker byte) (any, error) {
	raw, ref, isRef, err := d.header()
	if err != nil || isRef {
		return ref, err
	}
	// Fixed-length flag, irrelevant once decoded.
	if _, err := d.u8(); err != nil {
		return nil, err
	}
	width := 4
	if marker == amf3VectorDouble {
		width = 8
	}
	n, err := d.count(raw, width)
	if err != nil {
		return nil, err
	}
	b, err := d.bytes(n * width)
	if err != nil {
		return nil, err
	}

	var out any
	switch marker {
	case amf3VectorInt:
		v := make([]int32, n)
		for i := range v {
			v[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
		}
		out = v
	case amf3VectorUint:
		v := make([]uint32, n)
		for i := range v {
			v[i] = binary.BigEndian.Uint32(b[i*4:])
		}
		out = v
	default:
		v := make([]float64, n)
		for i := range v {
			v[i] = math.Float64frombits(binary.BigEndian.Uint64(b[i*8:]))
		}
		out = v
	}
	d.objects = append(d.objects, out)
	return out, nil
}

func (d *decoder) readObjectVector3() (any, error) {
	raw, ref, isRef, err := d.header()
	if err != nil || isRef {
		return ref, err
	}
	if _, err := d.u8(); err != nil {
		return nil, err
	}
	n, err := d.count(raw, 1)
	if err != nil {
		return nil, err
	}
	// Element type name, not needed to decode the elements.
	if _, err := d.string3(); err != nil {
		return nil, err
	}
	list := make([]any, n)
	d.objects = append(d.objects, list)
	for i := range list {
		if list[i], err = d.readValue3(); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (d *decoder) readDictionary3() (any, error) {
	raw, ref, isRef, err := d.header()
	if err != nil || isRef {
		return ref, err
	}
	// Weak-keys flag.
	if _, err := d.u8(); err != nil {
		return nil, err
	}
	n, err := d.count(raw, 2)
	if err != nil {
		return nil, err
	}
	obj := NewObject("")
	d.objects = append(d.objects, obj)
	for i := 0; i < n; i++ {
		k, err := d.readValue3()
		if err != nil {
			return nil, err
		}
		v, err := d.readValue3()
		if err != nil {
			return nil, err
		}
		obj.Set(dictKey(k), v)
	}
	return obj, nil
}

func dictKey(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case nil:
		return "null"
	default:
		return fmt.Sprint(v)
	}
}
