package amf

// AMF0 type markers.
const (
	amf0Number      = 0x00
	amf0Boolean     = 0x01
	amf0String      = 0x02
	amf0Object      = 0x03
	amf0MovieClip   = 0x04
	amf0Null        = 0x05
	amf0Undefined   = 0x06
	amf0Reference   = 0x07
	amf0ECMAArray   = 0x08
	amf0ObjectEnd   = 0x09
	amf0StrictArray = 0x0A
	amf0Date        = 0x0B
	amf0LongString  = 0x0C
	amf0Unsupported = 0x0D
	amf0RecordSet   = 0x0E
	amf0XMLDocument = 0x0F
	amf0TypedObject = 0x10
	amf0AVMPlus     = 0x11
)

func (d *decoder) readValue0() (any, error) {
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
	case amf0Number:
		return d.f64()
	case amf0Boolean:
		b, err := d.u8()
		return b != 0, err
	case amf0String:
		return d.string0()
	case amf0LongString:
		return d.longString0()
	case amf0XMLDocument:
		s, err := d.longString0()
		return XML(s), err
	case amf0Null, amf0Undefined, amf0Unsupported:
		return nil, nil
	case amf0Object:
		obj := NewObject("")
		d.refs0 = append(d.refs0, obj)
		return obj, d.readProperties0(obj)
	case amf0TypedObject:
		class, err := d.string0()
		if err != nil {
			return nil, err
		}
		obj := NewObject(class)
		d.refs0 = append(d.refs0, obj)
		return obj, d.readProperties0(obj)
	case amf0ECMAArray:
		// The count is only a hint; the properties are terminated like an object.
		if _, err := d.u32(); err != nil {
			return nil, err
		}
		obj := NewObject("")
		d.refs0 = append(d.refs0, obj)
		return obj, d.readProperties0(obj)
	case amf0StrictArray:
		raw, err := d.u32()
		if err != nil {
			return nil, err
		}
		n, err := d.count(raw, 1)
		if err != nil {
			return nil, err
		}
		list := make([]any, n)
		d.refs0 = append(d.refs0, list)
		for i := range list {
			if list[i], err = d.readValue0(); err != nil {
				return nil, err
			}
		}
		return list, nil
	case amf0Reference:
		idx, err := d.u16()
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(d.refs0) {
			d.off = start
			return nil, d.errorf("amf0 reference %d out of range (%d known)", idx, len(d.refs0))
		}
		return d.refs0[idx], nil
	case amf0Date:
		ms, err := d.f64()
		if err != nil {
			return nil, err
		}
		// Time zone offset, ignored by every known encoder.
		if _, err := d.u16(); err != nil {
			return nil, err
		}
		return msToTime(ms), nil
	case amf0AVMPlus:
		return d.readValue3()
	case amf0ObjectEnd:
		d.off = start
		return nil, d.errorf("unexpected amf0 object end marker")
	case amf0MovieClip, amf0RecordSet:
		d.off = start
		return nil, d.errorf("unsupported amf0 marker 0x%02x", marker)
	default:
		d.off = start
		return nil, d.errorf("unknown amf0 marker 0x%02x", marker)
	}
}

func (d *decoder) string0() (string, error) {
	n, err := d.u16()
	if err != nil {
		return "", err
	}
	b, err := d.bytes(int(n))
	return string(b), err
}

func (d *decoder) longString0() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(d.remaining()) {
		return "", d.truncated()
	}
	b, err := d.bytes(int(n))
	return string(b), err
}

// readProperties0 reads key/value pairs up to the empty-key object end marker.
func (d *decoder) readProperties0(obj *Object) error {
	for {
		key, err := d.string0()
		if err != nil {
			return err
		}
		if key == "" {
			end, err := d.u8()
			if err != nil {
				return err
			}
			if end != amf0ObjectEnd {
				d.off--
				return d.errorf("expected amf0 object end marker, got 0x%02x", end)
			}
			return nil
		}
		v, err := d.readValue0()
		if err != nil {
			return err
		}
		obj.Set(key, v)
	}
}
