package amf

// ByteArray is an AMF3 ByteArray payload.
type ByteArray []byte

// XML is the text of an AMF XML or XMLDocument value.
type XML string

// Object is an AMF object (or any other keyed value) that remembers the
// order in which its keys were first set.
type Object struct {
	// Class is the trait class name, empty for anonymous objects.
	Class string

	keys []string
	vals map[string]any
}

// NewObject returns an empty object with the given class name.
func NewObject(class string) *Object {
	return &Object{Class: class, vals: map[string]any{}}
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Set stores v under key. A new key is appended after the existing ones; an
// existing key keeps its position.
func (o *Object) Set(key string, v any) {
	if o.vals == nil {
		o.vals = map[string]any{}
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Delete removes key and reports whether it was present.
func (o *Object) Delete(key string) bool {
	if o == nil {
		return false
	}
	if _, ok := o.vals[key]; !ok {
		return false
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// Clone returns a shallow copy of o. Nested values are shared.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := &Object{
		Class: o.Class,
		keys:  append([]string(nil), o.keys...),
		vals:  make(map[string]any, len(o.vals)),
	}
	for k, v := range o.vals {
		out.vals[k] = v
	}
	return out
}

// Range calls fn for each key in order until fn returns false.
func (o *Object) Range(fn func(key string, v any) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.vals[k]) {
			return
		}
	}
}
