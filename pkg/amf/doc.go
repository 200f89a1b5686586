// Package amf decodes Action Message Format (AMF0 and AMF3) values into
// plain Go values.
//
// Decoded values map as follows:
//   - undefined, null: nil
//   - boolean: bool
//   - AMF0 number, AMF3 double: float64
//   - AMF3 integer: int32
//   - string: string
//   - XML and XML documents: XML
//   - date: time.Time (UTC)
//   - dense arrays and strict arrays: []any
//   - objects, typed objects, ECMA arrays, mixed arrays, dictionaries: *Object
//   - ByteArray: ByteArray
//   - int, uint and double vectors: []int32, []uint32, []float64
//   - object vectors: []any
//
// Object keys keep their wire order so records can be re-emitted unchanged.
package amf
