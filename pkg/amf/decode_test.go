package amf_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/shz-loader/pkg/amf"
	"github.com/shpitdev/shz-loader/pkg/amf/amftest"
)

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in   string
		want amf.Encoding
	}{
		{in: "", want: amf.EncodingAuto},
		{in: "auto", want: amf.EncodingAuto},
		{in: "AMF0", want: amf.EncodingAMF0},
		{in: " amf3 ", want: amf.EncodingAMF3},
	}
	for _, tt := range tests {
		got, err := amf.ParseEncoding(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := amf.ParseEncoding("amf4")
	require.Error(t, err)
}

func TestDecodeAMF3Scalars(t *testing.T) {
	when := time.Date(2019, 4, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "null", in: nil, want: nil},
		{name: "true", in: true, want: true},
		{name: "false", in: false, want: false},
		{name: "small int", in: 5, want: int32(5)},
		{name: "large int", in: 200000, want: int32(200000)},
		{name: "max int", in: 1<<28 - 1, want: int32(1<<28 - 1)},
		{name: "negative int", in: -3, want: int32(-3)},
		{name: "int outside u29", in: 1 << 30, want: float64(1 << 30)},
		{name: "double", in: 0.25, want: 0.25},
		{name: "string", in: "Sol", want: "Sol"},
		{name: "empty string", in: "", want: ""},
		{name: "date", in: when, want: when},
		{name: "xml", in: amf.XML("<a/>"), want: amf.XML("<a/>")},
		{name: "bytes", in: amf.ByteArray{1, 2, 3}, want: amf.ByteArray{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := amf.Decode(amftest.Encode(tt.in), amf.EncodingAMF3)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAMF3ObjectKeepsKeyOrder(t *testing.T) {
	in := amftest.Obj{
		{Key: "name", Value: "Sol"},
		{Key: "zeta", Value: 1},
		{Key: "alpha", Value: []any{"a", 2.5}},
	}
	got, err := amf.Decode(amftest.Encode(in), amf.EncodingAMF3)
	require.NoError(t, err)

	obj, ok := got.(*amf.Object)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, []string{"name", "zeta", "alpha"}, obj.Keys())
	v, _ := obj.Get("alpha")
	assert.Equal(t, []any{"a", 2.5}, v)
}

func TestDecodeAMF3References(t *testing.T) {
	// [ {name:"x"}, "x", <string ref 1>, <object ref 1> ]; the object table
	// holds [array, object] by the time the references are read.
	b := []byte{
		0x09, 0x09, 0x01, // array, 4 dense, no assoc
		0x0A, 0x0B, 0x01, // object, inline dynamic traits, anonymous
		0x09, 'n', 'a', 'm', 'e', // key "name"
		0x06, 0x03, 'x', // "x"
		0x01,       // end of dynamic members
		0x06, 0x03, 'x', // inline "x" again, appended to string table
		0x06, 0x02, // string ref 1 -> "x"
		0x0A, 0x02, // object ref 1 -> the object above
	}
	got, err := amf.Decode(b, amf.EncodingAMF3)
	require.NoError(t, err)

	list := got.([]any)
	require.Len(t, list, 4)
	obj := list[0].(*amf.Object)
	name, _ := obj.Get("name")
	assert.Equal(t, "x", name)
	assert.Equal(t, "x", list[1])
	assert.Equal(t, "x", list[2])
	assert.Same(t, obj, list[3])
}

func TestDecodeAMF3SealedTraitsAndTraitReference(t *testing.T) {
	b := []byte{
		0x09, 0x05, 0x01, // array, 2 dense
		// object with sealed traits: 1 member, not dynamic -> (1<<4)|0x03
		0x0A, 0x13,
		0x09, 'S', 't', 'a', 'r', // class "Star"
		0x09, 'm', 'a', 's', 's', // member "mass"
		0x04, 0x01, // int 1
		// second object reusing traits 0 -> (0<<2)|0x01
		0x0A, 0x01,
		0x04, 0x02, // int 2
	}
	got, err := amf.Decode(b, amf.EncodingAMF3)
	require.NoError(t, err)

	list := got.([]any)
	require.Len(t, list, 2)
	for i, want := range []int32{1, 2} {
		obj := list[i].(*amf.Object)
		assert.Equal(t, "Star", obj.Class)
		mass, _ := obj.Get("mass")
		assert.Equal(t, want, mass)
	}
}

func TestDecodeAMF3MixedArray(t *testing.T) {
	b := []byte{
		0x09, 0x03, // 1 dense element
		0x03, 'k', 0x06, 0x03, 'v', // k: "v"
		0x01,       // end of assoc
		0x04, 0x07, // int 7
	}
	got, err := amf.Decode(b, amf.EncodingAMF3)
	require.NoError(t, err)

	obj := got.(*amf.Object)
	assert.Equal(t, []string{"k", "0"}, obj.Keys())
	v, _ := obj.Get("0")
	assert.Equal(t, int32(7), v)
}

func TestDecodeAMF3ArrayCollection(t *testing.T) {
	class := "flex.messaging.io.ArrayCollection"
	b := []byte{0x0A, 0x07, byte(len(class)<<1 | 1)}
	b = append(b, class...)
	b = append(b, amftest.Encode([]any{"a"})...)

	got, err := amf.Decode(b, amf.EncodingAMF3)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got)
}

func TestDecodeAMF3Vectors(t *testing.T) {
	ints := []byte{0x0D, 0x05, 0x00, 0xff, 0xff, 0xff, 0xfe, 0x00, 0x00, 0x00, 0x03}
	got, err := amf.Decode(ints, amf.EncodingAMF3)
	require.NoError(t, err)
	assert.Equal(t, []int32{-2, 3}, got)

	doubles := []byte{0x0F, 0x03, 0x01, 0x3f, 0xf0, 0, 0, 0, 0, 0, 0}
	got, err = amf.Decode(doubles, amf.EncodingAMF3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, got)
}

func TestDecodeAMF0(t *testing.T) {
	b := []byte{
		0x0A, 0, 0, 0, 2, // strict array of 2
		0x03,                // object
		0, 4, 'n', 'a', 'm', 'e', 0x02, 0, 3, 'S', 'o', 'l',
		0, 4, 'm', 'a', 's', 's', 0x00, 0x3f, 0xf0, 0, 0, 0, 0, 0, 0,
		0, 0, 0x09, // object end
		0x07, 0, 1, // reference to the object
	}
	got, err := amf.Decode(b, amf.EncodingAuto)
	require.NoError(t, err)

	list := got.([]any)
	require.Len(t, list, 2)
	obj := list[0].(*amf.Object)
	assert.Equal(t, []string{"name", "mass"}, obj.Keys())
	mass, _ := obj.Get("mass")
	assert.Equal(t, 1.0, mass)
	assert.Same(t, obj, list[1])
}

func TestDecodeAMF0SwitchesToAMF3(t *testing.T) {
	in := []any{amftest.Obj{{Key: "raw", Value: amf.ByteArray{9}}}}
	got, err := amf.Decode(amftest.EncodeAMF0(in), amf.EncodingAuto)
	require.NoError(t, err)

	obj := got.([]any)[0].(*amf.Object)
	raw, _ := obj.Get("raw")
	assert.Equal(t, amf.ByteArray{9}, raw)
}

func TestDecodeAutoDetectsAMF3Array(t *testing.T) {
	got, err := amf.Decode(amftest.Encode([]any{1}), amf.EncodingAuto)
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1)}, got)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name      string
		in        []byte
		enc       amf.Encoding
		truncated bool
	}{
		{name: "empty", in: nil, enc: amf.EncodingAMF3, truncated: true},
		{name: "truncated double", in: []byte{0x05, 0x3f}, enc: amf.EncodingAMF3, truncated: true},
		{name: "array longer than data", in: []byte{0x09, 0x7f, 0x01}, enc: amf.EncodingAMF3, truncated: true},
		{name: "unknown amf3 marker", in: []byte{0x42}, enc: amf.EncodingAMF3},
		{name: "bad object reference", in: []byte{0x0A, 0x04}, enc: amf.EncodingAMF3},
		{name: "bad string reference", in: []byte{0x06, 0x00}, enc: amf.EncodingAMF3},
		{name: "unknown externalizable", in: []byte{0x0A, 0x07, 0x03, 'X'}, enc: amf.EncodingAMF3},
		{name: "amf0 object end at top level", in: []byte{0x09}, enc: amf.EncodingAMF0},
		{name: "amf0 bad reference", in: []byte{0x07, 0, 0}, enc: amf.EncodingAMF0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := amf.Decode(tt.in, tt.enc)
			require.Error(t, err)
			var amfErr *amf.Error
			require.ErrorAs(t, err, &amfErr)
			assert.Equal(t, tt.truncated, errors.Is(err, io.ErrUnexpectedEOF))
		})
	}
}

func TestDecodeRejectsDeepNesting(t *testing.T) {
	var b []byte
	for i := 0; i < 600; i++ {
		b = append(b, 0x09, 0x03, 0x01)
	}
	b = append(b, 0x01)
	_, err := amf.Decode(b, amf.EncodingAMF3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested deeper")
}
