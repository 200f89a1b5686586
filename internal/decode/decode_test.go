package decode_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/shz-loader/internal/decode"
	"github.com/shpitdev/shz-loader/internal/star"
	"github.com/shpitdev/shz-loader/pkg/amf"
	"github.com/shpitdev/shz-loader/pkg/amf/amftest"
)

func solPayload() []byte {
	return amftest.Encode([]any{
		amftest.Obj{
			{Key: "name", Value: "Sol"},
			{Key: "shzInner", Value: 0.95},
			{Key: "rawDataTable", Value: amftest.Floats(0, 1, 0.1, 0.2, 3.5)},
		},
		amftest.Obj{
			{Key: "name", Value: "Vega"},
			{Key: "rawDataTable", Value: amf.ByteArray{}},
		},
	})
}

func gzipped(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(b)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func deflated(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write(b)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestParseCodec(t *testing.T) {
	for in, want := range map[string]decode.Codec{
		"":        decode.CodecZlib,
		"zlib":    decode.CodecZlib,
		" GZIP ":  decode.CodecGzip,
		"deflate": decode.CodecDeflate,
	} {
		got, err := decode.ParseCodec(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := decode.ParseCodec("brotli")
	require.Error(t, err)
}

func TestDecode(t *testing.T) {
	stars, err := decode.Decode(amftest.Zlib(solPayload()), decode.Options{})
	require.NoError(t, err)
	require.Len(t, stars, 2)

	sol := stars[0]
	assert.Equal(t, 0, sol.Index)
	assert.Equal(t, "Sol", sol.Name())
	assert.Equal(t, "rawDataTable", sol.RawKey)
	assert.Len(t, sol.Raw, star.RecordSize)
	assert.Equal(t, []string{"name", "shzInner", "rawDataTable"}, sol.Fields.Keys())
	assert.Nil(t, sol.Track)
	assert.Nil(t, sol.Bounds)

	assert.Equal(t, 1, stars[1].Index)
	assert.Empty(t, stars[1].Raw)
}

func TestDecodeCodecs(t *testing.T) {
	want, err := decode.Decode(amftest.Zlib(solPayload()), decode.Options{})
	require.NoError(t, err)

	for name, tc := range map[string]struct {
		codec decode.Codec
		data  []byte
	}{
		"gzip":    {decode.CodecGzip, gzipped(t, solPayload())},
		"deflate": {decode.CodecDeflate, deflated(t, solPayload())},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := decode.Decode(tc.data, decode.Options{Codec: tc.codec})
			require.NoError(t, err)
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].Fields.Keys(), got[i].Fields.Keys())
				assert.Equal(t, want[i].Raw, got[i].Raw)
			}
		})
	}
}

func TestDecodeAMF0Stream(t *testing.T) {
	stars, err := decode.Decode(amftest.Zlib(amftest.EncodeAMF0([]any{
		amftest.Obj{{Key: "name", Value: "Sol"}, {Key: "rawDataTable", Value: amf.ByteArray{}}},
	})), decode.Options{Encoding: amf.EncodingAMF0})
	require.NoError(t, err)
	require.Len(t, stars, 1)
	assert.Equal(t, "Sol", stars[0].Name())
}

func TestDecompressErrors(t *testing.T) {
	full := amftest.Zlib(solPayload())
	for name, data := range map[string][]byte{
		"garbage":   []byte("definitely not compressed"),
		"truncated": full[:len(full)/2],
		"empty":     nil,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decode.Decode(data, decode.Options{})
			var de *star.DecompressionError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "zlib", de.Codec)
		})
	}
}

func TestDecodeShapeErrors(t *testing.T) {
	cases := []struct {
		name  string
		value any
		index int
	}{
		{"top-level object", amftest.Obj{{Key: "name", Value: "Sol"}}, -1},
		{"top-level string", "stars", -1},
		{"star not an object", []any{"Sol"}, 0},
		{"missing raw field", []any{
			amftest.Obj{{Key: "name", Value: "Sol"}, {Key: "rawDataTable", Value: amf.ByteArray{}}},
			amftest.Obj{{Key: "name", Value: "Vega"}},
		}, 1},
		{"raw field wrong type", []any{amftest.Obj{{Key: "rawDataTable", Value: "AAAA"}}}, 0},
		{"ambiguous raw field", []any{amftest.Obj{
			{Key: "a", Value: amf.ByteArray{}},
			{Key: "b", Value: amf.ByteArray{}},
		}}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decode.Decode(amftest.Zlib(amftest.Encode(tc.value)), decode.Options{})
			var de *star.DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.index, de.Index)
		})
	}
}

func TestDecodeInvalidAMF(t *testing.T) {
	_, err := decode.Decode(amftest.Zlib([]byte{0x09, 0x05}), decode.Options{})
	var de *star.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, -1, de.Index)
	var ae *amf.Error
	require.ErrorAs(t, err, &ae)
}

func TestRawFieldFallback(t *testing.T) {
	stars, err := decode.Decode(amftest.Zlib(amftest.Encode([]any{
		amftest.Obj{{Key: "name", Value: "Sol"}, {Key: "dataTable", Value: amftest.Floats(1, 2, 3, 4, 5)}},
	})), decode.Options{})
	require.NoError(t, err)
	assert.Equal(t, "dataTable", stars[0].RawKey)
	assert.Len(t, stars[0].Raw, 20)
}

func TestCustomRawField(t *testing.T) {
	stars, err := decode.Decode(amftest.Zlib(amftest.Encode([]any{
		amftest.Obj{
			{Key: "rawDataTable", Value: amf.ByteArray{1}},
			{Key: "samples", Value: amftest.Floats(1, 2, 3, 4, 5)},
		},
	})), decode.Options{RawField: "samples"})
	require.NoError(t, err)
	assert.Equal(t, "samples", stars[0].RawKey)
}

func TestStarsCopiesFields(t *testing.T) {
	obj := amf.NewObject("")
	obj.Set("name", "Sol")
	obj.Set("rawDataTable", amf.ByteArray{})

	stars, err := decode.Stars([]any{obj}, "")
	require.NoError(t, err)
	stars[0].Fields.Set("extra", true)
	assert.Equal(t, 2, obj.Len())
}

func TestSourceLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "shzStars.dat", amftest.Zlib(solPayload()), 0o644))

	stars, err := decode.Source{Fs: fsys, Path: "shzStars.dat"}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, stars, 2)

	_, err = decode.Source{Fs: fsys, Path: "other.dat"}.Load(context.Background())
	var ioErr *star.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = decode.Source{Fs: fsys, Path: "shzStars.dat"}.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
