package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rewasm/rewasm/api"
)

func TestParseArgs(t *testing.T) {
	t.Run("typed values", func(t *testing.T) {
		out, err := parseArgs(
			[]string{"i32:10", "i64:-5", "f32:1.5", "f64:2.25"},
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64},
		)
		require.NoError(t, err)
		require.Equal(t, []uint64{
			api.EncodeI32(10),
			api.EncodeI64(-5),
			api.EncodeF32(1.5),
			api.EncodeF64(2.25),
		}, out)
	})
	t.Run("hex i32", func(t *testing.T) {
		out, err := parseArgs([]string{"i32:0x3f800000"}, []api.ValueType{api.ValueTypeI32})
		require.NoError(t, err)
		require.Equal(t, []uint64{0x3f800000}, out)
	})
	t.Run("count mismatch", func(t *testing.T) {
		_, err := parseArgs([]string{"i32:1"}, nil)
		require.Error(t, err)
	})
	t.Run("type mismatch", func(t *testing.T) {
		_, err := parseArgs([]string{"i64:1"}, []api.ValueType{api.ValueTypeI32})
		require.Error(t, err)
	})
	t.Run("malformed", func(t *testing.T) {
		_, err := parseArgs([]string{"10"}, []api.ValueType{api.ValueTypeI32})
		require.Error(t, err)
	})
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "i32:-1", formatValue(api.ValueTypeI32, api.EncodeI32(-1)))
	require.Equal(t, "i64:7", formatValue(api.ValueTypeI64, 7))
	require.Equal(t, "f32:1.5", formatValue(api.ValueTypeF32, api.EncodeF32(1.5)))
	require.Equal(t, "f64:2.25", formatValue(api.ValueTypeF64, api.EncodeF64(2.25)))
}
