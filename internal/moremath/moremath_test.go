package moremath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWasmCompatMin(t *testing.T) {
	require.Equal(t, -1.1, WasmCompatMin(-1.1, math.Inf(1)))
	require.Equal(t, math.Inf(-1), WasmCompatMin(-1.1, math.Inf(-1)))
	require.True(t, math.IsNaN(WasmCompatMin(math.NaN(), -1.1)))
	require.True(t, math.IsNaN(WasmCompatMin(math.Inf(-1), math.NaN())))
	// -0 orders below +0.
	require.True(t, math.Signbit(WasmCompatMin(math.Copysign(0, -1), 0)))
}

func TestWasmCompatMax(t *testing.T) {
	require.Equal(t, math.Inf(1), WasmCompatMax(-1.1, math.Inf(1)))
	require.Equal(t, -1.1, WasmCompatMax(-1.1, math.Inf(-1)))
	require.True(t, math.IsNaN(WasmCompatMax(math.NaN(), -1.1)))
	require.True(t, math.IsNaN(WasmCompatMax(math.Inf(1), math.NaN())))
	require.False(t, math.Signbit(WasmCompatMax(math.Copysign(0, -1), 0)))
}

func TestWasmCompatNearest(t *testing.T) {
	// Ties round to even, unlike math.Round.
	require.Equal(t, 0.0, WasmCompatNearestF64(0.5))
	require.Equal(t, 2.0, WasmCompatNearestF64(1.5))
	require.Equal(t, -2.0, WasmCompatNearestF64(-1.5))
	require.Equal(t, -4.0, WasmCompatNearestF64(-4.5))
	require.Equal(t, float32(2), WasmCompatNearestF32(1.5))
	require.True(t, math.Signbit(WasmCompatNearestF64(math.Copysign(0, -1))))
}
