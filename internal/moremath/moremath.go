// Package moremath has the floating-point helpers the math package lacks or
// implements with semantics that differ from the Wasm specification.
package moremath

import "math"

// WasmCompatMin is the Wasm-compatible float min: any NaN operand wins over
// -Inf, and -0 orders below +0.
//
// See https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L74-L91
func WasmCompatMin(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, -1) || math.IsInf(y, -1):
		return math.Inf(-1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax is the Wasm-compatible float max: any NaN operand wins over
// +Inf, and +0 orders above -0.
//
// See https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L42-L59
func WasmCompatMax(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, 1) || math.IsInf(y, 1):
		return math.Inf(1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

// WasmCompatNearestF32 rounds to the nearest integer, ties to even, as
// f32.nearest requires. math.Round ties away from zero, so it cannot be used.
func WasmCompatNearestF32(f float32) float32 {
	return float32(WasmCompatNearestF64(float64(f)))
}

// WasmCompatNearestF64 rounds to the nearest integer, ties to even, as
// f64.nearest requires.
func WasmCompatNearestF64(f float64) float64 {
	// math.RoundToEven matches the IEEE 754 roundTiesToEven this needs,
	// including on ±0 and ±Inf.
	return math.RoundToEven(f)
}
