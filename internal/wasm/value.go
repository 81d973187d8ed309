package wasm

import (
	"math"

	"github.com/rewasm/rewasm/api"
)

// ValueType is an alias of api.ValueType to simplify imports.
type ValueType = api.ValueType

const (
	ValueTypeI32       = api.ValueTypeI32
	ValueTypeI64       = api.ValueTypeI64
	ValueTypeF32       = api.ValueTypeF32
	ValueTypeF64       = api.ValueTypeF64
	ValueTypeFuncref   = api.ValueTypeFuncref
	ValueTypeExternref = api.ValueTypeExternref
)

// Value is one 64-bit cell of the shared value stack. All four numeric types
// live in it by bit-pattern reinterpretation; no tag is stored at runtime.
// It aliases uint64 so a host-provided []uint64 slab is used in place.
type Value = uint64

// ValueFromI32 reinterprets the signed 32-bit integer as a Value.
func ValueFromI32(v int32) Value { return Value(uint32(v)) }

// ValueFromU32 reinterprets the unsigned 32-bit integer as a Value.
func ValueFromU32(v uint32) Value { return Value(v) }

// ValueFromI64 reinterprets the signed 64-bit integer as a Value.
func ValueFromI64(v int64) Value { return Value(v) }

// ValueFromF32 reinterprets the 32-bit float as a Value. The high 32 bits are
// zero so an i32 view of the same cell sees the raw IEEE-754 pattern.
func ValueFromF32(v float32) Value { return Value(math.Float32bits(v)) }

// ValueFromF64 reinterprets the 64-bit float as a Value.
func ValueFromF64(v float64) Value { return math.Float64bits(v) }

// The As* helpers are the alternative views of one cell.

func AsI32(v Value) int32   { return int32(uint32(v)) }
func AsU32(v Value) uint32  { return uint32(v) }
func AsI64(v Value) int64   { return int64(v) }
func AsF32(v Value) float32 { return math.Float32frombits(uint32(v)) }
func AsF64(v Value) float64 { return math.Float64frombits(v) }
