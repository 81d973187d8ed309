package interpreter

import (
	"math"
	"math/bits"

	"github.com/rewasm/rewasm/internal/moremath"
	"github.com/rewasm/rewasm/internal/wasm"
	"github.com/rewasm/rewasm/internal/wasmruntime"
)

func b2i(b bool) wasm.Value {
	if b {
		return 1
	}
	return 0
}

// evalNumeric executes one comparison, arithmetic or conversion instruction
// and returns the next pc. Unknown opcodes trap as not implemented.
func (ce *callEngine) evalNumeric(inst *wasm.Instruction, sp int, pc int32) int32 {
	stack := ce.stack
	get := func(r int16) wasm.Value { return stack[sp+int(r)] }
	set := func(r int16, v wasm.Value) { stack[sp+int(r)] = v }

	a := get(inst.R1)
	b := get(inst.R2)

	switch inst.Opcode {
	case wasm.OpcodeI32Eqz:
		set(inst.Rd, b2i(wasm.AsU32(a) == 0))
	case wasm.OpcodeI32Eq:
		set(inst.Rd, b2i(wasm.AsU32(a) == wasm.AsU32(b)))
	case wasm.OpcodeI32Ne:
		set(inst.Rd, b2i(wasm.AsU32(a) != wasm.AsU32(b)))
	case wasm.OpcodeI32LtS:
		set(inst.Rd, b2i(wasm.AsI32(a) < wasm.AsI32(b)))
	case wasm.OpcodeI32LtU:
		set(inst.Rd, b2i(wasm.AsU32(a) < wasm.AsU32(b)))
	case wasm.OpcodeI32GtS:
		set(inst.Rd, b2i(wasm.AsI32(a) > wasm.AsI32(b)))
	case wasm.OpcodeI32GtU:
		set(inst.Rd, b2i(wasm.AsU32(a) > wasm.AsU32(b)))
	case wasm.OpcodeI32LeS:
		set(inst.Rd, b2i(wasm.AsI32(a) <= wasm.AsI32(b)))
	case wasm.OpcodeI32LeU:
		set(inst.Rd, b2i(wasm.AsU32(a) <= wasm.AsU32(b)))
	case wasm.OpcodeI32GeS:
		set(inst.Rd, b2i(wasm.AsI32(a) >= wasm.AsI32(b)))
	case wasm.OpcodeI32GeU:
		set(inst.Rd, b2i(wasm.AsU32(a) >= wasm.AsU32(b)))
	case wasm.OpcodeI64Eqz:
		set(inst.Rd, b2i(uint64(a) == 0))
	case wasm.OpcodeI64Eq:
		set(inst.Rd, b2i(uint64(a) == uint64(b)))
	case wasm.OpcodeI64Ne:
		set(inst.Rd, b2i(uint64(a) != uint64(b)))
	case wasm.OpcodeI64LtS:
		set(inst.Rd, b2i(wasm.AsI64(a) < wasm.AsI64(b)))
	case wasm.OpcodeI64LtU:
		set(inst.Rd, b2i(uint64(a) < uint64(b)))
	case wasm.OpcodeI64GtS:
		set(inst.Rd, b2i(wasm.AsI64(a) > wasm.AsI64(b)))
	case wasm.OpcodeI64GtU:
		set(inst.Rd, b2i(uint64(a) > uint64(b)))
	case wasm.OpcodeI64LeS:
		set(inst.Rd, b2i(wasm.AsI64(a) <= wasm.AsI64(b)))
	case wasm.OpcodeI64LeU:
		set(inst.Rd, b2i(uint64(a) <= uint64(b)))
	case wasm.OpcodeI64GeS:
		set(inst.Rd, b2i(wasm.AsI64(a) >= wasm.AsI64(b)))
	case wasm.OpcodeI64GeU:
		set(inst.Rd, b2i(uint64(a) >= uint64(b)))
	case wasm.OpcodeF32Eq:
		set(inst.Rd, b2i(wasm.AsF32(a) == wasm.AsF32(b)))
	case wasm.OpcodeF32Ne:
		set(inst.Rd, b2i(wasm.AsF32(a) != wasm.AsF32(b)))
	case wasm.OpcodeF32Lt:
		set(inst.Rd, b2i(wasm.AsF32(a) < wasm.AsF32(b)))
	case wasm.OpcodeF32Gt:
		set(inst.Rd, b2i(wasm.AsF32(a) > wasm.AsF32(b)))
	case wasm.OpcodeF32Le:
		set(inst.Rd, b2i(wasm.AsF32(a) <= wasm.AsF32(b)))
	case wasm.OpcodeF32Ge:
		set(inst.Rd, b2i(wasm.AsF32(a) >= wasm.AsF32(b)))
	case wasm.OpcodeF64Eq:
		set(inst.Rd, b2i(wasm.AsF64(a) == wasm.AsF64(b)))
	case wasm.OpcodeF64Ne:
		set(inst.Rd, b2i(wasm.AsF64(a) != wasm.AsF64(b)))
	case wasm.OpcodeF64Lt:
		set(inst.Rd, b2i(wasm.AsF64(a) < wasm.AsF64(b)))
	case wasm.OpcodeF64Gt:
		set(inst.Rd, b2i(wasm.AsF64(a) > wasm.AsF64(b)))
	case wasm.OpcodeF64Le:
		set(inst.Rd, b2i(wasm.AsF64(a) <= wasm.AsF64(b)))
	case wasm.OpcodeF64Ge:
		set(inst.Rd, b2i(wasm.AsF64(a) >= wasm.AsF64(b)))

	case wasm.OpcodeI32Clz:
		set(inst.Rd, wasm.ValueFromU32(uint32(bits.LeadingZeros32(wasm.AsU32(a)))))
	case wasm.OpcodeI32Ctz:
		set(inst.Rd, wasm.ValueFromU32(uint32(bits.TrailingZeros32(wasm.AsU32(a)))))
	case wasm.OpcodeI32Popcnt:
		set(inst.Rd, wasm.ValueFromU32(uint32(bits.OnesCount32(wasm.AsU32(a)))))
	case wasm.OpcodeI32Add:
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)+wasm.AsU32(b)))
	case wasm.OpcodeI32Sub:
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)-wasm.AsU32(b)))
	case wasm.OpcodeI32Mul:
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)*wasm.AsU32(b)))
	case wasm.OpcodeI32DivS:
		n, d := wasm.AsI32(a), wasm.AsI32(b)
		if d == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		if n == math.MinInt32 && d == -1 {
			panic(wasmruntime.ErrRuntimeIntegerOverflow)
		}
		set(inst.Rd, wasm.ValueFromI32(n/d))
	case wasm.OpcodeI32DivU:
		if wasm.AsU32(b) == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)/wasm.AsU32(b)))
	case wasm.OpcodeI32RemS:
		if wasm.AsI32(b) == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		set(inst.Rd, wasm.ValueFromI32(wasm.AsI32(a)%wasm.AsI32(b)))
	case wasm.OpcodeI32RemU:
		if wasm.AsU32(b) == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)%wasm.AsU32(b)))
	case wasm.OpcodeI32And:
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)&wasm.AsU32(b)))
	case wasm.OpcodeI32Or:
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)|wasm.AsU32(b)))
	case wasm.OpcodeI32Xor:
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)^wasm.AsU32(b)))
	case wasm.OpcodeI32Shl:
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)<<(wasm.AsU32(b)%32)))
	case wasm.OpcodeI32ShrS:
		set(inst.Rd, wasm.ValueFromI32(wasm.AsI32(a)>>(wasm.AsU32(b)%32)))
	case wasm.OpcodeI32ShrU:
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)>>(wasm.AsU32(b)%32)))
	case wasm.OpcodeI32Rotl:
		set(inst.Rd, wasm.ValueFromU32(bits.RotateLeft32(wasm.AsU32(a), int(wasm.AsU32(b)%32))))
	case wasm.OpcodeI32Rotr:
		set(inst.Rd, wasm.ValueFromU32(bits.RotateLeft32(wasm.AsU32(a), -int(wasm.AsU32(b)%32))))

	case wasm.OpcodeI64Clz:
		set(inst.Rd, wasm.Value(uint64(bits.LeadingZeros64(uint64(a)))))
	case wasm.OpcodeI64Ctz:
		set(inst.Rd, wasm.Value(uint64(bits.TrailingZeros64(uint64(a)))))
	case wasm.OpcodeI64Popcnt:
		set(inst.Rd, wasm.Value(uint64(bits.OnesCount64(uint64(a)))))
	case wasm.OpcodeI64Add:
		set(inst.Rd, wasm.Value(uint64(a)+uint64(b)))
	case wasm.OpcodeI64Sub:
		set(inst.Rd, wasm.Value(uint64(a)-uint64(b)))
	case wasm.OpcodeI64Mul:
		set(inst.Rd, wasm.Value(uint64(a)*uint64(b)))
	case wasm.OpcodeI64DivS:
		n, d := wasm.AsI64(a), wasm.AsI64(b)
		if d == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		if n == math.MinInt64 && d == -1 {
			panic(wasmruntime.ErrRuntimeIntegerOverflow)
		}
		set(inst.Rd, wasm.ValueFromI64(n/d))
	case wasm.OpcodeI64DivU:
		if uint64(b) == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		set(inst.Rd, wasm.Value(uint64(a)/uint64(b)))
	case wasm.OpcodeI64RemS:
		if wasm.AsI64(b) == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		set(inst.Rd, wasm.ValueFromI64(wasm.AsI64(a)%wasm.AsI64(b)))
	case wasm.OpcodeI64RemU:
		if uint64(b) == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		set(inst.Rd, wasm.Value(uint64(a)%uint64(b)))
	case wasm.OpcodeI64And:
		set(inst.Rd, wasm.Value(uint64(a)&uint64(b)))
	case wasm.OpcodeI64Or:
		set(inst.Rd, wasm.Value(uint64(a)|uint64(b)))
	case wasm.OpcodeI64Xor:
		set(inst.Rd, wasm.Value(uint64(a)^uint64(b)))
	case wasm.OpcodeI64Shl:
		set(inst.Rd, wasm.Value(uint64(a)<<(uint64(b)%64)))
	case wasm.OpcodeI64ShrS:
		set(inst.Rd, wasm.ValueFromI64(wasm.AsI64(a)>>(uint64(b)%64)))
	case wasm.OpcodeI64ShrU:
		set(inst.Rd, wasm.Value(uint64(a)>>(uint64(b)%64)))
	case wasm.OpcodeI64Rotl:
		set(inst.Rd, wasm.Value(bits.RotateLeft64(uint64(a), int(uint64(b)%64))))
	case wasm.OpcodeI64Rotr:
		set(inst.Rd, wasm.Value(bits.RotateLeft64(uint64(a), -int(uint64(b)%64))))

	case wasm.OpcodeF32Abs:
		set(inst.Rd, wasm.ValueFromF32(float32(math.Abs(float64(wasm.AsF32(a))))))
	case wasm.OpcodeF32Neg:
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)^(1<<31)))
	case wasm.OpcodeF32Ceil:
		set(inst.Rd, wasm.ValueFromF32(float32(math.Ceil(float64(wasm.AsF32(a))))))
	case wasm.OpcodeF32Floor:
		set(inst.Rd, wasm.ValueFromF32(float32(math.Floor(float64(wasm.AsF32(a))))))
	case wasm.OpcodeF32Trunc:
		set(inst.Rd, wasm.ValueFromF32(float32(math.Trunc(float64(wasm.AsF32(a))))))
	case wasm.OpcodeF32Nearest:
		set(inst.Rd, wasm.ValueFromF32(moremath.WasmCompatNearestF32(wasm.AsF32(a))))
	case wasm.OpcodeF32Sqrt:
		set(inst.Rd, wasm.ValueFromF32(float32(math.Sqrt(float64(wasm.AsF32(a))))))
	case wasm.OpcodeF32Add:
		set(inst.Rd, wasm.ValueFromF32(wasm.AsF32(a)+wasm.AsF32(b)))
	case wasm.OpcodeF32Sub:
		set(inst.Rd, wasm.ValueFromF32(wasm.AsF32(a)-wasm.AsF32(b)))
	case wasm.OpcodeF32Mul:
		set(inst.Rd, wasm.ValueFromF32(wasm.AsF32(a)*wasm.AsF32(b)))
	case wasm.OpcodeF32Div:
		set(inst.Rd, wasm.ValueFromF32(wasm.AsF32(a)/wasm.AsF32(b)))
	case wasm.OpcodeF32Min:
		set(inst.Rd, wasm.ValueFromF32(float32(moremath.WasmCompatMin(float64(wasm.AsF32(a)), float64(wasm.AsF32(b))))))
	case wasm.OpcodeF32Max:
		set(inst.Rd, wasm.ValueFromF32(float32(moremath.WasmCompatMax(float64(wasm.AsF32(a)), float64(wasm.AsF32(b))))))
	case wasm.OpcodeF32Copysign:
		set(inst.Rd, wasm.ValueFromU32(wasm.AsU32(a)&^(1<<31)|wasm.AsU32(b)&(1<<31)))

	case wasm.OpcodeF64Abs:
		set(inst.Rd, wasm.ValueFromF64(math.Abs(wasm.AsF64(a))))
	case wasm.OpcodeF64Neg:
		set(inst.Rd, wasm.Value(uint64(a)^(1<<63)))
	case wasm.OpcodeF64Ceil:
		set(inst.Rd, wasm.ValueFromF64(math.Ceil(wasm.AsF64(a))))
	case wasm.OpcodeF64Floor:
		set(inst.Rd, wasm.ValueFromF64(math.Floor(wasm.AsF64(a))))
	case wasm.OpcodeF64Trunc:
		set(inst.Rd, wasm.ValueFromF64(math.Trunc(wasm.AsF64(a))))
	case wasm.OpcodeF64Nearest:
		set(inst.Rd, wasm.ValueFromF64(moremath.WasmCompatNearestF64(wasm.AsF64(a))))
	case wasm.OpcodeF64Sqrt:
		set(inst.Rd, wasm.ValueFromF64(math.Sqrt(wasm.AsF64(a))))
	case wasm.OpcodeF64Add:
		set(inst.Rd, wasm.ValueFromF64(wasm.AsF64(a)+wasm.AsF64(b)))
	case wasm.OpcodeF64Sub:
		set(inst.Rd, wasm.ValueFromF64(wasm.AsF64(a)-wasm.AsF64(b)))
	case wasm.OpcodeF64Mul:
		set(inst.Rd, wasm.ValueFromF64(wasm.AsF64(a)*wasm.AsF64(b)))
	case wasm.OpcodeF64Div:
		set(inst.Rd, wasm.ValueFromF64(wasm.AsF64(a)/wasm.AsF64(b)))
	case wasm.OpcodeF64Min:
		set(inst.Rd, wasm.ValueFromF64(moremath.WasmCompatMin(wasm.AsF64(a), wasm.AsF64(b))))
	case wasm.OpcodeF64Max:
		set(inst.Rd, wasm.ValueFromF64(moremath.WasmCompatMax(wasm.AsF64(a), wasm.AsF64(b))))
	case wasm.OpcodeF64Copysign:
		set(inst.Rd, wasm.Value(uint64(a)&^(1<<63)|uint64(b)&(1<<63)))

	case wasm.OpcodeI32WrapI64:
		set(inst.Rd, wasm.ValueFromU32(uint32(uint64(a))))
	case wasm.OpcodeI32TruncF32S:
		set(inst.Rd, wasm.ValueFromI32(truncI32(float64(wasm.AsF32(a)))))
	case wasm.OpcodeI32TruncF32U:
		set(inst.Rd, wasm.ValueFromU32(truncU32(float64(wasm.AsF32(a)))))
	case wasm.OpcodeI32TruncF64S:
		set(inst.Rd, wasm.ValueFromI32(truncI32(wasm.AsF64(a))))
	case wasm.OpcodeI32TruncF64U:
		set(inst.Rd, wasm.ValueFromU32(truncU32(wasm.AsF64(a))))
	case wasm.OpcodeI64ExtendI32S:
		set(inst.Rd, wasm.ValueFromI64(int64(wasm.AsI32(a))))
	case wasm.OpcodeI64ExtendI32U:
		set(inst.Rd, wasm.Value(uint64(wasm.AsU32(a))))
	case wasm.OpcodeI64TruncF32S:
		set(inst.Rd, wasm.ValueFromI64(truncI64(float64(wasm.AsF32(a)))))
	case wasm.OpcodeI64TruncF32U:
		set(inst.Rd, wasm.Value(truncU64(float64(wasm.AsF32(a)))))
	case wasm.OpcodeI64TruncF64S:
		set(inst.Rd, wasm.ValueFromI64(truncI64(wasm.AsF64(a))))
	case wasm.OpcodeI64TruncF64U:
		set(inst.Rd, wasm.Value(truncU64(wasm.AsF64(a))))
	case wasm.OpcodeF32ConvertI32S:
		set(inst.Rd, wasm.ValueFromF32(float32(wasm.AsI32(a))))
	case wasm.OpcodeF32ConvertI32U:
		set(inst.Rd, wasm.ValueFromF32(float32(wasm.AsU32(a))))
	case wasm.OpcodeF32ConvertI64S:
		set(inst.Rd, wasm.ValueFromF32(float32(wasm.AsI64(a))))
	case wasm.OpcodeF32ConvertI64U:
		set(inst.Rd, wasm.ValueFromF32(float32(uint64(a))))
	case wasm.OpcodeF32DemoteF64:
		set(inst.Rd, wasm.ValueFromF32(float32(wasm.AsF64(a))))
	case wasm.OpcodeF64ConvertI32S:
		set(inst.Rd, wasm.ValueFromF64(float64(wasm.AsI32(a))))
	case wasm.OpcodeF64ConvertI32U:
		set(inst.Rd, wasm.ValueFromF64(float64(wasm.AsU32(a))))
	case wasm.OpcodeF64ConvertI64S:
		set(inst.Rd, wasm.ValueFromF64(float64(wasm.AsI64(a))))
	case wasm.OpcodeF64ConvertI64U:
		set(inst.Rd, wasm.ValueFromF64(float64(uint64(a))))
	case wasm.OpcodeF64PromoteF32:
		set(inst.Rd, wasm.ValueFromF64(float64(wasm.AsF32(a))))

	case wasm.OpcodeI32ReinterpretF32, wasm.OpcodeI64ReinterpretF64,
		wasm.OpcodeF32ReinterpretI32, wasm.OpcodeF64ReinterpretI64:
		// Bit-preserving at the 64-bit cell level.
		set(inst.Rd, a)

	case wasm.OpcodeI32Extend8S:
		set(inst.Rd, wasm.ValueFromI32(int32(int8(wasm.AsU32(a)))))
	case wasm.OpcodeI32Extend16S:
		set(inst.Rd, wasm.ValueFromI32(int32(int16(wasm.AsU32(a)))))
	case wasm.OpcodeI64Extend8S:
		set(inst.Rd, wasm.ValueFromI64(int64(int8(uint64(a)))))
	case wasm.OpcodeI64Extend16S:
		set(inst.Rd, wasm.ValueFromI64(int64(int16(uint64(a)))))
	case wasm.OpcodeI64Extend32S:
		set(inst.Rd, wasm.ValueFromI64(int64(int32(uint64(a)))))

	case wasm.OpcodeI32TruncSatF32S:
		set(inst.Rd, wasm.ValueFromI32(truncSatI32(float64(wasm.AsF32(a)))))
	case wasm.OpcodeI32TruncSatF32U:
		set(inst.Rd, wasm.ValueFromU32(truncSatU32(float64(wasm.AsF32(a)))))
	case wasm.OpcodeI32TruncSatF64S:
		set(inst.Rd, wasm.ValueFromI32(truncSatI32(wasm.AsF64(a))))
	case wasm.OpcodeI32TruncSatF64U:
		set(inst.Rd, wasm.ValueFromU32(truncSatU32(wasm.AsF64(a))))
	case wasm.OpcodeI64TruncSatF32S:
		set(inst.Rd, wasm.ValueFromI64(truncSatI64(float64(wasm.AsF32(a)))))
	case wasm.OpcodeI64TruncSatF32U:
		set(inst.Rd, wasm.Value(truncSatU64(float64(wasm.AsF32(a)))))
	case wasm.OpcodeI64TruncSatF64S:
		set(inst.Rd, wasm.ValueFromI64(truncSatI64(wasm.AsF64(a))))
	case wasm.OpcodeI64TruncSatF64U:
		set(inst.Rd, wasm.Value(truncSatU64(wasm.AsF64(a))))

	default:
		panic(wasmruntime.ErrRuntimeNotImplemented)
	}
	return pc + 1
}

func truncI32(f float64) int32 {
	f = math.Trunc(f)
	if math.IsNaN(f) {
		panic(wasmruntime.ErrRuntimeInvalidConversionToInteger)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		panic(wasmruntime.ErrRuntimeIntegerOverflow)
	}
	return int32(f)
}

func truncU32(f float64) uint32 {
	f = math.Trunc(f)
	if math.IsNaN(f) {
		panic(wasmruntime.ErrRuntimeInvalidConversionToInteger)
	}
	if f < 0 || f > math.MaxUint32 {
		panic(wasmruntime.ErrRuntimeIntegerOverflow)
	}
	return uint32(f)
}

func truncI64(f float64) int64 {
	f = math.Trunc(f)
	if math.IsNaN(f) {
		panic(wasmruntime.ErrRuntimeInvalidConversionToInteger)
	}
	// float64(math.MaxInt64) rounds to 2^63, which is out of range.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		panic(wasmruntime.ErrRuntimeIntegerOverflow)
	}
	return int64(f)
}

func truncU64(f float64) uint64 {
	f = math.Trunc(f)
	if math.IsNaN(f) {
		panic(wasmruntime.ErrRuntimeInvalidConversionToInteger)
	}
	if f < 0 || f >= math.MaxUint64 {
		panic(wasmruntime.ErrRuntimeIntegerOverflow)
	}
	return uint64(f)
}

func truncSatI32(f float64) int32 {
	if math.IsNaN(f) {
		return 0
	}
	f = math.Trunc(f)
	if f < math.MinInt32 {
		return math.MinInt32
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(f)
}

func truncSatU32(f float64) uint32 {
	if math.IsNaN(f) {
		return 0
	}
	f = math.Trunc(f)
	if f < 0 {
		return 0
	}
	if f > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(f)
}

func truncSatI64(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	f = math.Trunc(f)
	if f < math.MinInt64 {
		return math.MinInt64
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

func truncSatU64(f float64) uint64 {
	if math.IsNaN(f) {
		return 0
	}
	f = math.Trunc(f)
	if f < 0 {
		return 0
	}
	if f >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(f)
}
