package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rewasm/rewasm/internal/wasm"
	"github.com/rewasm/rewasm/internal/wasmruntime"
)

var resultI32 = &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}

// initFunc wraps hand-assembled code into a runnable function.
func initFunc(t *wasm.FunctionType, stackHigh uint32, code ...wasm.Instruction) *wasm.Function {
	return &wasm.Function{Type: t, StackHigh: stackHigh, Code: code}
}

func TestEvalFunction_constExit(t *testing.T) {
	mod := &wasm.Module{}
	fn := initFunc(resultI32, 3,
		wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 2, Const: 42},
		wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: -1, R1: 2},
		wasm.Instruction{Opcode: wasm.OpcodeExit},
	)

	stack := make([]uint64, 8)
	require.NoError(t, EvalFunction(mod, fn, stack, 1))
	require.Equal(t, uint64(42), stack[0])
}

func TestEvalFunction_select(t *testing.T) {
	mod := &wasm.Module{}
	for _, tc := range []struct {
		cond     uint64
		expected uint64
	}{
		{cond: 1, expected: 7},
		{cond: 0, expected: 9},
	} {
		fn := initFunc(resultI32, 6,
			wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 2, Const: wasm.Value(tc.cond)},
			wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 3, Const: 7},
			wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 4, Const: 9},
			wasm.Instruction{Opcode: wasm.OpcodeSelect, Rd: 5, R1: 2, R2: 3, R3: 4},
			wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: -1, R1: 5},
			wasm.Instruction{Opcode: wasm.OpcodeExit},
		)
		stack := make([]uint64, 16)
		require.NoError(t, EvalFunction(mod, fn, stack, 1))
		require.Equal(t, tc.expected, stack[0])
	}
}

// A static call must restore the caller frame pointer and resume at the
// instruction after the call.
func TestEvalFunction_callReturnFrameBalance(t *testing.T) {
	mod := &wasm.Module{}
	callee := initFunc(resultI32, 3,
		wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 2, Const: 7},
		wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: -1, R1: 2},
		wasm.Instruction{Opcode: wasm.OpcodeReturn},
	)

	// Caller computes callee() + 1 so both the resume point and the result
	// slot are observable.
	caller := initFunc(resultI32, 8,
		wasm.Instruction{Opcode: wasm.OpcodeStaticCall, Rd: 2, Fn: callee, Index: 1},
		wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 3, Const: 1},
		wasm.Instruction{Opcode: wasm.OpcodeI32Add, Rd: 4, R1: 2, R2: 3},
		wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: -1, R1: 4},
		wasm.Instruction{Opcode: wasm.OpcodeReturn},
	)

	stack := make([]uint64, 32)
	require.NoError(t, EvalFunction(mod, caller, stack, 1))
	require.Equal(t, uint64(8), stack[0])
}

func TestEvalFunction_trapDivideByZero(t *testing.T) {
	mod := &wasm.Module{}
	fn := initFunc(resultI32, 5,
		wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 2, Const: 1},
		wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 3, Const: 0},
		wasm.Instruction{Opcode: wasm.OpcodeI32DivS, Rd: 4, R1: 2, R2: 3},
		wasm.Instruction{Opcode: wasm.OpcodeExit},
	)

	stack := make([]uint64, 16)
	err := EvalFunction(mod, fn, stack, 1)
	require.ErrorIs(t, err, wasmruntime.ErrRuntimeIntegerDivideByZero)
}

func TestEvalFunction_stackOverflow(t *testing.T) {
	mod := &wasm.Module{}
	// Infinite recursion: each frame re-calls itself.
	fn := initFunc(&wasm.FunctionType{}, 4)
	fn.Code = []wasm.Instruction{
		{Opcode: wasm.OpcodeStaticCall, Rd: 2, Fn: fn, Index: 0},
		{Opcode: wasm.OpcodeReturn},
	}

	stack := make([]uint64, 1<<16)
	err := EvalFunction(mod, fn, stack, 0)
	require.ErrorIs(t, err, wasmruntime.ErrRuntimeStackOverflow)
}

func TestEvalFunction_dynamicCall(t *testing.T) {
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	callee := initFunc(ft, 3,
		wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 2, Const: 99},
		wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: -1, R1: 2},
		wasm.Instruction{Opcode: wasm.OpcodeReturn},
	)
	mod := &wasm.Module{
		Types:  []*wasm.FunctionType{ft},
		Tables: []*wasm.TableInstance{{References: []*wasm.Function{callee}}},
	}

	caller := initFunc(ft, 8,
		wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 2, Const: 0}, // element index
		wasm.Instruction{Opcode: wasm.OpcodeDynamicCall, Rd: 3, R1: 2, R2: 1, Index: 0, Const: 0},
		wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: -1, R1: 3},
		wasm.Instruction{Opcode: wasm.OpcodeReturn},
	)

	stack := make([]uint64, 32)
	require.NoError(t, EvalFunction(mod, caller, stack, 1))
	require.Equal(t, uint64(99), stack[0])
}

func TestEvalFunction_dynamicCallTraps(t *testing.T) {
	ft := &wasm.FunctionType{}
	otherType := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI64}}
	callee := initFunc(otherType, 4, wasm.Instruction{Opcode: wasm.OpcodeReturn})

	mod := &wasm.Module{
		Types:  []*wasm.FunctionType{ft, otherType},
		Tables: []*wasm.TableInstance{{References: []*wasm.Function{nil, callee}}},
	}

	newCaller := func(elemIdx int32) *wasm.Function {
		return initFunc(ft, 8,
			wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: 2, Const: wasm.ValueFromI32(elemIdx)},
			wasm.Instruction{Opcode: wasm.OpcodeDynamicCall, Rd: 3, R1: 2, R2: 0, Index: 0, Const: 0},
			wasm.Instruction{Opcode: wasm.OpcodeReturn},
		)
	}

	stack := make([]uint64, 32)

	// Out of range.
	err := EvalFunction(mod, newCaller(5), stack, 0)
	require.ErrorIs(t, err, wasmruntime.ErrRuntimeInvalidTableAccess)

	// Uninitialized element.
	err = EvalFunction(mod, newCaller(0), stack, 0)
	require.ErrorIs(t, err, wasmruntime.ErrRuntimeInvalidTableAccess)

	// Type mismatch.
	err = EvalFunction(mod, newCaller(1), stack, 0)
	require.ErrorIs(t, err, wasmruntime.ErrRuntimeIndirectCallTypeMismatch)
}

func TestEvalModule_missingEntry(t *testing.T) {
	mod := &wasm.Module{Exports: map[string]*wasm.Export{}}
	err := EvalModule(mod, make([]uint64, 8))
	require.Error(t, err)
	require.Contains(t, err.Error(), "_start is not exported")
}
