package translator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rewasm/rewasm/internal/wasm"
)

func testModule(types ...*wasm.FunctionType) *wasm.Module {
	m := &wasm.Module{Types: types}
	for i, t := range types {
		m.Functions = append(m.Functions, &wasm.Function{Type: t, Idx: uint32(i)})
	}
	return m
}

func compile(t *testing.T, mod *wasm.Module, fn *wasm.Function, body []byte) []wasm.Instruction {
	t.Helper()
	require.NoError(t, CompileFunction(mod, fn, &wasm.Code{Body: body}))
	return fn.Code
}

func TestCompileFunction_constReturn(t *testing.T) {
	mod := testModule(&wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}})
	fn := mod.Functions[0]

	code := compile(t, mod, fn, []byte{0x41, 0x2a, 0x0b}) // i32.const 42; end

	require.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpcodeLoadConstI32, Rd: 2, Const: 42},
		{Opcode: wasm.OpcodeMove, Rd: -1, R1: 2},
		{Opcode: wasm.OpcodeReturn},
	}, code)
	require.Equal(t, uint32(3), fn.StackHigh)
}

func TestCompileFunction_localGetSet(t *testing.T) {
	mod := testModule(&wasm.FunctionType{
		Params:  []wasm.ValueType{wasm.ValueTypeI32},
		Results: []wasm.ValueType{wasm.ValueTypeI32},
	})
	fn := mod.Functions[0]

	// local.get 0; local.set 1; local.get 1; end -- with one extra local.
	require.NoError(t, CompileFunction(mod, fn, &wasm.Code{
		LocalTypes: []wasm.ValueType{wasm.ValueTypeI32},
		Body:       []byte{0x20, 0x00, 0x21, 0x01, 0x20, 0x01, 0x0b},
	}))

	// Slot 2 is the argument, slot 3 the local (zeroed in the prologue).
	require.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpcodeLoadConstI64, Rd: 3},
		{Opcode: wasm.OpcodeMove, Rd: 4, R1: 2},
		{Opcode: wasm.OpcodeMove, Rd: 3, R1: 4},
		{Opcode: wasm.OpcodeMove, Rd: 5, R1: 3},
		{Opcode: wasm.OpcodeMove, Rd: -1, R1: 5},
		{Opcode: wasm.OpcodeReturn},
	}, fn.Code)
}

func TestCompileFunction_binaryOpOperandOrder(t *testing.T) {
	mod := testModule(&wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}})
	fn := mod.Functions[0]

	// 7 - 5: the first pushed operand must be the left-hand side.
	code := compile(t, mod, fn, []byte{0x41, 0x07, 0x41, 0x05, 0x6b, 0x0b})

	require.Equal(t, wasm.Instruction{Opcode: wasm.OpcodeI32Sub, Rd: 4, R1: 2, R2: 3}, code[2])
}

// Fallthrough elision: after freeze no jump targets the instruction
// immediately following it.
func TestFreeze_fallthroughElision(t *testing.T) {
	mod := testModule(&wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}})
	fn := mod.Functions[0]

	// block (result i32) ... end wrapped twice to force several blocks.
	code := compile(t, mod, fn, []byte{
		0x02, 0x7f, // block (result i32)
		0x02, 0x7f, // block (result i32)
		0x41, 0x2a, // i32.const 42
		0x0b,
		0x0b,
		0x0b,
	})

	for i, inst := range code {
		if inst.Opcode == wasm.OpcodeJump {
			require.NotEqual(t, int32(i+1), inst.Target, "jump at %d targets the next instruction", i)
		}
	}
}

// After a block is terminated by an unconditional transfer, the rest of its
// dead code must be suppressed.
func TestCompileFunction_deadCodeSuppressed(t *testing.T) {
	mod := testModule(&wasm.FunctionType{})
	fn := mod.Functions[0]

	code := compile(t, mod, fn, []byte{
		0x00,       // unreachable
		0x41, 0x07, // i32.const 7 (dead)
		0x1a, // drop (dead)
		0x0b,
	})

	require.Equal(t, []wasm.Instruction{{Opcode: wasm.OpcodeUnreachable}}, code)
}

func TestCompileFunction_loopBranchesBackward(t *testing.T) {
	mod := testModule(&wasm.FunctionType{})
	fn := mod.Functions[0]

	// loop; i32.const 0; br_if 0; end
	code := compile(t, mod, fn, []byte{
		0x03, 0x40,
		0x41, 0x00,
		0x0d, 0x00,
		0x0b,
		0x0b,
	})

	var jumpIf *wasm.Instruction
	var jumpIfAt int32
	for i := range code {
		if code[i].Opcode == wasm.OpcodeJumpIf {
			jumpIf = &code[i]
			jumpIfAt = int32(i)
		}
	}
	require.NotNil(t, jumpIf)
	require.LessOrEqual(t, jumpIf.Target, jumpIfAt, "a loop branch must go backward")
}

func TestCompileFunction_callFrameLayout(t *testing.T) {
	callee := &wasm.FunctionType{
		Params:  []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
		Results: []wasm.ValueType{wasm.ValueTypeI32},
	}
	mod := testModule(callee, &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}})
	fn := mod.Functions[1]

	// i32.const 1; i32.const 2; call 0; end
	code := compile(t, mod, fn, []byte{0x41, 0x01, 0x41, 0x02, 0x10, 0x00, 0x0b})

	// Operands at slots 2 and 3; the callee frame bases at slot 4 with one
	// return slot, so the callee frame pointer is 4+1=5 and arguments land at
	// 7 and 8.
	require.Equal(t, wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: 8, R1: 3}, code[2])
	require.Equal(t, wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: 7, R1: 2}, code[3])
	call := code[4]
	require.Equal(t, wasm.OpcodeStaticCall, call.Opcode)
	require.Equal(t, int16(4), call.Rd)
	require.Equal(t, uint32(1), call.Index)
	require.Same(t, mod.Functions[0], call.Fn)
	// The argument area must be accounted in the frame high-water mark.
	require.GreaterOrEqual(t, fn.StackHigh, uint32(9))
}

func TestCompileConstantExpression(t *testing.T) {
	mod := testModule()

	fn, err := CompileConstantExpression(mod, wasm.ValueTypeI32,
		&wasm.ConstantExpression{Body: []byte{0x41, 0x10}})
	require.NoError(t, err)

	require.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpcodeLoadConstI32, Rd: 2, Const: 16},
		{Opcode: wasm.OpcodeMove, Rd: -1, R1: 2},
		{Opcode: wasm.OpcodeExit},
	}, fn.Code)
}

func TestCompileGlobalFunction(t *testing.T) {
	mod := testModule()
	mod.GlobalSection = []*wasm.Global{
		{Type: wasm.GlobalType{ValType: wasm.ValueTypeI32}, Init: &wasm.ConstantExpression{Body: []byte{0x41, 0x05}}},
		{Type: wasm.GlobalType{ValType: wasm.ValueTypeI32}, Init: &wasm.ConstantExpression{Body: []byte{0x23, 0x00}}},
	}

	fn, err := CompileGlobalFunction(mod)
	require.NoError(t, err)
	require.Equal(t, "__global__", fn.Name)

	require.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpcodeLoadConstI32, Rd: 2, Const: 5},
		{Opcode: wasm.OpcodeGlobalSet, Index: 0, R1: 2},
		{Opcode: wasm.OpcodeGlobalGet, Rd: 3, Index: 0},
		{Opcode: wasm.OpcodeGlobalSet, Index: 1, R1: 3},
		{Opcode: wasm.OpcodeExit},
	}, fn.Code)
}

func TestCompileFunction_errors(t *testing.T) {
	mod := testModule(&wasm.FunctionType{})
	fn := mod.Functions[0]

	tests := []struct {
		name string
		body []byte
	}{
		{name: "unknown opcode", body: []byte{0xff, 0x0b}},
		{name: "truncated const", body: []byte{0x41}},
		{name: "invalid call index", body: []byte{0x10, 0x2a, 0x0b}},
		{name: "unsupported 0xfc opcode", body: []byte{0xfc, 0x0a, 0x0b}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, CompileFunction(mod, fn, &wasm.Code{Body: tc.body}))
		})
	}
}
