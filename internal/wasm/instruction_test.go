package wasm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpcode_String(t *testing.T) {
	require.Equal(t, "i32.add", OpcodeI32Add.String())
	require.Equal(t, "jump_table", OpcodeJumpTable.String())
	require.Equal(t, "i64.trunc_sat_f64_u", OpcodeI64TruncSatF64U.String())
	require.Contains(t, Opcode(0x7fff).String(), "opcode(")
}

func TestInstruction_String(t *testing.T) {
	for _, tc := range []struct {
		inst     Instruction
		expected string
	}{
		{
			inst:     Instruction{Opcode: OpcodeMove, Rd: 3, R1: -1},
			expected: "move stack[3] = stack[-1]",
		},
		{
			inst:     Instruction{Opcode: OpcodeLoadConstI32, Rd: 2, Const: ValueFromI32(-7)},
			expected: "i32.const stack[2] = -7",
		},
		{
			inst:     Instruction{Opcode: OpcodeJumpIf, Target: 12, R1: 4},
			expected: "jump 12 if stack[4]",
		},
		{
			inst:     Instruction{Opcode: OpcodeSelect, Rd: 5, R1: 2, R2: 3, R3: 4},
			expected: "select stack[5] = stack[2] ? stack[3] : stack[4]",
		},
		{
			inst:     Instruction{Opcode: OpcodeI32Add, Rd: 4, R1: 2, R2: 3},
			expected: "i32.add stack[4] = stack[2], stack[3]",
		},
		{
			inst:     Instruction{Opcode: OpcodeI32Load, Rd: 4, R1: 2, Index: 8},
			expected: "i32.load stack[4] = memory[stack[2]+8]",
		},
		{
			inst:     Instruction{Opcode: OpcodeI32Store, Rd: 2, R1: 3, Index: 8},
			expected: "i32.store memory[stack[2]+8] = stack[3]",
		},
		{
			inst:     Instruction{Opcode: OpcodeReturn},
			expected: "return",
		},
	} {
		require.Equal(t, tc.expected, tc.inst.String())
	}
}

func TestDumpFunction(t *testing.T) {
	out := DumpFunction([]Instruction{
		{Opcode: OpcodeLoadConstI32, Rd: 2, Const: 1},
		{Opcode: OpcodeReturn},
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "[000] "))
	require.True(t, strings.HasPrefix(lines[1], "[001] "))
}

func TestFunctionType(t *testing.T) {
	ft := &FunctionType{
		Params:  []ValueType{ValueTypeI32, ValueTypeF64},
		Results: []ValueType{ValueTypeI64},
	}
	require.Equal(t, "(i32, f64) -> (i64)", ft.String())

	require.True(t, ft.EqualTo(&FunctionType{
		Params:  []ValueType{ValueTypeI32, ValueTypeF64},
		Results: []ValueType{ValueTypeI64},
	}))
	require.False(t, ft.EqualTo(&FunctionType{
		Params:  []ValueType{ValueTypeI32},
		Results: []ValueType{ValueTypeI64},
	}))
	require.False(t, ft.EqualTo(&FunctionType{
		Params:  []ValueType{ValueTypeI32, ValueTypeF32},
		Results: []ValueType{ValueTypeI64},
	}))
}
