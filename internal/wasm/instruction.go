package wasm

import (
	"fmt"
	"strings"
)

// Opcode discriminates the operand layout of an Instruction. The numeric,
// comparison, conversion, memory and variable opcodes correspond 1:1 with the
// Wasm MVP instruction set (plus the sign-extension and 0xFC saturating
// truncation groups); the rest encode structured control flow in flat form.
type Opcode uint16

const (
	// OpcodeUnreachable traps with ErrRuntimeUnreachable.
	OpcodeUnreachable Opcode = iota
	// OpcodeNop does nothing. The translator never emits it: a Wasm nop
	// lowers to no code, and the freeze peephole drops elided jumps instead of
	// replacing them.
	OpcodeNop
	// OpcodeMove copies the 64-bit cell at R1 to Rd.
	OpcodeMove
	// OpcodeJump transfers control to Target unconditionally.
	OpcodeJump
	// OpcodeJumpIf transfers control to Target when R1 holds a non-zero u32.
	OpcodeJumpIf
	// OpcodeJumpTable selects a target from Table by the bounds-checked u32
	// index in R1, or Table's default.
	OpcodeJumpTable
	// OpcodeStaticCall calls Fn with the callee frame based at Rd plus the
	// return count in Index.
	OpcodeStaticCall
	// OpcodeDynamicCall is an indirect call through table Index selected by
	// the u32 element index in R1; R2 holds the return count and Const the
	// expected type index. The target is read through the table on every
	// execution.
	OpcodeDynamicCall
	// OpcodeReturn pops the current frame using the two link words.
	OpcodeReturn
	// OpcodeExit terminates the dispatch loop. Only initializer functions
	// carry it; the outermost frame of a call ends the loop by returning
	// through a sentinel resume address instead.
	OpcodeExit
	// OpcodeSelect picks R2 when R1 is non-zero, else R3, into Rd.
	OpcodeSelect

	OpcodeGlobalGet
	OpcodeGlobalSet

	OpcodeLoadConstI32
	OpcodeLoadConstI64
	OpcodeLoadConstF32
	OpcodeLoadConstF64

	OpcodeI32Load
	OpcodeI64Load
	OpcodeF32Load
	OpcodeF64Load
	OpcodeI32Load8S
	OpcodeI32Load8U
	OpcodeI32Load16S
	OpcodeI32Load16U
	OpcodeI64Load8S
	OpcodeI64Load8U
	OpcodeI64Load16S
	OpcodeI64Load16U
	OpcodeI64Load32S
	OpcodeI64Load32U
	OpcodeI32Store
	OpcodeI64Store
	OpcodeF32Store
	OpcodeF64Store
	OpcodeI32Store8
	OpcodeI32Store16
	OpcodeI64Store8
	OpcodeI64Store16
	OpcodeI64Store32
	OpcodeMemorySize
	OpcodeMemoryGrow

	OpcodeI32Eqz
	OpcodeI32Eq
	OpcodeI32Ne
	OpcodeI32LtS
	OpcodeI32LtU
	OpcodeI32GtS
	OpcodeI32GtU
	OpcodeI32LeS
	OpcodeI32LeU
	OpcodeI32GeS
	OpcodeI32GeU
	OpcodeI64Eqz
	OpcodeI64Eq
	OpcodeI64Ne
	OpcodeI64LtS
	OpcodeI64LtU
	OpcodeI64GtS
	OpcodeI64GtU
	OpcodeI64LeS
	OpcodeI64LeU
	OpcodeI64GeS
	OpcodeI64GeU
	OpcodeF32Eq
	OpcodeF32Ne
	OpcodeF32Lt
	OpcodeF32Gt
	OpcodeF32Le
	OpcodeF32Ge
	OpcodeF64Eq
	OpcodeF64Ne
	OpcodeF64Lt
	OpcodeF64Gt
	OpcodeF64Le
	OpcodeF64Ge

	OpcodeI32Clz
	OpcodeI32Ctz
	OpcodeI32Popcnt
	OpcodeI32Add
	OpcodeI32Sub
	OpcodeI32Mul
	OpcodeI32DivS
	OpcodeI32DivU
	OpcodeI32RemS
	OpcodeI32RemU
	OpcodeI32And
	OpcodeI32Or
	OpcodeI32Xor
	OpcodeI32Shl
	OpcodeI32ShrS
	OpcodeI32ShrU
	OpcodeI32Rotl
	OpcodeI32Rotr
	OpcodeI64Clz
	OpcodeI64Ctz
	OpcodeI64Popcnt
	OpcodeI64Add
	OpcodeI64Sub
	OpcodeI64Mul
	OpcodeI64DivS
	OpcodeI64DivU
	OpcodeI64RemS
	OpcodeI64RemU
	OpcodeI64And
	OpcodeI64Or
	OpcodeI64Xor
	OpcodeI64Shl
	OpcodeI64ShrS
	OpcodeI64ShrU
	OpcodeI64Rotl
	OpcodeI64Rotr

	OpcodeF32Abs
	OpcodeF32Neg
	OpcodeF32Ceil
	OpcodeF32Floor
	OpcodeF32Trunc
	OpcodeF32Nearest
	OpcodeF32Sqrt
	OpcodeF32Add
	OpcodeF32Sub
	OpcodeF32Mul
	OpcodeF32Div
	OpcodeF32Min
	OpcodeF32Max
	OpcodeF32Copysign
	OpcodeF64Abs
	OpcodeF64Neg
	OpcodeF64Ceil
	OpcodeF64Floor
	OpcodeF64Trunc
	OpcodeF64Nearest
	OpcodeF64Sqrt
	OpcodeF64Add
	OpcodeF64Sub
	OpcodeF64Mul
	OpcodeF64Div
	OpcodeF64Min
	OpcodeF64Max
	OpcodeF64Copysign

	OpcodeI32WrapI64
	OpcodeI32TruncF32S
	OpcodeI32TruncF32U
	OpcodeI32TruncF64S
	OpcodeI32TruncF64U
	OpcodeI64ExtendI32S
	OpcodeI64ExtendI32U
	OpcodeI64TruncF32S
	OpcodeI64TruncF32U
	OpcodeI64TruncF64S
	OpcodeI64TruncF64U
	OpcodeF32ConvertI32S
	OpcodeF32ConvertI32U
	OpcodeF32ConvertI64S
	OpcodeF32ConvertI64U
	OpcodeF32DemoteF64
	OpcodeF64ConvertI32S
	OpcodeF64ConvertI32U
	OpcodeF64ConvertI64S
	OpcodeF64ConvertI64U
	OpcodeF64PromoteF32
	OpcodeI32ReinterpretF32
	OpcodeI64ReinterpretF64
	OpcodeF32ReinterpretI32
	OpcodeF64ReinterpretI64
	OpcodeI32Extend8S
	OpcodeI32Extend16S
	OpcodeI64Extend8S
	OpcodeI64Extend16S
	OpcodeI64Extend32S

	OpcodeI32TruncSatF32S
	OpcodeI32TruncSatF32U
	OpcodeI32TruncSatF64S
	OpcodeI32TruncSatF64U
	OpcodeI64TruncSatF32S
	OpcodeI64TruncSatF32U
	OpcodeI64TruncSatF64S
	OpcodeI64TruncSatF64U

	opcodeCount
)

var opcodeNames = [opcodeCount]string{
	OpcodeUnreachable: "unreachable",
	OpcodeNop:         "nop",
	OpcodeMove:        "move",
	OpcodeJump:        "jump",
	OpcodeJumpIf:      "jump_if",
	OpcodeJumpTable:   "jump_table",
	OpcodeStaticCall:  "static_call",
	OpcodeDynamicCall: "dynamic_call",
	OpcodeReturn:      "return",
	OpcodeExit:        "exit",
	OpcodeSelect:      "select",

	OpcodeGlobalGet: "global.get",
	OpcodeGlobalSet: "global.set",

	OpcodeLoadConstI32: "i32.const",
	OpcodeLoadConstI64: "i64.const",
	OpcodeLoadConstF32: "f32.const",
	OpcodeLoadConstF64: "f64.const",

	OpcodeI32Load:    "i32.load",
	OpcodeI64Load:    "i64.load",
	OpcodeF32Load:    "f32.load",
	OpcodeF64Load:    "f64.load",
	OpcodeI32Load8S:  "i32.load8_s",
	OpcodeI32Load8U:  "i32.load8_u",
	OpcodeI32Load16S: "i32.load16_s",
	OpcodeI32Load16U: "i32.load16_u",
	OpcodeI64Load8S:  "i64.load8_s",
	OpcodeI64Load8U:  "i64.load8_u",
	OpcodeI64Load16S: "i64.load16_s",
	OpcodeI64Load16U: "i64.load16_u",
	OpcodeI64Load32S: "i64.load32_s",
	OpcodeI64Load32U: "i64.load32_u",
	OpcodeI32Store:   "i32.store",
	OpcodeI64Store:   "i64.store",
	OpcodeF32Store:   "f32.store",
	OpcodeF64Store:   "f64.store",
	OpcodeI32Store8:  "i32.store8",
	OpcodeI32Store16: "i32.store16",
	OpcodeI64Store8:  "i64.store8",
	OpcodeI64Store16: "i64.store16",
	OpcodeI64Store32: "i64.store32",
	OpcodeMemorySize: "memory.size",
	OpcodeMemoryGrow: "memory.grow",

	OpcodeI32Eqz: "i32.eqz",
	OpcodeI32Eq:  "i32.eq",
	OpcodeI32Ne:  "i32.ne",
	OpcodeI32LtS: "i32.lt_s",
	OpcodeI32LtU: "i32.lt_u",
	OpcodeI32GtS: "i32.gt_s",
	OpcodeI32GtU: "i32.gt_u",
	OpcodeI32LeS: "i32.le_s",
	OpcodeI32LeU: "i32.le_u",
	OpcodeI32GeS: "i32.ge_s",
	OpcodeI32GeU: "i32.ge_u",
	OpcodeI64Eqz: "i64.eqz",
	OpcodeI64Eq:  "i64.eq",
	OpcodeI64Ne:  "i64.ne",
	OpcodeI64LtS: "i64.lt_s",
	OpcodeI64LtU: "i64.lt_u",
	OpcodeI64GtS: "i64.gt_s",
	OpcodeI64GtU: "i64.gt_u",
	OpcodeI64LeS: "i64.le_s",
	OpcodeI64LeU: "i64.le_u",
	OpcodeI64GeS: "i64.ge_s",
	OpcodeI64GeU: "i64.ge_u",
	OpcodeF32Eq:  "f32.eq",
	OpcodeF32Ne:  "f32.ne",
	OpcodeF32Lt:  "f32.lt",
	OpcodeF32Gt:  "f32.gt",
	OpcodeF32Le:  "f32.le",
	OpcodeF32Ge:  "f32.ge",
	OpcodeF64Eq:  "f64.eq",
	OpcodeF64Ne:  "f64.ne",
	OpcodeF64Lt:  "f64.lt",
	OpcodeF64Gt:  "f64.gt",
	OpcodeF64Le:  "f64.le",
	OpcodeF64Ge:  "f64.ge",

	OpcodeI32Clz:    "i32.clz",
	OpcodeI32Ctz:    "i32.ctz",
	OpcodeI32Popcnt: "i32.popcnt",
	OpcodeI32Add:    "i32.add",
	OpcodeI32Sub:    "i32.sub",
	OpcodeI32Mul:    "i32.mul",
	OpcodeI32DivS:   "i32.div_s",
	OpcodeI32DivU:   "i32.div_u",
	OpcodeI32RemS:   "i32.rem_s",
	OpcodeI32RemU:   "i32.rem_u",
	OpcodeI32And:    "i32.and",
	OpcodeI32Or:     "i32.or",
	OpcodeI32Xor:    "i32.xor",
	OpcodeI32Shl:    "i32.shl",
	OpcodeI32ShrS:   "i32.shr_s",
	OpcodeI32ShrU:   "i32.shr_u",
	OpcodeI32Rotl:   "i32.rotl",
	OpcodeI32Rotr:   "i32.rotr",
	OpcodeI64Clz:    "i64.clz",
	OpcodeI64Ctz:    "i64.ctz",
	OpcodeI64Popcnt: "i64.popcnt",
	OpcodeI64Add:    "i64.add",
	OpcodeI64Sub:    "i64.sub",
	OpcodeI64Mul:    "i64.mul",
	OpcodeI64DivS:   "i64.div_s",
	OpcodeI64DivU:   "i64.div_u",
	OpcodeI64RemS:   "i64.rem_s",
	OpcodeI64RemU:   "i64.rem_u",
	OpcodeI64And:    "i64.and",
	OpcodeI64Or:     "i64.or",
	OpcodeI64Xor:    "i64.xor",
	OpcodeI64Shl:    "i64.shl",
	OpcodeI64ShrS:   "i64.shr_s",
	OpcodeI64ShrU:   "i64.shr_u",
	OpcodeI64Rotl:   "i64.rotl",
	OpcodeI64Rotr:   "i64.rotr",

	OpcodeF32Abs:      "f32.abs",
	OpcodeF32Neg:      "f32.neg",
	OpcodeF32Ceil:     "f32.ceil",
	OpcodeF32Floor:    "f32.floor",
	OpcodeF32Trunc:    "f32.trunc",
	OpcodeF32Nearest:  "f32.nearest",
	OpcodeF32Sqrt:     "f32.sqrt",
	OpcodeF32Add:      "f32.add",
	OpcodeF32Sub:      "f32.sub",
	OpcodeF32Mul:      "f32.mul",
	OpcodeF32Div:      "f32.div",
	OpcodeF32Min:      "f32.min",
	OpcodeF32Max:      "f32.max",
	OpcodeF32Copysign: "f32.copysign",
	OpcodeF64Abs:      "f64.abs",
	OpcodeF64Neg:      "f64.neg",
	OpcodeF64Ceil:     "f64.ceil",
	OpcodeF64Floor:    "f64.floor",
	OpcodeF64Trunc:    "f64.trunc",
	OpcodeF64Nearest:  "f64.nearest",
	OpcodeF64Sqrt:     "f64.sqrt",
	OpcodeF64Add:      "f64.add",
	OpcodeF64Sub:      "f64.sub",
	OpcodeF64Mul:      "f64.mul",
	OpcodeF64Div:      "f64.div",
	OpcodeF64Min:      "f64.min",
	OpcodeF64Max:      "f64.max",
	OpcodeF64Copysign: "f64.copysign",

	OpcodeI32WrapI64:        "i32.wrap_i64",
	OpcodeI32TruncF32S:      "i32.trunc_f32_s",
	OpcodeI32TruncF32U:      "i32.trunc_f32_u",
	OpcodeI32TruncF64S:      "i32.trunc_f64_s",
	OpcodeI32TruncF64U:      "i32.trunc_f64_u",
	OpcodeI64ExtendI32S:     "i64.extend_i32_s",
	OpcodeI64ExtendI32U:     "i64.extend_i32_u",
	OpcodeI64TruncF32S:      "i64.trunc_f32_s",
	OpcodeI64TruncF32U:      "i64.trunc_f32_u",
	OpcodeI64TruncF64S:      "i64.trunc_f64_s",
	OpcodeI64TruncF64U:      "i64.trunc_f64_u",
	OpcodeF32ConvertI32S:    "f32.convert_i32_s",
	OpcodeF32ConvertI32U:    "f32.convert_i32_u",
	OpcodeF32ConvertI64S:    "f32.convert_i64_s",
	OpcodeF32ConvertI64U:    "f32.convert_i64_u",
	OpcodeF32DemoteF64:      "f32.demote_f64",
	OpcodeF64ConvertI32S:    "f64.convert_i32_s",
	OpcodeF64ConvertI32U:    "f64.convert_i32_u",
	OpcodeF64ConvertI64S:    "f64.convert_i64_s",
	OpcodeF64ConvertI64U:    "f64.convert_i64_u",
	OpcodeF64PromoteF32:     "f64.promote_f32",
	OpcodeI32ReinterpretF32: "i32.reinterpret_f32",
	OpcodeI64ReinterpretF64: "i64.reinterpret_f64",
	OpcodeF32ReinterpretI32: "f32.reinterpret_i32",
	OpcodeF64ReinterpretI64: "f64.reinterpret_i64",
	OpcodeI32Extend8S:       "i32.extend8_s",
	OpcodeI32Extend16S:      "i32.extend16_s",
	OpcodeI64Extend8S:       "i64.extend8_s",
	OpcodeI64Extend16S:      "i64.extend16_s",
	OpcodeI64Extend32S:      "i64.extend32_s",

	OpcodeI32TruncSatF32S: "i32.trunc_sat_f32_s",
	OpcodeI32TruncSatF32U: "i32.trunc_sat_f32_u",
	OpcodeI32TruncSatF64S: "i32.trunc_sat_f64_s",
	OpcodeI32TruncSatF64U: "i32.trunc_sat_f64_u",
	OpcodeI64TruncSatF32S: "i64.trunc_sat_f32_s",
	OpcodeI64TruncSatF32U: "i64.trunc_sat_f32_u",
	OpcodeI64TruncSatF64S: "i64.trunc_sat_f64_s",
	OpcodeI64TruncSatF64U: "i64.trunc_sat_f64_u",
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if int(o) < len(opcodeNames) && opcodeNames[o] != "" {
		return opcodeNames[o]
	}
	return fmt.Sprintf("opcode(%#x)", uint16(o))
}

// Instruction is one lowered VM instruction: a discriminator plus three
// operand slots. Register operands are signed frame-relative stack offsets;
// negative offsets address the caller's return slots.
//
// Field use by opcode group:
//
//	move            Rd ← R1
//	select          Rd ← R1 != 0 ? R2 : R3
//	unary op        Rd ← op(R1)
//	binary op       Rd ← op(R1, R2)
//	const           Rd ← Const
//	global.get/set  Rd ← globals[Index] / globals[Index] ← R1
//	load            Rd ← memory[R1.u32 + Index]
//	store           memory[Rd.u32 + Index] ← R1
//	jump / jump_if  pc ← Target (block id before freeze), cond in R1
//	jump_table      pc ← Table[R1.u32]
//	static_call     frame at Rd, callee Fn, Index = return count
//	dynamic_call    frame at Rd, element index in R1, return count in R2,
//	                table Index, Const = expected type index
type Instruction struct {
	Opcode Opcode

	// Rd, R1, R2, R3 are signed stack offsets relative to the frame pointer.
	Rd, R1, R2, R3 int16

	// Index is an unsigned immediate: global index, table index, static
	// memory offset, or a call's return count.
	Index uint32

	// Target is a jump operand: a block id while lowering, an absolute code
	// offset within the same function after freeze.
	Target int32

	// Const is the constant payload of a load-const, or the expected type
	// index of a dynamic call.
	Const Value

	// Fn is the resolved callee of a static call.
	Fn *Function

	// Table is the jump table of a jump_table instruction.
	Table *JumpTable
}

// String renders the instruction in a register-transfer form for debugging.
func (c *Instruction) String() string {
	switch c.Opcode {
	case OpcodeUnreachable, OpcodeNop, OpcodeReturn, OpcodeExit:
		return c.Opcode.String()
	case OpcodeMove:
		return fmt.Sprintf("move stack[%d] = stack[%d]", c.Rd, c.R1)
	case OpcodeSelect:
		return fmt.Sprintf("select stack[%d] = stack[%d] ? stack[%d] : stack[%d]", c.Rd, c.R1, c.R2, c.R3)
	case OpcodeJump:
		return fmt.Sprintf("jump %d", c.Target)
	case OpcodeJumpIf:
		return fmt.Sprintf("jump %d if stack[%d]", c.Target, c.R1)
	case OpcodeJumpTable:
		var cases []string
		for _, t := range c.Table.Targets {
			cases = append(cases, fmt.Sprintf("%d", t.Addr))
		}
		return fmt.Sprintf("jump_table [%s] default %d on stack[%d]",
			strings.Join(cases, " "), c.Table.Default.Addr, c.R1)
	case OpcodeStaticCall:
		return fmt.Sprintf("static_call base=%d returns=%d %s", c.Rd, c.Index, c.Fn.DebugName())
	case OpcodeDynamicCall:
		return fmt.Sprintf("dynamic_call base=%d returns=%d table=%d index=stack[%d]",
			c.Rd, c.R2, c.Index, c.R1)
	case OpcodeGlobalGet:
		return fmt.Sprintf("global.get stack[%d] = global[%d]", c.Rd, c.Index)
	case OpcodeGlobalSet:
		return fmt.Sprintf("global.set global[%d] = stack[%d]", c.Index, c.R1)
	case OpcodeLoadConstI32:
		return fmt.Sprintf("i32.const stack[%d] = %d", c.Rd, AsI32(c.Const))
	case OpcodeLoadConstI64:
		return fmt.Sprintf("i64.const stack[%d] = %d", c.Rd, AsI64(c.Const))
	case OpcodeLoadConstF32:
		return fmt.Sprintf("f32.const stack[%d] = %f", c.Rd, AsF32(c.Const))
	case OpcodeLoadConstF64:
		return fmt.Sprintf("f64.const stack[%d] = %g", c.Rd, AsF64(c.Const))
	case OpcodeMemorySize:
		return fmt.Sprintf("memory.size stack[%d]", c.Rd)
	case OpcodeMemoryGrow:
		return fmt.Sprintf("memory.grow stack[%d] = grow(stack[%d])", c.Rd, c.R1)
	}
	if c.Opcode >= OpcodeI32Load && c.Opcode <= OpcodeI64Load32U {
		return fmt.Sprintf("%s stack[%d] = memory[stack[%d]+%d]", c.Opcode, c.Rd, c.R1, c.Index)
	}
	if c.Opcode >= OpcodeI32Store && c.Opcode <= OpcodeI64Store32 {
		return fmt.Sprintf("%s memory[stack[%d]+%d] = stack[%d]", c.Opcode, c.Rd, c.Index, c.R1)
	}
	if c.R2 != 0 || c.Opcode.isBinary() {
		return fmt.Sprintf("%s stack[%d] = stack[%d], stack[%d]", c.Opcode, c.Rd, c.R1, c.R2)
	}
	return fmt.Sprintf("%s stack[%d] = stack[%d]", c.Opcode, c.Rd, c.R1)
}

func (o Opcode) isBinary() bool {
	switch {
	case o >= OpcodeI32Eq && o <= OpcodeF64Ge && o != OpcodeI64Eqz:
		return true
	case o >= OpcodeI32Add && o <= OpcodeI32Rotr:
		return true
	case o >= OpcodeI64Add && o <= OpcodeI64Rotr:
		return true
	case o >= OpcodeF32Add && o <= OpcodeF32Copysign:
		return true
	case o >= OpcodeF64Add && o <= OpcodeF64Copysign:
		return true
	}
	return false
}

// JumpTarget is one destination of a branch: the block id and label direction
// while lowering, the absolute code offset after freeze.
type JumpTarget struct {
	// Block is the target block id during lowering.
	Block int32
	// Loop is true when the target label is a loop head, so the branch lands
	// at the block's start rather than its continuation.
	Loop bool
	// Addr is the resolved code offset. Valid only after freeze.
	Addr int32
}

// JumpTable is the destination vector of a br_table. Entries are bounds
// checked against the selector; out-of-range selectors take Default.
type JumpTable struct {
	Targets []JumpTarget
	Default JumpTarget
}

// DumpFunction renders code to a writer-friendly string, one instruction per
// line, in the same register-transfer form as Instruction.String.
func DumpFunction(code []Instruction) string {
	var sb strings.Builder
	for i := range code {
		fmt.Fprintf(&sb, "[%03d] %s\n", i, code[i].String())
	}
	return sb.String()
}
