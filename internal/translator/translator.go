// Package translator lowers Wasm stack-machine bytecode into the linear
// register form executed by the interpreter. Each function body is lowered
// into a list of basic blocks which freeze collapses into a flat instruction
// array with resolved jump offsets.
package translator

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/rewasm/rewasm/internal/leb128"
	"github.com/rewasm/rewasm/internal/wasm"
)

// compiler holds the mutable state of one function under translation: the
// block list, the simulated operand stack, and the cursor for the next free
// register slot.
type compiler struct {
	mod *wasm.Module
	fn  *wasm.Function

	blocks []*block
	cur    int32

	// operands is the simulated Wasm operand stack holding register slots.
	operands []int16

	// stackTop is the next free register slot. Consumers pop slots,
	// producers allocate new ones; no register reuse is attempted.
	stackTop  int16
	stackHigh int16

	frames []*controlFrame

	body *bytes.Reader
}

// CompileFunction lowers one code-section entry into fn.Code. fn.Type must be
// set; fn.Locals, fn.StackHigh and fn.Code are produced here.
func CompileFunction(mod *wasm.Module, fn *wasm.Function, code *wasm.Code) error {
	fn.Locals = uint32(len(code.LocalTypes))

	c, err := newCompiler(mod, fn, code.Body)
	if err != nil {
		return err
	}

	// Locals start zeroed regardless of what a previous frame left in the
	// slab.
	localBase := int16(wasm.FunctionCallOffset + len(fn.Type.Params))
	for i := 0; i < len(code.LocalTypes); i++ {
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeLoadConstI64, Rd: localBase + int16(i)})
	}

	if err := c.lowerBody(); err != nil {
		return fmt.Errorf("%s: %w", fn.DebugName(), err)
	}
	return c.freeze()
}

// CompileConstantExpression compiles one initializer expression into a
// stand-alone function producing a single value. The caller evaluates it
// against a scratch stack and reads the result from the slot below the frame
// pointer.
func CompileConstantExpression(mod *wasm.Module, resultType wasm.ValueType, expr *wasm.ConstantExpression) (*wasm.Function, error) {
	fn := &wasm.Function{
		Type: &wasm.FunctionType{Results: []wasm.ValueType{resultType}},
	}
	c, err := newCompiler(mod, fn, expr.Body)
	if err != nil {
		return nil, err
	}
	if err := c.lowerExpr(); err != nil {
		return nil, fmt.Errorf("constant expression: %w", err)
	}

	r := c.popOperand()
	c.emit(wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: -1, R1: r})
	c.emit(wasm.Instruction{Opcode: wasm.OpcodeExit})
	if err := c.freeze(); err != nil {
		return nil, err
	}
	return fn, nil
}

// CompileGlobalFunction accumulates every global initializer into the
// module's synthetic global function: one global.set per global, a single
// exit at the end. It runs once after load to populate Globals.
func CompileGlobalFunction(mod *wasm.Module) (*wasm.Function, error) {
	fn := &wasm.Function{
		Name: "__global__",
		Type: &wasm.FunctionType{},
	}
	c, err := newCompiler(mod, fn, nil)
	if err != nil {
		return nil, err
	}
	for i, g := range mod.GlobalSection {
		c.body = bytes.NewReader(g.Init.Body)
		if err := c.lowerExpr(); err != nil {
			return nil, fmt.Errorf("global[%d] initializer: %w", i, err)
		}
		v := c.popOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeGlobalSet, Index: mod.ImportedGlobalCount + uint32(i), R1: v})
	}
	c.emit(wasm.Instruction{Opcode: wasm.OpcodeExit})
	if err := c.freeze(); err != nil {
		return nil, err
	}
	return fn, nil
}

func newCompiler(mod *wasm.Module, fn *wasm.Function, body []byte) (*compiler, error) {
	frameBase := wasm.FunctionCallOffset + len(fn.Type.Params) + int(fn.Locals)
	if frameBase > math.MaxInt16 {
		return nil, fmt.Errorf("function frame too large: %d slots", frameBase)
	}
	c := &compiler{
		mod:      mod,
		fn:       fn,
		cur:      0,
		stackTop: int16(frameBase),
		body:     bytes.NewReader(body),
	}
	c.stackHigh = c.stackTop
	c.blocks = []*block{{id: 0, parent: noBlock, scope: 0, next: noBlock}}
	c.frames = []*controlFrame{{kind: controlKindFunction, body: 0, cont: noBlock}}
	return c, nil
}

func (c *compiler) current() *block { return c.blocks[c.cur] }

func (c *compiler) newBlock(scope, parent, next int32, loop bool) *block {
	b := &block{
		id:     int32(len(c.blocks)),
		scope:  scope,
		parent: parent,
		next:   next,
		loop:   loop,
	}
	c.blocks = append(c.blocks, b)
	return b
}

// emit appends one instruction to the current block unless the block already
// ended with an unconditional transfer.
func (c *compiler) emit(inst wasm.Instruction) {
	b := c.current()
	if b.terminated {
		return
	}
	b.code = append(b.code, inst)
}

// terminate marks the current block dead after an unconditional transfer.
func (c *compiler) terminate() { c.current().terminated = true }

// allocReg reserves the next free register slot.
func (c *compiler) allocReg() int16 {
	r := c.stackTop
	c.stackTop++
	if c.stackTop > c.stackHigh {
		c.stackHigh = c.stackTop
	}
	return r
}

func (c *compiler) noteHigh(slot int16) {
	if slot >= c.stackHigh {
		c.stackHigh = slot + 1
	}
}

func (c *compiler) pushOperand() int16 {
	r := c.allocReg()
	c.operands = append(c.operands, r)
	return r
}

func (c *compiler) pushOperandReg(r int16) {
	c.operands = append(c.operands, r)
}

// popOperand pops the top register slot. In dead code the operand stack may
// legitimately underflow; a zero slot keeps lowering going until the block's
// end since nothing emitted there survives.
func (c *compiler) popOperand() int16 {
	if len(c.operands) == 0 {
		return 0
	}
	r := c.operands[len(c.operands)-1]
	c.operands = c.operands[:len(c.operands)-1]
	return r
}

func (c *compiler) peekOperand(fromTop int) int16 {
	idx := len(c.operands) - 1 - fromTop
	if idx < 0 {
		return 0
	}
	return c.operands[idx]
}

// blockResults resolves a blocktype into its result value types.
func (c *compiler) blockResults(r *bytes.Reader) ([]wasm.ValueType, error) {
	raw, _, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return nil, fmt.Errorf("read block type: %w", err)
	}
	switch raw {
	case -64: // 0x40 in sleb128
		return nil, nil
	case -1:
		return []wasm.ValueType{wasm.ValueTypeI32}, nil
	case -2:
		return []wasm.ValueType{wasm.ValueTypeI64}, nil
	case -3:
		return []wasm.ValueType{wasm.ValueTypeF32}, nil
	case -4:
		return []wasm.ValueType{wasm.ValueTypeF64}, nil
	}
	if raw < 0 || raw >= int64(len(c.mod.Types)) {
		return nil, fmt.Errorf("invalid block type index: %d", raw)
	}
	t := c.mod.Types[raw]
	if len(t.Params) != 0 {
		return nil, fmt.Errorf("block parameters are not supported")
	}
	return t.Results, nil
}

// lowerExpr lowers a bare instruction sequence (an initializer expression)
// with no implicit function frame: it stops when the reader is exhausted.
func (c *compiler) lowerExpr() error {
	for c.body.Len() > 0 {
		op, err := c.body.ReadByte()
		if err != nil {
			return err
		}
		if err := c.lowerInstruction(op); err != nil {
			return err
		}
	}
	return nil
}

// lowerBody lowers a function body: instructions until the end opcode that
// closes the outermost (function-level) frame.
func (c *compiler) lowerBody() error {
	for len(c.frames) > 0 {
		op, err := c.body.ReadByte()
		if err != nil {
			return fmt.Errorf("truncated body: %w", err)
		}
		if err := c.lowerInstruction(op); err != nil {
			return err
		}
	}
	if c.body.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after function end", c.body.Len())
	}
	return nil
}

func (c *compiler) lowerInstruction(op byte) error {
	switch op {
	case 0x00: // unreachable
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeUnreachable})
		c.terminate()
	case 0x01: // nop
	case 0x02, 0x03: // block, loop
		return c.lowerBlock(op == 0x03)
	case 0x04: // if
		return c.lowerIf()
	case 0x05: // else
		return c.lowerElse()
	case 0x0b: // end
		return c.lowerEnd()
	case 0x0c: // br
		l, _, err := leb128.DecodeUint32(c.body)
		if err != nil {
			return fmt.Errorf("read br label: %w", err)
		}
		c.lowerBr(l)
	case 0x0d: // br_if
		l, _, err := leb128.DecodeUint32(c.body)
		if err != nil {
			return fmt.Errorf("read br_if label: %w", err)
		}
		c.lowerBrIf(l)
	case 0x0e: // br_table
		return c.lowerBrTable()
	case 0x0f: // return
		c.lowerReturn()
	case 0x10: // call
		funcIdx, _, err := leb128.DecodeUint32(c.body)
		if err != nil {
			return fmt.Errorf("read call target: %w", err)
		}
		return c.lowerCall(funcIdx)
	case 0x11: // call_indirect
		return c.lowerCallIndirect()
	case 0x1a: // drop
		c.popOperand()
	case 0x1b: // select
		cond := c.popOperand()
		b := c.popOperand()
		a := c.popOperand()
		r := c.pushOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeSelect, Rd: r, R1: cond, R2: a, R3: b})
	case 0x20: // local.get
		idx, _, err := leb128.DecodeUint32(c.body)
		if err != nil {
			return fmt.Errorf("read local index: %w", err)
		}
		r := c.pushOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: r, R1: c.localSlot(idx)})
	case 0x21: // local.set
		idx, _, err := leb128.DecodeUint32(c.body)
		if err != nil {
			return fmt.Errorf("read local index: %w", err)
		}
		a := c.popOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: c.localSlot(idx), R1: a})
	case 0x22: // local.tee
		idx, _, err := leb128.DecodeUint32(c.body)
		if err != nil {
			return fmt.Errorf("read local index: %w", err)
		}
		a := c.peekOperand(0)
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: c.localSlot(idx), R1: a})
	case 0x23: // global.get
		idx, _, err := leb128.DecodeUint32(c.body)
		if err != nil {
			return fmt.Errorf("read global index: %w", err)
		}
		r := c.pushOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeGlobalGet, Rd: r, Index: idx})
	case 0x24: // global.set
		idx, _, err := leb128.DecodeUint32(c.body)
		if err != nil {
			return fmt.Errorf("read global index: %w", err)
		}
		a := c.popOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeGlobalSet, Index: idx, R1: a})
	case 0x3f: // memory.size
		if err := c.expectZeroByte("memory.size"); err != nil {
			return err
		}
		r := c.pushOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeMemorySize, Rd: r})
	case 0x40: // memory.grow
		if err := c.expectZeroByte("memory.grow"); err != nil {
			return err
		}
		n := c.popOperand()
		r := c.pushOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeMemoryGrow, Rd: r, R1: n})
	case 0x41: // i32.const
		v, _, err := leb128.DecodeInt32(c.body)
		if err != nil {
			return fmt.Errorf("read i32.const: %w", err)
		}
		r := c.pushOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeLoadConstI32, Rd: r, Const: wasm.ValueFromI32(v)})
	case 0x42: // i64.const
		v, _, err := leb128.DecodeInt64(c.body)
		if err != nil {
			return fmt.Errorf("read i64.const: %w", err)
		}
		r := c.pushOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeLoadConstI64, Rd: r, Const: wasm.ValueFromI64(v)})
	case 0x43: // f32.const
		v, err := c.readF32()
		if err != nil {
			return fmt.Errorf("read f32.const: %w", err)
		}
		r := c.pushOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeLoadConstF32, Rd: r, Const: wasm.ValueFromU32(v)})
	case 0x44: // f64.const
		v, err := c.readF64()
		if err != nil {
			return fmt.Errorf("read f64.const: %w", err)
		}
		r := c.pushOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeLoadConstF64, Rd: r, Const: wasm.Value(v)})
	case 0xfc:
		return c.lowerMiscPrefix()
	default:
		switch {
		case op >= 0x28 && op <= 0x35: // loads
			return c.lowerLoad(op)
		case op >= 0x36 && op <= 0x3e: // stores
			return c.lowerStore(op)
		case op >= 0x45 && op <= 0xc4: // numeric ops
			c.lowerNumeric(op)
		default:
			return fmt.Errorf("unknown opcode: %#x", op)
		}
	}
	return nil
}

func (c *compiler) localSlot(idx uint32) int16 {
	return int16(wasm.FunctionCallOffset + idx)
}

func (c *compiler) expectZeroByte(ctx string) error {
	b, err := c.body.ReadByte()
	if err != nil {
		return fmt.Errorf("read %s reserved byte: %w", ctx, err)
	}
	if b != 0 {
		return fmt.Errorf("%s reserved byte must be zero but was %#x", ctx, b)
	}
	return nil
}

func (c *compiler) readF32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.body, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (c *compiler) readF64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(c.body, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (c *compiler) readMemArg() (offset uint32, err error) {
	// The alignment hint is decoded and discarded.
	if _, _, err = leb128.DecodeUint32(c.body); err != nil {
		return 0, fmt.Errorf("read memory align: %w", err)
	}
	if offset, _, err = leb128.DecodeUint32(c.body); err != nil {
		return 0, fmt.Errorf("read memory offset: %w", err)
	}
	return offset, nil
}

func (c *compiler) lowerLoad(op byte) error {
	offset, err := c.readMemArg()
	if err != nil {
		return err
	}
	base := c.popOperand()
	r := c.pushOperand()
	c.emit(wasm.Instruction{
		Opcode: wasm.OpcodeI32Load + wasm.Opcode(op-0x28),
		Rd:     r, R1: base, Index: offset,
	})
	return nil
}

func (c *compiler) lowerStore(op byte) error {
	offset, err := c.readMemArg()
	if err != nil {
		return err
	}
	v := c.popOperand()
	base := c.popOperand()
	c.emit(wasm.Instruction{
		Opcode: wasm.OpcodeI32Load + wasm.Opcode(op-0x28),
		Rd:     base, R1: v, Index: offset,
	})
	return nil
}

// unaryWasmOp reports whether the numeric opcode consumes one operand.
func unaryWasmOp(op byte) bool {
	switch {
	case op == 0x45 || op == 0x50: // i32.eqz, i64.eqz
		return true
	case op >= 0x67 && op <= 0x69: // i32 clz, ctz, popcnt
		return true
	case op >= 0x79 && op <= 0x7b: // i64 clz, ctz, popcnt
		return true
	case op >= 0x8b && op <= 0x91: // f32 abs..sqrt
		return true
	case op >= 0x99 && op <= 0x9f: // f64 abs..sqrt
		return true
	case op >= 0xa7 && op <= 0xc4: // conversions and extensions
		return true
	}
	return false
}

func (c *compiler) lowerNumeric(op byte) {
	vmOp := wasm.OpcodeI32Eqz + wasm.Opcode(op-0x45)
	if unaryWasmOp(op) {
		a := c.popOperand()
		r := c.pushOperand()
		c.emit(wasm.Instruction{Opcode: vmOp, Rd: r, R1: a})
		return
	}
	b := c.popOperand()
	a := c.popOperand()
	r := c.pushOperand()
	c.emit(wasm.Instruction{Opcode: vmOp, Rd: r, R1: a, R2: b})
}

func (c *compiler) lowerMiscPrefix() error {
	sub, _, err := leb128.DecodeUint32(c.body)
	if err != nil {
		return fmt.Errorf("read 0xfc sub-opcode: %w", err)
	}
	if sub > 0x07 {
		return fmt.Errorf("unsupported 0xfc opcode: %d", sub)
	}
	a := c.popOperand()
	r := c.pushOperand()
	c.emit(wasm.Instruction{Opcode: wasm.OpcodeI32TruncSatF32S + wasm.Opcode(sub), Rd: r, R1: a})
	return nil
}

func (c *compiler) lowerCall(funcIdx uint32) error {
	if funcIdx >= uint32(len(c.mod.Functions)) {
		return fmt.Errorf("invalid function index: %d", funcIdx)
	}
	callee := c.mod.Functions[funcIdx]
	c.emitCall(callee.Type, func(base int16, returns int) {
		c.emit(wasm.Instruction{
			Opcode: wasm.OpcodeStaticCall,
			Rd:     base, Fn: callee, Index: uint32(returns),
		})
	})
	return nil
}

func (c *compiler) lowerCallIndirect() error {
	typeIdx, _, err := leb128.DecodeUint32(c.body)
	if err != nil {
		return fmt.Errorf("read call_indirect type index: %w", err)
	}
	tableIdx, _, err := leb128.DecodeUint32(c.body)
	if err != nil {
		return fmt.Errorf("read call_indirect table index: %w", err)
	}
	if typeIdx >= uint32(len(c.mod.Types)) {
		return fmt.Errorf("invalid type index: %d", typeIdx)
	}
	elem := c.popOperand()
	c.emitCall(c.mod.Types[typeIdx], func(base int16, returns int) {
		c.emit(wasm.Instruction{
			Opcode: wasm.OpcodeDynamicCall,
			Rd:     base, R1: elem, R2: int16(returns),
			Index: tableIdx, Const: wasm.Value(typeIdx),
		})
	})
	return nil
}

// emitCall lays out a callee frame: the callee frame pointer sits at
// base+returns so return slots materialize at base..base+returns-1 in this
// frame, the two link words follow, then the arguments.
func (c *compiler) emitCall(t *wasm.FunctionType, emitTransfer func(base int16, returns int)) {
	args, returns := len(t.Params), len(t.Results)
	base := c.stackTop

	for i := args - 1; i >= 0; i-- {
		a := c.popOperand()
		dst := base + int16(returns) + wasm.FunctionCallOffset + int16(i)
		c.noteHigh(dst)
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: dst, R1: a})
	}

	emitTransfer(base, returns)

	for i := 0; i < returns; i++ {
		c.pushOperandReg(c.allocReg())
	}
}
