package translator

import (
	"fmt"

	"github.com/rewasm/rewasm/internal/leb128"
	"github.com/rewasm/rewasm/internal/wasm"
)

// Jump instructions carry the target block id in Target until freeze. Index
// distinguishes where the jump lands: jumpToStart transfers to the block's
// first instruction (loop heads and direct jumps), jumpToContinuation to the
// start of the target's continuation block (exiting a block/if label).
const (
	jumpToStart        = 0
	jumpToContinuation = 1
)

func (c *compiler) lowerBlock(isLoop bool) error {
	results, err := c.blockResults(c.body)
	if err != nil {
		return err
	}

	entryScope := c.current().scope

	body := c.newBlock(noBlock, entryScope, noBlock, isLoop)
	body.scope = body.id
	cont := c.newBlock(entryScope, c.blocks[entryScope].parent, noBlock, false)
	body.next = cont.id

	res := make([]int16, len(results))
	for i := range res {
		res[i] = c.allocReg()
	}
	body.results = res

	c.emit(wasm.Instruction{Opcode: wasm.OpcodeJump, Target: body.id, Index: jumpToStart})

	c.frames = append(c.frames, &controlFrame{
		kind:         controlKindBlock,
		body:         body.id,
		cont:         cont.id,
		results:      res,
		operandDepth: len(c.operands),
	})
	if isLoop {
		c.frames[len(c.frames)-1].kind = controlKindLoop
	}
	c.cur = body.id
	return nil
}

func (c *compiler) lowerIf() error {
	results, err := c.blockResults(c.body)
	if err != nil {
		return err
	}

	cond := c.popOperand()
	entryScope := c.current().scope

	then := c.newBlock(noBlock, entryScope, noBlock, false)
	then.scope = then.id
	els := c.newBlock(then.id, entryScope, noBlock, false)
	cont := c.newBlock(entryScope, c.blocks[entryScope].parent, noBlock, false)
	then.next = cont.id
	els.next = cont.id

	res := make([]int16, len(results))
	for i := range res {
		res[i] = c.allocReg()
	}
	then.results = res

	c.emit(wasm.Instruction{Opcode: wasm.OpcodeJumpIf, Target: then.id, Index: jumpToStart, R1: cond})
	c.emit(wasm.Instruction{Opcode: wasm.OpcodeJump, Target: els.id, Index: jumpToStart})

	c.frames = append(c.frames, &controlFrame{
		kind:         controlKindIf,
		body:         then.id,
		els:          els.id,
		cont:         cont.id,
		results:      res,
		operandDepth: len(c.operands),
	})
	c.cur = then.id
	return nil
}

func (c *compiler) lowerElse() error {
	if len(c.frames) == 0 {
		return fmt.Errorf("else without enclosing if")
	}
	frame := c.frames[len(c.frames)-1]
	if frame.kind != controlKindIf || frame.elseSeen {
		return fmt.Errorf("else without enclosing if")
	}

	c.emitResultMoves(frame.results)
	c.emit(wasm.Instruction{Opcode: wasm.OpcodeJump, Target: frame.cont, Index: jumpToStart})

	c.truncateOperands(frame.operandDepth)
	frame.elseSeen = true
	c.cur = frame.els
	return nil
}

func (c *compiler) lowerEnd() error {
	if len(c.frames) == 0 {
		return fmt.Errorf("end without open block")
	}
	frame := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]

	if frame.kind == controlKindFunction {
		c.lowerReturn()
		return nil
	}

	c.emitResultMoves(frame.results)
	c.emit(wasm.Instruction{Opcode: wasm.OpcodeJump, Target: frame.cont, Index: jumpToStart})

	if frame.kind == controlKindIf && !frame.elseSeen {
		// The else branch was absent: it still owns a block, which only
		// forwards to the continuation.
		c.cur = frame.els
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeJump, Target: frame.cont, Index: jumpToStart})
	}

	c.truncateOperands(frame.operandDepth)
	for _, r := range frame.results {
		c.pushOperandReg(r)
	}
	c.cur = frame.cont
	return nil
}

// resolveLabel walks labelIdx steps up the parent chain from the current
// block's scope. Block id 0 is the function-level label: branching to it
// returns from the function.
func (c *compiler) resolveLabel(labelIdx uint32) int32 {
	t := c.current().scope
	for i := uint32(0); i < labelIdx; i++ {
		if t == noBlock {
			return noBlock
		}
		t = c.blocks[t].parent
	}
	return t
}

func (c *compiler) lowerBr(labelIdx uint32) {
	t := c.resolveLabel(labelIdx)
	if t <= 0 {
		c.lowerReturn()
		return
	}
	target := c.blocks[t]
	dir := int32(jumpToContinuation)
	if target.loop {
		dir = jumpToStart
	} else {
		c.emitPeekResultMoves(target.results)
	}
	c.emit(wasm.Instruction{Opcode: wasm.OpcodeJump, Target: t, Index: uint32(dir)})
	c.terminate()
}

func (c *compiler) lowerBrIf(labelIdx uint32) {
	cond := c.popOperand()
	t := c.resolveLabel(labelIdx)
	if t <= 0 {
		// A conditional return: copy the returns eagerly (the slots are only
		// read after the frame pops) and branch to a block holding return.
		rb := c.emitReturnBlock()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeJumpIf, Target: rb, Index: jumpToStart, R1: cond})
		return
	}
	target := c.blocks[t]
	dir := int32(jumpToContinuation)
	if target.loop {
		dir = jumpToStart
	} else {
		c.emitPeekResultMoves(target.results)
	}
	c.emit(wasm.Instruction{Opcode: wasm.OpcodeJumpIf, Target: t, Index: uint32(dir), R1: cond})
}

func (c *compiler) lowerBrTable() error {
	n, _, err := leb128.DecodeUint32(c.body)
	if err != nil {
		return fmt.Errorf("read br_table label count: %w", err)
	}
	labels := make([]uint32, n)
	for i := range labels {
		if labels[i], _, err = leb128.DecodeUint32(c.body); err != nil {
			return fmt.Errorf("read br_table label: %w", err)
		}
	}
	defaultLabel, _, err := leb128.DecodeUint32(c.body)
	if err != nil {
		return fmt.Errorf("read br_table default label: %w", err)
	}

	idx := c.popOperand()

	table := &wasm.JumpTable{Targets: make([]wasm.JumpTarget, n)}
	moved := map[int32]bool{}
	resolve := func(labelIdx uint32) wasm.JumpTarget {
		t := c.resolveLabel(labelIdx)
		if t <= 0 {
			rb := c.emitReturnBlock()
			return wasm.JumpTarget{Block: rb, Loop: true}
		}
		target := c.blocks[t]
		if !target.loop && !moved[t] {
			c.emitPeekResultMoves(target.results)
			moved[t] = true
		}
		return wasm.JumpTarget{Block: t, Loop: target.loop}
	}
	for i, l := range labels {
		table.Targets[i] = resolve(l)
	}
	table.Default = resolve(defaultLabel)

	c.emit(wasm.Instruction{Opcode: wasm.OpcodeJumpTable, Table: table, R1: idx})
	c.terminate()
	return nil
}

func (c *compiler) lowerReturn() {
	returns := len(c.fn.Type.Results)
	for i := 0; i < returns; i++ {
		v := c.popOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: int16(-1 - i), R1: v})
	}
	c.emit(wasm.Instruction{Opcode: wasm.OpcodeReturn})
	c.terminate()
}

// emitReturnBlock copies the function results into the caller's return slots
// without popping, then allocates a block holding a bare return for a
// conditional branch to land in.
func (c *compiler) emitReturnBlock() int32 {
	returns := len(c.fn.Type.Results)
	for i := 0; i < returns; i++ {
		v := c.peekOperand(i)
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: int16(-1 - i), R1: v})
	}
	rb := c.newBlock(c.current().scope, c.blocks[c.current().scope].parent, noBlock, false)
	rb.code = append(rb.code, wasm.Instruction{Opcode: wasm.OpcodeReturn})
	return rb.id
}

// emitResultMoves pops the construct's results into its result registers,
// topmost value last.
func (c *compiler) emitResultMoves(results []int16) {
	for i := len(results) - 1; i >= 0; i-- {
		v := c.popOperand()
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: results[i], R1: v})
	}
}

// emitPeekResultMoves copies the top operands into the target label's result
// registers without popping: a conditional branch that falls through must
// leave the operand stack intact.
func (c *compiler) emitPeekResultMoves(results []int16) {
	for i := range results {
		v := c.peekOperand(len(results) - 1 - i)
		c.emit(wasm.Instruction{Opcode: wasm.OpcodeMove, Rd: results[i], R1: v})
	}
}

func (c *compiler) truncateOperands(depth int) {
	if len(c.operands) > depth {
		c.operands = c.operands[:depth]
	}
}
