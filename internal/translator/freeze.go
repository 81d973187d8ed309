package translator

import (
	"fmt"
	"math"

	"github.com/rewasm/rewasm/internal/wasm"
)

// finalTarget resolves a jump operand to the block whose start the jump lands
// at: the label itself for loop heads and direct jumps, the label's
// continuation for block-tail exits.
func (c *compiler) finalTarget(blockID int32, dir uint32) int32 {
	if dir == jumpToContinuation {
		return c.blocks[blockID].next
	}
	return blockID
}

// freeze collapses the block list into the flat immutable code array:
//
//  1. elide each block-final jump that would land on the next block
//  2. assign start offsets by prefix sum of block sizes
//  3. copy block code into place
//  4. rewrite every jump operand from block id to absolute code offset
func (c *compiler) freeze() error {
	elided := make([]bool, len(c.blocks))
	total := 0
	for i, b := range c.blocks {
		size := len(b.code)
		if size > 0 && i+1 < len(c.blocks) {
			if last := &b.code[size-1]; last.Opcode == wasm.OpcodeJump {
				if c.finalTarget(last.Target, last.Index) == c.blocks[i+1].id {
					elided[i] = true
					size--
				}
			}
		}
		total += size
	}

	if total > math.MaxInt32 {
		return fmt.Errorf("function too large: %d instructions", total)
	}

	code := make([]wasm.Instruction, 0, total)
	for i, b := range c.blocks {
		b.start = int32(len(code))
		n := len(b.code)
		if elided[i] {
			n--
		}
		code = append(code, b.code[:n]...)
		b.end = int32(len(code))
	}

	for i := range code {
		inst := &code[i]
		switch inst.Opcode {
		case wasm.OpcodeJump, wasm.OpcodeJumpIf:
			inst.Target = c.blocks[c.finalTarget(inst.Target, inst.Index)].start
			inst.Index = 0
		case wasm.OpcodeJumpTable:
			for j := range inst.Table.Targets {
				t := &inst.Table.Targets[j]
				t.Addr = c.resolveTableTarget(*t)
			}
			inst.Table.Default.Addr = c.resolveTableTarget(inst.Table.Default)
		}
	}

	c.fn.Code = code
	c.fn.StackHigh = uint32(c.stackHigh)

	// The block list and operand-stack scratch are no longer needed.
	c.blocks = nil
	c.operands = nil
	c.frames = nil
	return nil
}

func (c *compiler) resolveTableTarget(t wasm.JumpTarget) int32 {
	if t.Loop {
		return c.blocks[t.Block].start
	}
	return c.blocks[c.blocks[t.Block].next].start
}
