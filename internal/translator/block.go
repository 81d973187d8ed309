package translator

import "github.com/rewasm/rewasm/internal/wasm"

// noBlock marks a missing block reference.
const noBlock int32 = -1

// block is one basic block of a function under translation. Blocks reference
// each other by id rather than by pointer; every cross-reference becomes an
// absolute offset in the flat code array at freeze.
type block struct {
	id int32

	// parent is the label block of the construct enclosing this label, or
	// noBlock at function level. br walks this chain.
	parent int32

	// scope is the nearest label block covering this block's code: the block
	// itself for label (body) blocks, the enclosing label for continuation
	// blocks.
	scope int32

	// next is the continuation block control falls into when the construct
	// completes. Branching to a tail-direction label lands here.
	next int32

	// loop distinguishes the label direction: a branch to a loop head
	// repeats from start, a branch to a block tail exits past next.
	loop bool

	// results are the registers receiving the construct's typed results.
	results []int16

	code []wasm.Instruction

	// start and end are the offsets assigned by freeze.
	start, end int32

	// terminated is set once an unconditional transfer was emitted; further
	// instructions in this block are dead code and are suppressed.
	terminated bool
}

// controlKind classifies the construct that opened a control frame.
type controlKind byte

const (
	controlKindFunction controlKind = iota
	controlKindBlock
	controlKindLoop
	controlKindIf
)

// controlFrame tracks one open block/loop/if while its body is lowered.
type controlFrame struct {
	kind controlKind

	// body is the label block of the construct; els the else branch of an
	// if; cont the continuation.
	body, els, cont int32

	// results mirror block.results of the label block.
	results []int16

	// operandDepth is the operand-stack depth at entry, restored on else and
	// end so branches rejoin with a consistent stack shape.
	operandDepth int

	elseSeen bool
}
