// Package interpreter executes lowered instruction streams against a module
// and a caller-supplied value-stack slab. Dispatch is a scalar switch over the
// opcode; all branch operands were resolved to absolute code offsets at
// freeze, so the hot loop never looks up a label.
package interpreter

import (
	"fmt"
	"math"

	"github.com/rewasm/rewasm/internal/wasm"
	"github.com/rewasm/rewasm/internal/wasmdebug"
	"github.com/rewasm/rewasm/internal/wasmruntime"
)

// callStackCeiling bounds the depth of nested calls independently of the slab
// size, converting runaway recursion into a trap.
const callStackCeiling = 2000

// exitSentinel is the resume address seeded into the outermost frame's link
// word: returning through it ends the dispatch loop.
const exitSentinel = math.MaxUint64

// callEngine holds the state of one execution: the borrowed stack slab plus
// the chain of calling functions, kept aside so a trap can be rendered with a
// full wasm stack trace.
type callEngine struct {
	mod   *wasm.Module
	stack []wasm.Value

	// callers holds the function of every live frame except the current one.
	callers []*wasm.Function

	// fn is the function owning the currently executing code.
	fn *wasm.Function
}

// EvalModule locates the exported _start function and executes it. Arguments
// must already be laid into the initial frame (see Runtime.EvalModule);
// results occupy stack[0..len(results)) when it returns.
func EvalModule(mod *wasm.Module, stack []wasm.Value) error {
	fn := mod.EntryFunction()
	if fn == nil {
		return fmt.Errorf("%s is not exported", wasm.EntryFunctionName)
	}
	return EvalFunction(mod, fn, stack, len(fn.Type.Results))
}

// EvalFunction executes fn with its frame pointer at base. The two link words
// are seeded so that either an exit instruction or a return through the
// outermost frame terminates the loop. Traps surface as errors.
func EvalFunction(mod *wasm.Module, fn *wasm.Function, stack []wasm.Value, base int) (err error) {
	if fn.Code == nil {
		return fmt.Errorf("%s has no code", fn.DebugName())
	}
	if need := base + int(fn.StackHigh); need > len(stack) || base+2 > len(stack) {
		return fmt.Errorf("stack slab too small: need %d slots, have %d", need, len(stack))
	}

	ce := &callEngine{mod: mod, stack: stack, fn: fn}
	defer func() {
		if v := recover(); v != nil {
			builder := wasmdebug.NewErrorBuilder()
			builder.AddFrame(ce.fn.DebugName())
			for i := len(ce.callers) - 1; i >= 0; i-- {
				builder.AddFrame(ce.callers[i].DebugName())
			}
			err = builder.FromRecovered(v)
		}
	}()

	stack[base] = wasm.Value(uint64(base))
	stack[base+1] = wasm.Value(uint64(exitSentinel))
	ce.eval(base)
	return nil
}

// eval runs the dispatch loop until an exit instruction or a return through
// the outermost link word.
func (ce *callEngine) eval(sp int) {
	mod := ce.mod
	stack := ce.stack
	code := ce.fn.Code
	var pc int32

	// get/set resolve signed frame-relative register operands.
	get := func(r int16) wasm.Value { return stack[sp+int(r)] }
	set := func(r int16, v wasm.Value) { stack[sp+int(r)] = v }

	// effectiveAddress folds the dynamic base address and the static offset
	// immediate, trapping on 32-bit overflow.
	effectiveAddress := func(r int16, offset uint32) uint32 {
		ea := uint64(wasm.AsU32(get(r))) + uint64(offset)
		if ea > math.MaxUint32 {
			panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
		}
		return uint32(ea)
	}
	memory := func() *wasm.MemoryInstance {
		// Read afresh on every access: memory.grow swaps the block.
		if mod.Memory == nil {
			panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
		}
		return mod.Memory
	}

	for {
		inst := &code[pc]
		switch inst.Opcode {
		case wasm.OpcodeUnreachable:
			panic(wasmruntime.ErrRuntimeUnreachable)
		case wasm.OpcodeNop:
			pc++
		case wasm.OpcodeMove:
			set(inst.Rd, get(inst.R1))
			pc++
		case wasm.OpcodeSelect:
			if wasm.AsU32(get(inst.R1)) != 0 {
				set(inst.Rd, get(inst.R2))
			} else {
				set(inst.Rd, get(inst.R3))
			}
			pc++
		case wasm.OpcodeJump:
			pc = inst.Target
		case wasm.OpcodeJumpIf:
			if wasm.AsU32(get(inst.R1)) != 0 {
				pc = inst.Target
			} else {
				pc++
			}
		case wasm.OpcodeJumpTable:
			if idx := wasm.AsU32(get(inst.R1)); idx < uint32(len(inst.Table.Targets)) {
				pc = inst.Table.Targets[idx].Addr
			} else {
				pc = inst.Table.Default.Addr
			}
		case wasm.OpcodeExit:
			return
		case wasm.OpcodeReturn:
			resume := stack[sp+1]
			if resume == exitSentinel {
				return
			}
			sp = int(stack[sp])
			pc = int32(resume)
			ce.fn = ce.callers[len(ce.callers)-1]
			ce.callers = ce.callers[:len(ce.callers)-1]
			code = ce.fn.Code
		case wasm.OpcodeStaticCall:
			callee := inst.Fn
			pc = ce.enterFrame(callee, sp, pc, inst.Rd, int(inst.Index))
			sp = sp + int(inst.Rd) + int(inst.Index)
			code = callee.Code
		case wasm.OpcodeDynamicCall:
			// The function pointer is read through the table on every call
			// rather than patched into the instruction, which keeps the code
			// array immutable.
			if int(inst.Index) >= len(mod.Tables) {
				panic(wasmruntime.ErrRuntimeInvalidTableAccess)
			}
			table := mod.Tables[inst.Index]
			idx := wasm.AsU32(get(inst.R1))
			if idx >= uint32(len(table.References)) {
				panic(wasmruntime.ErrRuntimeInvalidTableAccess)
			}
			callee := table.References[idx]
			if callee == nil {
				panic(wasmruntime.ErrRuntimeInvalidTableAccess)
			}
			if expected := mod.Types[uint32(inst.Const)]; !callee.Type.EqualTo(expected) {
				panic(wasmruntime.ErrRuntimeIndirectCallTypeMismatch)
			}
			returns := int(inst.R2)
			pc = ce.enterFrame(callee, sp, pc, inst.Rd, returns)
			sp = sp + int(inst.Rd) + returns
			code = callee.Code

		case wasm.OpcodeGlobalGet:
			set(inst.Rd, mod.Globals[inst.Index])
			pc++
		case wasm.OpcodeGlobalSet:
			mod.Globals[inst.Index] = get(inst.R1)
			pc++

		case wasm.OpcodeLoadConstI32, wasm.OpcodeLoadConstI64,
			wasm.OpcodeLoadConstF32, wasm.OpcodeLoadConstF64:
			set(inst.Rd, inst.Const)
			pc++

		case wasm.OpcodeI32Load, wasm.OpcodeF32Load:
			v, ok := memory().ReadUint32Le(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.ValueFromU32(v))
			pc++
		case wasm.OpcodeI64Load, wasm.OpcodeF64Load:
			v, ok := memory().ReadUint64Le(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.Value(v))
			pc++
		case wasm.OpcodeI32Load8S:
			v, ok := memory().ReadByte(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.ValueFromI32(int32(int8(v))))
			pc++
		case wasm.OpcodeI32Load8U:
			v, ok := memory().ReadByte(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.ValueFromU32(uint32(v)))
			pc++
		case wasm.OpcodeI32Load16S:
			v, ok := memory().ReadUint16Le(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.ValueFromI32(int32(int16(v))))
			pc++
		case wasm.OpcodeI32Load16U:
			v, ok := memory().ReadUint16Le(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.ValueFromU32(uint32(v)))
			pc++
		case wasm.OpcodeI64Load8S:
			v, ok := memory().ReadByte(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.ValueFromI64(int64(int8(v))))
			pc++
		case wasm.OpcodeI64Load8U:
			v, ok := memory().ReadByte(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.Value(uint64(v)))
			pc++
		case wasm.OpcodeI64Load16S:
			v, ok := memory().ReadUint16Le(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.ValueFromI64(int64(int16(v))))
			pc++
		case wasm.OpcodeI64Load16U:
			v, ok := memory().ReadUint16Le(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.Value(uint64(v)))
			pc++
		case wasm.OpcodeI64Load32S:
			v, ok := memory().ReadUint32Le(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.ValueFromI64(int64(int32(v))))
			pc++
		case wasm.OpcodeI64Load32U:
			v, ok := memory().ReadUint32Le(effectiveAddress(inst.R1, inst.Index))
			if !ok {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			set(inst.Rd, wasm.Value(uint64(v)))
			pc++

		case wasm.OpcodeI32Store, wasm.OpcodeF32Store:
			if !memory().WriteUint32Le(effectiveAddress(inst.Rd, inst.Index), wasm.AsU32(get(inst.R1))) {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			pc++
		case wasm.OpcodeI64Store, wasm.OpcodeF64Store:
			if !memory().WriteUint64Le(effectiveAddress(inst.Rd, inst.Index), get(inst.R1)) {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			pc++
		case wasm.OpcodeI32Store8, wasm.OpcodeI64Store8:
			if !memory().WriteByte(effectiveAddress(inst.Rd, inst.Index), byte(get(inst.R1))) {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			pc++
		case wasm.OpcodeI32Store16, wasm.OpcodeI64Store16:
			if !memory().WriteUint16Le(effectiveAddress(inst.Rd, inst.Index), uint16(get(inst.R1))) {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			pc++
		case wasm.OpcodeI64Store32:
			if !memory().WriteUint32Le(effectiveAddress(inst.Rd, inst.Index), wasm.AsU32(get(inst.R1))) {
				panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
			}
			pc++

		case wasm.OpcodeMemorySize:
			set(inst.Rd, wasm.ValueFromU32(memory().PageSize()))
			pc++
		case wasm.OpcodeMemoryGrow:
			result, _ := memory().Grow(wasm.AsU32(get(inst.R1)))
			set(inst.Rd, wasm.ValueFromU32(result))
			pc++

		default:
			pc = ce.evalNumeric(inst, sp, pc)
		}
	}
}

// enterFrame validates the callee frame fits in the slab, writes the two link
// words, and pushes the caller. It returns the callee's starting pc; the
// caller of this method adjusts sp itself.
func (ce *callEngine) enterFrame(callee *wasm.Function, sp int, pc int32, base int16, returns int) int32 {
	if callee.Imported {
		panic(wasmruntime.ErrRuntimeUnresolvedImport)
	}
	if len(ce.callers) >= callStackCeiling {
		panic(wasmruntime.ErrRuntimeStackOverflow)
	}
	newSP := sp + int(base) + returns
	if need := newSP + int(callee.StackHigh); need > len(ce.stack) || newSP+2 > len(ce.stack) {
		panic(wasmruntime.ErrRuntimeStackOverflow)
	}
	ce.stack[newSP] = wasm.Value(uint64(sp))
	ce.stack[newSP+1] = wasm.Value(uint64(pc + 1))
	ce.callers = append(ce.callers, ce.fn)
	ce.fn = callee
	return 0
}
