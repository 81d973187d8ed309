package rewasm

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rewasm/rewasm/api"
	"github.com/rewasm/rewasm/internal/engine/interpreter"
	"github.com/rewasm/rewasm/internal/translator"
	"github.com/rewasm/rewasm/internal/wasm"
	"github.com/rewasm/rewasm/internal/wasm/binary"
)

// CompileModule parses the binary, builds the index spaces, lowers every
// function body, then evaluates the initializer functions: globals first,
// data and element segments next, the start function last.
func (r *Runtime) CompileModule(bin []byte) (*CompiledModule, error) {
	mod, err := binary.DecodeModule(bin)
	if err != nil {
		return nil, err
	}

	if err := buildIndexSpaces(mod); err != nil {
		return nil, err
	}

	r.log.Debug("decoded module",
		zap.Int("types", len(mod.Types)),
		zap.Int("functions", len(mod.Functions)),
		zap.Int("globals", len(mod.Globals)),
		zap.Int("tables", len(mod.Tables)),
		zap.Bool("memory", mod.Memory != nil))

	// Lower every function body. Callees are resolvable by pointer even when
	// their own body is not translated yet.
	total := 0
	for i, code := range mod.CodeSection {
		fn := mod.Functions[int(mod.ImportedFunctionCount)+i]
		if err := translator.CompileFunction(mod, fn, code); err != nil {
			return nil, err
		}
		total += len(fn.Code)
		if ce := r.log.Check(zapcore.DebugLevel, "translated function"); ce != nil {
			ce.Write(
				zap.String("func", fn.DebugName()),
				zap.String("type", fn.Type.String()),
				zap.String("code", wasm.DumpFunction(fn.Code)))
		}
	}
	r.log.Debug("translated module", zap.Int("instructions", total))

	if err := r.initialize(mod); err != nil {
		return nil, err
	}

	// The undecoded section payloads are no longer needed.
	mod.CodeSection = nil
	mod.GlobalSection = nil
	mod.DataSection = nil
	mod.ElementSection = nil

	return &CompiledModule{mod: mod}, nil
}

// buildIndexSpaces populates the runtime index spaces from the decoded
// sections: imports first in each space, then the module's own declarations.
// Imports are never bound; imported functions trap when called, imported
// tables, memories and globals are instantiated empty.
func buildIndexSpaces(mod *wasm.Module) error {
	for _, imp := range mod.ImportSection {
		switch imp.Kind {
		case api.ExternTypeFunc:
			if int(imp.DescFunc) >= len(mod.Types) {
				return fmt.Errorf("import %s.%s: invalid type index %d", imp.Module, imp.Name, imp.DescFunc)
			}
			mod.Functions = append(mod.Functions, &wasm.Function{
				Type:     mod.Types[imp.DescFunc],
				Idx:      uint32(len(mod.Functions)),
				Imported: true,
			})
			mod.ImportedFunctionCount++
		case api.ExternTypeTable:
			mod.Tables = append(mod.Tables, wasm.NewTableInstance(imp.DescTable.Min, tableCap(imp.DescTable)))
		case api.ExternTypeMemory:
			if mod.Memory != nil {
				return fmt.Errorf("at most one memory allowed in module")
			}
			mod.Memory = wasm.NewMemoryInstance(imp.DescMem.Min, memoryCap(imp.DescMem))
		case api.ExternTypeGlobal:
			mod.Globals = append(mod.Globals, 0)
			mod.GlobalTypes = append(mod.GlobalTypes, *imp.DescGlobal)
			mod.ImportedGlobalCount++
		}
	}

	for i, typeIdx := range mod.FunctionSection {
		if int(typeIdx) >= len(mod.Types) {
			return fmt.Errorf("function[%d]: invalid type index %d", i, typeIdx)
		}
		mod.Functions = append(mod.Functions, &wasm.Function{
			Type: mod.Types[typeIdx],
			Idx:  uint32(len(mod.Functions)),
		})
	}

	for _, t := range mod.TableSection {
		mod.Tables = append(mod.Tables, wasm.NewTableInstance(t.Min, tableCap(t)))
	}

	if mod.MemorySection != nil {
		if mod.Memory != nil {
			return fmt.Errorf("at most one memory allowed in module")
		}
		mod.Memory = wasm.NewMemoryInstance(mod.MemorySection.Min, memoryCap(mod.MemorySection))
	}

	for _, g := range mod.GlobalSection {
		mod.Globals = append(mod.Globals, 0)
		mod.GlobalTypes = append(mod.GlobalTypes, g.Type)
	}

	// Attach export names to functions so the entry point is locatable by
	// name.
	for _, exp := range mod.Exports {
		if exp.Kind == api.ExternTypeFunc {
			if int(exp.Index) >= len(mod.Functions) {
				return fmt.Errorf("export %q: invalid function index %d", exp.Name, exp.Index)
			}
			mod.Functions[exp.Index].Name = exp.Name
		}
	}

	if mod.StartFunction != nil && int(*mod.StartFunction) >= len(mod.Functions) {
		return fmt.Errorf("start section: invalid function index %d", *mod.StartFunction)
	}
	return nil
}

func tableCap(t *wasm.TableLimits) uint32 {
	if t.HasMax {
		return t.Max
	}
	return t.Min
}

func memoryCap(m *wasm.MemoryLimits) uint32 {
	if m.HasMax {
		return m.Max
	}
	return wasm.MemoryLimitPages
}

// initialize runs the module's initializer functions: the accumulated global
// function, the data and element segment offsets, then the start function.
func (r *Runtime) initialize(mod *wasm.Module) error {
	if len(mod.GlobalSection) > 0 {
		fn, err := translator.CompileGlobalFunction(mod)
		if err != nil {
			return err
		}
		mod.GlobalFunc = fn
		if err := r.evalInitializer(mod, fn); err != nil {
			return fmt.Errorf("initialize globals: %w", err)
		}
	}

	for i, seg := range mod.DataSection {
		var offset uint32
		if !seg.Passive {
			v, err := r.evalConstExpr(mod, wasm.ValueTypeI32, seg.OffsetExpr)
			if err != nil {
				return fmt.Errorf("data[%d] offset: %w", i, err)
			}
			offset = wasm.AsU32(v)
		}
		if mod.Memory == nil {
			return fmt.Errorf("data[%d]: module has no memory", i)
		}
		if !mod.Memory.Write(offset, seg.Init) {
			return fmt.Errorf("data[%d]: out of bounds memory access at %d", i, offset)
		}
	}

	for i, seg := range mod.ElementSection {
		if int(seg.TableIndex) >= len(mod.Tables) {
			return fmt.Errorf("element[%d]: invalid table index %d", i, seg.TableIndex)
		}
		table := mod.Tables[seg.TableIndex]
		var offset uint32
		if seg.OffsetExpr != nil {
			v, err := r.evalConstExpr(mod, wasm.ValueTypeI32, seg.OffsetExpr)
			if err != nil {
				return fmt.Errorf("element[%d] offset: %w", i, err)
			}
			offset = wasm.AsU32(v)
		}
		if int(offset)+len(seg.FuncIdxs) > len(table.References) {
			return fmt.Errorf("element[%d]: out of bounds table access at %d", i, offset)
		}
		for j, funcIdx := range seg.FuncIdxs {
			if int(funcIdx) >= len(mod.Functions) {
				return fmt.Errorf("element[%d]: invalid function index %d", i, funcIdx)
			}
			table.References[int(offset)+j] = mod.Functions[funcIdx]
		}
	}

	if mod.StartFunction != nil {
		fn := mod.Functions[*mod.StartFunction]
		stack := make([]uint64, int(fn.StackHigh)+len(fn.Type.Results)+2)
		if err := interpreter.EvalFunction(mod, fn, stack, len(fn.Type.Results)); err != nil {
			return fmt.Errorf("start function: %w", err)
		}
	}
	return nil
}

// evalInitializer runs a synthetic function (exit terminated, no results)
// against a scratch stack.
func (r *Runtime) evalInitializer(mod *wasm.Module, fn *wasm.Function) error {
	stack := make([]uint64, int(fn.StackHigh)+2)
	return interpreter.EvalFunction(mod, fn, stack, 0)
}

// evalConstExpr compiles one initializer expression, runs it and reads the
// produced value from the slot below the scratch frame pointer.
func (r *Runtime) evalConstExpr(mod *wasm.Module, resultType wasm.ValueType, expr *wasm.ConstantExpression) (uint64, error) {
	fn, err := translator.CompileConstantExpression(mod, resultType, expr)
	if err != nil {
		return 0, err
	}
	stack := make([]uint64, int(fn.StackHigh)+3)
	if err := interpreter.EvalFunction(mod, fn, stack, 1); err != nil {
		return 0, err
	}
	return stack[0], nil
}
