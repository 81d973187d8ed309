package wasm

import (
	"fmt"

	"github.com/rewasm/rewasm/api"
)

// EntryFunctionName is the export the interpreter executes.
const EntryFunctionName = "_start"

// Export is one entry of the export section.
type Export struct {
	Name string
	Kind api.ExternType
	// Index is the index into the respective index space.
	Index uint32
}

// Module owns everything parsed out of one binary: types, functions, globals,
// tables, the linear memory block, and the synthetic global-initializer
// function. It is created empty, populated section by section, then handed to
// the interpreter.
type Module struct {
	// Types are the declared function signatures. Every Function.Type aliases
	// an entry here.
	Types []*FunctionType

	// Functions is the function index space: imported functions first, then
	// the module's own, in declaration order.
	Functions []*Function

	// ImportedFunctionCount is the number of leading entries of Functions
	// that came from the import section.
	ImportedFunctionCount uint32

	// Globals holds the current value of each global. Each slot is written
	// exactly once by GlobalFunc before execution starts, and thereafter only
	// by global.set.
	Globals     []Value
	GlobalTypes []GlobalType

	// ImportedGlobalCount is the number of leading entries of Globals that
	// came from the import section. Module-declared globals follow them.
	ImportedGlobalCount uint32

	// GlobalFunc is the synthetic function accumulating all global
	// initializer expressions. It runs once after load, before _start.
	GlobalFunc *Function

	// Memory is the single linear memory, nil when the module declares none.
	Memory *MemoryInstance

	// Tables are the funcref tables used by call_indirect.
	Tables []*TableInstance

	// StartFunction is the index from the start section, if present.
	StartFunction *uint32

	// Exports is keyed by export name.
	Exports map[string]*Export

	// The remaining fields are the undecoded section payloads captured by the
	// binary decoder. The loader consumes them to build the runtime state
	// above, then the translator lowers CodeSection into Functions[i].Code.

	// FunctionSection maps each module-local function to its type index.
	FunctionSection []uint32

	// ImportSection is every import entry in declaration order.
	ImportSection []*Import

	// TableSection and MemorySection are the declared limits.
	TableSection  []*TableLimits
	MemorySection *MemoryLimits

	// GlobalSection pairs each global's type with its initializer.
	GlobalSection []*Global

	// CodeSection holds raw function bodies until translation.
	CodeSection []*Code

	// DataSection and ElementSection are applied after globals initialize.
	DataSection    []*DataSegment
	ElementSection []*ElementSegment
}

// EntryFunction locates the exported _start function, or nil when the module
// exports none.
func (m *Module) EntryFunction() *Function {
	if exp, ok := m.Exports[EntryFunctionName]; ok && exp.Kind == api.ExternTypeFunc {
		return m.Functions[exp.Index]
	}
	// Fall back to scanning function names so modules whose export section
	// was rewritten by tooling still resolve.
	for _, f := range m.Functions {
		if f.Name == EntryFunctionName {
			return f
		}
	}
	return nil
}

// TypeOfFunction returns the signature for the given function index.
func (m *Module) TypeOfFunction(funcIdx uint32) (*FunctionType, error) {
	if funcIdx >= uint32(len(m.Functions)) {
		return nil, fmt.Errorf("invalid function index: %d", funcIdx)
	}
	return m.Functions[funcIdx].Type, nil
}

// Close releases module-owned memory. The module must not be evaluated
// afterwards.
func (m *Module) Close() {
	for _, f := range m.Functions {
		f.Code = nil
	}
	if m.GlobalFunc != nil {
		m.GlobalFunc.Code = nil
	}
	if m.Memory != nil {
		m.Memory.Buffer = nil
	}
	m.Tables = nil
	m.Globals = nil
}
