package wasm

import (
	"strings"

	"github.com/rewasm/rewasm/api"
	"github.com/rewasm/rewasm/internal/wasmdebug"
)

// FunctionCallOffset is the number of link words a frame reserves between the
// frame pointer and the first argument: slot 0 holds the saved caller frame
// pointer, slot 1 the caller resume address.
const FunctionCallOffset = 2

// FunctionType is a possibly empty tuple of parameter and result types, owned
// by Module.Types.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// String implements fmt.Stringer.
func (t *FunctionType) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, p := range t.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(api.ValueTypeName(p))
	}
	sb.WriteString(") -> (")
	for i, r := range t.Results {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(api.ValueTypeName(r))
	}
	sb.WriteByte(')')
	return sb.String()
}

// EqualTo returns true when the two signatures match element-wise.
func (t *FunctionType) EqualTo(other *FunctionType) bool {
	if t == other {
		return true
	}
	if len(t.Params) != len(other.Params) || len(t.Results) != len(other.Results) {
		return false
	}
	for i := range t.Params {
		if t.Params[i] != other.Params[i] {
			return false
		}
	}
	for i := range t.Results {
		if t.Results[i] != other.Results[i] {
			return false
		}
	}
	return true
}

// Function is an immutable, frozen function: flat code with every jump operand
// resolved to an absolute offset within Code.
type Function struct {
	// Type aliases an entry of Module.Types.
	Type *FunctionType

	// Name is the export name, or "" when the function is not exported.
	Name string

	// Idx is the function index, used only for diagnostics.
	Idx uint32

	// Locals is the count of local slots beyond the arguments.
	Locals uint32

	// StackHigh is the high-water frame size observed while lowering:
	// FunctionCallOffset + arguments + locals + operand slots. The
	// interpreter checks it against the remaining slab before entering.
	StackHigh uint32

	// Code is the lowered instruction stream. Nil until frozen, and always
	// nil for imported functions.
	Code []Instruction

	// Imported marks a function parsed from the import section. Calling one
	// traps, as imports are never bound.
	Imported bool
}

// DebugName returns the name used in stack traces.
func (f *Function) DebugName() string {
	return wasmdebug.FuncName(f.Name, f.Idx)
}
