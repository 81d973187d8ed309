// Package rewasm is a standalone interpreter for the WebAssembly binary
// format. It parses a module, lowers the stack-machine bytecode into a
// register form, and executes the exported _start function over a shared
// value stack.
package rewasm

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rewasm/rewasm/api"
	"github.com/rewasm/rewasm/internal/engine/interpreter"
	"github.com/rewasm/rewasm/internal/wasm"
)

// FunctionCallOffset is the number of link words between a frame pointer and
// the first argument slot.
const FunctionCallOffset = wasm.FunctionCallOffset

// Runtime loads and evaluates modules. The zero value is not usable; call
// NewRuntime.
type Runtime struct {
	log        *zap.Logger
	stackSlots int
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger routes load-time diagnostics to the given logger. The default
// is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runtime) { r.log = log }
}

// WithStackSlots sets the size, in 64-bit slots, of the value stack allocated
// by Call. The default is 65536 slots (512KiB).
func WithStackSlots(n int) Option {
	return func(r *Runtime) { r.stackSlots = n }
}

func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{log: zap.NewNop(), stackSlots: 1 << 16}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CompiledModule is a loaded, translated, initialized module ready for
// evaluation.
type CompiledModule struct {
	mod *wasm.Module
}

// Close releases the module's memory. The module must not be evaluated
// afterwards.
func (m *CompiledModule) Close() { m.mod.Close() }

// EntryType returns the signature of the exported _start function.
func (m *CompiledModule) EntryType() (params, results []api.ValueType, err error) {
	fn := m.mod.EntryFunction()
	if fn == nil {
		return nil, nil, fmt.Errorf("%s is not exported", wasm.EntryFunctionName)
	}
	return fn.Type.Params, fn.Type.Results, nil
}

// LoadModule reads, parses, translates and initializes the module at path.
func (r *Runtime) LoadModule(path string) (*CompiledModule, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	return r.CompileModule(bin)
}

// EvalModule executes the exported _start function against the caller's
// stack slab. Arguments must already be laid into the initial frame (see
// AddArgument); on a normal return, the results occupy stack[0..n).
func (r *Runtime) EvalModule(m *CompiledModule, stack []uint64) error {
	return interpreter.EvalModule(m.mod, stack)
}

// Call is the convenience wrapper around EvalModule: it allocates the stack
// slab, lays out args, executes _start and returns its results.
func (r *Runtime) Call(m *CompiledModule, args ...uint64) ([]uint64, error) {
	fn := m.mod.EntryFunction()
	if fn == nil {
		return nil, fmt.Errorf("%s is not exported", wasm.EntryFunctionName)
	}
	if len(args) != len(fn.Type.Params) {
		return nil, fmt.Errorf("expected %d params, but passed %d", len(fn.Type.Params), len(args))
	}

	stack := make([]uint64, r.stackSlots)
	base := len(fn.Type.Results)
	for i, arg := range args {
		stack[base+wasm.FunctionCallOffset+i] = arg
	}
	if err := r.EvalModule(m, stack); err != nil {
		return nil, err
	}
	return stack[:len(fn.Type.Results)], nil
}

// AddArgument writes a typed argument into the initial frame of a
// caller-managed stack slab, assuming the single-return frame layout where
// the frame pointer sits at slot 1.
func AddArgument(stack []uint64, index int, value uint64) {
	stack[FunctionCallOffset+1+index] = value
}
