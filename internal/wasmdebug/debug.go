// Package wasmdebug renders the function call stack of a trapped execution
// into the error returned to the embedder.
package wasmdebug

import (
	"fmt"
	"runtime"
	"strings"
)

// ErrorBuilder accumulates stack frames, innermost first, while the
// interpreter unwinds after a trap.
type ErrorBuilder interface {
	// AddFrame records a function on the call stack.
	AddFrame(funcName string)

	// FromRecovered returns an error for the original recovered panic value,
	// annotated with the accumulated stack trace.
	FromRecovered(recovered interface{}) error
}

func NewErrorBuilder() ErrorBuilder {
	return &stackTrace{}
}

type stackTrace struct {
	frames []string
}

func (s *stackTrace) AddFrame(funcName string) {
	s.frames = append(s.frames, funcName)
}

func (s *stackTrace) FromRecovered(recovered interface{}) error {
	// runtime.Error means a bug in the interpreter, not in the guest. Let the
	// original panic continue so the goroutine dies with a Go stack trace.
	if runtimeErr, ok := recovered.(runtime.Error); ok {
		panic(runtimeErr)
	}

	stack := "\twasm stack trace:"
	for _, f := range s.frames {
		stack += "\n\t\t" + f
	}

	if err, ok := recovered.(error); ok {
		return fmt.Errorf("%w\n%s", err, stack)
	}
	return fmt.Errorf("%v\n%s", recovered, stack)
}

// FuncName returns a name for diagnostics: the export name when present,
// otherwise the function index in wat-like form.
func FuncName(name string, idx uint32) string {
	if name == "" {
		return fmt.Sprintf("func[%d]", idx)
	}
	var sb strings.Builder
	sb.WriteString(name)
	fmt.Fprintf(&sb, " (func[%d])", idx)
	return sb.String()
}
