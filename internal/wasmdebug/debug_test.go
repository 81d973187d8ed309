package wasmdebug

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	sentinel := errors.New("wasm error: unreachable")

	b := NewErrorBuilder()
	b.AddFrame("inner (func[2])")
	b.AddFrame("_start (func[0])")

	err := b.FromRecovered(sentinel)
	require.ErrorIs(t, err, sentinel)
	require.Contains(t, err.Error(), "wasm stack trace:")
	require.Contains(t, err.Error(), "inner (func[2])")
	require.Contains(t, err.Error(), "_start (func[0])")
}

func TestFuncName(t *testing.T) {
	require.Equal(t, "func[3]", FuncName("", 3))
	require.Equal(t, "_start (func[0])", FuncName("_start", 0))
}
