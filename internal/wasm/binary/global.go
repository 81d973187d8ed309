package binary

import (
	"bytes"
	"fmt"

	"github.com/rewasm/rewasm/internal/wasm"
)

func decodeGlobalType(r *bytes.Reader) (*wasm.GlobalType, error) {
	vt, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read value type: %w", err)
	}
	switch vt {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64:
	default:
		return nil, fmt.Errorf("invalid global value type: %#x", vt)
	}

	mut, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read mutability: %w", err)
	}
	if mut > 1 {
		return nil, fmt.Errorf("invalid mutability: %#x", mut)
	}

	return &wasm.GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

func decodeGlobal(r *bytes.Reader) (*wasm.Global, error) {
	gt, err := decodeGlobalType(r)
	if err != nil {
		return nil, err
	}
	init, err := decodeConstantExpression(r)
	if err != nil {
		return nil, err
	}
	return &wasm.Global{Type: *gt, Init: init}, nil
}
