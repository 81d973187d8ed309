package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rewasm/rewasm/internal/leb128"
	"github.com/rewasm/rewasm/internal/wasm"
)

// Wasm opcodes that may lead a constant expression.
const (
	opcodeI32Const  = 0x41
	opcodeI64Const  = 0x42
	opcodeF32Const  = 0x43
	opcodeF64Const  = 0x44
	opcodeGlobalGet = 0x23
	opcodeEnd       = 0x0b
)

// decodeConstantExpression captures one initializer expression as raw bytes,
// excluding the trailing end opcode, so the translator can lower it through
// the same path as function bodies.
func decodeConstantExpression(r *bytes.Reader) (*wasm.ConstantExpression, error) {
	remaining := r.Len()
	b, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read opcode: %w", err)
	}

	switch b {
	case opcodeI32Const:
		_, _, err = leb128.DecodeInt32(r)
	case opcodeI64Const:
		_, _, err = leb128.DecodeInt64(r)
	case opcodeF32Const:
		_, err = io.CopyN(io.Discard, r, 4)
	case opcodeF64Const:
		_, err = io.CopyN(io.Discard, r, 8)
	case opcodeGlobalGet:
		_, _, err = leb128.DecodeUint32(r)
	default:
		return nil, fmt.Errorf("%#x is not a const expression opcode", b)
	}
	if err != nil {
		return nil, fmt.Errorf("read operand: %w", err)
	}

	bodyLen := remaining - r.Len()

	if b, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("look for end opcode: %w", err)
	}
	if b != opcodeEnd {
		return nil, fmt.Errorf("constant expression has not terminated")
	}

	// Re-read the consumed span out of the reader's backing array.
	body := make([]byte, bodyLen)
	if _, err := r.Seek(int64(-bodyLen-1), io.SeekCurrent); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	if _, err := r.Seek(1, io.SeekCurrent); err != nil {
		return nil, err
	}
	return &wasm.ConstantExpression{Body: body}, nil
}
