package binary

import (
	"bytes"
	"fmt"

	"github.com/rewasm/rewasm/internal/leb128"
	"github.com/rewasm/rewasm/internal/wasm"
)

func decodeFuncIdxVector(r *bytes.Reader) ([]uint32, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}
	vector := make([]uint32, vs)
	for i := range vector {
		if vector[i], _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("read function index: %w", err)
		}
	}
	return vector, nil
}

// decodeElementSegment supports the funcref segment shapes 0-3. Shapes 0 and
// 2 are active with a const-expr offset; 1 and 3 are passive/declarative and
// load at offset zero of table zero.
func decodeElementSegment(r *bytes.Reader) (*wasm.ElementSegment, error) {
	prefix, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read element prefix: %w", err)
	}

	switch prefix {
	case 0:
		expr, err := decodeConstantExpression(r)
		if err != nil {
			return nil, fmt.Errorf("read expr for offset: %w", err)
		}
		idxs, err := decodeFuncIdxVector(r)
		if err != nil {
			return nil, err
		}
		return &wasm.ElementSegment{OffsetExpr: expr, FuncIdxs: idxs}, nil
	case 1, 3:
		elemKind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read element kind: %w", err)
		}
		if elemKind != 0 {
			return nil, fmt.Errorf("element kind must be funcref but was %#x", elemKind)
		}
		idxs, err := decodeFuncIdxVector(r)
		if err != nil {
			return nil, err
		}
		return &wasm.ElementSegment{FuncIdxs: idxs}, nil
	case 2:
		tableIdx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read table index: %w", err)
		}
		expr, err := decodeConstantExpression(r)
		if err != nil {
			return nil, fmt.Errorf("read expr for offset: %w", err)
		}
		elemKind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read element kind: %w", err)
		}
		if elemKind != 0 {
			return nil, fmt.Errorf("element kind must be funcref but was %#x", elemKind)
		}
		idxs, err := decodeFuncIdxVector(r)
		if err != nil {
			return nil, err
		}
		return &wasm.ElementSegment{TableIndex: tableIdx, OffsetExpr: expr, FuncIdxs: idxs}, nil
	default:
		return nil, fmt.Errorf("unsupported element segment shape: %d", prefix)
	}
}
