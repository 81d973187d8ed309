package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rewasm/rewasm/internal/leb128"
	"github.com/rewasm/rewasm/internal/wasm"
)

// decodeDataSegment supports segment types 0 (active, default memory), 1
// (passive, loaded at offset zero) and 2 (active with an explicit memory
// index, which must be zero).
func decodeDataSegment(r *bytes.Reader) (*wasm.DataSegment, error) {
	prefix, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read data segment prefix: %w", err)
	}

	segment := &wasm.DataSegment{}
	switch prefix {
	case 0:
		if segment.OffsetExpr, err = decodeConstantExpression(r); err != nil {
			return nil, fmt.Errorf("read offset expression: %w", err)
		}
	case 1:
		segment.Passive = true
	case 2:
		memIdx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read memory index: %w", err)
		}
		if memIdx != 0 {
			return nil, fmt.Errorf("memory index must be zero but was %d", memIdx)
		}
		if segment.OffsetExpr, err = decodeConstantExpression(r); err != nil {
			return nil, fmt.Errorf("read offset expression: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid data segment prefix: %#x", prefix)
	}

	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	segment.Init = make([]byte, vs)
	if _, err := io.ReadFull(r, segment.Init); err != nil {
		return nil, fmt.Errorf("read init of data segment: %w", err)
	}
	return segment, nil
}
