package binary

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/rewasm/rewasm/internal/leb128"
	"github.com/rewasm/rewasm/internal/wasm"
)

func decodeValueTypes(r *bytes.Reader, num uint32) ([]wasm.ValueType, error) {
	if num == 0 {
		return nil, nil
	}
	ret := make([]wasm.ValueType, num)
	buf := make([]byte, num)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	for i, v := range buf {
		switch v {
		case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64:
			ret[i] = v
		default:
			return nil, fmt.Errorf("invalid value type: %#x", v)
		}
	}
	return ret, nil
}

// decodeUTF8 decodes a size prefixed string from the reader, returning it and
// the count of bytes read. contextFormat and contextArgs apply an error
// format when present.
func decodeUTF8(r *bytes.Reader, contextFormat string, contextArgs ...interface{}) (string, uint32, error) {
	size, sizeOfSize, err := leb128.DecodeUint32(r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read %s size: %w", fmt.Sprintf(contextFormat, contextArgs...), err)
	}

	buf := make([]byte, size)
	if _, err = io.ReadFull(r, buf); err != nil {
		return "", 0, fmt.Errorf("failed to read %s: %w", fmt.Sprintf(contextFormat, contextArgs...), err)
	}

	if !utf8.Valid(buf) {
		return "", 0, fmt.Errorf("%s is not valid UTF-8", fmt.Sprintf(contextFormat, contextArgs...))
	}

	return string(buf), size + uint32(sizeOfSize), nil
}
