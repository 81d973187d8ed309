package binary

import (
	"bytes"
	"fmt"

	"github.com/rewasm/rewasm/api"
	"github.com/rewasm/rewasm/internal/leb128"
	"github.com/rewasm/rewasm/internal/wasm"
)

func decodeImport(r *bytes.Reader, idx uint32) (i *wasm.Import, err error) {
	i = &wasm.Import{}
	if i.Module, _, err = decodeUTF8(r, "import[%d] module name", idx); err != nil {
		return nil, err
	}
	if i.Name, _, err = decodeUTF8(r, "import[%d] field name", idx); err != nil {
		return nil, err
	}

	if i.Kind, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("import[%d] kind: %w", idx, err)
	}

	switch i.Kind {
	case api.ExternTypeFunc:
		if i.DescFunc, _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("import[%d] func typeindex: %w", idx, err)
		}
	case api.ExternTypeTable:
		var elemType byte
		if elemType, err = r.ReadByte(); err != nil {
			return nil, fmt.Errorf("import[%d] table element type: %w", idx, err)
		}
		if elemType != wasm.ValueTypeFuncref {
			return nil, fmt.Errorf("import[%d] table element type must be funcref but was %#x", idx, elemType)
		}
		min, max, hasMax, err := decodeLimitsType(r)
		if err != nil {
			return nil, fmt.Errorf("import[%d] table limits: %w", idx, err)
		}
		i.DescTable = &wasm.TableLimits{Min: min, Max: max, HasMax: hasMax}
	case api.ExternTypeMemory:
		min, max, hasMax, err := decodeLimitsType(r)
		if err != nil {
			return nil, fmt.Errorf("import[%d] memory limits: %w", idx, err)
		}
		i.DescMem = &wasm.MemoryLimits{Min: min, Max: max, HasMax: hasMax}
	case api.ExternTypeGlobal:
		gt, err := decodeGlobalType(r)
		if err != nil {
			return nil, fmt.Errorf("import[%d] global type: %w", idx, err)
		}
		i.DescGlobal = gt
	default:
		return nil, fmt.Errorf("import[%d] has invalid kind: %#x", idx, i.Kind)
	}
	return
}
