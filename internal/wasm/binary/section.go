package binary

import (
	"bytes"
	"fmt"

	"github.com/rewasm/rewasm/api"
	"github.com/rewasm/rewasm/internal/leb128"
	"github.com/rewasm/rewasm/internal/wasm"
)

func decodeTypeSection(r *bytes.Reader) ([]*wasm.FunctionType, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]*wasm.FunctionType, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeFunctionType(r); err != nil {
			return nil, fmt.Errorf("read %d-th type: %v", i, err)
		}
	}
	return result, nil
}

func decodeImportSection(r *bytes.Reader) ([]*wasm.Import, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]*wasm.Import, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeImport(r, i); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func decodeFunctionSection(r *bytes.Reader) ([]uint32, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]uint32, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("get type index: %w", err)
		}
	}
	return result, nil
}

func decodeTableSection(r *bytes.Reader) ([]*wasm.TableLimits, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("error reading size: %w", err)
	}

	result := make([]*wasm.TableLimits, vs)
	for i := uint32(0); i < vs; i++ {
		elemType, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read leading byte: %v", err)
		}
		if elemType != wasm.ValueTypeFuncref {
			return nil, fmt.Errorf("table[%d] element type must be funcref but was %#x", i, elemType)
		}
		min, max, hasMax, err := decodeLimitsType(r)
		if err != nil {
			return nil, fmt.Errorf("table[%d] limits: %v", i, err)
		}
		result[i] = &wasm.TableLimits{Min: min, Max: max, HasMax: hasMax}
	}
	return result, nil
}

func decodeMemorySection(r *bytes.Reader) (*wasm.MemoryLimits, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("error reading size: %w", err)
	}
	if vs > 1 {
		return nil, fmt.Errorf("at most one memory allowed in module, but read %d", vs)
	} else if vs == 0 {
		return nil, nil
	}

	min, max, hasMax, err := decodeLimitsType(r)
	if err != nil {
		return nil, err
	}
	if min > wasm.MemoryLimitPages {
		return nil, fmt.Errorf("memory min must be at most 65536 pages (4GiB), but was %d", min)
	}
	if hasMax && max > wasm.MemoryLimitPages {
		return nil, fmt.Errorf("memory max must be at most 65536 pages (4GiB), but was %d", max)
	}
	return &wasm.MemoryLimits{Min: min, Max: max, HasMax: hasMax}, nil
}

func decodeGlobalSection(r *bytes.Reader) ([]*wasm.Global, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]*wasm.Global, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeGlobal(r); err != nil {
			return nil, fmt.Errorf("global[%d]: %w", i, err)
		}
	}
	return result, nil
}

func decodeExportSection(r *bytes.Reader) (map[string]*wasm.Export, error) {
	vs, _, sizeErr := leb128.DecodeUint32(r)
	if sizeErr != nil {
		return nil, fmt.Errorf("get size of vector: %v", sizeErr)
	}

	exportSection := make(map[string]*wasm.Export, vs)
	for i := uint32(0); i < vs; i++ {
		name, _, err := decodeUTF8(r, "export[%d] name", i)
		if err != nil {
			return nil, err
		}

		if _, ok := exportSection[name]; ok {
			return nil, fmt.Errorf("export[%d] duplicates name %q", i, name)
		}

		kind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("export[%d] kind: %w", i, err)
		}
		if kind > api.ExternTypeGlobal {
			return nil, fmt.Errorf("export[%d] has invalid kind: %#x", i, kind)
		}

		index, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("export[%d] index: %w", i, err)
		}

		exportSection[name] = &wasm.Export{Name: name, Kind: kind, Index: index}
	}
	return exportSection, nil
}

func decodeStartSection(r *bytes.Reader) (*uint32, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get function index: %w", err)
	}
	return &vs, nil
}

func decodeElementSection(r *bytes.Reader) ([]*wasm.ElementSegment, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]*wasm.ElementSegment, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeElementSegment(r); err != nil {
			return nil, fmt.Errorf("element[%d]: %w", i, err)
		}
	}
	return result, nil
}

func decodeCodeSection(r *bytes.Reader) ([]*wasm.Code, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]*wasm.Code, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeCode(r); err != nil {
			return nil, fmt.Errorf("read %d-th code: %v", i, err)
		}
	}
	return result, nil
}

func decodeDataSection(r *bytes.Reader) ([]*wasm.DataSegment, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]*wasm.DataSegment, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeDataSegment(r); err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
	}
	return result, nil
}
