package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rewasm/rewasm/api"
	"github.com/rewasm/rewasm/internal/wasm"
)

func TestDecodeModule_headers(t *testing.T) {
	t.Run("empty module", func(t *testing.T) {
		m, err := DecodeModule([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
		require.NoError(t, err)
		require.NotNil(t, m)
	})
	t.Run("invalid magic", func(t *testing.T) {
		_, err := DecodeModule([]byte{0x00, 0x61, 0x73, 0x00, 0x01, 0x00, 0x00, 0x00})
		require.ErrorIs(t, err, ErrInvalidMagicNumber)
	})
	t.Run("invalid version", func(t *testing.T) {
		_, err := DecodeModule([]byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00})
		require.ErrorIs(t, err, ErrInvalidVersion)
	})
	t.Run("truncated", func(t *testing.T) {
		_, err := DecodeModule([]byte{0x00, 0x61})
		require.ErrorIs(t, err, ErrInvalidMagicNumber)
	})
}

func TestDecodeModule_skipsCustomSection(t *testing.T) {
	input := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		wasm.SectionIDCustom, 0x06,
		0x04, 'm', 'e', 'm', 'e',
		0xff, // arbitrary payload
	}
	m, err := DecodeModule(input)
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestDecodeModule_sections(t *testing.T) {
	input := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		// type: (i32, i32) -> (i32)
		wasm.SectionIDType, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
		// import: "env"."f" func type 0
		wasm.SectionIDImport, 0x09, 0x01, 0x03, 'e', 'n', 'v', 0x01, 'f', 0x00, 0x00,
		// function: one entry of type 0
		wasm.SectionIDFunction, 0x02, 0x01, 0x00,
		// table: funcref, min 1 max 2
		wasm.SectionIDTable, 0x05, 0x01, 0x70, 0x01, 0x01, 0x02,
		// memory: min 1, no max
		wasm.SectionIDMemory, 0x03, 0x01, 0x00, 0x01,
		// global: mutable i32 = 8
		wasm.SectionIDGlobal, 0x06, 0x01, 0x7f, 0x01, 0x41, 0x08, 0x0b,
		// export: "_start" func 1
		wasm.SectionIDExport, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x01,
		// element: table 0, offset 0, [1]
		wasm.SectionIDElement, 0x07, 0x01, 0x00, 0x41, 0x00, 0x0b, 0x01, 0x01,
		// code: one empty body
		wasm.SectionIDCode, 0x04, 0x01, 0x02, 0x00, 0x0b,
		// data: offset 1, bytes "hi"
		wasm.SectionIDData, 0x08, 0x01, 0x00, 0x41, 0x01, 0x0b, 0x02, 'h', 'i',
	}

	m, err := DecodeModule(input)
	require.NoError(t, err)

	require.Equal(t, []*wasm.FunctionType{
		{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
	}, m.Types)

	require.Len(t, m.ImportSection, 1)
	require.Equal(t, "env", m.ImportSection[0].Module)
	require.Equal(t, "f", m.ImportSection[0].Name)
	require.Equal(t, api.ExternTypeFunc, m.ImportSection[0].Kind)

	require.Equal(t, []uint32{0}, m.FunctionSection)

	require.Equal(t, []*wasm.TableLimits{{Min: 1, Max: 2, HasMax: true}}, m.TableSection)
	require.Equal(t, &wasm.MemoryLimits{Min: 1}, m.MemorySection)

	require.Len(t, m.GlobalSection, 1)
	require.True(t, m.GlobalSection[0].Type.Mutable)
	require.Equal(t, []byte{0x41, 0x08}, m.GlobalSection[0].Init.Body)

	require.Equal(t, &wasm.Export{Name: "_start", Kind: api.ExternTypeFunc, Index: 1}, m.Exports["_start"])

	require.Len(t, m.ElementSection, 1)
	require.Equal(t, []uint32{1}, m.ElementSection[0].FuncIdxs)
	require.Equal(t, []byte{0x41, 0x00}, m.ElementSection[0].OffsetExpr.Body)

	require.Len(t, m.CodeSection, 1)
	require.Equal(t, []byte{0x0b}, m.CodeSection[0].Body)

	require.Len(t, m.DataSection, 1)
	require.Equal(t, []byte("hi"), m.DataSection[0].Init)
}

func TestDecodeModule_sectionLengthMismatch(t *testing.T) {
	input := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		wasm.SectionIDFunction, 0x05, 0x01, 0x00, // declares 5 bytes, provides 2
	}
	_, err := DecodeModule(input)
	require.Error(t, err)
}

func TestDecodeModule_codeFunctionMismatch(t *testing.T) {
	input := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		wasm.SectionIDFunction, 0x02, 0x01, 0x00,
	}
	_, err := DecodeModule(input)
	require.Error(t, err)
	require.Contains(t, err.Error(), "function and code section length mismatch")
}

func TestDecodeModule_unknownSection(t *testing.T) {
	input := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x0c, 0x01, 0x00,
	}
	_, err := DecodeModule(input)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown section id")
}

func TestDecodeCode_locals(t *testing.T) {
	// Three local runs: 2 x i32, 1 x i64, 1 x f64.
	input := []byte{
		0x08,       // code size
		0x03,       // three runs
		0x02, 0x7f, // 2 x i32
		0x01, 0x7e, // 1 x i64
		0x01, 0x7c, // 1 x f64
		0x0b, // end
	}
	c, err := decodeCode(bytes.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []wasm.ValueType{
		wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF64,
	}, c.LocalTypes)
	require.Equal(t, []byte{0x0b}, c.Body)
}

func TestDecodeConstantExpression(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "i32.const", input: []byte{0x41, 0x2a, 0x0b}},
		{name: "i64.const", input: []byte{0x42, 0x2a, 0x0b}},
		{name: "f32.const", input: []byte{0x43, 0x00, 0x00, 0x80, 0x3f, 0x0b}},
		{name: "f64.const", input: []byte{0x44, 0, 0, 0, 0, 0, 0, 0xf0, 0x3f, 0x0b}},
		{name: "global.get", input: []byte{0x23, 0x00, 0x0b}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expr, err := decodeConstantExpression(bytes.NewReader(tc.input))
			require.NoError(t, err)
			require.Equal(t, tc.input[:len(tc.input)-1], expr.Body)
		})
	}

	t.Run("not a const opcode", func(t *testing.T) {
		_, err := decodeConstantExpression(bytes.NewReader([]byte{0x6a, 0x0b}))
		require.Error(t, err)
	})
	t.Run("unterminated", func(t *testing.T) {
		_, err := decodeConstantExpression(bytes.NewReader([]byte{0x41, 0x2a, 0x6a}))
		require.Error(t, err)
	})
}

func TestDecodeDataSegment_shapes(t *testing.T) {
	t.Run("passive", func(t *testing.T) {
		seg, err := decodeDataSegment(bytes.NewReader([]byte{0x01, 0x02, 'h', 'i'}))
		require.NoError(t, err)
		require.True(t, seg.Passive)
		require.Nil(t, seg.OffsetExpr)
		require.Equal(t, []byte("hi"), seg.Init)
	})
	t.Run("explicit memory index", func(t *testing.T) {
		seg, err := decodeDataSegment(bytes.NewReader([]byte{0x02, 0x00, 0x41, 0x04, 0x0b, 0x01, 'x'}))
		require.NoError(t, err)
		require.False(t, seg.Passive)
		require.Equal(t, []byte{0x41, 0x04}, seg.OffsetExpr.Body)
	})
	t.Run("nonzero memory index", func(t *testing.T) {
		_, err := decodeDataSegment(bytes.NewReader([]byte{0x02, 0x01, 0x41, 0x04, 0x0b, 0x00}))
		require.Error(t, err)
	})
}

func TestDecodeLimitsType(t *testing.T) {
	t.Run("max below min", func(t *testing.T) {
		_, _, _, err := decodeLimitsType(bytes.NewReader([]byte{0x01, 0x05, 0x02}))
		require.Error(t, err)
	})
	t.Run("invalid flag", func(t *testing.T) {
		_, _, _, err := decodeLimitsType(bytes.NewReader([]byte{0x02, 0x05}))
		require.Error(t, err)
	})
}
