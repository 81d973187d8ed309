// Package binary decodes the WebAssembly 1.0 binary format into the in-memory
// module form consumed by the translator.
package binary

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rewasm/rewasm/internal/leb128"
	"github.com/rewasm/rewasm/internal/wasm"
)

var (
	// Magic is the 4 byte preamble of every valid binary: \0asm.
	Magic = []byte{0x00, 0x61, 0x73, 0x6D}

	// version is the 4 byte little-endian encoding of 1.
	version = []byte{0x01, 0x00, 0x00, 0x00}
)

// ErrInvalidMagicNumber is returned when the preamble is missing or wrong.
var ErrInvalidMagicNumber = errors.New("invalid magic number")

// ErrInvalidVersion is returned for any version other than 1.
var ErrInvalidVersion = errors.New("invalid version header")

// DecodeModule parses the binary into a module with every section captured
// but no function body lowered. Known sections must appear in ascending id
// order; custom sections are skipped wherever they occur.
func DecodeModule(binary []byte) (*wasm.Module, error) {
	r := bytes.NewReader(binary)

	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil || !bytes.Equal(buf, Magic) {
		return nil, ErrInvalidMagicNumber
	}
	if _, err := io.ReadFull(r, buf); err != nil || !bytes.Equal(buf, version) {
		return nil, ErrInvalidVersion
	}

	m := &wasm.Module{Exports: map[string]*wasm.Export{}}
	var lastSectionID wasm.SectionID
	for {
		sectionID, err := r.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read section id: %w", err)
		}
		if sectionID != wasm.SectionIDCustom && sectionID <= wasm.SectionIDData {
			if sectionID <= lastSectionID {
				return nil, fmt.Errorf("section %s: out of order after section %s",
					wasm.SectionIDName(sectionID), wasm.SectionIDName(lastSectionID))
			}
			lastSectionID = sectionID
		}

		sectionSize, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("get size of section %s: %w", wasm.SectionIDName(sectionID), err)
		}

		sectionContentStart := r.Len()
		switch sectionID {
		case wasm.SectionIDCustom:
			// Name and content are of no interest, skip the whole payload.
			if _, err = r.Seek(int64(sectionSize), io.SeekCurrent); err != nil {
				err = fmt.Errorf("seek past content: %w", err)
			}
		case wasm.SectionIDType:
			m.Types, err = decodeTypeSection(r)
		case wasm.SectionIDImport:
			m.ImportSection, err = decodeImportSection(r)
		case wasm.SectionIDFunction:
			m.FunctionSection, err = decodeFunctionSection(r)
		case wasm.SectionIDTable:
			m.TableSection, err = decodeTableSection(r)
		case wasm.SectionIDMemory:
			m.MemorySection, err = decodeMemorySection(r)
		case wasm.SectionIDGlobal:
			m.GlobalSection, err = decodeGlobalSection(r)
		case wasm.SectionIDExport:
			m.Exports, err = decodeExportSection(r)
		case wasm.SectionIDStart:
			m.StartFunction, err = decodeStartSection(r)
		case wasm.SectionIDElement:
			m.ElementSection, err = decodeElementSection(r)
		case wasm.SectionIDCode:
			m.CodeSection, err = decodeCodeSection(r)
		case wasm.SectionIDData:
			m.DataSection, err = decodeDataSection(r)
		default:
			err = fmt.Errorf("unknown section id: %d", sectionID)
		}

		if err != nil {
			return nil, fmt.Errorf("section %s: %w", wasm.SectionIDName(sectionID), err)
		}
		if read := sectionContentStart - r.Len(); read != int(sectionSize) {
			return nil, fmt.Errorf("invalid section length for %s: expected to be %d but got %d",
				wasm.SectionIDName(sectionID), sectionSize, read)
		}
	}

	if len(m.FunctionSection) != len(m.CodeSection) {
		return nil, fmt.Errorf("function and code section length mismatch: %d != %d",
			len(m.FunctionSection), len(m.CodeSection))
	}
	return m, nil
}
