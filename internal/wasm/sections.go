package wasm

// SectionID identifies a section in the binary format. Known sections must
// appear in ascending id order; custom sections may appear anywhere.
type SectionID = byte

const (
	SectionIDCustom   SectionID = 0
	SectionIDType     SectionID = 1
	SectionIDImport   SectionID = 2
	SectionIDFunction SectionID = 3
	SectionIDTable    SectionID = 4
	SectionIDMemory   SectionID = 5
	SectionIDGlobal   SectionID = 6
	SectionIDExport   SectionID = 7
	SectionIDStart    SectionID = 8
	SectionIDElement  SectionID = 9
	SectionIDCode     SectionID = 10
	SectionIDData     SectionID = 11
)

// SectionIDName returns the canonical section name for diagnostics.
func SectionIDName(id SectionID) string {
	switch id {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	}
	return "unknown"
}

// Import is one entry of the import section. Imports are parsed and counted
// in their index spaces but never bound to a host.
type Import struct {
	Module string
	Name   string
	Kind   byte
	// DescFunc is the type index when Kind is func.
	DescFunc uint32
	// DescTable, DescMem, DescGlobal describe the respective kinds.
	DescTable  *TableLimits
	DescMem    *MemoryLimits
	DescGlobal *GlobalType
}

// TableLimits is a decoded tabletype.
type TableLimits struct {
	Min uint32
	Max uint32
	// HasMax records whether the encoding carried an upper bound.
	HasMax bool
}

// MemoryLimits is a decoded memtype.
type MemoryLimits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// Code is one undecoded entry of the code section: the declared local types
// plus the raw expression bytes, lowered later by the translator.
type Code struct {
	LocalTypes []ValueType
	Body       []byte
}

// ConstantExpression is an undecoded initializer expression for a global, a
// data segment offset, or an element segment offset.
type ConstantExpression struct {
	// Body is the expression bytecode without the trailing end opcode.
	Body []byte
}

// Global is one entry of the global section.
type Global struct {
	Type GlobalType
	Init *ConstantExpression
}

// DataSegment is one entry of the data section. Segment types 0 and 2 are
// active: Init is copied to memory at the evaluated offset. Type 1 is
// passive and copied at offset 0.
type DataSegment struct {
	OffsetExpr *ConstantExpression
	Init       []byte
	Passive    bool
}

// ElementSegment is one entry of the element section, restricted to funcref
// segment types 0-3.
type ElementSegment struct {
	TableIndex uint32
	OffsetExpr *ConstantExpression
	FuncIdxs   []uint32
}
