package wasm

// TableInstance is a funcref table. Element segments fill References at load
// time; call_indirect reads it. A nil entry is an uninitialized slot and traps
// when selected.
type TableInstance struct {
	References []*Function
	Min        uint32
	Max        uint32
}

// NewTableInstance allocates a table with min uninitialized slots.
func NewTableInstance(min, max uint32) *TableInstance {
	return &TableInstance{
		References: make([]*Function, min),
		Min:        min,
		Max:        max,
	}
}
