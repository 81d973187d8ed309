package wasm

import "encoding/binary"

const (
	// MemoryPageSize is the size of one linear-memory page: 64Ki bytes.
	MemoryPageSize = 65536
	// MemoryLimitPages is the maximum addressable page count in a 32-bit
	// address space.
	MemoryLimitPages = 65536
)

// MemoryInstance is the single linear memory of a module. The initial size
// and the capacity are set at load time from the module's memory-limit
// declaration; Grow reallocates Buffer up to Cap pages.
type MemoryInstance struct {
	Buffer []byte
	Min    uint32
	Cap    uint32
}

// NewMemoryInstance allocates min pages, zero filled.
func NewMemoryInstance(min, max uint32) *MemoryInstance {
	return &MemoryInstance{
		Buffer: make([]byte, min*MemoryPageSize),
		Min:    min,
		Cap:    max,
	}
}

// PageSize returns the current page count.
func (m *MemoryInstance) PageSize() uint32 {
	return uint32(len(m.Buffer) / MemoryPageSize)
}

// Grow extends memory by delta pages and returns the previous page count. On
// failure (the request exceeds capacity) it returns the current page count
// and false, leaving memory untouched.
func (m *MemoryInstance) Grow(delta uint32) (result uint32, ok bool) {
	current := m.PageSize()
	if delta == 0 {
		return current, true
	}
	if newPages := uint64(current) + uint64(delta); newPages > uint64(m.Cap) {
		return current, false
	}
	// The old buffer is dropped; contents carry over to the new block.
	buffer := make([]byte, (current+delta)*MemoryPageSize)
	copy(buffer, m.Buffer)
	m.Buffer = buffer
	return current, true
}

func (m *MemoryInstance) hasSize(offset uint32, size uint32) bool {
	return uint64(offset)+uint64(size) <= uint64(len(m.Buffer))
}

// ReadByte reads a single byte, reporting whether the address is in bounds.
func (m *MemoryInstance) ReadByte(offset uint32) (byte, bool) {
	if !m.hasSize(offset, 1) {
		return 0, false
	}
	return m.Buffer[offset], true
}

// ReadUint16Le reads a little-endian 16-bit integer.
func (m *MemoryInstance) ReadUint16Le(offset uint32) (uint16, bool) {
	if !m.hasSize(offset, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.Buffer[offset : offset+2]), true
}

// ReadUint32Le reads a little-endian 32-bit integer.
func (m *MemoryInstance) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.hasSize(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.Buffer[offset : offset+4]), true
}

// ReadUint64Le reads a little-endian 64-bit integer.
func (m *MemoryInstance) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.hasSize(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.Buffer[offset : offset+8]), true
}

// WriteByte writes a single byte, reporting whether the address is in bounds.
func (m *MemoryInstance) WriteByte(offset uint32, v byte) bool {
	if !m.hasSize(offset, 1) {
		return false
	}
	m.Buffer[offset] = v
	return true
}

// WriteUint16Le writes a little-endian 16-bit integer.
func (m *MemoryInstance) WriteUint16Le(offset uint32, v uint16) bool {
	if !m.hasSize(offset, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.Buffer[offset:offset+2], v)
	return true
}

// WriteUint32Le writes a little-endian 32-bit integer.
func (m *MemoryInstance) WriteUint32Le(offset uint32, v uint32) bool {
	if !m.hasSize(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.Buffer[offset:offset+4], v)
	return true
}

// WriteUint64Le writes a little-endian 64-bit integer.
func (m *MemoryInstance) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.hasSize(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.Buffer[offset:offset+8], v)
	return true
}

// Write copies data into memory at offset, reporting whether the whole range
// is in bounds. Used for active data segments.
func (m *MemoryInstance) Write(offset uint32, data []byte) bool {
	if !m.hasSize(offset, uint32(len(data))) {
		return false
	}
	copy(m.Buffer[offset:], data)
	return true
}
