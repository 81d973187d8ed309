package leb128

import (
	"errors"
	"fmt"
	"io"
)

const (
	maxVarintLen32 = 5
	maxVarintLen33 = 5
	maxVarintLen64 = 10
)

var (
	errOverflow32 = errors.New("overflows a 32-bit integer")
	errOverflow33 = errors.New("overflows a 33-bit integer")
	errOverflow64 = errors.New("overflows a 64-bit integer")
)

// EncodeInt32 encodes the signed value into a buffer in LEB128 format.
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_signed_integer
func EncodeInt32(value int32) []byte {
	return EncodeInt64(int64(value))
}

// EncodeInt64 encodes the signed value into a buffer in LEB128 format.
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_signed_integer
func EncodeInt64(value int64) (buf []byte) {
	for {
		// Take 7 remaining low-order bits of value.
		b := uint8(value & 0x7f)
		signBit := b & 0x40
		value >>= 7
		if (value != 0 || signBit != 0) && (value != -1 || signBit != 0x40) {
			// more bits to come, set high-order bit.
			b |= 0x80
		}
		buf = append(buf, b)
		if b&0x80 == 0 {
			break
		}
	}
	return buf
}

// EncodeUint32 encodes the value into a buffer in LEB128 format.
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_unsigned_integer
func EncodeUint32(value uint32) []byte {
	return EncodeUint64(uint64(value))
}

// EncodeUint64 encodes the value into a buffer in LEB128 format.
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_unsigned_integer
func EncodeUint64(value uint64) (buf []byte) {
	// This is effectively a do/while loop so that we handle value == 0.
	for {
		// Take 7 remaining low-order bits of value.
		b := uint8(value & 0x7f)
		value >>= 7
		if value != 0 {
			// more bits to come, set high-order bit.
			b |= 0x80
		}
		buf = append(buf, b)
		if value == 0 {
			break
		}
	}
	return buf
}

// DecodeUint32 decodes an unsigned 32-bit integer and returns the number of
// bytes consumed from r.
func DecodeUint32(r io.ByteReader) (ret uint32, bytesRead uint64, err error) {
	// Derived from the unsigned path with the result narrowed to 32 bits.
	var shift int
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		ret |= (uint32(b) & 0x7f) << shift
		bytesRead++
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 32 {
			return 0, 0, errOverflow32
		}
	}
	if shift == 28 && b&0xf0 != 0 {
		return 0, 0, errOverflow32
	}
	return ret, bytesRead, nil
}

// DecodeUint64 decodes an unsigned 64-bit integer and returns the number of
// bytes consumed from r.
func DecodeUint64(r io.ByteReader) (ret uint64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		ret |= (uint64(b) & 0x7f) << shift
		bytesRead++
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, errOverflow64
		}
	}
	if shift == 63 && b&0x7e != 0 {
		return 0, 0, errOverflow64
	}
	return ret, bytesRead, nil
}

// DecodeInt32 decodes a signed 32-bit integer and returns the number of bytes
// consumed from r.
func DecodeInt32(r io.ByteReader) (ret int32, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		ret |= (int32(b) & 0x7f) << shift
		shift += 7
		bytesRead++
		if b&0x80 == 0 {
			if shift < 32 && (b&0x40) != 0 {
				ret |= ^0 << shift
			}
			break
		}
		if shift >= 32 {
			return 0, 0, errOverflow32
		}
	}
	if bytesRead == maxVarintLen32 {
		// The top 4 bits of the last byte must be the sign extension only.
		if msb := b & 0x78; msb != 0x78 && msb != 0 {
			return 0, 0, errOverflow32
		}
	}
	return ret, bytesRead, nil
}

// DecodeInt33AsInt64 decodes a signed 33-bit integer into an int64. Wasm uses
// 33-bit signed integers for block types, where negative numbers are value
// types and non-negative numbers are type section indexes.
func DecodeInt33AsInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		ret |= (int64(b) & 0x7f) << shift
		shift += 7
		bytesRead++
		if b&0x80 == 0 {
			if shift < 33 && (b&0x40) != 0 {
				ret |= ^0 << shift
			}
			break
		}
		if shift >= 33 {
			return 0, 0, errOverflow33
		}
	}
	if bytesRead == maxVarintLen33 {
		if msb := b & 0x7c; msb != 0x7c && msb != 0 {
			return 0, 0, errOverflow33
		}
	}
	return ret, bytesRead, nil
}

// DecodeInt64 decodes a signed 64-bit integer and returns the number of bytes
// consumed from r.
func DecodeInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		ret |= (int64(b) & 0x7f) << shift
		shift += 7
		bytesRead++
		if b&0x80 == 0 {
			if shift < 64 && (b&0x40) != 0 {
				ret |= ^0 << shift
			}
			break
		}
		if shift >= 64 {
			return 0, 0, errOverflow64
		}
	}
	if bytesRead == maxVarintLen64 {
		// The last byte may only carry the sign extension bit.
		if b != 0 && b != 1 {
			return 0, 0, errOverflow64
		}
	}
	return ret, bytesRead, nil
}

// LoadUint32 decodes an unsigned 32-bit integer from buf without allocating.
func LoadUint32(buf []byte) (ret uint32, bytesRead uint64, err error) {
	v, n, err := LoadUint64(buf)
	if err != nil {
		return 0, 0, err
	} else if v > 0xffff_ffff {
		return 0, 0, errOverflow32
	}
	return uint32(v), n, nil
}

// LoadUint64 decodes an unsigned 64-bit integer from buf without allocating.
func LoadUint64(buf []byte) (ret uint64, bytesRead uint64, err error) {
	var shift int
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		ret |= (uint64(b) & 0x7f) << shift
		if b&0x80 == 0 {
			return ret, uint64(i) + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, errOverflow64
		}
	}
	return 0, 0, io.EOF
}

// LoadInt32 decodes a signed 32-bit integer from buf without allocating.
func LoadInt32(buf []byte) (ret int32, bytesRead uint64, err error) {
	v, n, err := LoadInt64(buf)
	if err != nil {
		return 0, 0, err
	} else if v > 0x7fff_ffff || v < -0x8000_0000 {
		return 0, 0, errOverflow32
	}
	return int32(v), n, nil
}

// LoadInt64 decodes a signed 64-bit integer from buf without allocating.
func LoadInt64(buf []byte) (ret int64, bytesRead uint64, err error) {
	var shift int
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		ret |= (int64(b) & 0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && (b&0x40) != 0 {
				ret |= ^0 << shift
			}
			return ret, uint64(i) + 1, nil
		}
		if shift >= 64 {
			return 0, 0, errOverflow64
		}
	}
	return 0, 0, io.EOF
}
