package binary

import (
	"bytes"
	"fmt"

	"github.com/rewasm/rewasm/internal/leb128"
)

// decodeLimitsType returns the `limits` (min, max, hasMax) decoded with the
// WebAssembly 1.0 Binary Format.
func decodeLimitsType(r *bytes.Reader) (min uint32, max uint32, hasMax bool, err error) {
	var flag byte
	if flag, err = r.ReadByte(); err != nil {
		err = fmt.Errorf("read leading byte: %v", err)
		return
	}

	switch flag {
	case 0x00:
		min, _, err = leb128.DecodeUint32(r)
		if err != nil {
			err = fmt.Errorf("read min of limit: %v", err)
		}
	case 0x01:
		min, _, err = leb128.DecodeUint32(r)
		if err != nil {
			err = fmt.Errorf("read min of limit: %v", err)
			return
		}
		max, _, err = leb128.DecodeUint32(r)
		if err != nil {
			err = fmt.Errorf("read max of limit: %v", err)
			return
		}
		if max < min {
			err = fmt.Errorf("min %d must not be greater than max %d", min, max)
			return
		}
		hasMax = true
	default:
		err = fmt.Errorf("invalid byte for limits: %#x", flag)
	}
	return
}
