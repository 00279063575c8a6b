package builder

import (
	"fmt"
	"unsafe"
)

func errValidityLength(values, valid int) error {
	return fmt.Errorf("builder: %d values with %d validity entries: %w", values, valid, ErrInvalid)
}

// fixedWidth covers every scalar element width the builders store in data
// buffers. The arrow time, date, timestamp and duration types are defined
// types over these underlying widths and are covered by the ~ terms.
type fixedWidth interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// intWidth restricts to the integer subset of fixedWidth.
type intWidth interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64
}

// castToBytes reinterprets a slice of fixed-width values as its backing
// bytes without copying.
func castToBytes[T fixedWidth](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// castFromBytes reinterprets a byte slice as a slice of fixed-width values
// without copying.
func castFromBytes[T fixedWidth](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	var z T
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/int(unsafe.Sizeof(z)))
}
