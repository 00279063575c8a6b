package builder

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FixedSizeBinaryBuilder builds arrays of constant-width blobs. Every
// appended value must be exactly byteWidth bytes.
type FixedSizeBinaryBuilder struct {
	builder

	byteWidth int
	values    *byteBufferBuilder
}

func NewFixedSizeBinaryBuilder(mem memory.Allocator, dtype *arrow.FixedSizeBinaryType) *FixedSizeBinaryBuilder {
	return &FixedSizeBinaryBuilder{
		builder:   builder{refCount: 1, mem: mem, dtype: dtype},
		byteWidth: dtype.ByteWidth,
		values:    newByteBufferBuilder(mem),
	}
}

func (b *FixedSizeBinaryBuilder) Release() {
	if atomic.AddInt64(&b.refCount, -1) == 0 {
		if b.nullBitmap != nil {
			b.nullBitmap.Release()
			b.nullBitmap = nil
		}
		if b.values != nil {
			b.values.Release()
			b.values = nil
		}
	}
}

// ByteWidth returns the width of each element in bytes.
func (b *FixedSizeBinaryBuilder) ByteWidth() int { return b.byteWidth }

func (b *FixedSizeBinaryBuilder) init(capacity int) {
	b.builder.init(capacity)
	b.values.resize(capacity * b.byteWidth)
}

func (b *FixedSizeBinaryBuilder) resizeHelper(n int) {
	nBuilder := n
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}
	if b.capacity == 0 {
		b.init(n)
	} else {
		b.builder.resize(nBuilder, b.init)
		b.values.resize(n * b.byteWidth)
		b.capacity = n
	}
}

func (b *FixedSizeBinaryBuilder) Reserve(n int) error {
	if err := checkReserve(n); err != nil {
		return err
	}
	b.builder.reserve(n, b.resizeHelper)
	return nil
}

func (b *FixedSizeBinaryBuilder) Resize(n int) error {
	if err := b.checkResize(n); err != nil {
		return err
	}
	b.resizeHelper(n)
	return nil
}

func (b *FixedSizeBinaryBuilder) Reset() {
	b.builder.reset()
	b.values.reset()
}

// Append appends a value of exactly byteWidth bytes.
func (b *FixedSizeBinaryBuilder) Append(v []byte) error {
	if len(v) != b.byteWidth {
		return fmt.Errorf("builder: fixed size binary value of %d bytes, want %d: %w", len(v), b.byteWidth, ErrInvalid)
	}
	b.builder.reserve(1, b.resizeHelper)
	b.values.Append(v)
	b.unsafeAppendBoolToBitmap(true)
	return nil
}

// AppendNull appends a null slot. The data slot is zeroed.
func (b *FixedSizeBinaryBuilder) AppendNull() {
	b.builder.reserve(1, b.resizeHelper)
	b.values.Append(make([]byte, b.byteWidth))
	b.unsafeAppendBoolToBitmap(false)
}

// AppendValues appends values in one shot. valid must be empty (all valid)
// or of equal length to values.
func (b *FixedSizeBinaryBuilder) AppendValues(values [][]byte, valid []bool) error {
	if len(valid) != 0 && len(valid) != len(values) {
		return errValidityLength(len(values), len(valid))
	}
	for i, v := range values {
		if len(valid) != 0 && !valid[i] {
			b.AppendNull()
			continue
		}
		if err := b.Append(v); err != nil {
			return err
		}
	}
	return nil
}

// DataLen returns the number of bytes in the value data buffer.
func (b *FixedSizeBinaryBuilder) DataLen() int { return b.values.Len() }

// Value returns a borrowed view of the i-th appended value. The view is
// invalidated by any mutating call.
func (b *FixedSizeBinaryBuilder) Value(i int) []byte {
	return b.values.Bytes()[i*b.byteWidth : (i+1)*b.byteWidth]
}

func (b *FixedSizeBinaryBuilder) newData() *array.Data {
	b.trimBitmap()
	values := b.values.Finish()
	res := array.NewData(b.dtype, b.length, []*memory.Buffer{b.nullBitmap, values}, nil, b.nulls, 0)

	if values != nil {
		values.Release()
	}
	b.builder.reset()

	return res
}

func (b *FixedSizeBinaryBuilder) Finish() (arrow.Array, error) {
	data := b.newData()
	defer data.Release()
	return array.MakeFromData(data), nil
}

// Decimal128Builder builds Decimal128 arrays as 16-byte little-endian two's
// complement values.
type Decimal128Builder struct {
	*FixedSizeBinaryBuilder
}

func NewDecimal128Builder(mem memory.Allocator, dtype *arrow.Decimal128Type) *Decimal128Builder {
	return &Decimal128Builder{
		FixedSizeBinaryBuilder: &FixedSizeBinaryBuilder{
			builder:   builder{refCount: 1, mem: mem, dtype: dtype},
			byteWidth: arrow.Decimal128SizeBytes,
			values:    newByteBufferBuilder(mem),
		},
	}
}

// Append appends a decimal value.
func (b *Decimal128Builder) Append(v decimal128.Num) error {
	var buf [arrow.Decimal128SizeBytes]byte
	putDecimal128(buf[:], v)
	return b.FixedSizeBinaryBuilder.Append(buf[:])
}

// putDecimal128 serialises a decimal as 16 little-endian two's complement
// bytes, the in-memory layout of a Decimal128 array element.
func putDecimal128(buf []byte, v decimal128.Num) {
	binary.LittleEndian.PutUint64(buf[:8], v.LowBits())
	binary.LittleEndian.PutUint64(buf[8:], uint64(v.HighBits()))
}

// Value returns the i-th appended decimal.
func (b *Decimal128Builder) Value(i int) decimal128.Num {
	buf := b.FixedSizeBinaryBuilder.Value(i)
	return decimal128.New(int64(binary.LittleEndian.Uint64(buf[8:])), binary.LittleEndian.Uint64(buf[:8]))
}

var (
	_ ColumnBuilder = (*FixedSizeBinaryBuilder)(nil)
	_ ColumnBuilder = (*Decimal128Builder)(nil)
)
