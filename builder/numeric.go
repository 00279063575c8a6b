package builder

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// NumericBuilder builds arrays of any fixed-width scalar type. The data
// buffer is addressable as a packed []T.
type NumericBuilder[T fixedWidth] struct {
	builder

	data    *memory.Buffer
	rawData []T
}

// NewNumericBuilder returns a builder for the given fixed-width type. T must
// match the physical width of dtype.
func NewNumericBuilder[T fixedWidth](mem memory.Allocator, dtype arrow.DataType) *NumericBuilder[T] {
	return &NumericBuilder[T]{builder: builder{refCount: 1, mem: mem, dtype: dtype}}
}

func NewInt8Builder(mem memory.Allocator) *NumericBuilder[int8] {
	return NewNumericBuilder[int8](mem, arrow.PrimitiveTypes.Int8)
}

func NewInt16Builder(mem memory.Allocator) *NumericBuilder[int16] {
	return NewNumericBuilder[int16](mem, arrow.PrimitiveTypes.Int16)
}

func NewInt32Builder(mem memory.Allocator) *NumericBuilder[int32] {
	return NewNumericBuilder[int32](mem, arrow.PrimitiveTypes.Int32)
}

func NewInt64Builder(mem memory.Allocator) *NumericBuilder[int64] {
	return NewNumericBuilder[int64](mem, arrow.PrimitiveTypes.Int64)
}

func NewUint8Builder(mem memory.Allocator) *NumericBuilder[uint8] {
	return NewNumericBuilder[uint8](mem, arrow.PrimitiveTypes.Uint8)
}

func NewUint16Builder(mem memory.Allocator) *NumericBuilder[uint16] {
	return NewNumericBuilder[uint16](mem, arrow.PrimitiveTypes.Uint16)
}

func NewUint32Builder(mem memory.Allocator) *NumericBuilder[uint32] {
	return NewNumericBuilder[uint32](mem, arrow.PrimitiveTypes.Uint32)
}

func NewUint64Builder(mem memory.Allocator) *NumericBuilder[uint64] {
	return NewNumericBuilder[uint64](mem, arrow.PrimitiveTypes.Uint64)
}

func NewFloat32Builder(mem memory.Allocator) *NumericBuilder[float32] {
	return NewNumericBuilder[float32](mem, arrow.PrimitiveTypes.Float32)
}

func NewFloat64Builder(mem memory.Allocator) *NumericBuilder[float64] {
	return NewNumericBuilder[float64](mem, arrow.PrimitiveTypes.Float64)
}

func (b *NumericBuilder[T]) Release() {
	if atomic.AddInt64(&b.refCount, -1) == 0 {
		if b.nullBitmap != nil {
			b.nullBitmap.Release()
			b.nullBitmap = nil
		}
		if b.data != nil {
			b.data.Release()
			b.data = nil
			b.rawData = nil
		}
	}
}

func (b *NumericBuilder[T]) elemSize() int {
	var z T
	return int(unsafe.Sizeof(z))
}

func (b *NumericBuilder[T]) init(capacity int) {
	b.builder.init(capacity)
	b.data = memory.NewResizableBuffer(b.mem)
	b.data.Resize(capacity * b.elemSize())
	b.rawData = castFromBytes[T](b.data.Bytes())
}

func (b *NumericBuilder[T]) resizeHelper(n int) {
	nBuilder := n
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}
	if b.capacity == 0 {
		b.init(n)
	} else {
		b.builder.resize(nBuilder, b.init)
		b.data.ResizeNoShrink(n * b.elemSize())
		b.capacity = n
		b.rawData = castFromBytes[T](b.data.Bytes())
	}
}

// Reserve ensures there is enough space for appending n more elements.
func (b *NumericBuilder[T]) Reserve(n int) error {
	if err := checkReserve(n); err != nil {
		return err
	}
	b.builder.reserve(n, b.resizeHelper)
	return nil
}

// Resize grows the allocated capacity to n elements, or to the 32-element
// floor when n is smaller.
func (b *NumericBuilder[T]) Resize(n int) error {
	if err := b.checkResize(n); err != nil {
		return err
	}
	b.resizeHelper(n)
	return nil
}

func (b *NumericBuilder[T]) Reset() {
	b.builder.reset()
	if b.data != nil {
		b.data.Release()
		b.data = nil
		b.rawData = nil
	}
}

// Append appends a value to the builder, growing as needed.
func (b *NumericBuilder[T]) Append(v T) {
	b.builder.reserve(1, b.resizeHelper)
	b.UnsafeAppend(v)
}

// UnsafeAppend appends without a capacity check. Reserve must have been
// called beforehand.
func (b *NumericBuilder[T]) UnsafeAppend(v T) {
	bitutil.SetBit(b.nullBitmap.Bytes(), b.length)
	b.rawData[b.length] = v
	b.length++
}

// AppendNull appends a null slot. The data slot is zeroed so that finished
// arrays never expose uninitialised memory.
func (b *NumericBuilder[T]) AppendNull() {
	b.builder.reserve(1, b.resizeHelper)
	var z T
	b.rawData[b.length] = z
	b.unsafeAppendBoolToBitmap(false)
}

// AppendValues appends values in one shot. valid determines which entries
// are null; it must be empty (all valid) or of equal length to values.
func (b *NumericBuilder[T]) AppendValues(values []T, valid []bool) error {
	if len(valid) != 0 && len(valid) != len(values) {
		return fmt.Errorf("builder: %d values with %d validity entries: %w", len(values), len(valid), ErrInvalid)
	}
	if len(values) == 0 {
		return nil
	}
	if err := b.Reserve(len(values)); err != nil {
		return err
	}
	copy(b.rawData[b.length:], values)
	b.builder.unsafeAppendBoolsToBitmap(valid, len(values))
	return nil
}

// AppendValidBytes appends values with a byte validity mask where any zero
// byte is a null. A nil mask means all values are valid.
func (b *NumericBuilder[T]) AppendValidBytes(values []T, valid []byte) error {
	if valid != nil && len(valid) != len(values) {
		return fmt.Errorf("builder: %d values with %d validity bytes: %w", len(values), len(valid), ErrInvalid)
	}
	if len(values) == 0 {
		return nil
	}
	if err := b.Reserve(len(values)); err != nil {
		return err
	}
	copy(b.rawData[b.length:], values)
	b.builder.unsafeAppendBytesToBitmap(valid, len(values))
	return nil
}

// Value returns the i-th appended value. The reference is invalidated by any
// mutating call.
func (b *NumericBuilder[T]) Value(i int) T { return b.rawData[i] }

func (b *NumericBuilder[T]) newData() *array.Data {
	b.trimBitmap()
	bytesRequired := b.length * b.elemSize()
	if b.data != nil && bytesRequired < b.data.Len() {
		b.data.Resize(bytesRequired)
	}
	res := array.NewData(b.dtype, b.length, []*memory.Buffer{b.nullBitmap, b.data}, nil, b.nulls, 0)

	if b.data != nil {
		b.data.Release()
		b.data = nil
		b.rawData = nil
	}
	b.builder.reset()

	return res
}

// Finish returns the built array and resets the builder for reuse.
func (b *NumericBuilder[T]) Finish() (arrow.Array, error) {
	data := b.newData()
	defer data.Release()
	return array.MakeFromData(data), nil
}

// HalfFloatBuilder builds Float16 arrays from float16.Num values. Storage is
// the raw 16-bit representation.
type HalfFloatBuilder struct {
	*NumericBuilder[uint16]
}

func NewHalfFloatBuilder(mem memory.Allocator) *HalfFloatBuilder {
	return &HalfFloatBuilder{NewNumericBuilder[uint16](mem, arrow.FixedWidthTypes.Float16)}
}

func (b *HalfFloatBuilder) Append(v float16.Num) {
	b.NumericBuilder.Append(v.Uint16())
}

func (b *HalfFloatBuilder) UnsafeAppend(v float16.Num) {
	b.NumericBuilder.UnsafeAppend(v.Uint16())
}

var (
	_ ColumnBuilder = (*NumericBuilder[int32])(nil)
	_ ColumnBuilder = (*HalfFloatBuilder)(nil)
)
