package builder

import (
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// BooleanBuilder builds Boolean arrays. Both the data and the validity are
// bit packed, one bit per element.
type BooleanBuilder struct {
	builder

	data    *memory.Buffer
	rawData []byte
}

func NewBooleanBuilder(mem memory.Allocator) *BooleanBuilder {
	return &BooleanBuilder{builder: builder{refCount: 1, mem: mem, dtype: arrow.FixedWidthTypes.Boolean}}
}

func (b *BooleanBuilder) Release() {
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

func (b *BooleanBuilder) init(capacity int) {
	b.builder.init(capacity)
	b.data = memory.NewResizableBuffer(b.mem)
	b.data.Resize(bitutil.CeilByte(capacity) / 8)
	b.rawData = b.data.Bytes()
}

func (b *BooleanBuilder) resizeHelper(n int) {
	nBuilder := n
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}
	if b.capacity == 0 {
		b.init(n)
	} else {
		b.builder.resize(nBuilder, b.init)
		b.data.ResizeNoShrink(bitutil.CeilByte(n) / 8)
		b.capacity = n
		b.rawData = b.data.Bytes()
	}
}

func (b *BooleanBuilder) Reserve(n int) error {
	if err := checkReserve(n); err != nil {
		return err
	}
	b.builder.reserve(n, b.resizeHelper)
	return nil
}

func (b *BooleanBuilder) Resize(n int) error {
	if err := b.checkResize(n); err != nil {
		return err
	}
	b.resizeHelper(n)
	return nil
}

func (b *BooleanBuilder) Reset() {
	b.builder.reset()
	if b.data != nil {
		b.data.Release()
		b.data = nil
		b.rawData = nil
	}
}

func (b *BooleanBuilder) Append(v bool) {
	b.builder.reserve(1, b.resizeHelper)
	b.UnsafeAppend(v)
}

// UnsafeAppend appends without a capacity check. Reserve must have been
// called beforehand.
func (b *BooleanBuilder) UnsafeAppend(v bool) {
	bitutil.SetBit(b.nullBitmap.Bytes(), b.length)
	bitutil.SetBitTo(b.rawData, b.length, v)
	b.length++
}

func (b *BooleanBuilder) AppendNull() {
	b.builder.reserve(1, b.resizeHelper)
	bitutil.ClearBit(b.rawData, b.length)
	b.unsafeAppendBoolToBitmap(false)
}

// AppendValues appends values in one shot. valid must be empty (all valid)
// or of equal length to values.
func (b *BooleanBuilder) AppendValues(values, valid []bool) error {
	if len(valid) != 0 && len(valid) != len(values) {
		return fmt.Errorf("builder: %d values with %d validity entries: %w", len(values), len(valid), ErrInvalid)
	}
	if len(values) == 0 {
		return nil
	}
	if err := b.Reserve(len(values)); err != nil {
		return err
	}
	for i, v := range values {
		bitutil.SetBitTo(b.rawData, b.length+i, v)
	}
	b.builder.unsafeAppendBoolsToBitmap(valid, len(values))
	return nil
}

// Value returns the i-th appended value.
func (b *BooleanBuilder) Value(i int) bool {
	return bitutil.BitIsSet(b.rawData, i)
}

func (b *BooleanBuilder) newData() *array.Data {
	b.trimBitmap()
	bytesRequired := bitutil.CeilByte(b.length) / 8
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

func (b *BooleanBuilder) Finish() (arrow.Array, error) {
	data := b.newData()
	defer data.Release()
	return array.MakeFromData(data), nil
}

var _ ColumnBuilder = (*BooleanBuilder)(nil)
