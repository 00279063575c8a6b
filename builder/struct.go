package builder

import (
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// StructBuilder builds Struct arrays. It owns one builder per field but only
// tracks its own validity; the caller appends to each field builder exactly
// once per struct slot. Finish fails when a field builder's length diverges
// from the struct's.
type StructBuilder struct {
	builder

	fields []ColumnBuilder
}

func NewStructBuilder(mem memory.Allocator, dtype *arrow.StructType) (*StructBuilder, error) {
	fields := make([]ColumnBuilder, dtype.NumFields())
	for i, f := range dtype.Fields() {
		fb, err := NewBuilder(mem, f.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = fb
	}
	return &StructBuilder{
		builder: builder{refCount: 1, mem: mem, dtype: dtype},
		fields:  fields,
	}, nil
}

func (b *StructBuilder) Release() {
	if atomic.AddInt64(&b.refCount, -1) == 0 {
		if b.nullBitmap != nil {
			b.nullBitmap.Release()
			b.nullBitmap = nil
		}
	}

	for _, f := range b.fields {
		f.Release()
	}
}

// FieldBuilder returns the builder for the i-th field.
func (b *StructBuilder) FieldBuilder(i int) ColumnBuilder { return b.fields[i] }

// NumField returns the number of field builders.
func (b *StructBuilder) NumField() int { return len(b.fields) }

func (b *StructBuilder) resizeHelper(n int) {
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}
	if b.capacity == 0 {
		b.builder.init(n)
	} else {
		b.builder.resize(n, b.builder.init)
	}
}

// Reserve ensures space for n more struct slots. It does not reserve field
// capacity; callers reserve fields independently.
func (b *StructBuilder) Reserve(n int) error {
	if err := checkReserve(n); err != nil {
		return err
	}
	b.builder.reserve(n, b.resizeHelper)
	return nil
}

func (b *StructBuilder) Resize(n int) error {
	if err := b.checkResize(n); err != nil {
		return err
	}
	b.resizeHelper(n)
	return nil
}

func (b *StructBuilder) Reset() {
	b.builder.reset()
	for _, f := range b.fields {
		f.Reset()
	}
}

// Append marks the next struct slot valid or null. Field values are appended
// by the caller through the field builders.
func (b *StructBuilder) Append(isValid bool) {
	b.builder.reserve(1, b.resizeHelper)
	b.unsafeAppendBoolToBitmap(isValid)
}

func (b *StructBuilder) AppendNull() {
	b.Append(false)
}

// AppendValues appends n validity entries in one shot; any zero byte in
// valid marks a null slot, a nil slice marks all n slots valid.
func (b *StructBuilder) AppendValues(n int, valid []byte) error {
	if valid != nil && len(valid) != n {
		return errValidityLength(n, len(valid))
	}
	if err := b.Reserve(n); err != nil {
		return err
	}
	b.unsafeAppendBytesToBitmap(valid, n)
	return nil
}

func (b *StructBuilder) newData() (*array.Data, error) {
	for i, f := range b.fields {
		if f.Len() != b.length {
			return nil, fmt.Errorf("builder: struct field %d has %d elements, want %d: %w", i, f.Len(), b.length, ErrInvalid)
		}
	}
	b.trimBitmap()

	children := make([]arrow.ArrayData, len(b.fields))
	for i, f := range b.fields {
		arr, err := f.Finish()
		if err != nil {
			return nil, err
		}
		children[i] = arr.Data()
		children[i].Retain()
		arr.Release()
	}

	res := array.NewData(b.dtype, b.length, []*memory.Buffer{b.nullBitmap}, children, b.nulls, 0)
	for _, child := range children {
		child.Release()
	}
	b.builder.reset()

	return res, nil
}

func (b *StructBuilder) Finish() (arrow.Array, error) {
	data, err := b.newData()
	if err != nil {
		return nil, err
	}
	defer data.Release()
	return array.MakeFromData(data), nil
}

var _ ColumnBuilder = (*StructBuilder)(nil)
