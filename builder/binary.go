package builder

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// BinaryBuilder builds Binary arrays as an int32 offsets buffer plus a byte
// data buffer. While appending, the offsets builder holds one start offset
// per slot (length entries), not length+1; the trailing offset is written
// only by Finish. The total data bytes are capped at 2^31-2.
type BinaryBuilder struct {
	builder

	dtype   arrow.BinaryDataType
	offsets *typedBufferBuilder[int32]
	values  *byteBufferBuilder
}

func NewBinaryBuilder(mem memory.Allocator, dtype arrow.BinaryDataType) *BinaryBuilder {
	return &BinaryBuilder{
		builder: builder{refCount: 1, mem: mem, dtype: dtype},
		dtype:   dtype,
		offsets: newTypedBufferBuilder[int32](mem),
		values:  newByteBufferBuilder(mem),
	}
}

func (b *BinaryBuilder) Release() {
	if atomic.AddInt64(&b.refCount, -1) == 0 {
		if b.nullBitmap != nil {
			b.nullBitmap.Release()
			b.nullBitmap = nil
		}
		if b.offsets != nil {
			b.offsets.Release()
			b.offsets = nil
		}
		if b.values != nil {
			b.values.Release()
			b.values = nil
		}
	}
}

func (b *BinaryBuilder) init(capacity int) {
	b.builder.init(capacity)
	b.offsets.resize((capacity + 1) * arrow.Int32SizeBytes)
}

func (b *BinaryBuilder) resizeHelper(n int) {
	nBuilder := n
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}
	if b.capacity == 0 {
		b.init(n)
	} else {
		b.builder.resize(nBuilder, b.init)
		b.offsets.resize((n + 1) * arrow.Int32SizeBytes)
		b.capacity = n
	}
}

func (b *BinaryBuilder) Reserve(n int) error {
	if err := checkReserve(n); err != nil {
		return err
	}
	b.builder.reserve(n, b.resizeHelper)
	return nil
}

// ReserveData ensures the value data buffer can take n more bytes without
// reallocation.
func (b *BinaryBuilder) ReserveData(n int) error {
	if err := checkReserve(n); err != nil {
		return err
	}
	if b.values.Cap() < b.values.Len()+n {
		b.values.resize(b.values.Len() + n)
	}
	return nil
}

func (b *BinaryBuilder) Resize(n int) error {
	if err := b.checkResize(n); err != nil {
		return err
	}
	b.resizeHelper(n)
	return nil
}

func (b *BinaryBuilder) Reset() {
	b.builder.reset()
	b.offsets.reset()
	b.values.reset()
}

// Append appends a value. It fails with ErrInvalid when the accumulated data
// bytes would overflow the int32 offset space.
func (b *BinaryBuilder) Append(v []byte) error {
	if int64(b.values.Len())+int64(len(v)) > binaryMemoryLimit {
		return fmt.Errorf("builder: binary data exceeds %d bytes: %w", int64(binaryMemoryLimit), ErrInvalid)
	}
	b.builder.reserve(1, b.resizeHelper)
	b.appendNextOffset()
	b.values.Append(v)
	b.unsafeAppendBoolToBitmap(true)
	return nil
}

// AppendString appends the bytes of a string value.
func (b *BinaryBuilder) AppendString(v string) error {
	return b.Append(unsafe.Slice(unsafe.StringData(v), len(v)))
}

// AppendNull appends a null, zero-length slot.
func (b *BinaryBuilder) AppendNull() {
	b.builder.reserve(1, b.resizeHelper)
	b.appendNextOffset()
	b.unsafeAppendBoolToBitmap(false)
}

// UnsafeAppend appends without capacity checks. Reserve and ReserveData must
// have been called beforehand.
func (b *BinaryBuilder) UnsafeAppend(v []byte) {
	b.appendNextOffset()
	b.values.unsafeAppend(v)
	bitutil.SetBit(b.nullBitmap.Bytes(), b.length)
	b.length++
}

// AppendValues appends values in one shot. valid must be empty (all valid)
// or of equal length to values.
func (b *BinaryBuilder) AppendValues(values [][]byte, valid []bool) error {
	if len(valid) != 0 && len(valid) != len(values) {
		return errValidityLength(len(values), len(valid))
	}
	if len(values) == 0 {
		return nil
	}

	var total int64
	for _, v := range values {
		total += int64(len(v))
	}
	if int64(b.values.Len())+total > binaryMemoryLimit {
		return fmt.Errorf("builder: binary data exceeds %d bytes: %w", int64(binaryMemoryLimit), ErrInvalid)
	}

	b.builder.reserve(len(values), b.resizeHelper)
	for _, v := range values {
		b.appendNextOffset()
		b.values.Append(v)
	}
	b.builder.unsafeAppendBoolsToBitmap(valid, len(values))
	return nil
}

// DataLen returns the number of bytes in the value data buffer.
func (b *BinaryBuilder) DataLen() int { return b.values.Len() }

// DataCap returns the byte capacity of the value data buffer.
func (b *BinaryBuilder) DataCap() int { return b.values.Cap() }

// Value returns a borrowed view of the i-th appended value. The view is
// invalidated by any mutating call.
func (b *BinaryBuilder) Value(i int) []byte {
	offsets := b.offsets.Values()
	start := int(offsets[i])
	var end int
	if i == b.length-1 {
		end = b.values.Len()
	} else {
		end = int(offsets[i+1])
	}
	return b.values.Bytes()[start:end]
}

// ValueStr returns the i-th appended value as a string. Unlike Value, the
// result remains valid across mutations.
func (b *BinaryBuilder) ValueStr(i int) string {
	return string(b.Value(i))
}

func (b *BinaryBuilder) appendNextOffset() {
	b.offsets.AppendValue(int32(b.values.Len()))
}

func (b *BinaryBuilder) newData() *array.Data {
	b.appendNextOffset()
	b.trimBitmap()

	values := b.values.Finish()
	offsets := b.offsets.Finish()
	res := array.NewData(b.dtype, b.length, []*memory.Buffer{b.nullBitmap, offsets, values}, nil, b.nulls, 0)

	if offsets != nil {
		offsets.Release()
	}
	if values != nil {
		values.Release()
	}
	b.builder.reset()

	return res
}

// Finish writes the trailing offset, detaches the buffers and returns the
// built array.
func (b *BinaryBuilder) Finish() (arrow.Array, error) {
	data := b.newData()
	defer data.Release()
	return array.MakeFromData(data), nil
}

// StringBuilder is a BinaryBuilder producing UTF-8 string arrays.
type StringBuilder struct {
	*BinaryBuilder
}

func NewStringBuilder(mem memory.Allocator) *StringBuilder {
	return &StringBuilder{NewBinaryBuilder(mem, arrow.BinaryTypes.String)}
}

// Append appends a string value.
func (b *StringBuilder) Append(v string) error {
	return b.BinaryBuilder.AppendString(v)
}

// Value returns the i-th appended value as a string.
func (b *StringBuilder) Value(i int) string {
	return string(b.BinaryBuilder.Value(i))
}

// AppendValues appends strings in one shot. valid must be empty (all valid)
// or of equal length to values.
func (b *StringBuilder) AppendValues(values []string, valid []bool) error {
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

// AppendPointers appends values where a nil pointer is a null slot. A nil
// entry is treated as null regardless of any validity the caller tracks.
func (b *StringBuilder) AppendPointers(values []*string) error {
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		if err := b.Append(*v); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ ColumnBuilder = (*BinaryBuilder)(nil)
	_ ColumnBuilder = (*StringBuilder)(nil)
)
