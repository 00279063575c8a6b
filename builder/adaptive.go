package builder

import (
	"math"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// pendingSize is the number of staged appends an adaptive builder holds
// before committing them to the data buffer.
const pendingSize = 1024

// adaptiveIntBuilderBase is the widening state machine shared by the signed
// and unsigned adaptive builders. Elements are stored at intSize bytes each
// and the whole committed buffer is rewritten in place whenever a staged
// value needs a wider representation.
//
// Scalar appends land in a fixed staging region first; length, null count
// and capacity reflect committed entries only until the next commit.
type adaptiveIntBuilderBase struct {
	builder

	data    *memory.Buffer
	rawData []byte
	intSize int
	signed  bool

	pendingData     [pendingSize]uint64
	pendingValid    [pendingSize]bool
	pendingPos      int
	pendingHasNulls bool
}

func (b *adaptiveIntBuilderBase) Release() {
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

// Type returns the integer type matching the current element width.
func (b *adaptiveIntBuilderBase) Type() arrow.DataType {
	if b.signed {
		switch b.intSize {
		case 1:
			return arrow.PrimitiveTypes.Int8
		case 2:
			return arrow.PrimitiveTypes.Int16
		case 4:
			return arrow.PrimitiveTypes.Int32
		default:
			return arrow.PrimitiveTypes.Int64
		}
	}
	switch b.intSize {
	case 1:
		return arrow.PrimitiveTypes.Uint8
	case 2:
		return arrow.PrimitiveTypes.Uint16
	case 4:
		return arrow.PrimitiveTypes.Uint32
	default:
		return arrow.PrimitiveTypes.Uint64
	}
}

// IntSize returns the current element width in bytes.
func (b *adaptiveIntBuilderBase) IntSize() int { return b.intSize }

func (b *adaptiveIntBuilderBase) init(capacity int) {
	b.builder.init(capacity)
	b.data = memory.NewResizableBuffer(b.mem)
	b.data.Resize(capacity * b.intSize)
	b.rawData = b.data.Bytes()
}

func (b *adaptiveIntBuilderBase) resizeHelper(n int) {
	nBuilder := n
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}
	if b.capacity == 0 {
		b.init(n)
	} else {
		b.builder.resize(nBuilder, b.init)
		b.data.ResizeNoShrink(n * b.intSize)
		b.capacity = n
		b.rawData = b.data.Bytes()
	}
}

func (b *adaptiveIntBuilderBase) Reserve(n int) error {
	if err := checkReserve(n); err != nil {
		return err
	}
	b.builder.reserve(n, b.resizeHelper)
	return nil
}

// Resize commits any staged entries, then grows the committed capacity.
func (b *adaptiveIntBuilderBase) Resize(n int) error {
	b.commitPendingData()
	if err := b.checkResize(n); err != nil {
		return err
	}
	b.resizeHelper(n)
	return nil
}

// Advance commits any staged entries, then bumps the committed length.
func (b *adaptiveIntBuilderBase) Advance(n int) error {
	b.commitPendingData()
	return b.builder.Advance(n)
}

func (b *adaptiveIntBuilderBase) Reset() {
	b.builder.reset()
	if b.data != nil {
		b.data.Release()
		b.data = nil
		b.rawData = nil
	}
	b.intSize = 1
	b.pendingPos = 0
	b.pendingHasNulls = false
}

// AppendNull stages a null entry.
func (b *adaptiveIntBuilderBase) AppendNull() {
	b.pendingData[b.pendingPos] = 0
	b.pendingValid[b.pendingPos] = false
	b.pendingHasNulls = true
	b.pendingPos++

	if b.pendingPos >= pendingSize {
		b.commitPendingData()
	}
}

func (b *adaptiveIntBuilderBase) appendPending(v uint64) {
	b.pendingData[b.pendingPos] = v
	b.pendingValid[b.pendingPos] = true
	b.pendingPos++

	if b.pendingPos >= pendingSize {
		b.commitPendingData()
	}
}

func (b *adaptiveIntBuilderBase) widthOf(v uint64) int {
	if b.signed {
		return signedWidth(int64(v))
	}
	return unsignedWidth(v)
}

// commitPendingData drains the staging region: it widens the committed
// buffer if any staged value requires it, then writes the staged values and
// their validity.
func (b *adaptiveIntBuilderBase) commitPendingData() {
	if b.pendingPos == 0 {
		return
	}

	newSize := b.intSize
	for i := 0; i < b.pendingPos; i++ {
		if b.pendingValid[i] {
			if w := b.widthOf(b.pendingData[i]); w > newSize {
				newSize = w
			}
		}
	}
	b.expandIntSize(newSize)

	b.builder.reserve(b.pendingPos, b.resizeHelper)
	for i := 0; i < b.pendingPos; i++ {
		v := b.pendingData[i]
		if !b.pendingValid[i] {
			v = 0
		}
		writeIntAt(b.rawData, b.length, b.intSize, v)
		b.unsafeAppendBoolToBitmap(b.pendingValid[i])
	}

	b.pendingPos = 0
	b.pendingHasNulls = false
}

// expandIntSize widens the committed buffer to newSize bytes per element,
// rewriting existing elements from the top down so that the in-place
// expansion never overwrites unread data. Widths never shrink.
func (b *adaptiveIntBuilderBase) expandIntSize(newSize int) {
	if newSize <= b.intSize {
		return
	}
	oldSize := b.intSize
	b.intSize = newSize

	if b.data == nil || b.capacity == 0 {
		return
	}
	b.data.ResizeNoShrink(b.capacity * newSize)
	b.rawData = b.data.Bytes()
	for i := b.length - 1; i >= 0; i-- {
		writeIntAt(b.rawData, i, newSize, readIntAt(b.rawData, i, oldSize, b.signed))
	}
}

func (b *adaptiveIntBuilderBase) appendValuesInternal(values []uint64, valid []bool) error {
	if len(valid) != 0 && len(valid) != len(values) {
		return errValidityLength(len(values), len(valid))
	}
	if len(values) == 0 {
		return nil
	}

	b.commitPendingData()

	newSize := b.intSize
	for i, v := range values {
		if len(valid) != 0 && !valid[i] {
			continue
		}
		if w := b.widthOf(v); w > newSize {
			newSize = w
		}
	}
	b.expandIntSize(newSize)

	b.builder.reserve(len(values), b.resizeHelper)
	for i, v := range values {
		if len(valid) != 0 && !valid[i] {
			v = 0
		}
		writeIntAt(b.rawData, b.length+i, b.intSize, v)
	}
	b.unsafeAppendBoolsToBitmap(valid, len(values))
	return nil
}

func (b *adaptiveIntBuilderBase) newData() *array.Data {
	b.commitPendingData()
	b.trimBitmap()
	bytesRequired := b.length * b.intSize
	if b.data != nil && bytesRequired < b.data.Len() {
		b.data.Resize(bytesRequired)
	}
	res := array.NewData(b.Type(), b.length, []*memory.Buffer{b.nullBitmap, b.data}, nil, b.nulls, 0)

	if b.data != nil {
		b.data.Release()
		b.data = nil
		b.rawData = nil
	}
	b.builder.reset()
	b.intSize = 1

	return res
}

// Finish commits staged entries, trims the buffers and returns an array of
// the integer type matching the final element width.
func (b *adaptiveIntBuilderBase) Finish() (arrow.Array, error) {
	data := b.newData()
	defer data.Release()
	return array.MakeFromData(data), nil
}

// AdaptiveIntBuilder builds arrays of signed integers, starting at one byte
// per element and widening as appended values require.
type AdaptiveIntBuilder struct {
	adaptiveIntBuilderBase
}

func NewAdaptiveIntBuilder(mem memory.Allocator) *AdaptiveIntBuilder {
	return &AdaptiveIntBuilder{adaptiveIntBuilderBase{
		builder: builder{refCount: 1, mem: mem, dtype: arrow.PrimitiveTypes.Int8},
		intSize: 1,
		signed:  true,
	}}
}

// Append stages a value.
func (b *AdaptiveIntBuilder) Append(v int64) {
	b.appendPending(uint64(v))
}

// AppendValues commits staged entries, then appends values in one shot at
// the width the widest of them requires.
func (b *AdaptiveIntBuilder) AppendValues(values []int64, valid []bool) error {
	return b.appendValuesInternal(castInt64ToUint64(values), valid)
}

// Value returns the i-th committed value, sign extended to 64 bits.
func (b *AdaptiveIntBuilder) Value(i int) int64 {
	return int64(readIntAt(b.rawData, i, b.intSize, true))
}

// AdaptiveUintBuilder is the unsigned counterpart of AdaptiveIntBuilder.
type AdaptiveUintBuilder struct {
	adaptiveIntBuilderBase
}

func NewAdaptiveUintBuilder(mem memory.Allocator) *AdaptiveUintBuilder {
	return &AdaptiveUintBuilder{adaptiveIntBuilderBase{
		builder: builder{refCount: 1, mem: mem, dtype: arrow.PrimitiveTypes.Uint8},
		intSize: 1,
		signed:  false,
	}}
}

// Append stages a value.
func (b *AdaptiveUintBuilder) Append(v uint64) {
	b.appendPending(v)
}

// AppendValues commits staged entries, then appends values in one shot at
// the width the widest of them requires.
func (b *AdaptiveUintBuilder) AppendValues(values []uint64, valid []bool) error {
	return b.appendValuesInternal(values, valid)
}

// Value returns the i-th committed value.
func (b *AdaptiveUintBuilder) Value(i int) uint64 {
	return readIntAt(b.rawData, i, b.intSize, false)
}

func signedWidth(v int64) int {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return 1
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return 2
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return 4
	default:
		return 8
	}
}

func unsignedWidth(v uint64) int {
	switch {
	case v <= math.MaxUint8:
		return 1
	case v <= math.MaxUint16:
		return 2
	case v <= math.MaxUint32:
		return 4
	default:
		return 8
	}
}

func readIntAt(buf []byte, i, size int, signed bool) uint64 {
	switch size {
	case 1:
		if signed {
			return uint64(int64(int8(buf[i])))
		}
		return uint64(buf[i])
	case 2:
		v := castFromBytes[uint16](buf)[i]
		if signed {
			return uint64(int64(int16(v)))
		}
		return uint64(v)
	case 4:
		v := castFromBytes[uint32](buf)[i]
		if signed {
			return uint64(int64(int32(v)))
		}
		return uint64(v)
	default:
		return castFromBytes[uint64](buf)[i]
	}
}

func writeIntAt(buf []byte, i, size int, v uint64) {
	switch size {
	case 1:
		buf[i] = uint8(v)
	case 2:
		castFromBytes[uint16](buf)[i] = uint16(v)
	case 4:
		castFromBytes[uint32](buf)[i] = uint32(v)
	default:
		castFromBytes[uint64](buf)[i] = v
	}
}

func castInt64ToUint64(values []int64) []uint64 {
	return castFromBytes[uint64](castToBytes(values))
}

var (
	_ ColumnBuilder = (*AdaptiveIntBuilder)(nil)
	_ ColumnBuilder = (*AdaptiveUintBuilder)(nil)
)
