package builder

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/polarsignals/colbuild/internal/memo"
)

// dictionaryBuilder holds the state shared by every dictionary builder:
// the embedded adaptive builder of codes and the delta bookkeeping. The
// memo table lives in the typed wrappers since its key shape differs per
// value type. Unlike the other builders, Finish does not clear the memo:
// subsequent Finishes emit only the values observed since the previous one.
type dictionaryBuilder struct {
	refCount  int64
	mem       memory.Allocator
	valueType arrow.DataType

	indices     *AdaptiveIntBuilder
	length      int
	nulls       int
	deltaOffset int
}

func newDictionaryBuilder(mem memory.Allocator, valueType arrow.DataType) dictionaryBuilder {
	return dictionaryBuilder{
		refCount:  1,
		mem:       mem,
		valueType: valueType,
		indices:   NewAdaptiveIntBuilder(mem),
	}
}

func (b *dictionaryBuilder) Retain() {
	atomic.AddInt64(&b.refCount, 1)
}

func (b *dictionaryBuilder) Release() {
	if atomic.AddInt64(&b.refCount, -1) == 0 {
		b.indices.Release()
	}
}

// Type returns the dictionary type at the current index width.
func (b *dictionaryBuilder) Type() arrow.DataType {
	return &arrow.DictionaryType{IndexType: b.indices.Type().(arrow.FixedWidthDataType), ValueType: b.valueType}
}

func (b *dictionaryBuilder) Len() int   { return b.length }
func (b *dictionaryBuilder) Cap() int   { return b.indices.Cap() }
func (b *dictionaryBuilder) NullN() int { return b.nulls }

// IsBuildingDelta reports whether the next Finish will emit a delta
// dictionary rather than the full one.
func (b *dictionaryBuilder) IsBuildingDelta() bool { return b.deltaOffset > 0 }

func (b *dictionaryBuilder) Reserve(n int) error { return b.indices.Reserve(n) }
func (b *dictionaryBuilder) Resize(n int) error  { return b.indices.Resize(n) }

func (b *dictionaryBuilder) Advance(n int) error {
	if err := b.indices.Advance(n); err != nil {
		return err
	}
	b.length += n
	return nil
}

// AppendNull appends a null slot. Nulls never enter the dictionary.
func (b *dictionaryBuilder) AppendNull() {
	b.indices.AppendNull()
	b.length++
	b.nulls++
}

func (b *dictionaryBuilder) appendCode(code int) {
	b.indices.Append(int64(code))
	b.length++
}

// finishWith assembles the dictionary array: the indices from the embedded
// adaptive builder and the delta value range [deltaOffset, distinct) built
// by newDict. The memo table is left untouched.
func (b *dictionaryBuilder) finishWith(distinct int, newDict func(start int) (arrow.Array, error)) (arrow.Array, error) {
	idx, err := b.indices.Finish()
	if err != nil {
		return nil, err
	}
	defer idx.Release()

	dict, err := newDict(b.deltaOffset)
	if err != nil {
		return nil, err
	}
	defer dict.Release()

	b.deltaOffset = distinct
	b.length = 0
	b.nulls = 0

	dt := &arrow.DictionaryType{IndexType: idx.DataType().(arrow.FixedWidthDataType), ValueType: b.valueType}
	return array.NewDictionaryArray(dt, idx, dict), nil
}

// NumericDictionaryBuilder dictionary-encodes fixed-width scalars. Values
// are memoised by their bit pattern, so NaNs collide exactly when their bits
// are identical.
type NumericDictionaryBuilder[T fixedWidth] struct {
	dictionaryBuilder

	memo *memo.Uint64Table
	bits func(T) uint64
	from func(uint64) T
}

func newNumericDictionaryBuilder[T fixedWidth](
	mem memory.Allocator,
	valueType arrow.DataType,
	bits func(T) uint64,
	from func(uint64) T,
) *NumericDictionaryBuilder[T] {
	return &NumericDictionaryBuilder[T]{
		dictionaryBuilder: newDictionaryBuilder(mem, valueType),
		memo:              memo.NewUint64Table(),
		bits:              bits,
		from:              from,
	}
}

// NewNumericDictionaryBuilder returns a dictionary builder for an integer
// valued type. T must match the physical width of valueType.
func NewNumericDictionaryBuilder[T intWidth](mem memory.Allocator, valueType arrow.DataType) *NumericDictionaryBuilder[T] {
	return newNumericDictionaryBuilder[T](mem, valueType,
		func(v T) uint64 { return uint64(int64(v)) },
		func(u uint64) T { return T(u) },
	)
}

func NewFloat32DictionaryBuilder(mem memory.Allocator) *NumericDictionaryBuilder[float32] {
	return newNumericDictionaryBuilder[float32](mem, arrow.PrimitiveTypes.Float32,
		func(v float32) uint64 { return uint64(math.Float32bits(v)) },
		func(u uint64) float32 { return math.Float32frombits(uint32(u)) },
	)
}

func NewFloat64DictionaryBuilder(mem memory.Allocator) *NumericDictionaryBuilder[float64] {
	return newNumericDictionaryBuilder[float64](mem, arrow.PrimitiveTypes.Float64,
		math.Float64bits,
		math.Float64frombits,
	)
}

// Append memoises v and appends its code.
func (b *NumericDictionaryBuilder[T]) Append(v T) {
	code, _ := b.memo.GetOrInsert(b.bits(v))
	b.appendCode(code)
}

// AppendArray appends every slot of a dense array, preserving its validity.
func (b *NumericDictionaryBuilder[T]) AppendArray(arr arrow.Array) error {
	if !arrow.TypeEqual(arr.DataType(), b.valueType) {
		return fmt.Errorf("builder: dictionary of %s cannot append array of %s: %w", b.valueType, arr.DataType(), ErrTypeMismatch)
	}
	data := arr.Data()
	values := castFromBytes[T](data.Buffers()[1].Bytes())
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(values[data.Offset()+i])
	}
	return nil
}

func (b *NumericDictionaryBuilder[T]) Reset() {
	b.indices.Reset()
	b.memo = memo.NewUint64Table()
	b.length = 0
	b.nulls = 0
	b.deltaOffset = 0
}

// Finish emits the index array and the delta dictionary, retaining the memo
// table for subsequent batches.
func (b *NumericDictionaryBuilder[T]) Finish() (arrow.Array, error) {
	return b.finishWith(b.memo.Size(), func(start int) (arrow.Array, error) {
		values := NewNumericBuilder[T](b.mem, b.valueType)
		defer values.Release()
		for i := start; i < b.memo.Size(); i++ {
			values.Append(b.from(b.memo.Value(i)))
		}
		return values.Finish()
	})
}

// BinaryDictionaryBuilder dictionary-encodes variable-length byte strings by
// byte identity.
type BinaryDictionaryBuilder struct {
	dictionaryBuilder

	memo *memo.BinaryTable
}

func NewBinaryDictionaryBuilder(mem memory.Allocator) *BinaryDictionaryBuilder {
	return &BinaryDictionaryBuilder{
		dictionaryBuilder: newDictionaryBuilder(mem, arrow.BinaryTypes.Binary),
		memo:              memo.NewBinaryTable(),
	}
}

// Append memoises v and appends its code.
func (b *BinaryDictionaryBuilder) Append(v []byte) {
	code, _ := b.memo.GetOrInsert(v)
	b.appendCode(code)
}

// AppendArray appends every slot of a dense binary array, preserving its
// validity.
func (b *BinaryDictionaryBuilder) AppendArray(arr arrow.Array) error {
	bin, ok := arr.(*array.Binary)
	if !ok {
		return fmt.Errorf("builder: dictionary of %s cannot append array of %s: %w", b.valueType, arr.DataType(), ErrTypeMismatch)
	}
	for i := 0; i < bin.Len(); i++ {
		if bin.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(bin.Value(i))
	}
	return nil
}

func (b *BinaryDictionaryBuilder) Reset() {
	b.indices.Reset()
	b.memo = memo.NewBinaryTable()
	b.length = 0
	b.nulls = 0
	b.deltaOffset = 0
}

func (b *BinaryDictionaryBuilder) Finish() (arrow.Array, error) {
	return b.finishWith(b.memo.Size(), func(start int) (arrow.Array, error) {
		values := NewBinaryBuilder(b.mem, arrow.BinaryTypes.Binary)
		defer values.Release()
		for i := start; i < b.memo.Size(); i++ {
			if err := values.Append(b.memo.Value(i)); err != nil {
				return nil, err
			}
		}
		return values.Finish()
	})
}

// StringDictionaryBuilder dictionary-encodes UTF-8 strings by byte identity.
type StringDictionaryBuilder struct {
	dictionaryBuilder

	memo *memo.BinaryTable
}

func NewStringDictionaryBuilder(mem memory.Allocator) *StringDictionaryBuilder {
	return &StringDictionaryBuilder{
		dictionaryBuilder: newDictionaryBuilder(mem, arrow.BinaryTypes.String),
		memo:              memo.NewBinaryTable(),
	}
}

// Append memoises v and appends its code.
func (b *StringDictionaryBuilder) Append(v string) {
	code, _ := b.memo.GetOrInsert([]byte(v))
	b.appendCode(code)
}

// AppendArray appends every slot of a dense string array, preserving its
// validity.
func (b *StringDictionaryBuilder) AppendArray(arr arrow.Array) error {
	str, ok := arr.(*array.String)
	if !ok {
		return fmt.Errorf("builder: dictionary of %s cannot append array of %s: %w", b.valueType, arr.DataType(), ErrTypeMismatch)
	}
	for i := 0; i < str.Len(); i++ {
		if str.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(str.Value(i))
	}
	return nil
}

func (b *StringDictionaryBuilder) Reset() {
	b.indices.Reset()
	b.memo = memo.NewBinaryTable()
	b.length = 0
	b.nulls = 0
	b.deltaOffset = 0
}

func (b *StringDictionaryBuilder) Finish() (arrow.Array, error) {
	return b.finishWith(b.memo.Size(), func(start int) (arrow.Array, error) {
		values := NewStringBuilder(b.mem)
		defer values.Release()
		for i := start; i < b.memo.Size(); i++ {
			if err := values.BinaryBuilder.Append(b.memo.Value(i)); err != nil {
				return nil, err
			}
		}
		return values.Finish()
	})
}

// FixedSizeBinaryDictionaryBuilder dictionary-encodes constant-width blobs
// by byte identity over byteWidth bytes.
type FixedSizeBinaryDictionaryBuilder struct {
	dictionaryBuilder

	memo      *memo.BinaryTable
	byteWidth int
}

func NewFixedSizeBinaryDictionaryBuilder(mem memory.Allocator, valueType *arrow.FixedSizeBinaryType) *FixedSizeBinaryDictionaryBuilder {
	return &FixedSizeBinaryDictionaryBuilder{
		dictionaryBuilder: newDictionaryBuilder(mem, valueType),
		memo:              memo.NewBinaryTable(),
		byteWidth:         valueType.ByteWidth,
	}
}

// Append memoises v and appends its code.
func (b *FixedSizeBinaryDictionaryBuilder) Append(v []byte) error {
	if len(v) != b.byteWidth {
		return fmt.Errorf("builder: fixed size binary value of %d bytes, want %d: %w", len(v), b.byteWidth, ErrInvalid)
	}
	code, _ := b.memo.GetOrInsert(v)
	b.appendCode(code)
	return nil
}

// AppendArray appends every slot of a dense fixed-size binary array,
// preserving its validity.
func (b *FixedSizeBinaryDictionaryBuilder) AppendArray(arr arrow.Array) error {
	fsb, ok := arr.(*array.FixedSizeBinary)
	if !ok || !arrow.TypeEqual(arr.DataType(), b.valueType) {
		return fmt.Errorf("builder: dictionary of %s cannot append array of %s: %w", b.valueType, arr.DataType(), ErrTypeMismatch)
	}
	for i := 0; i < fsb.Len(); i++ {
		if fsb.IsNull(i) {
			b.AppendNull()
			continue
		}
		if err := b.Append(fsb.Value(i)); err != nil {
			return err
		}
	}
	return nil
}

func (b *FixedSizeBinaryDictionaryBuilder) Reset() {
	b.indices.Reset()
	b.memo = memo.NewBinaryTable()
	b.length = 0
	b.nulls = 0
	b.deltaOffset = 0
}

func (b *FixedSizeBinaryDictionaryBuilder) Finish() (arrow.Array, error) {
	return b.finishWith(b.memo.Size(), func(start int) (arrow.Array, error) {
		values := NewFixedSizeBinaryBuilder(b.mem, b.valueType.(*arrow.FixedSizeBinaryType))
		defer values.Release()
		for i := start; i < b.memo.Size(); i++ {
			if err := values.Append(b.memo.Value(i)); err != nil {
				return nil, err
			}
		}
		return values.Finish()
	})
}

// Decimal128DictionaryBuilder dictionary-encodes decimals by the byte
// identity of their 16-byte representation.
type Decimal128DictionaryBuilder struct {
	FixedSizeBinaryDictionaryBuilder
}

func NewDecimal128DictionaryBuilder(mem memory.Allocator, valueType *arrow.Decimal128Type) *Decimal128DictionaryBuilder {
	b := &Decimal128DictionaryBuilder{
		FixedSizeBinaryDictionaryBuilder{
			dictionaryBuilder: newDictionaryBuilder(mem, valueType),
			memo:              memo.NewBinaryTable(),
			byteWidth:         arrow.Decimal128SizeBytes,
		},
	}
	return b
}

// Append memoises v and appends its code.
func (b *Decimal128DictionaryBuilder) Append(v decimal128.Num) error {
	var buf [arrow.Decimal128SizeBytes]byte
	putDecimal128(buf[:], v)
	return b.FixedSizeBinaryDictionaryBuilder.Append(buf[:])
}

// AppendArray appends every slot of a dense decimal array, preserving its
// validity.
func (b *Decimal128DictionaryBuilder) AppendArray(arr arrow.Array) error {
	dec, ok := arr.(*array.Decimal128)
	if !ok {
		return fmt.Errorf("builder: dictionary of %s cannot append array of %s: %w", b.valueType, arr.DataType(), ErrTypeMismatch)
	}
	for i := 0; i < dec.Len(); i++ {
		if dec.IsNull(i) {
			b.AppendNull()
			continue
		}
		if err := b.Append(dec.Value(i)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Decimal128DictionaryBuilder) Finish() (arrow.Array, error) {
	return b.finishWith(b.memo.Size(), func(start int) (arrow.Array, error) {
		values := NewDecimal128Builder(b.mem, b.valueType.(*arrow.Decimal128Type))
		defer values.Release()
		for i := start; i < b.memo.Size(); i++ {
			if err := values.FixedSizeBinaryBuilder.Append(b.memo.Value(i)); err != nil {
				return nil, err
			}
		}
		return values.Finish()
	})
}

// NullDictionaryBuilder is the null-type specialisation: it has no memo
// table and only counts nulls through the embedded index builder.
type NullDictionaryBuilder struct {
	dictionaryBuilder
}

func NewNullDictionaryBuilder(mem memory.Allocator) *NullDictionaryBuilder {
	return &NullDictionaryBuilder{newDictionaryBuilder(mem, arrow.Null)}
}

// AppendArray appends a null array's slots. Any valid slot in the input
// fails with ErrTypeMismatch.
func (b *NullDictionaryBuilder) AppendArray(arr arrow.Array) error {
	if arr.DataType().ID() != arrow.NULL {
		return fmt.Errorf("builder: null dictionary cannot append array of %s: %w", arr.DataType(), ErrTypeMismatch)
	}
	for i := 0; i < arr.Len(); i++ {
		b.AppendNull()
	}
	return nil
}

func (b *NullDictionaryBuilder) Reset() {
	b.indices.Reset()
	b.length = 0
	b.nulls = 0
	b.deltaOffset = 0
}

// Finish emits the index array and an empty null dictionary.
func (b *NullDictionaryBuilder) Finish() (arrow.Array, error) {
	return b.finishWith(0, func(int) (arrow.Array, error) {
		return array.NewNull(0), nil
	})
}

var (
	_ ColumnBuilder = (*NumericDictionaryBuilder[int64])(nil)
	_ ColumnBuilder = (*BinaryDictionaryBuilder)(nil)
	_ ColumnBuilder = (*StringDictionaryBuilder)(nil)
	_ ColumnBuilder = (*FixedSizeBinaryDictionaryBuilder)(nil)
	_ ColumnBuilder = (*Decimal128DictionaryBuilder)(nil)
	_ ColumnBuilder = (*NullDictionaryBuilder)(nil)
)
