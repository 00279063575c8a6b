package builder

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// NewBuilder returns a builder for the given type. The dispatch is
// exhaustive over the supported type tags; anything else fails with
// ErrNotImplemented.
func NewBuilder(mem memory.Allocator, t arrow.DataType) (ColumnBuilder, error) {
	switch t := t.(type) {
	case *arrow.NullType:
		return NewNullBuilder(mem), nil
	case *arrow.BooleanType:
		return NewBooleanBuilder(mem), nil
	case *arrow.Int8Type:
		return NewInt8Builder(mem), nil
	case *arrow.Int16Type:
		return NewInt16Builder(mem), nil
	case *arrow.Int32Type:
		return NewInt32Builder(mem), nil
	case *arrow.Int64Type:
		return NewInt64Builder(mem), nil
	case *arrow.Uint8Type:
		return NewUint8Builder(mem), nil
	case *arrow.Uint16Type:
		return NewUint16Builder(mem), nil
	case *arrow.Uint32Type:
		return NewUint32Builder(mem), nil
	case *arrow.Uint64Type:
		return NewUint64Builder(mem), nil
	case *arrow.Float16Type:
		return NewHalfFloatBuilder(mem), nil
	case *arrow.Float32Type:
		return NewFloat32Builder(mem), nil
	case *arrow.Float64Type:
		return NewFloat64Builder(mem), nil
	case *arrow.Date32Type:
		return NewNumericBuilder[int32](mem, t), nil
	case *arrow.Date64Type:
		return NewNumericBuilder[int64](mem, t), nil
	case *arrow.Time32Type:
		return NewNumericBuilder[int32](mem, t), nil
	case *arrow.Time64Type:
		return NewNumericBuilder[int64](mem, t), nil
	case *arrow.TimestampType:
		return NewNumericBuilder[int64](mem, t), nil
	case *arrow.DurationType:
		return NewNumericBuilder[int64](mem, t), nil
	case *arrow.BinaryType:
		return NewBinaryBuilder(mem, t), nil
	case *arrow.StringType:
		return NewStringBuilder(mem), nil
	case *arrow.FixedSizeBinaryType:
		return NewFixedSizeBinaryBuilder(mem, t), nil
	case *arrow.Decimal128Type:
		return NewDecimal128Builder(mem, t), nil
	case *arrow.ListType:
		return NewListBuilder(mem, t.Elem())
	case *arrow.StructType:
		return NewStructBuilder(mem, t)
	case *arrow.DictionaryType:
		return newDictionaryColumnBuilder(mem, t)
	default:
		return nil, fmt.Errorf("builder: no builder for type %s: %w", t, ErrNotImplemented)
	}
}

// newDictionaryColumnBuilder dispatches on the dictionary's value type. The
// index width is always adaptive and the requested index type is not used:
// Finish emits indices at the width the codes require.
func newDictionaryColumnBuilder(mem memory.Allocator, t *arrow.DictionaryType) (ColumnBuilder, error) {
	switch vt := t.ValueType.(type) {
	case *arrow.NullType:
		return NewNullDictionaryBuilder(mem), nil
	case *arrow.Int8Type:
		return NewNumericDictionaryBuilder[int8](mem, vt), nil
	case *arrow.Int16Type:
		return NewNumericDictionaryBuilder[int16](mem, vt), nil
	case *arrow.Int32Type:
		return NewNumericDictionaryBuilder[int32](mem, vt), nil
	case *arrow.Int64Type:
		return NewNumericDictionaryBuilder[int64](mem, vt), nil
	case *arrow.Uint8Type:
		return NewNumericDictionaryBuilder[uint8](mem, vt), nil
	case *arrow.Uint16Type:
		return NewNumericDictionaryBuilder[uint16](mem, vt), nil
	case *arrow.Uint32Type:
		return NewNumericDictionaryBuilder[uint32](mem, vt), nil
	case *arrow.Uint64Type:
		return NewNumericDictionaryBuilder[uint64](mem, vt), nil
	case *arrow.Float32Type:
		return NewFloat32DictionaryBuilder(mem), nil
	case *arrow.Float64Type:
		return NewFloat64DictionaryBuilder(mem), nil
	case *arrow.Date32Type:
		return NewNumericDictionaryBuilder[int32](mem, vt), nil
	case *arrow.Date64Type:
		return NewNumericDictionaryBuilder[int64](mem, vt), nil
	case *arrow.Time32Type:
		return NewNumericDictionaryBuilder[int32](mem, vt), nil
	case *arrow.Time64Type:
		return NewNumericDictionaryBuilder[int64](mem, vt), nil
	case *arrow.TimestampType:
		return NewNumericDictionaryBuilder[int64](mem, vt), nil
	case *arrow.BinaryType:
		return NewBinaryDictionaryBuilder(mem), nil
	case *arrow.StringType:
		return NewStringDictionaryBuilder(mem), nil
	case *arrow.FixedSizeBinaryType:
		return NewFixedSizeBinaryDictionaryBuilder(mem, vt), nil
	case *arrow.Decimal128Type:
		return NewDecimal128DictionaryBuilder(mem, vt), nil
	default:
		return nil, fmt.Errorf("builder: no dictionary builder for value type %s: %w", vt, ErrNotImplemented)
	}
}
