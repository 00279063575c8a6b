package builder_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/polarsignals/colbuild/builder"
)

func TestStringScenario(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := builder.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer b.Release()

	require.NoError(t, b.Append([]byte{}))
	require.NoError(t, b.Append([]byte("a")))
	b.AppendNull()
	require.NoError(t, b.Append([]byte("bc")))

	require.Equal(t, 4, b.Len())
	require.Equal(t, 1, b.NullN())
	require.Equal(t, 3, b.DataLen())

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	bin := arr.(*array.Binary)
	require.Equal(t, []int32{0, 0, 1, 1, 3}, bin.ValueOffsets())
	require.Equal(t, "abc", string(bin.ValueBytes()))
	for i, valid := range []bool{true, true, false, true} {
		require.Equal(t, valid, bin.IsValid(i))
	}
}

func TestStringBuilderValues(t *testing.T) {
	b := builder.NewStringBuilder(memory.NewGoAllocator())
	defer b.Release()

	require.NoError(t, b.AppendValues([]string{"x", "", "z"}, []bool{true, false, true}))
	require.Equal(t, "x", b.Value(0))
	require.Equal(t, "z", b.Value(2))

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	str := arr.(*array.String)
	require.Equal(t, "x", str.Value(0))
	require.True(t, str.IsNull(1))
	require.Equal(t, "z", str.Value(2))
}

func TestStringAppendPointers(t *testing.T) {
	b := builder.NewStringBuilder(memory.NewGoAllocator())
	defer b.Release()

	a, c := "a", "c"
	require.NoError(t, b.AppendPointers([]*string{&a, nil, &c}))

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	str := arr.(*array.String)
	require.Equal(t, 3, str.Len())
	require.Equal(t, 1, str.NullN())
	require.True(t, str.IsNull(1))
	require.Equal(t, "c", str.Value(2))
}

func TestBinaryReserveData(t *testing.T) {
	b := builder.NewBinaryBuilder(memory.NewGoAllocator(), arrow.BinaryTypes.Binary)
	defer b.Release()

	require.NoError(t, b.ReserveData(1024))
	require.GreaterOrEqual(t, b.DataCap(), 1024)
	require.Equal(t, 0, b.DataLen())

	dataCap := b.DataCap()
	require.NoError(t, b.Append(make([]byte, 1024)))
	require.Equal(t, dataCap, b.DataCap())

	arr, err := b.Finish()
	require.NoError(t, err)
	arr.Release()
}

func TestBinaryValueViews(t *testing.T) {
	b := builder.NewBinaryBuilder(memory.NewGoAllocator(), arrow.BinaryTypes.Binary)
	defer b.Release()

	require.NoError(t, b.Append([]byte("hello")))
	require.NoError(t, b.Append([]byte("world")))
	require.Equal(t, []byte("hello"), b.Value(0))
	require.Equal(t, []byte("world"), b.Value(1))
	require.Equal(t, "world", b.ValueStr(1))

	arr, err := b.Finish()
	require.NoError(t, err)
	arr.Release()
}

func TestFixedSizeBinaryBuilder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := builder.NewFixedSizeBinaryBuilder(mem, &arrow.FixedSizeBinaryType{ByteWidth: 4})
	defer b.Release()

	require.NoError(t, b.Append([]byte("abcd")))
	b.AppendNull()
	require.ErrorIs(t, b.Append([]byte("toolong")), builder.ErrInvalid)
	require.Equal(t, 2, b.Len())

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	fsb := arr.(*array.FixedSizeBinary)
	require.Equal(t, []byte("abcd"), fsb.Value(0))
	require.True(t, fsb.IsNull(1))
}

func TestDecimal128Builder(t *testing.T) {
	b := builder.NewDecimal128Builder(memory.NewGoAllocator(), &arrow.Decimal128Type{Precision: 38, Scale: 2})
	defer b.Release()

	v := decimal128.FromI64(-12345)
	require.NoError(t, b.Append(v))
	b.AppendNull()
	require.Equal(t, v, b.Value(0))

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	dec := arr.(*array.Decimal128)
	require.Equal(t, 2, dec.Len())
	require.Equal(t, v, dec.Value(0))
	require.True(t, dec.IsNull(1))
}
