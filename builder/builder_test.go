package builder_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/polarsignals/colbuild/builder"
)

func TestInt32Scenario(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := builder.NewInt32Builder(mem)
	defer b.Release()

	b.Append(1)
	b.Append(2)
	b.AppendNull()
	b.Append(4)

	require.Equal(t, 4, b.Len())
	require.Equal(t, 1, b.NullN())

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	i32 := arr.(*array.Int32)
	require.Equal(t, 4, i32.Len())
	require.Equal(t, 1, i32.NullN())
	require.Equal(t, []int32{1, 2, 0, 4}, i32.Int32Values())
	for i, valid := range []bool{true, true, false, true} {
		require.Equal(t, valid, i32.IsValid(i))
	}

	// Finish resets the builder for reuse.
	require.Equal(t, 0, b.Len())
	require.Equal(t, 0, b.Cap())
	require.Equal(t, 0, b.NullN())
}

func TestCapacityFloorAndGrowth(t *testing.T) {
	b := builder.NewInt64Builder(memory.NewGoAllocator())
	defer b.Release()

	require.NoError(t, b.Reserve(1))
	require.Equal(t, 32, b.Cap())

	require.NoError(t, b.Reserve(33))
	require.Equal(t, 64, b.Cap())

	// Idempotent when already large enough.
	require.NoError(t, b.Reserve(10))
	require.Equal(t, 64, b.Cap())
}

func TestResizeErrors(t *testing.T) {
	b := builder.NewInt64Builder(memory.NewGoAllocator())
	defer b.Release()

	require.NoError(t, b.Resize(64))
	require.Equal(t, 64, b.Cap())

	err := b.Resize(32)
	require.ErrorIs(t, err, builder.ErrInvalid)

	err = b.Resize(-1)
	require.ErrorIs(t, err, builder.ErrInvalid)

	err = b.Reserve(-1)
	require.ErrorIs(t, err, builder.ErrInvalid)
}

func TestResizePreservesData(t *testing.T) {
	b := builder.NewInt64Builder(memory.NewGoAllocator())
	defer b.Release()

	for i := int64(0); i < 100; i++ {
		b.Append(i)
	}
	require.NoError(t, b.Resize(4096))

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	i64 := arr.(*array.Int64)
	require.Equal(t, 100, i64.Len())
	for i := 0; i < 100; i++ {
		require.Equal(t, int64(i), i64.Value(i))
	}
}

func TestAdvance(t *testing.T) {
	b := builder.NewInt32Builder(memory.NewGoAllocator())
	defer b.Release()

	require.NoError(t, b.Reserve(8))
	require.ErrorIs(t, b.Advance(b.Cap()+1), builder.ErrInvalid)
	require.NoError(t, b.Advance(4))
	require.Equal(t, 4, b.Len())
}

func TestAppendValues(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := builder.NewFloat64Builder(mem)
	defer b.Release()

	require.NoError(t, b.AppendValues([]float64{1.5, 2.5, 3.5}, nil))
	require.NoError(t, b.AppendValues([]float64{0, 5.5}, []bool{false, true}))
	require.ErrorIs(t, b.AppendValues([]float64{1}, []bool{true, true}), builder.ErrInvalid)

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	f64 := arr.(*array.Float64)
	require.Equal(t, 5, f64.Len())
	require.Equal(t, 1, f64.NullN())
	require.True(t, f64.IsNull(3))
	require.Equal(t, 5.5, f64.Value(4))
}

func TestNullBuilder(t *testing.T) {
	b := builder.NewNullBuilder(memory.NewGoAllocator())
	defer b.Release()

	b.AppendNull()
	b.AppendNulls(2)
	require.Equal(t, 3, b.Len())
	require.Equal(t, 3, b.NullN())

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	require.Equal(t, arrow.NULL, arr.DataType().ID())
	require.Equal(t, 3, arr.Len())
	require.Equal(t, 3, arr.NullN())
}

func TestHalfFloatBuilder(t *testing.T) {
	b := builder.NewHalfFloatBuilder(memory.NewGoAllocator())
	defer b.Release()

	b.Append(float16.New(1.5))
	b.AppendNull()

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	f16 := arr.(*array.Float16)
	require.Equal(t, 2, f16.Len())
	require.Equal(t, float32(1.5), f16.Value(0).Float32())
	require.True(t, f16.IsNull(1))
}
