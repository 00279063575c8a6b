package builder_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/polarsignals/colbuild/builder"
)

func TestListScenario(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b, err := builder.NewListBuilder(mem, arrow.PrimitiveTypes.Int32)
	require.NoError(t, err)
	defer b.Release()

	values := b.ValueBuilder().(*builder.NumericBuilder[int32])

	require.NoError(t, b.Append(true))
	values.Append(10)
	values.Append(20)
	require.NoError(t, b.Append(true))
	values.Append(30)
	values.Append(40)
	require.NoError(t, b.Append(true))

	require.Equal(t, 3, b.Len())

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	list := arr.(*array.List)
	require.Equal(t, 3, list.Len())
	require.Equal(t, 4, list.ListValues().Len())

	wantOffsets := [][2]int64{{0, 2}, {2, 4}, {4, 4}}
	for i, want := range wantOffsets {
		start, end := list.ValueOffsets(i)
		require.Equal(t, want[0], start)
		require.Equal(t, want[1], end)
	}

	child := list.ListValues().(*array.Int32)
	require.Equal(t, []int32{10, 20, 30, 40}, child.Int32Values())
}

func TestListNulls(t *testing.T) {
	b, err := builder.NewListBuilder(memory.NewGoAllocator(), arrow.BinaryTypes.String)
	require.NoError(t, err)
	defer b.Release()

	values := b.ValueBuilder().(*builder.StringBuilder)

	require.NoError(t, b.Append(true))
	require.NoError(t, values.Append("a"))
	b.AppendNull()
	require.NoError(t, b.Append(true))
	require.NoError(t, values.Append("b"))
	require.NoError(t, values.Append("c"))

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	list := arr.(*array.List)
	require.Equal(t, 3, list.Len())
	require.Equal(t, 1, list.NullN())
	require.True(t, list.IsNull(1))

	start, end := list.ValueOffsets(2)
	require.Equal(t, int64(1), start)
	require.Equal(t, int64(3), end)
}

func TestListAppendValues(t *testing.T) {
	b, err := builder.NewListBuilder(memory.NewGoAllocator(), arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)
	defer b.Release()

	values := b.ValueBuilder().(*builder.NumericBuilder[int64])
	for i := int64(0); i < 6; i++ {
		values.Append(i)
	}
	require.NoError(t, b.AppendValues([]int32{0, 3, 5}, []bool{true, true, true}))

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	list := arr.(*array.List)
	require.Equal(t, 3, list.Len())
	start, end := list.ValueOffsets(2)
	require.Equal(t, int64(5), start)
	require.Equal(t, int64(6), end)
}

func TestListReuse(t *testing.T) {
	b, err := builder.NewListBuilder(memory.NewGoAllocator(), arrow.PrimitiveTypes.Int32)
	require.NoError(t, err)
	defer b.Release()

	values := b.ValueBuilder().(*builder.NumericBuilder[int32])
	require.NoError(t, b.Append(true))
	values.Append(1)

	arr, err := b.Finish()
	require.NoError(t, err)
	arr.Release()

	// The child resets along with the list builder.
	require.Equal(t, 0, b.Len())
	require.Equal(t, 0, b.ValueBuilder().Len())

	require.NoError(t, b.Append(true))
	values.Append(7)
	arr, err = b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	list := arr.(*array.List)
	require.Equal(t, 1, list.Len())
	require.Equal(t, int32(7), list.ListValues().(*array.Int32).Value(0))
}
