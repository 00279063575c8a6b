package builder_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/polarsignals/colbuild/builder"
)

func structType() *arrow.StructType {
	return arrow.StructOf(
		arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		arrow.Field{Name: "b", Type: arrow.BinaryTypes.String, Nullable: true},
	)
}

func TestStructScenario(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b, err := builder.NewStructBuilder(mem, structType())
	require.NoError(t, err)
	defer b.Release()

	require.Equal(t, 2, b.NumField())

	a := b.FieldBuilder(0).(*builder.NumericBuilder[int32])
	s := b.FieldBuilder(1).(*builder.StringBuilder)

	b.Append(true)
	a.Append(1)
	require.NoError(t, s.Append("x"))

	b.Append(true)
	a.Append(2)
	s.AppendNull()

	b.Append(false)
	a.AppendNull()
	require.NoError(t, s.Append("y"))

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	st := arr.(*array.Struct)
	require.Equal(t, 3, st.Len())
	require.Equal(t, 1, st.NullN())
	require.True(t, st.IsNull(2))

	fieldA := st.Field(0).(*array.Int32)
	require.Equal(t, 1, fieldA.NullN())
	require.Equal(t, int32(1), fieldA.Value(0))
	require.Equal(t, int32(2), fieldA.Value(1))

	fieldB := st.Field(1).(*array.String)
	require.Equal(t, 1, fieldB.NullN())
	require.Equal(t, "x", fieldB.Value(0))
	require.Equal(t, "y", fieldB.Value(2))
}

func TestStructLengthMismatch(t *testing.T) {
	b, err := builder.NewStructBuilder(memory.NewGoAllocator(), structType())
	require.NoError(t, err)
	defer b.Release()

	b.Append(true)
	b.FieldBuilder(0).(*builder.NumericBuilder[int32]).Append(1)
	// Field b never appended.

	_, err = b.Finish()
	require.ErrorIs(t, err, builder.ErrInvalid)
}

func TestStructAppendValues(t *testing.T) {
	b, err := builder.NewStructBuilder(memory.NewGoAllocator(), structType())
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.AppendValues(3, []byte{1, 0, 1}))
	require.Equal(t, 3, b.Len())
	require.Equal(t, 1, b.NullN())

	a := b.FieldBuilder(0).(*builder.NumericBuilder[int32])
	s := b.FieldBuilder(1).(*builder.StringBuilder)
	for i := 0; i < 3; i++ {
		a.Append(int32(i))
		require.NoError(t, s.Append("v"))
	}

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()
	require.Equal(t, 1, arr.NullN())
}
