package records_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/polarsignals/colbuild/internal/records"
)

type sample struct {
	ExampleType string    `colbuild:"example_type,dict"`
	Node        *string   `colbuild:"node"`
	Stacktrace  uuid.UUID `colbuild:"stacktrace"`
	Values      []int64   `colbuild:"values"`
	Payload     []byte    `colbuild:"payload"`
	Timestamp   int64     `colbuild:"timestamp"`
	Weight      float64
	Enabled     bool
}

func TestBuildSchema(t *testing.T) {
	b := records.NewBuild[sample](memory.NewGoAllocator())
	defer b.Release()

	st := b.Schema()
	require.Equal(t, 8, st.NumFields())

	f, ok := st.FieldByName("example_type")
	require.True(t, ok)
	require.Equal(t, arrow.DICTIONARY, f.Type.ID())

	f, ok = st.FieldByName("stacktrace")
	require.True(t, ok)
	require.Equal(t, &arrow.FixedSizeBinaryType{ByteWidth: 16}, f.Type)

	f, ok = st.FieldByName("values")
	require.True(t, ok)
	require.Equal(t, arrow.ListOf(arrow.PrimitiveTypes.Int64), f.Type)

	// Untagged fields derive snake_cased names.
	_, ok = st.FieldByName("weight")
	require.True(t, ok)
	_, ok = st.FieldByName("enabled")
	require.True(t, ok)
}

func TestBuildAppend(t *testing.T) {
	b := records.NewBuild[sample](memory.NewGoAllocator())
	defer b.Release()

	node := "node-1"
	id := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	err := b.Append(
		sample{ExampleType: "cpu", Node: &node, Stacktrace: id, Values: []int64{1, 2}, Payload: []byte("p"), Timestamp: 9, Weight: 0.5, Enabled: true},
		sample{ExampleType: "cpu", Values: nil, Timestamp: 10},
		sample{ExampleType: "mem", Values: []int64{3}, Timestamp: 11},
	)
	require.NoError(t, err)

	arr, err := b.NewStructArray()
	require.NoError(t, err)
	defer arr.Release()

	require.Equal(t, 3, arr.Len())

	st := b.Schema()
	idx := func(name string) int {
		i, ok := st.FieldIdx(name)
		require.True(t, ok)
		return i
	}

	kinds := arr.Field(idx("example_type")).(*array.Dictionary)
	require.Equal(t, kinds.GetValueIndex(0), kinds.GetValueIndex(1))
	require.NotEqual(t, kinds.GetValueIndex(0), kinds.GetValueIndex(2))
	require.Equal(t, 2, kinds.Dictionary().Len())

	nodes := arr.Field(idx("node")).(*array.String)
	require.Equal(t, "node-1", nodes.Value(0))
	require.True(t, nodes.IsNull(1))

	traces := arr.Field(idx("stacktrace")).(*array.FixedSizeBinary)
	require.Equal(t, id[:], traces.Value(0))

	values := arr.Field(idx("values")).(*array.List)
	require.True(t, values.IsNull(1))
	start, end := values.ValueOffsets(0)
	require.Equal(t, int64(0), start)
	require.Equal(t, int64(2), end)

	ts := arr.Field(idx("timestamp")).(*array.Int64)
	require.Equal(t, []int64{9, 10, 11}, ts.Int64Values())

	enabled := arr.Field(idx("enabled")).(*array.Boolean)
	require.True(t, enabled.Value(0))
	require.False(t, enabled.Value(1))
}

func TestBuildPointerValues(t *testing.T) {
	b := records.NewBuild[*sample](memory.NewGoAllocator())
	defer b.Release()

	require.NoError(t, b.Append(&sample{Timestamp: 1}, nil, &sample{Timestamp: 3}))

	arr, err := b.NewStructArray()
	require.NoError(t, err)
	defer arr.Release()

	require.Equal(t, 3, arr.Len())
	require.Equal(t, 1, arr.NullN())
	require.True(t, arr.IsNull(1))
}

func TestBuildUnsupportedType(t *testing.T) {
	require.Panics(t, func() {
		records.NewBuild[int](memory.NewGoAllocator())
	})

	type bad struct {
		C chan int
	}
	require.Panics(t, func() {
		records.NewBuild[bad](memory.NewGoAllocator())
	})
}
