package builder

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// NullBuilder is the degenerate builder for the null type: it tracks a
// length and null count and produces arrays with no buffers.
type NullBuilder struct {
	builder
}

func NewNullBuilder(mem memory.Allocator) *NullBuilder {
	return &NullBuilder{builder: builder{refCount: 1, mem: mem, dtype: arrow.Null}}
}

func (b *NullBuilder) Release() {
	atomic.AddInt64(&b.refCount, -1)
}

func (b *NullBuilder) AppendNull() {
	b.nulls++
	b.length++
}

// AppendNulls appends n null slots.
func (b *NullBuilder) AppendNulls(n int) {
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
}

func (b *NullBuilder) Reserve(n int) error { return checkReserve(n) }

func (b *NullBuilder) Resize(n int) error {
	if err := b.checkResize(n); err != nil {
		return err
	}
	if n > 0 && n < minBuilderCapacity {
		n = minBuilderCapacity
	}
	b.capacity = n
	return nil
}

func (b *NullBuilder) Reset() {
	b.builder.reset()
}

func (b *NullBuilder) newData() *array.Data {
	res := array.NewData(arrow.Null, b.length, []*memory.Buffer{nil}, nil, b.length, 0)
	b.builder.reset()
	return res
}

func (b *NullBuilder) Finish() (arrow.Array, error) {
	data := b.newData()
	defer data.Release()
	return array.MakeFromData(data), nil
}

var _ ColumnBuilder = (*NullBuilder)(nil)
