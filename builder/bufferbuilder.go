package builder

import (
	"sync/atomic"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// bufferBuilder wraps a resizable buffer with amortised, next-power-of-two
// growth. length and capacity are tracked in bytes.
type bufferBuilder struct {
	refCount int64
	mem      memory.Allocator
	buffer   *memory.Buffer
	length   int
	capacity int
	bytes    []byte
}

func (b *bufferBuilder) Retain() {
	atomic.AddInt64(&b.refCount, 1)
}

func (b *bufferBuilder) Release() {
	if atomic.AddInt64(&b.refCount, -1) == 0 {
		if b.buffer != nil {
			b.buffer.Release()
			b.buffer = nil
		}
		b.bytes = nil
	}
}

// Len returns the number of bytes committed to the buffer.
func (b *bufferBuilder) Len() int { return b.length }

// Cap returns the number of bytes the buffer can hold without reallocation.
func (b *bufferBuilder) Cap() int { return b.capacity }

func (b *bufferBuilder) Bytes() []byte { return b.bytes[:b.length] }

func (b *bufferBuilder) resize(elements int) {
	if b.buffer == nil {
		b.buffer = memory.NewResizableBuffer(b.mem)
	}
	b.buffer.ResizeNoShrink(elements)
	b.capacity = b.buffer.Cap()
	b.bytes = b.buffer.Buf()
	if b.length > elements {
		b.length = elements
	}
}

func (b *bufferBuilder) reserve(elements int) {
	if b.length+elements > b.capacity {
		b.resize(bitutil.NextPowerOf2(b.length + elements))
	}
}

// Advance bumps the byte length after the caller has written into the raw
// buffer directly.
func (b *bufferBuilder) Advance(length int) {
	b.reserve(length)
	b.length += length
}

func (b *bufferBuilder) Append(data []byte) {
	b.reserve(len(data))
	b.unsafeAppend(data)
}

func (b *bufferBuilder) unsafeAppend(data []byte) {
	copy(b.bytes[b.length:], data)
	b.length += len(data)
}

func (b *bufferBuilder) reset() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
	b.bytes = nil
	b.length = 0
	b.capacity = 0
}

// Finish trims the buffer to the bytes in use, detaches it from the builder
// and resets the builder for reuse. The caller assumes the buffer reference.
func (b *bufferBuilder) Finish() *memory.Buffer {
	if b.buffer == nil {
		b.length, b.capacity = 0, 0
		return nil
	}
	b.buffer.Resize(b.length)
	buffer := b.buffer
	b.buffer = nil
	b.bytes = nil
	b.length = 0
	b.capacity = 0
	return buffer
}

type byteBufferBuilder struct {
	bufferBuilder
}

func newByteBufferBuilder(mem memory.Allocator) *byteBufferBuilder {
	return &byteBufferBuilder{bufferBuilder: bufferBuilder{refCount: 1, mem: mem}}
}

func (b *byteBufferBuilder) Values() []byte { return b.Bytes() }

// typedBufferBuilder builds a buffer addressed as elements of T rather than
// bytes.
type typedBufferBuilder[T fixedWidth] struct {
	bufferBuilder
}

func newTypedBufferBuilder[T fixedWidth](mem memory.Allocator) *typedBufferBuilder[T] {
	return &typedBufferBuilder[T]{bufferBuilder: bufferBuilder{refCount: 1, mem: mem}}
}

func (b *typedBufferBuilder[T]) AppendValue(v T) {
	var z T
	b.reserve(int(unsafe.Sizeof(z)))
	b.unsafeAppend(castToBytes([]T{v}))
}

func (b *typedBufferBuilder[T]) AppendValues(vs []T) {
	b.Append(castToBytes(vs))
}

// Len returns the number of elements of T committed to the buffer.
func (b *typedBufferBuilder[T]) Len() int {
	var z T
	return b.length / int(unsafe.Sizeof(z))
}

func (b *typedBufferBuilder[T]) Values() []T {
	return castFromBytes[T](b.Bytes())
}

func (b *typedBufferBuilder[T]) Value(i int) T {
	return b.Values()[i]
}
