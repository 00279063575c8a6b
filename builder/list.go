// Copyright (c) The FrostDB Authors.
// Licensed under the Apache License 2.0.

// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package builder

import (
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ListBuilder builds List arrays from one owned child builder and an int32
// offsets buffer. Append delimits a list slot; the caller then appends the
// slot's elements into the child builder.
type ListBuilder struct {
	builder

	etype   arrow.DataType
	values  ColumnBuilder
	offsets *typedBufferBuilder[int32]
}

func NewListBuilder(mem memory.Allocator, etype arrow.DataType) (*ListBuilder, error) {
	values, err := NewBuilder(mem, etype)
	if err != nil {
		return nil, err
	}
	return &ListBuilder{
		builder: builder{refCount: 1, mem: mem, dtype: arrow.ListOf(etype)},
		etype:   etype,
		values:  values,
		offsets: newTypedBufferBuilder[int32](mem),
	}, nil
}

func (b *ListBuilder) Release() {
	if atomic.AddInt64(&b.refCount, -1) == 0 {
		if b.nullBitmap != nil {
			b.nullBitmap.Release()
			b.nullBitmap = nil
		}
	}

	b.values.Release()
	b.offsets.Release()
}

// ValueBuilder returns the owned child builder.
func (b *ListBuilder) ValueBuilder() ColumnBuilder {
	return b.values
}

func (b *ListBuilder) appendNextOffset() {
	b.offsets.AppendValue(int32(b.values.Len()))
}

// Append starts a new list slot. The child elements appended afterwards
// belong to this slot.
func (b *ListBuilder) Append(isValid bool) error {
	if b.values.Len() > listMaximumElements {
		return fmt.Errorf("builder: list child elements exceed %d: %w", int64(listMaximumElements), ErrInvalid)
	}
	b.builder.reserve(1, b.resizeHelper)
	b.appendNextOffset()
	b.unsafeAppendBoolToBitmap(isValid)
	return nil
}

// AppendNull starts a null list slot.
func (b *ListBuilder) AppendNull() {
	_ = b.Append(false)
}

// AppendValues appends pre-computed offsets in one shot. The trailing offset
// delimiting the last slot is written by the next Append or by Finish.
func (b *ListBuilder) AppendValues(offsets []int32, valid []bool) error {
	if len(valid) != 0 && len(valid) != len(offsets) {
		return errValidityLength(len(offsets), len(valid))
	}
	b.builder.reserve(len(offsets), b.resizeHelper)
	b.offsets.AppendValues(offsets)
	b.builder.unsafeAppendBoolsToBitmap(valid, len(offsets))
	return nil
}

func (b *ListBuilder) init(capacity int) {
	b.builder.init(capacity)
	b.offsets.resize((capacity + 1) * arrow.Int32SizeBytes)
}

func (b *ListBuilder) resizeHelper(n int) {
	nBuilder := n
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}
	if b.capacity == 0 {
		b.init(n)
	} else {
		b.builder.resize(nBuilder, b.init)
		b.offsets.resize((n + 1) * arrow.Int32SizeBytes)
		b.capacity = n
	}
}

// Reserve ensures space for n more list slots. It does not reserve child
// capacity; callers reserve children independently.
func (b *ListBuilder) Reserve(n int) error {
	if err := checkReserve(n); err != nil {
		return err
	}
	b.builder.reserve(n, b.resizeHelper)
	return nil
}

func (b *ListBuilder) Resize(n int) error {
	if err := b.checkResize(n); err != nil {
		return err
	}
	b.resizeHelper(n)
	return nil
}

func (b *ListBuilder) Reset() {
	b.builder.reset()
	b.offsets.reset()
	b.values.Reset()
}

func (b *ListBuilder) newData() (*array.Data, error) {
	if b.offsets.Len() != b.length+1 {
		b.appendNextOffset()
	}
	b.trimBitmap()

	values, err := b.values.Finish()
	if err != nil {
		return nil, err
	}
	defer values.Release()

	offsets := b.offsets.Finish()
	res := array.NewData(
		arrow.ListOf(b.etype), b.length,
		[]*memory.Buffer{b.nullBitmap, offsets},
		[]arrow.ArrayData{values.Data()},
		b.nulls,
		0,
	)
	if offsets != nil {
		offsets.Release()
	}
	b.builder.reset()

	return res, nil
}

// Finish commits the trailing offset, finishes the child and returns the
// built list array.
func (b *ListBuilder) Finish() (arrow.Array, error) {
	data, err := b.newData()
	if err != nil {
		return nil, err
	}
	defer data.Release()
	return array.MakeFromData(data), nil
}

var _ ColumnBuilder = (*ListBuilder)(nil)
