// Package records ingests Go structs into Arrow struct arrays through the
// colbuild builder family. Field mapping is reflection driven and
// opinionated: scalars map to their natural builders, pointer fields are
// nullable, slice fields become lists and string fields may opt into
// dictionary encoding through the struct tag.
//
// Use the `colbuild` tag to rename a column or to request dictionary
// encoding:
//
//	type Sample struct {
//		Kind  string    `colbuild:"example_type,dict"`
//		Value int64     `colbuild:"value"`
//		Trace uuid.UUID `colbuild:"trace"`
//	}
package records

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"

	"github.com/polarsignals/colbuild/builder"
)

const TagName = "colbuild"

var uuidType = reflect.TypeOf(uuid.UUID{})

// Build is a generic struct-array builder that ingests values of type T.
type Build[T any] struct {
	mem    memory.Allocator
	dtype  *arrow.StructType
	st     *builder.StructBuilder
	fields []appender
}

type appender func(b builder.ColumnBuilder, v reflect.Value) error

// NewBuild inspects T and assembles the field builders. T must be a struct
// or pointer to struct; unsupported field types panic, mirroring the
// fail-fast construction of the schema.
func NewBuild[T any](mem memory.Allocator) *Build[T] {
	var a T
	r := reflect.TypeOf(a)
	for r != nil && r.Kind() == reflect.Ptr {
		r = r.Elem()
	}
	if r == nil || r.Kind() != reflect.Struct {
		panic("colbuild/records: " + fmt.Sprintf("%T", a) + " is not supported")
	}

	b := &Build[T]{mem: mem}
	arrowFields := make([]arrow.Field, 0, r.NumField())
	for i := 0; i < r.NumField(); i++ {
		f := r.Field(i)
		name, dict := parseTag(f)
		dt, app, err := fieldMapping(f.Type, dict)
		if err != nil {
			panic("colbuild/records: field " + f.Name + ": " + err.Error())
		}
		arrowFields = append(arrowFields, arrow.Field{Name: name, Type: dt, Nullable: true})
		b.fields = append(b.fields, app)
	}

	b.dtype = arrow.StructOf(arrowFields...)
	st, err := builder.NewStructBuilder(mem, b.dtype)
	if err != nil {
		panic("colbuild/records: " + err.Error())
	}
	b.st = st
	return b
}

// Schema returns the struct type the builder produces.
func (b *Build[T]) Schema() *arrow.StructType { return b.dtype }

func (b *Build[T]) Release() {
	b.st.Release()
}

// Append ingests values. Pointer values that are nil become null struct
// slots.
func (b *Build[T]) Append(values ...T) error {
	for _, value := range values {
		v := reflect.ValueOf(value)
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				if err := b.appendNull(); err != nil {
					return err
				}
				v = reflect.Value{}
				break
			}
			v = v.Elem()
		}
		if !v.IsValid() {
			continue
		}

		b.st.Append(true)
		for i, app := range b.fields {
			if err := app(b.st.FieldBuilder(i), v.Field(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Build[T]) appendNull() error {
	b.st.AppendNull()
	for i := range b.fields {
		b.st.FieldBuilder(i).AppendNull()
	}
	return nil
}

// NewStructArray returns the built struct array and resets the builder.
func (b *Build[T]) NewStructArray() (*array.Struct, error) {
	arr, err := b.st.Finish()
	if err != nil {
		return nil, err
	}
	return arr.(*array.Struct), nil
}

func parseTag(f reflect.StructField) (name string, dict bool) {
	name = toSnakeCase(f.Name)
	tag, ok := f.Tag.Lookup(TagName)
	if !ok {
		return name, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, p := range parts[1:] {
		if p == "dict" {
			dict = true
		}
	}
	return name, dict
}

// fieldMapping resolves a Go field type to an arrow type plus the appender
// that feeds the corresponding builder.
func fieldMapping(t reflect.Type, dict bool) (arrow.DataType, appender, error) {
	if t == uuidType {
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}, func(b builder.ColumnBuilder, v reflect.Value) error {
			u := v.Interface().(uuid.UUID)
			return b.(*builder.FixedSizeBinaryBuilder).Append(u[:])
		}, nil
	}

	switch t.Kind() {
	case reflect.Ptr:
		dt, app, err := fieldMapping(t.Elem(), dict)
		if err != nil {
			return nil, nil, err
		}
		return dt, func(b builder.ColumnBuilder, v reflect.Value) error {
			if v.IsNil() {
				b.AppendNull()
				return nil
			}
			return app(b, v.Elem())
		}, nil

	case reflect.Bool:
		return arrow.FixedWidthTypes.Boolean, func(b builder.ColumnBuilder, v reflect.Value) error {
			b.(*builder.BooleanBuilder).Append(v.Bool())
			return nil
		}, nil

	case reflect.Int8:
		return arrow.PrimitiveTypes.Int8, numericAppender[int8](func(v reflect.Value) int8 { return int8(v.Int()) }), nil
	case reflect.Int16:
		return arrow.PrimitiveTypes.Int16, numericAppender[int16](func(v reflect.Value) int16 { return int16(v.Int()) }), nil
	case reflect.Int32:
		return arrow.PrimitiveTypes.Int32, numericAppender[int32](func(v reflect.Value) int32 { return int32(v.Int()) }), nil
	case reflect.Int64, reflect.Int:
		return arrow.PrimitiveTypes.Int64, numericAppender[int64](func(v reflect.Value) int64 { return v.Int() }), nil
	case reflect.Uint8:
		return arrow.PrimitiveTypes.Uint8, numericAppender[uint8](func(v reflect.Value) uint8 { return uint8(v.Uint()) }), nil
	case reflect.Uint16:
		return arrow.PrimitiveTypes.Uint16, numericAppender[uint16](func(v reflect.Value) uint16 { return uint16(v.Uint()) }), nil
	case reflect.Uint32:
		return arrow.PrimitiveTypes.Uint32, numericAppender[uint32](func(v reflect.Value) uint32 { return uint32(v.Uint()) }), nil
	case reflect.Uint64, reflect.Uint:
		return arrow.PrimitiveTypes.Uint64, numericAppender[uint64](func(v reflect.Value) uint64 { return v.Uint() }), nil
	case reflect.Float32:
		return arrow.PrimitiveTypes.Float32, numericAppender[float32](func(v reflect.Value) float32 { return float32(v.Float()) }), nil
	case reflect.Float64:
		return arrow.PrimitiveTypes.Float64, numericAppender[float64](func(v reflect.Value) float64 { return v.Float() }), nil

	case reflect.String:
		if dict {
			dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}
			return dt, func(b builder.ColumnBuilder, v reflect.Value) error {
				b.(*builder.StringDictionaryBuilder).Append(v.String())
				return nil
			}, nil
		}
		return arrow.BinaryTypes.String, func(b builder.ColumnBuilder, v reflect.Value) error {
			return b.(*builder.StringBuilder).Append(v.String())
		}, nil

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return arrow.BinaryTypes.Binary, func(b builder.ColumnBuilder, v reflect.Value) error {
				return b.(*builder.BinaryBuilder).Append(v.Bytes())
			}, nil
		}
		etype, eapp, err := fieldMapping(t.Elem(), dict)
		if err != nil {
			return nil, nil, err
		}
		return arrow.ListOf(etype), func(b builder.ColumnBuilder, v reflect.Value) error {
			lb := b.(*builder.ListBuilder)
			if v.IsNil() {
				lb.AppendNull()
				return nil
			}
			if err := lb.Append(true); err != nil {
				return err
			}
			for i := 0; i < v.Len(); i++ {
				if err := eapp(lb.ValueBuilder(), v.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported kind %s", t.Kind())
	}
}

func numericAppender[T interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}](get func(reflect.Value) T) appender {
	return func(b builder.ColumnBuilder, v reflect.Value) error {
		b.(*builder.NumericBuilder[T]).Append(get(v))
		return nil
	}
}

func toSnakeCase(s string) string {
	var out strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z' {
				out.WriteByte('_')
			}
			out.WriteByte(byte(r - 'A' + 'a'))
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}
