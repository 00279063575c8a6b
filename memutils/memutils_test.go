package memutils_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/polarsignals/colbuild/builder"
	"github.com/polarsignals/colbuild/memutils"
)

func TestLimitAllocator(t *testing.T) {
	a := memutils.NewLimitAllocator(1024, memory.NewGoAllocator())

	buf := a.Allocate(512)
	require.Equal(t, 512, a.Allocated())

	require.PanicsWithValue(t, memutils.PanicMemoryLimit, func() {
		a.Allocate(1024)
	})

	a.Free(buf)
}

func TestLimitAllocatorWithBuilder(t *testing.T) {
	a := memutils.NewLimitAllocator(1<<20, memory.NewGoAllocator())

	b := builder.NewInt64Builder(a)
	defer b.Release()
	for i := int64(0); i < 1000; i++ {
		b.Append(i)
	}

	arr, err := b.Finish()
	require.NoError(t, err)
	arr.Release()

	require.PanicsWithValue(t, memutils.PanicMemoryLimit, func() {
		other := builder.NewInt64Builder(a)
		defer other.Release()
		for i := int64(0); ; i++ {
			other.Append(i)
		}
	})
}

func TestMeteredAllocator(t *testing.T) {
	a := memutils.NewMeteredAllocator(memory.NewGoAllocator())

	buf := a.Allocate(256)
	require.Equal(t, 256, a.Allocated())
	require.Equal(t, 256, a.Peak())
	require.Equal(t, 1, a.Allocations())

	a.Free(buf)
	require.Equal(t, 0, a.Allocated())
	require.Equal(t, 256, a.Peak())
}

func TestMeteredAllocatorCollector(t *testing.T) {
	a := memutils.NewMeteredAllocator(memory.NewGoAllocator())
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(a))

	buf := a.Allocate(100)
	defer a.Free(buf)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]float64{}
	for _, mf := range families {
		byName[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue() + mf.GetMetric()[0].GetCounter().GetValue()
	}
	require.Equal(t, float64(100), byName["colbuild_allocated_bytes"])
	require.Equal(t, float64(100), byName["colbuild_peak_allocated_bytes"])
	require.Equal(t, float64(1), byName["colbuild_allocations_total"])
}
