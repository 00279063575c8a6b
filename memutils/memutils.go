// Package memutils provides allocator wrappers used around the builders: a
// hard-limit allocator and a metered allocator exporting its accounting as
// prometheus metrics.
package memutils

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
)

const PanicMemoryLimit = "memory limit exceeded"

var _ memory.Allocator = (*LimitAllocator)(nil)

// LimitAllocator wraps an allocator and panics once the bytes outstanding
// exceed the configured limit, mirroring the allocator contract where
// exhaustion is not a recoverable error.
type LimitAllocator struct {
	limit     int64
	allocated atomic.Int64
	allocator memory.Allocator
}

func NewLimitAllocator(limit int64, allocator memory.Allocator) *LimitAllocator {
	return &LimitAllocator{
		limit:     limit,
		allocator: allocator,
	}
}

func (a *LimitAllocator) Allocate(size int) []byte {
	if a.allocated.Add(int64(size)) > a.limit {
		panic(PanicMemoryLimit)
	}
	return a.allocator.Allocate(size)
}

func (a *LimitAllocator) Reallocate(size int, b []byte) []byte {
	if len(b) == size {
		return b
	}
	if a.allocated.Add(int64(size-len(b))) > a.limit {
		panic(PanicMemoryLimit)
	}
	return a.allocator.Reallocate(size, b)
}

func (a *LimitAllocator) Free(b []byte) {
	a.allocated.Add(-int64(len(b)))
	a.allocator.Free(b)
}

func (a *LimitAllocator) Allocated() int {
	return int(a.allocated.Load())
}

var (
	_ memory.Allocator     = (*MeteredAllocator)(nil)
	_ prometheus.Collector = (*MeteredAllocator)(nil)
)

var (
	descAllocatedBytes = prometheus.NewDesc(
		"colbuild_allocated_bytes",
		"Bytes currently allocated through the metered allocator.",
		nil, nil,
	)
	descPeakAllocatedBytes = prometheus.NewDesc(
		"colbuild_peak_allocated_bytes",
		"High watermark of bytes allocated through the metered allocator.",
		nil, nil,
	)
	descAllocationsTotal = prometheus.NewDesc(
		"colbuild_allocations_total",
		"Number of allocations performed through the metered allocator.",
		nil, nil,
	)
)

// MeteredAllocator wraps an allocator and tracks outstanding bytes, the high
// watermark and the allocation count. It doubles as a prometheus collector.
type MeteredAllocator struct {
	allocator memory.Allocator

	allocated atomic.Int64
	peak      atomic.Int64
	allocs    atomic.Int64
}

func NewMeteredAllocator(allocator memory.Allocator) *MeteredAllocator {
	return &MeteredAllocator{allocator: allocator}
}

func (a *MeteredAllocator) track(delta int64) {
	allocated := a.allocated.Add(delta)
	for {
		peak := a.peak.Load()
		if allocated <= peak || a.peak.CompareAndSwap(peak, allocated) {
			return
		}
	}
}

func (a *MeteredAllocator) Allocate(size int) []byte {
	a.allocs.Add(1)
	a.track(int64(size))
	return a.allocator.Allocate(size)
}

func (a *MeteredAllocator) Reallocate(size int, b []byte) []byte {
	if len(b) == size {
		return b
	}
	a.allocs.Add(1)
	a.track(int64(size - len(b)))
	return a.allocator.Reallocate(size, b)
}

func (a *MeteredAllocator) Free(b []byte) {
	a.allocated.Add(-int64(len(b)))
	a.allocator.Free(b)
}

// Allocated returns the bytes currently outstanding.
func (a *MeteredAllocator) Allocated() int { return int(a.allocated.Load()) }

// Peak returns the high watermark of outstanding bytes.
func (a *MeteredAllocator) Peak() int { return int(a.peak.Load()) }

// Allocations returns the number of allocation calls.
func (a *MeteredAllocator) Allocations() int { return int(a.allocs.Load()) }

func (a *MeteredAllocator) Describe(ch chan<- *prometheus.Desc) {
	ch <- descAllocatedBytes
	ch <- descPeakAllocatedBytes
	ch <- descAllocationsTotal
}

func (a *MeteredAllocator) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(descAllocatedBytes, prometheus.GaugeValue, float64(a.allocated.Load()))
	ch <- prometheus.MustNewConstMetric(descPeakAllocatedBytes, prometheus.GaugeValue, float64(a.peak.Load()))
	ch <- prometheus.MustNewConstMetric(descAllocationsTotal, prometheus.CounterValue, float64(a.allocs.Load()))
}
