package cmd

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/polarsignals/colbuild/builder"
	"github.com/polarsignals/colbuild/memutils"
)

var (
	benchRows        int
	benchCardinality int
	benchSeed        int64
	benchLimit       int64
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	Example: "builder-tool bench --rows 1000000 --cardinality 1000",
	Short:   "append synthetic data through each builder kind and report throughput",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench()
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchRows, "rows", 1_000_000, "rows to append per builder")
	benchCmd.Flags().IntVar(&benchCardinality, "cardinality", 1_000, "distinct values for the dictionary builder")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 42, "rng seed")
	benchCmd.Flags().Int64Var(&benchLimit, "limit", 0, "optional allocation limit in bytes")
}

type benchResult struct {
	elapsed   time.Duration
	allocated int
	peak      int
}

func runBench() error {
	logger := level.NewFilter(log.NewLogfmtLogger(os.Stderr), level.AllowInfo())
	level.Info(logger).Log("msg", "starting bench", "rows", benchRows, "cardinality", benchCardinality)

	results := map[string]benchResult{}
	for name, run := range map[string]func(memory.Allocator) error{
		"adaptive-int":  benchAdaptiveInt,
		"float64":       benchFloat64,
		"boolean":       benchBoolean,
		"string":        benchString,
		"string-dict":   benchStringDict,
		"list<int64>":   benchList,
		"fixed-size-16": benchFixedSize,
	} {
		metered := memutils.NewMeteredAllocator(memory.NewGoAllocator())
		var mem memory.Allocator = metered
		if benchLimit > 0 {
			mem = memutils.NewLimitAllocator(benchLimit, metered)
		}

		start := time.Now()
		if err := run(mem); err != nil {
			return fmt.Errorf("bench %s: %w", name, err)
		}
		results[name] = benchResult{
			elapsed:   time.Since(start),
			allocated: metered.Allocated(),
			peak:      metered.Peak(),
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"builder", "rows/s", "peak bytes", "leaked bytes"})
	names := maps.Keys(results)
	slices.Sort(names)
	for _, name := range names {
		r := results[name]
		rate := float64(benchRows) / r.elapsed.Seconds()
		table.Append([]string{
			name,
			humanize.CommafWithDigits(rate, 0),
			humanize.Bytes(uint64(r.peak)),
			humanize.Bytes(uint64(r.allocated)),
		})
	}
	table.Render()
	return nil
}

func benchAdaptiveInt(mem memory.Allocator) error {
	b := builder.NewAdaptiveIntBuilder(mem)
	defer b.Release()
	rng := rand.New(rand.NewSource(benchSeed))
	for i := 0; i < benchRows; i++ {
		b.Append(rng.Int63n(int64(benchCardinality)))
	}
	return release(b.Finish())
}

func benchFloat64(mem memory.Allocator) error {
	b := builder.NewFloat64Builder(mem)
	defer b.Release()
	rng := rand.New(rand.NewSource(benchSeed))
	for i := 0; i < benchRows; i++ {
		if i%100 == 0 {
			b.AppendNull()
			continue
		}
		b.Append(rng.Float64())
	}
	return release(b.Finish())
}

func benchBoolean(mem memory.Allocator) error {
	b := builder.NewBooleanBuilder(mem)
	defer b.Release()
	rng := rand.New(rand.NewSource(benchSeed))
	for i := 0; i < benchRows; i++ {
		b.Append(rng.Intn(2) == 0)
	}
	return release(b.Finish())
}

func benchString(mem memory.Allocator) error {
	b := builder.NewStringBuilder(mem)
	defer b.Release()
	rng := rand.New(rand.NewSource(benchSeed))
	for i := 0; i < benchRows; i++ {
		if err := b.Append(fmt.Sprintf("value-%d", rng.Intn(benchCardinality))); err != nil {
			return err
		}
	}
	return release(b.Finish())
}

func benchStringDict(mem memory.Allocator) error {
	b := builder.NewStringDictionaryBuilder(mem)
	defer b.Release()
	rng := rand.New(rand.NewSource(benchSeed))
	for i := 0; i < benchRows; i++ {
		b.Append(fmt.Sprintf("value-%d", rng.Intn(benchCardinality)))
	}
	return release(b.Finish())
}

func benchList(mem memory.Allocator) error {
	b, err := builder.NewListBuilder(mem, arrow.PrimitiveTypes.Int64)
	if err != nil {
		return err
	}
	defer b.Release()
	values := b.ValueBuilder().(*builder.NumericBuilder[int64])
	rng := rand.New(rand.NewSource(benchSeed))
	for i := 0; i < benchRows; i++ {
		if err := b.Append(true); err != nil {
			return err
		}
		for j := 0; j < rng.Intn(4); j++ {
			values.Append(rng.Int63())
		}
	}
	return release(b.Finish())
}

func benchFixedSize(mem memory.Allocator) error {
	b := builder.NewFixedSizeBinaryBuilder(mem, &arrow.FixedSizeBinaryType{ByteWidth: 16})
	defer b.Release()
	rng := rand.New(rand.NewSource(benchSeed))
	buf := make([]byte, 16)
	for i := 0; i < benchRows; i++ {
		rng.Read(buf)
		if err := b.Append(buf); err != nil {
			return err
		}
	}
	return release(b.Finish())
}

func release(arr interface{ Release() }, err error) error {
	if err != nil {
		return err
	}
	arr.Release()
	return nil
}
