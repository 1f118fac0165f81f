package workload

import (
	"context"
	"io"
	"time"

	"github.com/kbukum/fifokit/fifo"
	"github.com/kbukum/fifokit/logger"
)

// BenchResult is one concurrency level of a Bench run.
type BenchResult struct {
	Concurrency int
	Elapsed     time.Duration
	Ordered     bool
}

// Speedup is base/r elapsed time.
func (r BenchResult) Speedup(base BenchResult) float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(base.Elapsed) / float64(r.Elapsed)
}

// Bench runs spec once per concurrency level from 1 to maxConcurrency on a
// fresh executor and times each run. opts are passed to every executor.
func Bench(ctx context.Context, spec Spec, maxConcurrency int, opts ...fifo.Option) ([]BenchResult, error) {
	log := logger.Get("workload")
	results := make([]BenchResult, 0, maxConcurrency)

	for n := 1; n <= maxConcurrency; n++ {
		exec, err := fifo.New[Outcome](n, append([]fifo.Option{fifo.WithName("bench")}, opts...)...)
		if err != nil {
			return results, err
		}
		report, err := Run(ctx, exec, spec, io.Discard)
		if err != nil {
			return results, err
		}
		results = append(results, BenchResult{Concurrency: n, Elapsed: report.Elapsed, Ordered: report.Ordered()})
		log.Debug("bench level done", logger.MergeWithDuration(logger.Fields(logger.FieldMaxConcurrency, n), report.Elapsed))
	}
	return results, nil
}
