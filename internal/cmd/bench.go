package cmd

import (
	"fmt"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/fifokit/fifo"
	"github.com/kbukum/fifokit/internal/workload"
	"github.com/kbukum/fifokit/observability"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		flags    workload.Spec
		maxLevel int
		pool     bool
	)

	c := &cobra.Command{
		Use:   "bench",
		Short: "Time the synthetic workload at concurrency 1..N",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			spec, err := mergeSpec(c, a.cfg.Workload, flags)
			if err != nil {
				return err
			}
			if maxLevel < 1 {
				return fmt.Errorf("--max-concurrency must be at least 1")
			}

			ctx := c.Context()
			s, err := startSession(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			metrics, err := observability.NewExecutorMetrics(observability.Meter(serviceName))
			if err != nil {
				return err
			}
			opts := []fifo.Option{fifo.WithContext(ctx), fifo.WithMetrics(metrics), fifo.WithTracer(observability.Tracer())}
			if pool {
				opts = append(opts, fifo.WithWorkerPool())
			}

			results, err := workload.Bench(ctx, spec, maxLevel, opts...)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CONCURRENCY\tELAPSED\tSPEEDUP\tORDERED")
			for _, r := range results {
				fmt.Fprintf(w, "%d\t%v\t%.2fx\t%t\n", r.Concurrency, r.Elapsed.Round(100*time.Microsecond), r.Speedup(results[0]), r.Ordered)
			}
			return w.Flush()
		},
	}

	addSpecFlags(c, &flags)
	c.Flags().IntVar(&maxLevel, "max-concurrency", runtime.NumCPU(), "highest concurrency level to time")
	c.Flags().BoolVar(&pool, "worker-pool", false, "run parallel phases on a fixed goroutine pool")
	return c
}
