package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/fifokit/internal/workload"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		flags workload.Spec
		exec  fifoOverrides
		quiet bool
	)

	c := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic workload and check result order",
		Long: `Submit tasks that sleep for a random time in parallel, then verify
that their ordered phases ran in submission order. The run is
reproducible for a given --seed.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			readExecutorFlags(c, &exec)
			spec, err := mergeSpec(c, a.cfg.Workload, flags)
			if err != nil {
				return err
			}

			ctx := c.Context()
			s, err := startSession(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			e, err := newSessionExecutor[workload.Outcome](ctx, s, exec)
			if err != nil {
				return err
			}

			var out io.Writer = c.OutOrStdout()
			if quiet {
				out = io.Discard
			}
			report, err := workload.Run(ctx, e, spec, out)
			fmt.Fprintf(c.OutOrStdout(), "tasks=%d succeeded=%d failed=%d concurrency=%d elapsed=%v ordered=%t\n",
				report.Tasks, report.Succeeded, report.Failed, e.MaxConcurrency(), report.Elapsed.Round(time.Millisecond), report.Ordered())
			return err
		},
	}

	addSpecFlags(c, &flags)
	addExecutorFlags(c, &exec)
	c.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the summary")
	return c
}
