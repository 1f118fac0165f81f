package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/fifokit/internal/workload"
)

func newDigestCmd(a *app) *cobra.Command {
	var (
		algo string
		exec fifoOverrides
	)

	c := &cobra.Command{
		Use:   "digest FILE...",
		Short: "Hash files in parallel, print them in argument order",
		Long: fmt.Sprintf(`Hash every FILE concurrently and print "<hex>  <path>" lines in the
order the files were given. A file that cannot be read prints an error
line in its place; the command then exits non-zero.

Algorithms: %v`, workload.Algorithms),
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			readExecutorFlags(c, &exec)
			ctx := c.Context()

			s, err := startSession(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			e, err := newSessionExecutor[workload.FileDigest](ctx, s, exec)
			if err != nil {
				return err
			}

			summary, err := workload.Digest(ctx, e, algo, args, c.OutOrStdout())
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d files could not be hashed", summary.Failed, summary.Files)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&algo, "algo", "a", workload.AlgoSHA256, "hash algorithm")
	addExecutorFlags(c, &exec)
	return c
}
