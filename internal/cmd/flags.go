package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/fifokit/config"
	"github.com/kbukum/fifokit/internal/workload"
)

// addExecutorFlags registers --concurrency and --worker-pool.
func addExecutorFlags(c *cobra.Command, o *fifoOverrides) {
	c.Flags().IntVarP(&o.concurrency, "concurrency", "n", 0, "max parallel phases in flight (0 = number of CPUs)")
	c.Flags().BoolVar(&o.workerPool, "worker-pool", false, "run parallel phases on a fixed goroutine pool")
}

func readExecutorFlags(c *cobra.Command, o *fifoOverrides) {
	o.concurrencySet = c.Flags().Changed("concurrency")
}

// addSpecFlags registers the synthetic workload flags, defaulted from spec.
func addSpecFlags(c *cobra.Command, spec *workload.Spec) {
	d := workload.DefaultSpec()
	c.Flags().IntVar(&spec.Tasks, "tasks", d.Tasks, "number of tasks to submit")
	c.Flags().DurationVar(&spec.MaxDelay, "max-delay", d.MaxDelay, "upper bound of each task's random parallel delay")
	c.Flags().Float64Var(&spec.FailRatio, "fail-ratio", d.FailRatio, "fraction of tasks that fail in the parallel phase")
	c.Flags().Uint64Var(&spec.Seed, "seed", d.Seed, "random seed")
}

// mergeSpec overlays the flags the user set on the configured spec.
func mergeSpec(c *cobra.Command, cfg workload.Spec, flags workload.Spec) (workload.Spec, error) {
	if c.Flags().Changed("tasks") {
		cfg.Tasks = flags.Tasks
	}
	if c.Flags().Changed("max-delay") {
		cfg.MaxDelay = flags.MaxDelay
	}
	if c.Flags().Changed("fail-ratio") {
		cfg.FailRatio = flags.FailRatio
	}
	if c.Flags().Changed("seed") {
		cfg.Seed = flags.Seed
	}
	return cfg, config.ValidateStruct(&cfg)
}
