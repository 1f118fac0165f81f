package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/fifokit/logger"
)

// app is the state shared by subcommands once the root has loaded config.
type app struct {
	configPath string
	logLevel   string
	cfg        *AppConfig
}

// NewRootCmd builds the fifokit command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "fifokit",
		Short: "Run work in parallel, deliver results in order",
		Long: `fifokit drives an ordered-completion executor: task bodies run on up to
N workers at once, and their results are handed on strictly in the order
the tasks were submitted.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(a.configPath, a.logLevel)
			if err != nil {
				return err
			}
			logger.Init(cfg.Logging)
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: search ./cmd/fifokit, ./config, .)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, disabled")

	root.AddCommand(
		newRunCmd(a),
		newDigestCmd(a),
		newBenchCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI until ctx is cancelled.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
