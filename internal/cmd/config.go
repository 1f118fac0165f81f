package cmd

import (
	"fmt"

	"github.com/kbukum/fifokit/config"
	"github.com/kbukum/fifokit/fifo"
	"github.com/kbukum/fifokit/internal/workload"
	"github.com/kbukum/fifokit/logger"
	"github.com/kbukum/fifokit/observability"
)

const serviceName = "fifokit"

// AppConfig is the full fifokit configuration file.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Executor fifo.Config                `yaml:"executor" mapstructure:"executor"`
	Workload workload.Spec              `yaml:"workload" mapstructure:"workload"`
	Metrics  observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
	Tracing  observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		ServiceConfig: config.ServiceConfig{
			Name:    serviceName,
			Logging: logger.Config{Level: "info", Format: "console"},
		},
		Executor: fifo.Config{Name: serviceName},
		Workload: workload.DefaultSpec(),
		Metrics:  observability.DefaultMeterConfig(serviceName),
		Tracing:  observability.DefaultTracerConfig(serviceName),
	}
}

// ApplyDefaults fills every section.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Executor.ApplyDefaults()
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = c.Name
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Name
	}
}

// Validate runs the hand-written checks, then the struct tags.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Executor.Validate(); err != nil {
		return fmt.Errorf("config.executor: %w", err)
	}
	return config.ValidateStruct(c)
}

// loadAppConfig reads path (or the default search paths when empty) over
// the defaults. A non-empty logLevel overrides the file.
func loadAppConfig(path, logLevel string) (*AppConfig, error) {
	cfg := defaultAppConfig()

	var opts []config.LoaderOption
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
