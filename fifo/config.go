package fifo

// Config is the file/env representation of an executor.
type Config struct {
	Name string `yaml:"name" mapstructure:"name"`
	// MaxConcurrency bounds in-flight parallel phases. 0 means runtime.NumCPU().
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency" validate:"gte=0"`
	// WorkerPool runs parallel phases on a fixed goroutine pool.
	WorkerPool bool `yaml:"worker_pool" mapstructure:"worker_pool"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
}

// Validate rejects negative concurrency.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return ErrInvalidConcurrency.Detail("max_concurrency", c.MaxConcurrency)
	}
	return nil
}

// NewFromConfig builds an executor from cfg; opts are applied after cfg.
func NewFromConfig[T any](cfg Config, opts ...Option) (*Executor[T], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := []Option{WithName(cfg.Name)}
	if cfg.WorkerPool {
		base = append(base, WithWorkerPool())
	}
	return New[T](cfg.MaxConcurrency, append(base, opts...)...)
}
