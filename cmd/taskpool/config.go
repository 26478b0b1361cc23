package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/azargarov/taskpool"
)

// Config is the root configuration of the taskpool binary.
type Config struct {
	Pool     PoolConfig     `mapstructure:"pool" yaml:"pool"`
	Workload WorkloadConfig `mapstructure:"workload" yaml:"workload"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// PoolConfig mirrors taskpool.Options plus the shutdown behaviour.
type PoolConfig struct {
	Workers       int    `mapstructure:"workers" yaml:"workers"`
	QueueCapacity int    `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	Queue         string `mapstructure:"queue" yaml:"queue"`
	Budgets       []int  `mapstructure:"budgets" yaml:"budgets"`
	PinWorkers    bool   `mapstructure:"pin_workers" yaml:"pin_workers"`

	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`

	// Shutdown: drain or cancel
	Shutdown        string        `mapstructure:"shutdown" yaml:"shutdown"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type RetryConfig struct {
	Attempts int           `mapstructure:"attempts" yaml:"attempts"`
	Initial  time.Duration `mapstructure:"initial" yaml:"initial"`
	Max      time.Duration `mapstructure:"max" yaml:"max"`
	Jitter   bool          `mapstructure:"jitter" yaml:"jitter"`
}

// WorkloadConfig describes the synthetic workload generated by `run`.
type WorkloadConfig struct {
	Tasks      int `mapstructure:"tasks" yaml:"tasks"`
	Tenants    int `mapstructure:"tenants" yaml:"tenants"`
	Submitters int `mapstructure:"submitters" yaml:"submitters"`

	// Work is how long a handler invocation takes.
	Work time.Duration `mapstructure:"work" yaml:"work"`

	// Fractions of tasks that fail once before succeeding, that always
	// fail permanently, and that are cancelled right after submission.
	RetryableRatio float64 `mapstructure:"retryable_ratio" yaml:"retryable_ratio"`
	PermanentRatio float64 `mapstructure:"permanent_ratio" yaml:"permanent_ratio"`
	CancelRatio    float64 `mapstructure:"cancel_ratio" yaml:"cancel_ratio"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format: console or json
	Format string `mapstructure:"format" yaml:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string `mapstructure:"outputs" yaml:"outputs"`
	Development bool     `mapstructure:"development" yaml:"development"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			Workers:       4,
			QueueCapacity: taskpool.DefaultQueueCapacity,
			Queue:         "priority",
			Budgets:       append([]int(nil), taskpool.DefaultBudgets...),
			Retry: RetryConfig{
				Attempts: 3,
				Initial:  10 * time.Millisecond,
				Max:      time.Second,
			},
			Shutdown:        "drain",
			ShutdownTimeout: 30 * time.Second,
		},
		Workload: WorkloadConfig{
			Tasks:          2000,
			Tenants:        8,
			Submitters:     4,
			Work:           200 * time.Microsecond,
			RetryableRatio: 0.1,
			PermanentRatio: 0.02,
			CancelRatio:    0.01,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
		},
	}
}

// Load reads configuration from path (if non-empty) on top of the
// defaults. Environment variables use the prefix TASKPOOL and `.`/`-`
// are replaced with `_`, e.g. TASKPOOL_POOL_WORKERS=16.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TASKPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("pool.workers", cfg.Pool.Workers)
	v.SetDefault("pool.queue_capacity", cfg.Pool.QueueCapacity)
	v.SetDefault("pool.queue", cfg.Pool.Queue)
	v.SetDefault("pool.budgets", cfg.Pool.Budgets)
	v.SetDefault("pool.pin_workers", cfg.Pool.PinWorkers)
	v.SetDefault("pool.retry.attempts", cfg.Pool.Retry.Attempts)
	v.SetDefault("pool.retry.initial", cfg.Pool.Retry.Initial)
	v.SetDefault("pool.retry.max", cfg.Pool.Retry.Max)
	v.SetDefault("pool.retry.jitter", cfg.Pool.Retry.Jitter)
	v.SetDefault("pool.shutdown", cfg.Pool.Shutdown)
	v.SetDefault("pool.shutdown_timeout", cfg.Pool.ShutdownTimeout)
	v.SetDefault("workload.tasks", cfg.Workload.Tasks)
	v.SetDefault("workload.tenants", cfg.Workload.Tenants)
	v.SetDefault("workload.submitters", cfg.Workload.Submitters)
	v.SetDefault("workload.work", cfg.Workload.Work)
	v.SetDefault("workload.retryable_ratio", cfg.Workload.RetryableRatio)
	v.SetDefault("workload.permanent_ratio", cfg.Workload.PermanentRatio)
	v.SetDefault("workload.cancel_ratio", cfg.Workload.CancelRatio)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)

	if path == "" {
		path = os.Getenv("TASKPOOL_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var errInvalidConfig = errors.New("invalid config")

// Validate reports every problem that Options.Validate would not catch.
func (c *Config) Validate() error {
	var err error
	if _, e := taskpool.ParseQueueType(c.Pool.Queue); e != nil {
		err = multierr.Append(err, e)
	}
	if _, e := parseShutdownMode(c.Pool.Shutdown); e != nil {
		err = multierr.Append(err, e)
	}
	if c.Workload.Tasks < 0 || c.Workload.Tenants <= 0 || c.Workload.Submitters <= 0 {
		err = multierr.Append(err, fmt.Errorf("workload needs tasks >= 0, tenants > 0, submitters > 0"))
	}
	w := c.Workload
	for name, r := range map[string]float64{
		"retryable_ratio": w.RetryableRatio,
		"permanent_ratio": w.PermanentRatio,
		"cancel_ratio":    w.CancelRatio,
	} {
		if r < 0 || r > 1 {
			err = multierr.Append(err, fmt.Errorf("%s must be within [0, 1], got %v", name, r))
		}
	}
	if w.RetryableRatio+w.PermanentRatio > 1 {
		err = multierr.Append(err, fmt.Errorf("retryable_ratio + permanent_ratio exceeds 1"))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidConfig, err)
	}
	return nil
}

// Options converts the pool section into taskpool.Options.
func (c *Config) Options() (taskpool.Options, error) {
	qt, err := taskpool.ParseQueueType(c.Pool.Queue)
	if err != nil {
		return taskpool.Options{}, err
	}
	opts := taskpool.Options{
		Workers:       c.Pool.Workers,
		QueueCapacity: c.Pool.QueueCapacity,
		QT:            qt,
		Budgets:       c.Pool.Budgets,
		PinWorkers:    c.Pool.PinWorkers,
		Retry: taskpool.RetryPolicy{
			Attempts: c.Pool.Retry.Attempts,
			Initial:  c.Pool.Retry.Initial,
			Max:      c.Pool.Retry.Max,
			Jitter:   c.Pool.Retry.Jitter,
		},
	}
	opts.FillDefaults()
	return opts, opts.Validate()
}

func parseShutdownMode(s string) (taskpool.ShutdownMode, error) {
	switch strings.ToLower(s) {
	case "drain", "":
		return taskpool.Drain, nil
	case "cancel":
		return taskpool.Cancel, nil
	default:
		return 0, fmt.Errorf("unknown shutdown mode %q", s)
	}
}
