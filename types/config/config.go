package config

import (
	"errors"
	"fmt"
	"time"
)

type EngineConfig struct {
	Instance string `yaml:"instance"` // Unique identifier for this engine instance

	HTTPPort uint `yaml:"http_port"` // Port number for the request boundary and preview serving

	CompilerCommand string `yaml:"compiler_command"` // External compiler binary (emcc)
	ScratchDir      string `yaml:"scratch_dir"`      // Root of the ephemeral per-job working directories
	ArtifactsDir    string `yaml:"artifacts_dir"`    // Root of the durable promoted build directories

	// Workers is the number of worker slots executing build pipelines.
	// Configured independently of MaxConcurrent: if Workers is larger the
	// extra slots idle, if smaller the queue ceiling goes unused.
	Workers int `yaml:"workers"`
	// MaxConcurrent caps the queue's processing set.
	MaxConcurrent int `yaml:"max_concurrent"`

	MaxJobs      int `yaml:"max_jobs"`      // Stored job records before eviction kicks in
	MaxCompleted int `yaml:"max_completed"` // Terminal jobs retained by eviction

	ProcessTimeoutSeconds  int `yaml:"process_timeout_seconds"`  // Deadline enforced by the timeout sweep
	CompileTimeoutSeconds  int `yaml:"compile_timeout_seconds"`  // Hard wall-clock guard on one compiler invocation
	SweepIntervalSeconds   int `yaml:"sweep_interval_seconds"`   // How often the timeout sweep runs
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds"` // How often terminal jobs are evicted
}

// EngineOption mutates a config during construction.
type EngineOption func(*EngineConfig) error

// NewEngineConfig creates a config with defaults applied. Only the instance
// name is required.
func NewEngineConfig(instance string, opts ...EngineOption) (*EngineConfig, error) {
	cfg := &EngineConfig{
		Instance:               instance,
		HTTPPort:               DefaultHTTPPort,
		CompilerCommand:        DefaultCompilerCommand,
		ScratchDir:             DefaultScratchDir,
		ArtifactsDir:           DefaultArtifactsDir,
		Workers:                DefaultWorkers,
		MaxConcurrent:          DefaultMaxConcurrent,
		MaxJobs:                DefaultMaxJobs,
		MaxCompleted:           DefaultMaxCompleted,
		ProcessTimeoutSeconds:  DefaultProcessTimeoutSeconds,
		CompileTimeoutSeconds:  DefaultCompileTimeoutSeconds,
		SweepIntervalSeconds:   DefaultSweepIntervalSeconds,
		CleanupIntervalSeconds: DefaultCleanupIntervalSeconds,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EngineConfig) Validate() error {
	if c.Instance == "" {
		return errors.New("instance name is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.MaxJobs < 1 {
		return fmt.Errorf("max_jobs must be at least 1, got %d", c.MaxJobs)
	}
	if c.MaxCompleted < 0 {
		return fmt.Errorf("max_completed must not be negative, got %d", c.MaxCompleted)
	}
	if c.ProcessTimeoutSeconds < 1 {
		return fmt.Errorf("process_timeout_seconds must be at least 1, got %d", c.ProcessTimeoutSeconds)
	}
	if c.CompilerCommand == "" {
		return errors.New("compiler_command is required")
	}
	return nil
}

func (c *EngineConfig) ProcessTimeout() time.Duration {
	return time.Duration(c.ProcessTimeoutSeconds) * time.Second
}

func (c *EngineConfig) CompileTimeout() time.Duration {
	return time.Duration(c.CompileTimeoutSeconds) * time.Second
}

func WithHTTPPort(port uint) EngineOption {
	return func(c *EngineConfig) error {
		c.HTTPPort = port
		return nil
	}
}

func WithCompilerCommand(command string) EngineOption {
	return func(c *EngineConfig) error {
		c.CompilerCommand = command
		return nil
	}
}

func WithStorageDirs(scratch, artifacts string) EngineOption {
	return func(c *EngineConfig) error {
		c.ScratchDir = scratch
		c.ArtifactsDir = artifacts
		return nil
	}
}

func WithWorkers(workers int) EngineOption {
	return func(c *EngineConfig) error {
		c.Workers = workers
		return nil
	}
}

func WithMaxConcurrent(n int) EngineOption {
	return func(c *EngineConfig) error {
		c.MaxConcurrent = n
		return nil
	}
}

func WithQueueCapacity(maxJobs, maxCompleted int) EngineOption {
	return func(c *EngineConfig) error {
		c.MaxJobs = maxJobs
		c.MaxCompleted = maxCompleted
		return nil
	}
}

func WithProcessTimeoutSeconds(seconds int) EngineOption {
	return func(c *EngineConfig) error {
		c.ProcessTimeoutSeconds = seconds
		return nil
	}
}
