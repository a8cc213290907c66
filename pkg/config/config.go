// Package config loads the configuration shared by cmd/mirror-worker and
// cmd/mirror-dispatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/KevinZhao/s3sync/internal/bytesize"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the mirror's full configuration surface.
//
// Configuration sources, in order of precedence (highest to lowest):
//  1. Environment variables (MIRROR_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Environment variables override only keys that appear in the loaded file;
// when no configuration file is found they are not read at all.
type Config struct {
	// Mirror holds the copy/delete/scheduling knobs from the core design.
	Mirror MirrorConfig `mapstructure:"mirror" yaml:"mirror"`

	// Source is the S3-compatible store events are copied from.
	Source StoreConfig `mapstructure:"source" yaml:"source"`

	// Target is the S3-compatible store events are copied to.
	Target StoreConfig `mapstructure:"target" yaml:"target"`

	// Queue configures the durable queue the event source is read from.
	Queue QueueConfig `mapstructure:"queue" yaml:"queue"`

	// Launcher configures the compute-launcher the Dispatcher uses to start
	// Worker processes.
	Launcher LauncherConfig `mapstructure:"launcher" yaml:"launcher"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics configures the Prometheus metrics HTTP server.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MirrorConfig holds the copy-engine, dispatcher, and worker-lifecycle
// knobs from the core design's configuration table.
type MirrorConfig struct {
	// PrefixFilter, if non-empty, causes events whose key does not start
	// with it to be skipped as a no-op ack.
	PrefixFilter string `mapstructure:"prefix_filter" yaml:"prefix_filter"`

	// MaxWorkers caps running+pending workers.
	MaxWorkers int `mapstructure:"max_workers" validate:"gt=0" yaml:"max_workers"`

	// TargetBacklogPerTask is the messages-per-desired-worker ratio used by
	// the dispatcher's sizing formula.
	TargetBacklogPerTask int `mapstructure:"target_backlog_per_task" validate:"gt=0" yaml:"target_backlog_per_task"`

	// BurstStartLimit caps worker launches per dispatcher tick.
	BurstStartLimit int `mapstructure:"burst_start_limit" validate:"gt=0" yaml:"burst_start_limit"`

	// DispatchPeriod is the interval between dispatcher ticks triggered by
	// the external scheduler; informational for cmd/mirror-dispatch's caller.
	DispatchPeriod time.Duration `mapstructure:"dispatch_period" validate:"gt=0" yaml:"dispatch_period"`

	// VisibilityTimeout is the initial and per-extend queue message lease.
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" validate:"gt=0" yaml:"visibility_timeout"`

	// ExtendInterval is the visibility keeper's tick period.
	ExtendInterval time.Duration `mapstructure:"extend_interval" validate:"gt=0" yaml:"extend_interval"`

	// EmptyPollsBeforeExit is the worker idle-exit threshold.
	EmptyPollsBeforeExit int `mapstructure:"empty_polls_before_exit" validate:"gt=0" yaml:"empty_polls_before_exit"`

	// WaitTime is the long-poll wait duration.
	WaitTime time.Duration `mapstructure:"wait_time" validate:"gte=0" yaml:"wait_time"`

	// CopyParallelism bounds concurrent part-copy tasks per worker.
	CopyParallelism int `mapstructure:"copy_parallelism" validate:"gt=0" yaml:"copy_parallelism"`

	// PartSize is the multipart part size.
	PartSize bytesize.ByteSize `mapstructure:"part_size" yaml:"part_size"`

	// SingleCopyCeiling is the upper bound for a single-call copy; objects
	// at or above this size use a multipart plan.
	SingleCopyCeiling bytesize.ByteSize `mapstructure:"single_copy_ceiling" yaml:"single_copy_ceiling"`

	// PartRetries is the per-part-copy retry cap.
	PartRetries int `mapstructure:"part_retries" validate:"gte=0" yaml:"part_retries"`

	// DeleteRetries is the per-delete retry cap.
	DeleteRetries int `mapstructure:"delete_retries" validate:"gte=0" yaml:"delete_retries"`

	// DrainDeadline is the maximum shutdown duration after a preemption
	// signal.
	DrainDeadline time.Duration `mapstructure:"drain_deadline" validate:"gt=0" yaml:"drain_deadline"`

	// RequestTimeout sets the deadline of a mirror-dispatch run, which is
	// four times this value for the whole tick. The worker does not apply it
	// to its individual queue/store calls.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0" yaml:"request_timeout"`

	// LaunchRetries caps retries of a failed worker launch within a single
	// dispatcher invocation.
	LaunchRetries int `mapstructure:"launch_retries" validate:"gte=0" yaml:"launch_retries"`
}

// StoreConfig identifies one S3-compatible bucket/endpoint pair.
type StoreConfig struct {
	// Bucket is the bucket name. A CREATE/DELETE event whose bucket does not
	// match Source.Bucket fails CONFIG_MISMATCH.
	Bucket string `mapstructure:"bucket" validate:"required" yaml:"bucket"`

	// Region is the AWS region the bucket lives in.
	Region string `mapstructure:"region" validate:"required" yaml:"region"`

	// Endpoint overrides the default AWS endpoint, for S3-compatible stores
	// that are not AWS S3 itself.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// ForcePathStyle addresses the bucket via <endpoint>/<bucket> instead of
	// <bucket>.<endpoint>, required by most non-AWS S3-compatible stores.
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// QueueConfig configures the durable queue the event source reads from.
type QueueConfig struct {
	// URL is the queue endpoint.
	URL string `mapstructure:"url" validate:"required" yaml:"url"`

	// Region is the AWS region the queue lives in.
	Region string `mapstructure:"region" validate:"required" yaml:"region"`
}

// LauncherConfig configures the compute-launcher used to start Worker
// processes.
type LauncherConfig struct {
	// Region is the AWS region the ECS cluster lives in.
	Region string `mapstructure:"region" validate:"required" yaml:"region"`

	// Cluster is the ECS cluster workers are launched into.
	Cluster string `mapstructure:"cluster" validate:"required" yaml:"cluster"`

	// TaskDefinition is the ECS task definition (family:revision or ARN) run
	// per worker.
	TaskDefinition string `mapstructure:"task_definition" validate:"required" yaml:"task_definition"`

	// Subnets are the VPC subnets workers are launched into.
	Subnets []string `mapstructure:"subnets" validate:"required,min=1" yaml:"subnets"`

	// SecurityGroups are the VPC security groups attached to worker tasks.
	SecurityGroups []string `mapstructure:"security_groups" yaml:"security_groups,omitempty"`

	// PreemptibleWeight and OnDemandWeight control the capacity-provider
	// strategy split between FARGATE_SPOT and FARGATE; default 4:1.
	PreemptibleWeight int `mapstructure:"preemptible_weight" validate:"gte=0" yaml:"preemptible_weight"`
	OnDemandWeight    int `mapstructure:"on_demand_weight" validate:"gte=0" yaml:"on_demand_weight"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use a plaintext connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling rate, 0.0 to 1.0.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling controls Pyroscope continuous profiling.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled controls whether the metrics server runs.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the /metrics endpoint.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg to path in YAML form, restricted to owner
// read/write since it may carry VPC and cluster identifiers.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// setupViper wires environment variable overrides (prefix MIRROR_) and
// config file search for v.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("MIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("mirror")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if present. A missing file is
// not an error; the caller falls back to defaults.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes the mapstructure decode hooks for ByteSize and
// time.Duration fields.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// so config files can use "64Mi", "5Gi", or plain byte counts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// Validate runs struct-tag validation over cfg plus the mirror-specific
// cross-field checks the tags alone can't express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	if cfg.Source.Bucket == cfg.Target.Bucket && cfg.Source.Region == cfg.Target.Region && cfg.Source.Endpoint == cfg.Target.Endpoint {
		return fmt.Errorf("source and target resolve to the same bucket/region/endpoint")
	}

	if cfg.Mirror.PartSize <= 0 {
		return fmt.Errorf("mirror.part_size must be positive")
	}
	if cfg.Mirror.SingleCopyCeiling <= 0 {
		return fmt.Errorf("mirror.single_copy_ceiling must be positive")
	}

	return nil
}
