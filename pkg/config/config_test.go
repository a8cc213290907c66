package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KevinZhao/s3sync/internal/bytesize"
)

const (
	mib = bytesize.MiB
	gib = bytesize.GiB
)

func validConfig() *Config {
	cfg := &Config{
		Source: StoreConfig{Bucket: "src-bucket", Region: "us-east-1"},
		Target: StoreConfig{Bucket: "dst-bucket", Region: "us-east-1"},
		Queue:  QueueConfig{URL: "https://sqs.us-east-1.amazonaws.com/123456789012/mirror", Region: "us-east-1"},
		Launcher: LauncherConfig{
			Region:         "us-east-1",
			Cluster:        "mirror-cluster",
			TaskDefinition: "mirror-worker:3",
			Subnets:        []string{"subnet-abc123"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	cases := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"MaxWorkers", cfg.Mirror.MaxWorkers, 64},
		{"TargetBacklogPerTask", cfg.Mirror.TargetBacklogPerTask, 3},
		{"BurstStartLimit", cfg.Mirror.BurstStartLimit, 20},
		{"DispatchPeriod", cfg.Mirror.DispatchPeriod, 60 * time.Second},
		{"VisibilityTimeout", cfg.Mirror.VisibilityTimeout, 1800 * time.Second},
		{"ExtendInterval", cfg.Mirror.ExtendInterval, 300 * time.Second},
		{"EmptyPollsBeforeExit", cfg.Mirror.EmptyPollsBeforeExit, 3},
		{"WaitTime", cfg.Mirror.WaitTime, 20 * time.Second},
		{"CopyParallelism", cfg.Mirror.CopyParallelism, 256},
		{"PartRetries", cfg.Mirror.PartRetries, 3},
		{"DeleteRetries", cfg.Mirror.DeleteRetries, 3},
		{"DrainDeadline", cfg.Mirror.DrainDeadline, 25 * time.Second},
		{"RequestTimeout", cfg.Mirror.RequestTimeout, 60 * time.Second},
		{"LaunchRetries", cfg.Mirror.LaunchRetries, 3},
		{"LoggingLevel", cfg.Logging.Level, "INFO"},
		{"LoggingFormat", cfg.Logging.Format, "text"},
		{"LoggingOutput", cfg.Logging.Output, "stdout"},
		{"TelemetryEndpoint", cfg.Telemetry.Endpoint, "localhost:4317"},
		{"TelemetrySampleRate", cfg.Telemetry.SampleRate, 1.0},
		{"ProfilingEndpoint", cfg.Telemetry.Profiling.Endpoint, "http://localhost:4040"},
		{"PreemptibleWeight", cfg.Launcher.PreemptibleWeight, 4},
		{"OnDemandWeight", cfg.Launcher.OnDemandWeight, 1},
	}

	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}

	if cfg.Mirror.PartSize != 64*mib {
		t.Errorf("PartSize = %v, want 64MiB", cfg.Mirror.PartSize)
	}
	if cfg.Mirror.SingleCopyCeiling != 5*gib {
		t.Errorf("SingleCopyCeiling = %v, want 5GiB", cfg.Mirror.SingleCopyCeiling)
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) != 6 {
		t.Errorf("ProfileTypes len = %d, want 6", len(cfg.Telemetry.Profiling.ProfileTypes))
	}
}

func TestApplyDefaultsDoesNotOverwriteSetValues(t *testing.T) {
	cfg := &Config{}
	cfg.Mirror.MaxWorkers = 10
	cfg.Logging.Level = "debug"
	ApplyDefaults(cfg)

	if cfg.Mirror.MaxWorkers != 10 {
		t.Errorf("MaxWorkers overwritten: got %d, want 10", cfg.Mirror.MaxWorkers)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Level = %q, want DEBUG (normalized)", cfg.Logging.Level)
	}
}

func TestValidateValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate() returned error for a valid config: %v", err)
	}
}

func TestValidateMissingRequiredFields(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Bucket = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() = nil, want error for missing source bucket")
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "TRACE"

	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() = nil, want error for invalid log level")
	}
}

func TestValidateInvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() = nil, want error for invalid log format")
	}
}

func TestValidateSampleRateOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() = nil, want error for sample rate > 1")
	}
}

func TestValidateSourceAndTargetIdentical(t *testing.T) {
	cfg := validConfig()
	cfg.Target.Bucket = cfg.Source.Bucket
	cfg.Target.Region = cfg.Source.Region
	cfg.Target.Endpoint = cfg.Source.Endpoint

	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() = nil, want error when source and target are identical")
	}
}

func TestValidateZeroMetricsPort(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() = %v, want nil (port omitempty skips zero)", err)
	}
}

func TestValidateInvalidMetricsPort(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 99999
	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() = nil, want error for out-of-range metrics port")
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatalf("Load() with no required fields set should fail validation, got cfg=%+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.yaml")
	contents := `
source:
  bucket: src-bucket
  region: us-east-1
target:
  bucket: dst-bucket
  region: us-west-2
queue:
  url: https://sqs.us-east-1.amazonaws.com/123456789012/mirror
  region: us-east-1
launcher:
  region: us-east-1
  cluster: mirror-cluster
  task_definition: mirror-worker:3
  subnets:
    - subnet-abc123
mirror:
  max_workers: 8
  part_size: 128Mi
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Mirror.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d, want 8", cfg.Mirror.MaxWorkers)
	}
	if cfg.Mirror.PartSize != 128*mib {
		t.Errorf("PartSize = %v, want 128MiB", cfg.Mirror.PartSize)
	}
	if cfg.Mirror.BurstStartLimit != 20 {
		t.Errorf("BurstStartLimit = %d, want default 20", cfg.Mirror.BurstStartLimit)
	}
	if cfg.Source.Bucket != "src-bucket" {
		t.Errorf("Source.Bucket = %q, want src-bucket", cfg.Source.Bucket)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "mirror.yaml")

	cfg := validConfig()
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig() returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("saved config mode = %v, want 0600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of saved config returned error: %v", err)
	}
	if loaded.Source.Bucket != cfg.Source.Bucket {
		t.Errorf("roundtrip Source.Bucket = %q, want %q", loaded.Source.Bucket, cfg.Source.Bucket)
	}
}
