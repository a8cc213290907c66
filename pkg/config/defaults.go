package config

import (
	"strings"
	"time"

	"github.com/KevinZhao/s3sync/internal/bytesize"
)

// ApplyDefaults fills every unset field of cfg with its documented default.
// A field counts as unset when it holds its zero value, so an explicit zero
// from the file or environment is also replaced by the default; any other
// decoded value is kept (Logging.Level is upper-cased).
func ApplyDefaults(cfg *Config) {
	applyMirrorDefaults(&cfg.Mirror)
	applyLauncherDefaults(&cfg.Launcher)
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyMirrorDefaults(m *MirrorConfig) {
	if m.MaxWorkers == 0 {
		m.MaxWorkers = 64
	}
	if m.TargetBacklogPerTask == 0 {
		m.TargetBacklogPerTask = 3
	}
	if m.BurstStartLimit == 0 {
		m.BurstStartLimit = 20
	}
	if m.DispatchPeriod == 0 {
		m.DispatchPeriod = 60 * time.Second
	}
	if m.VisibilityTimeout == 0 {
		m.VisibilityTimeout = 1800 * time.Second
	}
	if m.ExtendInterval == 0 {
		m.ExtendInterval = 300 * time.Second
	}
	if m.EmptyPollsBeforeExit == 0 {
		m.EmptyPollsBeforeExit = 3
	}
	if m.WaitTime == 0 {
		m.WaitTime = 20 * time.Second
	}
	if m.CopyParallelism == 0 {
		m.CopyParallelism = 256
	}
	if m.PartSize == 0 {
		m.PartSize = 64 * bytesize.MiB
	}
	if m.SingleCopyCeiling == 0 {
		m.SingleCopyCeiling = 5 * bytesize.GiB
	}
	if m.PartRetries == 0 {
		m.PartRetries = 3
	}
	if m.DeleteRetries == 0 {
		m.DeleteRetries = 3
	}
	if m.DrainDeadline == 0 {
		m.DrainDeadline = 25 * time.Second
	}
	if m.RequestTimeout == 0 {
		m.RequestTimeout = 60 * time.Second
	}
	if m.LaunchRetries == 0 {
		m.LaunchRetries = 3
	}
}

func applyLauncherDefaults(l *LauncherConfig) {
	if l.PreemptibleWeight == 0 && l.OnDemandWeight == 0 {
		l.PreemptibleWeight = 4
		l.OnDemandWeight = 1
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "INFO"
	}
	l.Level = strings.ToUpper(l.Level)
	if l.Format == "" {
		l.Format = "text"
	}
	if l.Output == "" {
		l.Output = "stdout"
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
	if t.SampleRate == 0 {
		t.SampleRate = 1.0
	}
	applyProfilingDefaults(&t.Profiling)
}

func applyProfilingDefaults(p *ProfilingConfig) {
	if p.Endpoint == "" {
		p.Endpoint = "http://localhost:4040"
	}
	if len(p.ProfileTypes) == 0 {
		p.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyMetricsDefaults(m *MetricsConfig) {
	if m.Enabled && m.Port == 0 {
		m.Port = 9090
	}
}
