package telemetry

// Config holds OpenTelemetry configuration shared by mirror-worker and
// mirror-dispatch.
type Config struct {
	// Enabled indicates whether tracing is enabled.
	Enabled bool

	// ServiceName is the name reported to the trace backend (distinguishes
	// worker spans from dispatcher spans when both export to the same
	// collector).
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Endpoint is the OTLP gRPC endpoint (e.g. "localhost:4317").
	Endpoint string

	// Insecure indicates whether to use a plaintext connection (no TLS).
	Insecure bool

	// SampleRate is the trace sampling rate, 0.0 to 1.0.
	SampleRate float64
}

// DefaultConfig returns the default telemetry configuration (disabled).
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "mirror-worker",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
