package config

// TelemetryConfig switches OTLP trace export on and addresses the
// collector.
type TelemetryConfig struct {
	Enabled       bool
	ServiceName   string
	CollectorAddr string
	SampleRatio   float64
}

func LoadTelemetryConfig() TelemetryConfig {
	ratio := float64(envInt("OTEL_SAMPLE_PERCENT", 100)) / 100
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return TelemetryConfig{
		Enabled:       envBool("OTEL_ENABLED", false),
		ServiceName:   envStr("OTEL_SERVICE_NAME", "express-reservations"),
		CollectorAddr: envStr("OTEL_COLLECTOR_ADDR", "localhost:4317"),
		SampleRatio:   ratio,
	}
}
