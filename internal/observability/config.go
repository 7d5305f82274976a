package observability

// Config groups logging, metrics and tracing settings.
type Config struct {
	Logging LogConfig     `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// DefaultConfig returns the defaults used when no config file is present.
func DefaultConfig() Config {
	return Config{
		Logging: LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "otlp",
			SampleRate:  1.0,
			ServiceName: "conduit",
		},
	}
}
