package config

import "time"

// Default values applied by the loader when a field is omitted.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8000
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsPath     = "/metrics"
	DefaultLogLevel        = "INFO"
	DefaultLogFormat       = "console"
	DefaultLogOutput       = "stdout"
	DefaultServiceName     = "faultproxy"

	// WildcardPath matches every request path.
	WildcardPath = "/*"
	// WildcardMethod matches every request method.
	WildcardMethod = "*"
)

// Config is the root configuration of the proxy.
// A *Config is treated as immutable once LoadConfig returns it.
type Config struct {
	Server       ServerConfig       `yaml:"server" json:"server"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
	Tracing      *TracingConfig     `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	Targets      map[string]*Target `yaml:"targets" json:"targets"`
	ActiveTarget string             `yaml:"active_target,omitempty" json:"active_target,omitempty"`

	// Target is the resolved active target. It is set by the loader.
	Target *Target `yaml:"-" json:"-"`
	// TargetName is the key of Target inside Targets.
	TargetName string `yaml:"-" json:"-"`
}

// ServerConfig holds listener and upstream client settings.
type ServerConfig struct {
	Host            string   `yaml:"host" json:"host"`
	Port            int      `yaml:"port" json:"port"`
	Debug           bool     `yaml:"debug" json:"debug"`
	UpstreamTimeout Duration `yaml:"upstream_timeout,omitempty" json:"upstream_timeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`
	MetricsPort     int      `yaml:"metrics_port,omitempty" json:"metrics_port,omitempty"`
	MetricsPath     string   `yaml:"metrics_path,omitempty" json:"metrics_path,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level    string             `yaml:"level" json:"level"`
	Format   string             `yaml:"format" json:"format"`
	Output   string             `yaml:"output,omitempty" json:"output,omitempty"`
	Rotation *LogRotationConfig `yaml:"rotation,omitempty" json:"rotation,omitempty"`
}

// LogRotationConfig configures rotation when logging to a file.
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool `yaml:"compress" json:"compress"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty"`
	ServiceName  string  `yaml:"service_name,omitempty" json:"service_name,omitempty"`
}

// Target is the backend all matched requests are forwarded to.
type Target struct {
	URL       string            `yaml:"url" json:"url"`
	Headers   map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Endpoints []Endpoint        `yaml:"endpoints" json:"endpoints"`
}

// Endpoint is a path pattern plus the methods it accepts.
type Endpoint struct {
	Path         string        `yaml:"path" json:"path"`
	Methods      []string      `yaml:"methods" json:"methods"`
	Debug        bool          `yaml:"debug" json:"debug"`
	FailureRules []FailureRule `yaml:"failure_rules,omitempty" json:"failure_rules,omitempty"`
}

// FailureRule pairs a trigger condition with the synthetic response to return.
type FailureRule struct {
	Condition FailureCondition `yaml:"condition" json:"condition"`
	Response  FailureResponse  `yaml:"response" json:"response"`
}

// FailureCondition describes when a rule fires. Nil fields are unset.
type FailureCondition struct {
	Enabled     *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Method      string   `yaml:"method,omitempty" json:"method,omitempty"`
	Count       *int     `yaml:"count,omitempty" json:"count,omitempty"`
	Every       *int     `yaml:"every,omitempty" json:"every,omitempty"`
	Probability *float64 `yaml:"probability,omitempty" json:"probability,omitempty"`
	// Delay is in milliseconds.
	Delay *int `yaml:"delay,omitempty" json:"delay,omitempty"`
}

// IsEnabled reports whether the rule participates in evaluation.
func (c *FailureCondition) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// DelayDuration returns the configured delay, or zero.
func (c *FailureCondition) DelayDuration() time.Duration {
	if c.Delay == nil || *c.Delay <= 0 {
		return 0
	}
	return time.Duration(*c.Delay) * time.Millisecond
}

// FailureResponse is the synthetic response returned when a rule fires.
type FailureResponse struct {
	StatusCode int               `yaml:"status_code" json:"status_code"`
	Body       map[string]any    `yaml:"body,omitempty" json:"body,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// ListenAddress returns host:port for the proxy listener.
func (s *ServerConfig) ListenAddress() string {
	return joinHostPort(s.Host, s.Port)
}

// MetricsAddress returns host:port for the metrics listener, or "" when disabled.
func (s *ServerConfig) MetricsAddress() string {
	if s.MetricsPort == 0 {
		return ""
	}
	return joinHostPort(s.Host, s.MetricsPort)
}
