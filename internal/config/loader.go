package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Default config file names, in lookup order.
const (
	DefaultConfigFile  = "config.yaml"
	ExampleConfigFile  = "config.example.yaml"
	maxConfigFileBytes = 4 << 20
)

// envVarPattern matches a value that is exactly ${VAR} or ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`^\$\{([^}:]+)(:-([^}]*))?\}$`)

// ErrNoConfigFile is returned when neither the default nor the example config exists.
var ErrNoConfigFile = errors.New("no configuration file found")

// LoadConfig loads configuration from a file path.
// Validation is not performed; see LoadAndValidate.
func LoadConfig(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	f, err := os.Open(absPath) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := LoadConfigFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxConfigFileBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return parseConfig(data)
}

// LoadAndValidate loads and validates the configuration at path.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveConfigPath returns path when it is set. Otherwise it returns
// config.yaml from dir, falling back to config.example.yaml.
func ResolveConfigPath(path, dir string) (string, error) {
	if path != "" {
		return path, nil
	}
	for _, name := range []string{DefaultConfigFile, ExampleConfigFile} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: looked for %s and %s in %s",
		ErrNoConfigFile, DefaultConfigFile, ExampleConfigFile, dir)
}

// parseConfig parses YAML data into a Config.
func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)
	for _, target := range cfg.Targets {
		if target != nil {
			expandHeaders(target.Headers)
			normalizeBodies(target)
		}
	}
	resolveTarget(&cfg)

	return &cfg, nil
}

// applyDefaults fills omitted fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.UpstreamTimeout == 0 {
		cfg.Server.UpstreamTimeout = Duration(DefaultUpstreamTimeout)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = DefaultMetricsPath
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = DefaultLogOutput
	}
	if r := cfg.Logging.Rotation; r != nil {
		if r.MaxSizeMB == 0 {
			r.MaxSizeMB = 100
		}
		if r.MaxBackups == 0 {
			r.MaxBackups = 3
		}
		if r.MaxAgeDays == 0 {
			r.MaxAgeDays = 7
		}
	}

	if t := cfg.Tracing; t != nil {
		if t.SamplingRate == 0 {
			t.SamplingRate = 1.0
		}
		if t.ServiceName == "" {
			t.ServiceName = DefaultServiceName
		}
	}
}

// expandHeaders replaces header values written as ${VAR} or
// ${VAR:-default} with the environment value. Only whole values are
// expanded. An unset variable without a default is left as written.
func expandHeaders(headers map[string]string) {
	for name, value := range headers {
		m := envVarPattern.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		if v, ok := os.LookupEnv(m[1]); ok {
			headers[name] = v
		} else if m[2] != "" {
			headers[name] = m[3]
		}
	}
}

// normalizeBodies rewrites failure response bodies so they encode as
// JSON. YAML mappings with non-string keys decode as map[any]any; their
// keys are turned into strings.
func normalizeBodies(t *Target) {
	for i := range t.Endpoints {
		rules := t.Endpoints[i].FailureRules
		for j := range rules {
			if body := rules[j].Response.Body; body != nil {
				rules[j].Response.Body = normalizeValue(body).(map[string]any)
			}
		}
	}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[jsonKey(k)] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func jsonKey(k any) string {
	if k == nil {
		return "null"
	}
	return fmt.Sprint(k)
}

// resolveTarget picks the active target. It leaves Target nil when the
// choice is ambiguous; the validator reports why.
func resolveTarget(cfg *Config) {
	if cfg.ActiveTarget != "" {
		if t, ok := cfg.Targets[cfg.ActiveTarget]; ok && t != nil {
			cfg.Target = t
			cfg.TargetName = cfg.ActiveTarget
		}
		return
	}
	if len(cfg.Targets) != 1 {
		return
	}
	for name, t := range cfg.Targets {
		cfg.Target = t
		cfg.TargetName = name
	}
}

// TargetNames returns the declared target names in sorted order.
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
