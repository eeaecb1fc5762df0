package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

var (
	validLogLevels = map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "WARNING": true,
		"ERROR": true, "CRITICAL": true,
	}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

// Validator validates proxy configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a proxy configuration.
func ValidateConfig(config *Config) error {
	v := NewValidator()
	return v.Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&config.Server)
	v.validateLogging(&config.Logging)
	if config.Tracing != nil {
		v.validateTracing(config.Tracing)
	}
	v.validateTargets(config)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(s *ServerConfig) {
	if s.Port < 1 || s.Port > 65535 {
		v.addError("server.port", "port must be between 1 and 65535")
	}
	if s.MetricsPort < 0 || s.MetricsPort > 65535 {
		v.addError("server.metrics_port", "port must be between 0 and 65535")
	} else if s.MetricsPort != 0 && s.MetricsPort == s.Port {
		v.addError("server.metrics_port", "metrics port must differ from server port")
	}
	if s.UpstreamTimeout < 0 {
		v.addError("server.upstream_timeout", "timeout cannot be negative")
	}
	if s.MetricsPath != "" && !strings.HasPrefix(s.MetricsPath, "/") {
		v.addError("server.metrics_path", "path must start with '/'")
	}
}

func (v *Validator) validateLogging(l *LoggingConfig) {
	if !validLogLevels[strings.ToUpper(l.Level)] {
		v.addError("logging.level", fmt.Sprintf("unknown log level %q", l.Level))
	}
	if !validLogFormats[strings.ToLower(l.Format)] {
		v.addError("logging.format", "format must be 'json' or 'console'")
	}
	if r := l.Rotation; r != nil {
		if r.MaxSizeMB < 0 || r.MaxBackups < 0 || r.MaxAgeDays < 0 {
			v.addError("logging.rotation", "rotation values cannot be negative")
		}
	}
}

func (v *Validator) validateTracing(t *TracingConfig) {
	if !inUnitInterval(t.SamplingRate) {
		v.addError("tracing.sampling_rate", "sampling rate must be between 0 and 1")
	}
}

func (v *Validator) validateTargets(config *Config) {
	if len(config.Targets) == 0 {
		v.addError("targets", "at least one target is required")
		return
	}

	if config.ActiveTarget != "" {
		if _, ok := config.Targets[config.ActiveTarget]; !ok {
			v.addError("active_target", fmt.Sprintf("target %q is not declared", config.ActiveTarget))
		}
	} else if len(config.Targets) > 1 {
		v.addError("active_target", "multiple targets declared; set active_target")
	}

	for _, name := range config.TargetNames() {
		v.validateTarget(config.Targets[name], "targets."+name)
	}
}

func (v *Validator) validateTarget(t *Target, path string) {
	if t == nil {
		v.addError(path, "target is empty")
		return
	}

	if t.URL == "" {
		v.addError(path+".url", "url is required")
	} else if u, err := url.Parse(t.URL); err != nil {
		v.addError(path+".url", fmt.Sprintf("invalid url: %v", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.addError(path+".url", "url must be an absolute http or https URL")
	}

	for i := range t.Endpoints {
		v.validateEndpoint(&t.Endpoints[i], fmt.Sprintf("%s.endpoints[%d]", path, i))
	}
}

func (v *Validator) validateEndpoint(e *Endpoint, path string) {
	if e.Path == "" {
		v.addError(path+".path", "path is required")
	} else if !strings.HasPrefix(e.Path, "/") {
		v.addError(path+".path", "path must start with '/'")
	}
	if len(e.Methods) == 0 {
		v.addError(path+".methods", "at least one method is required")
	}
	for i, m := range e.Methods {
		if strings.TrimSpace(m) == "" {
			v.addError(fmt.Sprintf("%s.methods[%d]", path, i), "method cannot be empty")
		}
	}

	for i := range e.FailureRules {
		v.validateRule(&e.FailureRules[i], fmt.Sprintf("%s.failure_rules[%d]", path, i))
	}
}

func (v *Validator) validateRule(r *FailureRule, path string) {
	c := r.Condition
	if c.Count != nil && *c.Count < 1 {
		v.addError(path+".condition.count", "count must be at least 1")
	}
	if c.Every != nil && *c.Every < 1 {
		v.addError(path+".condition.every", "every must be at least 1")
	}
	if c.Probability != nil && !inUnitInterval(*c.Probability) {
		v.addError(path+".condition.probability", "probability must be between 0 and 1")
	}
	if c.Delay != nil && *c.Delay < 0 {
		v.addError(path+".condition.delay", "delay cannot be negative")
	}
	if r.Response.StatusCode < 100 || r.Response.StatusCode > 599 {
		v.addError(path+".response.status_code", "status code must be between 100 and 599")
	}
	if r.Response.Body != nil {
		if _, err := json.Marshal(r.Response.Body); err != nil {
			v.addError(path+".response.body", fmt.Sprintf("body cannot be encoded as JSON: %v", err))
		}
	}
}

// inUnitInterval reports whether p is in [0, 1]. NaN is not.
func inUnitInterval(p float64) bool {
	return p >= 0 && p <= 1
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
