package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const contentTypeJSON = "application/json"

// Status represents the health status.
type Status string

const (
	// StatusHealthy indicates the service is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the service is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the service is degraded but operational.
	StatusDegraded Status = "degraded"
)

// Response is the body served by the health and readiness endpoints.
type Response struct {
	Status    Status           `json:"status"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Check is the result of one named check. Details carries optional
// structured data such as counters.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func() Check

// Checker aggregates named checks.
type Checker struct {
	version   string
	startTime time.Time
	checks    map[string]CheckFunc
	mu        sync.RWMutex
}

// NewChecker creates a new health checker.
func NewChecker(version string) *Checker {
	return &Checker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
}

// RegisterCheck registers a health check function, replacing any check
// with the same name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Health runs every check and reports the worst status. Checks run
// outside the lock so a slow check does not block registration.
func (c *Checker) Health() Response {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	response := Response{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Checks:    make(map[string]Check, len(checks)),
		Timestamp: time.Now(),
	}

	for name, fn := range checks {
		check := fn()
		response.Checks[name] = check
		if severity[check.Status] > severity[response.Status] {
			response.Status = check.Status
		}
	}

	return response
}

var severity = map[Status]int{
	StatusHealthy:   0,
	StatusDegraded:  1,
	StatusUnhealthy: 2,
}

// HealthHandler serves the full check report. It answers 503 when any
// check is unhealthy.
func (c *Checker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response := c.Health()
		writeResponse(w, statusCode(response.Status), response)
	}
}

// ReadinessHandler serves only the overall status.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response := c.Health()
		writeResponse(w, statusCode(response.Status), Response{
			Status:    response.Status,
			Timestamp: response.Timestamp,
		})
	}
}

// LivenessHandler answers 200 while the process is serving.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func statusCode(status Status) int {
	if status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeResponse(w http.ResponseWriter, code int, response Response) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}
