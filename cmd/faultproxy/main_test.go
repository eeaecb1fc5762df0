package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/faultproxy/internal/health"
	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

func testConfig(port, metricsPort int, backendURL string) string {
	return fmt.Sprintf(`
server:
  host: 127.0.0.1
  port: %d
  metrics_port: %d
  shutdown_timeout: 5s
logging:
  level: INFO
  format: json
targets:
  backend:
    url: %s
    headers:
      X-Proxy: faultproxy
    endpoints:
      - path: /fail
        methods: [GET]
        failure_rules:
          - condition:
              every: 1
            response:
              status_code: 503
              body:
                error: injected
      - path: /*
        methods: ["*"]
`, port, metricsPort, backendURL)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// freePorts reserves n distinct ports and releases them.
func freePorts(t *testing.T, n int) []int {
	t.Helper()
	listeners := make([]net.Listener, 0, n)
	ports := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		listeners = append(listeners, ln)
		ports = append(ports, ln.Addr().(*net.TCPAddr).Port)
	}
	for _, ln := range listeners {
		require.NoError(t, ln.Close())
	}
	return ports
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "faultproxy version dev")
	assert.Contains(t, out, "Git commit: unknown")
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.yaml")
	writeFile(t, valid, testConfig(8000, 0, "http://127.0.0.1:9999"))

	out, err := execute(t, "validate", "--config", valid)
	require.NoError(t, err)
	assert.Contains(t, out, valid+": ok")
	assert.Contains(t, out, "backend (http://127.0.0.1:9999)")
	assert.Contains(t, out, "endpoints: 2")

	invalid := filepath.Join(dir, "invalid.yaml")
	writeFile(t, invalid, testConfig(8000, 8000, "not-a-url"))

	_, err = execute(t, "validate", "-c", invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.metrics_port")
	assert.Contains(t, err.Error(), "targets.backend.url")

	_, err = execute(t, "validate", "-c", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRootCommand_RejectsArgs(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "unexpected")
	assert.Error(t, err)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, testConfig(8000, 0, "http://127.0.0.1:9999"))

	cfg, resolved, err := loadConfig(&cliFlags{configPath: path, logLevel: "WARNING", logFormat: "console"})
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, "WARNING", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	_, _, err = loadConfig(&cliFlags{configPath: path, logLevel: "LOUD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")

	_, _, err = loadConfig(&cliFlags{configPath: path, logFormat: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestRootCommand_EnvDefaults(t *testing.T) {
	t.Setenv(envConfigPath, "/etc/faultproxy/config.yaml")
	t.Setenv(envLogLevel, "DEBUG")

	pf := newRootCmd().PersistentFlags()
	assert.Equal(t, "/etc/faultproxy/config.yaml", pf.Lookup("config").DefValue)
	assert.Equal(t, "DEBUG", pf.Lookup("log-level").DefValue)
	assert.Empty(t, pf.Lookup("log-format").DefValue)
}

func TestHealth_NotRunning(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, testConfig(8000, 0, "http://127.0.0.1:9999"))

	cfg, _, err := loadConfig(&cliFlags{configPath: path})
	require.NoError(t, err)

	app, err := newApplication(cfg, observability.NopLogger())
	require.NoError(t, err)
	assert.Nil(t, app.metricsServer)

	rec := httptest.NewRecorder()
	app.health.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, health.StatusUnhealthy, resp.Status)
	assert.Equal(t, "stopped", resp.Checks["gateway"].Message)
	assert.Equal(t, "backend", resp.Checks["config"].Message)
	assert.Equal(t, health.StatusHealthy, resp.Checks["failures"].Status)
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "backend:"+r.URL.Path+":"+r.Header.Get("X-Proxy"))
	}))
	t.Cleanup(backend.Close)

	ports := freePorts(t, 2)
	port, metricsPort := ports[0], ports[1]
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, testConfig(port, metricsPort, backend.URL))

	cfg, _, err := loadConfig(&cliFlags{configPath: path})
	require.NoError(t, err)

	app, err := newApplication(cfg, observability.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, app, path) }()

	proxyURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	metricsURL := fmt.Sprintf("http://127.0.0.1:%d", metricsPort)

	require.Eventually(t, func() bool {
		resp, err := http.Get(metricsURL + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	status, body := getBody(t, proxyURL+"/users/1")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "backend:/users/1:faultproxy", body)

	status, body = getBody(t, proxyURL+"/fail")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"error":"injected"}`, body)

	status, body = getBody(t, metricsURL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"GET:/fail":1`)

	status, body = getBody(t, metricsURL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `faultproxy_requests_total{method="GET",outcome="injected"} 1`)
	assert.Contains(t, body, `faultproxy_build_info`)

	// Hot reload: drop the failure rule.
	writeFile(t, path, strings.Replace(testConfig(port, metricsPort, backend.URL), "every: 1", "enabled: false", 1))

	assert.Eventually(t, func() bool {
		return app.gateway.Version() >= 2
	}, 5*time.Second, 20*time.Millisecond)

	status, body = getBody(t, proxyURL+"/fail")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "backend:/fail:faultproxy", body)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.False(t, app.gateway.IsRunning())
}
