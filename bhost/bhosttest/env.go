package bhosttest

import (
	"strconv"
	"strings"
	"testing"
)

// Env provides a chainable builder for setting [bhost.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets all [bhost.BaseEnvironment] env vars to sensible test defaults.
// Port is required because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - BP_SERVICE_NAME: "test"
//   - BP_LOG_LEVEL: "error"
//   - BP_OTEL_EXPORTER: "none"
//   - BP_MIDDLEWARE: ""
//   - BP_SERVICE: "echo"
//   - BP_CHANNEL_CAPACITY: "1"
//   - BP_EXCHANGE_TIMEOUT: "10s"
//
// Use the returned [Env] to override individual values:
//
//	bhosttest.SetBaseEnv(t, 18185).Middleware("forward").Service("validator")
func SetBaseEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("BP_PORT", strconv.Itoa(port))
	t.Setenv("BP_SERVICE_NAME", "test")
	t.Setenv("BP_LOG_LEVEL", "error")
	t.Setenv("BP_LOG_FILE", "")
	t.Setenv("BP_OTEL_EXPORTER", "none")
	t.Setenv("BP_MANIFEST", "")
	t.Setenv("BP_MIDDLEWARE", "")
	t.Setenv("BP_SERVICE", "echo")
	t.Setenv("BP_CHANNEL_CAPACITY", "1")
	t.Setenv("BP_EXCHANGE_TIMEOUT", "10s")
	return &Env{t: t}
}

// Middleware overrides BP_MIDDLEWARE.
func (e *Env) Middleware(refs ...string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_MIDDLEWARE", strings.Join(refs, ","))
	return e
}

// Service overrides BP_SERVICE.
func (e *Env) Service(ref string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_SERVICE", ref)
	return e
}

// Manifest overrides BP_MANIFEST.
func (e *Env) Manifest(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_MANIFEST", path)
	return e
}

// LogFile overrides BP_LOG_FILE.
func (e *Env) LogFile(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_LOG_FILE", path)
	return e
}

// OtelExporter overrides BP_OTEL_EXPORTER.
func (e *Env) OtelExporter(exp string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_OTEL_EXPORTER", exp)
	return e
}

// ExchangeTimeout overrides BP_EXCHANGE_TIMEOUT.
func (e *Env) ExchangeTimeout(d string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_EXCHANGE_TIMEOUT", d)
	return e
}
