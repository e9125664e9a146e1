package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "lead_protection_backend/internal/http"
	"lead_protection_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type testConfig struct{}

func (testConfig) GetHTTPAddr() string { return ":0" }
func (testConfig) GetCORSAllowAll() bool { return false }
func (testConfig) GetCORSOrigins() []string { return []string{"http://localhost:4200"} }
func (testConfig) GetCORSAllowCreds() bool { return true }
func (testConfig) GetJWTAccessSecret() string { return "secret" }

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newEngine(health apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  testConfig{},
		Logger:  logger.Discard(),
		Health:  health,
		Modules: []apphttp.Module{pingModule{}},
	})
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	ok := newEngine(pingFunc(func(context.Context) error { return nil }))
	assert.Equal(t, http.StatusOK, serve(ok, http.MethodGet, "/api/health").Code)

	down := newEngine(pingFunc(func(context.Context) error { return errors.New("db down") }))
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodGet, "/api/health").Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	engine := newEngine(nil)
	rec := serve(engine, http.MethodGet, "/api/v1/ping")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	engine := newEngine(nil)
	serve(engine, http.MethodGet, "/api/health")

	rec := serve(engine, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
