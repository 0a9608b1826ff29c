package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"tileserver/internal/config"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/render", func(c *gin.Context) { c.String(http.StatusOK, "tile") })
	r.GET("/broken", func(c *gin.Context) { c.String(http.StatusInternalServerError, "boom") })
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestGinMiddlewareRecordsSpans(t *testing.T) {
	recorder := setupRecorder(t)
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/render?size=256", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/broken", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /render", spans[0].Name())
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "GET /broken", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestGinMiddlewareSkipsHealthz(t *testing.T) {
	recorder := setupRecorder(t)
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, recorder.Ended())
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), config.Telemetry{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
