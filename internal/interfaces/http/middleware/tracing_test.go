package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// setupTestTracer installs a recording tracer provider for the test.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prevTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		otel.SetTracerProvider(prevTP)
	})
	return sr
}

func spanAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{ServiceName: "test", Enabled: false}))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestSpanErrorMarker(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		status   int
		wantCode codes.Code
		wantDesc string
	}{
		{"success leaves status unset", http.StatusOK, codes.Unset, ""},
		{"conflict", http.StatusConflict, codes.Error, "Conflict"},
		{"unprocessable", http.StatusUnprocessableEntity, codes.Error, "Client Error"},
		{"server error", http.StatusInternalServerError, codes.Error, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)

			router := gin.New()
			router.Use(Tracing(), SpanErrorMarker())
			router.POST("/api/v1/periods/lock", func(c *gin.Context) {
				c.Status(tt.status)
			})

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/periods/lock", nil))

			spans := sr.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantCode, spans[0].Status().Code)
			if tt.wantDesc != "" {
				assert.Equal(t, tt.wantDesc, spans[0].Status().Description)
			}
		})
	}
}

func TestTracingAttributeInjector(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)
	groupID := uuid.New()

	router := gin.New()
	router.Use(Tracing(), logger.GinMiddleware(zap.NewNop()), Group(), TracingAttributeInjector())
	router.GET("/api/v1/subsidiaries", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subsidiaries", nil)
	req.Header.Set(GroupHeaderKey, groupID.String())
	req.Header.Set(ActorHeaderKey, "controller")
	req.Header.Set(logger.RequestIDHeader, "req-123")
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := spans[0].Attributes()

	v, ok := spanAttr(attrs, "group_id")
	require.True(t, ok)
	assert.Equal(t, groupID.String(), v.AsString())
	v, ok = spanAttr(attrs, "actor")
	require.True(t, ok)
	assert.Equal(t, "controller", v.AsString())
	v, ok = spanAttr(attrs, "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-123", v.AsString())
}

func TestGetRequestID_TruncatesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	long := make([]byte, MaxRequestIDLength+10)
	for i := range long {
		long[i] = 'a'
	}
	c.Request.Header.Set(logger.RequestIDHeader, string(long))

	assert.Len(t, getRequestID(c), MaxRequestIDLength)
}
