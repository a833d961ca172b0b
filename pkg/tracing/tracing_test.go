package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(Config{Enabled: false})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "dispatch")
	defer span.End()
	if span.IsRecording() {
		t.Fatal("expected non-recording span when disabled")
	}
	if TraceIDFromContext(ctx) != "" {
		t.Fatal("expected empty trace id when disabled")
	}
	SetError(ctx, errors.New("ignored"))
}

func TestEnabledRecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown, err := install(Config{ServiceName: "ordercalc", Enabled: true, SampleRate: 1}, sdktrace.WithSyncer(exporter))
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	defer func() {
		_ = shutdown(context.Background())
		tracingEnabled.Store(false)
	}()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/sessions/:id", func(c *gin.Context) {
		ctx, span := StartSpan(c.Request.Context(), "session.sync")
		AddEvent(ctx, "synced")
		span.End()
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/abc", nil))

	if rec.Header().Get(httpTraceHeader) == "" {
		t.Fatal("expected trace id header")
	}
	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[1].Name != "GET /v1/sessions/:id" {
		t.Fatalf("unexpected server span name %q", spans[1].Name)
	}
}
