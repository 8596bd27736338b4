package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestOtelHTTPCreatesSpanAndContext(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	spanValid := make(chan bool, 1)
	h := otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := oteltrace.SpanFromContext(r.Context()).SpanContext()
		spanValid <- sc.IsValid()
		_, span := Tracer("ixurl/test").Start(r.Context(), "child")
		span.End()
		w.WriteHeader(http.StatusOK)
	}), "http")

	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/urls", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if ok := <-spanValid; !ok {
		t.Fatal("span context is not valid in request context")
	}
	if got := len(sr.Ended()); got != 2 {
		t.Fatalf("ended spans: got %d, want 2", got)
	}
}
