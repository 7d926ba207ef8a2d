package observe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useRecorder installs an in-memory tracer provider as the global one for
// the duration of the test.
func useRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs redirects the default logger into a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestStartSpan_RecordsUnderScope(t *testing.T) {
	exp := useRecorder(t)

	ctx, span := StartSpan(context.Background(), "speaking.ScoreText")
	cid := CorrelationID(ctx)
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	got := spans[0]
	if got.Name != "speaking.ScoreText" {
		t.Errorf("name = %q", got.Name)
	}
	if got.InstrumentationScope.Name != scopeName {
		t.Errorf("scope = %q, want %q", got.InstrumentationScope.Name, scopeName)
	}
	if cid != got.SpanContext.TraceID().String() {
		t.Errorf("CorrelationID = %q, span trace ID = %q", cid, got.SpanContext.TraceID())
	}
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("without span: %q, want empty", got)
	}

	useRecorder(t)
	seen := make(map[string]bool)
	for range 50 {
		ctx, span := StartSpan(context.Background(), "attempt")
		cid := CorrelationID(ctx)
		span.End()
		if len(cid) != 32 {
			t.Fatalf("len(%q) = %d, want 32", cid, len(cid))
		}
		if seen[cid] {
			t.Fatalf("duplicate correlation ID %s", cid)
		}
		seen[cid] = true
	}
}

func TestFailSpan(t *testing.T) {
	exp := useRecorder(t)

	_, ok := StartSpan(context.Background(), "ok")
	FailSpan(ok, nil)
	ok.End()

	_, bad := StartSpan(context.Background(), "bad")
	FailSpan(bad, errors.New("transcriber unavailable"))
	bad.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	if spans[0].Status.Code != codes.Unset || len(spans[0].Events) != 0 {
		t.Errorf("nil error changed span: status %v, %d events", spans[0].Status.Code, len(spans[0].Events))
	}
	if spans[1].Status.Code != codes.Error || spans[1].Status.Description != "transcriber unavailable" {
		t.Errorf("status = %+v", spans[1].Status)
	}
	if len(spans[1].Events) != 1 || spans[1].Events[0].Name != "exception" {
		t.Errorf("events = %+v, want one exception", spans[1].Events)
	}
}

func TestAttemptAttributes(t *testing.T) {
	attrs := attribute.NewSet(AttemptAttributes("audio", "happy", "llm", 87.5, 90)...)

	checks := map[attribute.Key]attribute.Value{
		AttrAttemptMode:    attribute.StringValue("audio"),
		AttrAttemptEmotion: attribute.StringValue("happy"),
		AttrFeedbackSource: attribute.StringValue("llm"),
		AttrWordAccuracy:   attribute.Float64Value(87.5),
		AttrOverallScore:   attribute.Float64Value(90),
	}
	for k, want := range checks {
		got, ok := attrs.Value(k)
		if !ok {
			t.Errorf("missing %s", k)
			continue
		}
		if got != want {
			t.Errorf("%s = %v, want %v", k, got.Emit(), want.Emit())
		}
	}
}

func TestLogger(t *testing.T) {
	t.Run("with span", func(t *testing.T) {
		useRecorder(t)
		buf := captureLogs(t)

		ctx, span := StartSpan(context.Background(), "log")
		defer span.End()
		Logger(ctx).Info("attempt scored")

		out := buf.String()
		if !strings.Contains(out, "correlation_id="+CorrelationID(ctx)) {
			t.Errorf("missing correlation_id: %s", out)
		}
		if !strings.Contains(out, "span_id=") {
			t.Errorf("missing span_id: %s", out)
		}
	})

	t.Run("without span", func(t *testing.T) {
		buf := captureLogs(t)
		Logger(context.Background()).Info("attempt scored")
		if strings.Contains(buf.String(), "correlation_id") {
			t.Errorf("unexpected correlation_id: %s", buf.String())
		}
	})
}

// restoreGlobals puts back the OTel globals InitProvider replaces.
func restoreGlobals(t *testing.T) {
	t.Helper()
	mp, tp, prop := otel.GetMeterProvider(), otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetMeterProvider(mp)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestInitProvider_ServesRegistry(t *testing.T) {
	restoreGlobals(t)
	reg := prometheus.NewRegistry()

	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		ServiceVersion: "test",
		Registry:       reg,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	counter, err := otel.Meter(scopeName).Int64Counter("teacherai.test.scored")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	MetricsHandlerFor(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "teacherai_test_scored_total") {
		t.Errorf("metric missing from scrape:\n%s", body)
	}
	if !strings.Contains(string(body), `service_name="`+DefaultServiceName+`"`) {
		t.Errorf("service name missing from target_info:\n%s", body)
	}

	if fields := otel.GetTextMapPropagator().Fields(); !slices.Contains(fields, "traceparent") {
		t.Errorf("propagator fields = %v, want traceparent", fields)
	}

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitProvider_RejectsSampleRatio(t *testing.T) {
	restoreGlobals(t)
	for _, r := range []float64{-0.1, 1.5} {
		if _, err := InitProvider(context.Background(), ProviderConfig{SampleRatio: r, Registry: prometheus.NewRegistry()}); err == nil {
			t.Errorf("ratio %v accepted", r)
		}
	}
}
