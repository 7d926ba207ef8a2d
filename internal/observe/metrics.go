// Package observe holds the metrics, tracing and request logging shared by
// every teacherAI component.
//
// Instruments are created through the OpenTelemetry metrics API and exported
// to Prometheus by [InitProvider]. [DefaultMetrics] binds them to the global
// meter provider; tests pass their own provider to [NewMetrics].
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Provider kinds used as the "kind" attribute.
const (
	KindSTT = "stt"
	KindLLM = "llm"
	KindTTS = "tts"
)

// Metrics holds the application's instruments. Fields are safe for
// concurrent use.
type Metrics struct {
	// --- Provider latency ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks feedback generation latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// --- Provider counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// CircuitTransitions counts circuit breaker state changes. Use with
	// attributes: "provider", "kind", "state" (the entered state).
	CircuitTransitions metric.Int64Counter

	// --- Scoring ---

	// ScoringAttempts counts scored attempts. Use with attributes:
	//   attribute.String("mode", "audio"|"text"), attribute.String("emotion", ...)
	ScoringAttempts metric.Int64Counter

	// AccuracyPercent records the word accuracy of every attempt.
	AccuracyPercent metric.Float64Histogram

	// FeedbackResults counts feedback by source (llm, fallback, error,
	// rules).
	FeedbackResults metric.Int64Counter

	// TTSCacheLookups counts media cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	TTSCacheLookups metric.Int64Counter

	// --- HTTP middleware ---

	// ActiveRequests tracks in-flight HTTP requests.
	ActiveRequests metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...), attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// provider calls, which range from tens of milliseconds (cached TTS) to
// several seconds (long uploads).
var latencyBuckets = []float64{
	0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// accuracyBuckets splits the 0-100 accuracy range along the feedback tiers.
var accuracyBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 100,
}

// instruments creates instruments on one meter, remembering the first
// failure so construction reads as a flat list.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) seconds(name, desc string) metric.Float64Histogram {
	return in.histogram(name, desc, "s", latencyBuckets)
}

func (in *instruments) histogram(name, desc, unit string, buckets []float64) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	in.fail(name, err)
	return h
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.fail(name, err)
	return c
}

func (in *instruments) fail(name string, err error) {
	if err != nil {
		in.errs = append(in.errs, fmt.Errorf("%s: %w", name, err))
	}
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{meter: mp.Meter(scopeName)}
	met := &Metrics{
		STTDuration: in.seconds("teacherai.stt.duration", "Latency of speech-to-text transcription."),
		LLMDuration: in.seconds("teacherai.llm.duration", "Latency of feedback generation."),
		TTSDuration: in.seconds("teacherai.tts.duration", "Latency of text-to-speech synthesis."),

		ProviderRequests:   in.counter("teacherai.provider.requests", "Provider calls by provider, kind and status."),
		ProviderErrors:     in.counter("teacherai.provider.errors", "Failed provider calls by provider and kind."),
		CircuitTransitions: in.counter("teacherai.provider.circuit.transitions", "Circuit breaker state changes by provider, kind and entered state."),

		ScoringAttempts: in.counter("teacherai.scoring.attempts", "Scored attempts by mode and emotion tag."),
		AccuracyPercent: in.histogram("teacherai.scoring.accuracy", "Word accuracy of scored attempts.", "%", accuracyBuckets),
		FeedbackResults: in.counter("teacherai.feedback.results", "Feedback messages by source."),
		TTSCacheLookups: in.counter("teacherai.tts.cache.lookups", "TTS media cache lookups by result."),

		HTTPRequestDuration: in.seconds("teacherai.http.request.duration", "HTTP request latency by method, route and status."),
	}

	var err error
	met.ActiveRequests, err = in.meter.Int64UpDownCounter("teacherai.http.active_requests",
		metric.WithDescription("In-flight HTTP requests."),
	)
	in.fail("teacherai.http.active_requests", err)

	if len(in.errs) > 0 {
		return nil, fmt.Errorf("observe: create instruments: %w", errors.Join(in.errs...))
	}
	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// ObserveProvider records one provider call: its latency in the histogram
// for kind, a request counter and, when err is non-nil, an error counter.
// The signature matches resilience.FallbackConfig.Observe after binding
// kind.
func (m *Metrics) ObserveProvider(ctx context.Context, kind, provider string, d time.Duration, err error) {
	var h metric.Float64Histogram
	switch kind {
	case KindSTT:
		h = m.STTDuration
	case KindLLM:
		h = m.LLMDuration
	case KindTTS:
		h = m.TTSDuration
	}
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	if h != nil {
		h.Record(ctx, d.Seconds(), attrs)
	}

	status := "ok"
	if err != nil {
		status = "error"
		m.RecordProviderError(ctx, provider, kind)
	}
	m.RecordProviderRequest(ctx, provider, kind, status)
}

// ProviderObserver binds kind and returns a callback suitable for
// resilience.FallbackConfig.Observe.
func (m *Metrics) ProviderObserver(kind string) func(provider string, d time.Duration, err error) {
	return func(provider string, d time.Duration, err error) {
		m.ObserveProvider(context.Background(), kind, provider, d, err)
	}
}

// RecordCircuitTransition records a breaker of the given provider entering
// state.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, kind, provider, state string) {
	m.CircuitTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("state", state),
		),
	)
}

// RecordAttempt records one scored attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, mode, emotion string, accuracy float64) {
	m.ScoringAttempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("emotion", emotion),
		),
	)
	m.AccuracyPercent.Record(ctx, accuracy, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordFeedback records which path produced an attempt's feedback.
func (m *Metrics) RecordFeedback(ctx context.Context, source string) {
	m.FeedbackResults.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordCacheLookup records a TTS media cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.TTSCacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
