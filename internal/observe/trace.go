package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// scopeName is the instrumentation scope of every teacherAI span.
const scopeName = "github.com/nclamvn/teacherAI"

// Span attribute keys shared by the speaking pipeline.
const (
	AttrAttemptMode    = attribute.Key("attempt.mode")
	AttrAttemptEmotion = attribute.Key("attempt.emotion")
	AttrWordAccuracy   = attribute.Key("attempt.word_accuracy")
	AttrOverallScore   = attribute.Key("attempt.overall_score")
	AttrFeedbackSource = attribute.Key("feedback.source")
)

// Tracer returns the teacherAI tracer of the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}

// StartSpan starts a span on [Tracer]. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// FailSpan marks span as failed with err. A nil err leaves the span alone.
func FailSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AttemptAttributes describes one scored attempt.
func AttemptAttributes(mode, emotion, feedbackSource string, wordAccuracy, overall float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAttemptMode.String(mode),
		AttrAttemptEmotion.String(emotion),
		AttrWordAccuracy.Float64(wordAccuracy),
		AttrOverallScore.Float64(overall),
		AttrFeedbackSource.String(feedbackSource),
	}
}

// CorrelationID is the trace ID of the span in ctx, or "" without one. The
// API echoes it in X-Correlation-ID so learners can quote it in bug reports.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger, tagged with the correlation and span
// IDs of the span in ctx when there is one.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("correlation_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
