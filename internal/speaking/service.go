// Package speaking orchestrates a read-aloud practice attempt: transcribe
// the learner's recording, score it against the expected sentence, explain
// the mistakes, phrase bilingual feedback, voice that feedback and record
// the attempt in the learner's history.
//
// Only transcription and scoring can fail a request. Feedback generation,
// speech synthesis and progress recording degrade to fallbacks or empty
// fields and are logged.
package speaking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nclamvn/teacherAI/internal/feedback"
	"github.com/nclamvn/teacherAI/internal/mistake"
	"github.com/nclamvn/teacherAI/internal/observe"
	"github.com/nclamvn/teacherAI/internal/progress"
	"github.com/nclamvn/teacherAI/internal/scoring"
	"github.com/nclamvn/teacherAI/pkg/provider/stt"
	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

// ErrTranscription wraps failures of the speech transcriber.
var ErrTranscription = errors.New("speaking: transcription failed")

// ErrSpeechUnavailable is returned by [Service.Speak] and [Service.Voices]
// when no synthesizer is configured.
var ErrSpeechUnavailable = errors.New("speaking: speech synthesis not configured")

// Speaker publishes synthesized text as a URL. [media.CachedSynthesizer]
// implements it.
type Speaker interface {
	SynthesizeURL(ctx context.Context, text string, voice tts.Voice) (string, error)
}

// Option configures a [Service].
type Option func(*Service)

// WithSpeaker enables voiced feedback.
func WithSpeaker(s Speaker) Option {
	return func(svc *Service) { svc.speaker = s }
}

// WithVoiceLister exposes the synthesizer's voices through [Service.Voices].
func WithVoiceLister(l tts.VoiceLister) Option {
	return func(svc *Service) { svc.voices = l }
}

// WithProgress enables attempt recording.
func WithProgress(s progress.Store) Option {
	return func(svc *Service) { svc.progress = s }
}

// WithMetrics overrides the metrics sink (default [observe.DefaultMetrics]).
func WithMetrics(m *observe.Metrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

// WithClock overrides time.Now for attempt timestamps.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// WithIDGenerator overrides the attempt ID source (default random UUIDs).
func WithIDGenerator(fn func() string) Option {
	return func(svc *Service) { svc.newID = fn }
}

// Service runs practice attempts. It is safe for concurrent use; the
// [Pipeline] can be swapped at runtime with [Service.SetPipeline].
type Service struct {
	transcriber stt.SpeechTranscriber
	speaker     Speaker
	voices      tts.VoiceLister
	progress    progress.Store
	metrics     *observe.Metrics
	now         func() time.Time
	newID       func() string

	pipeline atomic.Pointer[Pipeline]
}

// New returns a Service transcribing with transcriber and scoring with p
// (nil selects [DefaultPipeline]). A nil transcriber leaves text scoring
// working; audio requests fail with [ErrTranscription].
func New(transcriber stt.SpeechTranscriber, p *Pipeline, opts ...Option) *Service {
	s := &Service{
		transcriber: transcriber,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.pipeline.Store(p.withDefaults())
	return s
}

// Pipeline returns the active pipeline.
func (s *Service) Pipeline() *Pipeline { return s.pipeline.Load() }

// SetPipeline replaces the active pipeline. In-flight attempts finish with
// the pipeline they started with.
func (s *Service) SetPipeline(p *Pipeline) {
	p = p.withDefaults()
	s.pipeline.Store(p)
	slog.Info("speaking: pipeline updated",
		"secondary_signal", p.SecondarySignal,
		"word_weight", p.WordWeight,
		"secondary_weight", p.SecondaryWeight,
	)
}

// ReadAloud transcribes req.Audio and evaluates it against req.ExpectedText.
//
// An expected text without words yields [scoring.ErrInvalidInput] before
// any provider is called. Transcriber failures are wrapped in
// [ErrTranscription].
func (s *Service) ReadAloud(ctx context.Context, req ReadAloudRequest) (*ReadAloudResult, error) {
	ctx, span := observe.StartSpan(ctx, "speaking.ReadAloud")
	defer span.End()

	p := s.pipeline.Load()
	ignore := p.IgnoreFillers
	if req.IgnoreFillers != nil {
		ignore = *req.IgnoreFillers
	}

	if err := checkExpected(p, req.ExpectedText, ignore); err != nil {
		observe.FailSpan(span, err)
		return nil, err
	}
	if len(req.Audio.Data) == 0 {
		return nil, stt.ErrEmptyAudio
	}

	lang := req.Language
	if lang == "" {
		lang = p.Language
	}
	transcript, err := s.transcribe(ctx, req.Audio, lang)
	if err != nil {
		observe.FailSpan(span, err)
		return nil, err
	}

	return s.evaluate(ctx, p, evaluation{
		mode:     "audio",
		expected: req.ExpectedText,
		spoken:   transcript.Text,
		userID:   req.UserID,
		ignore:   ignore,
		speak:    true,
	})
}

// ScoreText evaluates already transcribed speech. It runs the ReadAloud
// pipeline without transcription or speech synthesis.
func (s *Service) ScoreText(ctx context.Context, req ScoreTextRequest) (*ReadAloudResult, error) {
	ctx, span := observe.StartSpan(ctx, "speaking.ScoreText")
	defer span.End()

	p := s.pipeline.Load()
	ignore := p.IgnoreFillers
	if req.IgnoreFillers != nil {
		ignore = *req.IgnoreFillers
	}
	if err := checkExpected(p, req.ExpectedText, ignore); err != nil {
		observe.FailSpan(span, err)
		return nil, err
	}

	return s.evaluate(ctx, p, evaluation{
		mode:     "text",
		expected: req.ExpectedText,
		spoken:   req.SpokenText,
		userID:   req.UserID,
		ignore:   ignore,
	})
}

// Transcribe returns the plain transcript of audio. An empty language
// selects the pipeline default.
func (s *Service) Transcribe(ctx context.Context, audio stt.Audio, language string) (*stt.Transcript, error) {
	ctx, span := observe.StartSpan(ctx, "speaking.Transcribe")
	defer span.End()

	if len(audio.Data) == 0 {
		return nil, stt.ErrEmptyAudio
	}
	if language == "" {
		language = s.pipeline.Load().Language
	}
	return s.transcribe(ctx, audio, language)
}

// Speak synthesizes text with the voice identified by voiceID (the English
// feedback voice when empty) and returns its URL.
func (s *Service) Speak(ctx context.Context, text, voiceID string) (string, error) {
	if s.speaker == nil {
		return "", ErrSpeechUnavailable
	}
	voice := s.pipeline.Load().VoiceEN
	if voiceID != "" && voiceID != voice.ID {
		voice = tts.Voice{ID: voiceID}
	}
	return s.speaker.SynthesizeURL(ctx, text, voice)
}

// Voices lists the voices of the configured synthesizer.
func (s *Service) Voices(ctx context.Context) ([]tts.Voice, error) {
	if s.voices == nil {
		return nil, ErrSpeechUnavailable
	}
	return s.voices.ListVoices(ctx)
}

// WeakWords returns the learner's most missed words.
func (s *Service) WeakWords(ctx context.Context, userID string, limit int) ([]progress.WeakWord, error) {
	if s.progress == nil {
		return []progress.WeakWord{}, nil
	}
	return s.progress.WeakWords(ctx, userID, limit)
}

// Attempts returns the learner's attempt history, newest first.
func (s *Service) Attempts(ctx context.Context, userID string, limit int) ([]progress.Attempt, error) {
	if s.progress == nil {
		return []progress.Attempt{}, nil
	}
	return s.progress.Attempts(ctx, userID, limit)
}

func checkExpected(p *Pipeline, expected string, ignore bool) error {
	if len(p.Scorer.Normalizer().Normalize(expected, ignore)) == 0 {
		return fmt.Errorf("%w: expected text has no words", scoring.ErrInvalidInput)
	}
	return nil
}

func (s *Service) transcribe(ctx context.Context, audio stt.Audio, language string) (*stt.Transcript, error) {
	if s.transcriber == nil {
		return nil, fmt.Errorf("%w: no transcriber configured", ErrTranscription)
	}
	start := time.Now()
	// No prompt: hinting the expected sentence would bias the transcript
	// towards a perfect score.
	t, err := s.transcriber.Transcribe(ctx, audio, stt.Options{Language: language})
	if err != nil {
		slog.Warn("speaking: transcription failed", "err", err, "bytes", len(audio.Data))
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	if t == nil {
		t = &stt.Transcript{}
	}
	t.Text = strings.TrimSpace(t.Text)
	slog.Debug("speaking: transcribed",
		"chars", len(t.Text),
		"language", language,
		"elapsed", time.Since(start),
	)
	return t, nil
}

type evaluation struct {
	mode     string
	expected string
	spoken   string
	userID   string
	ignore   bool
	speak    bool
}

func (s *Service) evaluate(ctx context.Context, p *Pipeline, ev evaluation) (*ReadAloudResult, error) {
	report, err := p.Scorer.Score(ev.expected, ev.spoken, ev.ignore)
	if err != nil {
		return nil, err
	}
	mistakes := p.Analyzer.Analyze(report)

	fb := p.Feedback.Generate(ctx, feedback.Request{
		Expected: ev.expected,
		Spoken:   ev.spoken,
		Report:   report,
		Mistakes: mistakes,
	})

	secondary := p.secondary(report, fb)
	overall := scoring.HybridScore(report.Accuracy, secondary, p.WordWeight, p.SecondaryWeight)
	emotion := feedback.EmotionFor(overall)

	if mistakes == nil {
		mistakes = []mistake.Mistake{}
	}
	res := &ReadAloudResult{
		AttemptID:       s.newID(),
		Transcript:      ev.spoken,
		ExpectedText:    ev.expected,
		WordAccuracy:    report.Accuracy,
		AIFeedback:      fb.Combined(),
		OverallScore:    overall,
		SecondaryScore:  secondary,
		SecondarySignal: p.SecondarySignal,
		EmotionTag:      emotion,
		AccuracyDetails: detailsOf(report),
		Summary:         feedback.Summarize(report),
		FeedbackEN:      fb.English,
		FeedbackVI:      fb.Vietnamese,
		FeedbackSource:  fb.Source,
		TrickyWords:     fb.TrickyWords,
		Mistakes:        mistakes,
	}

	if ev.speak && s.speaker != nil {
		res.TTSEnURL, res.TTSViURL = s.voice(ctx, p, fb)
		res.TTSURL = res.TTSEnURL
	}

	s.record(ctx, ev.userID, res)

	trace.SpanFromContext(ctx).SetAttributes(
		observe.AttemptAttributes(ev.mode, string(emotion), string(fb.Source), report.Accuracy, overall)...,
	)
	s.metrics.RecordAttempt(ctx, ev.mode, string(emotion), report.Accuracy)
	s.metrics.RecordFeedback(ctx, string(fb.Source))
	observe.Logger(ctx).Info("speaking: attempt scored",
		"attempt_id", res.AttemptID,
		"mode", ev.mode,
		"accuracy", report.Accuracy,
		"overall", overall,
		"emotion", emotion,
		"feedback_source", fb.Source,
	)
	return res, nil
}

// voice synthesizes both feedback messages concurrently. A failed clip
// leaves its URL empty.
func (s *Service) voice(ctx context.Context, p *Pipeline, fb feedback.Feedback) (enURL, viURL string) {
	ctx, span := observe.StartSpan(ctx, "speaking.voice")
	defer span.End()

	var g errgroup.Group
	g.Go(func() error {
		enURL = s.speakOrLog(ctx, fb.English, p.VoiceEN, "en")
		return nil
	})
	g.Go(func() error {
		viURL = s.speakOrLog(ctx, fb.Vietnamese, p.VoiceVI, "vi")
		return nil
	})
	_ = g.Wait()

	span.SetAttributes(
		attribute.Bool("tts.en", enURL != ""),
		attribute.Bool("tts.vi", viURL != ""),
	)
	return enURL, viURL
}

func (s *Service) speakOrLog(ctx context.Context, text string, voice tts.Voice, lang string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	url, err := s.speaker.SynthesizeURL(ctx, text, voice)
	if err != nil {
		slog.Warn("speaking: feedback synthesis failed", "language", lang, "voice", voice.ID, "err", err)
		return ""
	}
	return url
}

func (s *Service) record(ctx context.Context, userID string, res *ReadAloudResult) {
	if s.progress == nil || userID == "" {
		return
	}
	err := s.progress.RecordAttempt(ctx, progress.Attempt{
		ID:           res.AttemptID,
		UserID:       userID,
		ExpectedText: res.ExpectedText,
		Transcript:   res.Transcript,
		WordAccuracy: res.WordAccuracy,
		OverallScore: res.OverallScore,
		EmotionTag:   string(res.EmotionTag),
		Mistakes:     res.Mistakes,
		CreatedAt:    s.now(),
	})
	if err != nil {
		slog.Warn("speaking: failed to record attempt", "attempt_id", res.AttemptID, "user_id", userID, "err", err)
	}
}
