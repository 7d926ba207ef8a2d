// Package api exposes the speaking service over HTTP.
//
// Routes use the method and wildcard patterns of [http.ServeMux]. Every
// error is a JSON object {"error": "..."}; the status code is derived from
// the error chain by [statusFor].
package api

import (
	"context"
	"net/http"

	"github.com/nclamvn/teacherAI/internal/feedback"
	"github.com/nclamvn/teacherAI/internal/progress"
	"github.com/nclamvn/teacherAI/internal/speaking"
	"github.com/nclamvn/teacherAI/pkg/provider/stt"
	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

// Version is reported by the banner route. It is overridden at link time.
var Version = "dev"

// DefaultMaxUploadBytes caps recordings when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// maxJSONBytes caps JSON request bodies.
const maxJSONBytes = 1 << 20

// Speaking is the part of [speaking.Service] the handlers use.
type Speaking interface {
	ReadAloud(ctx context.Context, req speaking.ReadAloudRequest) (*speaking.ReadAloudResult, error)
	ScoreText(ctx context.Context, req speaking.ScoreTextRequest) (*speaking.ReadAloudResult, error)
	Transcribe(ctx context.Context, audio stt.Audio, language string) (*stt.Transcript, error)
	Speak(ctx context.Context, text, voiceID string) (string, error)
	Voices(ctx context.Context) ([]tts.Voice, error)
	WeakWords(ctx context.Context, userID string, limit int) ([]progress.WeakWord, error)
	Attempts(ctx context.Context, userID string, limit int) ([]progress.Attempt, error)
	SavePhrase(ctx context.Context, p progress.Phrase) (progress.Phrase, error)
	Phrases(ctx context.Context, userID, topic string, limit int) ([]progress.Phrase, error)
	CheckExercise(ctx context.Context, ex feedback.Exercise) (*speaking.ExerciseResult, error)
}

var _ Speaking = (*speaking.Service)(nil)

// Option configures a [Server].
type Option func(*Server)

// WithMaxUploadBytes caps multipart request bodies. Larger uploads get 413.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// Server holds the HTTP handlers.
type Server struct {
	svc       Speaking
	maxUpload int64
}

// New returns a Server backed by svc.
func New(svc Speaking, opts ...Option) *Server {
	s := &Server{svc: svc, maxUpload: DefaultMaxUploadBytes}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /ping", s.handlePing)

	mux.HandleFunc("POST /api/speaking/read-aloud", s.handleReadAloud)
	mux.HandleFunc("POST /api/speaking/score", s.handleScore)
	mux.HandleFunc("POST /api/speaking/transcribe", s.handleTranscribe)

	mux.HandleFunc("POST /api/lesson/check-exercise", s.handleCheckExercise)

	mux.HandleFunc("POST /api/tts", s.handleTTS)
	mux.HandleFunc("GET /api/tts/voices", s.handleVoices)

	mux.HandleFunc("GET /api/progress/{user}/weak-words", s.handleWeakWords)
	mux.HandleFunc("GET /api/progress/{user}/attempts", s.handleAttempts)
	mux.HandleFunc("GET /api/progress/{user}/phrases", s.handlePhrases)
	mux.HandleFunc("POST /api/progress/{user}/phrases", s.handleSavePhrase)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "teacherAI speaking service",
		"version": Version,
		"status":  "running",
	})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
