package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nclamvn/teacherAI/internal/feedback"
	"github.com/nclamvn/teacherAI/internal/observe"
	"github.com/nclamvn/teacherAI/internal/progress"
	"github.com/nclamvn/teacherAI/internal/scoring"
	"github.com/nclamvn/teacherAI/internal/speaking"
	"github.com/nclamvn/teacherAI/pkg/provider/stt"
	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

// requestError is a malformed request detected by the handlers. Its
// message is shown to the client as is.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps an error chain to an HTTP status and the message shown to
// the client. Server-side failures get the generic message.
func statusFor(err error, generic string) (int, string) {
	var (
		tooLarge *http.MaxBytesError
		reqErr   *requestError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "upload too large"
	case errors.Is(err, scoring.ErrInvalidInput):
		return http.StatusBadRequest, "expected_text must contain at least one word"
	case errors.Is(err, stt.ErrEmptyAudio):
		return http.StatusBadRequest, "audio file is empty"
	case errors.Is(err, tts.ErrEmptyText):
		return http.StatusBadRequest, "text is required"
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case errors.Is(err, feedback.ErrInvalidExercise):
		return http.StatusBadRequest, "correct_answers must contain at least one answer"
	case errors.Is(err, progress.ErrInvalidPhrase):
		return http.StatusBadRequest, "phrase cannot be empty"
	case errors.Is(err, speaking.ErrSpeechUnavailable):
		return http.StatusServiceUnavailable, "speech synthesis is not configured"
	case errors.Is(err, speaking.ErrProgressUnavailable):
		return http.StatusServiceUnavailable, "progress storage is not configured"
	default:
		return http.StatusInternalServerError, generic
	}
}

// fail writes the error response for err and logs server-side failures.
func fail(w http.ResponseWriter, r *http.Request, err error, generic string) {
	status, msg := statusFor(err, generic)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("api: request failed", "route", r.Pattern, "err", err)
	}
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func asMaxBytes(err error) *http.MaxBytesError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return tooLarge
	}
	return nil
}
