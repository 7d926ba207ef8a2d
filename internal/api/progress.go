package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nclamvn/teacherAI/internal/progress"
)

func (s *Server) handleWeakWords(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	words, err := s.svc.WeakWords(r.Context(), user, limit)
	if err != nil {
		fail(w, r, err, "Failed to load progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": user, "weak_words": words})
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	attempts, err := s.svc.Attempts(r.Context(), user, limit)
	if err != nil {
		fail(w, r, err, "Failed to load progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": user, "attempts": attempts})
}

type savePhraseRequest struct {
	Phrase  string    `json:"phrase"`
	Source  string    `json:"source"`
	Topic   string    `json:"topic"`
	SavedAt time.Time `json:"saved_at"`
}

func (s *Server) handleSavePhrase(w http.ResponseWriter, r *http.Request) {
	var req savePhraseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err, "Failed to save phrase")
		return
	}
	saved, err := s.svc.SavePhrase(r.Context(), progress.Phrase{
		UserID:  r.PathValue("user"),
		Text:    req.Phrase,
		Source:  req.Source,
		Topic:   req.Topic,
		SavedAt: req.SavedAt,
	})
	if err != nil {
		fail(w, r, err, "Failed to save phrase")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handlePhrases(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	topic := r.URL.Query().Get("topic")
	phrases, err := s.svc.Phrases(r.Context(), user, topic, limit)
	if err != nil {
		fail(w, r, err, "Failed to load phrases")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": user, "topic": topic, "phrases": phrases})
}

// parseLimit reads the optional limit query parameter through
// [progress.ClampLimit]. It writes a 400 and reports false when the value
// is not an integer.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return progress.DefaultLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return 0, false
	}
	return progress.ClampLimit(n), true
}
