package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/nclamvn/teacherAI/internal/speaking"
	"github.com/nclamvn/teacherAI/pkg/provider/stt"
	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

func (s *Server) handleReadAloud(w http.ResponseWriter, r *http.Request) {
	audio, err := s.readAudio(w, r)
	if err != nil {
		fail(w, r, err, "Failed to evaluate pronunciation")
		return
	}

	req := speaking.ReadAloudRequest{
		Audio:        audio,
		ExpectedText: r.FormValue("expected_text"),
		UserID:       strings.TrimSpace(r.FormValue("user_id")),
		Language:     strings.TrimSpace(r.FormValue("language")),
	}
	if strings.TrimSpace(req.ExpectedText) == "" {
		writeError(w, http.StatusBadRequest, "expected_text is required")
		return
	}
	if v := r.FormValue("ignore_fillers"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ignore_fillers must be a boolean")
			return
		}
		req.IgnoreFillers = &b
	}

	res, err := s.svc.ReadAloud(r.Context(), req)
	if err != nil {
		fail(w, r, err, "Failed to evaluate pronunciation")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req speaking.ScoreTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err, "Failed to evaluate pronunciation")
		return
	}
	if strings.TrimSpace(req.ExpectedText) == "" {
		writeError(w, http.StatusBadRequest, "expected_text is required")
		return
	}

	res, err := s.svc.ScoreText(r.Context(), req)
	if err != nil {
		fail(w, r, err, "Failed to evaluate pronunciation")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type transcribeResponse struct {
	Transcript string  `json:"transcript"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	audio, err := s.readAudio(w, r)
	if err != nil {
		fail(w, r, err, "Failed to transcribe audio")
		return
	}

	t, err := s.svc.Transcribe(r.Context(), audio, strings.TrimSpace(r.FormValue("language")))
	if err != nil {
		fail(w, r, err, "Failed to transcribe audio")
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{
		Transcript: t.Text,
		Language:   t.Language,
		Confidence: t.Confidence,
	})
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type ttsResponse struct {
	AudioURL string `json:"audio_url"`
	Text     string `json:"text"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err, "Failed to synthesize speech")
		return
	}

	url, err := s.svc.Speak(r.Context(), req.Text, strings.TrimSpace(req.Voice))
	if err != nil {
		fail(w, r, err, "Failed to synthesize speech")
		return
	}
	writeJSON(w, http.StatusOK, ttsResponse{AudioURL: url, Text: req.Text})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.svc.Voices(r.Context())
	if err != nil {
		fail(w, r, err, "Failed to list voices")
		return
	}
	if voices == nil {
		voices = []tts.Voice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

// readAudio extracts the "audio" file of a multipart request, enforcing the
// upload limit.
func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) (stt.Audio, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if tooLarge := asMaxBytes(err); tooLarge != nil {
			return stt.Audio{}, tooLarge
		}
		return stt.Audio{}, badRequest("expected a multipart form with an audio file")
	}

	f, hdr, err := r.FormFile("audio")
	if err != nil {
		return stt.Audio{}, badRequest("audio file is required")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return stt.Audio{}, fmt.Errorf("api: read upload: %w", err)
	}
	return stt.Audio{
		Data:        data,
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
	}, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(v); err != nil {
		if tooLarge := asMaxBytes(err); tooLarge != nil {
			return tooLarge
		}
		return badRequest("invalid JSON body")
	}
	return nil
}
