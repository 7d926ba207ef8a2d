package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nclamvn/teacherAI/internal/api"
	"github.com/nclamvn/teacherAI/internal/media"
	progressmock "github.com/nclamvn/teacherAI/internal/progress/mock"
	"github.com/nclamvn/teacherAI/internal/speaking"
	"github.com/nclamvn/teacherAI/pkg/provider/stt"
	sttmock "github.com/nclamvn/teacherAI/pkg/provider/stt/mock"
	"github.com/nclamvn/teacherAI/pkg/provider/tts"
	ttsmock "github.com/nclamvn/teacherAI/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

type harness struct {
	stt      *sttmock.Transcriber
	tts      *ttsmock.Synthesizer
	progress *progressmock.Store
	mux      *http.ServeMux
}

func newHarness(t *testing.T, opts ...api.Option) *harness {
	t.Helper()
	h := &harness{
		stt:      &sttmock.Transcriber{Result: &stt.Transcript{Text: "the cat sat", Language: "en"}},
		tts:      &ttsmock.Synthesizer{Voices: []tts.Voice{{ID: "nova"}, {ID: "alloy"}}},
		progress: &progressmock.Store{},
		mux:      http.NewServeMux(),
	}
	store, err := media.NewStore(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	svc := speaking.New(h.stt, nil,
		speaking.WithSpeaker(media.NewCachedSynthesizer(store, h.tts)),
		speaking.WithVoiceLister(h.tts),
		speaking.WithProgress(h.progress),
	)
	api.New(svc, opts...).Register(h.mux)
	media.NewHandler(store).Register(h.mux)
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, path string, audio []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if audio != nil {
		fw, err := mw.CreateFormFile("audio", "take.webm")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(audio)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

// ── banner ───────────────────────────────────────────────────────────────────

func TestRootAndPing(t *testing.T) {
	h := newHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rec.Code)
	}
	banner := decode[map[string]string](t, rec)
	if banner["status"] != "running" || banner["version"] != api.Version {
		t.Errorf("banner = %v", banner)
	}

	rec = h.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if got := decode[map[string]string](t, rec)["status"]; got != "ok" {
		t.Errorf("ping status = %q", got)
	}

	if rec := h.do(httptest.NewRequest(http.MethodGet, "/nope", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

// ── read-aloud ───────────────────────────────────────────────────────────────

func TestReadAloud(t *testing.T) {
	h := newHarness(t)

	rec := h.do(multipartRequest(t, "/api/speaking/read-aloud", []byte("webm-bytes"), map[string]string{
		"expected_text": "The cat sat.",
		"user_id":       "learner-1",
		"language":      "en",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	res := decode[speaking.ReadAloudResult](t, rec)
	if res.WordAccuracy != 100 || res.Transcript != "the cat sat" {
		t.Errorf("result = %+v", res)
	}
	if res.TTSEnURL == "" || res.TTSViURL == "" {
		t.Errorf("tts urls = %q / %q", res.TTSEnURL, res.TTSViURL)
	}

	// The returned clip is served by the media route.
	clip := h.do(httptest.NewRequest(http.MethodGet, res.TTSEnURL, nil))
	if clip.Code != http.StatusOK || clip.Header().Get("Content-Type") != "audio/mpeg" {
		t.Errorf("GET %s: status %d type %q", res.TTSEnURL, clip.Code, clip.Header().Get("Content-Type"))
	}

	call := h.stt.Calls[0]
	if string(call.Audio.Data) != "webm-bytes" || call.Audio.Filename != "take.webm" {
		t.Errorf("transcriber got audio %+v", call.Audio)
	}
	if h.progress.RecordCalls != 1 {
		t.Errorf("RecordCalls = %d, want 1", h.progress.RecordCalls)
	}
}

func TestReadAloud_Errors(t *testing.T) {
	tests := []struct {
		name    string
		audio   []byte
		fields  map[string]string
		setup   func(*harness)
		opts    []api.Option
		status  int
		message string
	}{
		{
			name:    "missing audio",
			fields:  map[string]string{"expected_text": "hello"},
			status:  http.StatusBadRequest,
			message: "audio file is required",
		},
		{
			name:    "missing expected text",
			audio:   []byte("a"),
			status:  http.StatusBadRequest,
			message: "expected_text is required",
		},
		{
			name:    "expected text without words",
			audio:   []byte("a"),
			fields:  map[string]string{"expected_text": "?!"},
			status:  http.StatusBadRequest,
			message: "expected_text must contain at least one word",
		},
		{
			name:    "empty audio",
			audio:   []byte{},
			fields:  map[string]string{"expected_text": "hello"},
			status:  http.StatusBadRequest,
			message: "audio file is empty",
		},
		{
			name:    "bad ignore_fillers",
			audio:   []byte("a"),
			fields:  map[string]string{"expected_text": "hello", "ignore_fillers": "maybe"},
			status:  http.StatusBadRequest,
			message: "ignore_fillers must be a boolean",
		},
		{
			name:    "upload too large",
			audio:   bytes.Repeat([]byte("x"), 4096),
			fields:  map[string]string{"expected_text": "hello"},
			opts:    []api.Option{api.WithMaxUploadBytes(1024)},
			status:  http.StatusRequestEntityTooLarge,
			message: "upload too large",
		},
		{
			name:    "transcriber failure",
			audio:   []byte("a"),
			fields:  map[string]string{"expected_text": "hello"},
			setup:   func(h *harness) { h.stt.Err = errors.New("whisper down") },
			status:  http.StatusInternalServerError,
			message: "Failed to evaluate pronunciation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts...)
			if tt.setup != nil {
				tt.setup(h)
			}
			rec := h.do(multipartRequest(t, "/api/speaking/read-aloud", tt.audio, tt.fields))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if got := errorOf(t, rec); got != tt.message {
				t.Errorf("error = %q, want %q", got, tt.message)
			}
		})
	}
}

// ── score ────────────────────────────────────────────────────────────────────

func TestScore(t *testing.T) {
	h := newHarness(t)

	rec := h.do(jsonRequest(http.MethodPost, "/api/speaking/score",
		`{"expected_text":"she sells sea shells","spoken_text":"she sells","user_id":"u1"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	res := decode[speaking.ReadAloudResult](t, rec)
	if res.WordAccuracy != 50 || res.AccuracyDetails.Deletions != 2 {
		t.Errorf("result = %+v", res)
	}
	if res.TTSURL != "" || h.tts.CallCount() != 0 {
		t.Error("score route must not synthesize speech")
	}
	if h.stt.CallCount() != 0 {
		t.Error("score route must not transcribe")
	}

	for name, body := range map[string]string{
		"invalid json":     `{"expected_text":`,
		"missing expected": `{"spoken_text":"hi"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := h.do(jsonRequest(http.MethodPost, "/api/speaking/score", body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	if rec := h.do(httptest.NewRequest(http.MethodGet, "/api/speaking/score", nil)); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

// ── transcribe ───────────────────────────────────────────────────────────────

func TestTranscribe(t *testing.T) {
	h := newHarness(t)

	rec := h.do(multipartRequest(t, "/api/speaking/transcribe", []byte("wav"), map[string]string{"language": "en"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[map[string]any](t, rec)["transcript"]; got != "the cat sat" {
		t.Errorf("transcript = %v", got)
	}

	h.stt.Err = errors.New("boom")
	rec = h.do(multipartRequest(t, "/api/speaking/transcribe", []byte("wav"), nil))
	if rec.Code != http.StatusInternalServerError || errorOf(t, rec) != "Failed to transcribe audio" {
		t.Errorf("failure status = %d", rec.Code)
	}
}

// ── tts ──────────────────────────────────────────────────────────────────────

func TestTTS(t *testing.T) {
	h := newHarness(t)

	rec := h.do(jsonRequest(http.MethodPost, "/api/tts", `{"text":"Good morning","voice":"alloy"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[map[string]string](t, rec)
	want := "/media/" + media.Key("Good morning", "alloy") + media.Ext
	if got["audio_url"] != want || got["text"] != "Good morning" {
		t.Errorf("response = %v, want audio_url %q", got, want)
	}

	// A repeated request is served from the cache.
	h.do(jsonRequest(http.MethodPost, "/api/tts", `{"text":"Good morning","voice":"alloy"}`))
	if n := h.tts.CallCount(); n != 1 {
		t.Errorf("synthesizer calls = %d, want 1", n)
	}

	rec = h.do(jsonRequest(http.MethodPost, "/api/tts", `{"text":"   "}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty text status = %d, want 400", rec.Code)
	}

	h.tts.Err = errors.New("quota")
	rec = h.do(jsonRequest(http.MethodPost, "/api/tts", `{"text":"new sentence"}`))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("synth failure status = %d, want 500", rec.Code)
	}
}

func TestTTS_NotConfigured(t *testing.T) {
	mux := http.NewServeMux()
	api.New(speaking.New(&sttmock.Transcriber{}, nil)).Register(mux)

	for _, req := range []*http.Request{
		jsonRequest(http.MethodPost, "/api/tts", `{"text":"hi"}`),
		httptest.NewRequest(http.MethodGet, "/api/tts/voices", nil),
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s status = %d, want 503", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestVoices(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/tts/voices", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Voices []tts.Voice `json:"voices"`
	}](t, rec)
	if len(body.Voices) != 2 || body.Voices[0].ID != "nova" {
		t.Errorf("voices = %+v", body.Voices)
	}
}

// ── progress ─────────────────────────────────────────────────────────────────

func TestProgress(t *testing.T) {
	h := newHarness(t)
	for range 3 {
		rec := h.do(jsonRequest(http.MethodPost, "/api/speaking/score",
			`{"expected_text":"she sells sea shells","spoken_text":"she sells shells","user_id":"u1"}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("score status = %d", rec.Code)
		}
	}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/progress/u1/weak-words?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("weak-words status = %d", rec.Code)
	}
	ww := decode[struct {
		UserID    string `json:"user_id"`
		WeakWords []struct {
			Word       string `json:"word"`
			ErrorCount int    `json:"error_count"`
		} `json:"weak_words"`
	}](t, rec)
	if ww.UserID != "u1" || len(ww.WeakWords) != 1 || ww.WeakWords[0].Word != "sea" || ww.WeakWords[0].ErrorCount != 3 {
		t.Errorf("weak words = %+v", ww)
	}

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/progress/u1/attempts?limit=2", nil))
	at := decode[struct {
		Attempts []json.RawMessage `json:"attempts"`
	}](t, rec)
	if len(at.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(at.Attempts))
	}

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/progress/u1/attempts?limit=ten", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/progress/nobody/weak-words", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown user status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"weak_words":[]`) {
		t.Errorf("unknown user body = %s, want empty list", rec.Body)
	}

	h.progress.QueryErr = errors.New("db down")
	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/progress/u1/attempts", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("store failure status = %d, want 500", rec.Code)
	}
}

func TestPhrases(t *testing.T) {
	h := newHarness(t)

	for _, body := range []string{
		`{"phrase":"break the ice","source":"lesson_1","topic":"Work"}`,
		`{"phrase":"check in","topic":"travel","saved_at":"2026-01-02T08:00:00Z"}`,
	} {
		rec := h.do(jsonRequest(http.MethodPost, "/api/progress/u1/phrases", body))
		if rec.Code != http.StatusCreated {
			t.Fatalf("save status = %d (%s)", rec.Code, rec.Body)
		}
	}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/progress/u1/phrases?topic=work", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("phrases status = %d", rec.Code)
	}
	got := decode[struct {
		UserID  string `json:"user_id"`
		Phrases []struct {
			Phrase string `json:"phrase"`
			Source string `json:"source"`
			Topic  string `json:"topic"`
		} `json:"phrases"`
	}](t, rec)
	if got.UserID != "u1" || len(got.Phrases) != 1 || got.Phrases[0].Phrase != "break the ice" || got.Phrases[0].Topic != "work" {
		t.Errorf("phrases = %+v", got)
	}

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/progress/u1/phrases", nil))
	if n := len(decode[struct {
		Phrases []json.RawMessage `json:"phrases"`
	}](t, rec).Phrases); n != 2 {
		t.Errorf("all phrases = %d, want 2", n)
	}

	tests := []struct {
		name, body string
		status     int
		msg        string
	}{
		{"empty phrase", `{"phrase":"   "}`, http.StatusBadRequest, "phrase cannot be empty"},
		{"bad json", `{"phrase":`, http.StatusBadRequest, "invalid JSON body"},
		{"bad time", `{"phrase":"hi","saved_at":"yesterday"}`, http.StatusBadRequest, "invalid JSON body"},
	}
	for _, tt := range tests {
		rec := h.do(jsonRequest(http.MethodPost, "/api/progress/u1/phrases", tt.body))
		if rec.Code != tt.status || errorOf(t, rec) != tt.msg {
			t.Errorf("%s: status %d body %s, want %d %q", tt.name, rec.Code, rec.Body, tt.status, tt.msg)
		}
	}
}

func TestPhrases_NoStore(t *testing.T) {
	mux := http.NewServeMux()
	api.New(speaking.New(&sttmock.Transcriber{}, nil)).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/progress/u1/phrases", `{"phrase":"cheers"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress/u1/phrases", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"phrases":[]`) {
		t.Errorf("list without store: %d %s", rec.Code, rec.Body)
	}
}

// ── lessons ──────────────────────────────────────────────────────────────────

func TestCheckExercise(t *testing.T) {
	h := newHarness(t)

	rec := h.do(jsonRequest(http.MethodPost, "/api/lesson/check-exercise",
		`{"lesson_id":"lesson_2","exercise_type":"fill_blank","question":"I ___ home.","user_answers":["went"],"correct_answers":["went"]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	res := decode[struct {
		IsCorrect  bool    `json:"is_correct"`
		Score      float64 `json:"score"`
		Feedback   string  `json:"feedback"`
		EmotionTag string  `json:"emotion_tag"`
		Source     string  `json:"source"`
		TTSURL     string  `json:"tts_url"`
	}](t, rec)
	if !res.IsCorrect || res.Score != 100 || res.EmotionTag != "praise" || res.Source != "rules" {
		t.Errorf("result = %+v", res)
	}
	if res.Feedback != "Correct! Well done." || !strings.HasPrefix(res.TTSURL, "/media/") {
		t.Errorf("feedback %q url %q", res.Feedback, res.TTSURL)
	}

	tests := []struct {
		name, body string
		status     int
		msg        string
	}{
		{"unknown type", `{"exercise_type":"essay","correct_answers":["a"]}`, http.StatusBadRequest,
			"exercise_type must be multiple_choice, fill_blank or reorder"},
		{"no answers", `{"user_answers":["a"],"correct_answers":[]}`, http.StatusBadRequest,
			"correct_answers must contain at least one answer"},
		{"bad json", `[`, http.StatusBadRequest, "invalid JSON body"},
	}
	for _, tt := range tests {
		rec := h.do(jsonRequest(http.MethodPost, "/api/lesson/check-exercise", tt.body))
		if rec.Code != tt.status || errorOf(t, rec) != tt.msg {
			t.Errorf("%s: status %d body %s, want %d %q", tt.name, rec.Code, rec.Body, tt.status, tt.msg)
		}
	}
}

// ── CORS ─────────────────────────────────────────────────────────────────────

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := api.CORS("http://localhost:3000/")(ok)

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/speaking/score", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Allow-Origin = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "content-type" {
			t.Errorf("Allow-Headers = %q", got)
		}
	})

	t.Run("simple request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("credentials not allowed")
		}
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want none", got)
		}
	})

	t.Run("wildcard", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodOptions} {
			req := httptest.NewRequest(method, "/ping", nil)
			req.Header.Set("Origin", "https://anywhere.example")
			req.Header.Set("Access-Control-Request-Method", "POST")
			rec := httptest.NewRecorder()
			api.CORS("*")(ok).ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("%s: Allow-Origin = %q, want *", method, got)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
				t.Errorf("%s: Allow-Credentials = %q, want none", method, got)
			}
		}
	})

	t.Run("disabled", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		api.CORS("")(ok).ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want none", got)
		}
	})
}
