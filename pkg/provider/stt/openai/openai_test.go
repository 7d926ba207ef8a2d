package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nclamvn/teacherAI/pkg/provider/stt"
)

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestBuildParams(t *testing.T) {
	p, err := New("sk-test", WithModel("gpt-4o-mini-transcribe"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params := p.buildParams(stt.Audio{Data: []byte("x"), ContentType: "audio/webm"}, stt.Options{})
	if params.Model != "gpt-4o-mini-transcribe" {
		t.Errorf("Model = %q", params.Model)
	}
	if !params.Language.Valid() || params.Language.Value != "en" {
		t.Errorf("Language = %+v, want default en", params.Language)
	}
	if params.Prompt.Valid() {
		t.Error("Prompt should be omitted when empty")
	}

	params = p.buildParams(stt.Audio{Data: []byte("x")}, stt.Options{Language: "vi", Prompt: "names: Lan"})
	if params.Language.Value != "vi" {
		t.Errorf("Language = %q, want vi", params.Language.Value)
	}
	if params.Prompt.Value != "names: Lan" {
		t.Errorf("Prompt = %q", params.Prompt.Value)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	p, _ := New("sk-test")
	_, err := p.Transcribe(context.Background(), stt.Audio{}, stt.Options{})
	if !errors.Is(err, stt.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestTranscribe_Server(t *testing.T) {
	var gotModel, gotLang, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotFile = hdr.Filename + ":" + string(data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  The quick brown fox.  "}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Transcribe(context.Background(),
		stt.Audio{Data: []byte("RIFF"), Filename: "answer.wav", ContentType: "audio/wav"},
		stt.Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "The quick brown fox." {
		t.Errorf("Text = %q", got.Text)
	}
	if gotModel != DefaultModel {
		t.Errorf("model field = %q, want %q", gotModel, DefaultModel)
	}
	if gotLang != "en" {
		t.Errorf("language field = %q, want en", gotLang)
	}
	if gotFile != "answer.wav:RIFF" {
		t.Errorf("file part = %q", gotFile)
	}
}
