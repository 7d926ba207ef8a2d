// Package whisper provides a SpeechTranscriber backed by a local whisper.cpp
// server (the whisper-server binary, which exposes POST /inference).
//
// Encoded uploads (webm, wav, mp3) are forwarded unchanged; the server must be
// started with --convert for non-WAV containers. Raw PCM
// ([stt.ContentTypePCM]) is wrapped in a WAV container first, and a PCM
// recording whose energy never rises above the silence threshold is returned
// as an empty transcript without contacting the server.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	t, err := p.Transcribe(ctx, stt.Audio{Data: webm, Filename: "answer.webm"}, stt.Options{})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/nclamvn/teacherAI/pkg/provider/stt"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// maxErrorBody caps how much of a failed response is quoted in errors.
	maxErrorBody = 512
)

// Compile-time assertion that Provider implements stt.SpeechTranscriber.
var _ stt.SpeechTranscriber = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default language code sent to the server. Defaults
// to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithSampleRate sets the sample rate assumed for raw PCM uploads. Defaults
// to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		if rate > 0 {
			p.sampleRate = rate
		}
	}
}

// WithTimeout sets the HTTP timeout for one inference request. Defaults to
// 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient = &http.Client{Timeout: d}
	}
}

// Provider implements stt.SpeechTranscriber backed by a whisper.cpp HTTP
// server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	sampleRate int
	httpClient *http.Client
}

// New creates a Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.SpeechTranscriber.
func (p *Provider) Transcribe(ctx context.Context, audio stt.Audio, opts stt.Options) (*stt.Transcript, error) {
	if len(audio.Data) == 0 {
		return nil, stt.ErrEmptyAudio
	}

	lang := opts.Language
	if lang == "" {
		lang = p.language
	}
	out := &stt.Transcript{Language: lang}

	upload := upload{data: audio.Data, filename: audio.Name()}
	if isPCM(audio.ContentType) {
		clip := pcmClip{samples: audio.Data, rate: p.sampleRate}
		out.Duration = clip.duration()
		if clip.silent() {
			return out, nil
		}
		upload = upload{data: clip.wav(), filename: "audio.wav"}
	}

	res, err := p.infer(ctx, upload, lang, opts.Prompt)
	if err != nil {
		return nil, err
	}
	out.Text = strings.TrimSpace(res.Text)
	if out.Duration == 0 && res.Duration > 0 {
		out.Duration = time.Duration(res.Duration * float64(time.Second))
	}
	return out, nil
}

type upload struct {
	data     []byte
	filename string
}

// inferenceResult is the verbose_json reply of whisper-server.
type inferenceResult struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// infer posts one upload to /inference.
func (p *Provider) infer(ctx context.Context, u upload, language, prompt string) (*inferenceResult, error) {
	body, contentType, err := p.form(u, language, prompt)
	if err != nil {
		return nil, fmt.Errorf("whisper: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var res inferenceResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("whisper: decode response: %w", err)
	}
	return &res, nil
}

// form encodes the multipart body of an inference request. Empty fields are
// left out so the server applies its own defaults.
func (p *Provider) form(u upload, language, prompt string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", u.filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(u.data); err != nil {
		return nil, "", err
	}
	for _, f := range [][2]string{
		{"response_format", "verbose_json"},
		{"language", language},
		{"model", p.model},
		{"prompt", prompt},
	} {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
