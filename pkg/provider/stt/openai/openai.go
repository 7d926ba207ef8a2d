// Package openai provides a SpeechTranscriber backed by the OpenAI audio
// transcription endpoint (whisper-1 and the gpt-4o transcribe models).
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/nclamvn/teacherAI/pkg/provider/stt"
)

// DefaultModel is the transcription model used when none is configured.
const DefaultModel = oai.AudioModelWhisper1

// Compile-time assertion that Provider implements stt.SpeechTranscriber.
var _ stt.SpeechTranscriber = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel selects the transcription model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.reqOpts = append(p.reqOpts, option.WithBaseURL(url))
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.reqOpts = append(p.reqOpts, option.WithHTTPClient(&http.Client{Timeout: d}))
	}
}

// WithLanguage sets the language used when a request does not specify one.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// Provider implements stt.SpeechTranscriber using the OpenAI API.
type Provider struct {
	client   oai.Client
	model    string
	language string
	reqOpts  []option.RequestOption
}

// New creates a transcriber authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	p := &Provider{
		model:    DefaultModel,
		language: "en",
		reqOpts:  []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, o := range opts {
		o(p)
	}
	p.client = oai.NewClient(p.reqOpts...)
	return p, nil
}

// Transcribe implements stt.SpeechTranscriber.
func (p *Provider) Transcribe(ctx context.Context, audio stt.Audio, opts stt.Options) (*stt.Transcript, error) {
	if len(audio.Data) == 0 {
		return nil, stt.ErrEmptyAudio
	}

	params := p.buildParams(audio, opts)
	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai stt: transcribe: %w", err)
	}

	return &stt.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: langOr(opts.Language, p.language),
	}, nil
}

func (p *Provider) buildParams(audio stt.Audio, opts stt.Options) oai.AudioTranscriptionNewParams {
	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(audio.Data), audio.Name(), audio.ContentType),
		Model:          p.model,
		ResponseFormat: oai.AudioResponseFormatJSON,
	}
	if lang := langOr(opts.Language, p.language); lang != "" {
		params.Language = param.NewOpt(lang)
	}
	if opts.Prompt != "" {
		params.Prompt = param.NewOpt(opts.Prompt)
	}
	return params
}

func langOr(lang, fallback string) string {
	if lang != "" {
		return lang
	}
	return fallback
}
