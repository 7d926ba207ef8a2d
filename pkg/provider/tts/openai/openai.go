// Package openai provides a SpeechSynthesizer backed by the OpenAI speech
// endpoint (tts-1, tts-1-hd, gpt-4o-mini-tts).
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

// DefaultModel is the speech model used when none is configured.
const DefaultModel = oai.SpeechModelTTS1

// maxInputLen is the API's per-request character limit.
const maxInputLen = 4096

// builtinVoices is the catalogue of voices the speech endpoint accepts.
var builtinVoices = []string{"alloy", "ash", "ballad", "coral", "echo", "fable", "onyx", "nova", "sage", "shimmer", "verse"}

var (
	_ tts.SpeechSynthesizer = (*Provider)(nil)
	_ tts.VoiceLister       = (*Provider)(nil)
)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel selects the speech model.
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

// Provider implements tts.SpeechSynthesizer using the OpenAI API.
type Provider struct {
	client  oai.Client
	model   string
	reqOpts []option.RequestOption
}

// New creates a synthesizer authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	p := &Provider{
		model:   DefaultModel,
		reqOpts: []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, o := range opts {
		o(p)
	}
	p.client = oai.NewClient(p.reqOpts...)
	return p, nil
}

// Synthesize implements tts.SpeechSynthesizer. The returned bytes are MP3.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	params, err := p.buildParams(text, voice)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai tts: empty audio response")
	}
	return audio, nil
}

func (p *Provider) buildParams(text string, voice tts.Voice) (oai.AudioSpeechNewParams, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return oai.AudioSpeechNewParams{}, tts.ErrEmptyText
	}
	if voice.ID == "" {
		return oai.AudioSpeechNewParams{}, fmt.Errorf("openai tts: voice.ID must not be empty")
	}
	if r := []rune(text); len(r) > maxInputLen {
		text = string(r[:maxInputLen])
	}

	params := oai.AudioSpeechNewParams{
		Input:          text,
		Model:          p.model,
		Voice:          oai.AudioSpeechNewParamsVoice(voice.ID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if voice.Speed > 0 && voice.Speed != 1 {
		params.Speed = param.NewOpt(voice.Speed)
	}
	return params, nil
}

// ListVoices implements tts.VoiceLister. The catalogue is fixed by the API.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	out := make([]tts.Voice, 0, len(builtinVoices))
	for _, id := range builtinVoices {
		out = append(out, tts.Voice{ID: id, Name: id, Metadata: map[string]string{"provider": "openai"}})
	}
	return out, nil
}
