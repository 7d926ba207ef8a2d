package resilience

import (
	"context"

	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

// ttsBackend pairs a synthesizer with the voice mapping used when it serves
// as a fallback.
type ttsBackend struct {
	synth  tts.SpeechSynthesizer
	voices map[string]tts.Voice
}

func (b ttsBackend) voiceFor(v tts.Voice) tts.Voice {
	mapped, ok := b.voices[v.ID]
	if !ok {
		return v
	}
	if mapped.Speed == 0 {
		mapped.Speed = v.Speed
	}
	return mapped
}

// TTSFallback implements [tts.SpeechSynthesizer] with automatic failover
// across several TTS backends.
//
// Voice IDs are provider specific, so each fallback may carry its own voice
// mapping: when a mapping exists for the requested voice ID the mapped voice
// is sent to that backend instead.
type TTSFallback struct {
	group *FallbackGroup[ttsBackend]
}

var (
	_ tts.SpeechSynthesizer = (*TTSFallback)(nil)
	_ tts.VoiceLister       = (*TTSFallback)(nil)
)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.SpeechSynthesizer, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(ttsBackend{synth: primary}, primaryName, cfg)}
}

// AddFallback registers an additional TTS backend. voices maps the primary's
// voice IDs to the equivalent voice on this backend; it may be nil.
func (f *TTSFallback) AddFallback(name string, s tts.SpeechSynthesizer, voices map[string]tts.Voice) {
	f.group.AddFallback(name, ttsBackend{synth: s, voices: voices})
}

// Synthesize renders text with the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	return ExecuteWithResult(f.group, func(b ttsBackend) ([]byte, error) {
		return b.synth.Synthesize(ctx, text, b.voiceFor(voice))
	})
}

// ListVoices returns the primary backend's catalogue when it supports
// listing.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	if l, ok := f.group.Primary().synth.(tts.VoiceLister); ok {
		return l.ListVoices(ctx)
	}
	return nil, nil
}

// Healthy reports whether at least one backend would accept a call.
func (f *TTSFallback) Healthy() bool { return f.group.Healthy() }

// States reports the breaker state of every backend keyed by name.
func (f *TTSFallback) States() map[string]State { return f.group.States() }
