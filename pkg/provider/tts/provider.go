// Package tts defines the SpeechSynthesizer interface for text-to-speech
// backends.
//
// A SpeechSynthesizer turns one piece of feedback text into a complete MP3
// clip that the browser can play. Backends include the OpenAI speech
// endpoint and ElevenLabs.
//
// Implementations must be safe for concurrent use; the speaking service
// synthesises the English and Vietnamese feedback in parallel.
package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when Synthesize is called with blank text.
var ErrEmptyText = errors.New("tts: text is empty")

// SpeechSynthesizer is the abstraction over any batch TTS backend.
type SpeechSynthesizer interface {
	// Synthesize renders text with the given voice and returns the encoded
	// MP3 audio. It blocks until the whole clip is available or ctx is
	// cancelled.
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}

// VoiceLister is implemented by backends that can enumerate their voice
// catalogue.
type VoiceLister interface {
	// ListVoices returns the voices available to the configured account.
	ListVoices(ctx context.Context) ([]Voice, error)
}
