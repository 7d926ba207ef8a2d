// Package mock provides a test double for the tts.SpeechSynthesizer
// interface.
//
// Example:
//
//	s := &mock.Synthesizer{Audio: []byte("ID3")}
//	clip, _ := s.Synthesize(ctx, "Great job", tts.Voice{ID: "nova"})
package mock

import (
	"context"
	"sync"

	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

var (
	_ tts.SpeechSynthesizer = (*Synthesizer)(nil)
	_ tts.VoiceLister       = (*Synthesizer)(nil)
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Ctx   context.Context
	Text  string
	Voice tts.Voice
}

// Synthesizer is a mock implementation of tts.SpeechSynthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Audio is returned by Synthesize. When nil the text itself is returned
	// as bytes so callers can tell clips apart.
	Audio []byte

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// ErrFor maps a voice ID to an error returned only for that voice.
	ErrFor map[string]error

	// Voices is returned by ListVoices.
	Voices []tts.Voice

	// Calls records every invocation of Synthesize in order.
	Calls []SynthesizeCall
}

// Synthesize records the call and returns Audio or Err.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	if err := s.ErrFor[voice.ID]; err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Audio == nil {
		return []byte(voice.ID + ":" + text), nil
	}
	return append([]byte(nil), s.Audio...), nil
}

// ListVoices returns Voices.
func (s *Synthesizer) ListVoices(_ context.Context) ([]tts.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tts.Voice(nil), s.Voices...), nil
}

// CallCount returns the number of Synthesize invocations so far.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Reset clears all recorded calls.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = nil
}
