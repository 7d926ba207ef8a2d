package resilience

import (
	"context"

	"github.com/nclamvn/teacherAI/pkg/provider/stt"
)

// STTFallback implements [stt.SpeechTranscriber] with automatic failover
// across several STT backends.
type STTFallback struct {
	group *FallbackGroup[stt.SpeechTranscriber]
}

var _ stt.SpeechTranscriber = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.SpeechTranscriber, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional STT backend.
func (f *STTFallback) AddFallback(name string, t stt.SpeechTranscriber) {
	f.group.AddFallback(name, t)
}

// Transcribe sends the recording to the first healthy backend. The audio
// bytes are shared between attempts and must not be modified by backends.
func (f *STTFallback) Transcribe(ctx context.Context, audio stt.Audio, opts stt.Options) (*stt.Transcript, error) {
	return ExecuteWithResult(f.group, func(t stt.SpeechTranscriber) (*stt.Transcript, error) {
		return t.Transcribe(ctx, audio, opts)
	})
}

// Healthy reports whether at least one backend would accept a call.
func (f *STTFallback) Healthy() bool { return f.group.Healthy() }

// States reports the breaker state of every backend keyed by name.
func (f *STTFallback) States() map[string]State { return f.group.States() }
