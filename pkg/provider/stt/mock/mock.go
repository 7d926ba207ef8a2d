// Package mock provides a test double for the stt.SpeechTranscriber
// interface.
//
// Example:
//
//	tr := &mock.Transcriber{Result: &stt.Transcript{Text: "hello world"}}
//	got, _ := tr.Transcribe(ctx, stt.Audio{Data: wav}, stt.Options{})
package mock

import (
	"context"
	"sync"

	"github.com/nclamvn/teacherAI/pkg/provider/stt"
)

// Compile-time assertion that Transcriber implements stt.SpeechTranscriber.
var _ stt.SpeechTranscriber = (*Transcriber)(nil)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	Ctx   context.Context
	Audio stt.Audio
	Opts  stt.Options
}

// Transcriber is a mock implementation of stt.SpeechTranscriber.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by Transcribe. A nil Result yields an empty
	// transcript.
	Result *stt.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Result or Err.
func (t *Transcriber) Transcribe(ctx context.Context, audio stt.Audio, opts stt.Options) (*stt.Transcript, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = append(t.Calls, TranscribeCall{Ctx: ctx, Audio: audio, Opts: opts})
	if t.Err != nil {
		return nil, t.Err
	}
	if t.Result == nil {
		return &stt.Transcript{}, nil
	}
	out := *t.Result
	return &out, nil
}

// CallCount returns the number of Transcribe invocations so far.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

// Reset clears all recorded calls.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = nil
}
