// Package stt defines the SpeechTranscriber interface for speech-to-text
// backends.
//
// A SpeechTranscriber turns one complete recording (an uploaded answer in a
// read-aloud exercise) into text. Backends include the OpenAI transcription
// API, Deepgram's pre-recorded endpoint and a local whisper.cpp server.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// SpeechTranscriber is the abstraction over any batch STT backend.
type SpeechTranscriber interface {
	// Transcribe sends audio to the backend and blocks until the transcript
	// is available or ctx is cancelled.
	//
	// An empty audio payload returns ErrEmptyAudio. A recording that contains
	// no recognisable speech is not an error: the returned Transcript has an
	// empty Text.
	Transcribe(ctx context.Context, audio Audio, opts Options) (*Transcript, error)
}
