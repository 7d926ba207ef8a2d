package stt

import (
	"errors"
	"path"
	"strings"
	"time"
)

// ErrEmptyAudio is returned when a transcription is requested for a zero-length
// recording.
var ErrEmptyAudio = errors.New("stt: audio is empty")

// ContentTypePCM marks raw 16-bit signed little-endian PCM without a container.
// Backends that need a container wrap it in WAV before upload.
const ContentTypePCM = "audio/pcm"

// Audio is one uploaded recording.
type Audio struct {
	// Data is the encoded audio payload (webm, wav, mp3, m4a, ogg or raw PCM).
	Data []byte

	// Filename is the client-supplied file name. Several backends infer the
	// container format from its extension.
	Filename string

	// ContentType is the MIME type reported by the client. May be empty.
	ContentType string
}

// Name returns a non-empty file name for the upload, deriving an extension
// from ContentType when the client did not send one.
func (a Audio) Name() string {
	if a.Filename != "" {
		return path.Base(a.Filename)
	}
	ct := a.ContentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(ct) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "audio.wav"
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "audio.m4a"
	case "audio/ogg":
		return "audio.ogg"
	default:
		return "audio.webm"
	}
}

// Options carries recognition hints for one request.
type Options struct {
	// Language is an ISO-639-1 code such as "en". Empty lets the backend
	// auto-detect, if supported.
	Language string

	// Prompt guides the backend's style and spelling. Scoring flows leave it
	// empty so the transcript is not biased towards the expected sentence.
	Prompt string

	// Keywords lists words that should be recognised preferentially. Backends
	// without keyword support ignore it.
	Keywords []string
}

// Transcript is the result of a batch transcription.
type Transcript struct {
	// Text is the recognised speech. Empty when nothing was recognised.
	Text string

	// Language is the language reported by the backend, if any.
	Language string

	// Confidence is the overall confidence in [0, 1]. Zero when unreported.
	Confidence float64

	// Duration is the length of the recording as reported by the backend.
	Duration time.Duration

	// Words contains per-word detail when the backend returns it.
	Words []WordDetail
}

// WordDetail holds per-word metadata from backends that report it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}
