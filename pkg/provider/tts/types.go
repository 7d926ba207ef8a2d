package tts

import "strconv"

// Voice selects how a clip is rendered.
type Voice struct {
	// ID is the provider-specific voice identifier ("nova", "alloy" for
	// OpenAI; a voice ID for ElevenLabs).
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable voice name, if known.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Language is the language the voice is used for ("en", "vi").
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// Speed adjusts the speaking rate (0.25–4.0, 0 or 1.0 = default).
	Speed float64 `json:"speed,omitempty" yaml:"speed,omitempty"`

	// Metadata holds provider-specific attributes (gender, accent and so on).
	Metadata map[string]string `json:"metadata,omitempty" yaml:"-"`
}

// Key returns the identifier used to cache clips rendered with v. Speed is
// folded in when it differs from the default.
func (v Voice) Key() string {
	if v.Speed == 0 || v.Speed == 1 {
		return v.ID
	}
	return v.ID + "@" + strconv.FormatFloat(v.Speed, 'f', 2, 64)
}
