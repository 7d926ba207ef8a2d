package feedback

// Emotion tags how the avatar should react to an attempt.
type Emotion string

const (
	EmotionPraise      Emotion = "praise"
	EmotionEncouraging Emotion = "encouraging"
	EmotionCorrective  Emotion = "corrective"
	EmotionNeutral     Emotion = "neutral"
)

// EmotionFor maps a 0-100 score to an emotion tag.
func EmotionFor(score float64) Emotion {
	switch {
	case score >= 85:
		return EmotionPraise
	case score >= 70:
		return EmotionEncouraging
	default:
		return EmotionCorrective
	}
}
