package feedback

import (
	"fmt"
	"strings"

	"github.com/nclamvn/teacherAI/internal/scoring"
)

// Summarize builds the rule-based English summary shown next to the score:
// an overall verdict, the non-zero error counts and the number of correct
// words.
func Summarize(r *scoring.AccuracyReport) string {
	if r == nil {
		return "Unable to generate detailed feedback at this time."
	}

	parts := []string{verdict(r.Accuracy)}

	var issues []string
	if r.Deletions > 0 {
		issues = append(issues, fmt.Sprintf("%d word(s) missing", r.Deletions))
	}
	if r.Substitutions > 0 {
		issues = append(issues, fmt.Sprintf("%d word(s) incorrect", r.Substitutions))
	}
	if r.Insertions > 0 {
		issues = append(issues, fmt.Sprintf("%d extra word(s)", r.Insertions))
	}
	if len(issues) > 0 {
		parts = append(parts, "Issues: "+strings.Join(issues, ", ")+".")
	}

	if r.Matches > 0 {
		parts = append(parts, fmt.Sprintf("You got %d word(s) correct!", r.Matches))
	}
	return strings.Join(parts, " ")
}

func verdict(accuracy float64) string {
	switch {
	case accuracy >= 95:
		return "🎉 Excellent! Your pronunciation is nearly perfect!"
	case accuracy >= 85:
		return "👍 Great job! Your pronunciation is very good."
	case accuracy >= 70:
		return "✅ Good effort! You're on the right track."
	case accuracy >= 50:
		return "💪 Keep practicing! You're making progress."
	default:
		return "🔄 Let's try again. Don't worry, practice makes perfect!"
	}
}
