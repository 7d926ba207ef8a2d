package scoring

import (
	"fmt"
	"log/slog"
	"math"
)

// weightTolerance is how far a weight pair may drift from summing to 1
// before it is rescaled.
const weightTolerance = 1e-9

// WordErrorRate returns (S+D+I)/refLen. It returns [ErrInvalidInput] when
// refLen is not positive.
func WordErrorRate(c Counts, refLen int) (float64, error) {
	if refLen <= 0 {
		return 0, fmt.Errorf("%w: word error rate needs a non-empty reference (got %d words)", ErrInvalidInput, refLen)
	}
	return float64(c.Errors()) / float64(refLen), nil
}

// AccuracyPercent converts a WER into a percentage clamped to [0, 100] and
// rounded to one decimal. WER above 1 yields 0.
func AccuracyPercent(wer float64) float64 {
	if math.IsNaN(wer) {
		return 0
	}
	acc := (1 - wer) * 100
	return round(clamp(acc, 0, 100), 1)
}

// HybridScore blends primary and secondary with the given weights and rounds
// the result to one decimal.
//
// Weights that do not sum to 1 are rescaled proportionally. Negative weights
// count as zero, and if nothing positive remains both signals get half the
// weight.
func HybridScore(primary, secondary, wPrimary, wSecondary float64) float64 {
	wp, ws := max(wPrimary, 0), max(wSecondary, 0)
	total := wp + ws
	switch {
	case total == 0:
		slog.Warn("scoring: hybrid weights are not positive; using equal weights",
			"word_weight", wPrimary, "secondary_weight", wSecondary)
		wp, ws = 0.5, 0.5
	case math.Abs(total-1) > weightTolerance:
		slog.Warn("scoring: hybrid weights do not sum to 1; rescaling",
			"word_weight", wPrimary, "secondary_weight", wSecondary)
		wp, ws = wp/total, ws/total
	}
	return round(primary*wp+secondary*ws, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
