// Package feedback turns a scored attempt into what the learner sees: an
// emotion tag for the avatar, a rule-based summary, and a short bilingual
// (English and Vietnamese) coaching message phrased by a language model.
//
// The language model is optional. Every path through [Generator.Generate]
// yields usable feedback: a model reply that cannot be parsed, or a model
// that fails outright, falls back to fixed texts chosen by accuracy.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nclamvn/teacherAI/internal/mistake"
	"github.com/nclamvn/teacherAI/internal/scoring"
	"github.com/nclamvn/teacherAI/pkg/provider/llm"
)

// Source records where a [Feedback] came from.
type Source string

const (
	// SourceLLM means both messages were written by the model.
	SourceLLM Source = "llm"
	// SourceFallback means the model reply was unusable (invalid JSON or
	// missing fields) and threshold texts filled the gaps.
	SourceFallback Source = "fallback"
	// SourceError means the model call failed.
	SourceError Source = "error"
	// SourceRules means no model is configured.
	SourceRules Source = "rules"
)

// DefaultTrickyWords is the cap on tricky words per attempt.
const DefaultTrickyWords = 3

// ErrMalformedReply is wrapped by [ParseResult.Err] when a model reply is not
// a JSON object.
var ErrMalformedReply = errors.New("feedback: malformed model reply")

// Feedback is the bilingual coaching message for one attempt.
type Feedback struct {
	English     string   `json:"feedback_en"`
	Vietnamese  string   `json:"feedback_vi"`
	TrickyWords []string `json:"tricky_words"`

	// Score is the model's own 0-100 rating of the attempt. Nil when the
	// model did not provide one or it was out of range.
	Score *float64 `json:"score,omitempty"`

	Source Source `json:"source"`
}

// Combined joins both messages the way the legacy ai_feedback field expects.
func (f *Feedback) Combined() string {
	return strings.TrimSpace(f.English + " " + f.Vietnamese)
}

// Request carries the attempt to comment on.
type Request struct {
	Expected string
	Spoken   string
	Report   *scoring.AccuracyReport
	Mistakes []mistake.Mistake
}

func (r Request) accuracy() float64 {
	if r.Report == nil {
		return 0
	}
	return r.Report.Accuracy
}

// ParseResult is the outcome of decoding one model reply. Feedback is always
// usable; Err is non-nil when any part of it came from the fallback texts.
type ParseResult struct {
	Feedback Feedback
	Err      error
}

// reply mirrors the JSON object the model is asked for.
type reply struct {
	FeedbackEN  *string  `json:"feedback_en"`
	FeedbackVI  *string  `json:"feedback_vi"`
	TrickyWords []string `json:"tricky_words"`
	Score       *float64 `json:"score"`
}

// Parse decodes a model reply. Markdown code fences around the JSON are
// tolerated. Fields that are missing or blank take the threshold fallback
// text for accuracy; an undecodable reply takes both.
func Parse(content string, accuracy float64, trickyLimit int) ParseResult {
	fb := ThresholdFallback(accuracy)

	var r reply
	if err := json.Unmarshal([]byte(stripMarkdown(content)), &r); err != nil {
		return ParseResult{Feedback: fb, Err: fmt.Errorf("%w: %w", ErrMalformedReply, err)}
	}

	var missing []string
	if r.FeedbackEN != nil && strings.TrimSpace(*r.FeedbackEN) != "" {
		fb.English = strings.TrimSpace(*r.FeedbackEN)
	} else {
		missing = append(missing, "feedback_en")
	}
	if r.FeedbackVI != nil && strings.TrimSpace(*r.FeedbackVI) != "" {
		fb.Vietnamese = strings.TrimSpace(*r.FeedbackVI)
	} else {
		missing = append(missing, "feedback_vi")
	}

	fb.TrickyWords = cleanWords(r.TrickyWords, trickyLimit)
	if r.Score != nil && *r.Score >= 0 && *r.Score <= 100 {
		s := *r.Score
		fb.Score = &s
	}

	if len(missing) > 0 {
		return ParseResult{Feedback: fb, Err: fmt.Errorf("feedback: reply missing %s", strings.Join(missing, ", "))}
	}
	fb.Source = SourceLLM
	return ParseResult{Feedback: fb}
}

// ThresholdFallback returns the fixed feedback texts for an accuracy band.
func ThresholdFallback(accuracy float64) Feedback {
	fb := Feedback{Source: SourceFallback}
	switch {
	case accuracy >= 85:
		fb.English = "Excellent pronunciation! Keep up the great work."
		fb.Vietnamese = "Phát âm rất tốt! Tiếp tục như vậy nhé."
	case accuracy >= 70:
		fb.English = "Good job! Practice a bit more to improve your clarity."
		fb.Vietnamese = "Khá tốt! Luyện thêm một chút để rõ ràng hơn."
	default:
		fb.English = "Keep practicing! Focus on speaking slowly and clearly."
		fb.Vietnamese = "Tiếp tục luyện tập! Hãy nói chậm và rõ ràng hơn."
	}
	return fb
}

// ErrorFallback returns the feedback used when the model call failed.
func ErrorFallback() Feedback {
	return Feedback{
		English:    "Great effort! Keep practicing.",
		Vietnamese: "Cố gắng tốt! Tiếp tục luyện tập nhé.",
		Source:     SourceError,
	}
}

// Option configures a [Generator].
type Option func(*Generator)

// WithTemperature overrides the sampling temperature (default 0.7).
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithMaxTokens overrides the completion cap (default 300).
func WithMaxTokens(n int) Option {
	return func(g *Generator) { g.maxTokens = n }
}

// WithTrickyWords sets how many tricky words are kept (default 3).
func WithTrickyWords(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.trickyLimit = n
		}
	}
}

// Generator phrases bilingual feedback. The zero value is not usable; call
// [NewGenerator]. A Generator is safe for concurrent use.
type Generator struct {
	llm         llm.TextGenerator
	temperature float64
	maxTokens   int
	trickyLimit int
}

// NewGenerator returns a Generator backed by gen. gen may be nil, in which
// case every call returns rule-based feedback.
func NewGenerator(gen llm.TextGenerator, opts ...Option) *Generator {
	g := &Generator{
		llm:         gen,
		temperature: 0.7,
		maxTokens:   300,
		trickyLimit: DefaultTrickyWords,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// TrickyLimit returns the configured tricky word cap.
func (g *Generator) TrickyLimit() int { return g.trickyLimit }

// Generate produces feedback for req. It never fails: model errors and
// unusable replies are logged and replaced by fallback texts. Tricky words
// the model did not supply are taken from req.Mistakes.
func (g *Generator) Generate(ctx context.Context, req Request) Feedback {
	var fb Feedback
	switch {
	case g.llm == nil:
		fb = ThresholdFallback(req.accuracy())
		fb.Source = SourceRules
	default:
		resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: systemPrompt,
			Messages:     []llm.Message{{Role: llm.RoleUser, Content: buildPrompt(req)}},
			Temperature:  g.temperature,
			MaxTokens:    g.maxTokens,
			JSONOutput:   true,
		})
		switch {
		case err != nil:
			slog.Warn("feedback: generator failed, using fallback", "err", err)
			fb = ErrorFallback()
		case resp == nil:
			slog.Warn("feedback: generator returned no response, using fallback")
			fb = ErrorFallback()
		default:
			if resp.FinishReason == llm.FinishLength {
				slog.Warn("feedback: model reply hit the token limit", "max_tokens", g.maxTokens)
			}
			slog.Debug("feedback: model reply", "tokens", resp.Usage.TotalTokens, "finish_reason", resp.FinishReason)
			res := Parse(resp.Content, req.accuracy(), g.trickyLimit)
			if res.Err != nil {
				slog.Warn("feedback: unusable model reply, using fallback", "err", res.Err)
			}
			fb = res.Feedback
		}
	}

	if len(fb.TrickyWords) == 0 {
		fb.TrickyWords = mistake.TrickyWords(req.Mistakes, g.trickyLimit)
	}
	if fb.TrickyWords == nil {
		fb.TrickyWords = []string{}
	}
	return fb
}

const systemPrompt = `You are an encouraging English pronunciation coach for Vietnamese learners.
When giving feedback on a reading attempt:
1. Start with encouragement.
2. Point out what they did well.
3. Suggest ONE main improvement.
Keep every message short, positive and actionable.`

func buildPrompt(req Request) string {
	var c scoring.Counts
	if req.Report != nil {
		c = req.Report.Counts()
	}

	var b strings.Builder
	b.WriteString("The student practiced reading aloud in English.\n\n")
	fmt.Fprintf(&b, "Expected: %q\n", req.Expected)
	fmt.Fprintf(&b, "They said: %q\n\n", req.Spoken)
	fmt.Fprintf(&b, "Accuracy: %.1f%%\n", req.accuracy())
	fmt.Fprintf(&b, "- Correct words: %d\n", c.Matches)
	fmt.Fprintf(&b, "- Wrong words: %d\n", c.Substitutions)
	fmt.Fprintf(&b, "- Missing words: %d\n", c.Deletions)
	fmt.Fprintf(&b, "- Extra words: %d\n", c.Insertions)

	if pairs := describeMistakes(req.Mistakes); pairs != "" {
		fmt.Fprintf(&b, "- Mistakes: %s\n", pairs)
	}

	b.WriteString(`
Generate TWO short feedback messages in JSON format:

1. "feedback_en": 1-2 sentences in simple English
   - Start with encouragement
   - If accuracy < 85%, mention 1 specific thing to improve
   - Keep it positive and actionable

2. "feedback_vi": 1-2 sentences in Vietnamese
   - Giải thích ngắn gọn về phát âm
   - Nếu có lỗi, chỉ ra cụ thể
   - Động viên học viên

3. "tricky_words": Array of 2-3 difficult words the student struggled with (English only)

4. "score": a number from 0 to 100 rating how clear and fluent the attempt was

Output ONLY valid JSON in this exact format:
{
  "feedback_en": "...",
  "feedback_vi": "...",
  "tricky_words": ["word1", "word2"],
  "score": 80
}`)
	return b.String()
}

// describeMistakes renders at most eight mistakes as "expected->spoken".
func describeMistakes(ms []mistake.Mistake) string {
	const limit = 8
	parts := make([]string, 0, min(len(ms), limit))
	for _, m := range ms {
		if len(parts) == limit {
			break
		}
		switch m.Kind {
		case mistake.KindDeletion:
			parts = append(parts, fmt.Sprintf("%q (missed)", m.Expected))
		case mistake.KindInsertion:
			parts = append(parts, fmt.Sprintf("%q (extra)", m.Spoken))
		default:
			parts = append(parts, fmt.Sprintf("%q->%q", m.Expected, m.Spoken))
		}
	}
	return strings.Join(parts, ", ")
}

// stripMarkdown removes a surrounding ```json fence from a model reply.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s, _ = strings.CutSuffix(s, "```")
	return strings.TrimSpace(s)
}

// cleanWords lowercases, trims and de-duplicates words, keeping at most n.
func cleanWords(words []string, n int) []string {
	seen := make(map[string]struct{}, len(words))
	var out []string
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == n {
			break
		}
	}
	return out
}
