package scoring

import (
	"slices"
	"strings"
	"unicode"
)

// DefaultFillers are the hesitation sounds dropped when filler removal is
// requested. Discourse words such as "like", "well" or "so" are deliberately
// absent: reading exercises use them as ordinary words.
var DefaultFillers = []string{"um", "uh", "er", "ah", "hmm", "erm", "uhm", "mm", "hm"}

// NormalizerOption configures a [Normalizer].
type NormalizerOption func(*Normalizer)

// WithFillers replaces the filler set. Entries containing whitespace are
// treated as phrases and matched as whole token runs.
func WithFillers(words ...string) NormalizerOption {
	return func(n *Normalizer) {
		n.fillers = make(map[string]struct{}, len(words))
		n.phrases = nil
		n.add(words)
	}
}

// WithFillerPhrases adds multi-word fillers such as "you know" to the set.
// Single words are accepted too.
func WithFillerPhrases(phrases ...string) NormalizerOption {
	return func(n *Normalizer) {
		n.add(phrases)
	}
}

// Normalizer turns raw text into a comparable token sequence. It is
// read-only after construction.
type Normalizer struct {
	fillers map[string]struct{}
	// phrases are kept longest first so overlapping phrases prefer the
	// longer match.
	phrases [][]string
}

// NewNormalizer returns a Normalizer using [DefaultFillers] unless opts say
// otherwise.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{fillers: make(map[string]struct{}, len(DefaultFillers))}
	n.add(DefaultFillers)
	for _, o := range opts {
		o(n)
	}
	return n
}

var defaultNormalizer = NewNormalizer()

// DefaultNormalizer returns the shared Normalizer built from [DefaultFillers].
func DefaultNormalizer() *Normalizer { return defaultNormalizer }

// Normalize is shorthand for DefaultNormalizer().Normalize.
func Normalize(text string, removeFillers bool) []string {
	return defaultNormalizer.Normalize(text, removeFillers)
}

func (n *Normalizer) add(entries []string) {
	for _, e := range entries {
		toks := Tokenize(e)
		switch len(toks) {
		case 0:
		case 1:
			n.fillers[toks[0]] = struct{}{}
		default:
			n.phrases = append(n.phrases, toks)
		}
	}
	slices.SortStableFunc(n.phrases, func(a, b []string) int { return len(b) - len(a) })
}

// Normalize lowercases text, strips punctuation other than apostrophes,
// splits on whitespace and, when removeFillers is set, drops filler tokens
// and filler phrases. The result is empty, never an error, when nothing
// survives.
func (n *Normalizer) Normalize(text string, removeFillers bool) []string {
	toks := Tokenize(text)
	if !removeFillers || len(toks) == 0 {
		return toks
	}
	return n.dropFillers(toks)
}

// IsFiller reports whether the single token w is in the filler set.
func (n *Normalizer) IsFiller(w string) bool {
	_, ok := n.fillers[w]
	return ok
}

func (n *Normalizer) dropFillers(toks []string) []string {
	out := make([]string, 0, len(toks))
	for i := 0; i < len(toks); {
		if l := n.phraseAt(toks, i); l > 0 {
			i += l
			continue
		}
		if !n.IsFiller(toks[i]) {
			out = append(out, toks[i])
		}
		i++
	}
	return out
}

func (n *Normalizer) phraseAt(toks []string, i int) int {
	for _, p := range n.phrases {
		if i+len(p) <= len(toks) && slices.Equal(toks[i:i+len(p)], p) {
			return len(p)
		}
	}
	return 0
}

// Tokenize applies the normalization rules without filler removal.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = strings.Map(keepRune, text)
	return strings.Fields(text)
}

func keepRune(r rune) rune {
	switch {
	case r == '\'':
		return r
	case r == '’', r == '‘', r == 'ʼ':
		return '\''
	case unicode.IsSpace(r):
		return ' '
	case isWordRune(r):
		return r
	}
	return -1
}

// isWordRune accepts letters, digits and underscore like \w. Combining marks
// are kept too, so decomposed (NFD) accents stay in their word.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r)
}
