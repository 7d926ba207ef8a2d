package scoring

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// OpKind classifies one region of an alignment.
type OpKind uint8

const (
	// OpEqual marks identical tokens on both sides.
	OpEqual OpKind = iota
	// OpReplace marks reference tokens spoken as different tokens.
	OpReplace
	// OpInsert marks extra spoken tokens with no reference counterpart.
	OpInsert
	// OpDelete marks reference tokens that were not spoken.
	OpDelete
)

var opKindNames = [...]string{"equal", "replace", "insert", "delete"}

// String returns the lowercase name of the kind.
func (k OpKind) String() string {
	if int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", k)
}

// MarshalText encodes the kind by name.
func (k OpKind) MarshalText() ([]byte, error) {
	if int(k) >= len(opKindNames) {
		return nil, fmt.Errorf("scoring: unknown op kind %d", k)
	}
	return []byte(opKindNames[k]), nil
}

// UnmarshalText decodes a kind name produced by MarshalText.
func (k *OpKind) UnmarshalText(b []byte) error {
	for i, name := range opKindNames {
		if name == string(b) {
			*k = OpKind(i)
			return nil
		}
	}
	return fmt.Errorf("scoring: unknown op kind %q", b)
}

// Opcode is one contiguous region of an alignment. The reference range is
// [RefStart, RefEnd) and the hypothesis range is [HypStart, HypEnd).
type Opcode struct {
	Kind     OpKind `json:"kind"`
	RefStart int    `json:"ref_start"`
	RefEnd   int    `json:"ref_end"`
	HypStart int    `json:"hyp_start"`
	HypEnd   int    `json:"hyp_end"`
}

// RefLen is the number of reference tokens covered by o.
func (o Opcode) RefLen() int { return o.RefEnd - o.RefStart }

// HypLen is the number of hypothesis tokens covered by o.
func (o Opcode) HypLen() int { return o.HypEnd - o.HypStart }

func (o Opcode) String() string {
	return fmt.Sprintf("%s ref[%d:%d] hyp[%d:%d]", o.Kind, o.RefStart, o.RefEnd, o.HypStart, o.HypEnd)
}

// Align returns the edit script turning reference into hypothesis.
//
// The script follows the classic SequenceMatcher decomposition: the longest
// common run is matched first (earliest position on ties) and the regions on
// either side are aligned recursively. For sequences of 200 tokens or more,
// tokens occurring in over 1% of the hypothesis are ignored when seeding
// matches. The output is deterministic and covers both sequences without
// gaps or overlaps. Empty inputs are valid.
func Align(reference, hypothesis []string) []Opcode {
	m := difflib.NewMatcher(reference, hypothesis)
	raw := m.GetOpCodes()
	ops := make([]Opcode, 0, len(raw))
	for _, c := range raw {
		ops = append(ops, Opcode{
			Kind:     kindOf(c.Tag),
			RefStart: c.I1,
			RefEnd:   c.I2,
			HypStart: c.J1,
			HypEnd:   c.J2,
		})
	}
	return ops
}

func kindOf(tag byte) OpKind {
	switch tag {
	case 'e':
		return OpEqual
	case 'r':
		return OpReplace
	case 'i':
		return OpInsert
	default:
		return OpDelete
	}
}

// ReplaceCounting selects how a replace span with uneven sides is charged.
// Both modes yield the same total error count and therefore the same WER.
type ReplaceCounting int

const (
	// ReplaceSplit charges min(ref, hyp) substitutions and books the excess
	// as deletions (longer reference side) or insertions (longer hypothesis
	// side). The count invariants hold for every input pair.
	ReplaceSplit ReplaceCounting = iota

	// ReplaceLongest charges max(ref, hyp) substitutions for every replace
	// span, so every reference word inside it counts as wrong even when the
	// learner said fewer words. The count invariants only hold when all
	// replace spans are balanced.
	ReplaceLongest
)

// String returns the configuration name of the mode.
func (m ReplaceCounting) String() string {
	if m == ReplaceLongest {
		return "longest"
	}
	return "split"
}

// ParseReplaceCounting maps a configuration value to a mode. The empty
// string selects [ReplaceSplit].
func ParseReplaceCounting(s string) (ReplaceCounting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "split":
		return ReplaceSplit, nil
	case "longest":
		return ReplaceLongest, nil
	}
	return ReplaceSplit, fmt.Errorf("scoring: unknown replace counting %q; valid values: split, longest", s)
}

// Counts are the per-kind totals of an alignment.
type Counts struct {
	Matches       int
	Substitutions int
	Insertions    int
	Deletions     int
}

// Errors returns substitutions + insertions + deletions.
func (c Counts) Errors() int { return c.Substitutions + c.Insertions + c.Deletions }

// CountOpcodes totals an alignment.
func CountOpcodes(ops []Opcode, mode ReplaceCounting) Counts {
	var c Counts
	for _, o := range ops {
		switch o.Kind {
		case OpEqual:
			c.Matches += o.RefLen()
		case OpInsert:
			c.Insertions += o.HypLen()
		case OpDelete:
			c.Deletions += o.RefLen()
		case OpReplace:
			r, h := o.RefLen(), o.HypLen()
			if mode == ReplaceLongest {
				c.Substitutions += max(r, h)
				continue
			}
			c.Substitutions += min(r, h)
			if r > h {
				c.Deletions += r - h
			} else {
				c.Insertions += h - r
			}
		}
	}
	return c
}

// SimilarityRatio returns 2*matches/(refLen+hypLen), or 1.0 when both
// sequences are empty.
func SimilarityRatio(matches, refLen, hypLen int) float64 {
	total := refLen + hypLen
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matches) / float64(total)
}
