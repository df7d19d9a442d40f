// Package citations decides whether a claimed citation plausibly
// originates from a retrieved source chunk. The check is a lexical
// Jaccard overlap, a cheap stand-in for semantic entailment; the
// Verifier interface is stable so a model-backed checker can replace
// the internals without touching callers.
package citations

import (
	"regexp"
	"strings"

	"qaai/apps/backend/internal/legal"
)

const DefaultThreshold = 0.25

// Candidate is a potential source for a claimed citation.
type Candidate struct {
	ChunkID string
	Text    string
}

// Result reports the verdict plus the best-matching candidate for
// debugging and audit.
type Result struct {
	Verified        bool    `json:"verified"`
	BestScore       float64 `json:"best_score"`
	BestCandidateID string  `json:"best_candidate_id,omitempty"`
}

// Citation is a claim the drafting pipeline wants to show to the user.
// Verified and Score are filled in by the verifier; an unverified
// citation is flagged, never silently dropped.
type Citation struct {
	Title          string               `json:"title"`
	Section        string               `json:"section,omitempty"`
	URL            string               `json:"url,omitempty"`
	Jurisdiction   legal.Jurisdiction   `json:"jurisdiction"`
	InstrumentType legal.InstrumentType `json:"instrument_type"`
	ClaimedText    string               `json:"claimed_text"`
	Verified       bool                 `json:"verified"`
	Score          float64              `json:"score"`
}

type Verifier struct {
	threshold float64
}

// NewVerifier builds a verifier with the given inclusive threshold.
// A non-positive threshold falls back to the default.
func NewVerifier(threshold float64) *Verifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Verifier{threshold: threshold}
}

// Verify passes when ANY candidate reaches the threshold. The reported
// best candidate is the highest scoring one regardless of verdict.
func (v *Verifier) Verify(claimedText string, candidates []Candidate) Result {
	claimed := Tokenize(claimedText)

	var res Result
	for _, cand := range candidates {
		score := Jaccard(claimed, Tokenize(cand.Text))
		if score > res.BestScore || res.BestCandidateID == "" {
			res.BestScore = score
			res.BestCandidateID = cand.ChunkID
		}
	}
	res.Verified = len(candidates) > 0 && res.BestScore >= v.threshold
	return res
}

// Any Unicode letter or digit counts as token material; corpus text is
// not ASCII-only (Arabic passages appear alongside English).
var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize lowercases and splits on non-alphanumeric boundaries,
// discarding empty tokens.
func Tokenize(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenRe.FindAllString(strings.ToLower(s), -1) {
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard is |a ∩ b| / |a ∪ b|; two empty sets score 0 by definition.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
