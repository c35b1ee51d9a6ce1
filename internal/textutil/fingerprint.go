package textutil

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Fingerprint is a term-frequency vector.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint returns nil when text has no usable tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var sum float64
	for _, count := range counts {
		sum += count * count
	}
	return &Fingerprint{tokens: counts, norm: math.Sqrt(sum)}
}

// Tokenize lowercases and folds text, then splits it into tokens of three or
// more characters.
func Tokenize(text string) []string {
	raw := tokenSplitPattern.Split(Fold(text), -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len(token) < 3 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// Similarity is the cosine similarity of two fingerprints, 0 when either is empty.
func (f *Fingerprint) Similarity(other *Fingerprint) float64 {
	if f == nil || other == nil || f.norm == 0 || other.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range f.tokens {
		dot += count * other.tokens[token]
	}
	return dot / (f.norm * other.norm)
}

// Rank returns candidate indexes ordered by similarity to query, best first.
// Ties keep their original order.
func Rank(query string, candidates []string) []int {
	q := NewFingerprint(query)
	scores := make([]float64, len(candidates))
	order := make([]int, len(candidates))
	for i, candidate := range candidates {
		order[i] = i
		scores[i] = q.Similarity(NewFingerprint(strings.ReplaceAll(candidate, "-", " ")))
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order
}
