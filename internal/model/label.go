// Package model defines the core data types of the classifier.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// SumTolerance is the allowed deviation of a score distribution from 1.0.
const SumTolerance = 1e-4

// Vocabulary is the fixed, ordered set of class labels baked into a model artifact.
type Vocabulary []string

// Validate ensures the vocabulary is non-empty and free of blank or duplicate labels.
func (v Vocabulary) Validate() error {
	if len(v) == 0 {
		return fmt.Errorf("vocabulary is empty")
	}

	seen := make(map[string]bool, len(v))
	for i, label := range v {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("vocabulary entry %d is blank", i)
		}
		if seen[label] {
			return fmt.Errorf("duplicate label %q in vocabulary", label)
		}
		seen[label] = true
	}
	return nil
}

// Index returns the position of label in the vocabulary, or -1.
func (v Vocabulary) Index(label string) int {
	for i, l := range v {
		if l == label {
			return i
		}
	}
	return -1
}

// Clone returns a copy that callers may modify freely.
func (v Vocabulary) Clone() Vocabulary {
	out := make(Vocabulary, len(v))
	copy(out, v)
	return out
}

// Scores is a probability distribution over a vocabulary: exactly one value
// per label, stored in vocabulary order. A Scores value is immutable.
type Scores struct {
	vocab Vocabulary
	probs []float64
}

// NewScores pairs probs with vocab. Both must have the same length, every
// probability must lie in [0,1] and the total must be 1 within SumTolerance.
func NewScores(vocab Vocabulary, probs []float64) (Scores, error) {
	if err := vocab.Validate(); err != nil {
		return Scores{}, err
	}
	if len(probs) != len(vocab) {
		return Scores{}, fmt.Errorf("got %d scores for %d labels", len(probs), len(vocab))
	}

	sum := 0.0
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return Scores{}, fmt.Errorf("score for %q out of range: %v", vocab[i], p)
		}
		sum += p
	}
	if math.Abs(sum-1) > SumTolerance {
		return Scores{}, fmt.Errorf("scores sum to %v, not 1", sum)
	}

	s := Scores{
		vocab: vocab.Clone(),
		probs: make([]float64, len(probs)),
	}
	copy(s.probs, probs)
	return s, nil
}

// ScoresFromMap builds Scores in vocabulary order from a label->probability map.
// Every vocabulary label must be present and no extra labels are allowed.
func ScoresFromMap(vocab Vocabulary, m map[string]float64) (Scores, error) {
	if len(m) != len(vocab) {
		return Scores{}, fmt.Errorf("got %d scores for %d labels", len(m), len(vocab))
	}

	probs := make([]float64, len(vocab))
	for i, label := range vocab {
		p, ok := m[label]
		if !ok {
			return Scores{}, fmt.Errorf("missing score for %q", label)
		}
		probs[i] = p
	}
	return NewScores(vocab, probs)
}

// Len returns the number of labels.
func (s Scores) Len() int {
	return len(s.probs)
}

// Vocabulary returns a copy of the labels in order.
func (s Scores) Vocabulary() Vocabulary {
	return s.vocab.Clone()
}

// Label returns the label at position i.
func (s Scores) Label(i int) string {
	return s.vocab[i]
}

// Prob returns the probability at position i.
func (s Scores) Prob(i int) float64 {
	return s.probs[i]
}

// Get returns the probability for label.
func (s Scores) Get(label string) (float64, bool) {
	i := s.vocab.Index(label)
	if i < 0 {
		return 0, false
	}
	return s.probs[i], true
}

// Map returns the scores keyed by label.
func (s Scores) Map() map[string]float64 {
	m := make(map[string]float64, len(s.probs))
	for i, label := range s.vocab {
		m[label] = s.probs[i]
	}
	return m
}

// Sum returns the total probability mass.
func (s Scores) Sum() float64 {
	var total float64
	for _, p := range s.probs {
		total += p
	}
	return total
}

// IsNormalized reports whether the scores sum to 1 within SumTolerance.
func (s Scores) IsNormalized() bool {
	return math.Abs(s.Sum()-1.0) <= SumTolerance
}

// ArgMax returns the highest-scoring label. Ties go to the label that comes
// first in vocabulary order.
func (s Scores) ArgMax() (string, float64) {
	if len(s.probs) == 0 {
		return "", 0
	}

	best := 0
	for i := 1; i < len(s.probs); i++ {
		if s.probs[i] > s.probs[best] {
			best = i
		}
	}
	return s.vocab[best], s.probs[best]
}

// Rankings returns the scores as rankings sorted for display.
func (s Scores) Rankings() LabelRankings {
	r := make(LabelRankings, len(s.probs))
	for i, label := range s.vocab {
		r[i] = LabelRanking{
			Label: label,
			Score: s.probs[i],
			Index: i,
		}
	}
	r.Sort()
	return r
}

// MarshalJSON encodes the scores as a label->probability object.
func (s Scores) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}
