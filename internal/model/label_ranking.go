package model

import (
	"fmt"
	"sort"
)

// LabelRanking represents how likely an image shows a specific class.
type LabelRanking struct {
	Label string
	Score float64
	// Index is the label's position in the vocabulary.
	Index int
}

// Validate ensures the LabelRanking has valid data.
func (r *LabelRanking) Validate() error {
	if r.Label == "" {
		return fmt.Errorf("label is required")
	}

	if r.Score < 0.0 || r.Score > 1.0 {
		return fmt.Errorf("score must be between 0.0 and 1.0, got %.4f", r.Score)
	}

	if r.Index < 0 {
		return fmt.Errorf("vocabulary index must not be negative, got %d", r.Index)
	}

	return nil
}

// LabelRankings is a slice of LabelRanking that supports sorting and utility methods.
type LabelRankings []LabelRanking

// Len implements sort.Interface.
func (r LabelRankings) Len() int {
	return len(r)
}

// Less implements sort.Interface - higher scores come first.
func (r LabelRankings) Less(i, j int) bool {
	if r[i].Score != r[j].Score {
		return r[i].Score > r[j].Score
	}
	// Equal scores keep vocabulary order
	return r[i].Index < r[j].Index
}

// Swap implements sort.Interface.
func (r LabelRankings) Swap(i, j int) {
	r[i], r[j] = r[j], r[i]
}

// Sort sorts the rankings by score in descending order.
func (r LabelRankings) Sort() {
	sort.Sort(r)
}

// Top returns the highest-scoring label, or nil if empty.
func (r LabelRankings) Top() *LabelRanking {
	if len(r) == 0 {
		return nil
	}
	r.Sort()
	return &r[0]
}

// TopN returns the N highest-scoring labels.
func (r LabelRankings) TopN(n int) LabelRankings {
	if n <= 0 {
		return LabelRankings{}
	}

	r.Sort()

	if n > len(r) {
		n = len(r)
	}

	result := make(LabelRankings, n)
	copy(result, r[:n])
	return result
}

// AboveThreshold returns all labels with scores at or above the given threshold.
func (r LabelRankings) AboveThreshold(threshold float64) LabelRankings {
	r.Sort()

	var result LabelRankings
	for _, ranking := range r {
		if ranking.Score >= threshold {
			result = append(result, ranking)
		}
	}
	return result
}

// Validate ensures all rankings in the slice are valid.
func (r LabelRankings) Validate() error {
	seen := make(map[string]bool)

	for i, ranking := range r {
		if err := ranking.Validate(); err != nil {
			return fmt.Errorf("invalid ranking at index %d: %w", i, err)
		}

		if seen[ranking.Label] {
			return fmt.Errorf("duplicate label %q in rankings", ranking.Label)
		}
		seen[ranking.Label] = true
	}

	return nil
}
