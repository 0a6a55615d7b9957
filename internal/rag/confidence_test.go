package rag

import (
	"math"
	"testing"
)

func TestConfidenceScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{name: "empty", scores: nil, want: 0.0},
		{name: "single", scores: []float64{0.8}, want: 0.8},
		{name: "two results", scores: []float64{0.9, 0.6}, want: 0.75},
		{name: "exactly three", scores: []float64{0.9, 0.6, 0.3}, want: 0.6},
		{name: "extra results ignored", scores: []float64{0.9, 0.6, 0.3, 0.1, 0.05}, want: 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ConfidenceScore(passagesWithScores(tt.scores...))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConfidenceScore(%v) = %v, want %v", tt.scores, got, tt.want)
			}
		})
	}
}
