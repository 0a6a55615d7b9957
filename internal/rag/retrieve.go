package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/libram-ai/libram/internal/log"
)

// Searcher performs a similarity search against the passage store.
// Results are ordered by descending score; the store applies no threshold.
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]Passage, error)
}

// Retriever selects grounding passages for a query vector.
//
// A single search fetches topK candidates; the threshold is applied
// client-side. When no candidate clears the threshold the unfiltered
// candidates are returned as a best-effort fallback, so the pipeline
// always has some grounding material when any content exists.
type Retriever struct {
	searcher  Searcher
	topK      int
	threshold float64
	timeout   time.Duration
	logger    log.Logger
}

// NewRetriever builds a retriever over searcher.
// timeout bounds the store call; zero disables it.
func NewRetriever(searcher Searcher, topK int, threshold float64, timeout time.Duration, logger log.Logger) *Retriever {
	return &Retriever{
		searcher:  searcher,
		topK:      topK,
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
	}
}

// Retrieve returns up to topK passages for vector, score-descending.
// Store failures carry KindRetrieval; zero results is not an error.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32) ([]Passage, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	results, err := r.searcher.Search(ctx, vector, r.topK)
	if err != nil {
		return nil, NewError(KindRetrieval, fmt.Errorf("searching passages: %w", err))
	}

	above := make([]Passage, 0, len(results))
	for _, p := range results {
		if p.Score >= r.threshold {
			above = append(above, p)
		}
	}

	if len(above) > 0 {
		r.logger.Debug("retrieved passages", "count", len(above), "threshold", r.threshold)
		return capPassages(above, r.topK), nil
	}

	if len(results) > 0 {
		r.logger.Warn("no passages met threshold, falling back to best matches",
			"threshold", r.threshold,
			"best_score", results[0].Score,
			"count", len(results))
		return capPassages(results, r.topK), nil
	}

	r.logger.Info("no passages retrieved")
	return nil, nil
}

func capPassages(passages []Passage, limit int) []Passage {
	if limit > 0 && len(passages) > limit {
		return passages[:limit]
	}
	return passages
}
