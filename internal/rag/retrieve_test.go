package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/libram-ai/libram/internal/log"
)

// fakeSearcher returns canned passages or an error.
type fakeSearcher struct {
	passages  []Passage
	err       error
	calls     int
	lastLimit int
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, limit int) ([]Passage, error) {
	f.calls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

func passagesWithScores(scores ...float64) []Passage {
	out := make([]Passage, len(scores))
	for i, s := range scores {
		out[i] = Passage{
			URL:     "https://book.example/ch1",
			Title:   "Chapter 1",
			Content: "content",
			Score:   s,
		}
	}
	return out
}

func TestRetrieveThresholdFilter(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{passages: passagesWithScores(0.9, 0.6, 0.2)}
	r := NewRetriever(searcher, 5, 0.3, 0, log.NewNop())

	got, err := r.Retrieve(context.Background(), []float32{1})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d passages, want 2 above threshold", len(got))
	}
	if got[0].Score != 0.9 || got[1].Score != 0.6 {
		t.Errorf("order not preserved: %v, %v", got[0].Score, got[1].Score)
	}
	// Single round-trip: the threshold is applied client-side.
	if searcher.calls != 1 {
		t.Errorf("search calls = %d, want 1", searcher.calls)
	}
}

func TestRetrieveFallbackBelowThreshold(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{passages: passagesWithScores(0.25, 0.2, 0.1)}
	r := NewRetriever(searcher, 5, 0.3, 0, log.NewNop())

	got, err := r.Retrieve(context.Background(), []float32{1})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d passages, want best-effort fallback of all 3", len(got))
	}
	if searcher.calls != 1 {
		t.Errorf("search calls = %d, want 1 (fallback must not re-query)", searcher.calls)
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	r := NewRetriever(searcher, 5, 0.3, 0, log.NewNop())

	got, err := r.Retrieve(context.Background(), []float32{1})
	if err != nil {
		t.Fatalf("zero results must not be an error, got: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d passages, want 0", len(got))
	}
}

func TestRetrieveSearchFailure(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{err: errors.New("connection refused")}
	r := NewRetriever(searcher, 5, 0.3, 0, log.NewNop())

	_, err := r.Retrieve(context.Background(), []float32{1})
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindRetrieval {
		t.Errorf("kind = %v, want retrieval", KindOf(err))
	}
}

func TestRetrievePassesLimit(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{passages: passagesWithScores(0.9)}
	r := NewRetriever(searcher, 7, 0.3, 0, log.NewNop())

	_, _ = r.Retrieve(context.Background(), []float32{1})
	if searcher.lastLimit != 7 {
		t.Errorf("search limit = %d, want 7", searcher.lastLimit)
	}
}
