package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/libram-ai/libram/internal/log"
	"github.com/libram-ai/libram/internal/rag"
	"github.com/libram-ai/libram/internal/store"
)

type fakeSource struct {
	pages []Page
	err   error
}

func (f *fakeSource) Crawl(_ context.Context) ([]Page, error) {
	return f.pages, f.err
}

// fakeEmbedder returns one deterministic vector per text.
type fakeEmbedder struct {
	err           error
	calls         int
	lastInputType string
	shortCount    int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, inputType string) ([][]float32, error) {
	f.calls++
	f.lastInputType = inputType
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.shortCount > 0 {
		n = f.shortCount
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type fakeStore struct {
	upserts    []store.Chunk
	upsertErr  error
	staleCalls map[string]int
}

func (f *fakeStore) Upsert(_ context.Context, chunk store.Chunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, chunk)
	return nil
}

func (f *fakeStore) DeleteStaleChunks(_ context.Context, url string, fromIndex int) (int64, error) {
	if f.staleCalls == nil {
		f.staleCalls = make(map[string]int)
	}
	f.staleCalls[url] = fromIndex
	return 0, nil
}

func newTestIngester(t *testing.T, source Source, embedder rag.Embedder, st Store) *Ingester {
	t.Helper()
	retry := rag.NewRetryPolicy(0, time.Millisecond, time.Millisecond)
	lockPath := filepath.Join(t.TempDir(), "ingest.lock")
	return New(source, embedder, retry, st, 1000, 100, lockPath, log.NewNop())
}

func TestRunIngestsPages(t *testing.T) {
	t.Parallel()

	source := &fakeSource{pages: []Page{
		{URL: "https://book.example.com/intro", Title: "Intro", Text: "A short introduction to the book."},
		{URL: "https://book.example.com/ch1", Title: "Chapter 1", Text: strings.Repeat("Indexing is covered in depth here. ", 40)},
	}}
	embedder := &fakeEmbedder{}
	st := &fakeStore{}

	stats, err := newTestIngester(t, source, embedder, st).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Pages != 2 || stats.Skipped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Chunks != len(st.upserts) {
		t.Fatalf("stats report %d chunks, store has %d", stats.Chunks, len(st.upserts))
	}
	if stats.Chunks < 3 {
		t.Fatalf("expected the long page to produce multiple chunks, got %d total", stats.Chunks)
	}
	if embedder.lastInputType != rag.InputTypeDocument {
		t.Errorf("expected document input type, got %q", embedder.lastInputType)
	}
	if got := st.staleCalls["https://book.example.com/intro"]; got != 1 {
		t.Errorf("expected stale pruning from index 1, got %d", got)
	}
}

func TestRunSkipsFailingPages(t *testing.T) {
	t.Parallel()

	source := &fakeSource{pages: []Page{
		{URL: "https://book.example.com/ok", Title: "OK", Text: "Readable content."},
	}}
	embedder := &fakeEmbedder{err: errors.New("embedding model rejected input")}
	st := &fakeStore{}

	stats, err := newTestIngester(t, source, embedder, st).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Pages != 0 || stats.Skipped != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(st.upserts) != 0 {
		t.Fatalf("expected no upserts, got %d", len(st.upserts))
	}
}

func TestRunRejectsVectorCountMismatch(t *testing.T) {
	t.Parallel()

	source := &fakeSource{pages: []Page{
		{URL: "https://book.example.com/ch2", Title: "Chapter 2", Text: strings.Repeat("Ranking functions score documents. ", 60)},
	}}
	embedder := &fakeEmbedder{shortCount: 1}
	st := &fakeStore{}

	stats, err := newTestIngester(t, source, embedder, st).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Skipped != 1 || len(st.upserts) != 0 {
		t.Fatalf("expected page skipped without upserts, got stats %+v, %d upserts", stats, len(st.upserts))
	}
}

func TestRunFailsWhenCrawlFails(t *testing.T) {
	t.Parallel()

	source := &fakeSource{err: errors.New("site unreachable")}
	ing := newTestIngester(t, source, &fakeEmbedder{}, &fakeStore{})

	if _, err := ing.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunRefusesConcurrentRuns(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "ingest.lock")
	held := flock.New(lockPath)
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("failed to pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer held.Unlock()

	retry := rag.NewRetryPolicy(0, time.Millisecond, time.Millisecond)
	ing := New(&fakeSource{}, &fakeEmbedder{}, retry, &fakeStore{}, 1000, 100, lockPath, log.NewNop())

	if _, err := ing.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}
