package embedding

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/andreysafonov/vestnik/internal/content"
)

type stubBackfillStore struct {
	pending   []content.Article
	stored    map[string][]float32
	upsertErr error
	selects   int
}

func (s *stubBackfillStore) ArticlesWithoutEmbeddings(_ context.Context, limit int) ([]content.Article, error) {
	s.selects++
	var out []content.Article
	for _, a := range s.pending {
		if _, done := s.stored[a.Link]; done {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubBackfillStore) UpsertEmbedding(_ context.Context, link string, vec []float32) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if s.stored == nil {
		s.stored = make(map[string][]float32)
	}
	s.stored[link] = vec
	return nil
}

type stubBatchEmbedder struct {
	calls int
	err   error
}

func (s *stubBatchEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

func TestBackfillProcessesInBatches(t *testing.T) {
	st := &stubBackfillStore{pending: []content.Article{
		{Link: "a", Title: "Alpha"},
		{Link: "b", Title: "Beta"},
		{Link: "c", Title: "Gamma"},
	}}
	emb := &stubBatchEmbedder{}
	b := NewBackfiller(st, emb, 2, log.New(io.Discard, "", 0))

	processed, skipped, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 3 || skipped != 0 {
		t.Fatalf("processed=%d skipped=%d", processed, skipped)
	}
	if emb.calls != 2 {
		t.Errorf("embedder called %d times, want 2 batches", emb.calls)
	}
	if len(st.stored) != 3 {
		t.Errorf("stored %d embeddings", len(st.stored))
	}
}

func TestBackfillSkipsEmptyArticles(t *testing.T) {
	st := &stubBackfillStore{pending: []content.Article{
		{Link: "empty"},
		{Link: "ok", Title: "Has a title"},
	}}
	b := NewBackfiller(st, &stubBatchEmbedder{}, 10, log.New(io.Discard, "", 0))

	processed, skipped, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 1 || skipped != 1 {
		t.Fatalf("processed=%d skipped=%d", processed, skipped)
	}
}

func TestBackfillTerminatesOnAllEmpty(t *testing.T) {
	st := &stubBackfillStore{pending: []content.Article{
		{Link: "empty1"},
		{Link: "empty2"},
	}}
	b := NewBackfiller(st, &stubBatchEmbedder{}, 2, log.New(io.Discard, "", 0))

	processed, skipped, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 0 || skipped != 2 {
		t.Fatalf("processed=%d skipped=%d", processed, skipped)
	}
}

func TestBackfillPropagatesEmbedError(t *testing.T) {
	st := &stubBackfillStore{pending: []content.Article{{Link: "a", Title: "Alpha"}}}
	emb := &stubBatchEmbedder{err: errors.New("rate limited")}
	b := NewBackfiller(st, emb, 10, log.New(io.Discard, "", 0))

	if _, _, err := b.Run(context.Background()); err == nil {
		t.Fatal("embed failure not propagated")
	}
}

func TestBackfillTerminatesWhenAllUpsertsFail(t *testing.T) {
	// A full batch whose upserts all fail persistently is refetched verbatim
	// on the next select; the run must give up rather than loop and call the
	// embedding API forever.
	st := &stubBackfillStore{
		pending: []content.Article{
			{Link: "a", Title: "Alpha"},
			{Link: "b", Title: "Beta"},
		},
		upsertErr: errors.New("db down"),
	}
	emb := &stubBatchEmbedder{}
	b := NewBackfiller(st, emb, 2, log.New(io.Discard, "", 0))

	processed, skipped, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 0 || skipped != 2 {
		t.Fatalf("processed=%d skipped=%d", processed, skipped)
	}
	if st.selects != 1 {
		t.Errorf("selects = %d, want 1", st.selects)
	}
	if emb.calls != 1 {
		t.Errorf("embedder called %d times, want 1", emb.calls)
	}
}

func TestBackfillCountsUpsertFailures(t *testing.T) {
	st := &stubBackfillStore{
		pending:   []content.Article{{Link: "a", Title: "Alpha"}},
		upsertErr: errors.New("db down"),
	}
	b := NewBackfiller(st, &stubBatchEmbedder{}, 10, log.New(io.Discard, "", 0))

	processed, skipped, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 0 || skipped != 1 {
		t.Fatalf("processed=%d skipped=%d", processed, skipped)
	}
}
