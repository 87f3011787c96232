package content

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

type stubArticleRepo struct {
	similar   []ScoredArticle
	published map[string]struct{}
	findErr   error
}

func (s *stubArticleRepo) FindSimilar(_ context.Context, _ []float32, limit int) ([]ScoredArticle, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	out := s.similar
	if limit < len(out) {
		out = out[:limit]
	}
	return append([]ScoredArticle(nil), out...), nil
}

func (s *stubArticleRepo) PublishedLinks(context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(s.published))
	for k := range s.published {
		out[k] = struct{}{}
	}
	return out, nil
}

func (s *stubArticleRepo) MarkPublished(_ context.Context, link string) error {
	if s.published == nil {
		s.published = make(map[string]struct{})
	}
	s.published[link] = struct{}{}
	return nil
}

func (s *stubArticleRepo) ArticlesInRange(context.Context, time.Time, time.Time) ([]Article, error) {
	return nil, nil
}

func scored(link string, sim float64, published time.Time) ScoredArticle {
	return ScoredArticle{
		Article:    Article{Link: link, Title: link, PublishedAt: published},
		Similarity: sim,
	}
}

func TestRankExcludesPublished(t *testing.T) {
	now := time.Now()
	repo := &stubArticleRepo{similar: []ScoredArticle{
		scored("https://example.com/published", 0.95, now),
		scored("https://example.com/a", 0.91, now),
		scored("https://example.com/b", 0.85, now),
		scored("https://example.com/c", 0.60, now),
	}}
	r := NewRanker(repo, &stubEmbedder{vec: []float32{1, 0, 0}})

	exclude := map[string]struct{}{"https://example.com/published": {}}
	got, err := r.Rank(context.Background(), "AI", exclude, 10)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	want := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i, link := range want {
		if got[i].Link != link {
			t.Errorf("candidate %d = %s, want %s", i, got[i].Link, link)
		}
	}
}

func TestRankIsIdempotent(t *testing.T) {
	now := time.Now()
	repo := &stubArticleRepo{similar: []ScoredArticle{
		scored("https://example.com/a", 0.9, now),
		scored("https://example.com/b", 0.8, now),
	}}
	r := NewRanker(repo, &stubEmbedder{vec: []float32{1}})
	exclude := map[string]struct{}{"https://example.com/b": {}}

	first, err := r.Rank(context.Background(), "theme", exclude, 5)
	if err != nil {
		t.Fatalf("first Rank: %v", err)
	}
	second, err := r.Rank(context.Background(), "theme", exclude, 5)
	if err != nil {
		t.Fatalf("second Rank: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("result lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Link != second[i].Link {
			t.Errorf("position %d differs: %s vs %s", i, first[i].Link, second[i].Link)
		}
	}
	if len(exclude) != 1 {
		t.Errorf("exclude set mutated: %v", exclude)
	}
}

func TestRankTieBreakPrefersFresher(t *testing.T) {
	older := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	repo := &stubArticleRepo{similar: []ScoredArticle{
		scored("https://example.com/old", 0.8, older),
		scored("https://example.com/new", 0.8, newer),
	}}
	r := NewRanker(repo, &stubEmbedder{vec: []float32{1}})

	got, err := r.Rank(context.Background(), "theme", nil, 2)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got[0].Link != "https://example.com/new" {
		t.Errorf("tie-break: got %s first, want the fresher article", got[0].Link)
	}
}

func TestRankNoNormalization(t *testing.T) {
	now := time.Now()
	repo := &stubArticleRepo{similar: []ScoredArticle{
		scored("https://example.com/a/", 0.9, now),
	}}
	r := NewRanker(repo, &stubEmbedder{vec: []float32{1}})

	// Excluding the link without the trailing slash must not hide the
	// article: links compare by exact string equality.
	exclude := map[string]struct{}{"https://example.com/a": {}}
	got, err := r.Rank(context.Background(), "theme", exclude, 5)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
}

func TestRankEmbeddingFailure(t *testing.T) {
	r := NewRanker(&stubArticleRepo{}, &stubEmbedder{err: errors.New("rate limited")})
	_, err := r.Rank(context.Background(), "theme", nil, 5)
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("err = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestRankReturnsFewerThanLimit(t *testing.T) {
	repo := &stubArticleRepo{similar: []ScoredArticle{
		scored("https://example.com/only", 0.7, time.Now()),
	}}
	r := NewRanker(repo, &stubEmbedder{vec: []float32{1}})

	got, err := r.Rank(context.Background(), "theme", nil, 10)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1 (never pad)", len(got))
	}
}
