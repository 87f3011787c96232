package content

import (
	"context"
	"fmt"
	"sort"
)

// Ranker orders candidate articles by semantic similarity to a theme,
// excluding links that were already published. It has no side effects:
// two calls with the same arguments over the same repository state yield
// the same ordered result.
type Ranker struct {
	repo     ArticleRepository
	embedder Embedder
}

// NewRanker constructs a Ranker over the given repository and embedder.
func NewRanker(repo ArticleRepository, embedder Embedder) *Ranker {
	return &Ranker{repo: repo, embedder: embedder}
}

// Rank returns up to limit articles relevant to themeText, best match first,
// skipping any article whose link is in exclude. Exclusion is exact string
// equality on the link; URLs are deliberately not normalized. If fewer than
// limit articles survive the filter, Rank returns what is available rather
// than re-querying with a larger fetch size.
func (r *Ranker) Rank(ctx context.Context, themeText string, exclude map[string]struct{}, limit int) ([]ScoredArticle, error) {
	if limit <= 0 {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, themeText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	// Over-fetch by the size of the exclude set so filtering still leaves
	// enough candidates in the common case.
	scored, err := r.repo.FindSimilar(ctx, vec, limit+len(exclude))
	if err != nil {
		return nil, fmt.Errorf("finding similar articles: %w", err)
	}

	// Equal similarity scores sort by original publication time, fresher
	// first, so the order is fully specified.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].PublishedAt.After(scored[j].PublishedAt)
	})

	out := make([]ScoredArticle, 0, limit)
	for _, s := range scored {
		if _, skip := exclude[s.Link]; skip {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
