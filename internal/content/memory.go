package content

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory ArticleRepository and SettingsRepository.
// It backs unit tests and the dry-run mode of the CLI; similarity search is
// exact cosine over the stored vectors.
type MemoryRepository struct {
	mu         sync.Mutex
	articles   map[string]Article
	embeddings map[string][]float32
	published  map[string]struct{}
	settings   map[string]string
	writes     int
	markErr    error
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		articles:   make(map[string]Article),
		embeddings: make(map[string][]float32),
		published:  make(map[string]struct{}),
		settings:   make(map[string]string),
	}
}

// AddArticle stores an article, optionally with its embedding. Re-adding the
// same link keeps the original PublishedAt.
func (m *MemoryRepository) AddArticle(a Article, embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.articles[a.Link]; ok && !prev.PublishedAt.IsZero() {
		a.PublishedAt = prev.PublishedAt
	}
	m.articles[a.Link] = a
	if embedding != nil {
		m.embeddings[a.Link] = embedding
	}
}

// WriteCount reports how many mutating calls succeeded. Tests use it to
// assert that failed runs performed zero writes.
func (m *MemoryRepository) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryRepository) FindSimilar(_ context.Context, embedding []float32, limit int) ([]ScoredArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var scored []ScoredArticle
	for link, vec := range m.embeddings {
		art, ok := m.articles[link]
		if !ok {
			continue
		}
		scored = append(scored, ScoredArticle{Article: art, Similarity: cosine(embedding, vec)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (m *MemoryRepository) PublishedLinks(context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{}, len(m.published))
	for link := range m.published {
		out[link] = struct{}{}
	}
	return out, nil
}

// FailMarkPublished makes subsequent MarkPublished calls return err without
// recording anything. Pass nil to restore normal behavior.
func (m *MemoryRepository) FailMarkPublished(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markErr = err
}

func (m *MemoryRepository) MarkPublished(_ context.Context, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.published[link] = struct{}{}
	m.writes++
	return nil
}

func (m *MemoryRepository) ArticlesInRange(_ context.Context, from, to time.Time) ([]Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Article
	for _, a := range m.articles {
		if !a.PublishedAt.Before(from) && a.PublishedAt.Before(to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, nil
}

func (m *MemoryRepository) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[key], nil
}

func (m *MemoryRepository) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	m.writes++
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
