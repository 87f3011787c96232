package embedding

import (
	"context"
	"log"
	"strings"

	"github.com/andreysafonov/vestnik/internal/content"
)

// BatchEmbedder is the slice of the client the backfill needs.
type BatchEmbedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// BackfillStore captures the store methods required by the backfill job.
type BackfillStore interface {
	ArticlesWithoutEmbeddings(ctx context.Context, limit int) ([]content.Article, error)
	UpsertEmbedding(ctx context.Context, link string, vec []float32) error
}

// Backfiller generates embeddings for articles that lack one. Articles
// without an embedding stay invisible to ranking until this job reaches
// them.
type Backfiller struct {
	store     BackfillStore
	embedder  BatchEmbedder
	batchSize int
	logger    *log.Logger
}

// NewBackfiller wires a Backfiller; batchSize <= 0 defaults to 32.
func NewBackfiller(st BackfillStore, embedder BatchEmbedder, batchSize int, logger *log.Logger) *Backfiller {
	if batchSize <= 0 {
		batchSize = 32
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[EMB] ", log.LstdFlags)
	}
	return &Backfiller{store: st, embedder: embedder, batchSize: batchSize, logger: logger}
}

// Run processes pending articles in batches until none remain or the
// context ends. It returns how many embeddings were stored and how many
// articles were skipped with errors.
func (b *Backfiller) Run(ctx context.Context) (processed, skipped int, err error) {
	for {
		if ctx.Err() != nil {
			return processed, skipped, ctx.Err()
		}
		batch, err := b.store.ArticlesWithoutEmbeddings(ctx, b.batchSize)
		if err != nil {
			return processed, skipped, err
		}
		if len(batch) == 0 {
			return processed, skipped, nil
		}

		texts := make([]string, 0, len(batch))
		valid := make([]content.Article, 0, len(batch))
		for _, a := range batch {
			text := embeddingText(a)
			if text == "" {
				b.logger.Printf("warn: article %s has empty title and description, skipping", a.Link)
				skipped++
				continue
			}
			texts = append(texts, text)
			valid = append(valid, a)
		}
		if len(texts) == 0 {
			// Nothing embeddable in this batch and the store will return the
			// same rows again, so stop instead of spinning.
			return processed, skipped, nil
		}

		vecs, err := b.embedder.EmbedMany(ctx, texts)
		if err != nil {
			return processed, skipped, err
		}
		stored := 0
		for i, vec := range vecs {
			if err := b.store.UpsertEmbedding(ctx, valid[i].Link, vec); err != nil {
				b.logger.Printf("error: storing embedding for %s: %v", valid[i].Link, err)
				skipped++
				continue
			}
			processed++
			stored++
		}
		if stored == 0 {
			// Every upsert in this batch failed and the store will hand back
			// the same rows, so stop instead of re-embedding them forever.
			b.logger.Printf("ERROR: stored none of %d embeddings in this batch, giving up until the next run", len(valid))
			return processed, skipped, nil
		}
		if len(batch) < b.batchSize {
			return processed, skipped, nil
		}
	}
}

func embeddingText(a content.Article) string {
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(a.Title); t != "" {
		parts = append(parts, t)
	}
	if d := strings.TrimSpace(a.Description); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, " ")
}
