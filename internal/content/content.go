package content

import (
	"context"
	"time"
)

// Article is a scraped news item. The link is the natural key: re-saving
// the same link updates metadata but never moves PublishedAt once set.
type Article struct {
	Link        string
	Title       string
	Description string
	Source      string
	Tags        []string
	PublishedAt time.Time
}

// ScoredArticle pairs an article with its similarity to a query vector.
// Similarity is 1 - cosine distance; callers must not assume it stays
// within [0,1] exactly due to floating point.
type ScoredArticle struct {
	Article
	Similarity float64
}

// ArticleRepository is the persistence contract the publication core needs.
type ArticleRepository interface {
	// FindSimilar returns up to limit articles ordered by vector similarity,
	// best match first. Articles without an embedding are never returned.
	FindSimilar(ctx context.Context, embedding []float32, limit int) ([]ScoredArticle, error)
	// PublishedLinks returns the set of links already delivered to the channel.
	PublishedLinks(ctx context.Context) (map[string]struct{}, error)
	// MarkPublished records that link was delivered. Idempotent.
	MarkPublished(ctx context.Context, link string) error
	// ArticlesInRange returns articles whose original publication time falls
	// within [from, to).
	ArticlesInRange(ctx context.Context, from, to time.Time) ([]Article, error)
}

// SettingsRepository is a durable key-value store for small bot state
// (current theme, rotation history). Get returns "" with a nil error when
// the key has never been set.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
