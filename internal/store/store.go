package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"

	"github.com/andreysafonov/vestnik/internal/content"
)

// DefaultEmbeddingDimensions is the expected length of semantic vectors
// stored in the pgvector column.
const DefaultEmbeddingDimensions = 384

// Store wraps the Postgres connection pool. The pool is shared by every
// concurrently running job; queries acquire-use-release and never span an
// external network call.
type Store struct {
	DB *sql.DB
}

// New constructs the Store from DATABASE_URL or the POSTGRES_* environment.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// SaveArticle upserts an article by link. Metadata is refreshed on conflict
// but published_at keeps its first value.
func (s *Store) SaveArticle(ctx context.Context, a content.Article) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO news (title, link, description, source, tags, published_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (link) DO UPDATE SET
  title = EXCLUDED.title,
  description = EXCLUDED.description,
  source = EXCLUDED.source,
  tags = EXCLUDED.tags,
  published_at = COALESCE(news.published_at, EXCLUDED.published_at)
`, a.Title, a.Link, a.Description, a.Source, pq.Array(a.Tags), nullableTime(a.PublishedAt))
	if err != nil {
		return fmt.Errorf("saving article %s: %w", a.Link, err)
	}
	return nil
}

// ArticlesWithoutEmbeddings returns up to limit articles that still need a
// vector, oldest first so the backfill drains deterministically.
func (s *Store) ArticlesWithoutEmbeddings(ctx context.Context, limit int) ([]content.Article, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT n.link, n.title, COALESCE(n.description,''), COALESCE(n.source,''), n.tags, n.published_at
FROM news n
LEFT JOIN article_embeddings ae ON n.link = ae.article_link
WHERE ae.article_link IS NULL
ORDER BY n.id
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// UpsertEmbedding stores the vector for an article link.
func (s *Store) UpsertEmbedding(ctx context.Context, link string, vec []float32) error {
	lit, err := encodeVectorLiteral(vec)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO article_embeddings (article_link, embedding)
VALUES ($1, $2::vector)
ON CONFLICT (article_link) DO UPDATE SET embedding = EXCLUDED.embedding
`, link, lit)
	if err != nil {
		return fmt.Errorf("storing embedding for %s: %w", link, err)
	}
	return nil
}

// FindSimilar returns the closest articles by cosine distance, best match
// first. Similarity is 1 - distance; floating point may push it slightly
// out of [0,1].
func (s *Store) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]content.ScoredArticle, error) {
	if limit <= 0 {
		limit = 5
	}
	lit, err := encodeVectorLiteral(embedding)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT n.link, n.title, COALESCE(n.description,''), COALESCE(n.source,''), n.tags, n.published_at,
       1 - (ae.embedding <=> $1::vector) AS similarity
FROM news n
JOIN article_embeddings ae ON n.link = ae.article_link
ORDER BY ae.embedding <=> $1::vector
LIMIT $2
`, lit, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []content.ScoredArticle
	for rows.Next() {
		var (
			sa  content.ScoredArticle
			ts  sql.NullTime
			tgs pq.StringArray
		)
		if err := rows.Scan(&sa.Link, &sa.Title, &sa.Description, &sa.Source, &tgs, &ts, &sa.Similarity); err != nil {
			return nil, err
		}
		sa.Tags = tgs
		if ts.Valid {
			sa.PublishedAt = ts.Time
		}
		out = append(out, sa)
	}
	return out, rows.Err()
}

// PublishedLinks returns every link already delivered to the channel.
func (s *Store) PublishedLinks(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT link FROM published_links`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, err
		}
		out[link] = struct{}{}
	}
	return out, rows.Err()
}

// MarkPublished records a delivered link. Marking twice is a no-op.
func (s *Store) MarkPublished(ctx context.Context, link string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO published_links (link) VALUES ($1) ON CONFLICT DO NOTHING`, link)
	if err != nil {
		return fmt.Errorf("marking %s published: %w", link, err)
	}
	return nil
}

// ArticlesInRange returns articles originally published within [from, to),
// newest first.
func (s *Store) ArticlesInRange(ctx context.Context, from, to time.Time) ([]content.Article, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT n.link, n.title, COALESCE(n.description,''), COALESCE(n.source,''), n.tags, n.published_at
FROM news n
WHERE n.published_at >= $1 AND n.published_at < $2
ORDER BY n.published_at DESC
`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// GetSetting returns the value for key, or "" when unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a settings key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
`, key, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// AddChannel registers a scraped Telegram channel username.
func (s *Store) AddChannel(ctx context.Context, username string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO channels (username) VALUES ($1) ON CONFLICT DO NOTHING`, username)
	return err
}

// RemoveChannel drops a channel and its scrape cursor.
func (s *Store) RemoveChannel(ctx context.Context, username string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM channel_states WHERE username = $1`, username); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `DELETE FROM channels WHERE username = $1`, username)
	return err
}

// ListChannels returns registered channel usernames.
func (s *Store) ListChannels(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT username FROM channels ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// LastMessageID returns the scrape cursor for a channel, 0 when unseen.
func (s *Store) LastMessageID(ctx context.Context, username string) (int, error) {
	var id int
	err := s.DB.QueryRowContext(ctx, `SELECT last_message_id FROM channel_states WHERE username = $1`, username).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SetLastMessageID advances the scrape cursor for a channel.
func (s *Store) SetLastMessageID(ctx context.Context, username string, id int) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO channel_states (username, last_message_id) VALUES ($1, $2)
ON CONFLICT (username) DO UPDATE SET last_message_id = EXCLUDED.last_message_id
`, username, id)
	return err
}

// Status reports row counts for the operator status endpoint.
func (s *Store) Status(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, table := range []string{"news", "article_embeddings", "published_links", "settings", "channels"} {
		var n int
		if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

func scanArticles(rows *sql.Rows) ([]content.Article, error) {
	var out []content.Article
	for rows.Next() {
		var (
			a   content.Article
			ts  sql.NullTime
			tgs pq.StringArray
		)
		if err := rows.Scan(&a.Link, &a.Title, &a.Description, &a.Source, &tgs, &ts); err != nil {
			return nil, err
		}
		a.Tags = tgs
		if ts.Valid {
			a.PublishedAt = ts.Time
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
