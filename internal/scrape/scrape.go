package scrape

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/andreysafonov/vestnik/config"
	"github.com/andreysafonov/vestnik/internal/content"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// Store captures the persistence the scrapers need.
type Store interface {
	SaveArticle(ctx context.Context, a content.Article) error
	ListChannels(ctx context.Context) ([]string, error)
	LastMessageID(ctx context.Context, username string) (int, error)
	SetLastMessageID(ctx context.Context, username string, id int) error
}

// Runner walks the configured sources plus the registered Telegram channels
// and saves whatever it finds. A broken source is logged and skipped; it
// never aborts the whole pass.
type Runner struct {
	sources []config.SourceConfig
	store   Store
	client  *http.Client
	logger  *log.Logger
	tgBase  string
}

// NewRunner builds a Runner over the configured sources.
func NewRunner(sources []config.SourceConfig, st Store, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(log.Writer(), "[PARSER] ", log.LstdFlags)
	}
	return &Runner{
		sources: sources,
		store:   st,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		tgBase:  "https://t.me",
	}
}

// Run processes every source once.
func (r *Runner) Run(ctx context.Context) {
	for _, src := range r.sources {
		if ctx.Err() != nil {
			return
		}
		r.logger.Printf("processing source %s (type %s)", src.Name, src.Type)
		var err error
		switch src.Type {
		case "rss":
			err = r.parseRSS(ctx, src)
		case "html":
			err = r.parseHTML(ctx, src)
		case "telegram_web":
			err = r.parseTelegram(ctx, src.URL, src.Name, src.Tags)
		default:
			r.logger.Printf("warn: unsupported source type %q for %s", src.Type, src.Name)
			continue
		}
		if err != nil {
			r.logger.Printf("error: source %s: %v", src.Name, err)
		}
	}

	// Channels registered at runtime through the admin API.
	channels, err := r.store.ListChannels(ctx)
	if err != nil {
		r.logger.Printf("error: listing channels: %v", err)
		return
	}
	for _, username := range channels {
		if ctx.Err() != nil {
			return
		}
		if err := r.parseTelegram(ctx, username, username, nil); err != nil {
			r.logger.Printf("error: channel %s: %v", username, err)
		}
	}
}

func (r *Runner) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return r.client.Do(req)
}
