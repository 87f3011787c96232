package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/andreysafonov/vestnik/config"
	"github.com/andreysafonov/vestnik/internal/content"
)

// parseRSS fetches a feed and saves its entries. Sources whose URL contains
// a {tag} placeholder are fetched once per configured tag.
func (r *Runner) parseRSS(ctx context.Context, src config.SourceConfig) error {
	urls := map[string][]string{}
	if strings.Contains(src.URL, "{tag}") {
		for _, tag := range src.Tags {
			urls[strings.ReplaceAll(src.URL, "{tag}", tag)] = []string{tag}
		}
	} else {
		urls[src.URL] = src.Tags
	}

	fp := gofeed.NewParser()
	fp.Client = r.client
	fp.UserAgent = userAgent

	var firstErr error
	for feedURL, tags := range urls {
		feed, err := fp.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fetching %s: %w", feedURL, err)
			}
			r.logger.Printf("error: feed %s: %v", feedURL, err)
			continue
		}
		for _, item := range feed.Items {
			if item.Link == "" {
				continue
			}
			published := time.Now()
			if item.PublishedParsed != nil {
				published = *item.PublishedParsed
			} else if item.UpdatedParsed != nil {
				published = *item.UpdatedParsed
			}
			desc := item.Description
			if len(item.Content) > len(desc) {
				desc = item.Content
			}
			a := content.Article{
				Link:        item.Link,
				Title:       item.Title,
				Description: strings.TrimSpace(desc),
				Source:      src.Name,
				Tags:        tags,
				PublishedAt: published,
			}
			if err := r.store.SaveArticle(ctx, a); err != nil {
				r.logger.Printf("error: saving %s: %v", item.Link, err)
				continue
			}
		}
	}
	return firstErr
}
