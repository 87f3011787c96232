package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/andreysafonov/vestnik/config"
	"github.com/andreysafonov/vestnik/internal/content"
)

// parseHTML walks a listing page with the configured selectors, then fetches
// each linked article and extracts its readable text.
func (r *Runner) parseHTML(ctx context.Context, src config.SourceConfig) error {
	resp, err := r.get(ctx, src.URL)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", src.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("fetching %s: status %d", src.URL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", src.URL, err)
	}

	base, err := url.Parse(src.URL)
	if err != nil {
		return fmt.Errorf("parsing source url: %w", err)
	}

	itemSel := src.ItemSelector
	if itemSel == "" {
		itemSel = "article"
	}

	doc.Find(itemSel).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		title := strings.TrimSpace(item.Find(src.TitleSelector).First().Text())
		href, ok := item.Find(src.LinkSelector).First().Attr("href")
		if title == "" || !ok || href == "" {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		link := base.ResolveReference(ref).String()

		desc, err := r.extractArticleText(ctx, link)
		if err != nil {
			r.logger.Printf("error: extracting %s: %v", link, err)
			return true
		}

		a := content.Article{
			Link:        link,
			Title:       title,
			Description: desc,
			Source:      src.Name,
			Tags:        src.Tags,
			PublishedAt: time.Now(),
		}
		if err := r.store.SaveArticle(ctx, a); err != nil {
			r.logger.Printf("error: saving %s: %v", link, err)
		}
		return true
	})
	return nil
}

func (r *Runner) extractArticleText(ctx context.Context, link string) (string, error) {
	resp, err := r.get(ctx, link)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	pageURL, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(article.TextContent), nil
}
