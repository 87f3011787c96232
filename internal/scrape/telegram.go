package scrape

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/andreysafonov/vestnik/internal/content"
)

// parseTelegram reads a public channel through the t.me/s/ web preview.
// A per-channel cursor on the message id keeps re-scrapes incremental.
func (r *Runner) parseTelegram(ctx context.Context, username, sourceName string, tags []string) error {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return fmt.Errorf("empty channel username")
	}

	resp, err := r.get(ctx, r.tgBase+"/s/"+username)
	if err != nil {
		return fmt.Errorf("fetching channel %s: %w", username, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("fetching channel %s: status %d", username, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parsing channel %s: %w", username, err)
	}

	lastSeen, err := r.store.LastMessageID(ctx, username)
	if err != nil {
		return fmt.Errorf("reading cursor for %s: %w", username, err)
	}
	maxSeen := lastSeen

	doc.Find("div.tgme_widget_message").EachWithBreak(func(_ int, msg *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		msgID := messageID(msg)
		if msgID > 0 && msgID <= lastSeen {
			return true
		}

		text := strings.TrimSpace(msg.Find("div.tgme_widget_message_text").First().Text())
		if text == "" {
			return true
		}

		link, _ := msg.Find("a.tgme_widget_message_date").First().Attr("href")
		if link == "" {
			return true
		}

		published := time.Now()
		if dt, ok := msg.Find("time").First().Attr("datetime"); ok {
			if parsed, err := time.Parse(time.RFC3339, dt); err == nil {
				published = parsed
			}
		}

		title := text
		if idx := strings.IndexByte(title, '\n'); idx >= 0 {
			title = title[:idx]
		}
		if runes := []rune(title); len(runes) > 100 {
			title = string(runes[:100])
		}

		a := content.Article{
			Link:        link,
			Title:       title,
			Description: text,
			Source:      sourceName,
			Tags:        tags,
			PublishedAt: published,
		}
		if err := r.store.SaveArticle(ctx, a); err != nil {
			r.logger.Printf("error: saving %s: %v", link, err)
			return true
		}
		if msgID > maxSeen {
			maxSeen = msgID
		}
		return true
	})

	if maxSeen > lastSeen {
		if err := r.store.SetLastMessageID(ctx, username, maxSeen); err != nil {
			return fmt.Errorf("updating cursor for %s: %w", username, err)
		}
	}
	return nil
}

// messageID extracts the numeric id from the data-post attribute
// ("channel/1234"). Returns 0 when absent.
func messageID(msg *goquery.Selection) int {
	post, ok := msg.Attr("data-post")
	if !ok {
		return 0
	}
	idx := strings.LastIndexByte(post, '/')
	if idx < 0 {
		return 0
	}
	id, err := strconv.Atoi(post[idx+1:])
	if err != nil {
		return 0
	}
	return id
}
