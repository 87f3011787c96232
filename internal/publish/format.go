package publish

import (
	"fmt"
	"strings"

	"github.com/andreysafonov/vestnik/internal/content"
)

const (
	// MaxMessageLen is the Telegram hard limit for one message.
	MaxMessageLen = 4096
	// summaryBudget is where the digest stops adding entries so the closing
	// lines and elision notice always fit under MaxMessageLen.
	summaryBudget = 3800
	// summaryDescLimit bounds each digest entry's description.
	summaryDescLimit = 150

	summaryElisionNotice = "…и ещё больше материалов по теме на этой неделе."
	summaryClosing       = "Подробности в следующих публикациях!"
)

// FormatArticle renders a single-article post: title, optional synopsis,
// link, optional hashtags. The result never exceeds MaxMessageLen; an
// overlong description is elided with a trailing marker rather than cut
// mid-entity.
func FormatArticle(a content.Article) string {
	tail := fmt.Sprintf("[Read more](%s)", a.Link)
	if tags := hashtags(a.Tags); tags != "" {
		tail += "\n\n" + tags
	}

	head := fmt.Sprintf("**%s**", a.Title)
	desc := strings.TrimSpace(a.Description)

	msg := head + "\n\n" + tail
	if desc != "" {
		msg = head + "\n\n" + desc + "\n\n" + tail
	}
	if len([]rune(msg)) <= MaxMessageLen {
		return msg
	}

	// Shrink the description to fit; the title and link always survive.
	fixed := len([]rune(head)) + len([]rune(tail)) + 4 // two "\n\n" joins
	room := MaxMessageLen - fixed
	if room <= 0 || desc == "" {
		return truncateRunes(head, MaxMessageLen-len([]rune(tail))-4) + "\n\n" + tail
	}
	return head + "\n\n" + truncateRunes(desc, room) + "\n\n" + tail
}

// FormatSummary renders the weekly digest: theme header, numbered entries
// (up to maxEntries), closing call to action. Entries stop once the buffer
// would exceed summaryBudget, with an elision notice appended instead.
// When no articles qualify, a theme-only notice is produced.
func FormatSummary(theme content.Theme, articles []content.Article, maxEntries int) string {
	if len(articles) == 0 {
		return fmt.Sprintf("На этой неделе не было найдено новых статей по теме «%s». Следите за обновлениями!", theme.Title)
	}
	if maxEntries <= 0 {
		maxEntries = 5
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Еженедельный дайджест по теме: «%s»\n\n", theme.Title)
	if theme.Description != "" {
		b.WriteString(theme.Description + "\n\n")
	}

	elided := false
	added := 0
	for _, a := range articles {
		if added == maxEntries {
			break
		}
		entry := fmt.Sprintf("%d. **%s**\n%s\n%s\n\n", added+1, a.Title, truncateRunes(strings.TrimSpace(a.Description), summaryDescLimit), a.Link)
		if len([]rune(b.String()))+len([]rune(entry)) > summaryBudget {
			elided = true
			break
		}
		b.WriteString(entry)
		added++
	}
	if elided || added < len(articles) {
		b.WriteString(summaryElisionNotice + "\n\n")
	}
	b.WriteString(summaryClosing)

	out := b.String()
	if len([]rune(out)) > MaxMessageLen {
		out = truncateRunes(out, MaxMessageLen)
	}
	return out
}

// FormatThemeAnnouncement renders the Monday post announcing the new theme.
func FormatThemeAnnouncement(theme content.Theme) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 Тема недели: «%s»", theme.Title)
	if theme.Description != "" {
		b.WriteString("\n\n" + theme.Description)
	}
	b.WriteString("\n\nВсю неделю публикуем лучшие материалы по этой теме.")
	return b.String()
}

// truncateRunes cuts s to at most n runes, replacing the tail with an
// ellipsis when something was removed.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}

func hashtags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		parts = append(parts, "#"+strings.ReplaceAll(t, " ", "_"))
	}
	return strings.Join(parts, " ")
}
