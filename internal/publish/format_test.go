package publish

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/andreysafonov/vestnik/internal/content"
)

func TestFormatArticle(t *testing.T) {
	a := content.Article{
		Link:        "https://example.com/post",
		Title:       "Big release",
		Description: "A short synopsis.",
		Tags:        []string{"ai", "open source"},
	}
	got := FormatArticle(a)
	want := "**Big release**\n\nA short synopsis.\n\n[Read more](https://example.com/post)\n\n#ai #open_source"
	if got != want {
		t.Errorf("FormatArticle:\n got %q\nwant %q", got, want)
	}
}

func TestFormatArticleNoDescription(t *testing.T) {
	a := content.Article{Link: "https://example.com/x", Title: "Just a title"}
	got := FormatArticle(a)
	want := "**Just a title**\n\n[Read more](https://example.com/x)"
	if got != want {
		t.Errorf("FormatArticle = %q, want %q", got, want)
	}
}

func TestFormatArticleTruncates(t *testing.T) {
	a := content.Article{
		Link:        "https://example.com/long",
		Title:       "Long one",
		Description: strings.Repeat("ф", 5000),
	}
	got := FormatArticle(a)
	if n := len([]rune(got)); n > MaxMessageLen {
		t.Fatalf("message is %d runes, limit %d", n, MaxMessageLen)
	}
	if !strings.Contains(got, "…") {
		t.Error("truncated message missing elision marker")
	}
	if !strings.HasSuffix(got, "[Read more](https://example.com/long)") {
		t.Error("link must survive truncation")
	}
	if !strings.HasPrefix(got, "**Long one**") {
		t.Error("title must survive truncation")
	}
}

func TestFormatSummary(t *testing.T) {
	theme := content.Theme{Title: "AI", Description: "Machine learning news"}
	articles := []content.Article{
		{Link: "https://example.com/1", Title: "First", Description: "one", PublishedAt: time.Now()},
		{Link: "https://example.com/2", Title: "Second", Description: "two", PublishedAt: time.Now()},
	}
	got := FormatSummary(theme, articles, 5)
	if !strings.HasPrefix(got, "📊 Еженедельный дайджест по теме: «AI»") {
		t.Errorf("header: %q", got)
	}
	if !strings.Contains(got, "1. **First**") || !strings.Contains(got, "2. **Second**") {
		t.Errorf("numbered entries missing: %q", got)
	}
	if !strings.HasSuffix(got, summaryClosing) {
		t.Errorf("closing line missing: %q", got)
	}
	if strings.Contains(got, summaryElisionNotice) {
		t.Error("elision notice present without elided entries")
	}
}

func TestFormatSummaryCapsEntries(t *testing.T) {
	theme := content.Theme{Title: "AI"}
	var articles []content.Article
	for i := 0; i < 8; i++ {
		articles = append(articles, content.Article{
			Link:  fmt.Sprintf("https://example.com/%d", i),
			Title: fmt.Sprintf("Article %d", i),
		})
	}
	got := FormatSummary(theme, articles, 5)
	if strings.Contains(got, "6. **") {
		t.Error("summary exceeded the entry cap")
	}
	if !strings.Contains(got, summaryElisionNotice) {
		t.Error("capped summary missing elision notice")
	}
}

func TestFormatSummaryBudget(t *testing.T) {
	theme := content.Theme{Title: "AI"}
	long := strings.Repeat("w", 140)
	var articles []content.Article
	for i := 0; i < 50; i++ {
		articles = append(articles, content.Article{
			Link:        fmt.Sprintf("https://example.com/very/long/path/%d", i),
			Title:       strings.Repeat("t", 120),
			Description: long,
		})
	}
	got := FormatSummary(theme, articles, 50)
	if n := len([]rune(got)); n > MaxMessageLen {
		t.Fatalf("summary is %d runes, limit %d", n, MaxMessageLen)
	}
	if !strings.Contains(got, summaryElisionNotice) {
		t.Error("over-budget summary missing elision notice")
	}
	if !strings.HasSuffix(got, summaryClosing) {
		t.Error("closing line must always fit")
	}
}

func TestFormatSummaryEmpty(t *testing.T) {
	got := FormatSummary(content.Theme{Title: "Space"}, nil, 5)
	if !strings.Contains(got, "«Space»") {
		t.Errorf("empty summary missing theme: %q", got)
	}
}

func TestFormatThemeAnnouncement(t *testing.T) {
	got := FormatThemeAnnouncement(content.Theme{Title: "AI", Description: "ML news"})
	if !strings.Contains(got, "🎯 Тема недели: «AI»") {
		t.Errorf("announcement missing header: %q", got)
	}
	if !strings.Contains(got, "ML news") {
		t.Errorf("announcement missing description: %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("короткий", 20); got != "короткий" {
		t.Errorf("under-limit string changed: %q", got)
	}
	got := truncateRunes("абвгдеж", 5)
	if got != "абвг…" {
		t.Errorf("truncateRunes = %q, want абвг…", got)
	}
}
