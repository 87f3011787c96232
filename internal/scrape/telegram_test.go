package scrape

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const channelFixture = `<!DOCTYPE html>
<html><body>
<div class="tgme_widget_message" data-post="technews/101">
  <div class="tgme_widget_message_text">Old post already seen</div>
  <a class="tgme_widget_message_date" href="https://t.me/technews/101"><time datetime="2025-06-01T09:00:00+00:00"></time></a>
</div>
<div class="tgme_widget_message" data-post="technews/102">
  <div class="tgme_widget_message_text">Fresh release announcement
with a second line of detail</div>
  <a class="tgme_widget_message_date" href="https://t.me/technews/102"><time datetime="2025-06-02T12:30:00+00:00"></time></a>
</div>
<div class="tgme_widget_message" data-post="technews/103">
  <a class="tgme_widget_message_date" href="https://t.me/technews/103"></a>
</div>
</body></html>`

func TestParseTelegramIncremental(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, channelFixture)
	}))
	defer ts.Close()

	st := &stubScrapeStore{cursors: map[string]int{"technews": 101}}
	r := newTestRunner(nil, st)
	r.tgBase = ts.URL

	if err := r.parseTelegram(context.Background(), "@technews", "technews", []string{"tg"}); err != nil {
		t.Fatalf("parseTelegram: %v", err)
	}
	if gotPath != "/s/technews" {
		t.Errorf("path = %q", gotPath)
	}

	// 101 is behind the cursor, 103 has no text; only 102 is new.
	if len(st.saved) != 1 {
		t.Fatalf("saved %d articles, want 1: %v", len(st.saved), st.links())
	}
	a := st.saved[0]
	if a.Link != "https://t.me/technews/102" {
		t.Errorf("link = %q", a.Link)
	}
	if a.Title != "Fresh release announcement" {
		t.Errorf("title = %q, want the first line only", a.Title)
	}
	if !strings.Contains(a.Description, "second line of detail") {
		t.Errorf("description = %q", a.Description)
	}
	want := time.Date(2025, 6, 2, 12, 30, 0, 0, time.UTC)
	if !a.PublishedAt.Equal(want) {
		t.Errorf("published at = %v, want %v", a.PublishedAt, want)
	}
	if st.cursors["technews"] != 102 {
		t.Errorf("cursor = %d, want advanced to 102", st.cursors["technews"])
	}
}

func TestParseTelegramLongTitleTruncated(t *testing.T) {
	long := strings.Repeat("д", 150)
	page := `<div class="tgme_widget_message" data-post="c/1">
  <div class="tgme_widget_message_text">` + long + `</div>
  <a class="tgme_widget_message_date" href="https://t.me/c/1"></a>
</div>`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, page)
	}))
	defer ts.Close()

	st := &stubScrapeStore{}
	r := newTestRunner(nil, st)
	r.tgBase = ts.URL

	if err := r.parseTelegram(context.Background(), "c", "c", nil); err != nil {
		t.Fatalf("parseTelegram: %v", err)
	}
	if len(st.saved) != 1 {
		t.Fatalf("saved %d articles", len(st.saved))
	}
	if n := len([]rune(st.saved[0].Title)); n != 100 {
		t.Errorf("title is %d runes, want 100", n)
	}
	if len([]rune(st.saved[0].Description)) != 150 {
		t.Errorf("description must keep the full text")
	}
}

func TestParseTelegramEmptyUsername(t *testing.T) {
	r := newTestRunner(nil, &stubScrapeStore{})
	if err := r.parseTelegram(context.Background(), "@", "x", nil); err == nil {
		t.Fatal("empty username accepted")
	}
}
