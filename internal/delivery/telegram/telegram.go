package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andreysafonov/vestnik/config"
	"github.com/andreysafonov/vestnik/internal/publish"
)

// Sender posts messages to a Telegram channel via the Bot API. Transient
// failures get exactly one retry after a fixed backoff; the retry is an
// explicit loop, never recursion.
type Sender struct {
	botToken string
	baseURL  string
	backoff  time.Duration
	client   *http.Client
	logger   *log.Logger
}

var _ publish.Deliverer = (*Sender)(nil)

// NewSender builds a Sender from config.
func NewSender(cfg config.TelegramConfig, logger *log.Logger) *Sender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[TG] ", log.LstdFlags)
	}
	return &Sender{
		botToken: cfg.BotToken,
		baseURL:  baseURL,
		backoff:  backoff,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Send posts text to the channel. Client errors other than rate limits are
// returned immediately; everything else is retried once.
func (s *Sender) Send(ctx context.Context, channel, text string, mode publish.ParseMode, disablePreview bool) error {
	if s.botToken == "" || channel == "" {
		return fmt.Errorf("telegram sender misconfigured")
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			s.logger.Printf("retrying send to %s in %s: %v", channel, s.backoff, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff):
			}
		}

		retryable, err := s.sendOnce(ctx, channel, text, mode, disablePreview)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("sending to %s: %w", channel, lastErr)
}

func (s *Sender) sendOnce(ctx context.Context, channel, text string, mode publish.ParseMode, disablePreview bool) (retryable bool, err error) {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	form := url.Values{}
	form.Set("chat_id", channel)
	form.Set("text", text)
	form.Set("parse_mode", string(mode))
	form.Set("disable_web_page_preview", strconv.FormatBool(disablePreview))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return false, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	apiErr := fmt.Errorf("telegram API status %d: %s", resp.StatusCode, apiDescription(body))

	// Rate limits and server-side errors are worth one more try; the rest
	// of the 4xx range (bad markup, unknown chat) will not improve.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, apiErr
	}
	return false, apiErr
}

func apiDescription(body []byte) string {
	var parsed struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Description != "" {
		return parsed.Description
	}
	return strings.TrimSpace(string(body))
}
