package publish

import (
	"context"

	"github.com/google/uuid"
)

// ParseMode selects the markup flavor for delivered messages.
type ParseMode string

const (
	ModeMarkdown ParseMode = "Markdown"
	ModeHTML     ParseMode = "HTML"
)

// Deliverer sends a formatted message to a channel. Implementations may
// retry once internally on transient failure but must return within the
// caller's context.
type Deliverer interface {
	Send(ctx context.Context, channel, text string, mode ParseMode, disablePreview bool) error
}

// Status classifies the outcome of one scheduled publication attempt.
type Status string

const (
	StatusPublished Status = "published"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Failure reasons carried in Result.Reason.
const (
	ReasonNoThemeSet           = "no_theme_set"
	ReasonNoCandidates         = "no_candidates"
	ReasonEmbeddingUnavailable = "embedding_unavailable"
	ReasonDeliveryFailed       = "delivery_failed"
	ReasonMarkPublishedFailed  = "mark_published_failed"
	ReasonAnnouncementFailed   = "announcement_delivery_failed"
	ReasonInternal             = "internal_error"
)

// Result reports what a scheduled job did. Every run gets a fresh ID so log
// lines from concurrent jobs can be correlated.
type Result struct {
	RunID  string `json:"run_id"`
	Job    string `json:"job"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Theme  string `json:"theme,omitempty"`
	Link   string `json:"link,omitempty"`
}

func newResult(job string) Result {
	return Result{RunID: uuid.NewString(), Job: job}
}

func (r Result) published(link string) Result {
	r.Status = StatusPublished
	r.Link = link
	return r
}

func (r Result) skipped(reason string) Result {
	r.Status = StatusSkipped
	r.Reason = reason
	return r
}

func (r Result) failed(reason string) Result {
	r.Status = StatusFailed
	r.Reason = reason
	return r
}
