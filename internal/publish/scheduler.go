package publish

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/andreysafonov/vestnik/internal/content"
)

// Options tunes candidate selection. Zero values fall back to the
// defaults the channel has been running with.
type Options struct {
	// CandidateLimit is how many ranked candidates to fetch per slot,
	// generous enough to survive the published-links filter.
	CandidateLimit int
	// EveningTopN is the pool size the "evening" slot samples from.
	EveningTopN int
	// SummaryArticles caps the weekly digest entry count.
	SummaryArticles int
	// SummaryWindow is the trailing interval for digest candidates.
	SummaryWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = 12
	}
	if o.EveningTopN <= 0 {
		o.EveningTopN = 5
	}
	if o.SummaryArticles <= 0 {
		o.SummaryArticles = 5
	}
	if o.SummaryWindow <= 0 {
		o.SummaryWindow = 7 * 24 * time.Hour
	}
	return o
}

// Scheduler orchestrates theme-guided publication: it resolves the current
// theme, ranks candidates, filters published links, formats and delivers,
// and marks delivery in the repository. All durable state lives in the
// repository; each run recomputes everything fresh, so a crash between any
// two steps is resumable.
type Scheduler struct {
	repo      content.ArticleRepository
	rotator   *content.Rotator
	ranker    *content.Ranker
	deliverer Deliverer
	channel   string
	logger    *log.Logger
	opts      Options
	now       func() time.Time
	intn      func(n int) int
}

// NewScheduler wires a Scheduler. channel is the delivery target.
func NewScheduler(repo content.ArticleRepository, rotator *content.Rotator, ranker *content.Ranker, deliverer Deliverer, channel string, logger *log.Logger, opts Options) *Scheduler {
	if logger == nil {
		logger = log.New(log.Writer(), "[PUB] ", log.LstdFlags)
	}
	return &Scheduler{
		repo:      repo,
		rotator:   rotator,
		ranker:    ranker,
		deliverer: deliverer,
		channel:   channel,
		logger:    logger,
		opts:      opts.withDefaults(),
		now:       time.Now,
		intn:      rand.Intn,
	}
}

// RunSlot publishes one themed article for the named slot. Informational
// slots take the top-ranked candidate; the "evening" slot samples uniformly
// from the top EveningTopN for variety.
func (s *Scheduler) RunSlot(ctx context.Context, slot string) Result {
	res := newResult("slot:" + slot)

	theme, err := s.rotator.Current(ctx)
	if err != nil {
		s.logger.Printf("[%s] resolving theme failed: %v", res.RunID, err)
		return res.failed(ReasonInternal)
	}
	if theme == nil {
		s.logger.Printf("[%s] warn: weekly theme not set, skipping %s slot", res.RunID, slot)
		return res.skipped(ReasonNoThemeSet)
	}
	res.Theme = theme.Title

	published, err := s.repo.PublishedLinks(ctx)
	if err != nil {
		s.logger.Printf("[%s] loading published links failed: %v", res.RunID, err)
		return res.failed(ReasonInternal)
	}

	candidates, err := s.ranker.Rank(ctx, theme.Title, published, s.opts.CandidateLimit)
	if err != nil {
		if errors.Is(err, content.ErrEmbeddingUnavailable) {
			s.logger.Printf("[%s] error: %v; deferring to next tick", res.RunID, err)
			return res.failed(ReasonEmbeddingUnavailable)
		}
		s.logger.Printf("[%s] ranking candidates failed: %v", res.RunID, err)
		return res.failed(ReasonInternal)
	}
	if len(candidates) == 0 {
		s.logger.Printf("[%s] no unpublished articles for theme %q, nothing to post", res.RunID, theme.Title)
		return res.skipped(ReasonNoCandidates)
	}

	picked := s.pick(slot, candidates)
	text := FormatArticle(picked.Article)

	if err := s.deliverer.Send(ctx, s.channel, text, ModeMarkdown, false); err != nil {
		// The article stays unpublished in the repository and remains the
		// top candidate for the next slot.
		s.logger.Printf("[%s] error: delivery failed for %s: %v", res.RunID, picked.Link, err)
		return res.failed(ReasonDeliveryFailed)
	}

	if err := s.repo.MarkPublished(ctx, picked.Link); err != nil {
		// The message is live but bookkeeping disagrees. Log everything an
		// operator needs to reconcile by hand.
		s.logger.Printf("[%s] ERROR: published to %s but mark_published failed: link=%s time=%s err=%v",
			res.RunID, s.channel, picked.Link, s.now().UTC().Format(time.RFC3339), err)
		res.Link = picked.Link
		return res.failed(ReasonMarkPublishedFailed)
	}

	s.logger.Printf("[%s] published %s (similarity %.3f, slot %s)", res.RunID, picked.Link, picked.Similarity, slot)
	return res.published(picked.Link)
}

func (s *Scheduler) pick(slot string, candidates []content.ScoredArticle) content.ScoredArticle {
	if slot == "evening" {
		n := s.opts.EveningTopN
		if n > len(candidates) {
			n = len(candidates)
		}
		return candidates[s.intn(n)]
	}
	return candidates[0]
}

// RunWeeklySummary posts the digest of what the channel published over the
// trailing window. Candidates are articles whose original publication time
// falls in the window, intersected with the published-links set. When the
// intersection is empty a theme-only notice is posted instead of failing.
func (s *Scheduler) RunWeeklySummary(ctx context.Context) Result {
	res := newResult("summary")

	theme, err := s.rotator.Current(ctx)
	if err != nil {
		s.logger.Printf("[%s] resolving theme failed: %v", res.RunID, err)
		return res.failed(ReasonInternal)
	}
	if theme == nil {
		s.logger.Printf("[%s] warn: weekly theme not set, skipping summary", res.RunID)
		return res.skipped(ReasonNoThemeSet)
	}
	res.Theme = theme.Title

	end := s.now()
	recent, err := s.repo.ArticlesInRange(ctx, end.Add(-s.opts.SummaryWindow), end)
	if err != nil {
		s.logger.Printf("[%s] loading weekly articles failed: %v", res.RunID, err)
		return res.failed(ReasonInternal)
	}
	published, err := s.repo.PublishedLinks(ctx)
	if err != nil {
		s.logger.Printf("[%s] loading published links failed: %v", res.RunID, err)
		return res.failed(ReasonInternal)
	}

	var picked []content.Article
	for _, a := range recent {
		if _, ok := published[a.Link]; ok {
			picked = append(picked, a)
		}
	}

	text := FormatSummary(*theme, picked, s.opts.SummaryArticles)
	if err := s.deliverer.Send(ctx, s.channel, text, ModeMarkdown, true); err != nil {
		s.logger.Printf("[%s] error: summary delivery failed: %v", res.RunID, err)
		return res.failed(ReasonDeliveryFailed)
	}

	s.logger.Printf("[%s] posted weekly summary for %q with %d articles", res.RunID, theme.Title, len(picked))
	return res.published("")
}

// RunThemeRotation rotates the weekly theme and announces it. The rotated
// theme is authoritative once persisted: a failed announcement is logged
// but never rolls the rotation back.
func (s *Scheduler) RunThemeRotation(ctx context.Context) Result {
	res := newResult("rotate")

	theme, err := s.rotator.Rotate(ctx)
	if err != nil {
		s.logger.Printf("[%s] theme rotation failed: %v", res.RunID, err)
		return res.failed(ReasonInternal)
	}
	res.Theme = theme.Title
	s.logger.Printf("[%s] rotated weekly theme to %q", res.RunID, theme.Title)

	if err := s.deliverer.Send(ctx, s.channel, FormatThemeAnnouncement(theme), ModeMarkdown, true); err != nil {
		s.logger.Printf("[%s] error: theme announcement delivery failed: %v", res.RunID, err)
		res = res.published("")
		res.Reason = ReasonAnnouncementFailed
		return res
	}
	return res.published("")
}
