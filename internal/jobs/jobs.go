package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/andreysafonov/vestnik/config"
	"github.com/andreysafonov/vestnik/internal/embedding"
	"github.com/andreysafonov/vestnik/internal/publish"
	"github.com/andreysafonov/vestnik/internal/scrape"
)

// Register binds the configured schedule to the publication pipeline, the
// scrapers and the embedding backfill.
func Register(s *Scheduler, cfg config.ScheduleConfig, pub *publish.Scheduler, runner *scrape.Runner, backfiller *embedding.Backfiller, m *Metrics, logger *log.Logger) error {
	for _, spec := range cfg.Jobs {
		run, err := publicationJob(spec, pub, m)
		if err != nil {
			return err
		}
		name := spec.Name
		wrapped := func(ctx context.Context) {
			m.JobRuns.WithLabelValues(name).Inc()
			run(ctx)
		}
		if err := s.AddCron(spec.Name, spec.Cron, wrapped); err != nil {
			return err
		}
	}

	if err := s.AddInterval("parsing", cfg.ScrapeInterval, func(ctx context.Context) {
		m.JobRuns.WithLabelValues("parsing").Inc()
		runner.Run(ctx)
		m.Scrapes.Inc()
	}); err != nil {
		return err
	}

	return s.AddIntervalDelayed("embeddings", cfg.BackfillInterval, cfg.BackfillDelay, func(ctx context.Context) {
		m.JobRuns.WithLabelValues("embeddings").Inc()
		processed, skipped, err := backfiller.Run(ctx)
		if err != nil {
			logger.Printf("error: embedding backfill: %v", err)
		}
		if processed > 0 || skipped > 0 {
			logger.Printf("embedding backfill stored %d, skipped %d", processed, skipped)
		}
		m.Embeddings.Add(float64(processed))
	})
}

func publicationJob(spec config.JobSpec, pub *publish.Scheduler, m *Metrics) (func(context.Context), error) {
	record := func(res publish.Result) {
		m.Publications.WithLabelValues(res.Job, string(res.Status)).Inc()
	}
	switch spec.Kind {
	case "slot":
		slot := spec.Slot
		if slot == "" {
			return nil, fmt.Errorf("job %s: slot kind requires a slot label", spec.Name)
		}
		return func(ctx context.Context) { record(pub.RunSlot(ctx, slot)) }, nil
	case "summary":
		return func(ctx context.Context) { record(pub.RunWeeklySummary(ctx)) }, nil
	case "rotate":
		return func(ctx context.Context) { record(pub.RunThemeRotation(ctx)) }, nil
	default:
		return nil, fmt.Errorf("job %s: unknown kind %q", spec.Name, spec.Kind)
	}
}
