package jobs

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
)

const lockTTL = 2 * time.Minute

// Scheduler fires named jobs from cron expressions and fixed intervals.
// Jobs run in their own goroutines and may overlap; each job re-reads
// durable state on entry, so no cross-job ordering is required. When Redis
// is configured, a per-job SetNX lock keeps multiple bot processes from
// double-firing the same job.
type Scheduler struct {
	logger *log.Logger
	rdb    *redis.Client
	loc    *time.Location
	tick   time.Duration

	cronJobs     []*cronJob
	intervalJobs []*intervalJob
	byName       map[string]func(context.Context)
}

type cronJob struct {
	name string
	expr *cronexpr.Expression
	run  func(context.Context)
	next time.Time
}

type intervalJob struct {
	name  string
	every time.Duration
	delay time.Duration
	last  time.Time
	run   func(context.Context)
}

// NewScheduler builds a Scheduler ticking once a minute in the given
// timezone. rdb may be nil to run without distributed locks.
func NewScheduler(rdb *redis.Client, loc *time.Location, logger *log.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	return &Scheduler{
		logger: logger,
		rdb:    rdb,
		loc:    loc,
		tick:   time.Minute,
		byName: make(map[string]func(context.Context)),
	}
}

// AddCron registers a job on a 5-field cron expression.
func (s *Scheduler) AddCron(name, spec string, run func(context.Context)) error {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return fmt.Errorf("job %s: parsing cron %q: %w", name, spec, err)
	}
	if _, dup := s.byName[name]; dup {
		return fmt.Errorf("job %s registered twice", name)
	}
	s.cronJobs = append(s.cronJobs, &cronJob{name: name, expr: expr, run: run})
	s.byName[name] = run
	return nil
}

// AddInterval registers a job firing every fixed duration, first run one
// interval after Start.
func (s *Scheduler) AddInterval(name string, every time.Duration, run func(context.Context)) error {
	return s.AddIntervalDelayed(name, every, 0, run)
}

// AddIntervalDelayed registers an interval job whose first run is pushed an
// extra delay past Start, so it can trail another interval job each cycle
// (the embedding backfill follows the scrape pass this way).
func (s *Scheduler) AddIntervalDelayed(name string, every, delay time.Duration, run func(context.Context)) error {
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	if delay < 0 {
		return fmt.Errorf("job %s: delay must not be negative", name)
	}
	if _, dup := s.byName[name]; dup {
		return fmt.Errorf("job %s registered twice", name)
	}
	s.intervalJobs = append(s.intervalJobs, &intervalJob{name: name, every: every, delay: delay, run: run})
	s.byName[name] = run
	return nil
}

// Names lists registered job names, sorted.
func (s *Scheduler) Names() []string {
	out := make([]string, 0, len(s.byName))
	for name := range s.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RunNow fires a registered job immediately, bypassing its schedule but
// not the lock. Used by the admin API.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	run, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	s.fire(ctx, name, run)
	return nil
}

// Start launches the scheduling loop. It returns immediately; the loop
// stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	now := time.Now().In(s.loc)
	for _, j := range s.cronJobs {
		j.next = j.expr.Next(now)
	}
	for _, j := range s.intervalJobs {
		j.last = now.Add(j.delay)
	}
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("scheduler stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			s.tickOnce(ctx, time.Now().In(s.loc))
		}
	}
}

func (s *Scheduler) tickOnce(ctx context.Context, now time.Time) {
	for _, j := range s.cronJobs {
		if j.next.IsZero() || j.next.After(now) {
			continue
		}
		j.next = j.expr.Next(now)
		s.fireAsync(ctx, j.name, j.run)
	}
	for _, j := range s.intervalJobs {
		if now.Sub(j.last) < j.every {
			continue
		}
		j.last = now
		s.fireAsync(ctx, j.name, j.run)
	}
}

func (s *Scheduler) fireAsync(ctx context.Context, name string, run func(context.Context)) {
	go s.fire(ctx, name, run)
}

// fire runs one job, guarded by the distributed lock and a recover so a
// panicking job cannot take down the scheduler or future ticks.
func (s *Scheduler) fire(ctx context.Context, name string, run func(context.Context)) {
	if s.rdb != nil {
		lockKey := "sched:lock:" + name
		ok, err := s.rdb.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil {
			s.logger.Printf("warn: job %s: lock check failed, running anyway: %v", name, err)
		} else if !ok {
			s.logger.Printf("job %s: already running elsewhere, skipping", name)
			return
		} else {
			defer s.rdb.Del(context.WithoutCancel(ctx), lockKey)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("ERROR: job %s panicked: %v", name, r)
		}
	}()

	start := time.Now()
	run(ctx)
	s.logger.Printf("job %s finished in %s", name, time.Since(start).Round(time.Millisecond))
}
