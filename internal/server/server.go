package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/andreysafonov/vestnik/config"
	"github.com/andreysafonov/vestnik/internal/content"
	"github.com/andreysafonov/vestnik/internal/delivery/telegram"
	"github.com/andreysafonov/vestnik/internal/embedding"
	"github.com/andreysafonov/vestnik/internal/jobs"
	"github.com/andreysafonov/vestnik/internal/publish"
	"github.com/andreysafonov/vestnik/internal/scrape"
	"github.com/andreysafonov/vestnik/internal/store"
)

// Run wires the whole bot: storage, embedding client, publication pipeline,
// scrapers, job scheduler and the admin HTTP API. It blocks serving HTTP
// until the process exits.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}

	var rdb *redis.Client
	if addr := cfg.Storage.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Storage.Redis.Pass, DB: cfg.Storage.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", addr, err)
		}
	}

	catalog := make([]content.Theme, len(cfg.Themes))
	for i, t := range cfg.Themes {
		catalog[i] = content.Theme{Title: t.Title, Description: t.Description}
	}

	embedder := embedding.NewClient(cfg.Embedding)
	rotator := content.NewRotator(st, catalog, cfg.Publication.ThemeHistorySize)
	ranker := content.NewRanker(st, embedder)
	sender := telegram.NewSender(cfg.Telegram, log.New(log.Writer(), "[TG] ", log.LstdFlags))

	pub := publish.NewScheduler(st, rotator, ranker, sender, cfg.Telegram.Channel,
		log.New(log.Writer(), "[PUB] ", log.LstdFlags), publish.Options{
			CandidateLimit:  cfg.Publication.CandidateLimit,
			EveningTopN:     cfg.Publication.EveningTopN,
			SummaryArticles: cfg.Publication.SummaryArticles,
			SummaryWindow:   time.Duration(cfg.Publication.SummaryWindowDays) * 24 * time.Hour,
		})

	runner := scrape.NewRunner(cfg.Sources, st, log.New(log.Writer(), "[PARSER] ", log.LstdFlags))
	backfiller := embedding.NewBackfiller(st, embedder, cfg.Embedding.BatchSize, log.New(log.Writer(), "[EMB] ", log.LstdFlags))

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", cfg.Schedule.Timezone, err)
	}
	schedLogger := log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	sched := jobs.NewScheduler(rdb, loc, schedLogger)
	metrics := jobs.NewMetrics(prometheus.DefaultRegisterer)
	if err := jobs.Register(sched, cfg.Schedule, pub, runner, backfiller, metrics, schedLogger); err != nil {
		return err
	}
	sched.Start(ctx)

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	api := e.Group("/api")
	auth := &AuthHandler{Email: cfg.Server.AdminEmail, PasswordHash: cfg.Server.AdminPasswordHash, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	admin := &AdminHandler{Store: st, Jobs: sched}
	admin.Register(api.Group("/admin"), []byte(secret))

	addr := cfg.Server.Listen
	if addr == "" {
		addr = ":8080"
	}
	baseLogger.Printf("listening on %s", addr)
	return e.Start(addr)
}
