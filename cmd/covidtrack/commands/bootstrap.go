package commands

import (
	"fmt"

	"github.com/epiwatch/covidtrack/internal/external/jhu"
	"github.com/epiwatch/covidtrack/internal/external/live"
	"github.com/epiwatch/covidtrack/internal/ingest"
	"github.com/epiwatch/covidtrack/internal/query"
	"github.com/epiwatch/covidtrack/internal/scheduler"
	"github.com/epiwatch/covidtrack/internal/scheduler/jobs"
	"github.com/epiwatch/covidtrack/internal/snapshot"
	"github.com/epiwatch/covidtrack/pkg/config"
	"github.com/epiwatch/covidtrack/pkg/httputil"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

// app holds the wired component graph shared by the CLI commands.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	repo       *snapshot.Repository
	resolver   *snapshot.Resolver
	engine     *query.Engine
	backfiller *ingest.Backfiller
	reconciler *ingest.Reconciler
	sched      *scheduler.Scheduler
}

// initApp loads config and wires every component, leaves first.
func initApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	epoch, err := snapshot.ParseDate(cfg.Series.Epoch)
	if err != nil {
		// Config validation already parsed it; this is unreachable.
		return nil, fmt.Errorf("parse epoch: %w", err)
	}

	repo, err := snapshot.NewRepository(cfg.Series.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	resolver := snapshot.NewResolver(repo, epoch, cfg.Series.StrictDates)
	engine := query.New(repo, resolver, log)

	historicalHTTP := httputil.New(log, cfg.Historical.Timeout).
		WithRateLimit(cfg.Refresh.RatePerSecond)
	liveHTTP := httputil.New(log, cfg.Live.Timeout).
		WithRateLimit(cfg.Refresh.RatePerSecond)

	jhuClient := jhu.NewClient(historicalHTTP, log, cfg.Historical.BaseURL)
	liveClient := live.NewClient(liveHTTP, log, cfg.Live.BaseURL, cfg.Live.CacheTTL)

	backfiller := ingest.NewBackfiller(repo, jhuClient, epoch, log)
	reconciler := ingest.NewReconciler(repo, liveClient, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewRefreshJob(backfiller, reconciler, cfg.Refresh.Schedule, log)); err != nil {
		return nil, fmt.Errorf("register refresh job: %w", err)
	}

	return &app{
		cfg:        cfg,
		log:        log,
		repo:       repo,
		resolver:   resolver,
		engine:     engine,
		backfiller: backfiller,
		reconciler: reconciler,
		sched:      sched,
	}, nil
}
