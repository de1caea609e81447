package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crypto-tracker/internal/config"
	"crypto-tracker/internal/fetcher"
	"crypto-tracker/internal/scheduler"
	"crypto-tracker/internal/service"
	"crypto-tracker/internal/sink"
	"crypto-tracker/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.SnapshotFetcher {
	return fetcher.NewMarkets(fetcher.MarketsOptions{
		BaseURL:    a.Config.Provider.BaseURL,
		VsCurrency: a.Config.Provider.VsCurrency,
		MaxAssets:  a.Config.Provider.MaxAssets,
		Timeout:    a.Config.Provider.RequestTimeout,
		UserAgent:  a.Config.Provider.UserAgent,
	}, a.Logger)
}

func (a *App) newSink(ctx context.Context) (sink.TabularDataSink, error) {
	cfg := a.Config.Sink
	switch cfg.Type {
	case config.SinkExcel:
		return sink.NewExcel(sink.ExcelOptions{
			Path:      cfg.Path,
			Sheet:     cfg.Sheet,
			CSVBackup: cfg.CSVBackup,
		}, a.Logger), nil
	case config.SinkCSV:
		return sink.NewCSV(cfg.Path, a.Logger), nil
	case config.SinkPostgres:
		pool, err := storage.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pg, err := sink.NewPostgres(ctx, pool, cfg.Table, a.Logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown sink.type %q", cfg.Type)
	}
}

// Run executes the long-running tracking service until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dataSink, err := a.newSink(ctx)
	if err != nil {
		return err
	}
	defer dataSink.Close()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, sched, a.newFetcher(), dataSink, a.Logger)

	a.Logger.Info().
		Str("sink", a.Config.Sink.Type).
		Dur("interval", a.Config.Scheduler.Interval).
		Int("max_assets", a.Config.Provider.MaxAssets).
		Msg("starting tracking service")

	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("tracking service stopped")
	return nil
}

// Once executes a single fetch-and-write cycle and exits.
func (a *App) Once(ctx context.Context) error {
	dataSink, err := a.newSink(ctx)
	if err != nil {
		return err
	}
	defer dataSink.Close()

	svc := service.New(a.Config, nil, a.newFetcher(), dataSink, a.Logger)
	return svc.ProcessCycle(ctx, time.Now().UTC())
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting the current batch.
type ExportOptions struct {
	PNGPath   string
	CSVPath   string
	ChartBars int
}
