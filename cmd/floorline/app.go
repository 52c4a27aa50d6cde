package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flooorgang/floorline/internal/cache"
	"github.com/flooorgang/floorline/internal/config"
	"github.com/flooorgang/floorline/internal/logger"
	"github.com/flooorgang/floorline/internal/metrics"
	"github.com/flooorgang/floorline/internal/models"
	"github.com/flooorgang/floorline/internal/oddsapi"
	"github.com/flooorgang/floorline/internal/report"
	"github.com/flooorgang/floorline/internal/results"
	"github.com/flooorgang/floorline/internal/scanner"
	"github.com/flooorgang/floorline/internal/slack"
	"github.com/flooorgang/floorline/internal/stats"
	"github.com/flooorgang/floorline/internal/storage"
	"github.com/flooorgang/floorline/internal/telegram"
)

// app holds the wired dependencies shared by every mode.
type app struct {
	cfg      *config.Config
	location *time.Location
	store    *storage.Storage
	cache    cache.Cache
	redis    *cache.Redis
	odds     *oddsapi.Client
	stats    *stats.Client
	telegram *telegram.Client
	slack    *slack.Notifier
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, location: cfg.Odds.ScanLocation()}

	if cfg.Storage.Driver == storage.DriverSQLite && cfg.Storage.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	store, err := storage.New(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.store = store
	logger.Info("Storage ready (%s)", cfg.Storage.Driver)

	switch cfg.Cache.Backend {
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		a.redis = r
		a.cache = r
	case "memory":
		a.cache = cache.NewMemory()
	default:
		a.cache = store
	}
	logger.Debug("Cache backend: %s", cfg.Cache.Backend)

	a.odds = oddsapi.NewClient(oddsConfig(cfg, a.location, a.cache, false))

	a.stats = stats.NewClient(
		cfg.Stats.APIBaseURL,
		cfg.Stats.APIKey,
		cfg.Stats.Timeout,
		cfg.Stats.MaxRetries,
		cfg.Stats.RetryDelayBase,
		cfg.Stats.RequestDelay,
	)

	if cfg.Telegram.Enabled {
		a.telegram, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if cfg.Slack.Enabled {
		a.slack = slack.NewNotifier(cfg.Slack.WebhookURL, a.location)
	} else {
		logger.Debug("Slack notifications disabled")
	}

	return a, nil
}

// oddsConfig maps config onto the odds client. Alternate markets default by
// the Odds API sport key, not the scanner's short sport name.
func oddsConfig(cfg *config.Config, location *time.Location, c cache.Cache, fresh bool) oddsapi.Config {
	altMarkets := cfg.Odds.AltMarkets
	if len(altMarkets) == 0 {
		altMarkets = oddsapi.DefaultAltMarkets(cfg.Odds.Sport)
	}
	return oddsapi.Config{
		BaseURL:        cfg.Odds.APIBaseURL,
		APIKey:         cfg.Odds.APIKey,
		Sport:          cfg.Odds.Sport,
		Regions:        cfg.Odds.Regions,
		Bookmaker:      cfg.Odds.Bookmaker,
		PlayerMarkets:  cfg.Odds.PlayerMarkets,
		AltMarkets:     altMarkets,
		Timeout:        cfg.Odds.Timeout,
		RequestDelay:   cfg.Odds.RequestDelay,
		MaxRetries:     cfg.Odds.MaxRetries,
		RetryDelayBase: cfg.Odds.RetryDelayBase,
		Location:       location,
		Cache:          c,
		Fresh:          fresh,
	}
}

// Close releases storage and cache connections. Safe to call twice.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Error("Failed to close cache: %v", err)
		}
		a.redis = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
		a.store = nil
	}
}

// scan runs one full scan, prints and exports the report and sends
// notifications. Notification failures never fail the scan.
func (a *app) scan(ctx context.Context, fresh bool) error {
	cfg := a.cfg
	logger.Info("Starting %s scan (fresh: %v)", strings.ToUpper(cfg.Scanner.Sport), fresh)

	if n, err := a.store.PurgeExpired(ctx); err != nil {
		logger.Warn("Failed to purge expired cache entries: %v", err)
	} else if n > 0 {
		logger.Debug("Purged %d expired cache entries", n)
	}

	odds := a.odds
	if fresh {
		odds = oddsapi.NewClient(oddsConfig(cfg, a.location, a.cache, true))
	}
	provider := stats.NewCachedProvider(a.stats, a.cache, a.location, fresh)
	sc := scanner.New(provider, odds, a.store, scanner.Options{
		Sport:            cfg.Scanner.Sport,
		Season:           cfg.Stats.Season,
		WindowSize:       cfg.Engine.WindowSize,
		MinSamplesPlayer: cfg.Engine.MinSamples(false, false),
		MinSamplesTeam:   cfg.Engine.MinSamples(true, false),
		MinSamplesAlt:    cfg.Engine.MinSamples(false, true),
		Tolerance:        cfg.Engine.ToleranceFraction,
		OddsCutoff:       cfg.Engine.OddsCutoff,
		PlayerProps:      cfg.Scanner.PlayerProps,
		TeamTotals:       cfg.Scanner.TeamTotals,
		AlternateLines:   cfg.Scanner.AlternateLines,
		Location:         a.location,
	})

	rep, err := sc.Run(ctx)
	if err != nil {
		metrics.ObserveScanFailure(cfg.Scanner.Sport)
		return fmt.Errorf("scan failed: %w", err)
	}
	metrics.ObserveScan(&rep.Run, rep.Opportunities, rep.Duration)
	for _, e := range rep.Errors {
		logger.Debug("Skipped %s %s: %s (%v)", e.Entity, e.Statistic, e.Reason, e.Err)
	}

	if err := report.Text(os.Stdout, rep.Opportunities); err != nil {
		logger.Warn("Failed to print report: %v", err)
	}

	if cfg.Report.XLSXDir != "" {
		path := filepath.Join(cfg.Report.XLSXDir, report.FileName(&rep.Run))
		if err := report.WriteXLSX(path, &rep.Run, rep.Opportunities); err != nil {
			logger.Warn("Failed to write workbook: %v", err)
		} else {
			logger.Info("Workbook written to %s", path)
		}
	}

	a.notifySuccess(ctx, &rep.Run, rep.Opportunities)
	return nil
}

// score grades a scan date's picks. An empty date means yesterday.
func (a *app) score(ctx context.Context, date string, unscoredOnly bool) error {
	day := models.CalendarDay(time.Now().AddDate(0, 0, -1), a.location)
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", date, err)
		}
		day = parsed
	}

	provider := stats.NewCachedProvider(a.stats, a.cache, a.location, false)
	tracker := results.NewTracker(a.store, provider, a.cfg.Stats.Season)

	summary, err := tracker.ScoreDate(ctx, day, unscoredOnly)
	if err != nil {
		return err
	}
	for _, e := range summary.Errors {
		logger.Warn("Scoring error: %v", e)
	}
	logger.Info("Hit rate for %s: %.1f%% (%d/%d)",
		day.Format("2006-01-02"), summary.HitRate()*100, summary.Hits, summary.Graded())

	if a.slack != nil {
		if err := a.slack.ResultsScored(ctx, day, summary.Hits, summary.Misses); err != nil {
			logger.Warn("Failed to send Slack notification: %v", err)
		}
	}
	return nil
}

func (a *app) notifySuccess(ctx context.Context, run *models.ScanRun, opps []models.Opportunity) {
	if a.telegram != nil {
		if err := a.telegram.Send(run, opps); err != nil {
			logger.Error("Failed to send Telegram notification: %v", err)
		} else if len(opps) > 0 {
			logger.Info("Sent Telegram notification with %d picks", len(opps))
		}
	}
	if a.slack != nil {
		if err := a.slack.ScanSucceeded(ctx, strings.ToUpper(run.Sport), len(opps)); err != nil {
			logger.Warn("Failed to send Slack notification: %v", err)
		}
	}
}

func (a *app) notifyFailure(scanErr error) {
	sport := a.cfg.Scanner.Sport
	if a.telegram != nil {
		if err := a.telegram.SendError(sport, scanErr); err != nil {
			logger.Warn("Failed to send error notification to Telegram: %v", err)
		}
	}
	if a.slack != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.slack.ScanFailed(ctx, strings.ToUpper(sport), scanErr); err != nil {
			logger.Warn("Failed to send error notification to Slack: %v", err)
		}
	}
}

func (a *app) notifyRecovery(failures int) {
	if a.telegram != nil {
		if err := a.telegram.SendRecovery(a.cfg.Scanner.Sport, failures); err != nil {
			logger.Warn("Failed to send recovery notification to Telegram: %v", err)
		}
	}
}
