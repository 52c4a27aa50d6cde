package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flooorgang/floorline/internal/api"
	"github.com/flooorgang/floorline/internal/config"
	"github.com/flooorgang/floorline/internal/logger"
	"github.com/flooorgang/floorline/internal/scheduler"
)

var (
	configPath   = flag.String("config", "configs/config.yaml", "Path to configuration file")
	mode         = flag.String("mode", "scan", "Run mode: scan, daemon, score or serve")
	fresh        = flag.Bool("fresh", false, "Ignore cached stats and refetch everything")
	scoreDate    = flag.String("date", "", "Scan date to score (YYYY-MM-DD, default yesterday)")
	unscoredOnly = flag.Bool("unscored-only", true, "Only score picks without a result")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	app, err := newApp(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}
	defer app.Close()

	switch *mode {
	case "scan":
		err = app.scan(ctx, cfg.Scanner.Fresh || *fresh)
		if err != nil && ctx.Err() == nil {
			app.notifyFailure(err)
		}
	case "daemon":
		err = runDaemon(ctx, app)
	case "score":
		err = app.score(ctx, *scoreDate, *unscoredOnly)
	case "serve":
		err = serve(ctx, app)
	default:
		logger.Fatal("Unknown mode %q", *mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%s failed: %v", *mode, err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("Service stopped")
}

// runDaemon scans once a day ahead of the first game. Only the first of a
// run of failed scans is reported, then the recovery.
func runDaemon(ctx context.Context, app *app) error {
	cfg := app.cfg
	consecutiveFailures := 0

	job := func(ctx context.Context) error {
		err := app.scan(ctx, true)
		if err != nil {
			consecutiveFailures++
			return err
		}
		if consecutiveFailures > 0 {
			app.notifyRecovery(consecutiveFailures)
		}
		consecutiveFailures = 0
		return nil
	}

	sched := scheduler.New(app.store, app.odds, job, cfg.Scanner.Sport,
		cfg.Scheduler.Lead, cfg.Scheduler.CheckInterval, app.location)

	logger.Info("Starting %s daemon (lead: %v, check interval: %v)",
		cfg.Scanner.Sport, cfg.Scheduler.Lead, cfg.Scheduler.CheckInterval)

	// the API runs alongside so scan metrics can be scraped
	go func() {
		if err := serve(ctx, app); err != nil {
			logger.Error("API server failed: %v", err)
		}
	}()

	return sched.Run(ctx, func(err error) {
		if consecutiveFailures == 1 {
			app.notifyFailure(err)
		}
	})
}

func serve(ctx context.Context, app *app) error {
	handler := api.NewHandler(app.store, app.location)
	server := &http.Server{
		Addr:              app.cfg.API.Addr,
		Handler:           api.NewRouter(handler, app.cfg.API.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
