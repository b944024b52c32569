package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"gigalert/discovery-service/internal/api"
	"gigalert/discovery-service/internal/events"
	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/notify"
	"gigalert/discovery-service/internal/scheduler"
	"gigalert/discovery-service/internal/scraper"
)

const (
	shutdownTimeout = 10 * time.Second
	// POST /discovery/stop waits for the cycle in flight.
	writeTimeout = 5 * time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control surface and the retention reaper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, log := a.cfg, a.log

	worker := newWorker(a, nil)
	runner := scheduler.NewRunner(ctx, worker, cfg.IntervalMin, cfg.IntervalMax, log)

	reaper := scheduler.NewReaper(a.repo, cfg.Retention, cfg.ReaperSchedule, log)
	if err := reaper.Start(ctx); err != nil {
		return fmt.Errorf("reaper: %w", err)
	}

	if cfg.TelegramToken == "" {
		log.Warn("TELEGRAM_TOKEN not set; start requests will be refused")
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(runner, a.directory(), cfg.TelegramToken, cfg.Pages, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", logger.String("addr", srv.Addr), logger.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		reaper.Stop()
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", logger.Error(err))
	}
	runner.Stop()
	reaper.Stop()
	log.Info("Stopped")
	return nil
}

// newWorker wires fetcher, dispatcher and the optional match-event publisher.
// A non-nil notifier replaces the Telegram dispatcher.
func newWorker(a *app, notifier scraper.Notifier) *scraper.Worker {
	cfg := a.cfg
	if notifier == nil {
		notifier = notify.NewDispatcher(cfg.TelegramAPIURL, cfg.ListingBaseURL, cfg.SendTimeout, cfg.SendRatePerSec, a.log)
	}

	var publisher scraper.MatchPublisher
	if a.rdb != nil {
		publisher = events.NewPublisher(a.rdb)
	}

	fetcher := scraper.NewPageFetcher(cfg.ListingBaseURL, cfg.FetchTimeout, a.log)
	return scraper.NewWorker(fetcher, a.repo, notifier, publisher, a.log)
}
