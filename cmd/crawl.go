// Package cmd defines and implements the CLI commands for the konutcrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/api"
	"github.com/JakeFAU/konut-crawler/internal/app"
	"github.com/JakeFAU/konut-crawler/internal/crawler"
	"github.com/JakeFAU/konut-crawler/internal/schedule"
)

const shutdownTimeout = 10 * time.Second

// newCrawlCmd creates the 'crawl' subcommand. Without a schedule it performs a
// single run and exits; with one it keeps running and starts a crawl on every tick.
func newCrawlCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs a rent or sale crawl",
		Long: `Crawls every sub-region of the region catalog for the selected mode and
persists the accumulated records. Interrupting the command stops the walk
between sub-regions; the records gathered so far are still written.`,
		RunE: runCrawlCommand,
	}
	cmd.Flags().String("mode", "", "crawl mode, rent or sale (defaults to crawler.mode)")
	cmd.Flags().String("schedule", "", "cron expression; keeps the process running and crawls on every tick")
	cmd.Flags().String("status-addr", "", "listen address of the status API, e.g. :8080")
	_ = v.BindPFlag("schedule.cron", cmd.Flags().Lookup("schedule"))
	_ = v.BindPFlag("status.addr", cmd.Flags().Lookup("status-addr"))
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	cfg := appInstance.Config()

	rawMode, _ := cmd.Flags().GetString("mode")
	var mode crawler.Mode
	if rawMode != "" {
		if mode, err = crawler.ParseMode(rawMode); err != nil {
			return err
		}
	}
	// Fail on a bad mode before any listener is opened.
	if _, err := appInstance.NewOrchestrator(mode); err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	ctx := cmd.Context()
	run := func(ctx context.Context) error {
		orch, err := appInstance.NewOrchestrator(mode)
		if err != nil {
			return err
		}
		_, err = orch.Run(ctx)
		return err
	}

	var sched *schedule.Scheduler
	if cfg.Schedule.Cron != "" {
		sched, err = schedule.New(cfg.Schedule.Cron, run, logger.Named("schedule"))
		if err != nil {
			return err
		}
	}

	if cfg.Status.Addr != "" {
		stopServer := startStatusServer(ctx, appInstance, sched, logger)
		defer stopServer()
	}

	if sched != nil {
		logger.Info("crawl schedule active", zap.String("cron", cfg.Schedule.Cron))
		return sched.Start(ctx)
	}

	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("crawl interrupted, partial snapshot persisted")
			return nil
		}
		return fmt.Errorf("run crawler: %w", err)
	}
	logger.Info("crawl command finished")
	return nil
}

// startStatusServer serves the status API until the returned stop func is called.
func startStatusServer(ctx context.Context, a *app.App, sched *schedule.Scheduler, logger *zap.Logger) func() {
	cfg := a.Config()
	opts := api.Options{APIKey: cfg.Status.APIKey}
	if events := a.Events(); events != nil {
		opts.Events = events
	}
	if sched != nil {
		opts.Trigger = sched
	}
	apiServer := api.NewServer(a.Tracker(), opts, logger.Named("api"))

	srv := &http.Server{
		Addr:              cfg.Status.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server started", zap.String("addr", cfg.Status.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server error", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown error", zap.Error(err))
		}
	}
}
