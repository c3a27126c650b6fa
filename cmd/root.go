package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/app"
	internalconfig "github.com/JakeFAU/konut-crawler/internal/config"
	"github.com/JakeFAU/konut-crawler/internal/logging"
	"github.com/JakeFAU/konut-crawler/pkg/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = app.NewApp

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "konutcrawler",
		Short: "Crawls emlakjet.com rental and sale listings into tabular snapshots.",
		Long: `konutcrawler walks every province and district of the region catalog,
fans out over the listing index pages of each district and extracts one
record per listing. Records accumulate across the run and are written as
CSV or table snapshots to the configured storage backends.`,
		SilenceUsage: true,

		// Config is loaded here rather than in cobra.OnInitialize so load errors
		// surface as command errors.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			used, err := config.InitConfig(v, cfgFile)
			if err != nil {
				return err
			}
			cfg, err := internalconfig.FromViper(v)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if used != "" {
				logger.Info("using config file", zap.String("path", used))
			}

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, /etc/konutcrawler or $HOME/.konutcrawler)")
	cmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	_ = v.BindPFlag("logging.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(newCrawlCmd(v))
	cmd.AddCommand(newRegionsCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "konutcrawler:", err)
		stop()
		os.Exit(1)
	}
}
