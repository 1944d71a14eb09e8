package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/moviemeter-scraper/internal/app"
	"github.com/JakeFAU/moviemeter-scraper/internal/config"
	"github.com/JakeFAU/moviemeter-scraper/internal/logging"
)

// newScrapeCmd creates the 'scrape' subcommand. Its flags override the
// matching configuration keys only when set explicitly.
func newScrapeCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs one scrape of the chart",
		Long: `Fetches the chart page, collects every title link in chart order, and
scrapes the title pages concurrently. Each complete record is printed and
appended to the configured sink; the total run time is printed at the end.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, *cfgFile)
		},
	}
	cmd.Flags().Int("concurrency", 10, "maximum number of concurrent workers (scrape.concurrency)")
	cmd.Flags().String("output", "movies.csv", "CSV file records are appended to (sink.csv.path)")
	return cmd
}

func runScrape(cmd *cobra.Command, cfgFile string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scrape, err := app.New(cfg, logger, app.WithConsole(cmd.OutOrStdout()))
	if err != nil {
		logger.Error("failed to initialize scrape", zap.Error(err))
		return err
	}
	defer func() {
		if cerr := scrape.Close(); cerr != nil {
			logger.Warn("failed to close sink", zap.Error(cerr))
		}
	}()

	if _, err := scrape.Run(ctx); err != nil {
		logger.Error("scrape failed", zap.Error(err))
		return err
	}
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
