package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/metrics"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/parser"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/scraper"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/service"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the configured search URLs and ingest new listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(cfg.SearchURLs) == 0 {
			logger.Warn("No search URLs configured, nothing to scrape")
			return nil
		}

		db, repo, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		p, err := parser.New(cfg.ParserSchemaPath,
			parser.WithEurPlnRate(cfg.EurPlnRate),
			parser.WithLogger(logger))
		if err != nil {
			return err
		}

		fetcher := scraper.New(scraper.Config{
			UserAgent: cfg.UserAgent,
			Delay:     cfg.ScrapeDelay,
			Logger:    logger,
		})

		appMetrics := metrics.NewApplicationMetrics(metrics.NewSimpleCollector(logger), logger)

		ingestor := service.NewIngestor(repo, fetcher, p,
			service.WithLogger(logger),
			service.WithMetrics(appMetrics),
			service.WithDetailDelay(cfg.ScrapeDelay))

		summary, err := ingestor.Run(ctx, cfg.SearchURLs)
		if err != nil {
			return err
		}
		logger.Info("Scrape run finished",
			zap.Int("search_pages", summary.SearchPages),
			zap.Int("found", summary.Found),
			zap.Int("inserted", summary.Inserted),
			zap.Int("duplicates", summary.Duplicates),
			zap.Int("failed", summary.Failed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}
