package main

import (
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/api"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review API",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, repo, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		collector := metrics.NewSimpleCollector(logger)
		appMetrics := metrics.NewApplicationMetrics(collector, logger)
		router := api.SetupRouter(repo, appMetrics)

		addr := ":" + cfg.HTTPPort
		logger.Info("Starting server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, router); err != nil {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
