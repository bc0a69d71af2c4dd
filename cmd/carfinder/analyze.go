package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/ai"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/analysis"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/marketvalue"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/metrics"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/repository"
)

var retranslate bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the AI analysis pipeline over records with missing fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, repo, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		appMetrics := metrics.NewApplicationMetrics(metrics.NewSimpleCollector(logger), logger)

		advisor := ai.NewClient(ai.ClientConfig{
			BaseURL:     cfg.AIBaseURL,
			APIKey:      cfg.AIAPIKey,
			Model:       cfg.AIModel,
			FitCriteria: cfg.PersonalFitCriteria,
			Metrics:     appMetrics,
			Logger:      logger,
		})

		if retranslate {
			return retranslateAll(ctx, repo, advisor)
		}

		mvCfg, err := marketvalue.LoadConfig(cfg.MarketValuePath)
		if err != nil {
			return err
		}
		estimator := marketvalue.NewEstimator(mvCfg, repo, marketvalue.WithLogger(logger))

		orchestrator := analysis.NewOrchestrator(repo, advisor, estimator,
			analysis.WithLogger(logger),
			analysis.WithMetrics(appMetrics),
			analysis.WithInterRecordDelay(cfg.InterRecordDelay))

		summary, err := orchestrator.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("Analysis run finished",
			zap.Int("processed", summary.Processed),
			zap.Int("completed", summary.Completed),
			zap.Int("failed", summary.Failed),
			zap.Int("skipped", summary.Skipped))
		for step, count := range summary.StepFailures {
			logger.Warn("Step failures", zap.String("step", string(step)), zap.Int("count", count))
		}
		return nil
	},
}

// retranslateAll re-runs only the translation step, including over records
// that already carry a translation. Used after prompt or model changes.
func retranslateAll(ctx context.Context, repo repository.VehicleRepository, advisor *ai.Client) error {
	vehicles, err := repo.FindVehiclesNeedingTranslation(ctx, true)
	if err != nil {
		return err
	}
	logger.Info("Re-translating records", zap.Int("count", len(vehicles)))

	var failed int
	for _, vehicle := range vehicles {
		if err := ctx.Err(); err != nil {
			return err
		}
		translation, err := advisor.TranslateVehicleContent(ctx, vehicle)
		if err != nil {
			logger.Warn("Translation failed",
				zap.String("vehicle_id", vehicle.ID.String()),
				zap.Error(err))
			failed++
			continue
		}
		update := models.AnalysisUpdate{
			Description: &translation.Description,
			Features:    models.StringList(translation.Features),
		}
		if err := repo.UpdateVehicleAnalysis(ctx, vehicle.ID, update); err != nil {
			logger.Warn("Translation persist failed",
				zap.String("vehicle_id", vehicle.ID.String()),
				zap.Error(err))
			failed++
		}
	}
	logger.Info("Re-translation finished",
		zap.Int("count", len(vehicles)),
		zap.Int("failed", failed))
	return nil
}

func init() {
	analyzeCmd.Flags().BoolVar(&retranslate, "retranslate", false,
		"re-run translation for every record, even already translated ones")
	rootCmd.AddCommand(analyzeCmd)
}
