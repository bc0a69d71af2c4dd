package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/logging"
	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/config"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/database"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/marketvalue"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/repository"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "carfinder",
	Short: "Vehicle listing aggregator and analyzer",
	Long: `carfinder scrapes vehicle marketplaces, normalizes the listings into
Postgres and enriches them with AI analysis and a comparable-based market
value estimate.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.LoadConfig()
		logger = logging.SetupLogger(cfg.LogFile)
		zap.ReplaceGlobals(logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	viper.AutomaticEnv()
	viper.SetDefault(logging.LogLevelKey, "debug")
}

// openDatabase connects and returns the DB plus a repository bound to the
// configured comparable-matching windows.
func openDatabase() (*database.DB, repository.VehicleRepository, error) {
	db, err := database.NewDB(cfg.DatabaseURL, cfg.MigrationsPath, logger)
	if err != nil {
		return nil, nil, err
	}

	criteria, err := loadMatchingCriteria()
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	repo := repository.NewVehicleRepository(db.DB, logger, criteria)
	return db, repo, nil
}

func loadMatchingCriteria() (models.MatchingCriteria, error) {
	mvCfg, err := marketvalue.LoadConfig(cfg.MarketValuePath)
	if err != nil {
		return models.MatchingCriteria{}, err
	}
	return mvCfg.MatchingCriteria, nil
}
