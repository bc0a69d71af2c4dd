package marketvalue

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
)

// Matching-window defaults applied when the config file leaves them unset.
const (
	defaultYearRange      = 3
	defaultMileageRangeKm = 50000
	defaultMinComparables = 3
)

// LoadConfig reads and validates the market value config file, filling in
// matching-criteria defaults.
func LoadConfig(path string) (models.MarketValueConfig, error) {
	var cfg models.MarketValueConfig

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, apperrors.NewConfigError(fmt.Sprintf("unable to read market value config %s", path)).WithCause(err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, apperrors.NewConfigError(fmt.Sprintf("unable to parse market value config %s", path)).WithCause(err)
	}
	if err := validateConfig(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func validateConfig(cfg *models.MarketValueConfig) error {
	for _, group := range cfg.VehicleEquivalency.Groups {
		if len(group.Vehicles) == 0 {
			return apperrors.NewConfigError(fmt.Sprintf("equivalency group %q has no vehicles", group.Name))
		}
		for _, v := range group.Vehicles {
			if v.Make == "" || v.Model == "" {
				return apperrors.NewConfigError(fmt.Sprintf("equivalency group %q has a member without make/model", group.Name))
			}
			if v.Weight < 0 || v.Weight > 1 {
				return apperrors.NewConfigError(fmt.Sprintf("equivalency group %q: weight %v out of [0,1]", group.Name, v.Weight))
			}
		}
	}
	for name, p := range map[string]float64{
		"engineSize":   cfg.AttributeWeights.EngineSize.Penalty,
		"horsepower":   cfg.AttributeWeights.Horsepower.Penalty,
		"transmission": cfg.AttributeWeights.Transmission.Penalty,
		"fuelType":     cfg.AttributeWeights.FuelType.Penalty,
		"wheelbase":    cfg.AttributeWeights.Wheelbase.Penalty,
	} {
		if p < 0 || p >= 1 {
			return apperrors.NewConfigError(fmt.Sprintf("attribute %q: penalty %v out of [0,1)", name, p))
		}
	}
	return nil
}

func applyDefaults(cfg *models.MarketValueConfig) {
	if cfg.MatchingCriteria.YearRange == 0 {
		cfg.MatchingCriteria.YearRange = defaultYearRange
	}
	if cfg.MatchingCriteria.MileageRangeKm == 0 {
		cfg.MatchingCriteria.MileageRangeKm = defaultMileageRangeKm
	}
	if cfg.MatchingCriteria.MinComparables == 0 {
		cfg.MatchingCriteria.MinComparables = defaultMinComparables
	}
}
