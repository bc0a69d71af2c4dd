// Package marketvalue estimates how a listing's price compares to the
// weighted average of similar previously-ingested listings. Comparables are
// pooled across configured equivalency groups (platform twins), weighted by
// mileage proximity and attribute similarity, and condition-adjusted before
// averaging.
package marketvalue

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
)

// MarketAverage is returned when the target price sits within the noise
// band around the comparable average, or when the average itself is
// unusable.
const MarketAverage = "market_avg"

// noiseBandPct is the |percentage| below which a difference is reported as
// MarketAverage rather than a signed figure.
const noiseBandPct = 2

// ComparableFinder looks up candidate comparables for one make/model. The
// implementation applies the year and mileage windows and excludes
// soft-deleted records and the target itself.
type ComparableFinder interface {
	FindComparables(ctx context.Context, query models.ComparableQuery) ([]models.ComparableRecord, error)
}

// Estimator computes market value scores against a comparable store.
type Estimator struct {
	cfg      models.MarketValueConfig
	finder   ComparableFinder
	logger   *zap.Logger
	thisYear func() int
}

// Option configures an Estimator.
type Option func(*Estimator)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Estimator) { e.logger = logger }
}

// withYear pins the current-year lookup for deterministic age math in tests.
func withYear(thisYear func() int) Option {
	return func(e *Estimator) { e.thisYear = thisYear }
}

func NewEstimator(cfg models.MarketValueConfig, finder ComparableFinder, opts ...Option) *Estimator {
	e := &Estimator{
		cfg:      cfg,
		finder:   finder,
		logger:   zap.L(),
		thisYear: func() int { return time.Now().Year() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calculate returns the target's market value score ("+N%", "-N%", or
// "market_avg") or nil when no estimate is possible: make/model missing
// from the parameters, fewer comparables than the configured minimum, or a
// lookup failure. Lookup failures are logged, never propagated, so a batch
// run continues past them.
func (e *Estimator) Calculate(ctx context.Context, target *models.VehicleRecord) *string {
	mk, md, ok := makeModel(target.SourceParameters)
	if !ok {
		e.logger.Debug("Vehicle has no make/model parameters, skipping market value",
			zap.String("vehicle_id", target.ID.String()))
		return nil
	}

	comparables, err := e.gatherComparables(ctx, target, mk, md)
	if err != nil {
		e.logger.Warn("Comparable lookup failed, skipping market value",
			zap.String("vehicle_id", target.ID.String()),
			zap.Error(err))
		return nil
	}
	if len(comparables) < e.cfg.MatchingCriteria.MinComparables {
		e.logger.Debug("Not enough comparables for market value",
			zap.String("vehicle_id", target.ID.String()),
			zap.Int("found", len(comparables)),
			zap.Int("required", e.cfg.MatchingCriteria.MinComparables))
		return nil
	}

	avg := e.weightedAverage(target, comparables)
	score := formatScore(target.PriceEUR, avg)
	return &score
}

// gatherComparables expands the target's make/model through its equivalency
// group and pools the per-equivalent lookups, tagging each comparable with
// its group weight and attribute weight.
func (e *Estimator) gatherComparables(ctx context.Context, target *models.VehicleRecord, mk, md string) ([]models.ComparableRecord, error) {
	var pooled []models.ComparableRecord
	for _, equiv := range e.equivalents(mk, md) {
		found, err := e.finder.FindComparables(ctx, models.ComparableQuery{
			Source:    target.Source,
			Make:      equiv.Make,
			Model:     equiv.Model,
			Year:      target.Year,
			Mileage:   target.Mileage,
			ExcludeID: target.ID,
		})
		if err != nil {
			return nil, err
		}
		for _, comp := range found {
			comp.EquivalencyWeight = equiv.Weight
			comp.AttributeWeight = e.attributeWeight(target.SourceParameters, comp.SourceParameters)
			pooled = append(pooled, comp)
		}
	}
	return pooled, nil
}

// equivalents resolves the group containing (make, model). First matching
// group wins; ungrouped vehicles compare only against themselves at full
// weight.
func (e *Estimator) equivalents(mk, md string) []models.EquivalentVehicle {
	for _, group := range e.cfg.VehicleEquivalency.Groups {
		for _, v := range group.Vehicles {
			if strings.EqualFold(v.Make, mk) && strings.EqualFold(v.Model, md) {
				return group.Vehicles
			}
		}
	}
	return []models.EquivalentVehicle{{Make: mk, Model: md, Weight: 1.0}}
}

// attributeWeight multiplies the per-attribute penalty factors. An
// attribute unknown on either side contributes no penalty.
func (e *Estimator) attributeWeight(target, comp models.Params) float64 {
	weight := 1.0
	weight *= steppedFactor(target, comp, engineSizeKeys, e.cfg.AttributeWeights.EngineSize)
	weight *= steppedFactor(target, comp, horsepowerKeys, e.cfg.AttributeWeights.Horsepower)
	weight *= flatFactor(target, comp, gearboxKeys, e.cfg.AttributeWeights.Transmission)
	weight *= flatFactor(target, comp, fuelKeys, e.cfg.AttributeWeights.FuelType)
	weight *= flatFactor(target, comp, wheelbaseKeys, e.cfg.AttributeWeights.Wheelbase)
	return weight
}

// steppedFactor penalizes a numeric difference beyond the tolerance,
// compounding once per full tolerance step past the first.
func steppedFactor(target, comp models.Params, keys []string, p models.SteppedPenalty) float64 {
	if p.Tolerance <= 0 || p.Penalty <= 0 {
		return 1.0
	}
	a, okA := paramNumber(target, keys)
	b, okB := paramNumber(comp, keys)
	if !okA || !okB {
		return 1.0
	}
	diff := math.Abs(a - b)
	if diff <= p.Tolerance {
		return 1.0
	}
	steps := math.Floor((diff - p.Tolerance) / p.Tolerance)
	return math.Pow(1-p.Penalty, steps)
}

// flatFactor penalizes a categorical mismatch when both sides report a
// known value.
func flatFactor(target, comp models.Params, keys []string, p models.FlatPenalty) float64 {
	if p.Penalty <= 0 {
		return 1.0
	}
	a, okA := paramValue(target, keys)
	b, okB := paramValue(comp, keys)
	if !okA || !okB {
		return 1.0
	}
	if strings.EqualFold(a, b) {
		return 1.0
	}
	return 1 - p.Penalty
}

// weightedAverage combines the comparables' condition-adjusted prices with
// mileage-proximity, equivalency, and attribute weights. A degenerate zero
// total weight falls back to the unweighted mean of raw prices.
func (e *Estimator) weightedAverage(target *models.VehicleRecord, comparables []models.ComparableRecord) float64 {
	var weightedSum, totalWeight, rawSum float64
	for _, comp := range comparables {
		mileageWeight := 1 / (1 + math.Abs(float64(target.Mileage-comp.Mileage))/10000)
		weight := mileageWeight * comp.EquivalencyWeight * comp.AttributeWeight
		weightedSum += e.adjustedPrice(comp) * weight
		totalWeight += weight
		rawSum += comp.PriceEUR
	}
	if totalWeight == 0 {
		return rawSum / float64(len(comparables))
	}
	return weightedSum / totalWeight
}

// adjustedPrice discounts worn comparables and rewards low-mileage old
// ones before they enter the average: -10% over 200k km, a further -10%
// over 250k km, +10% under 120k km on a vehicle older than ten years.
func (e *Estimator) adjustedPrice(comp models.ComparableRecord) float64 {
	price := comp.PriceEUR
	if comp.Mileage > 200000 {
		price *= 0.90
	}
	if comp.Mileage > 250000 {
		price *= 0.90
	}
	if comp.Mileage < 120000 && comp.Year > 0 && e.thisYear()-comp.Year > 10 {
		price *= 1.10
	}
	return price
}

// formatScore renders the percentage difference between the target price
// and the comparable average. Differences inside the noise band, and a
// zero average, read as the market average.
func formatScore(targetPrice, avg float64) string {
	if avg == 0 {
		return MarketAverage
	}
	pct := int(math.Round((targetPrice - avg) / avg * 100))
	if pct > -noiseBandPct && pct < noiseBandPct {
		return MarketAverage
	}
	if pct > 0 {
		return fmt.Sprintf("+%d%%", pct)
	}
	return fmt.Sprintf("%d%%", pct)
}
