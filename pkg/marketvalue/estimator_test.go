package marketvalue

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
)

// fakeFinder returns canned comparables per make/model and records the
// queries it saw.
type fakeFinder struct {
	byModel map[string][]models.ComparableRecord
	queries []models.ComparableQuery
	err     error
}

func (f *fakeFinder) FindComparables(_ context.Context, q models.ComparableQuery) ([]models.ComparableRecord, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.byModel[q.Make+"/"+q.Model], nil
}

func testConfig() models.MarketValueConfig {
	return models.MarketValueConfig{
		VehicleEquivalency: models.VehicleEquivalency{
			Groups: []models.EquivalencyGroup{
				{
					Name: "c-segment-twins",
					Vehicles: []models.EquivalentVehicle{
						{Make: "Toyota", Model: "Corolla", Weight: 1.0},
						{Make: "Suzuki", Model: "Swace", Weight: 0.9},
					},
				},
			},
		},
		AttributeWeights: models.AttributeWeights{
			EngineSize:   models.SteppedPenalty{Tolerance: 300, Penalty: 0.1},
			Horsepower:   models.SteppedPenalty{Tolerance: 30, Penalty: 0.1},
			Transmission: models.FlatPenalty{Penalty: 0.15},
			FuelType:     models.FlatPenalty{Penalty: 0.3},
			Wheelbase:    models.FlatPenalty{Penalty: 0.1},
		},
		MatchingCriteria: models.MatchingCriteria{YearRange: 3, MileageRangeKm: 50000, MinComparables: 3},
	}
}

func targetRecord(priceEUR float64, mileage int) *models.VehicleRecord {
	return &models.VehicleRecord{
		ID:      uuid.New(),
		Source:  models.SourceOtomoto,
		Year:    2018,
		Mileage: mileage,
		SourceParameters: models.Params{
			"Marka pojazdu": "Toyota",
			"Model pojazdu": "Corolla",
		},
		PriceEUR: priceEUR,
	}
}

// comparablesAt builds n identical comparables: same mileage as given,
// fixed price, no parameters (so no attribute penalties apply).
func comparablesAt(n int, priceEUR float64, mileage int) []models.ComparableRecord {
	out := make([]models.ComparableRecord, n)
	for i := range out {
		out[i] = models.ComparableRecord{ID: uuid.New(), PriceEUR: priceEUR, Mileage: mileage, Year: 2018}
	}
	return out
}

func newTestEstimator(cfg models.MarketValueConfig, finder ComparableFinder) *Estimator {
	return NewEstimator(cfg, finder, WithLogger(zap.NewNop()), withYear(func() int { return 2025 }))
}

func TestCalculateUnderpriced(t *testing.T) {
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{
		"Toyota/Corolla": comparablesAt(3, 12000, 150000),
	}}
	e := newTestEstimator(testConfig(), finder)

	score := e.Calculate(context.Background(), targetRecord(10000, 150000))
	require.NotNil(t, score)
	assert.Equal(t, "-17%", *score)
}

func TestCalculateJustAboveNoiseBand(t *testing.T) {
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{
		"Toyota/Corolla": comparablesAt(3, 10000, 150000),
	}}
	e := newTestEstimator(testConfig(), finder)

	// +1.5% rounds to +2, just outside the noise band.
	score := e.Calculate(context.Background(), targetRecord(10150, 150000))
	require.NotNil(t, score)
	assert.Equal(t, "+2%", *score)
}

func TestCalculateWithinNoiseBand(t *testing.T) {
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{
		"Toyota/Corolla": comparablesAt(3, 10000, 150000),
	}}
	e := newTestEstimator(testConfig(), finder)

	score := e.Calculate(context.Background(), targetRecord(10100, 150000))
	require.NotNil(t, score)
	assert.Equal(t, MarketAverage, *score)
}

func TestCalculateTooFewComparables(t *testing.T) {
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{
		"Toyota/Corolla": comparablesAt(2, 10000, 150000),
	}}
	e := newTestEstimator(testConfig(), finder)

	assert.Nil(t, e.Calculate(context.Background(), targetRecord(10000, 150000)))
}

func TestCalculateNoComparables(t *testing.T) {
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{}}
	e := newTestEstimator(testConfig(), finder)

	assert.Nil(t, e.Calculate(context.Background(), targetRecord(10000, 150000)))
}

func TestCalculateAllPricesZero(t *testing.T) {
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{
		"Toyota/Corolla": comparablesAt(3, 0, 150000),
	}}
	e := newTestEstimator(testConfig(), finder)

	score := e.Calculate(context.Background(), targetRecord(10000, 150000))
	require.NotNil(t, score)
	assert.Equal(t, MarketAverage, *score)
}

func TestCalculateMissingMakeModel(t *testing.T) {
	finder := &fakeFinder{}
	e := newTestEstimator(testConfig(), finder)

	target := targetRecord(10000, 150000)
	target.SourceParameters = models.Params{"Rodzaj paliwa": "Diesel"}

	assert.Nil(t, e.Calculate(context.Background(), target))
	assert.Empty(t, finder.queries, "no lookup without make/model")
}

func TestCalculateLookupFailureReturnsNil(t *testing.T) {
	finder := &fakeFinder{err: errors.New("connection refused")}
	e := newTestEstimator(testConfig(), finder)

	assert.Nil(t, e.Calculate(context.Background(), targetRecord(10000, 150000)))
}

func TestCalculateQueriesWholeEquivalencyGroup(t *testing.T) {
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{
		"Toyota/Corolla": comparablesAt(2, 12000, 150000),
		"Suzuki/Swace":   comparablesAt(1, 12000, 150000),
	}}
	e := newTestEstimator(testConfig(), finder)

	score := e.Calculate(context.Background(), targetRecord(12000, 150000))
	require.NotNil(t, score)
	assert.Equal(t, MarketAverage, *score)

	require.Len(t, finder.queries, 2)
	assert.Equal(t, "Toyota", finder.queries[0].Make)
	assert.Equal(t, "Suzuki", finder.queries[1].Make)
}

func TestHighMileageDiscountCompounds(t *testing.T) {
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{
		"Toyota/Corolla": comparablesAt(3, 10000, 260000),
	}}
	e := newTestEstimator(testConfig(), finder)

	// 10000 * 0.9 * 0.9 = 8100 adjusted average; target at 8100 matches it.
	score := e.Calculate(context.Background(), targetRecord(8100, 260000))
	require.NotNil(t, score)
	assert.Equal(t, MarketAverage, *score)
}

func TestLowMileageOldVehicleBonus(t *testing.T) {
	cfg := testConfig()
	old := comparablesAt(3, 10000, 100000)
	for i := range old {
		old[i].Year = 2010 // 15 years old at the pinned 2025 clock
	}
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{"Toyota/Corolla": old}}
	e := newTestEstimator(cfg, finder)

	// Adjusted average 11000; target at 11000 sits on it.
	score := e.Calculate(context.Background(), targetRecord(11000, 100000))
	require.NotNil(t, score)
	assert.Equal(t, MarketAverage, *score)
}

func TestLowMileageRecentVehicleGetsNoBonus(t *testing.T) {
	recent := comparablesAt(3, 10000, 100000)
	for i := range recent {
		recent[i].Year = 2020 // 5 years old, no bonus
	}
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{"Toyota/Corolla": recent}}
	e := newTestEstimator(testConfig(), finder)

	score := e.Calculate(context.Background(), targetRecord(11000, 100000))
	require.NotNil(t, score)
	assert.Equal(t, "+10%", *score)
}

func TestMileageProximityWeighting(t *testing.T) {
	// A close comparable should pull the average harder than a distant one.
	comps := []models.ComparableRecord{
		{ID: uuid.New(), PriceEUR: 10000, Mileage: 150000, Year: 2018},
		{ID: uuid.New(), PriceEUR: 20000, Mileage: 190000, Year: 2018},
		{ID: uuid.New(), PriceEUR: 10000, Mileage: 150000, Year: 2018},
	}
	finder := &fakeFinder{byModel: map[string][]models.ComparableRecord{"Toyota/Corolla": comps}}
	e := newTestEstimator(testConfig(), finder)

	// weights: 1, 1/5, 1 → avg = (10000 + 4000 + 10000) / 2.2 ≈ 10909
	score := e.Calculate(context.Background(), targetRecord(10909, 150000))
	require.NotNil(t, score)
	assert.Equal(t, MarketAverage, *score)
}

func TestSteppedEnginePenalty(t *testing.T) {
	target := targetRecord(10000, 150000)
	target.SourceParameters["Pojemność skokowa"] = "1 998 cm3"

	tests := []struct {
		name     string
		compSize string
		want     float64
	}{
		{"within tolerance", "2 200 cm3", 1.0},
		{"past tolerance but under one full step", "2 400 cm3", 1.0},
		{"one full step over", "2 700 cm3", 0.9},
		{"three full steps over", "3 300 cm3", 0.9 * 0.9 * 0.9},
		{"unparseable keeps full weight", "brak danych", 1.0},
	}
	cfg := testConfig()
	e := newTestEstimator(cfg, &fakeFinder{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := models.Params{"Pojemność skokowa": tt.compSize}
			assert.InDelta(t, tt.want, e.attributeWeight(target.SourceParameters, comp), 1e-9)
		})
	}
}

func TestFlatPenalties(t *testing.T) {
	e := newTestEstimator(testConfig(), &fakeFinder{})
	target := models.Params{
		"Skrzynia biegów": "Manualna",
		"Rodzaj paliwa":   "Diesel",
	}

	matching := models.Params{"Skrzynia biegów": "Manualna", "Rodzaj paliwa": "Diesel"}
	assert.InDelta(t, 1.0, e.attributeWeight(target, matching), 1e-9)

	mismatched := models.Params{"Skrzynia biegów": "Automatyczna", "Rodzaj paliwa": "Benzyna"}
	assert.InDelta(t, 0.85*0.70, e.attributeWeight(target, mismatched), 1e-9)

	// Unknown on one side is never penalized.
	unknown := models.Params{"Skrzynia biegów": "Automatyczna"}
	assert.InDelta(t, 0.85, e.attributeWeight(target, unknown), 1e-9)
}
