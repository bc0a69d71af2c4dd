package models

// MarketValueConfig is the external JSON config driving comparable matching
// and weighted pricing.
type MarketValueConfig struct {
	VehicleEquivalency VehicleEquivalency `json:"vehicleEquivalency"`
	AttributeWeights   AttributeWeights   `json:"attributeWeights"`
	MatchingCriteria   MatchingCriteria   `json:"matchingCriteria"`
}

// VehicleEquivalency groups platform-twin vehicles that should be pooled
// together when searching for comparables.
type VehicleEquivalency struct {
	Groups []EquivalencyGroup `json:"groups"`
}

// EquivalencyGroup is a named set of interchangeable make/model pairs.
// A vehicle belongs to at most one group; the first matching group wins.
type EquivalencyGroup struct {
	Name     string              `json:"name"`
	Vehicles []EquivalentVehicle `json:"vehicles"`
}

// EquivalentVehicle is one make/model member of a group with its pooling
// weight, 1.0 meaning a full peer.
type EquivalentVehicle struct {
	Make   string  `json:"make"`
	Model  string  `json:"model"`
	Weight float64 `json:"weight"`
}

// AttributeWeights holds tolerances and penalty fractions for attribute
// mismatch weighting.
type AttributeWeights struct {
	EngineSize   SteppedPenalty `json:"engineSize"`
	Horsepower   SteppedPenalty `json:"horsepower"`
	Transmission FlatPenalty    `json:"transmission"`
	FuelType     FlatPenalty    `json:"fuelType"`
	Wheelbase    FlatPenalty    `json:"wheelbase"`
}

// SteppedPenalty applies (1-Penalty)^floor((diff-Tolerance)/Tolerance) once
// the absolute difference exceeds Tolerance.
type SteppedPenalty struct {
	Tolerance float64 `json:"tolerance"`
	Penalty   float64 `json:"penalty"`
}

// FlatPenalty applies a single (1-Penalty) multiplier on any mismatch when
// both sides report a known value.
type FlatPenalty struct {
	Penalty float64 `json:"penalty"`
}

// MatchingCriteria bounds the comparable search.
type MatchingCriteria struct {
	YearRange      int `json:"yearRange"`
	MileageRangeKm int `json:"mileageRange_km"`
	MinComparables int `json:"minComparables"`
}
