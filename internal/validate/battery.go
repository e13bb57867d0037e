package validate

// DefaultBattery returns the standard validators in refinement discovery
// order. When an assessment fails several dimensions at once, the refiner
// walks this order.
func DefaultBattery(minWords, maxWords int) []Validator {
	return []Validator{
		NewDepth(),
		NewLength(minWords, maxWords),
		NewCoherence(),
		NewBalance(),
		NewVoice(),
		NewCitations(),
	}
}

// DefaultWeights is the composite weighting over the default battery.
// Citations carries no weight but still gates refinement via its floor.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		DimensionDepth:     0.30,
		DimensionCoherence: 0.25,
		DimensionLength:    0.20,
		DimensionBalance:   0.15,
		DimensionVoice:     0.10,
		DimensionCitations: 0.00,
	}
}

// DefaultFloors relaxes the citation floor; every other dimension uses
// the engine default.
func DefaultFloors() map[string]float64 {
	return map[string]float64{
		DimensionCitations: 85,
	}
}
