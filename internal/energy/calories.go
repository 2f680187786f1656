package energy

import "math"

const (
	// DefaultBodyWeightKg is assumed when the caller does not know the user's weight.
	DefaultBodyWeightKg = 70.0
	// DefaultMET applies to any (kind, intensity) pair missing from the table.
	DefaultMET = 3.0
)

// metTable is indexed by the position of the kind in kinds and the intensity in intensities.
var metTable = [len(kinds)][len(intensities)]float64{
	{2.5, 3.5, 4.5}, // walking
	{6, 8, 10},      // running
	{4, 6, 8},       // cycling
	{5, 7, 9},       // swimming
	{2, 3, 4},       // yoga
	{3, 4, 6},       // weightlifting
}

// MET returns the metabolic equivalent for the pair and whether it came from the table.
func MET(kind Kind, intensity Intensity) (float64, bool) {
	k, ok := kindIndex(kind)
	if !ok {
		return DefaultMET, false
	}
	i, ok := intensityIndex(intensity)
	if !ok {
		return DefaultMET, false
	}
	return metTable[k][i], true
}

// EstimateCalories estimates the kilocalories burned by a person of DefaultBodyWeightKg.
func EstimateCalories(kind Kind, intensity Intensity, durationMinutes float64) int {
	return EstimateCaloriesForWeight(kind, intensity, durationMinutes, DefaultBodyWeightKg)
}

// EstimateCaloriesForWeight applies round(MET * kg * 3.5 * minutes / 200).
//
// Unrecognised kinds or intensities fall back to DefaultMET instead of failing, and a
// non-positive weight is treated as unknown. Non-positive durations burn nothing.
func EstimateCaloriesForWeight(kind Kind, intensity Intensity, durationMinutes, bodyWeightKg float64) int {
	if math.IsNaN(durationMinutes) || durationMinutes <= 0 {
		return 0
	}
	if math.IsNaN(bodyWeightKg) || bodyWeightKg <= 0 {
		bodyWeightKg = DefaultBodyWeightKg
	}
	met, _ := MET(kind, intensity)
	kcal := math.Round((met * bodyWeightKg * 3.5 * durationMinutes) / 200)
	if kcal > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(kcal)
}
