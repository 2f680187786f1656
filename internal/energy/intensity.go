package energy

import (
	"math"
	"time"
)

// Calories-per-minute boundaries. A rate must exceed the threshold to reach the level.
const (
	VigorousRateThreshold = 10.0
	ModerateRateThreshold = 5.0
)

// ClassifyIntensity infers an intensity level from the calories burned over a window.
// Without calorie data the result is DefaultIntensity.
func ClassifyIntensity(totalCalories, durationMinutes float64) Intensity {
	if totalCalories == 0 || math.IsNaN(totalCalories) {
		return DefaultIntensity
	}
	rate := totalCalories / durationMinutes
	switch {
	case rate > VigorousRateThreshold:
		return IntensityVigorous
	case rate > ModerateRateThreshold:
		return IntensityModerate
	default:
		return IntensityLight
	}
}

// ClassifySession classifies a session bounded by start and end.
func ClassifySession(start, end time.Time, totalCalories float64) Intensity {
	return ClassifyIntensity(totalCalories, SpanMinutes(start, end))
}

// SpanMinutes converts a session span to fractional minutes at millisecond resolution.
func SpanMinutes(start, end time.Time) float64 {
	return float64(end.UnixMilli()-start.UnixMilli()) / 60000
}
