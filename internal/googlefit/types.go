package googlefit

import (
	"strconv"

	"example.com/fitpulse/internal/energy"
)

// Numeric activity types used by the Fitness REST API.
const (
	TypeBiking           int64 = 1
	TypeWalking          int64 = 7
	TypeRunning          int64 = 8
	TypeStrengthTraining int64 = 80
	TypeSwimming         int64 = 82
	TypeYoga             int64 = 100
)

var identifiers = map[int64]string{
	TypeWalking:          "com.google.walking",
	TypeRunning:          "com.google.running",
	TypeBiking:           "com.google.cycling",
	TypeSwimming:         "com.google.swimming",
	TypeYoga:             "com.google.yoga",
	TypeStrengthTraining: "com.google.strength_training",
}

// Identifier renders a numeric activity type as the com.google.* identifier the energy
// model understands. Types outside the known set keep their number.
func Identifier(activityType int64) string {
	if id, ok := identifiers[activityType]; ok {
		return id
	}
	return "com.google.activity." + strconv.FormatInt(activityType, 10)
}

// ActivityTypeFor returns the numeric activity type for a kind.
func ActivityTypeFor(kind energy.Kind) (int64, bool) {
	identifier, ok := energy.ExternalType(kind)
	if !ok {
		return 0, false
	}
	for n, id := range identifiers {
		if id == identifier {
			return n, true
		}
	}
	return 0, false
}
