// Package energy estimates activity calorie expenditure from MET values and infers
// intensity levels for externally recorded sessions. Everything here is pure.
package energy

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates the activity kinds supported by the model.
type Kind string

const (
	KindWalking       Kind = "walking"
	KindRunning       Kind = "running"
	KindCycling       Kind = "cycling"
	KindSwimming      Kind = "swimming"
	KindYoga          Kind = "yoga"
	KindWeightlifting Kind = "weightlifting"
)

// Intensity is the coarse effort level attached to an activity.
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityVigorous Intensity = "vigorous"
)

const (
	// DefaultKind is returned when an external type identifier cannot be mapped.
	DefaultKind = KindWalking
	// DefaultIntensity is used when no calorie data is available to classify a session.
	DefaultIntensity = IntensityModerate
)

var (
	// ErrUnknownKind is returned by ParseKind for values outside the enumerated set.
	ErrUnknownKind = errors.New("unknown activity kind")
	// ErrUnknownIntensity is returned by ParseIntensity for values outside the enumerated set.
	ErrUnknownIntensity = errors.New("unknown intensity")
)

var kinds = [...]Kind{KindWalking, KindRunning, KindCycling, KindSwimming, KindYoga, KindWeightlifting}

var intensities = [...]Intensity{IntensityLight, IntensityModerate, IntensityVigorous}

// Kinds returns the supported activity kinds in display order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds[:])
	return out
}

// Intensities returns the intensity levels ordered from lightest to hardest.
func Intensities() []Intensity {
	out := make([]Intensity, len(intensities))
	copy(out, intensities[:])
	return out
}

// Valid reports whether k is one of the enumerated kinds.
func (k Kind) Valid() bool {
	_, ok := kindIndex(k)
	return ok
}

// Valid reports whether i is one of the enumerated intensity levels.
func (i Intensity) Valid() bool {
	_, ok := intensityIndex(i)
	return ok
}

// ParseKind normalises raw input into a Kind.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
	return k, nil
}

// ParseIntensity normalises raw input into an Intensity.
func ParseIntensity(raw string) (Intensity, error) {
	i := Intensity(strings.ToLower(strings.TrimSpace(raw)))
	if !i.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownIntensity, raw)
	}
	return i, nil
}

func kindIndex(k Kind) (int, bool) {
	for idx, candidate := range kinds {
		if candidate == k {
			return idx, true
		}
	}
	return 0, false
}

func intensityIndex(i Intensity) (int, bool) {
	for idx, candidate := range intensities {
		if candidate == i {
			return idx, true
		}
	}
	return 0, false
}
