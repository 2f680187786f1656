package domain

import (
	"time"

	"example.com/fitpulse/internal/energy"
)

// Source records where an activity came from.
type Source string

const (
	SourceManual    Source = "manual"
	SourceGoogleFit Source = "google_fit"
)

// SyncState tracks whether a logged activity has been mirrored to the fitness provider.
type SyncState string

const (
	SyncStateLocal    SyncState = "local"
	SyncStateSynced   SyncState = "synced"
	SyncStateFailed   SyncState = "sync_failed"
	SyncStateImported SyncState = "imported"
)

// Activity is a single entry in a user's activity log. Calories are fixed when the
// activity is created and never recomputed.
type Activity struct {
	ID          string
	TenantID    string
	UserID      string
	Kind        energy.Kind
	Intensity   energy.Intensity
	DurationMin float64
	Calories    int
	Source      Source
	ExternalID  string
	StartedAt   time.Time
	SyncState   SyncState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExternalSession is a workout session reported by the fitness provider.
type ExternalSession struct {
	ID             string
	TypeIdentifier string
	Name           string
	StartTime      time.Time
	EndTime        time.Time
	Calories       float64
}

// KindTotals aggregates activities of one kind.
type KindTotals struct {
	Count    int
	Minutes  float64
	Calories int
}

// ActivitySummary describes aggregate totals for a user's log.
type ActivitySummary struct {
	Count            int
	TotalMinutes     float64
	TotalCalories    int
	ManualCalories   int
	ImportedCalories int
	ByKind           map[energy.Kind]KindTotals
	LastActivityAt   *time.Time
}

// Summarize folds activities into an ActivitySummary.
func Summarize(activities []Activity) ActivitySummary {
	summary := ActivitySummary{ByKind: make(map[energy.Kind]KindTotals)}
	for _, a := range activities {
		summary.Add(a)
	}
	return summary
}

// Add folds a single activity into the summary.
func (s *ActivitySummary) Add(a Activity) {
	s.AddTotals(a.Kind, a.Source, KindTotals{Count: 1, Minutes: a.DurationMin, Calories: a.Calories}, a.StartedAt)
}

// AddTotals folds pre-aggregated totals for one kind and source into the summary.
func (s *ActivitySummary) AddTotals(kind energy.Kind, source Source, totals KindTotals, lastStartedAt time.Time) {
	if totals.Count == 0 {
		return
	}
	if s.ByKind == nil {
		s.ByKind = make(map[energy.Kind]KindTotals)
	}
	s.Count += totals.Count
	s.TotalMinutes += totals.Minutes
	s.TotalCalories += totals.Calories
	if source == SourceManual {
		s.ManualCalories += totals.Calories
	} else {
		s.ImportedCalories += totals.Calories
	}

	current := s.ByKind[kind]
	current.Count += totals.Count
	current.Minutes += totals.Minutes
	current.Calories += totals.Calories
	s.ByKind[kind] = current

	if s.LastActivityAt == nil || lastStartedAt.After(*s.LastActivityAt) {
		ts := lastStartedAt
		s.LastActivityAt = &ts
	}
}
