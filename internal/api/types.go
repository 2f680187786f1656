package api

import (
	"time"

	"example.com/fitpulse/internal/domain"
	"example.com/fitpulse/internal/energy"
)

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	UserID       string    `json:"user_id"`
	Kind         string    `json:"kind"`
	Intensity    string    `json:"intensity"`
	DurationMin  float64   `json:"duration_min"`
	BodyWeightKg float64   `json:"body_weight_kg,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID  string           `json:"activity_id"`
	TenantID    string           `json:"tenant_id"`
	UserID      string           `json:"user_id"`
	Kind        energy.Kind      `json:"kind"`
	Intensity   energy.Intensity `json:"intensity"`
	DurationMin float64          `json:"duration_min"`
	Calories    int              `json:"calories"`
	Source      string           `json:"source"`
	ExternalID  string           `json:"external_id,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	SyncState   string           `json:"sync_state"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ImportRequest is the optional body of POST /v1/activities/import.
type ImportRequest struct {
	UserID      string `json:"user_id"`
	WindowHours int    `json:"window_hours"`
}

// ImportResponse reports new, previously imported and skipped sessions.
type ImportResponse struct {
	Imported int            `json:"imported"`
	Replayed int            `json:"replayed"`
	Skipped  int            `json:"skipped"`
	Items    []ActivityView `json:"items"`
}

// KindTotalsView is the per-kind breakdown of a summary.
type KindTotalsView struct {
	Count    int     `json:"count"`
	Minutes  float64 `json:"minutes"`
	Calories int     `json:"calories"`
}

// SummaryResponse describes totals over a window.
type SummaryResponse struct {
	WindowHours      int                            `json:"window_hours"`
	Count            int                            `json:"count"`
	TotalMinutes     float64                        `json:"total_minutes"`
	TotalCalories    int                            `json:"total_calories"`
	ManualCalories   int                            `json:"manual_calories"`
	ImportedCalories int                            `json:"imported_calories"`
	ByKind           map[energy.Kind]KindTotalsView `json:"by_kind"`
	LastActivityAt   *time.Time                     `json:"last_activity_at,omitempty"`
}

// EstimateRequest asks for the calories of a hypothetical activity.
type EstimateRequest struct {
	Kind         string   `json:"kind"`
	Intensity    string   `json:"intensity"`
	DurationMin  float64  `json:"duration_min"`
	BodyWeightKg *float64 `json:"body_weight_kg,omitempty"`
}

// EstimateResponse echoes the resolved inputs with the estimate.
type EstimateResponse struct {
	Kind         energy.Kind      `json:"kind"`
	Intensity    energy.Intensity `json:"intensity"`
	DurationMin  float64          `json:"duration_min"`
	BodyWeightKg float64          `json:"body_weight_kg"`
	MET          float64          `json:"met"`
	Calories     int              `json:"calories"`
}

// ClassifyRequest carries a session's calorie total and duration.
type ClassifyRequest struct {
	Calories    *float64 `json:"calories"`
	DurationMin float64  `json:"duration_min"`
}

// ClassifyResponse is the inferred intensity. The rate is omitted when no calories were given.
type ClassifyResponse struct {
	Intensity         energy.Intensity `json:"intensity"`
	CaloriesPerMinute *float64         `json:"calories_per_minute,omitempty"`
}

// ExternalTypeResponse maps a provider identifier to a kind.
type ExternalTypeResponse struct {
	Identifier string      `json:"identifier"`
	Kind       energy.Kind `json:"kind"`
	Recognized bool        `json:"recognized"`
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:  a.ID,
		TenantID:    a.TenantID,
		UserID:      a.UserID,
		Kind:        a.Kind,
		Intensity:   a.Intensity,
		DurationMin: a.DurationMin,
		Calories:    a.Calories,
		Source:      string(a.Source),
		ExternalID:  a.ExternalID,
		StartedAt:   a.StartedAt,
		SyncState:   string(a.SyncState),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toSummaryResponse(s domain.ActivitySummary, windowHours int) SummaryResponse {
	byKind := make(map[energy.Kind]KindTotalsView, len(s.ByKind))
	for kind, totals := range s.ByKind {
		byKind[kind] = KindTotalsView{Count: totals.Count, Minutes: totals.Minutes, Calories: totals.Calories}
	}
	return SummaryResponse{
		WindowHours:      windowHours,
		Count:            s.Count,
		TotalMinutes:     s.TotalMinutes,
		TotalCalories:    s.TotalCalories,
		ManualCalories:   s.ManualCalories,
		ImportedCalories: s.ImportedCalories,
		ByKind:           byKind,
		LastActivityAt:   s.LastActivityAt,
	}
}
