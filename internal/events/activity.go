// Package events defines the activity event payloads published through the outbox.
package events

import "time"

// ActivityLogged is emitted when an activity enters a user's log, either typed in
// manually or imported from a fitness data provider.
type ActivityLogged struct {
	ActivityID  string    `json:"activity_id"`
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	Kind        string    `json:"kind"`
	Intensity   string    `json:"intensity"`
	DurationMin float64   `json:"duration_min"`
	Calories    int       `json:"calories"`
	Source      string    `json:"source"`
	StartedAt   time.Time `json:"started_at"`
	LoggedAt    time.Time `json:"logged_at"`
}

// ActivityRemoved is emitted when a user deletes an activity from the log.
type ActivityRemoved struct {
	ActivityID  string    `json:"activity_id"`
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	DurationMin float64   `json:"duration_min"`
	Calories    int       `json:"calories"`
	Source      string    `json:"source"`
	StartedAt   time.Time `json:"started_at"`
	RemovedAt   time.Time `json:"removed_at"`
}

// ActivitySyncChanged tracks pushes of manual activities to the fitness provider.
type ActivitySyncChanged struct {
	ActivityID string    `json:"activity_id"`
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id"`
	State      string    `json:"state"`
	OccurredAt time.Time `json:"occurred_at"`
	Reason     string    `json:"reason,omitempty"`
}
