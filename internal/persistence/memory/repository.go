// Package memory keeps activity logs in process memory. It backs local development and
// deployments without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/fitpulse/internal/domain"
	"example.com/fitpulse/internal/persistence"
)

// Repository stores activities per tenant in insertion order.
type Repository struct {
	mu      sync.RWMutex
	tenants map[string][]domain.Activity
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{tenants: make(map[string][]domain.Activity)}
}

// FindByExternalID implements domain.ActivityRepository.
func (r *Repository) FindByExternalID(_ context.Context, tenantID, userID string, source domain.Source, externalID string) (*domain.Activity, error) {
	if externalID == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.tenants[tenantID] {
		if a.UserID == userID && a.Source == source && a.ExternalID == externalID {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(_ context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[activity.TenantID] = append(r.tenants[activity.TenantID], activity)
	return nil
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(_ context.Context, tenantID, activityID string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.tenants[tenantID] {
		if a.ID == activityID {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

// Delete implements domain.ActivityRepository.
func (r *Repository) Delete(_ context.Context, tenantID, activityID string) (*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.tenants[tenantID]
	for idx, a := range list {
		if a.ID != activityID {
			continue
		}
		removed := a
		r.tenants[tenantID] = append(list[:idx:idx], list[idx+1:]...)
		return &removed, nil
	}
	return nil, nil
}

// ListByUser implements domain.ActivityRepository, newest first.
func (r *Repository) ListByUser(_ context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	r.mu.RLock()
	matches := make([]domain.Activity, 0)
	for _, a := range r.tenants[tenantID] {
		if a.UserID == userID && persistence.Before(cursor, a.StartedAt, a.ID) {
			matches = append(matches, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].StartedAt.Equal(matches[j].StartedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].StartedAt.After(matches[j].StartedAt)
	})

	if limit <= 0 || len(matches) <= limit {
		return matches, nil, nil
	}
	page := matches[:limit]
	last := page[len(page)-1]
	return page, &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}, nil
}

// UpdateSyncState implements domain.ActivityRepository.
func (r *Repository) UpdateSyncState(_ context.Context, tenantID, activityID string, state domain.SyncState, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.tenants[tenantID]
	for idx := range list {
		if list[idx].ID == activityID {
			list[idx].SyncState = state
			list[idx].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return domain.ErrActivityNotFound
}

// SummaryByUser implements domain.ActivityRepository.
func (r *Repository) SummaryByUser(_ context.Context, tenantID, userID string, since time.Time) (domain.ActivitySummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := domain.Summarize(nil)
	for _, a := range r.tenants[tenantID] {
		if a.UserID != userID {
			continue
		}
		if !since.IsZero() && a.StartedAt.Before(since) {
			continue
		}
		summary.Add(a)
	}
	return summary, nil
}
