package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitpulse/internal/domain"
	"example.com/fitpulse/internal/energy"
	"example.com/fitpulse/internal/events"
	"example.com/fitpulse/internal/observability"
)

const activityColumns = `activity_id, tenant_id, user_id, kind, intensity, duration_min, calories, source, external_id, started_at, sync_state, created_at, updated_at`

// Repository provides Postgres-backed persistence for activities and outbox events.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// withTenant runs fn in a transaction scoped to the tenant's row-level security policy.
func (r *Repository) withTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindByExternalID looks up an imported activity by its provider session id.
func (r *Repository) FindByExternalID(ctx context.Context, tenantID, userID string, source domain.Source, externalID string) (*domain.Activity, error) {
	if externalID == "" {
		return nil, nil
	}

	var found *domain.Activity
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+activityColumns+`
            FROM activities WHERE tenant_id=$1 AND user_id=$2 AND source=$3 AND external_id=$4`,
			tenantID, userID, string(source), externalID)
		activity, err := scanActivity(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &activity
		return nil
	})
	return found, err
}

// Create persists the activity and records an activity.logged outbox event inside a single transaction.
func (r *Repository) Create(ctx context.Context, activity domain.Activity) error {
	err := r.withTenant(ctx, activity.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO activities (`+activityColumns+`)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			activity.ID,
			activity.TenantID,
			activity.UserID,
			string(activity.Kind),
			string(activity.Intensity),
			activity.DurationMin,
			activity.Calories,
			string(activity.Source),
			nullIfEmpty(activity.ExternalID),
			activity.StartedAt,
			string(activity.SyncState),
			activity.CreatedAt,
			activity.UpdatedAt,
		)
		if err != nil {
			return err
		}

		return insertOutbox(ctx, tx, outboxEvent{
			TenantID:     activity.TenantID,
			AggregateID:  activity.ID,
			EventType:    events.TypeActivityLogged,
			PartitionKey: events.UserPartitionKey(activity.TenantID, activity.UserID),
			DedupeKey:    fmt.Sprintf("%s:%s", activity.ID, events.TypeActivityLogged),
			Payload: events.ActivityLogged{
				ActivityID:  activity.ID,
				TenantID:    activity.TenantID,
				UserID:      activity.UserID,
				Kind:        string(activity.Kind),
				Intensity:   string(activity.Intensity),
				DurationMin: activity.DurationMin,
				Calories:    activity.Calories,
				Source:      string(activity.Source),
				StartedAt:   activity.StartedAt,
				LoggedAt:    activity.CreatedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Get retrieves an activity by ID. A missing or foreign-tenant activity yields nil.
func (r *Repository) Get(ctx context.Context, tenantID, activityID string) (*domain.Activity, error) {
	var found *domain.Activity
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE tenant_id=$1 AND activity_id=$2`, tenantID, activityID)
		activity, err := scanActivity(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &activity
		return nil
	})
	return found, err
}

// Delete removes the activity and records an activity.removed outbox event.
func (r *Repository) Delete(ctx context.Context, tenantID, activityID string) (*domain.Activity, error) {
	var removed *domain.Activity
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `DELETE FROM activities WHERE tenant_id=$1 AND activity_id=$2 RETURNING `+activityColumns, tenantID, activityID)
		activity, err := scanActivity(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		removed = &activity

		return insertOutbox(ctx, tx, outboxEvent{
			TenantID:     activity.TenantID,
			AggregateID:  activity.ID,
			EventType:    events.TypeActivityRemoved,
			PartitionKey: events.UserPartitionKey(activity.TenantID, activity.UserID),
			DedupeKey:    fmt.Sprintf("%s:%s", activity.ID, events.TypeActivityRemoved),
			Payload: events.ActivityRemoved{
				ActivityID:  activity.ID,
				TenantID:    activity.TenantID,
				UserID:      activity.UserID,
				DurationMin: activity.DurationMin,
				Calories:    activity.Calories,
				Source:      string(activity.Source),
				StartedAt:   activity.StartedAt,
				RemovedAt:   r.now().UTC(),
			},
		})
	})
	return removed, err
}

// ListByUser returns activities for a user ordered newest first.
func (r *Repository) ListByUser(ctx context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	if limit <= 0 {
		limit = 50
	}
	// One extra row tells us whether another page exists.
	args := []interface{}{tenantID, userID, limit + 1}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE tenant_id=$1 AND user_id=$2`
	if cursor != nil {
		query += ` AND (started_at, activity_id) < ($4, $5)`
		args = append(args, cursor.StartedAt, cursor.ID)
	}
	query += ` ORDER BY started_at DESC, activity_id DESC LIMIT $3`

	results := make([]domain.Activity, 0, limit)
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			activity, err := scanActivity(rows)
			if err != nil {
				return err
			}
			results = append(results, activity)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	if len(results) <= limit {
		return results, nil, nil
	}
	results = results[:limit]
	last := results[len(results)-1]
	return results, &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}, nil
}

// UpdateSyncState records the outcome of a provider push and emits activity.sync_changed.
func (r *Repository) UpdateSyncState(ctx context.Context, tenantID, activityID string, state domain.SyncState, reason string) error {
	now := r.now().UTC()
	return r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx,
			`UPDATE activities SET sync_state=$3, sync_reason=$4, updated_at=$5
              WHERE tenant_id=$1 AND activity_id=$2
          RETURNING user_id`,
			tenantID, activityID, string(state), nullIfEmpty(reason), now,
		).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		if err != nil {
			return err
		}

		return insertOutbox(ctx, tx, outboxEvent{
			TenantID:     tenantID,
			AggregateID:  activityID,
			EventType:    events.TypeActivitySyncChanged,
			PartitionKey: activityID,
			DedupeKey:    fmt.Sprintf("%s:%s:%s", activityID, events.TypeActivitySyncChanged, state),
			Payload: events.ActivitySyncChanged{
				ActivityID: activityID,
				TenantID:   tenantID,
				UserID:     userID,
				State:      string(state),
				OccurredAt: now,
				Reason:     reason,
			},
		})
	})
}

// SummaryByUser aggregates a user's log in SQL. A zero since covers the whole log.
func (r *Repository) SummaryByUser(ctx context.Context, tenantID, userID string, since time.Time) (domain.ActivitySummary, error) {
	args := []interface{}{tenantID, userID}
	query := `SELECT kind, source, COUNT(*), COALESCE(SUM(duration_min), 0), COALESCE(SUM(calories), 0), MAX(started_at)
        FROM activities WHERE tenant_id=$1 AND user_id=$2`
	if !since.IsZero() {
		query += ` AND started_at >= $3`
		args = append(args, since)
	}
	query += ` GROUP BY kind, source`

	summary := domain.Summarize(nil)
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				kind, source string
				totals       domain.KindTotals
				last         time.Time
			)
			if err := rows.Scan(&kind, &source, &totals.Count, &totals.Minutes, &totals.Calories, &last); err != nil {
				return err
			}
			summary.AddTotals(energy.Kind(kind), domain.Source(source), totals, last)
		}
		return rows.Err()
	})
	return summary, err
}

type outboxEvent struct {
	TenantID     string
	AggregateID  string
	EventType    string
	PartitionKey string
	DedupeKey    string
	Payload      interface{}
}

func insertOutbox(ctx context.Context, tx pgx.Tx, event outboxEvent) error {
	route, err := events.RouteFor(event.EventType)
	if err != nil {
		return err
	}
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key, event_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		event.TenantID,
		"activity",
		event.AggregateID,
		event.EventType,
		route.Topic,
		route.SchemaSubject,
		event.PartitionKey,
		body,
		event.DedupeKey,
	)
	return err
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		a                                  domain.Activity
		kind, intensity, source, syncState string
		externalID                         *string
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.UserID, &kind, &intensity, &a.DurationMin, &a.Calories, &source, &externalID, &a.StartedAt, &syncState, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Activity{}, err
	}
	a.Kind = energy.Kind(kind)
	a.Intensity = energy.Intensity(intensity)
	a.Source = domain.Source(source)
	a.SyncState = domain.SyncState(syncState)
	if externalID != nil {
		a.ExternalID = *externalID
	}
	return a, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
