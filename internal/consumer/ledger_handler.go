package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitpulse/internal/events"
)

// LedgerDelta is the change one event applies to a user's daily calorie ledger.
type LedgerDelta struct {
	TenantID string
	UserID   string
	Day      time.Time
	Count    int
	Minutes  float64
	Calories int
}

// DeltaFor derives the ledger change carried by msg. Events that do not move the
// ledger return ok=false.
func DeltaFor(msg Message) (delta LedgerDelta, ok bool, err error) {
	switch msg.EventType {
	case events.TypeActivityLogged:
		var evt events.ActivityLogged
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return LedgerDelta{}, false, fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		return LedgerDelta{
			TenantID: evt.TenantID,
			UserID:   evt.UserID,
			Day:      day(evt.StartedAt),
			Count:    1,
			Minutes:  evt.DurationMin,
			Calories: evt.Calories,
		}, true, nil
	case events.TypeActivityRemoved:
		var evt events.ActivityRemoved
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return LedgerDelta{}, false, fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		return LedgerDelta{
			TenantID: evt.TenantID,
			UserID:   evt.UserID,
			Day:      day(evt.StartedAt),
			Count:    -1,
			Minutes:  -evt.DurationMin,
			Calories: -evt.Calories,
		}, true, nil
	default:
		return LedgerDelta{}, false, nil
	}
}

func day(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LedgerKey identifies msg for deduplication.
func LedgerKey(msg Message) string {
	if msg.EventKey != "" {
		return msg.EventKey
	}
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}

// LedgerHandler records every consumed event in activity_event_log and folds logged and
// removed activities into calorie_ledger. Redelivered records are detected by their event
// key, or by topic, partition and offset when the record carries none, and applied once.
type LedgerHandler struct {
	pool *pgxpool.Pool
}

// NewLedgerHandler constructs a handler backed by the provided pool.
func NewLedgerHandler(pool *pgxpool.Pool) *LedgerHandler {
	return &LedgerHandler{pool: pool}
}

// Handle implements Handler.
func (h *LedgerHandler) Handle(ctx context.Context, msg Message) error {
	delta, apply, err := DeltaFor(msg)
	if err != nil {
		return err
	}

	tx, err := h.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	receivedAt := msg.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO activity_event_log (event_type, tenant_id, schema_id, schema_subject, topic, partition, record_offset, event_key, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         ON CONFLICT DO NOTHING`,
		msg.EventType,
		msg.TenantID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		LedgerKey(msg),
		msg.Payload,
		receivedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		ledgerDuplicates.Inc()
		return tx.Commit(ctx)
	}

	if apply {
		if _, err := tx.Exec(ctx,
			`INSERT INTO calorie_ledger (tenant_id, user_id, day, activity_count, total_minutes, total_calories, updated_at)
             VALUES ($1,$2,$3,$4,$5,$6,NOW())
             ON CONFLICT (tenant_id, user_id, day) DO UPDATE
                SET activity_count = calorie_ledger.activity_count + EXCLUDED.activity_count,
                    total_minutes  = calorie_ledger.total_minutes + EXCLUDED.total_minutes,
                    total_calories = calorie_ledger.total_calories + EXCLUDED.total_calories,
                    updated_at     = NOW()`,
			delta.TenantID, delta.UserID, delta.Day, delta.Count, delta.Minutes, delta.Calories,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if apply {
		recordLedgerDelta(delta.Calories)
	}
	return nil
}

// LedgerDay is one row of calorie_ledger.
type LedgerDay struct {
	Day           time.Time
	ActivityCount int
	TotalMinutes  float64
	TotalCalories int
}

// DailyTotals reads a user's ledger for the days in [from, to], oldest first.
func (h *LedgerHandler) DailyTotals(ctx context.Context, tenantID, userID string, from, to time.Time) ([]LedgerDay, error) {
	rows, err := h.pool.Query(ctx,
		`SELECT day, activity_count, total_minutes, total_calories
           FROM calorie_ledger
          WHERE tenant_id=$1 AND user_id=$2 AND day BETWEEN $3 AND $4
          ORDER BY day`,
		tenantID, userID, day(from), day(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LedgerDay, 0)
	for rows.Next() {
		var d LedgerDay
		if err := rows.Scan(&d.Day, &d.ActivityCount, &d.TotalMinutes, &d.TotalCalories); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
