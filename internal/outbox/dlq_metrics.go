package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of one DLQ pass over an entry.
const (
	dlqOutcomeRequeued    = "requeued"
	dlqOutcomeRescheduled = "rescheduled"
	dlqOutcomeQuarantined = "quarantined"
)

var (
	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitpulse",
		Subsystem: "dlq",
		Name:      "entries_handled_total",
		Help:      "DLQ entries handled by the manager, by activity event type and outcome.",
	}, []string{"event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fitpulse",
		Subsystem: "dlq",
		Name:      "entries",
		Help:      "Entries currently held in outbox_dlq, by activity event type and state (pending or quarantined).",
	}, []string{"event_type", "state"})

	dlqOldestPendingAge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitpulse",
		Subsystem: "dlq",
		Name:      "oldest_pending_age_seconds",
		Help:      "Age of the oldest entry still waiting for a retry; ledger totals lag by at least this much.",
	})
)

func init() {
	prometheus.MustRegister(dlqEntriesCounter, dlqBacklogGauge, dlqOldestPendingAge)
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqEntriesCounter.WithLabelValues(entry.EventType, outcome).Inc()
}

// refreshBacklog replaces the backlog gauges with the current contents of outbox_dlq.
func refreshBacklog(ctx context.Context, pool *pgxpool.Pool, now time.Time) error {
	rows, err := pool.Query(ctx,
		`SELECT event_type,
                CASE WHEN quarantined_at IS NULL THEN 'pending' ELSE 'quarantined' END AS state,
                COUNT(*)
           FROM outbox_dlq
          GROUP BY 1, 2`)
	if err != nil {
		return err
	}
	defer rows.Close()

	dlqBacklogGauge.Reset()
	for rows.Next() {
		var (
			eventType, state string
			count            int
		)
		if err := rows.Scan(&eventType, &state, &count); err != nil {
			return err
		}
		dlqBacklogGauge.WithLabelValues(eventType, state).Set(float64(count))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var oldest *time.Time
	if err := pool.QueryRow(ctx, `SELECT MIN(created_at) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&oldest); err != nil {
		return err
	}
	if oldest == nil {
		dlqOldestPendingAge.Set(0)
		return nil
	}
	dlqOldestPendingAge.Set(now.Sub(*oldest).Seconds())
	return nil
}
