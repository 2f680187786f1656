//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"example.com/fitpulse/internal/events"
	"example.com/fitpulse/internal/testsupport"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	tenantID := uuid.NewString()
	require.NotZero(t, seedOutbox(ctx, t, pool, tenantID, uuid.NewString(), events.TypeActivityLogged))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(NewPGStore(pool), producer, registry, 10*time.Millisecond, 5)

	delivered := eventsCounter.WithLabelValues(events.TypeActivityLogged, outcomeDelivered)
	beforeDelivered := testutil.ToFloat64(delivered)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, events.TopicActivityEvents, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)
	require.Equal(t, tenantID, headers(producer.writes[0].messages[0])[events.HeaderTenantID])

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(delivered), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	// A second pass finds nothing left to claim.
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1)
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	tenantID := uuid.NewString()
	require.NotZero(t, seedOutbox(ctx, t, pool, tenantID, uuid.NewString(), events.TypeActivitySyncChanged))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(NewPGStore(pool), producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5)

	require.NoError(t, dispatcher.processBatch(ctx))

	var (
		dlqCount int
		reason   string
	)
	err := pool.QueryRow(ctx, `SELECT COUNT(*), MAX(reason) FROM outbox_dlq WHERE tenant_id = $1`, tenantID).Scan(&dlqCount, &reason)
	require.NoError(t, err)
	require.Equal(t, 1, dlqCount)
	require.Contains(t, reason, "kafka write failed")

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDLQManagerRequeuesAndQuarantines(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	tenantID := uuid.NewString()
	require.NotZero(t, seedOutbox(ctx, t, pool, tenantID, uuid.NewString(), events.TypeActivityRemoved))

	failing := NewDispatcher(NewPGStore(pool), &stubProducer{err: errors.New("down")}, &stubRegistry{id: 3}, time.Millisecond, 5)
	require.NoError(t, failing.processBatch(ctx))

	manager := NewDLQManager(pool, 1, time.Minute, nil)
	requeued := dlqEntriesCounter.WithLabelValues(events.TypeActivityRemoved, dlqOutcomeRequeued)
	beforeRequeued := testutil.ToFloat64(requeued)

	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.InDelta(t, beforeRequeued+1, testutil.ToFloat64(requeued), 0.0001)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Equal(t, 1, pending, "requeued entry returns to the outbox")

	var keys []string
	rows, err := pool.Query(ctx, `SELECT event_key FROM outbox ORDER BY event_id`)
	require.NoError(t, err)
	for rows.Next() {
		var key string
		require.NoError(t, rows.Scan(&key))
		keys = append(keys, key)
	}
	require.NoError(t, rows.Err())
	require.Len(t, keys, 2)
	require.NotEmpty(t, keys[0])
	require.Equal(t, keys[0], keys[1], "requeued event keeps its event key")

	// An entry with an unroutable event type is retried with backoff, then quarantined.
	var dlqID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO outbox_dlq (tenant_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
         VALUES ($1, 0, 'activity.unknown', 'activity_events', '{}', 'seed', 'activity', 'x', 'activity_events-value', 'x', NOW())
         RETURNING dlq_id`, tenantID).Scan(&dlqID))

	_, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)

	var (
		retries   int
		nextRetry time.Time
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT retry_count, next_retry_at FROM outbox_dlq WHERE dlq_id=$1`, dlqID).Scan(&retries, &nextRetry))
	require.Equal(t, 1, retries)
	require.True(t, nextRetry.After(time.Now().Add(30*time.Second)))

	_, err = pool.Exec(ctx, `UPDATE outbox_dlq SET next_retry_at = NOW() WHERE dlq_id=$1`, dlqID)
	require.NoError(t, err)
	_, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)

	var quarantined *time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT quarantined_at FROM outbox_dlq WHERE dlq_id=$1`, dlqID).Scan(&quarantined))
	require.NotNil(t, quarantined)
	require.Equal(t, 1.0, testutil.ToFloat64(dlqBacklogGauge.WithLabelValues("activity.unknown", "quarantined")))
	require.Zero(t, testutil.ToFloat64(dlqOldestPendingAge))
	require.InDelta(t, 1, testutil.ToFloat64(dlqEntriesCounter.WithLabelValues("activity.unknown", dlqOutcomeQuarantined)), 0.0001)
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func seedOutbox(ctx context.Context, t *testing.T, pool *pgxpool.Pool, tenantID, aggregateID, eventType string) int64 {
	t.Helper()

	route, err := events.RouteFor(eventType)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"activity_id": aggregateID,
		"tenant_id":   tenantID,
	})
	require.NoError(t, err)

	var eventID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         RETURNING event_id`,
		tenantID, "activity", aggregateID, eventType, route.Topic, route.SchemaSubject, tenantID+":"+aggregateID, payload,
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}
