package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/fitpulse/internal/events"
)

func TestEncodeWireFormat(t *testing.T) {
	frame := encodeWireFormat(42, []byte(`{"a":1}`))
	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, `{"a":1}`, string(frame[5:]))
}

func TestDispatcherDeliversWithHeaders(t *testing.T) {
	store := &fakeStore{pending: []Message{
		loggedMessage(1, "tenant-a", "user-1"),
		loggedMessage(2, "tenant-a", "user-1"),
		syncMessage(3, "tenant-b"),
	}}
	producer := &stubProducer{}
	registry := &stubRegistry{id: 7}
	fixed := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	dispatcher := NewDispatcher(store, producer, registry, time.Millisecond, 10, WithClock(func() time.Time { return fixed }))

	delivered := func() float64 {
		return testutil.ToFloat64(eventsCounter.WithLabelValues(events.TypeActivityLogged, outcomeDelivered)) +
			testutil.ToFloat64(eventsCounter.WithLabelValues(events.TypeActivitySyncChanged, outcomeDelivered))
	}
	before := delivered()
	require.NoError(t, dispatcher.processBatch(context.Background()))

	require.Len(t, producer.writes, 2)
	require.Equal(t, events.TopicActivityEvents, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, events.TopicActivitySync, producer.writes[1].topic)

	record := producer.writes[0].messages[0]
	require.Equal(t, "tenant-a:user-1", string(record.Key))
	require.Equal(t, fixed, record.Time)
	require.Equal(t, uint32(7), binary.BigEndian.Uint32(record.Value[1:5]))
	require.Equal(t, map[string]string{
		events.HeaderEventType:     events.TypeActivityLogged,
		events.HeaderTenantID:      "tenant-a",
		events.HeaderSchemaSubject: events.TopicActivityEvents + "-ActivityLogged",
		events.HeaderEventKey:      "act-1:activity.logged",
	}, headers(record))

	// Two subjects, each resolved once thanks to the cache.
	require.Len(t, registry.calls, 2)
	require.ElementsMatch(t, []int64{1, 2, 3}, store.published)
	require.Empty(t, store.dlq)
	require.InDelta(t, before+3, delivered(), 0.0001)

	store.pending = []Message{loggedMessage(4, "tenant-a", "user-2")}
	require.NoError(t, dispatcher.processBatch(context.Background()))
	require.Len(t, registry.calls, 2)
}

func TestDispatcherRoutesFailuresToDLQ(t *testing.T) {
	store := &fakeStore{pending: []Message{loggedMessage(10, "tenant-a", "user-1")}}
	producer := &stubProducer{err: errors.New("broker unavailable")}
	dispatcher := NewDispatcher(store, producer, &stubRegistry{id: 1}, time.Millisecond, 10)

	deadLettered := eventsCounter.WithLabelValues(events.TypeActivityLogged, outcomeDeadLettered)
	beforeFailed := testutil.ToFloat64(deadLettered)

	require.NoError(t, dispatcher.processBatch(context.Background()))

	require.Len(t, store.dlq, 1)
	require.Contains(t, store.dlq[0].reason, "broker unavailable")
	require.Contains(t, store.dlq[0].reason, "topic="+events.TopicActivityEvents)
	require.Equal(t, "act-10:activity.logged", store.dlq[0].msg.EventKey)
	require.Equal(t, []int64{10}, store.published, "dlq'd events are still marked published")
	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(deadLettered), 0.0001)
}

func TestDispatcherUnknownEventSkipsRegistry(t *testing.T) {
	msg := loggedMessage(20, "tenant-a", "user-1")
	msg.EventType = "activity.unknown"
	store := &fakeStore{pending: []Message{msg}}
	producer := &stubProducer{}
	registry := &stubRegistry{}
	dispatcher := NewDispatcher(store, producer, registry, time.Millisecond, 10)

	require.NoError(t, dispatcher.processBatch(context.Background()))
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
	require.Len(t, store.dlq, 1)
	require.Contains(t, store.dlq[0].reason, "no schema metadata for event_type=activity.unknown")
}

func TestDispatcherEmptyBatchIsNoop(t *testing.T) {
	store := &fakeStore{}
	producer := &stubProducer{}
	dispatcher := NewDispatcher(store, producer, &stubRegistry{}, time.Millisecond, 10)

	require.NoError(t, dispatcher.processBatch(context.Background()))
	require.Empty(t, producer.writes)
	require.Empty(t, store.published)
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	dispatcher := NewDispatcher(&fakeStore{}, &stubProducer{}, &stubRegistry{}, time.Millisecond, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestBackoffDelay(t *testing.T) {
	m := NewDLQManager(nil, 3, time.Minute, nil)
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 16*time.Minute, m.backoffDelay(5))
	require.Equal(t, time.Hour, m.backoffDelay(7))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}

func loggedMessage(id int64, tenantID, userID string) Message {
	route, _ := events.RouteFor(events.TypeActivityLogged)
	return Message{
		EventID:       id,
		TenantID:      tenantID,
		AggregateType: "activity",
		AggregateID:   "act",
		EventType:     route.EventType,
		Topic:         route.Topic,
		SchemaSubject: route.SchemaSubject,
		PartitionKey:  events.UserPartitionKey(tenantID, userID),
		EventKey:      fmt.Sprintf("act-%d:%s", id, events.TypeActivityLogged),
		Payload:       []byte(`{"activity_id":"act"}`),
	}
}

func syncMessage(id int64, tenantID string) Message {
	route, _ := events.RouteFor(events.TypeActivitySyncChanged)
	return Message{
		EventID:       id,
		TenantID:      tenantID,
		AggregateType: "activity",
		AggregateID:   "act-sync",
		EventType:     route.EventType,
		Topic:         route.Topic,
		SchemaSubject: route.SchemaSubject,
		PartitionKey:  "act-sync",
		Payload:       []byte(`{"activity_id":"act-sync","state":"synced"}`),
	}
}

func headers(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

type dlqRecord struct {
	msg    Message
	reason string
}

type fakeStore struct {
	mu        sync.Mutex
	pending   []Message
	published []int64
	dlq       []dlqRecord
}

func (s *fakeStore) Claim(_ context.Context, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > limit {
		claimed := s.pending[:limit]
		s.pending = s.pending[limit:]
		return claimed, nil
	}
	claimed := s.pending
	s.pending = nil
	return claimed, nil
}

func (s *fakeStore) MarkPublished(_ context.Context, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range messages {
		s.published = append(s.published, msg.EventID)
	}
	return nil
}

func (s *fakeStore) MoveToDLQ(_ context.Context, msg Message, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dlq = append(s.dlq, dlqRecord{msg: msg, reason: reason})
	return nil
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(_ context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
