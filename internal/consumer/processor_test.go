package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"example.com/fitpulse/internal/events"
)

func frame(schemaID int, payload []byte) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)
	return value
}

func record(offset int64, eventType, tenantID string, value []byte) kafka.Message {
	return kafka.Message{
		Topic:     events.TopicActivityEvents,
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(eventType)},
			{Key: events.HeaderTenantID, Value: []byte(tenantID)},
			{Key: events.HeaderSchemaSubject, Value: []byte("activity_events-ActivityLogged")},
			{Key: events.HeaderEventKey, Value: []byte(fmt.Sprintf("evt-%d", offset))},
		},
	}
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"activity_id":"abc"}`)
	reader := &stubReader{messages: []kafka.Message{
		record(10, events.TypeActivityLogged, "tenant-1", frame(42, payload)),
	}}
	handler := &stubHandler{}

	before := testutil.ToFloat64(processedCounter.WithLabelValues(events.TopicActivityEvents, events.TypeActivityLogged))
	err := NewProcessor(reader, handler, WithLogger(quietLogger())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeActivityLogged, handler.last.EventType)
	require.Equal(t, "tenant-1", handler.last.TenantID)
	require.Equal(t, 42, handler.last.SchemaID)
	require.Equal(t, int64(10), handler.last.Offset)
	require.Equal(t, "evt-10", handler.last.EventKey)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
	require.InDelta(t, before+1, testutil.ToFloat64(processedCounter.WithLabelValues(events.TopicActivityEvents, events.TypeActivityLogged)), 0.0001)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{
		record(20, events.TypeActivityRemoved, "tenant-2", frame(99, []byte(`{"activity_id":"def"}`))),
	}}
	handler := &stubHandler{err: errors.New("boom")}

	err := NewProcessor(reader, handler, WithLogger(quietLogger())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedRecords(t *testing.T) {
	noHeader := record(1, events.TypeActivityLogged, "t", frame(1, []byte(`{}`)))
	noHeader.Headers = nil
	badMagic := record(2, events.TypeActivityLogged, "t", frame(1, []byte(`{}`)))
	badMagic.Value[0] = 1

	reader := &stubReader{messages: []kafka.Message{
		record(0, events.TypeActivityLogged, "t", []byte{0, 0}),
		noHeader,
		badMagic,
		record(3, events.TypeActivityLogged, "t", frame(1, []byte(`{not json`))),
	}}
	handler := &stubHandler{}

	before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues(events.TopicActivityEvents))
	err := NewProcessor(reader, handler, WithLogger(quietLogger())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 4, reader.commitCalls)
	require.InDelta(t, before+4, testutil.ToFloat64(decodeErrorCounter.WithLabelValues(events.TopicActivityEvents)), 0.0001)
}

func TestProcessorRetriesAfterFetchError(t *testing.T) {
	reader := &stubReader{
		fetchErrs: []error{errors.New("leader not available")},
		messages: []kafka.Message{
			record(5, events.TypeActivityLogged, "t", frame(1, []byte(`{}`))),
		},
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(quietLogger()), WithFetchBackoff(time.Millisecond)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
}

type stubReader struct {
	fetchErrs   []error
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}
