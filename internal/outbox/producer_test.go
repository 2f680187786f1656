package outbox

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/fitpulse/internal/events"
)

func TestKafkaProducerReusesWriterPerTopic(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"}, nil)

	first := p.writer(events.TopicActivityEvents)
	require.Same(t, first, p.writer(events.TopicActivityEvents))
	require.NotSame(t, first, p.writer(events.TopicActivitySync))

	require.Equal(t, events.TopicActivityEvents, first.Topic)
	require.IsType(t, &kafka.Hash{}, first.Balancer)
	require.Equal(t, kafka.RequireAll, first.RequiredAcks)

	require.NoError(t, p.Close())
	require.Empty(t, p.writers)
}
