package outbox

import "github.com/prometheus/client_golang/prometheus"

// Delivery outcomes for claimed outbox events.
const (
	outcomeDelivered    = "delivered"
	outcomeDeadLettered = "dead_lettered"
)

var (
	eventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitpulse",
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Claimed activity events by event type and delivery outcome.",
	}, []string{"event_type", "outcome"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitpulse",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent delivering and marking one claimed batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	batchTopics = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitpulse",
		Subsystem: "outbox",
		Name:      "batch_topics",
		Help:      "Distinct topics written per batch. Multi-topic batches are dead-lettered as a unit on failure.",
		Buckets:   []float64{1, 2, 3},
	})
)

func init() {
	prometheus.MustRegister(eventsCounter, batchDuration, batchTopics)
}

func recordOutcome(messages []Message, outcome string) {
	for _, msg := range messages {
		eventsCounter.WithLabelValues(msg.EventType, outcome).Inc()
	}
}
