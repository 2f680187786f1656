package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitpulse",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Number of Kafka messages successfully handled.",
	}, []string{"topic", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitpulse",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Number of handler errors grouped by topic and event type.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitpulse",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Number of decode failures per topic.",
	}, []string{"topic"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fitpulse",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successfully processed message per topic.",
	}, []string{"topic"})

	ledgerCalories = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitpulse",
		Subsystem: "ledger",
		Name:      "calories_applied_total",
		Help:      "Net calories applied to the daily ledger, by direction.",
	}, []string{"direction"})

	ledgerDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitpulse",
		Subsystem: "ledger",
		Name:      "duplicate_events_total",
		Help:      "Redelivered events skipped by the ledger.",
	})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, lastMessageGauge, ledgerCalories, ledgerDuplicates)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordLedgerDelta(calories int) {
	switch {
	case calories > 0:
		ledgerCalories.WithLabelValues("added").Add(float64(calories))
	case calories < 0:
		ledgerCalories.WithLabelValues("removed").Add(float64(-calories))
	}
}
