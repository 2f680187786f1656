package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activitiesLogged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitpulse",
		Subsystem: "activities",
		Name:      "logged_total",
		Help:      "Number of activities added to user logs, by source and kind.",
	}, []string{"source", "kind"})

	activitiesRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitpulse",
		Subsystem: "activities",
		Name:      "removed_total",
		Help:      "Number of activities deleted from user logs, by source.",
	}, []string{"source"})

	caloriesLogged = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitpulse",
		Subsystem: "activities",
		Name:      "calories",
		Help:      "Calories attached to newly logged activities.",
		Buckets:   []float64{25, 50, 100, 200, 350, 500, 750, 1000, 1500},
	})

	syncResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitpulse",
		Subsystem: "fitness_sync",
		Name:      "pushes_total",
		Help:      "Activity pushes to the fitness provider, by resulting sync state.",
	}, []string{"state"})

	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitpulse",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted to Postgres.",
	})
)

func init() {
	prometheus.MustRegister(activitiesLogged, activitiesRemoved, caloriesLogged, syncResults, activityPersistGauge)
}

// RecordActivityLogged counts a new activity and observes its calories.
func RecordActivityLogged(source, kind string, calories int) {
	activitiesLogged.WithLabelValues(source, kind).Inc()
	caloriesLogged.Observe(float64(calories))
}

// RecordActivityRemoved counts a deleted activity.
func RecordActivityRemoved(source string) {
	activitiesRemoved.WithLabelValues(source).Inc()
}

// RecordSyncResult counts a push outcome.
func RecordSyncResult(state string) {
	syncResults.WithLabelValues(state).Inc()
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}
