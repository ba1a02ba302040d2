package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// webhookEvents counts processed webhook events by final status.
	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bodytemp",
			Name:      "webhook_events_total",
			Help:      "Webhook message events by processing status.",
		},
		[]string{"status"},
	)

	// registrations counts successful registrations by outcome
	// (first_reading, same_day_update, reading).
	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bodytemp",
			Name:      "registrations_total",
			Help:      "Stored temperature readings by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(webhookEvents, registrations)
}
