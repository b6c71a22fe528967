package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	RosterCreated     prometheus.Counter
	RosterUpdated     prometheus.Counter
	RosterDeactivated prometheus.Counter
	RosterRowFailures prometheus.Counter

	ParticipationAdded   prometheus.Counter
	ParticipationRemoved prometheus.Counter

	Conversions *prometheus.CounterVec

	CryptoFailOpen prometheus.Counter

	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		RosterCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostersync_roster_members_created_total",
			Help: "Mirror members created by roster sync",
		}),
		RosterUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostersync_roster_members_updated_total",
			Help: "Mirror members updated by roster sync",
		}),
		RosterDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostersync_roster_members_deactivated_total",
			Help: "Mirror members soft-deactivated by roster sync",
		}),
		RosterRowFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostersync_roster_row_failures_total",
			Help: "Per-row mutation failures isolated during roster sync",
		}),
		ParticipationAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostersync_participation_records_added_total",
			Help: "Enrolled membership records added by participation reconciliation",
		}),
		ParticipationRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostersync_participation_records_removed_total",
			Help: "Enrolled membership records removed by participation reconciliation",
		}),
		Conversions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rostersync_conversions_total",
			Help: "Applicant conversions by outcome",
		}, []string{"outcome"}),
		CryptoFailOpen: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rostersync_field_decrypt_fail_open_total",
			Help: "Field decryptions that failed and returned ciphertext unchanged",
		}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rostersync_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
