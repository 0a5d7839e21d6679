// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoundsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appdeployer_rounds_completed_total",
			Help: "Total number of rounds that delivered a notification",
		},
		[]string{"round"},
	)

	RoundsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appdeployer_rounds_failed_total",
			Help: "Total number of rounds aborted, by failure kind",
		},
		[]string{"round", "failure_kind"},
	)

	RoundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appdeployer_round_duration_seconds",
			Help:    "Duration of round processing in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"round"},
	)

	RoundsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "appdeployer_rounds_active",
			Help: "Number of rounds currently executing",
		},
	)

	RoundsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appdeployer_rounds_rejected_total",
			Help: "Requests rejected because the round queue was full",
		},
	)

	RoundResultsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appdeployer_round_results_dropped_total",
			Help: "Round results dropped because nobody drained the results channel",
		},
	)

	AttachmentDigests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appdeployer_attachment_digests_total",
			Help: "Attachment digests produced, by kind",
		},
		[]string{"kind"},
	)

	GenerationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appdeployer_generation_fallbacks_total",
			Help: "Rounds that published the fallback document, by reason",
		},
		[]string{"reason"},
	)

	NotificationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appdeployer_notification_attempts_total",
			Help: "Evaluator notification attempts, by outcome",
		},
		[]string{"outcome"},
	)
)
