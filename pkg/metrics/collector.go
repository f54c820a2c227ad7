package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_updates_total",
			Help: "Total number of Telegram updates received labeled by outcome",
		},
		[]string{"status"},
	)
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands resolved labeled by action and status",
		},
		[]string{"action", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of webhook update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_deliveries_total",
			Help: "Total number of outbound Telegram calls labeled by method and status",
		},
		[]string{"method", "status"},
	)
	tapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "economy_taps_total",
			Help: "Total number of mini-app taps labeled by status",
		},
		[]string{"status"},
	)
	purchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "economy_purchases_total",
			Help: "Total number of shop purchases labeled by status",
		},
		[]string{"status"},
	)
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI fallback requests labeled by status",
		},
		[]string{"status"},
	)
	jobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of background tasks processed labeled by task type and status",
		},
		[]string{"task_type", "status"},
	)
	jobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Duration of background task processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
)

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// RecordWebhookUpdate counts a received update.
func RecordWebhookUpdate(status string) {
	webhookUpdatesTotal.WithLabelValues(orUnknown(status)).Inc()
}

// RecordCommand increments command counters and records duration.
// action is the resolved action kind, never the raw command text.
func RecordCommand(action, status string, duration time.Duration) {
	action = orUnknown(action)

	botCommandsTotal.WithLabelValues(action, orUnknown(status)).Inc()
	commandDurationSeconds.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordDelivery counts an outbound Telegram API call.
func RecordDelivery(method, status string) {
	deliveriesTotal.WithLabelValues(orUnknown(method), orUnknown(status)).Inc()
}

// RecordTap counts a tap attempt.
func RecordTap(status string) {
	tapsTotal.WithLabelValues(orUnknown(status)).Inc()
}

// RecordPurchase counts a purchase attempt.
func RecordPurchase(status string) {
	purchasesTotal.WithLabelValues(orUnknown(status)).Inc()
}

// RecordAIRequest counts an AI fallback call.
func RecordAIRequest(status string) {
	aiRequestsTotal.WithLabelValues(orUnknown(status)).Inc()
}

// RecordJob counts a processed background task and its duration.
func RecordJob(taskType, status string, duration time.Duration) {
	taskType = orUnknown(taskType)

	jobsProcessedTotal.WithLabelValues(taskType, orUnknown(status)).Inc()
	jobDurationSeconds.WithLabelValues(taskType).Observe(duration.Seconds())
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}
