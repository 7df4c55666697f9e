package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsEnabled = true

var (
	messageLabels = []string{"channel", "tenant_id"}
	commandLabels = []string{"command_kind", "outcome", "channel"}

	// MessagesReceivedTotal counts webhook messages accepted per channel.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "command_engine_messages_received_total",
			Help: "Total number of inbound webhook messages accepted.",
		},
		messageLabels,
	)

	// MessagesProcessedTotal counts messages that completed the pipeline.
	MessagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "command_engine_messages_processed_total",
			Help: "Total number of messages that completed processing.",
		},
		messageLabels,
	)

	// MessagesFailedTotal counts messages whose processing hit an internal error.
	MessagesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "command_engine_messages_failed_total",
			Help: "Total number of messages that failed processing.",
		},
		messageLabels,
	)

	// CommandsTotal counts executed commands by kind and outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "command_engine_commands_total",
			Help: "Total number of executed commands by kind and outcome.",
		},
		commandLabels,
	)

	// FallbackTotal counts fallback bridge calls by result kind.
	FallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "command_engine_fallback_total",
			Help: "Total number of fallback backend calls by result.",
		},
		[]string{"result", "tenant_id"},
	)

	// DedupeHitsTotal counts re-delivered webhook events discarded by the dedupe window.
	DedupeHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "command_engine_dedupe_hits_total",
			Help: "Total number of duplicate webhook deliveries discarded.",
		},
		[]string{"channel"},
	)

	// ProcessingDurationSeconds measures end-to-end pipeline durations.
	ProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_engine_processing_duration_seconds",
			Help:    "Histogram of message processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		messageLabels,
	)
)

// InitMetrics toggles metric collection globally.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IncMessagesReceived increments the received counter.
func IncMessagesReceived(channel, tenantID string) {
	if metricsEnabled {
		MessagesReceivedTotal.WithLabelValues(channel, tenantID).Inc()
	}
}

// IncMessagesProcessed increments the processed counter.
func IncMessagesProcessed(channel, tenantID string) {
	if metricsEnabled {
		MessagesProcessedTotal.WithLabelValues(channel, tenantID).Inc()
	}
}

// IncMessagesFailed increments the failed counter.
func IncMessagesFailed(channel, tenantID string) {
	if metricsEnabled {
		MessagesFailedTotal.WithLabelValues(channel, tenantID).Inc()
	}
}

// IncCommand increments the command counter.
func IncCommand(kind, outcome, channel string) {
	if metricsEnabled {
		CommandsTotal.WithLabelValues(kind, outcome, channel).Inc()
	}
}

// IncFallback increments the fallback counter.
func IncFallback(result, tenantID string) {
	if metricsEnabled {
		FallbackTotal.WithLabelValues(result, tenantID).Inc()
	}
}

// IncDedupeHit increments the dedupe counter.
func IncDedupeHit(channel string) {
	if metricsEnabled {
		DedupeHitsTotal.WithLabelValues(channel).Inc()
	}
}

// ObserveProcessingDuration records one pipeline duration.
func ObserveProcessingDuration(channel, tenantID string, d time.Duration) {
	if metricsEnabled {
		ProcessingDurationSeconds.WithLabelValues(channel, tenantID).Observe(d.Seconds())
	}
}
