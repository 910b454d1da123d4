// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ChatMessagesReceived prometheus.Counter
	RedemptionsReceived  prometheus.Counter
	PingsAnswered        prometheus.Counter
	UnrecognizedLines    prometheus.Counter
	HandlerFaults        *prometheus.CounterVec
	StatusUpdates        *prometheus.CounterVec
	LoopRestarts         *prometheus.CounterVec

	// Histograms (seconds)
	RewardHandlerDuration prometheus.Observer

	// Gauges
	ChatQueueDepth       prometheus.Gauge
	RedemptionQueueDepth prometheus.Gauge
	InFlightChatHandlers prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "pointsbot_chat_messages_total", Help: "Chat lines parsed and enqueued"})
		RedemptionsReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "pointsbot_redemptions_total", Help: "Channel point redemptions received"})
		PingsAnswered = promauto.NewCounter(prometheus.CounterOpts{Name: "pointsbot_irc_pings_answered_total", Help: "IRC PINGs answered with PONG"})
		UnrecognizedLines = promauto.NewCounter(prometheus.CounterOpts{Name: "pointsbot_irc_unrecognized_lines_total", Help: "IRC lines that matched no known pattern"})
		HandlerFaults = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pointsbot_handler_faults_total", Help: "Handler invocations that returned errors or panicked"}, []string{"loop", "handler"})
		StatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pointsbot_status_updates_total", Help: "Redemption status updates issued"}, []string{"status"})
		LoopRestarts = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pointsbot_loop_restarts_total", Help: "Supervised dispatch loop restarts"}, []string{"loop"})
		RewardHandlerDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "pointsbot_reward_handler_duration_seconds", Help: "Reward handler invocation duration", Buckets: prometheus.DefBuckets})
		ChatQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{Name: "pointsbot_chat_queue_depth", Help: "Chat events waiting for dispatch"})
		RedemptionQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{Name: "pointsbot_redemption_queue_depth", Help: "Redemption events waiting for dispatch"})
		InFlightChatHandlers = promauto.NewGauge(prometheus.GaugeOpts{Name: "pointsbot_inflight_chat_handlers", Help: "Currently running chat handler invocations"})
	})
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
