package monitoring

import (
	"context"
	"log/slog"
	"time"

	"ticket-reconcile/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	purchaseAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_purchase_attempts_total",
			Help: "Purchase attempts by result",
		},
		[]string{"result"},
	)

	reconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_outcomes_total",
			Help: "Return-path reconciliations by terminal outcome",
		},
		[]string{"outcome"},
	)

	reconcilePolls = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_reconcile_poll_attempts",
			Help:    "Ticket list polls spent per reconciliation",
			Buckets: prometheus.LinearBuckets(0, 3, 6),
		},
	)

	reconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_reconcile_duration_seconds",
			Help:    "Duration of return-path reconciliation",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"outcome"},
	)

	manualActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_manual_actions_total",
			Help: "Verify, retry and cancel actions by result",
		},
		[]string{"action", "result"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	operationLocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "operation_locks_held",
			Help: "Per-user operation locks currently held in Redis",
		},
	)
)

// Monitor records service metrics. The zero value can track; Start adds the
// periodic collection of breaker and lock gauges.
type Monitor struct {
	redis    *redis.Client
	breakers []*utils.CircuitBreaker
}

// NewMonitor creates a monitor. redisClient may be nil in memory mode.
func NewMonitor(redisClient *redis.Client, breakers ...*utils.CircuitBreaker) *Monitor {
	return &Monitor{
		redis:    redisClient,
		breakers: breakers,
	}
}

// Start collects gauges every interval until ctx ends.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			m.collect(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *Monitor) collect(ctx context.Context) {
	m.collectBreakerMetrics()
	if m.redis != nil {
		m.collectLockMetrics(ctx)
	}
}

func (m *Monitor) collectBreakerMetrics() {
	for _, cb := range m.breakers {
		breakerState.WithLabelValues(cb.Name()).Set(float64(cb.State()))
	}
}

func (m *Monitor) collectLockMetrics(ctx context.Context) {
	var held int
	iter := m.redis.Scan(ctx, 0, "lock:ops:*", 100).Iterator()
	for iter.Next(ctx) {
		held++
	}
	if err := iter.Err(); err != nil {
		slog.Warn("lock metrics scan failed", "error", err)
		return
	}
	operationLocks.Set(float64(held))
}

func (m *Monitor) TrackPurchase(result string) {
	purchaseAttempts.WithLabelValues(result).Inc()
}

func (m *Monitor) TrackReconcile(outcome string, polls int, duration time.Duration) {
	reconcileOutcomes.WithLabelValues(outcome).Inc()
	reconcilePolls.Observe(float64(polls))
	reconcileDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Monitor) TrackManualAction(action, result string) {
	manualActions.WithLabelValues(action, result).Inc()
}
