// Package metrics exposes Prometheus collectors for exam sessions and guild sync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "proctor"

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exam_sessions_started_total",
		Help:      "Exam sessions started.",
	})

	SessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exam_sessions_completed_total",
		Help:      "Exam sessions finished, by result.",
	}, []string{"result"})

	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exam_sessions_expired_total",
		Help:      "Exam sessions removed after their deadline passed.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "exam_sessions_active",
		Help:      "Exam sessions currently held in memory.",
	})

	RewardGrants = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reward_grants_total",
		Help:      "Role grants attempted after a pass, by outcome.",
	}, []string{"outcome"})

	GuildSyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guild_sync_runs_total",
		Help:      "Guild reconciliation runs, by outcome.",
	}, []string{"outcome"})

	GuildSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "guild_sync_duration_seconds",
		Help:      "Duration of successful guild reconciliation runs.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Label values.
const (
	ResultPassed  = "passed"
	ResultFailed  = "failed"
	OutcomeOK     = "success"
	OutcomeFailed = "failure"
)
