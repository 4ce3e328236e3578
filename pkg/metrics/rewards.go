package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RewardMetrics tracks weekly distribution and claim reconciliation outcomes.
type RewardMetrics struct {
	weeklyBudget   *prometheus.GaugeVec
	rankedBuilders *prometheus.GaugeVec
	receipts       *prometheus.CounterVec
	blocked        *prometheus.CounterVec
	claims         *prometheus.CounterVec
}

// NewRewardMetrics registers reward metrics on reg. A nil registerer yields a no-op value.
func NewRewardMetrics(reg prometheus.Registerer) *RewardMetrics {
	if reg == nil {
		return &RewardMetrics{}
	}
	weeklyBudget := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rewards",
		Name:      "weekly_budget",
		Help:      "Weekly reward budget in whole units for the last distributed week.",
	}, []string{"mode"})
	rankedBuilders := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rewards",
		Name:      "ranked_builders",
		Help:      "Builders ranked for the last distributed week.",
	}, []string{"mode"})
	receipts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rewards",
		Name:      "receipts_created_total",
		Help:      "Reward receipts written by the weekly distribution.",
	}, []string{"mode"})
	blocked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rewards",
		Name:      "payouts_blocked_total",
		Help:      "Weekly payouts halted by a ledger integrity failure.",
	}, []string{"mode"})
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "claims",
		Name:      "reconciled_total",
		Help:      "On-chain claim submissions by terminal status.",
	}, []string{"status"})
	reg.MustRegister(weeklyBudget, rankedBuilders, receipts, blocked, claims)
	return &RewardMetrics{
		weeklyBudget:   weeklyBudget,
		rankedBuilders: rankedBuilders,
		receipts:       receipts,
		blocked:        blocked,
		claims:         claims,
	}
}

// ObserveDistribution records the budget, ranked builder count and receipts for a week.
func (m *RewardMetrics) ObserveDistribution(mode string, budget float64, builders, receipts int) {
	if m == nil || m.weeklyBudget == nil {
		return
	}
	label := normalizeLabel(mode)
	m.weeklyBudget.WithLabelValues(label).Set(budget)
	m.rankedBuilders.WithLabelValues(label).Set(float64(builders))
	m.receipts.WithLabelValues(label).Add(float64(receipts))
}

func (m *RewardMetrics) IncPayoutBlocked(mode string) {
	if m == nil || m.blocked == nil {
		return
	}
	m.blocked.WithLabelValues(normalizeLabel(mode)).Inc()
}

// IncClaimReconciled counts a submission reaching status.
func (m *RewardMetrics) IncClaimReconciled(status string) {
	if m == nil || m.claims == nil {
		return
	}
	m.claims.WithLabelValues(normalizeLabel(status)).Inc()
}
