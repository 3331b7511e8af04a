package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Collectors groups the engine metrics. A nil *Collectors is valid and records nothing.
type Collectors struct {
	ledgerOps         *prometheus.CounterVec
	serializerRetries *prometheus.CounterVec
	matchingRuns      *prometheus.CounterVec
	matchingMembers   *prometheus.CounterVec
	matchingPaid      prometheus.Counter
	notifyDropped     *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	placements        *prometheus.CounterVec
}

func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mlm_ledger_operations_total",
			Help: "Ledger operations by transaction type and final status.",
		}, []string{"type", "status"}),
		serializerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mlm_serializer_retries_total",
			Help: "Retries of transient store errors inside the transaction serializer.",
		}, []string{"reason"}),
		matchingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mlm_matching_runs_total",
			Help: "Daily matching runs by outcome.",
		}, []string{"outcome"}),
		matchingMembers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mlm_matching_members_total",
			Help: "Members handled by matching runs by result.",
		}, []string{"result"}),
		matchingPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mlm_matching_reward_paid_total",
			Help: "Sum of matching rewards credited to income wallets.",
		}),
		notifyDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mlm_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch buffer was full.",
		}, []string{"event"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mlm_wallet_cache_lookups_total",
			Help: "Wallet cache lookups by result.",
		}, []string{"result"}),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mlm_tree_placements_total",
			Help: "Tree placements by requested side and outcome.",
		}, []string{"side", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			c.ledgerOps,
			c.serializerRetries,
			c.matchingRuns,
			c.matchingMembers,
			c.matchingPaid,
			c.notifyDropped,
			c.cacheLookups,
			c.placements,
		)
	}
	return c
}

func (c *Collectors) ObserveLedger(txType, status string) {
	if c == nil {
		return
	}
	if txType == "" {
		txType = "unknown"
	}
	c.ledgerOps.WithLabelValues(txType, status).Inc()
}

func (c *Collectors) ObserveSerializerRetry(reason string) {
	if c == nil {
		return
	}
	c.serializerRetries.WithLabelValues(reason).Inc()
}

func (c *Collectors) ObserveMatchingRun(processed, failed int, paid decimal.Decimal, runErr error) {
	if c == nil {
		return
	}
	outcome := "success"
	if runErr != nil {
		outcome = "error"
	}
	c.matchingRuns.WithLabelValues(outcome).Inc()
	c.matchingMembers.WithLabelValues("processed").Add(float64(processed))
	c.matchingMembers.WithLabelValues("failed").Add(float64(failed))
	c.matchingPaid.Add(paid.InexactFloat64())
}

func (c *Collectors) ObserveNotificationDropped(event string) {
	if c == nil {
		return
	}
	c.notifyDropped.WithLabelValues(event).Inc()
}

func (c *Collectors) ObserveCacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collectors) ObservePlacement(side string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.placements.WithLabelValues(side, outcome).Inc()
}
