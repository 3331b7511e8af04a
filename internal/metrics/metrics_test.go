package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.ObserveLedger("transfer", "completed")
	c.ObserveLedger("transfer", "completed")
	c.ObserveLedger("", "failed")
	c.ObserveSerializerRetry("transient")
	c.ObserveMatchingRun(3, 1, decimal.RequireFromString("40.5"), nil)
	c.ObserveMatchingRun(0, 0, decimal.Zero, errors.New("boom"))
	c.ObserveNotificationDropped("transaction.completed")
	c.ObserveCacheLookup(true)
	c.ObserveCacheLookup(false)
	c.ObservePlacement("left", nil)

	require.Equal(t, 2.0, testutil.ToFloat64(c.ledgerOps.WithLabelValues("transfer", "completed")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.ledgerOps.WithLabelValues("unknown", "failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.serializerRetries.WithLabelValues("transient")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.matchingRuns.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.matchingRuns.WithLabelValues("error")))
	require.Equal(t, 3.0, testutil.ToFloat64(c.matchingMembers.WithLabelValues("processed")))
	require.Equal(t, 40.5, testutil.ToFloat64(c.matchingPaid))
	require.Equal(t, 1.0, testutil.ToFloat64(c.notifyDropped.WithLabelValues("transaction.completed")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.placements.WithLabelValues("left", "ok")))
}

func TestNilCollectorsAreNoops(t *testing.T) {
	var c *Collectors
	require.NotPanics(t, func() {
		c.ObserveLedger("transfer", "completed")
		c.ObserveSerializerRetry("transient")
		c.ObserveMatchingRun(1, 0, decimal.NewFromInt(1), nil)
		c.ObserveNotificationDropped("x")
		c.ObserveCacheLookup(true)
		c.ObservePlacement("right", nil)
	})
}
