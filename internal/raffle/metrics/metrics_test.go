package metrics

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementEntries()
	m.IncrementEntries()
	m.IncrementEntryRejected("insufficient_payment")
	m.SetRound(3, big.NewInt(30))
	m.ObserveOperation("enter", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Entries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesRejected.WithLabelValues("insufficient_payment")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Players))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.PoolWei))
}
