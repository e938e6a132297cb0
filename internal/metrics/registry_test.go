package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := New()

	r.ObserveChainFetch(FetchOK)
	r.ObserveChainFetch(FetchOK)
	r.ObserveChainFetch(FetchUnavailable)
	r.ObserveHandshake(nil)
	r.ObserveHandshake(errors.New("no cookie"))
	r.ObserveRejection("zero_bid")
	r.SetBreakerState("query2.finance.yahoo.com", 2)
	r.ObserveScan(1.5)

	assert.Equal(t, 2.0, Value(r.ChainFetches.WithLabelValues(FetchOK)))
	assert.Equal(t, 1.0, Value(r.ChainFetches.WithLabelValues(FetchUnavailable)))
	assert.Equal(t, 1.0, Value(r.AuthHandshakes.WithLabelValues("error")))
	assert.Equal(t, 1.0, Value(r.ContractsRejected.WithLabelValues("zero_bid")))
	assert.Equal(t, 2.0, Value(r.BreakerState.WithLabelValues("query2.finance.yahoo.com")))
	assert.Equal(t, 1.0, Value(r.ScanDuration))
}

func TestRegistry_NilIsSafe(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveChainFetch(FetchOK)
		r.ObserveProviderRequest("chain", "2xx")
		r.ObserveHandshake(nil)
		r.ObserveAuthRetry()
		r.ObserveRejection("x")
		r.ObserveCandidate()
		r.ObserveTickerFailure("x")
		r.SetBreakerState("h", 0)
		r.ObserveScan(1)
	})
}

func TestRegistry_WriteTextfile(t *testing.T) {
	r := New()
	r.ObserveCandidate()

	path := filepath.Join(t.TempDir(), "putscan.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "putscan_candidates_total 1")
}
