package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/putscan/internal/config"
	"github.com/sawpanic/putscan/internal/metrics"
)

func testConfig() config.ProviderConfig {
	cfg := config.DefaultProviderConfig()
	cfg.RPS = 1000
	cfg.Burst = 1000
	cfg.UserAgent = "putscan-test"
	cfg.Circuit.FailureThreshold = 2
	cfg.Circuit.OpenTimeoutMS = 60000
	return cfg
}

func TestTransport_SetsUserAgentAndPassesThrough4xx(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	hc := &http.Client{Transport: NewTransport(testConfig(), nil, nil)}
	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "putscan-test", gotUA.Load())
}

func TestTransport_OpensCircuitOnServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reg := metrics.New()
	tr := NewTransport(testConfig(), nil, reg)
	hc := &http.Client{Transport: tr}

	for i := 0; i < 2; i++ {
		resp, err := hc.Get(srv.URL)
		require.NoError(t, err, "5xx responses are returned to the caller")
		resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	}

	host := mustHost(t, srv.URL)
	assert.Equal(t, gobreaker.StateOpen, tr.state(host))
	assert.Equal(t, 2.0, metrics.Value(reg.BreakerState.WithLabelValues(host)))

	_, err := hc.Get(srv.URL)
	require.Error(t, err)
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.IsCircuitOpen())
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open circuit short-circuits the request")
}

func TestTransport_TransportErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	hc := &http.Client{Transport: NewTransport(testConfig(), nil, nil)}
	_, err := hc.Get(addr)
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "transport", perr.Type)
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}
