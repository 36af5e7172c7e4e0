package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.CacheLookup(ResultHit)
	m.CacheLookup(ResultHit)
	m.CacheLookup(ResultMiss)
	m.CacheWrite(ResultOK)
	m.MailDispatch(ResultFailed)
	m.RateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues(ResultHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues(ResultMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheWrites.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mailDispatch.WithLabelValues(ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CacheLookup(ResultHit)
	m.CacheWrite(ResultError)
	m.MailDispatch(ResultQueued)
	m.RateLimited()
}

func TestHandler(t *testing.T) {
	m := New()
	m.CacheLookup(ResultMiss)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `contactsbook_identity_cache_lookups_total{result="miss"} 1`)
}
