package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCounters(t *testing.T) {
	m := NewManager()

	m.ObserveRequest("googlebooks", OutcomeOK)
	m.ObserveRequest("googlebooks", OutcomeOK)
	m.ObserveRequest("googlebooks", OutcomeRateLimited)
	m.AddFetched("openlibrary", 12)
	m.ObserveRejection("openlibrary")
	m.ObserveInsert("trending_books", InsertAdded)
	m.ObserveInsert("trending_books", InsertExisting)
	m.ObserveRound()
	m.ObserveRun("success", 7, 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("googlebooks", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("googlebooks", OutcomeRateLimited)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.itemsFetched.WithLabelValues("openlibrary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("openlibrary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inserts.WithLabelValues("trending_books", InsertExisting)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rounds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("success")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.lastNew))
}

func TestNilManagerIsNoop(t *testing.T) {
	var m *Manager

	assert.NotPanics(t, func() {
		m.ObserveRequest("x", OutcomeError)
		m.AddFetched("x", 1)
		m.ObserveRejection("x")
		m.ObserveInsert("x", InsertError)
		m.ObserveRound()
		m.ObserveRun("failure", 0, time.Second)
	})
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewManager(WithRegistry(registry), WithNamespace("test"))
	m.ObserveRound()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_refresh_rounds_total 1"))
	assert.Same(t, registry, m.Registry())
}
