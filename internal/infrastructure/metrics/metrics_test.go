package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logibill/internal/core/numbering"
	"logibill/internal/infrastructure/storage/postgres"
)

type staticPool struct{ stats postgres.PoolStats }

func (p staticPool) Stats() postgres.PoolStats { return p.stats }

func TestRecorder_NumberingCounters(t *testing.T) {
	r := New()

	r.NumberAdvanced(numbering.TypeInvoice)
	r.NumberAdvanced(numbering.TypeInvoice)
	r.LostUpdate(numbering.TypeConsignment)
	r.DuplicateChecked(numbering.TypeInvoice, true)
	r.DuplicateChecked(numbering.TypeInvoice, false)
	r.ConfigSaved(numbering.TypeConsignment)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.advanced.WithLabelValues("invoice")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.lostUpdate.WithLabelValues("consignment")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.dupChecks.WithLabelValues("invoice", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.saves.WithLabelValues("consignment")))
}

func TestRecorder_HTTPAndHandler(t *testing.T) {
	r := New()
	r.RegisterPool(staticPool{postgres.PoolStats{TotalConns: 3, AcquiredConns: 1, IdleConns: 2, MaxConns: 10}})

	done := r.RequestStarted(http.MethodGet)
	assert.Equal(t, float64(1), testutil.ToFloat64(r.httpInFlight))
	done("/api/v1/numbering/configs", http.StatusOK)
	assert.Equal(t, float64(0), testutil.ToFloat64(r.httpInFlight))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `logibill_http_requests_total{method="GET",route="/api/v1/numbering/configs",status="200"} 1`))
	assert.True(t, strings.Contains(body, "logibill_db_pool_max_connections 10"))
}
