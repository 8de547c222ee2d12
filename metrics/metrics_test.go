package metrics_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-gate/generic"
	"github.com/warp/finance-gate/metrics"
)

func TestObserveValidation_LabelsByOutcome(t *testing.T) {
	// GIVEN fresh metrics
	m := metrics.New()

	// WHEN one accepted, two rejected and one failed validation are observed
	m.ObserveValidation("expenses", nil, time.Millisecond)
	m.ObserveValidation("expenses", generic.Reject(generic.KindPolicy, "amount", "too much"), time.Millisecond)
	m.ObserveValidation("expenses", generic.Reject(generic.KindPolicy, "amount", "too much"), time.Millisecond)
	m.ObserveValidation("expenses", errors.New("boom"), time.Millisecond)

	// THEN each lands in its own series
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("expenses", metrics.OutcomeAccepted, "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Validations.WithLabelValues("expenses", metrics.OutcomeRejected, "policy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("expenses", metrics.OutcomeError, "")))
}

func TestObserveCommit_VersionConflict(t *testing.T) {
	m := metrics.New()

	m.ObserveCommit("payments", nil)
	m.ObserveCommit("payments", fmt.Errorf("%w: stale", generic.ErrVersionConflict))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues("payments", metrics.OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues("payments", metrics.OutcomeConflict)))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveValidation("expenses", nil, time.Millisecond)
		m.ObserveCommit("expenses", nil)
	})
}

func TestHandler_ExposesGateMetrics(t *testing.T) {
	// GIVEN a validation has been observed
	m := metrics.New()
	m.ObserveValidation("bank_transfers", nil, 2*time.Millisecond)

	// WHEN the registry is scraped
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// THEN the gate series are exposed
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "finance_gate_validations_total")
	assert.Contains(t, body, `collection="bank_transfers"`)
	assert.Contains(t, body, "finance_gate_validation_duration_seconds")
}
