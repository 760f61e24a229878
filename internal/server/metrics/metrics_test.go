package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/vault"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ vault.Observer = (*VaultMetrics)(nil)

func counterValue(t *testing.T, m *VaultMetrics, op, outcome string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "sbetterfy_vault_operations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabels(metric, map[string]string{"op": op, "outcome": outcome}) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("decrypt", vault.OutcomeOK, 2*time.Millisecond)
	m.ObserveOperation("decrypt", vault.OutcomeOK, 3*time.Millisecond)
	m.ObserveOperation("decrypt", vault.OutcomeUnreadable, time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, m, "decrypt", vault.OutcomeOK))
	assert.Equal(t, 1.0, counterValue(t, m, "decrypt", vault.OutcomeUnreadable))
	assert.Equal(t, 0.0, counterValue(t, m, "encrypt", vault.OutcomeOK))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "sbetterfy_vault_operation_duration_seconds" {
			for _, metric := range mf.GetMetric() {
				samples += metric.GetHistogram().GetSampleCount()
			}
		}
	}
	assert.Equal(t, uint64(3), samples)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveOperation("encrypt", vault.OutcomeOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `sbetterfy_vault_operations_total{op="encrypt",outcome="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
