package metrics

import (
	"testing"

	prommodel "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, mf *prommodel.MetricFamily, label string) float64 {
	t.Helper()
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "peer" && l.GetValue() == label {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("no metric with peer=%q found", label)
	return 0
}

func TestRegistry_CountersStartAtZero(t *testing.T) {
	reg, promReg := NewRegistry()
	require.NotNil(t, reg)

	reg.RequestsSent.WithLabelValues("0")

	families, err := promReg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	var requests *prommodel.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "maekawa_requests_sent_total" {
			requests = mf
		}
	}
	require.NotNil(t, requests)
	assert.Equal(t, float64(0), counterValue(t, requests, "0"))
}

func TestRegistry_IncrementIsObservable(t *testing.T) {
	reg, promReg := NewRegistry()

	reg.RequestsSent.WithLabelValues("1").Inc()
	reg.RequestsSent.WithLabelValues("1").Inc()
	reg.GrantsSent.WithLabelValues("1").Inc()
	reg.CSEntries.WithLabelValues("2").Inc()

	families, err := promReg.Gather()
	require.NoError(t, err)

	var requests, grants, csEntries *prommodel.MetricFamily
	for _, mf := range families {
		switch mf.GetName() {
		case "maekawa_requests_sent_total":
			requests = mf
		case "maekawa_grants_sent_total":
			grants = mf
		case "maekawa_cs_entries_total":
			csEntries = mf
		}
	}

	require.NotNil(t, requests)
	require.NotNil(t, grants)
	require.NotNil(t, csEntries)

	assert.Equal(t, float64(2), counterValue(t, requests, "1"))
	assert.Equal(t, float64(1), counterValue(t, grants, "1"))
	assert.Equal(t, float64(1), counterValue(t, csEntries, "2"))
}

func TestNewRegistry_IndependentInstancesDontCollide(t *testing.T) {
	_, first := NewRegistry()
	_, second := NewRegistry()
	assert.NotSame(t, first, second)
}
