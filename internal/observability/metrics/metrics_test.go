package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestAssistantMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAssistantMetrics(reg)
	m.ObserveTurn("scheduling", "show_slots", 0.02)
	m.ObserveTurn("scheduling", "show_slots", 0.03)
	m.ObserveIntent("schedule_interview", 0.92)
	m.ObserveBooking("confirmed")
	m.ObserveJob("processed")
	m.ObserveLockTimeout()

	assert.Equal(t, 2.0, counterValue(t, m.turnsTotal.WithLabelValues("scheduling", "show_slots")))
	assert.Equal(t, 1.0, counterValue(t, m.bookingsTotal.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, counterValue(t, m.lockWaitTimeout))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "staffline_assistant_intent_confidence")
	assert.Contains(t, names, "staffline_worker_jobs_total")
}

func TestAssistantMetricsNilSafe(t *testing.T) {
	var m *AssistantMetrics
	m.ObserveTurn("scheduling", "error", 0.1)
	m.ObserveIntent("greeting", 0.5)
	m.ObserveBooking("failed")
	m.ObserveJob("failed")
	m.ObserveLockTimeout()
}
