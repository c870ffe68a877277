package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventReceived("start-class")
	m.EventReceived("start-class")
	m.ErrorSent("not_found")
	m.Disconnected()
	m.ObserveMediaCall("produce", time.Now(), errors.New("boom"))

	require.Equal(t, float64(2), testutil.ToFloat64(m.events.WithLabelValues("start-class")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("not_found")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.disconnects))
	require.Equal(t, 1, testutil.CollectAndCount(m.mediaCalls))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.EventReceived("x")
		m.ErrorSent("x")
		m.Disconnected()
		m.ObserveMediaCall("x", time.Now(), nil)
	})
}

func TestGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterGauges(reg, Gauges{
		Rooms:   func() int { return 3 },
		Waiting: func() int { return 5 },
	})
	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
	}
	require.Equal(t, float64(3), values["class_room_live"])
	require.Equal(t, float64(5), values["class_room_waiting_connections"])
}
