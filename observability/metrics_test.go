package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IsolatedRegistries(t *testing.T) {
	req := require.New(t)

	// Two registries never collide on collector names
	first := NewMetrics(prometheus.NewRegistry())
	second := NewMetrics(prometheus.NewRegistry())

	first.EventsPublished.WithLabelValues("message:new").Inc()
	first.EventsPublished.WithLabelValues("message:new").Inc()

	req.Equal(2.0, testutil.ToFloat64(first.EventsPublished.WithLabelValues("message:new")))
	req.Zero(testutil.ToFloat64(second.EventsPublished.WithLabelValues("message:new")))
}

func TestNewMetrics_Gauges(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	metrics.ActiveConnections.Inc()
	metrics.ActiveConnections.Inc()
	metrics.ActiveConnections.Dec()

	req.Equal(1.0, testutil.ToFloat64(metrics.ActiveConnections))
	count, err := testutil.GatherAndCount(reg, "chat_relay_active_connections")
	req.NoError(err)
	req.Equal(1, count)
}
