package counters

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGauges(t *testing.T) {
	ObserveConnection("CP-T1", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(connectionGauge.With(prometheus.Labels{"charge_point_id": "CP-T1"})))
	ObserveConnection("CP-T1", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(connectionGauge.With(prometheus.Labels{"charge_point_id": "CP-T1"})))

	ObserveEnergy("CP-T1", 2, 40.88)
	assert.Equal(t, 40.88, testutil.ToFloat64(energyGauge.With(prometheus.Labels{"charge_point_id": "CP-T1", "connector_id": "2"})))
}

func TestCounters(t *testing.T) {
	CountMessage("CP-T2", "in", "Call")
	CountMessage("CP-T2", "in", "Call")
	assert.Equal(t, 2.0, testutil.ToFloat64(messageCounter.With(prometheus.Labels{"charge_point_id": "CP-T2", "direction": "in", "type": "Call"})))

	CountTimeout("CP-T2", "Heartbeat")
	assert.Equal(t, 1.0, testutil.ToFloat64(timeoutCounter.With(prometheus.Labels{"charge_point_id": "CP-T2", "action": "Heartbeat"})))
}

func TestEmptyLabelsIgnored(t *testing.T) {
	before := testutil.CollectAndCount(pendingGauge)
	ObservePending("", 3)
	CountTimeout("", "Heartbeat")
	CountMessage("CP-T3", "", "Call")
	assert.Equal(t, before, testutil.CollectAndCount(pendingGauge))
}
