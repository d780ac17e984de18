package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersDistinctCollectorsPerInstance(t *testing.T) {
	m1 := New()
	m2 := New()

	m1.CommitsApplied.Inc()
	m1.RecordAbort("conflict")

	assert.Equal(t, float64(1), gatherCounterValue(t, m1.Registry, "gmu_commits_applied_total"))
	assert.Equal(t, float64(0), gatherCounterValue(t, m2.Registry, "gmu_commits_applied_total"))
}

func TestNewLoggerBuilds(t *testing.T) {
	logger, err := NewLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync()
}

func gatherCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range fam.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}
