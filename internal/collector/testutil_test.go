package collector

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// testutilGaugeVecValue reads the current value of a single-label gauge
// series; a series that does not exist yet is created and reads as 0.
func testutilGaugeVecValue(t *testing.T, vec *prometheus.GaugeVec, label string) float64 {
	t.Helper()
	return testutil.ToFloat64(vec.WithLabelValues(label))
}
