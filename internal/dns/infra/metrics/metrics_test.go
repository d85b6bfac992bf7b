package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPolicyHits_CountsPerLabelSet(t *testing.T) {
	c := PolicyHits.WithLabelValues("metrics-test.", "qname", "NXDOMAIN")
	before := testutil.ToFloat64(c)
	c.Inc()
	c.Inc()
	assert.Equal(t, before+2, testutil.ToFloat64(c))
}

func TestZoneTriggers_Set(t *testing.T) {
	g := ZoneTriggers.WithLabelValues("metrics-test.", "nsip")
	g.Set(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(g))
}

func TestCollectorsRegistered(t *testing.T) {
	CacheOperations.WithLabelValues("hit").Inc()
	assert.GreaterOrEqual(t, testutil.CollectAndCount(CacheOperations), 1)
	assert.Equal(t, 1, testutil.CollectAndCount(Publishes))
}
