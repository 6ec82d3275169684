package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndRecord(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.RecordCacheLookup("hit")
	m.RecordCacheLookup("hit")
	m.RecordHTTPFetch("cache", 200)
	m.RecordHTTPFetch("cache", 304)
	m.RecordHTTPFetch("cache", 0)
	m.RecordLift("ok")
	m.RecordStep("jq", 10*time.Millisecond)
	m.RecordAPIPage("wfs")
	m.RecordPlanImport("ref")
	m.RecordProcessExit("jq", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPFetches.WithLabelValues("cache", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPFetches.WithLabelValues("cache", "304")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPFetches.WithLabelValues("cache", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProcessExits.WithLabelValues("jq", "nonzero")))

	// duplicate registration is rejected by the registry
	assert.Error(t, New().Register(reg))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordCacheLookup("miss")
	m.RecordHTTPFetch("api", 500)
	m.RecordLift("failed")
	m.RecordStep("shacl", time.Second)
	m.RecordAPIPage("openapi")
	m.RecordPlanImport("provider")
	m.RecordProcessExit("jq", 0)
}
