package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector()

	c.ProviderAttempt("DALL-E", "failure")
	c.ProviderAttempt("DALL-E", "failure")
	c.ProviderAttempt("Pollinations", "success")
	c.PipelineRun("success")
	c.RelayRun("success", 0.4)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.providerAttempts.WithLabelValues("DALL-E", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerAttempts.WithLabelValues("Pollinations", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pipelineRuns.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.relayUploads.WithLabelValues("success")))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ProviderAttempt("x", "success")
		c.PipelineRun("failure")
		c.RelayRun("failure", 1)
	})
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.PipelineRun("no_provider")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `news2toon_pipeline_runs_total{result="no_provider"} 1`)
}
