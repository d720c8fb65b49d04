package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	r := New("cam-1")
	r.Reconnects.Inc()
	r.BatchFlushes.WithLabelValues("size").Inc()
	r.FramesDropped.WithLabelValues("ratelimit").Add(3)
	r.FramesProcessed.Inc()
	r.QueueDepth.WithLabelValues("metadata").Set(5)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ingest_agent_reconnects_total")
	assert.Contains(t, body, "ingest_agent_frames_dropped_total")
	assert.Contains(t, body, `device="cam-1"`)
}
