package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsGroupsByRouteAndStatusClass(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("GET", "/api/v1/courses/{courseId}", 200, 10*time.Millisecond)
	m.Observe("GET", "/api/v1/courses/{courseId}", 204, 5*time.Millisecond)
	m.Observe("GET", "", 404, time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	ok, err := fetchCounterValue(mfs, "coursehub_http_requests_total", map[string]string{"route": "/api/v1/courses/{courseId}", "status": "2xx"})
	require.NoError(t, err)
	require.Equal(t, 2.0, ok)

	missing, err := fetchCounterValue(mfs, "coursehub_http_requests_total", map[string]string{"route": "unmatched", "status": "4xx"})
	require.NoError(t, err)
	require.Equal(t, 1.0, missing)
}

func TestStatusClass(t *testing.T) {
	require.Equal(t, "5xx", statusClass(503))
	require.Equal(t, "unknown", statusClass(0))
	var m *HTTPMetrics
	m.Observe("GET", "/", 200, 0)
}
