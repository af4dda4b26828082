package metrics_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tpmops/internal/metrics"
	"github.com/systmms/tpmops/pkg/tpm"
)

var _ tpm.Observer = (*metrics.Recorder)(nil)

func TestRecorder_ObserveRequest(t *testing.T) {
	t.Parallel()

	r := metrics.NewRecorder()
	r.ObserveRequest("GET", 200, 10*time.Millisecond)
	r.ObserveRequest("GET", 200, 20*time.Millisecond)
	r.ObserveRequest("POST", 0, time.Second)

	count, err := testutil.GatherAndCount(r.Registry(), "tpmops_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per method/code pair")

	count, err = testutil.GatherAndCount(r.Registry(), "tpmops_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRecorder_WriteTextfile(t *testing.T) {
	t.Parallel()

	r := metrics.NewRecorder()
	r.ObserveRequest("GET", 404, time.Millisecond)
	r.ObserveResult("password", "present", metrics.OutcomeUnchanged)

	path := filepath.Join(t.TempDir(), "tpmops.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tpmops_http_requests_total{code="404",method="GET"} 1`)
	assert.Contains(t, string(data), `tpmops_module_results_total{outcome="unchanged",resource="password",state="present"} 1`)
}

func TestDefault_IsShared(t *testing.T) {
	t.Parallel()

	assert.Same(t, metrics.Default(), metrics.Default())
}
