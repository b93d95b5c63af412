package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.IncRecord("gendarmerie", OutcomeImported)
	m.IncRecord("gendarmerie", OutcomeImported)
	m.IncRecord("gendarmerie", OutcomeError)
	m.ObserveProvider("ban", "hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records.WithLabelValues("gendarmerie", OutcomeImported)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues("gendarmerie", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderHits.WithLabelValues("ban", "hit")))
}

func TestMetrics_ObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun("vaccination", 90*time.Second, false)
	assert.Equal(t, 90.0, testutil.ToFloat64(m.RunDuration.WithLabelValues("vaccination")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.LastSuccess))

	m.ObserveRun("vaccination", time.Second, true)
	assert.Equal(t, 1, testutil.CollectAndCount(m.LastSuccess))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncRecord("x", OutcomeSkipped)
	m.ObserveProvider("ban", "hit")
	m.ObserveRun("x", time.Second, true)
	m.SetSweep(1, 2, 3)
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.IncRecord("typeform", OutcomeSkipped)
	m.SetSweep(4, 1, 2)

	path := filepath.Join(t.TempDir(), "erpsync.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `erpsync_import_records_total{dataset="typeform",outcome="skipped"} 1`)
	assert.Contains(t, string(data), `erpsync_dedup_sweep_establishments{kind="to_delete"} 4`)

	assert.NoError(t, m.WriteTextfile(""))
}
