package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

func TestRecorderObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(Config{Enabled: true, Registry: reg})
	require.NoError(t, err)
	require.NotNil(t, r)

	r.Observe("housing", "fit", 10, time.Now(), nil)
	r.Observe("housing", "transform", 5, time.Now(), nil)
	r.Observe("housing", "transform", 5, time.Now(), errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("housing", "fit", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("housing", "transform", StatusError)))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.rows.WithLabelValues("housing", "transform")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration, "tabprep_operation_duration_seconds"))
}

func TestRecorderDisabled(t *testing.T) {
	r, err := NewRecorder(Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, r)

	// nil recorder is a no-op
	r.Observe("p", "fit", 1, time.Now(), nil)
}

func TestRecorderReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := Config{Enabled: true, Registry: reg, Namespace: "demo"}

	a, err := NewRecorder(cfg)
	require.NoError(t, err)
	b, err := NewRecorder(cfg)
	require.NoError(t, err)

	a.Observe("p", "fit", 1, time.Now(), nil)
	b.Observe("p", "fit", 1, time.Now(), nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(b.operations.WithLabelValues("p", "fit", StatusSuccess)))

	count, err := testutil.GatherAndCount(reg, "demo_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "tabprep", cfg.Namespace)
	assert.Equal(t, prometheus.DefaultRegisterer, cfg.Registry)
}
