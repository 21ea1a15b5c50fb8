package metricstore_test

import (
	"strings"
	"testing"
	"time"

	"github.com/jkroepke/sshlog-exporter/internal/labelset"
	"github.com/jkroepke/sshlog-exporter/internal/metricstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ls(env string, pairs ...string) labelset.LabelSet {
	l := labelset.New(env)
	for i := 0; i+1 < len(pairs); i += 2 {
		l.Set(pairs[i], pairs[i+1])
	}

	return l
}

func TestCounterTotalSuffix(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{TTL: time.Hour})
	defer reg.Close()

	f, err := reg.NewFamily("body_bytes_sent", "help", metricstore.Counter, nil, metricstore.Weak)
	require.NoError(t, err)
	assert.Equal(t, "body_bytes_sent_total", f.Name())

	f2, err := reg.NewFamily("requests_total", "help", metricstore.Counter, nil, metricstore.Weak)
	require.NoError(t, err)
	assert.Equal(t, "requests_total", f2.Name())
}

func TestPrefixApplied(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{TTL: time.Hour, Prefix: "myapp"})
	defer reg.Close()

	f, err := reg.NewFamily("widgets", "help", metricstore.Gauge, nil, metricstore.Weak)
	require.NoError(t, err)
	assert.Equal(t, "myapp:widgets", f.Name())
}

func TestRejectsReservedSuffixesAndCollisions(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{TTL: time.Hour})
	defer reg.Close()

	_, err := reg.NewFamily("foo_sum", "help", metricstore.Gauge, nil, metricstore.Weak)
	require.Error(t, err)

	_, err = reg.NewFamily("lines_parsed", "help", metricstore.Counter, nil, metricstore.Weak)
	require.Error(t, err)

	_, err = reg.NewFamily("bad name!", "help", metricstore.Gauge, nil, metricstore.Weak)
	require.Error(t, err)

	_, err = reg.NewFamily("dup", "help", metricstore.Gauge, nil, metricstore.Weak)
	require.NoError(t, err)

	_, err = reg.NewFamily("dup", "help", metricstore.Gauge, nil, metricstore.Weak)
	require.Error(t, err)
}

func TestHistogramBucketsExtendedWithInf(t *testing.T) {
	t.Parallel()

	got := metricstore.NormalizeBuckets([]float64{10, 100, 1000})
	require.Len(t, got, 4)
	assert.True(t, got[3] > got[2])

	// Already ending in +Inf is not duplicated.
	gotAlready := metricstore.NormalizeBuckets(append([]float64{10, 100}, got[3]))
	assert.Len(t, gotAlready, 3)
}

func TestHistogramCumulativeExposition(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{TTL: time.Hour})
	defer reg.Close()

	f, err := reg.NewFamily("size", "help", metricstore.Histogram, []float64{10, 100, 1000}, metricstore.Weak)
	require.NoError(t, err)

	labels := ls("prod")

	require.NoError(t, f.Add(labels, 5))
	require.NoError(t, f.Add(labels, 50))
	require.NoError(t, f.Add(labels, 5000))

	var sb strings.Builder

	_, err = f.ExposeTo(&sb)
	require.NoError(t, err)

	out := sb.String()
	assert.Contains(t, out, `size_bucket{environment="prod",le="10"} 1`)
	assert.Contains(t, out, `size_bucket{environment="prod",le="100"} 2`)
	assert.Contains(t, out, `size_bucket{environment="prod",le="+Inf"} 3`)
	assert.Contains(t, out, `size_count{environment="prod"} 3`)
	assert.Contains(t, out, `size_sum{environment="prod"} 5055`)
}

func TestIdenticalLabelSetsMapToSameInstrument(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{TTL: time.Hour})
	defer reg.Close()

	f, err := reg.NewFamily("hits", "help", metricstore.Counter, nil, metricstore.Weak)
	require.NoError(t, err)

	require.NoError(t, f.Add(ls("prod", "host", "a"), 1))
	require.NoError(t, f.Add(ls("prod", "host", "a"), 1))
	require.NoError(t, f.Add(ls("prod", "host", "b"), 1))

	assert.Equal(t, 2, f.Count())

	var sb strings.Builder

	_, err = f.ExposeTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), `hits_total{environment="prod",host="a"} 2`)
	assert.Contains(t, sb.String(), `hits_total{environment="prod",host="b"} 1`)
}

func TestWeakEvictionTwoPhase(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{
		TTL:                  20 * time.Millisecond,
		BackgroundResilience: 1,
	})
	defer reg.Close()

	f, err := reg.NewFamily("idle", "help", metricstore.Gauge, nil, metricstore.Weak)
	require.NoError(t, err)

	require.NoError(t, f.Add(ls("prod"), 1))

	// Still fresh: present.
	var sb strings.Builder

	_, err = f.ExposeTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "idle")

	// Past expose horizon (1 TTL) but within retain horizon (2 TTL): not
	// exposed, but an update would resurrect it without recreating.
	time.Sleep(35 * time.Millisecond)

	sb.Reset()
	_, err = f.ExposeTo(&sb)
	require.NoError(t, err)
	assert.Empty(t, sb.String())
	assert.Equal(t, 1, f.Count(), "still retained in memory")

	// Past retain horizon: evicted from memory by the next eviction tick.
	time.Sleep(40 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return f.Count() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestDropRemovesInstrumentImmediately(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{TTL: time.Hour})
	defer reg.Close()

	labels := ls("prod", "host", "x")

	reg.Connected.WithLabels(labels)
	assert.Equal(t, 1, reg.Connected.Count())

	reg.Connected.Drop(labels)
	assert.Equal(t, 0, reg.Connected.Count())
}

func TestSumEqualsSumOfAdds(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{TTL: time.Hour})
	defer reg.Close()

	f, err := reg.NewFamily("amount", "help", metricstore.Summary, nil, metricstore.Weak)
	require.NoError(t, err)

	labels := ls("prod")
	total := 0.0

	for _, v := range []float64{1.5, 2.25, -0.75} {
		require.NoError(t, f.Add(labels, v))

		total += v
	}

	var sb strings.Builder
	_, err = f.ExposeTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), `amount_sum{environment="prod"} 3`)
	assert.Contains(t, sb.String(), `amount_count{environment="prod"} 3`)
}
