package metricstore

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/jkroepke/sshlog-exporter/internal/labelset"
)

// formatValue renders a float64 the way the Prometheus text format
// expects, including the special values +Inf, -Inf and NaN.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// instrument is the capability set every metric cell exposes, per the
// "duck-typed metric container" design note: a sum type of
// Counter/Gauge/Histogram/Summary behind one small interface.
type instrument interface {
	add(v float64) error
	exposeTo(w io.Writer, name string, labels labelset.LabelSet) (int, error)
}

func newInstrument(kind Kind, buckets []float64) instrument {
	switch kind {
	case Counter:
		return &counterInstrument{}
	case Gauge:
		return &gaugeInstrument{}
	case Summary:
		return &summaryInstrument{}
	case Histogram:
		return &histogramInstrument{
			bounds: buckets,
			counts: make([]uint64, len(buckets)),
		}
	default:
		return &gaugeInstrument{}
	}
}

type counterInstrument struct {
	mu    sync.Mutex
	value float64
}

func (c *counterInstrument) add(v float64) error {
	if v < 0 {
		return fmt.Errorf("metricstore: counter cannot be decreased by %s", formatValue(v))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.value += v

	return nil
}

// set is used internally for the periodic refresh of process metrics,
// which republish an absolute value rather than a delta.
func (c *counterInstrument) set(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v > c.value {
		c.value = v
	}
}

func (c *counterInstrument) exposeTo(w io.Writer, name string, labels labelset.LabelSet) (int, error) {
	c.mu.Lock()
	v := c.value
	c.mu.Unlock()

	_, err := io.WriteString(w, name+"{"+labels.Render("")+"} "+formatValue(v)+"\n")

	return 1, err
}

type gaugeInstrument struct {
	mu    sync.Mutex
	value float64
}

func (g *gaugeInstrument) add(v float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.value += v

	return nil
}

func (g *gaugeInstrument) set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.value = v
}

func (g *gaugeInstrument) exposeTo(w io.Writer, name string, labels labelset.LabelSet) (int, error) {
	g.mu.Lock()
	v := g.value
	g.mu.Unlock()

	_, err := io.WriteString(w, name+"{"+labels.Render("")+"} "+formatValue(v)+"\n")

	return 1, err
}

type summaryInstrument struct {
	mu    sync.Mutex
	sum   float64
	count uint64
}

func (s *summaryInstrument) add(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sum += v
	s.count++

	return nil
}

func (s *summaryInstrument) exposeTo(w io.Writer, name string, labels labelset.LabelSet) (int, error) {
	s.mu.Lock()
	sum, count := s.sum, s.count
	s.mu.Unlock()

	rendered := labels.Render("")

	_, err := io.WriteString(w,
		name+"_sum{"+rendered+"} "+formatValue(sum)+"\n"+
			name+"_count{"+rendered+"} "+strconv.FormatUint(count, 10)+"\n")

	return 2, err
}

// histogramInstrument keeps a single-slot-on-write in-memory
// representation (the lowest matching bucket is incremented, not every
// bucket at or above the observation) and makes the bucket counts
// cumulative only at exposition time. Spec leaves this choice to the
// implementer provided the emitted stream is cumulative; single-slot
// writes keep Add O(1) instead of O(buckets).
type histogramInstrument struct {
	mu     sync.Mutex
	bounds []float64 // ascending, last is +Inf
	counts []uint64  // per-bucket, non-cumulative
	sum    float64
	total  uint64
}

func (h *histogramInstrument) add(v float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.total++

	for i, bound := range h.bounds {
		if v <= bound {
			h.counts[i]++

			return nil
		}
	}

	// Should not happen: the last bound is always +Inf.
	h.counts[len(h.counts)-1]++

	return nil
}

func (h *histogramInstrument) exposeTo(w io.Writer, name string, labels labelset.LabelSet) (int, error) {
	h.mu.Lock()
	bounds := append([]float64(nil), h.bounds...)
	counts := append([]uint64(nil), h.counts...)
	sum, total := h.sum, h.total
	h.mu.Unlock()

	lines := 0
	cumulative := uint64(0)

	for i, bound := range bounds {
		cumulative += counts[i]

		le := formatValue(bound)
		if i == len(bounds)-1 {
			le = "+Inf"
		}

		if _, err := io.WriteString(w, name+"_bucket{"+labels.Render(le)+"} "+strconv.FormatUint(cumulative, 10)+"\n"); err != nil {
			return lines, err
		}

		lines++
	}

	rendered := labels.Render("")

	if _, err := io.WriteString(w, name+"_count{"+rendered+"} "+strconv.FormatUint(total, 10)+"\n"); err != nil {
		return lines, err
	}

	lines++

	if _, err := io.WriteString(w, name+"_sum{"+rendered+"} "+formatValue(sum)+"\n"); err != nil {
		return lines, err
	}

	lines++

	return lines, nil
}

// entry pairs one instrument with the bookkeeping a Family needs: its key,
// the staleness clock, and its own short-held lock for the (rare) dropped
// race with eviction.
type entry struct {
	labels      labelset.LabelSet
	inst        instrument
	mu          sync.Mutex
	lastUpdated time.Time
}

func (e *entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastUpdated = now
	e.mu.Unlock()
}

func (e *entry) age(now time.Time) time.Duration {
	e.mu.Lock()
	last := e.lastUpdated
	e.mu.Unlock()

	return now.Sub(last)
}
