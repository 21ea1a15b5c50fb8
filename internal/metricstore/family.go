package metricstore

import (
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jkroepke/sshlog-exporter/internal/labelset"
)

var baseNamePattern = regexp.MustCompile(`^[A-Za-z0-9:_]+$`)

var reservedSuffixes = []string{"_sum", "_count", "_bucket", "_total"}

// ValidateBaseName checks the naming rule from the data model: a base
// name must match [A-Za-z0-9:_]+ and must not end in _sum/_count/_bucket
// /_total before any automatic counter suffix is applied.
func ValidateBaseName(name string) error {
	if !baseNamePattern.MatchString(name) {
		return fmt.Errorf("metricstore: invalid metric name %q, must match [A-Za-z0-9:_]+", name)
	}

	for _, suffix := range reservedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return fmt.Errorf("metricstore: metric name %q must not end in %q", name, suffix)
		}
	}

	return nil
}

// DefaultBuckets is the bucket vector used when a histogram spec supplies
// no bounds of its own.
var DefaultBuckets = []float64{.005, .01, .025, .05, .075, .1, .25, .5, .75, 1, 2.5, 5, 7.5, 10}

// NormalizeBuckets sorts bounds ascending and appends +Inf unless it is
// already present. An empty bounds list is replaced by DefaultBuckets; the
// result has length >= 2 unless bounds holds nothing but +Inf.
func NormalizeBuckets(bounds []float64) []float64 {
	out := append([]float64(nil), bounds...)
	if len(out) == 0 {
		out = append(out, DefaultBuckets...)
	}

	sort.Float64s(out)

	if len(out) == 0 || !math.IsInf(out[len(out)-1], 1) {
		out = append(out, math.Inf(1))
	}

	return out
}

// exposedName applies the Counter _total suffix rule and the optional
// global prefix.
func exposedName(baseName string, kind Kind, prefix string) string {
	name := baseName

	if kind == Counter && !strings.HasSuffix(name, "_total") {
		name += "_total"
	}

	if prefix != "" {
		name = prefix + ":" + name
	}

	return name
}

// Family is the family-level definition plus the concurrent container of
// its per-label-tuple Instruments, and owns the per-family eviction timer.
type Family struct {
	name       string // exposed name, after _total/prefix rules
	help       string
	kind       Kind
	buckets    []float64
	resilience Resilience

	ttl                  time.Duration
	backgroundResilience int
	longTermResilience   int

	mu      sync.Mutex
	entries map[uint64][]*entry

	cancel context.CancelFunc
}

// newFamily constructs a Family and starts its eviction goroutine. Callers
// go through MetricRegistry.NewFamily / reserved-family construction.
func newFamily(baseName string, help string, kind Kind, buckets []float64, resilience Resilience, prefix string, ttl time.Duration, backgroundResilience, longTermResilience int) *Family {
	f := &Family{
		name:                 exposedName(baseName, kind, prefix),
		help:                 help,
		kind:                 kind,
		buckets:              buckets,
		resilience:           resilience,
		ttl:                  ttl,
		backgroundResilience: backgroundResilience,
		longTermResilience:   longTermResilience,
		entries:              make(map[uint64][]*entry),
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel

	go f.evictLoop(ctx)

	return f
}

// Name returns the fully exposed metric name (after _total/prefix rules).
func (f *Family) Name() string { return f.name }

// WithLabels looks up the instrument for labels, creating it if absent,
// and marks it as updated now. The returned handle supports Add; callers
// that need Set (process-metric refresh) use the SetCounter/SetGauge
// methods below.
func (f *Family) WithLabels(labels labelset.LabelSet) *entry {
	hash := labels.Hash()
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range f.entries[hash] {
		if e.labels.Equal(labels) {
			e.touch(now)

			return e
		}
	}

	e := &entry{
		labels:      labels.Clone(),
		inst:        newInstrument(f.kind, f.buckets),
		lastUpdated: now,
	}
	f.entries[hash] = append(f.entries[hash], e)

	return e
}

// Add looks up (or creates) the instrument for labels and adds v to it.
func (f *Family) Add(labels labelset.LabelSet, v float64) error {
	return f.WithLabels(labels).inst.add(v)
}

// Drop removes labels' instrument from the family, used when a scraper
// terminates and its connected-gauge child must disappear immediately.
func (f *Family) Drop(labels labelset.LabelSet) {
	hash := labels.Hash()

	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := f.entries[hash]

	for i, e := range bucket {
		if e.labels.Equal(labels) {
			f.entries[hash] = append(bucket[:i], bucket[i+1:]...)

			return
		}
	}
}

// Close stops the family's eviction goroutine. Families live for the
// process lifetime in production; Close exists for deterministic tests.
func (f *Family) Close() { f.cancel() }

// ExposeTo writes the HELP/TYPE header (if anything is eligible) followed
// by every surviving instrument's lines, and returns the count of sample
// lines written (the HELP/TYPE header lines are not counted).
func (f *Family) ExposeTo(w io.Writer) (int, error) {
	now := time.Now()
	horizon := f.resilience.exposeHorizon(f.ttl, f.backgroundResilience, f.longTermResilience)

	f.mu.Lock()
	snapshot := make([]*entry, 0, len(f.entries))

	for _, bucket := range f.entries {
		snapshot = append(snapshot, bucket...)
	}
	f.mu.Unlock()

	wrote := 0

	for _, e := range snapshot {
		if e.age(now) > horizon {
			continue
		}

		if wrote == 0 {
			if _, err := io.WriteString(w, "# HELP "+f.name+" "+f.help+"\n# TYPE "+f.name+" "+f.kind.String()+"\n"); err != nil {
				return 0, err
			}
		}

		n, err := e.inst.exposeTo(w, f.name, e.labels)
		if err != nil {
			return wrote, err
		}

		wrote += n
	}

	return wrote, nil
}

// evictLoop runs every ttl, dropping entries whose age exceeds the
// family's retain horizon. Eviction work is small and short; it never
// blocks on I/O.
func (f *Family) evictLoop(ctx context.Context) {
	if f.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(f.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.evictOnce()
		}
	}
}

func (f *Family) evictOnce() {
	now := time.Now()
	horizon := f.resilience.retainHorizon(f.ttl, f.backgroundResilience, f.longTermResilience)

	f.mu.Lock()
	defer f.mu.Unlock()

	for hash, bucket := range f.entries {
		kept := bucket[:0]

		for _, e := range bucket {
			if e.age(now) <= horizon {
				kept = append(kept, e)
			}
		}

		if len(kept) == 0 {
			delete(f.entries, hash)
		} else {
			f.entries[hash] = kept
		}
	}
}

// SetCounter and SetGauge support the periodic refresh of process
// metrics, which republish an absolute value (monotonic for counters)
// rather than a delta.
func (f *Family) SetCounter(labels labelset.LabelSet, v float64) {
	e := f.WithLabels(labels)
	if c, ok := e.inst.(*counterInstrument); ok {
		c.set(v)
	}
}

func (f *Family) SetGauge(labels labelset.LabelSet, v float64) {
	e := f.WithLabels(labels)
	if g, ok := e.inst.(*gaugeInstrument); ok {
		g.set(v)
	}
}

// Count returns the number of live instrument entries held in memory,
// exposed or not; used by tests.
func (f *Family) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, bucket := range f.entries {
		n += len(bucket)
	}

	return n
}
