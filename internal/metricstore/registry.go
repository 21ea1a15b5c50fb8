package metricstore

import (
	"fmt"
	"sync"
	"time"
)

// Reserved family names, collision-checked at configuration time.
const (
	NameParserErrors          = "parser_errors"
	NameLinesParsed           = "lines_parsed"
	NameParserErrorsPerTarget = "parser_errors_per_target"
	NameLinesParsedPerTarget  = "lines_parsed_per_target"
	NameConnected             = "connected"
	NameSSHBytesIn            = "ssh_bytes_in"
)

// ReservedNames lists every metric name a configuration-defined family may
// not reuse.
var ReservedNames = []string{
	NameParserErrors,
	NameLinesParsed,
	NameParserErrorsPerTarget,
	NameLinesParsedPerTarget,
	NameConnected,
	NameSSHBytesIn,
}

// Options configures process-wide defaults. TTL and Prefix are read-only
// after Registry construction, matching the data model's "global mutable
// state" note.
type Options struct {
	TTL                  time.Duration
	Prefix               string
	BackgroundResilience int
	LongTermResilience   int
}

// DefaultOptions mirrors global.ttl=60s, background_resilience=1,
// long_term_resilience=10 from the configuration schema.
func DefaultOptions() Options {
	return Options{
		TTL:                  60 * time.Second,
		BackgroundResilience: 1,
		LongTermResilience:   10,
	}
}

// Registry is the process-wide MetricFamily directory: the source of the
// six reserved families plus every family created from the configured
// format.
type Registry struct {
	opts Options

	mu        sync.RWMutex
	families  map[string]*Family
	baseNames map[string]struct{} // configured base names, pre-suffix, for collision checks

	ParserErrors          *Family
	LinesParsed           *Family
	ParserErrorsPerTarget *Family
	LinesParsedPerTarget  *Family
	Connected             *Family
	SSHBytesIn            *Family
}

// NewRegistry builds the registry and its six reserved families.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		opts:      opts,
		families:  make(map[string]*Family),
		baseNames: make(map[string]struct{}),
	}

	r.ParserErrors = r.mustReserved(NameParserErrors, "Total number of lines that failed to parse.", Counter, LongTerm)
	r.LinesParsed = r.mustReserved(NameLinesParsed, "Total number of successfully parsed lines.", Counter, LongTerm)
	r.ParserErrorsPerTarget = r.mustReserved(NameParserErrorsPerTarget, "Total number of lines that failed to parse, per target.", Counter, LongTerm)
	r.LinesParsedPerTarget = r.mustReserved(NameLinesParsedPerTarget, "Total number of successfully parsed lines, per target.", Counter, LongTerm)
	r.Connected = r.mustReserved(NameConnected, "Whether a target's SSH tail session is currently connected.", Gauge, Zombie)
	r.SSHBytesIn = r.mustReserved(NameSSHBytesIn, "Total bytes read from SSH tail streams.", Counter, LongTerm)

	return r
}

func (r *Registry) mustReserved(name, help string, kind Kind, resilience Resilience) *Family {
	f := newFamily(name, help, kind, nil, resilience, r.opts.Prefix, r.opts.TTL, r.opts.BackgroundResilience, r.opts.LongTermResilience)
	r.families[f.Name()] = f

	return f
}

// NewFamily validates and registers a configuration-defined family. It
// returns a configuration_error (via the plain error here; callers wrap
// with errkind.Configuration) if the base name is invalid, reserved, or
// already used, or if a Histogram's bounds contain no finite bound. A
// Histogram requested with no bounds at all gets DefaultBuckets.
func (r *Registry) NewFamily(baseName, help string, kind Kind, buckets []float64, resilience Resilience) (*Family, error) {
	if err := ValidateBaseName(baseName); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, used := r.baseNames[baseName]; used {
		return nil, fmt.Errorf("metricstore: metric name %q is already configured", baseName)
	}

	for _, reserved := range ReservedNames {
		if baseName == reserved {
			return nil, fmt.Errorf("metricstore: metric name %q collides with a reserved family", baseName)
		}
	}

	if kind == Histogram {
		buckets = NormalizeBuckets(buckets)
		if len(buckets) < 2 {
			return nil, fmt.Errorf("metricstore: histogram %q needs at least one finite bucket bound", baseName)
		}
	} else {
		buckets = nil
	}

	f := newFamily(baseName, help, kind, buckets, resilience, r.opts.Prefix, r.opts.TTL, r.opts.BackgroundResilience, r.opts.LongTermResilience)

	exposedKey := f.Name()
	if _, collide := r.families[exposedKey]; collide {
		return nil, fmt.Errorf("metricstore: exposed metric name %q is already configured", exposedKey)
	}

	r.baseNames[baseName] = struct{}{}
	r.families[exposedKey] = f

	return f, nil
}

// Families returns every registered family, reserved and configured.
func (r *Registry) Families() []*Family {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Family, 0, len(r.families))
	for _, f := range r.families {
		out = append(out, f)
	}

	return out
}

// Options returns the registry's read-only global settings.
func (r *Registry) Options() Options { return r.opts }

// Close stops every family's eviction goroutine. Used by tests and by
// graceful process shutdown.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.families {
		f.Close()
	}
}
