// Package labelset implements the ordered, hashable label collection used
// as the key for every metric instrument.
package labelset

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// pair is a single ordered (key, value) entry.
type pair struct {
	key   string
	value string
}

// LabelSet is an insertion-ordered sequence of (key, value) pairs plus a
// mandatory environment value, which is always rendered first. It is
// value-equal and hashable: two LabelSets with the same environment and
// the same ordered pairs compare and hash equal.
//
// LabelSet is built up while parsing a single line and then treated as
// immutable once it becomes a metricstore key.
type LabelSet struct {
	environment string
	pairs       []pair
}

// New creates a LabelSet with the mandatory environment label. Calling New
// with an empty environment is a programming error and panics, matching
// spec's "constructing with empty environment is a programming error."
func New(environment string) LabelSet {
	if environment == "" {
		panic("labelset: environment must not be empty")
	}

	return LabelSet{environment: environment}
}

// Environment returns the mandatory environment value.
func (l LabelSet) Environment() string {
	return l.environment
}

// Set overwrites the value of an existing key in place, or appends a new
// (key, value) pair if the key is not yet present. Setting "environment"
// directly is a programming error and panics.
func (l *LabelSet) Set(key, value string) {
	if key == "environment" {
		panic("labelset: \"environment\" is a reserved key, use New/Environment")
	}

	for i := range l.pairs {
		if l.pairs[i].key == key {
			l.pairs[i].value = value

			return
		}
	}

	l.pairs = append(l.pairs, pair{key: key, value: value})
}

// Get returns the value of key and whether it was present.
func (l LabelSet) Get(key string) (string, bool) {
	for _, p := range l.pairs {
		if p.key == key {
			return p.value, true
		}
	}

	return "", false
}

// Clone returns a deep copy of l.
func (l LabelSet) Clone() LabelSet {
	out := LabelSet{environment: l.environment}
	if len(l.pairs) > 0 {
		out.pairs = append([]pair(nil), l.pairs...)
	}

	return out
}

// Equal reports whether l and other share the same environment and the
// same ordered sequence of (key, value) pairs.
func (l LabelSet) Equal(other LabelSet) bool {
	if l.environment != other.environment || len(l.pairs) != len(other.pairs) {
		return false
	}

	for i := range l.pairs {
		if l.pairs[i] != other.pairs[i] {
			return false
		}
	}

	return true
}

// Hash returns a content hash consistent with Equal: equal LabelSets
// always hash equal. It is used by metricstore as a fast map key; exact
// equality is still checked on collision.
func (l LabelSet) Hash() uint64 {
	h := xxhash.New()

	_, _ = h.WriteString(l.environment)
	_, _ = h.Write([]byte{0})

	for _, p := range l.pairs {
		_, _ = h.WriteString(p.key)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(p.value)
		_, _ = h.Write([]byte{0})
	}

	return h.Sum64()
}

// escape applies the Prometheus label-value escaping rules: backslash,
// newline, and double-quote are escaped in that order.
func escape(value string) string {
	if !strings.ContainsAny(value, "\\\n\"") {
		return value
	}

	replacer := strings.NewReplacer(
		`\`, `\\`,
		"\n", `\n`,
		`"`, `\"`,
	)

	return replacer.Replace(value)
}

// Render writes the Prometheus label-list body: environment="<env>", then
// (if le is non-empty) le="<le>", then each pair in insertion order.
func (l LabelSet) Render(le string) string {
	var b strings.Builder

	b.Grow(32 + 16*len(l.pairs))

	b.WriteString(`environment="`)
	b.WriteString(escape(l.environment))
	b.WriteByte('"')

	if le != "" {
		b.WriteString(`,le="`)
		b.WriteString(escape(le))
		b.WriteByte('"')
	}

	for _, p := range l.pairs {
		b.WriteByte(',')
		b.WriteString(p.key)
		b.WriteString(`="`)
		b.WriteString(escape(p.value))
		b.WriteByte('"')
	}

	return b.String()
}

// WithTarget returns a clone of l with an appended "target" label. Used by
// the lines_parsed_per_target / parser_errors_per_target reserved families.
func (l LabelSet) WithTarget(target string) LabelSet {
	out := l.Clone()
	out.Set("target", target)

	return out
}
