// Package parsedline holds the transient per-line parse buffer shared by
// the columnreader variants and the logparser.
package parsedline

import "github.com/jkroepke/sshlog-exporter/internal/labelset"

// ParsedLine is the mutable buffer a line's ColumnReaders write into. Its
// lifetime is exactly one CSV record.
type ParsedLine struct {
	Labels  labelset.LabelSet
	Metrics map[string]float64
}

// New returns a ParsedLine initialised with the target's environment
// label and an empty metric map.
func New(environment string) *ParsedLine {
	return &ParsedLine{
		Labels:  labelset.New(environment),
		Metrics: make(map[string]float64, 4),
	}
}
