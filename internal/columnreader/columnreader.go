// Package columnreader implements the pure (raw-field, ParsedLine) ->
// ParsedLine transforms that make up one line's format definition.
package columnreader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jkroepke/sshlog-exporter/internal/errkind"
	"github.com/jkroepke/sshlog-exporter/internal/parsedline"
)

// Kind names the five ColumnReader variants.
type Kind int

const (
	// Ignore consumes a column without mutating the ParsedLine.
	Ignore Kind = iota
	// Label sets a LabelSet entry from the raw field verbatim.
	Label
	// Number parses the raw field as a decimal float metric observation.
	Number
	// CLFNumber behaves like Number, except "-" is treated as 0.0.
	CLFNumber
	// RequestHeader splits "METHOD URI VERSION" into three labels.
	RequestHeader
)

// Reader is a single configured column: its variant plus the label or
// metric name it produces (empty for Ignore and RequestHeader, which
// produce fixed names).
type Reader struct {
	kind Kind
	name string
}

// NewIgnore returns the Ignore variant.
func NewIgnore() Reader { return Reader{kind: Ignore} }

// NewLabel returns the Label variant writing to the given label name.
func NewLabel(name string) Reader { return Reader{kind: Label, name: name} }

// NewNumber returns the Number variant writing to the given metric name.
func NewNumber(name string) Reader { return Reader{kind: Number, name: name} }

// NewCLFNumber returns the CLFNumber variant writing to the given metric name.
func NewCLFNumber(name string) Reader { return Reader{kind: CLFNumber, name: name} }

// NewRequestHeader returns the RequestHeader variant.
func NewRequestHeader() Reader { return Reader{kind: RequestHeader} }

// Kind returns the reader's variant.
func (r Reader) Kind() Kind { return r.kind }

// Name returns the configured label or metric name (empty for Ignore and
// RequestHeader).
func (r Reader) Name() string { return r.name }

// errParse builds a parse_error for a single column failure.
func errParse(format string, args ...any) error {
	return errkind.New(errkind.Parse, fmt.Errorf(format, args...))
}

// Apply consumes raw and mutates line accordingly. The line is dropped by
// the caller (no partial update) whenever Apply returns a non-nil error.
func (r Reader) Apply(raw string, line *parsedline.ParsedLine) error {
	switch r.kind {
	case Ignore:
		return nil
	case Label:
		line.Labels.Set(r.name, raw)

		return nil
	case Number:
		return applyNumber(r.name, raw, line)
	case CLFNumber:
		if raw == "-" {
			line.Metrics[r.name] = 0.0

			return nil
		}

		return applyNumber(r.name, raw, line)
	case RequestHeader:
		return applyRequestHeader(raw, line)
	default:
		return errParse("columnreader: unknown reader kind %d", r.kind)
	}
}

func applyNumber(name, raw string, line *parsedline.ParsedLine) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return errParse("columnreader: invalid number %q for metric %q: %w", raw, name, err)
	}

	line.Metrics[name] = v

	return nil
}

func applyRequestHeader(raw string, line *parsedline.ParsedLine) error {
	parts := strings.SplitN(raw, " ", 3)
	if len(parts) != 3 {
		return errParse("columnreader: request_header expects exactly 3 space-separated parts, got %d in %q", len(parts), raw)
	}

	method, uri, version := parts[0], parts[1], parts[2]
	if strings.Contains(version, " ") {
		return errParse("columnreader: request_header expects exactly 3 space-separated parts, got more in %q", raw)
	}

	if question := strings.IndexByte(uri, '?'); question >= 0 {
		uri = uri[:question]
	}

	line.Labels.Set("request_method", method)
	line.Labels.Set("request_uri", uri)
	line.Labels.Set("request_http_version", version)

	return nil
}

// ErrColumnCountMismatch is wrapped into a parse_error when a record's
// field count does not match the configured reader count.
var ErrColumnCountMismatch = errors.New("columnreader: record column count does not match configured reader count")

// ApplyLine runs readers over fields in order, producing a fully populated
// ParsedLine. Any reader error aborts immediately with no partial mutation
// visible to the caller beyond what already landed in line — callers that
// need strict "drop on error" semantics should discard line on a non-nil
// return, which is always safe because ParsedLine carries no identity
// beyond the current record.
func ApplyLine(readers []Reader, fields []string, line *parsedline.ParsedLine) error {
	if len(fields) != len(readers) {
		return errParse("%w: got %d fields, want %d", ErrColumnCountMismatch, len(fields), len(readers))
	}

	for i, reader := range readers {
		if err := reader.Apply(fields[i], line); err != nil {
			return err
		}
	}

	return nil
}
