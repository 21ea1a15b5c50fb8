package config

import (
	"fmt"

	"github.com/jkroepke/sshlog-exporter/internal/metricstore"
)

var validColumnTypes = map[string]bool{
	"number":         true,
	"clf_number":     true,
	"label":          true,
	"request_header": true,
}

// Validate performs every configuration_error check against the format
// and histogram definitions before any scraper starts: unknown column
// types, a histogram suffix on a label column, metric names colliding
// with a reserved family or failing the base-name rule, and a histogram
// suffix referencing an undefined bucket spec.
func Validate(conf Config) error {
	if len(conf.Global.Separator) > 1 {
		return fmt.Errorf("config: global.separator must be a single character, got %q", conf.Global.Separator)
	}

	if len(conf.Global.Quote) > 1 {
		return fmt.Errorf("config: global.quote must be a single character, got %q", conf.Global.Quote)
	}

	for _, entry := range conf.Global.Format {
		if entry.Ignore {
			continue
		}

		if !validColumnTypes[entry.Type] {
			return fmt.Errorf("config: format entry %q has unknown type %q", entry.Name, entry.Type)
		}

		if entry.Type == "label" {
			if entry.Histogram != "" {
				return fmt.Errorf("config: format entry %q is a label column and cannot carry a histogram", entry.Name)
			}

			continue
		}

		if entry.Type == "request_header" {
			continue
		}

		if err := metricstore.ValidateBaseName(entry.Name); err != nil {
			return fmt.Errorf("config: %w", err)
		}

		for _, reserved := range metricstore.ReservedNames {
			if entry.Name == reserved {
				return fmt.Errorf("config: metric name %q collides with a reserved family", entry.Name)
			}
		}

		if entry.Histogram != "" {
			if _, ok := conf.Global.Histograms[entry.Histogram]; !ok {
				return fmt.Errorf("config: format entry %q references undefined histogram spec %q", entry.Name, entry.Histogram)
			}
		}
	}

	for name, env := range conf.SSH.Environments {
		if len(env.Hosts) == 0 {
			return fmt.Errorf("config: ssh environment %q has no hosts configured", name)
		}
	}

	return nil
}
