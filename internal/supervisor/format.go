package supervisor

import (
	"fmt"

	"github.com/jkroepke/sshlog-exporter/internal/columnreader"
	"github.com/jkroepke/sshlog-exporter/internal/config"
	"github.com/jkroepke/sshlog-exporter/internal/errkind"
	"github.com/jkroepke/sshlog-exporter/internal/metricstore"
)

// BuildFormat turns global.format into the ordered ColumnReader vector
// plus the MetricFamily for every number/clf_number column, registering
// each family on registry. Label, request_header and ignore columns
// produce a Reader but no family.
func BuildFormat(global config.Global, registry *metricstore.Registry) ([]columnreader.Reader, map[string]*metricstore.Family, error) {
	readers := make([]columnreader.Reader, 0, len(global.Format))
	families := make(map[string]*metricstore.Family, len(global.Format))

	for _, entry := range global.Format {
		if entry.Ignore {
			readers = append(readers, columnreader.NewIgnore())

			continue
		}

		switch entry.Type {
		case "label":
			readers = append(readers, columnreader.NewLabel(entry.Name))
		case "request_header":
			readers = append(readers, columnreader.NewRequestHeader())
		case "number", "clf_number":
			family, err := newNumberFamily(entry, global, registry)
			if err != nil {
				return nil, nil, err
			}

			families[entry.Name] = family

			if entry.Type == "number" {
				readers = append(readers, columnreader.NewNumber(entry.Name))
			} else {
				readers = append(readers, columnreader.NewCLFNumber(entry.Name))
			}
		default:
			return nil, nil, fmt.Errorf("supervisor: format entry %q has unknown type %q", entry.Name, entry.Type)
		}
	}

	return readers, families, nil
}

func newNumberFamily(entry config.FormatEntry, global config.Global, registry *metricstore.Registry) (*metricstore.Family, error) {
	help := fmt.Sprintf("Observed values for column %q.", entry.Name)

	if entry.Histogram == "" {
		family, err := registry.NewFamily(entry.Name, help, metricstore.Counter, nil, metricstore.Weak)
		if err != nil {
			return nil, errkind.New(errkind.Configuration, fmt.Errorf("supervisor: registering %q: %w", entry.Name, err))
		}

		return family, nil
	}

	bounds := []float64(global.Histograms[entry.Histogram])

	family, err := registry.NewFamily(entry.Name, help, metricstore.Histogram, bounds, metricstore.Weak)
	if err != nil {
		return nil, errkind.New(errkind.Configuration, fmt.Errorf("supervisor: registering %q: %w", entry.Name, err))
	}

	return family, nil
}
