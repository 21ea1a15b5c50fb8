package metricstore

// Kind identifies the Prometheus metric type a Family exposes.
type Kind int

const (
	// Counter is a monotonic, non-negative accumulator.
	Counter Kind = iota
	// Gauge accepts any-sign Add and absolute Set.
	Gauge
	// Histogram tracks a sum, a count, and per-bucket cumulative counts.
	Histogram
	// Summary tracks a sum and an observation count.
	Summary
)

// String renders the Prometheus TYPE name.
func (k Kind) String() string {
	switch k {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	case Summary:
		return "summary"
	default:
		return "untyped"
	}
}
