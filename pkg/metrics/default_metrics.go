//go:build metrics

package metrics

// Default returns the collector used when none is configured
func Default() Collector {
	return NewCollector()
}
