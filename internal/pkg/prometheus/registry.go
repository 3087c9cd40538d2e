// Package prometheus holds the process-wide metrics registry, kept
// separate from the default global so only metrics this program
// declares are exported.
package prometheus

import "github.com/prometheus/client_golang/prometheus"

var registry = prometheus.NewRegistry()

func GetRegistry() *prometheus.Registry {
	return registry
}
