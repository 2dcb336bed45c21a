// Package metrics emits loggate counters and gauges through the global
// gofulmen telemetry system. Every call is a no-op until serve installs it.
package metrics

import (
	"strconv"

	"github.com/loggate/loggate/internal/observability"
)

// HTTP surface metrics.
const (
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
)

func counter(name string, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, labels)
	}
}

func gauge(name string, value float64, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(name, value, labels)
	}
}

// RecordError counts an error envelope written to a client.
func RecordError(errorCode string, httpStatus int) {
	counter(ErrorsTotalName, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a handler panic caught by the recovery middleware.
func RecordPanic() {
	counter(PanicsTotalName, nil)
}

// RecordErrorByEndpoint counts an error against its route pattern.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	counter(ErrorsByEndpointName, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}
