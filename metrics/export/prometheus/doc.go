// Package prometheus renders engine counters, the validate latency histogram
// and key-value store call counters in Prometheus text exposition format.
//
// Counter names are prefixed sessionguard_ and end in _total. Callers mount
// [PrometheusExporter.Handler]; nothing is registered globally.
package prometheus
