// Package otel binds engine counters to OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter,
// one Int64ObservableGauge per latency bucket and counters for key-value store
// traffic. A single callback reads the engine snapshot on each collection.
// Callers own the MeterProvider.
package otel
