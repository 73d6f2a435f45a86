package otel

import (
	"context"
	"errors"
	"fmt"

	sessionguard "github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/kvstore"
	"github.com/MrEthical07/sessionguard/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is what the exporter reads on every collection.
type MetricsSource interface {
	MetricsSnapshot() sessionguard.MetricsSnapshot
	AuditDropped() uint64
	StoreStats() kvstore.StatsSnapshot
}

// reading is one collection pass over the source.
type reading struct {
	snapshot sessionguard.MetricsSnapshot
	dropped  uint64
	store    kvstore.StatsSnapshot
}

type counter struct {
	instrument metric.Int64ObservableCounter
	value      func(r *reading) uint64
}

type histogram struct {
	id      sessionguard.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// sourceCounters are exported next to the engine counters and read from the
// other parts of the source.
var sourceCounters = []struct {
	name, help string
	value      func(r *reading) uint64
}{
	{"sessionguard_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", func(r *reading) uint64 { return r.dropped }},
	{"sessionguard_kv_commands_total", "Standalone key-value store commands.", func(r *reading) uint64 { return r.store.Commands }},
	{"sessionguard_kv_pipelines_total", "Key-value store pipelines sent.", func(r *reading) uint64 { return r.store.Pipelines }},
	{"sessionguard_kv_pipelined_commands_total", "Commands sent inside pipelines.", func(r *reading) uint64 { return r.store.PipelinedCommands }},
}

// OTelExporter publishes engine metrics as OpenTelemetry observable
// instruments, read on every collection.
type OTelExporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []counter
	histograms   []histogram
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *sessionguard.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments on meter that read from source.
func NewOTelExporterFromSource(meter metric.Meter, source MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	addCounter := func(name, help string, value func(r *reading) uint64) error {
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
		if err != nil {
			return fmt.Errorf("create observable counter %s: %w", name, err)
		}
		e.counters = append(e.counters, counter{instrument: ins, value: value})
		observables = append(observables, ins)
		return nil
	}
	gauge := func(name, help string) (metric.Int64ObservableGauge, error) {
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("create observable gauge %s: %w", name, err)
		}
		observables = append(observables, ins)
		return ins, nil
	}

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		if err := addCounter(def.Name, def.Help, func(r *reading) uint64 { return r.snapshot.Counters[id] }); err != nil {
			return nil, err
		}
	}
	for _, c := range sourceCounters {
		if err := addCounter(c.name, c.help, c.value); err != nil {
			return nil, err
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		h := histogram{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			ins, err := gauge(def.Name+"_bucket_le_"+suffix, "Cumulative histogram bucket count.")
			if err != nil {
				return nil, err
			}
			h.buckets[i] = ins
		}
		count, err := gauge(def.Name+"_count", "Histogram total sample count.")
		if err != nil {
			return nil, err
		}
		h.count = count
		e.histograms = append(e.histograms, h)
	}

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	r := &reading{
		snapshot: e.source.MetricsSnapshot(),
		dropped:  e.source.AuditDropped(),
		store:    e.source.StoreStats(),
	}
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(c.value(r)))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(r.snapshot.Histograms[h.id]))
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets[i], int64(v))
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
