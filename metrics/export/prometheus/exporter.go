package prometheus

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	sessionguard "github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/kvstore"
	"github.com/MrEthical07/sessionguard/metrics/export/internaldefs"
)

// MetricsSource is what the exporter reads on every scrape.
type MetricsSource interface {
	MetricsSnapshot() sessionguard.MetricsSnapshot
	AuditDropped() uint64
	StoreStats() kvstore.StatsSnapshot
}

// PrometheusExporter renders engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter that reads from engine.
func NewPrometheusExporter(engine *sessionguard.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter over a custom [MetricsSource].
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the rendered metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render formats the current metrics. It returns "" while metrics are disabled.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		counter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		histogram(&b, def.Name, def.Help, internaldefs.CumulativeBuckets(raw))
	}

	store := p.source.StoreStats()
	for _, c := range []struct {
		name, help string
		value      uint64
	}{
		{"sessionguard_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", dropped},
		{"sessionguard_kv_commands_total", "Standalone key-value store commands.", store.Commands},
		{"sessionguard_kv_pipelines_total", "Key-value store pipelines sent.", store.Pipelines},
		{"sessionguard_kv_pipelined_commands_total", "Commands sent inside pipelines.", store.PipelinedCommands},
	} {
		counter(&b, c.name, c.help, c.value)
	}

	return b.String()
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func header(w io.Writer, name, help, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, helpEscaper.Replace(help), name, kind)
}

func counter(w io.Writer, name, help string, value uint64) {
	header(w, name, help, "counter")
	fmt.Fprintf(w, "%s %d\n", name, value)
}

// histogram writes cumulative buckets. Snapshots carry no sum, so _sum is
// always 0.
func histogram(w io.Writer, name, help string, cumulative [8]uint64) {
	header(w, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	fmt.Fprintf(w, "%s_count %d\n%s_sum 0\n", name, cumulative[len(cumulative)-1], name)
}
