package sessionguard

import (
	"context"
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricValidateSuccess)
	}
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricValidateSuccess)
		}
	})
}

var hotLoginPathMetrics = [...]MetricID{
	MetricLoginSuccess,
	MetricSessionEvicted,
	MetricSessionCreated,
	MetricDeviceNew,
	MetricValidateSuccess,
	MetricRefreshSuccess,
}

func BenchmarkMetricsIncMixedParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(hotLoginPathMetrics[idx])
			idx++
			if idx == len(hotLoginPathMetrics) {
				idx = 0
			}
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	d := 3 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricValidateLatency, d)
		}
	})
}

func BenchmarkValidate(b *testing.B) {
	env := newTestEnv(b, nil)
	env.addUser(b, "u1", "alice@example.com")
	res, err := env.engine.Login(ipContext("192.0.2.10"), "alice@example.com", testPassword, DeviceInfo{})
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Validate(ctx, res.AccessToken); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}
