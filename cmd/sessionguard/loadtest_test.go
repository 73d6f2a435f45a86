package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	if got := percentile(samples, 0); got != 1 {
		t.Fatalf("p0 = %d", got)
	}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %d", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %d", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty = %d", got)
	}
}

func TestRunLoadTestAgainstMiniredis(t *testing.T) {
	var out bytes.Buffer
	err := runLoadTest(context.Background(), &out, loadTestOptions{
		sessions:    50,
		concurrency: 4,
		ops:         200,
		ttl:         time.Minute,
		throttle:    time.Second,
	})
	if err != nil {
		t.Fatalf("runLoadTest failed: %v", err)
	}

	report := out.String()
	for _, want := range []string{"create: ops=50 failures=0", "get: ops=200 failures=0", "refresh: ops=200 failures=0"} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "useradd", "loadtest"} {
		if !names[want] {
			t.Fatalf("missing %s command", want)
		}
	}
}
