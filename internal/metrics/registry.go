// Package metrics provides the process-wide metrics registry described in
// the data model: a mapping from (name, sorted tags) to either a monotonic
// counter or an append-only latency sample list. Mutated only from the
// event-loop thread, so no internal locking is required beyond what lets
// tests and occasional cross-goroutine reads stay safe.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is a process-wide metrics sink. The zero value is not usable;
// construct with New.
type Registry struct {
	mu        sync.Mutex
	counters  map[string]int64
	latencies map[string][]float64
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		counters:  make(map[string]int64),
		latencies: make(map[string][]float64),
	}
}

// Increment bumps a named counter by one.
func (r *Registry) Increment(name string, tags map[string]string) {
	key := formatKey(name, tags)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key]++
}

// RecordLatency appends a latency sample in milliseconds.
func (r *Registry) RecordLatency(name string, valueMs float64, tags map[string]string) {
	key := formatKey(name, tags)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies[key] = append(r.latencies[key], valueMs)
}

// Counter returns the current value of a counter and whether it exists.
func (r *Registry) Counter(name string, tags map[string]string) (int64, bool) {
	key := formatKey(name, tags)
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.counters[key]
	return v, ok
}

// LatencySamples returns a copy of the recorded latency samples for name.
func (r *Registry) LatencySamples(name string, tags map[string]string) []float64 {
	key := formatKey(name, tags)
	r.mu.Lock()
	defer r.mu.Unlock()
	samples := r.latencies[key]
	out := make([]float64, len(samples))
	copy(out, samples)
	return out
}

// LastLatency returns the most recently recorded latency sample, if any.
func (r *Registry) LastLatency(name string, tags map[string]string) (float64, bool) {
	samples := r.LatencySamples(name, tags)
	if len(samples) == 0 {
		return 0, false
	}
	return samples[len(samples)-1], true
}

func formatKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, tags[k]))
	}
	return fmt.Sprintf("%s[%s]", name, strings.Join(parts, ","))
}
