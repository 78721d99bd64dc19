// internal/utils/metrics.go
package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects application metrics
type MetricsCollector struct {
	counters map[string]*int64
	gauges   map[string]*int64
	timings  map[string]*Timing

	mu sync.RWMutex
}

// Timing tracks count, total, min and max of a duration series in microseconds.
type Timing struct {
	mu    sync.Mutex
	count int64
	sum   int64
	min   int64
	max   int64
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the global metrics collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

// NewMetricsCollector creates an empty collector; tests use their own.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters: make(map[string]*int64),
		gauges:   make(map[string]*int64),
		timings:  make(map[string]*Timing),
	}
}

// cell returns the value cell for name, creating it on first use.
func (m *MetricsCollector) cell(set map[string]*int64, name string) *int64 {
	m.mu.RLock()
	v, ok := set[name]
	m.mu.RUnlock()
	if ok {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok = set[name]; !ok {
		v = new(int64)
		set[name] = v
	}
	return v
}

// IncrementCounter adds one to a counter.
func (m *MetricsCollector) IncrementCounter(name string) {
	atomic.AddInt64(m.cell(m.counters, name), 1)
}

// AddCounter adds value to a counter.
func (m *MetricsCollector) AddCounter(name string, value int64) {
	atomic.AddInt64(m.cell(m.counters, name), value)
}

// GetCounterValue reads a counter; unknown counters are zero.
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	v, ok := m.counters[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v)
}

// SetGauge sets a gauge.
func (m *MetricsCollector) SetGauge(name string, value int64) {
	atomic.StoreInt64(m.cell(m.gauges, name), value)
}

// AddGauge moves a gauge by delta.
func (m *MetricsCollector) AddGauge(name string, delta int64) {
	atomic.AddInt64(m.cell(m.gauges, name), delta)
}

// GetGauge reads a gauge; unknown gauges are zero.
func (m *MetricsCollector) GetGauge(name string) int64 {
	m.mu.RLock()
	v, ok := m.gauges[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v)
}

// RecordDuration adds d to the named timing series.
func (m *MetricsCollector) RecordDuration(name string, d time.Duration) {
	m.mu.RLock()
	t, ok := m.timings[name]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		if t, ok = m.timings[name]; !ok {
			t = &Timing{}
			m.timings[name] = t
		}
		m.mu.Unlock()
	}

	us := d.Microseconds()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 || us < t.min {
		t.min = us
	}
	if us > t.max {
		t.max = us
	}
	t.count++
	t.sum += us
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, v := range m.counters {
		counters[name] = atomic.LoadInt64(v)
	}

	gauges := make(map[string]int64, len(m.gauges))
	for name, v := range m.gauges {
		gauges[name] = atomic.LoadInt64(v)
	}

	timings := make(map[string]map[string]int64, len(m.timings))
	for name, t := range m.timings {
		t.mu.Lock()
		timings[name] = map[string]int64{
			"count":  t.count,
			"sum_us": t.sum,
			"min_us": t.min,
			"max_us": t.max,
		}
		t.mu.Unlock()
	}

	return map[string]interface{}{
		"counters": counters,
		"gauges":   gauges,
		"timings":  timings,
	}
}
