package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndGauges(t *testing.T) {
	m := NewMetricsCollector()
	assert.Equal(t, int64(0), m.GetCounterValue("navigator.advance"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter("navigator.advance")
		}()
	}
	wg.Wait()
	m.AddCounter("navigator.advance", 5)
	assert.Equal(t, int64(25), m.GetCounterValue("navigator.advance"))

	m.SetGauge("sessions.active", 3)
	m.AddGauge("sessions.active", -1)
	assert.Equal(t, int64(2), m.GetGauge("sessions.active"))
	assert.Equal(t, int64(0), m.GetGauge("missing"))
}

func TestTimings(t *testing.T) {
	m := NewMetricsCollector()
	m.RecordDuration("story.build", 3*time.Millisecond)
	m.RecordDuration("story.build", time.Millisecond)
	m.RecordDuration("story.build", 2*time.Millisecond)

	snap := m.GetMetrics()
	timings, ok := snap["timings"].(map[string]map[string]int64)
	require.True(t, ok)
	build := timings["story.build"]
	assert.Equal(t, int64(3), build["count"])
	assert.Equal(t, int64(6000), build["sum_us"])
	assert.Equal(t, int64(1000), build["min_us"])
	assert.Equal(t, int64(3000), build["max_us"])
}

func TestGlobalCollectorIsShared(t *testing.T) {
	assert.Same(t, GetMetricsCollector(), GetMetricsCollector())
}
