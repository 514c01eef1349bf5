package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndSnapshot(t *testing.T) {
	m := NewMonitor()

	m.Record("/v1/chat/completions", 200, 100*time.Millisecond)
	m.Record("/v1/chat/completions", 502, 200*time.Millisecond)
	m.Record("/v1/models", 200, 5*time.Millisecond)

	report := m.Snapshot()
	require.Equal(t, int64(3), report.Requests)
	require.Equal(t, int64(1), report.Errors)

	chat := report.Endpoints["/v1/chat/completions"]
	require.Equal(t, int64(2), chat.Requests)
	require.Equal(t, int64(1), chat.Errors)
	require.Equal(t, int64(0), report.Endpoints["/v1/models"].Errors)
}

func TestLatencyPercentiles(t *testing.T) {
	m := NewMonitor()
	for i := 1; i <= 100; i++ {
		m.Record("/v1/chat/completions", 200, time.Duration(i)*time.Millisecond)
	}

	report := m.Snapshot()
	require.InDelta(t, 50, report.LatencyP50MS, 1)
	require.InDelta(t, 95, report.LatencyP95MS, 1)
	require.InDelta(t, 99, report.LatencyP99MS, 1)
}

func TestLatencyWindowWraps(t *testing.T) {
	m := NewMonitor()
	// Fill beyond the window; only the newest 1000 samples count.
	for i := 0; i < 1500; i++ {
		m.Record("/x", 200, 10*time.Millisecond)
	}
	report := m.Snapshot()
	require.Equal(t, int64(1500), report.Requests)
	require.InDelta(t, 10, report.LatencyP99MS, 0.5)
}

func TestEmptySnapshot(t *testing.T) {
	report := NewMonitor().Snapshot()
	require.Zero(t, report.Requests)
	require.Zero(t, report.LatencyP95MS)
}
