package stats

import (
	"sort"
	"sync"
	"time"
)

const latencyWindow = 1000

// Monitor accumulates request counters and a sliding latency window for
// the stats surface. All methods are safe for concurrent use.
type Monitor struct {
	mu        sync.Mutex
	startedAt time.Time

	total  int64
	errors int64

	perEndpoint map[string]*endpointCounters

	latencies []time.Duration // ring buffer, most recent latencyWindow samples
	latIdx    int
	latFull   bool
}

type endpointCounters struct {
	Requests int64
	Errors   int64
}

// EndpointStats is the per-endpoint view exposed on /stats.
type EndpointStats struct {
	Requests int64 `json:"requests"`
	Errors   int64 `json:"errors"`
}

// Report is the aggregate view exposed on /stats.
type Report struct {
	UptimeSec    int64                    `json:"uptime_sec"`
	Requests     int64                    `json:"requests"`
	Errors       int64                    `json:"errors"`
	LatencyP50MS float64                  `json:"latency_p50_ms"`
	LatencyP95MS float64                  `json:"latency_p95_ms"`
	LatencyP99MS float64                  `json:"latency_p99_ms"`
	Endpoints    map[string]EndpointStats `json:"endpoints"`
}

func NewMonitor() *Monitor {
	return &Monitor{
		startedAt:   time.Now(),
		perEndpoint: make(map[string]*endpointCounters),
		latencies:   make([]time.Duration, latencyWindow),
	}
}

// Record notes one completed request against its route template.
func (m *Monitor) Record(endpoint string, status int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	ep := m.perEndpoint[endpoint]
	if ep == nil {
		ep = &endpointCounters{}
		m.perEndpoint[endpoint] = ep
	}
	ep.Requests++
	if status >= 400 {
		m.errors++
		ep.Errors++
	}

	m.latencies[m.latIdx] = latency
	m.latIdx++
	if m.latIdx == latencyWindow {
		m.latIdx = 0
		m.latFull = true
	}
}

// Snapshot builds the current report.
func (m *Monitor) Snapshot() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.latIdx
	if m.latFull {
		n = latencyWindow
	}
	sorted := make([]time.Duration, n)
	copy(sorted, m.latencies[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	report := Report{
		UptimeSec:    int64(time.Since(m.startedAt).Seconds()),
		Requests:     m.total,
		Errors:       m.errors,
		LatencyP50MS: percentileMS(sorted, 0.50),
		LatencyP95MS: percentileMS(sorted, 0.95),
		LatencyP99MS: percentileMS(sorted, 0.99),
		Endpoints:    make(map[string]EndpointStats, len(m.perEndpoint)),
	}
	for name, ep := range m.perEndpoint {
		report.Endpoints[name] = EndpointStats{Requests: ep.Requests, Errors: ep.Errors}
	}
	return report
}

// percentileMS uses nearest-rank on an ascending sample.
func percentileMS(sorted []time.Duration, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(q*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return float64(sorted[rank].Microseconds()) / 1000.0
}
