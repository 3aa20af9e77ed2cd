// metrics.go - In-process counters for operational visibility.
package server

import "sync"

// Metrics holds application counters. Everything is a plain int64
// behind one mutex; the exporter takes a snapshot for rendering.
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	requestsTotal    int64
	requestErrors4xx int64
	requestErrors5xx int64

	// Auth metrics
	loginSuccessTotal int64
	loginFailureTotal int64

	// Domain metrics
	transcriptsCreatedTotal int64
	transcriptsDeletedTotal int64
	summariesGeneratedTotal int64
	summaryCacheHitsTotal   int64
	rateLimitedTotal        int64
	webhookEventsTotal      int64
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// GetMetrics returns the process-wide metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{}
	})
	return metrics
}

// RecordRequest counts a completed request by status class.
func (m *Metrics) RecordRequest(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	switch {
	case status >= 500:
		m.requestErrors5xx++
	case status >= 400:
		m.requestErrors4xx++
	}
}

func (m *Metrics) IncLoginSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginSuccessTotal++
}

func (m *Metrics) IncLoginFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginFailureTotal++
}

func (m *Metrics) IncTranscriptCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcriptsCreatedTotal++
}

func (m *Metrics) IncTranscriptDeleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcriptsDeletedTotal++
}

func (m *Metrics) IncSummaryGenerated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summariesGeneratedTotal++
}

func (m *Metrics) IncSummaryCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaryCacheHitsTotal++
}

func (m *Metrics) IncRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitedTotal++
}

func (m *Metrics) IncWebhookEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhookEventsTotal++
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	RequestsTotal    int64
	RequestErrors4xx int64
	RequestErrors5xx int64

	LoginSuccessTotal int64
	LoginFailureTotal int64

	TranscriptsCreatedTotal int64
	TranscriptsDeletedTotal int64
	SummariesGeneratedTotal int64
	SummaryCacheHitsTotal   int64
	RateLimitedTotal        int64
	WebhookEventsTotal      int64
}

// Snapshot returns a consistent copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		RequestsTotal:           m.requestsTotal,
		RequestErrors4xx:        m.requestErrors4xx,
		RequestErrors5xx:        m.requestErrors5xx,
		LoginSuccessTotal:       m.loginSuccessTotal,
		LoginFailureTotal:       m.loginFailureTotal,
		TranscriptsCreatedTotal: m.transcriptsCreatedTotal,
		TranscriptsDeletedTotal: m.transcriptsDeletedTotal,
		SummariesGeneratedTotal: m.summariesGeneratedTotal,
		SummaryCacheHitsTotal:   m.summaryCacheHitsTotal,
		RateLimitedTotal:        m.rateLimitedTotal,
		WebhookEventsTotal:      m.webhookEventsTotal,
	}
}
