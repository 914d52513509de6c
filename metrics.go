package authkit

import "sync/atomic"

// MetricID identifies one of the fixed operation counters.
type MetricID uint16

const (
	// MetricAccessIssued counts stateless access-token issuances.
	MetricAccessIssued MetricID = iota
	// MetricRefreshIssued counts refresh-token issuances (registry writes).
	MetricRefreshIssued
	// MetricVerifySuccess counts tokens that passed the full verification gate.
	MetricVerifySuccess
	// MetricVerifyFailure counts rejections of any kind at the gate.
	MetricVerifyFailure
	// MetricRefreshSuccess counts successful refresh exchanges.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh exchanges rejected for any reason.
	MetricRefreshFailure
	// MetricRefreshSuperseded counts refresh rejections caused specifically
	// by a registry mismatch (a superseded token presented again).
	MetricRefreshSuperseded
	// MetricTokenRevoked counts blacklist writes.
	MetricTokenRevoked
	// MetricSubjectRevoked counts registry deletions via RevokeAllForSubject.
	MetricSubjectRevoked
	// MetricStoreUnavailable counts operations degraded by a store outage.
	MetricStoreUnavailable

	metricCount
)

// String returns a stable snake_case name for the metric.
func (id MetricID) String() string {
	switch id {
	case MetricAccessIssued:
		return "access_issued"
	case MetricRefreshIssued:
		return "refresh_issued"
	case MetricVerifySuccess:
		return "verify_success"
	case MetricVerifyFailure:
		return "verify_failure"
	case MetricRefreshSuccess:
		return "refresh_success"
	case MetricRefreshFailure:
		return "refresh_failure"
	case MetricRefreshSuperseded:
		return "refresh_superseded"
	case MetricTokenRevoked:
		return "token_revoked"
	case MetricSubjectRevoked:
		return "subject_revoked"
	case MetricStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Metrics is a fixed set of lock-free operation counters.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments a counter. Unknown IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricCount),
	}
	if m == nil {
		return snapshot
	}
	for id := MetricID(0); id < metricCount; id++ {
		snapshot.Counters[id] = m.counters[id].Load()
	}
	return snapshot
}
