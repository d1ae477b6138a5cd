package pinauth

import "sync/atomic"

// MetricID identifies a specific counter in the in-process metrics system.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricPinLoginSuccess is an exported constant or variable used by the authentication engine.
	MetricPinLoginSuccess MetricID = iota
	// MetricPinLoginFailure is an exported constant or variable used by the authentication engine.
	MetricPinLoginFailure
	// MetricPinLoginRateLimited is an exported constant or variable used by the authentication engine.
	MetricPinLoginRateLimited
	// MetricSessionCreated is an exported constant or variable used by the authentication engine.
	MetricSessionCreated
	// MetricCodeSent is an exported constant or variable used by the authentication engine.
	MetricCodeSent
	// MetricCodeSendFailure is an exported constant or variable used by the authentication engine.
	MetricCodeSendFailure
	// MetricCodeVerifySuccess is an exported constant or variable used by the authentication engine.
	MetricCodeVerifySuccess
	// MetricCodeVerifyFailure is an exported constant or variable used by the authentication engine.
	MetricCodeVerifyFailure
	// MetricCodeExpired is an exported constant or variable used by the authentication engine.
	MetricCodeExpired
	// MetricRateLimitHit is an exported constant or variable used by the authentication engine.
	MetricRateLimitHit
	// MetricLockoutCleared is an exported constant or variable used by the authentication engine.
	MetricLockoutCleared
	// MetricTwoFASatisfied is an exported constant or variable used by the authentication engine.
	MetricTwoFASatisfied
	// MetricTwoFADisabled is an exported constant or variable used by the authentication engine.
	MetricTwoFADisabled
	// MetricEmailMarkedVerified is an exported constant or variable used by the authentication engine.
	MetricEmailMarkedVerified
	// MetricEmailDeliveryFailure is an exported constant or variable used by the authentication engine.
	MetricEmailDeliveryFailure
	// MetricAccessTokenIssued is an exported constant or variable used by the authentication engine.
	MetricAccessTokenIssued

	metricIDCount
)

// Metrics holds atomic counters keyed by [MetricID]. When disabled, all
// operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] instance configured by the given [MetricsConfig].
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc describes the inc operation and its observable behavior.
//
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns the current value of a single counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a deep copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
