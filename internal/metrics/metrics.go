// Package metrics defines the agent's Prometheus collectors on a
// dedicated registry, served from the diagnostics listener.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the agent.
	Registry = prometheus.NewRegistry()

	// SamplesProduced counts GPS samples emitted by the watcher.
	SamplesProduced = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "saarthi", Name: "location_samples_total", Help: "GPS samples produced by the sampler."},
	)
	// SamplesThrottled counts raw readings suppressed by the interval/distance policy.
	SamplesThrottled = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "saarthi", Name: "location_samples_throttled_total", Help: "Raw readings suppressed by the sampling policy."},
	)
	// Pushes counts position deliveries by channel (rest, socket) and outcome (ok, dropped).
	Pushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "saarthi", Name: "position_pushes_total", Help: "Position sample deliveries by channel and outcome."},
		[]string{"channel", "outcome"},
	)
	// PushLatency records REST push latency in seconds.
	PushLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "saarthi", Name: "position_push_duration_seconds", Help: "REST position push duration in seconds.", Buckets: prometheus.DefBuckets},
	)
	// SocketReconnects counts bidirectional channel reconnect attempts.
	SocketReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "saarthi", Name: "socket_reconnects_total", Help: "WebSocket reconnect attempts."},
	)
	// SocketEvents counts server-to-client events by type.
	SocketEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "saarthi", Name: "socket_events_total", Help: "Server events received over the WebSocket channel."},
		[]string{"event"},
	)
	// StoreMutations counts named store mutations by slice and action.
	StoreMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "saarthi", Name: "store_mutations_total", Help: "State store mutations by slice and action."},
		[]string{"slice", "action"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors plus the Go and process
// collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(SamplesProduced)
		Registry.MustRegister(SamplesThrottled)
		Registry.MustRegister(Pushes)
		Registry.MustRegister(PushLatency)
		Registry.MustRegister(SocketReconnects)
		Registry.MustRegister(SocketEvents)
		Registry.MustRegister(StoreMutations)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
