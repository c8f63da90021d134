// Package dispatch delivers position samples to the backend over two
// independent channels: the WebSocket when it happens to be up, and REST
// unconditionally. Policy is at-most-once, latest-value-wins; a lost
// sample is superseded by the next one, never retried.
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"saarthi/internal/metrics"
	"saarthi/internal/model"
	"saarthi/internal/rest"
	"saarthi/internal/socket"
)

// Pusher is the REST side of delivery; satisfied by *rest.Client.
type Pusher interface {
	PushLocation(ctx context.Context, s model.PositionSample) error
}

// Emitter is the socket side of delivery; satisfied by *socket.Channel.
// A nil Emitter means the channel is permanently absent, which is fully
// supported.
type Emitter interface {
	EmitDriverLocation(s model.PositionSample) error
	Connected() bool
}

var _ Pusher = (*rest.Client)(nil)
var _ Emitter = (*socket.Channel)(nil)

// Dispatcher stamps each sample with a monotonic per-device sequence
// number and fans it out to both channels without blocking the caller.
type Dispatcher struct {
	push    Pusher
	emit    Emitter
	limiter *rate.Limiter
	seq     atomic.Uint64

	// DeviceID identifies this device in sequence-number space.
	DeviceID string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRateLimit bounds outbound push frequency. The sampler already
// throttles at the source; this is the transport-side ceiling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(d *Dispatcher) { d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// New builds a Dispatcher. emit may be nil when no socket channel exists.
func New(push Pusher, emit Emitter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		push:     push,
		emit:     emit,
		limiter:  rate.NewLimiter(rate.Limit(1), 3),
		DeviceID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch forwards one sample. It returns immediately; both deliveries
// happen independently and failures on either channel are logged and
// dropped. Samples arriving faster than the rate ceiling are discarded
// whole; a stale position has no value.
func (d *Dispatcher) Dispatch(ctx context.Context, s model.PositionSample) {
	if !d.limiter.Allow() {
		metrics.Pushes.WithLabelValues("rest", "ratelimited").Inc()
		return
	}
	s.Seq = d.seq.Add(1)
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	// Socket leg: only when currently established, never waited on.
	if d.emit != nil && d.emit.Connected() {
		if err := d.emit.EmitDriverLocation(s); err != nil {
			metrics.Pushes.WithLabelValues("socket", "dropped").Inc()
			log.WithError(err).Debug("socket location emit dropped")
		} else {
			metrics.Pushes.WithLabelValues("socket", "ok").Inc()
		}
	}

	// REST leg: unconditional, fire-and-forget.
	go func() {
		start := time.Now()
		err := d.push.PushLocation(ctx, s)
		metrics.PushLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.Pushes.WithLabelValues("rest", "dropped").Inc()
			if ctx.Err() == nil {
				log.WithError(err).WithField("seq", s.Seq).Warn("location push dropped")
			}
			return
		}
		metrics.Pushes.WithLabelValues("rest", "ok").Inc()
	}()
}

// Seq returns the last sequence number handed out.
func (d *Dispatcher) Seq() uint64 { return d.seq.Load() }
