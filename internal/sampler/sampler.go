// Package sampler wraps a position source behind the platform
// geolocation contract: a one-time permission gate and a watch loop that
// produces samples on a minimum time interval OR minimum distance
// threshold, whichever trips first. Nothing is buffered beyond the last
// emitted sample.
package sampler

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"saarthi/internal/metrics"
	"saarthi/internal/model"
)

// Defaults mirror the mobile client's watch options.
const (
	DefaultMinInterval = 5 * time.Second
	DefaultMinDistance = 10.0 // meters
)

var (
	// ErrPermissionDenied is returned by Start when location permission
	// was denied. The caller surfaces a notice once and continues in
	// degraded, non-tracking mode.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrAlreadyWatching is returned by Start while a watch is running; a
	// watcher is not restartable without stopping first.
	ErrAlreadyWatching = errors.New("already watching")
)

// Source produces raw position readings. Next blocks until a reading is
// available or ctx is done. Implementations are the platform GPS analog;
// SimSource drives a route polyline for headless use.
type Source interface {
	Next(ctx context.Context) (model.PositionSample, error)
}

// PermissionFunc asks the platform for location permission. It is called
// at most once per Watcher; the answer is cached.
type PermissionFunc func(ctx context.Context) (bool, error)

// Watcher pulls readings from a Source and emits the ones that pass the
// interval/distance policy.
type Watcher struct {
	src         Source
	perm        PermissionFunc
	minInterval time.Duration
	minDistance float64

	mu       sync.Mutex
	watching bool
	cancel   context.CancelFunc
	asked    bool
	granted  bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPolicy overrides the interval/distance thresholds.
func WithPolicy(minInterval time.Duration, minDistanceM float64) Option {
	return func(w *Watcher) {
		w.minInterval = minInterval
		w.minDistance = minDistanceM
	}
}

// WithPermission supplies the platform permission prompt. The default
// grants unconditionally, which suits a headless agent with its own
// source configured.
func WithPermission(f PermissionFunc) Option {
	return func(w *Watcher) { w.perm = f }
}

// New builds a Watcher over src.
func New(src Source, opts ...Option) *Watcher {
	w := &Watcher{
		src:         src,
		perm:        func(context.Context) (bool, error) { return true, nil },
		minInterval: DefaultMinInterval,
		minDistance: DefaultMinDistance,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RequestPermission asks for location permission once and caches the
// answer; repeat calls return the cached result without re-prompting.
func (w *Watcher) RequestPermission(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.asked {
		return w.granted, nil
	}
	granted, err := w.perm(ctx)
	if err != nil {
		return false, err
	}
	w.asked = true
	w.granted = granted
	return granted, nil
}

// Start begins the watch loop, delivering accepted samples to onSample in
// generation order from a single goroutine. It fails with
// ErrPermissionDenied when permission was not granted and with
// ErrAlreadyWatching when a watch is already running.
func (w *Watcher) Start(ctx context.Context, onSample func(model.PositionSample)) error {
	granted, err := w.RequestPermission(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return ErrPermissionDenied
	}

	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return ErrAlreadyWatching
	}
	ctx, cancel := context.WithCancel(ctx)
	w.watching = true
	w.cancel = cancel
	w.mu.Unlock()

	go w.loop(ctx, onSample)
	return nil
}

// Stop cancels the watch. Idempotent and safe when not watching. Because
// delivery happens under the watcher's lock, no sample callback starts
// after Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		return
	}
	w.watching = false
	w.cancel()
	w.cancel = nil
}

// Watching reports whether a watch loop is active.
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *Watcher) loop(ctx context.Context, onSample func(model.PositionSample)) {
	var last *model.PositionSample
	for {
		s, err := w.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Source failures (permission revoked mid-watch, GPS glitch)
			// are silent from the sampler's perspective.
			log.WithError(err).Debug("position source read failed")
			continue
		}
		if s.Timestamp.IsZero() {
			s.Timestamp = time.Now()
		}
		if last != nil && !w.accept(*last, s) {
			metrics.SamplesThrottled.Inc()
			continue
		}

		w.mu.Lock()
		if !w.watching {
			w.mu.Unlock()
			return
		}
		onSample(s)
		w.mu.Unlock()

		cp := s
		last = &cp
		metrics.SamplesProduced.Inc()
	}
}

// accept applies the throttle policy: a reading passes when enough time
// OR enough distance has accumulated since the last emitted sample.
func (w *Watcher) accept(last, next model.PositionSample) bool {
	if next.Timestamp.Sub(last.Timestamp) >= w.minInterval {
		return true
	}
	dist := model.HaversineMeters(last.Latitude, last.Longitude, next.Latitude, next.Longitude)
	return dist >= w.minDistance
}
