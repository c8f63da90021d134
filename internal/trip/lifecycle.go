// Package trip owns the ordered cross-slice choreography around starting
// and stopping a trip, so no call site has to remember which store
// mutations follow which. It also owns the trip-scoped context: stopping
// a trip cancels the watch synchronously and makes any in-flight
// position push irrelevant.
package trip

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"saarthi/internal/dispatch"
	"saarthi/internal/model"
	"saarthi/internal/progress"
	"saarthi/internal/rest"
	"saarthi/internal/sampler"
	"saarthi/internal/store"
)

var (
	// ErrTripAlreadyActive is the client-side "button disabled" guard.
	// The backend enforces the real invariant; this only prevents the
	// obvious local double-start.
	ErrTripAlreadyActive = errors.New("a trip is already active")

	// ErrNoActiveTrip is returned by StopTrip and Advance when nothing is
	// running.
	ErrNoActiveTrip = errors.New("no active trip")
)

// SourceFactory builds the position source for a trip on the given
// route. The headless agent plugs in the route simulator; a device build
// would return its GPS wrapper regardless of route.
type SourceFactory func(route model.Route) (sampler.Source, error)

// Lifecycle coordinates the REST client, progress tracker, dispatcher,
// sampler, and store through trip start/advance/stop.
type Lifecycle struct {
	api         *rest.Client
	st          *store.Store
	tracker     *progress.Tracker
	disp        *dispatch.Dispatcher
	newSource   SourceFactory
	samplerOpts []sampler.Option

	mu      sync.Mutex
	watcher *sampler.Watcher
	cancel  context.CancelFunc
	tripID  string
}

// New wires a Lifecycle. samplerOpts are applied to each trip's watcher
// (policy thresholds, permission prompt).
func New(api *rest.Client, st *store.Store, tracker *progress.Tracker, disp *dispatch.Dispatcher, newSource SourceFactory, samplerOpts ...sampler.Option) *Lifecycle {
	return &Lifecycle{
		api:         api,
		st:          st,
		tracker:     tracker,
		disp:        disp,
		newSource:   newSource,
		samplerOpts: samplerOpts,
	}
}

// SelectRoute records the driver's route choice in both the tracker and
// the store. Rejected with the tracker's error while a trip is active on
// a different route or when the route has no stops.
func (l *Lifecycle) SelectRoute(route model.Route) error {
	if err := l.tracker.SelectRoute(route); err != nil {
		return err
	}
	l.st.SelectRoute(&route)
	return nil
}

// StartTrip starts a trip on the route, resets progress to the first
// stop, and begins tracking. Backend rejections ("Driver already has an
// active trip", "No available bus for this route") surface verbatim via
// *rest.APIError and are recorded on the trip slice.
func (l *Lifecycle) StartTrip(ctx context.Context, route model.Route) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tripID != "" {
		return ErrTripAlreadyActive
	}

	// Arm the tracker first: a route with no stops must fail before any
	// network traffic or store mutation.
	if err := l.tracker.SelectRoute(route); err != nil {
		return err
	}

	l.st.SetTripLoading(true)
	tripID, err := l.api.StartTrip(ctx, route.ID)
	if err != nil {
		l.st.SetTripError(userMessage(err))
		return err
	}

	// Ordered cross-slice effects of "trip started".
	_ = l.tracker.Reset()
	l.tracker.SetTripActive(true)
	l.st.SelectRoute(&route)
	l.st.SetActiveTrip(model.Trip{
		ID:        tripID,
		RouteID:   route.ID,
		Status:    model.TripStatusActive,
		StartTime: time.Now(),
	})

	if err := l.startWatch(ctx, route); err != nil {
		// Trip is running backend-side; tracking is just degraded.
		log.WithError(err).Warn("tracking disabled for this trip")
		l.st.SetLocationError(err.Error())
	}
	l.tripID = tripID
	return nil
}

// Resume re-attaches to a trip the backend still considers active, as
// after an agent restart mid-trip. Progress restarts at the first stop;
// the client does not persist progress across restarts.
func (l *Lifecycle) Resume(ctx context.Context, active rest.ActiveTrip, route model.Route) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tripID != "" {
		return ErrTripAlreadyActive
	}
	if err := l.tracker.SelectRoute(route); err != nil {
		return err
	}
	l.tracker.SetTripActive(true)
	l.st.SelectRoute(&route)
	l.st.SetActiveTrip(model.Trip{
		ID:        active.TripID,
		RouteID:   route.ID,
		Status:    model.TripStatusActive,
		StartTime: time.Now(),
	})
	if err := l.startWatch(ctx, route); err != nil {
		log.WithError(err).Warn("tracking disabled for resumed trip")
		l.st.SetLocationError(err.Error())
	}
	l.tripID = active.TripID
	return nil
}

// Advance moves route progress to the next stop. At the final stop it
// reports complete=true with the index clamped.
func (l *Lifecycle) Advance() (progress.Snapshot, bool, error) {
	return l.tracker.Advance()
}

// Progress exposes the current progress snapshot.
func (l *Lifecycle) Progress() progress.Snapshot { return l.tracker.Snapshot() }

// StopTrip stops tracking, cancels in-flight deliveries, and ends the
// trip backend-side. The watch is dead before the REST call is made: no
// sample is produced after StopTrip begins. When the backend rejects the
// stop the local trip record stays active so the driver can retry; the
// watch remains stopped either way.
func (l *Lifecycle) StopTrip(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tripID == "" {
		return ErrNoActiveTrip
	}

	l.stopWatchLocked()

	l.st.SetTripLoading(true)
	if err := l.api.StopTrip(ctx, l.tripID); err != nil {
		l.st.SetTripError(userMessage(err))
		return err
	}

	l.tracker.SetTripActive(false)
	l.tracker.Clear()
	l.st.ClearActiveTrip()
	l.st.SelectRoute(nil)
	l.tripID = ""
	return nil
}

// Active reports whether a trip is currently running locally.
func (l *Lifecycle) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tripID != ""
}

func (l *Lifecycle) startWatch(ctx context.Context, route model.Route) error {
	src, err := l.newSource(route)
	if err != nil {
		return err
	}
	w := sampler.New(src, l.samplerOpts...)

	granted, err := w.RequestPermission(ctx)
	if err != nil {
		return err
	}
	l.st.SetPermissionGranted(granted)
	if !granted {
		return sampler.ErrPermissionDenied
	}

	// Everything downstream of the watch dies with this context.
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := w.Start(watchCtx, func(s model.PositionSample) {
		l.st.SetCurrentLocation(s)
		l.disp.Dispatch(watchCtx, s)
	}); err != nil {
		cancel()
		return err
	}
	l.watcher = w
	l.cancel = cancel
	l.st.SetTracking(true)
	return nil
}

func (l *Lifecycle) stopWatchLocked() {
	if l.watcher != nil {
		l.watcher.Stop()
		l.watcher = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.st.SetTracking(false)
}

// userMessage unwraps backend detail text for the trip slice, falling
// back to the raw error.
func userMessage(err error) string {
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return err.Error()
}
