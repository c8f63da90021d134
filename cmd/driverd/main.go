// Command driverd is the headless driver agent. It logs in as a driver,
// resumes or starts a trip, walks the route with the simulated GPS
// source, and streams positions over the socket and REST paths. Stop
// advancement is automated: when the agent gets within arrivalRadius of
// the next stop it marks the stop reached, and when the last stop is
// reached it ends the trip and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"saarthi/internal/buildinfo"
	"saarthi/internal/config"
	"saarthi/internal/diag"
	"saarthi/internal/dispatch"
	"saarthi/internal/metrics"
	"saarthi/internal/model"
	"saarthi/internal/progress"
	"saarthi/internal/rest"
	"saarthi/internal/sampler"
	"saarthi/internal/session"
	"saarthi/internal/socket"
	"saarthi/internal/store"
	"saarthi/internal/trip"
)

const arrivalRadiusM = 50.0

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	routeID := flag.Int("route", 0, "route to drive (defaults to the trip already active on the backend)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, relying on environment")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	setupLogging(cfg.Log.Level)
	metrics.RegisterDefault()

	log.WithFields(log.Fields{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	}).Info("driverd starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *routeID); err != nil {
		log.WithError(err).Fatal("driverd exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, routeID int) error {
	sess := session.Open(cfg.Session.Path)
	api := rest.NewClient(cfg.API.BaseURL, sess, rest.WithTimeout(cfg.API.Timeout))

	if err := ensureLogin(ctx, api, sess); err != nil {
		return err
	}

	st := store.New()
	if s, ok := sess.Get(); ok {
		st.SetSession(s.User)
	}

	diagSrv := diag.New(cfg.Diag.Addr, st)
	diagSrv.Start()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = diagSrv.Shutdown(shutCtx)
	}()

	ch := socket.New(cfg.Socket.URL, sess, socket.WithStore(st))
	if cfg.Socket.Enabled {
		ch.Connect(ctx)
		defer ch.Close()
	}

	disp := dispatch.New(api, ch,
		dispatch.WithRateLimit(cfg.Tracking.PushPerSecond, cfg.Tracking.PushBurst))

	newSource := func(route model.Route) (sampler.Source, error) {
		return sampler.NewSimSource(route, cfg.Tracking.SimTick, cfg.Tracking.SimSpeedKmh)
	}
	lc := trip.New(api, st, progress.New(), disp, newSource,
		sampler.WithPolicy(cfg.Tracking.MinInterval, cfg.Tracking.MinDistanceM),
		sampler.WithPermission(permissionFromConfig(cfg.Tracking.Permission)),
	)

	route, resumed, err := establishTrip(ctx, api, lc, routeID)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"route":   route.Name,
		"resumed": resumed,
	}).Info("trip running")

	return drive(ctx, st, lc, sess)
}

// ensureLogin reuses a persisted session when it is still valid and
// falls back to credentials from the environment.
func ensureLogin(ctx context.Context, api *rest.Client, sess *session.Context) error {
	if s, ok := sess.Get(); ok && !sess.Expired() {
		log.WithField("user", s.User.Email).Info("resuming saved session")
		return nil
	}
	if sess.Expired() {
		sess.Invalidate("saved token expired")
	}

	email := os.Getenv("SAARTHI_EMAIL")
	password := os.Getenv("SAARTHI_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("no saved session and SAARTHI_EMAIL/SAARTHI_PASSWORD not set")
	}

	user, err := api.LoginAs(ctx, rest.Credentials{Email: email, Password: password}, model.RoleDriver)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	log.WithField("user", user.Email).Info("logged in")
	return nil
}

// establishTrip resumes the trip the backend reports as active, or
// starts a new one on the requested route. Routes must be explicitly
// chosen; with no active trip and no -route flag this is an error.
func establishTrip(ctx context.Context, api *rest.Client, lc *trip.Lifecycle, routeID int) (model.Route, bool, error) {
	routes, err := api.AssignedRoutes(ctx)
	if err != nil {
		return model.Route{}, false, fmt.Errorf("fetch assigned routes: %w", err)
	}

	active, err := api.ActiveTripStatus(ctx)
	if err != nil {
		log.WithError(err).Warn("could not check active trip status")
	}
	if active.Active() {
		route, ok := routeByID(routes, active.RouteID)
		if !ok {
			return model.Route{}, false, fmt.Errorf("active trip references route %d which is not assigned to this driver", active.RouteID)
		}
		if err := lc.Resume(ctx, active, route); err != nil {
			return model.Route{}, false, fmt.Errorf("resume trip: %w", err)
		}
		return route, true, nil
	}

	if routeID == 0 {
		return model.Route{}, false, fmt.Errorf("no active trip on the backend; pass -route to start one (assigned: %s)", routeNames(routes))
	}
	route, ok := routeByID(routes, routeID)
	if !ok {
		return model.Route{}, false, fmt.Errorf("route %d is not assigned to this driver (assigned: %s)", routeID, routeNames(routes))
	}
	if err := lc.StartTrip(ctx, route); err != nil {
		return model.Route{}, false, fmt.Errorf("start trip: %w", err)
	}
	return route, false, nil
}

// drive watches position updates and advances the stop pointer whenever
// the agent comes within arrivalRadiusM of the next stop. Returns when
// the route completes, the session dies, or ctx is cancelled.
func drive(ctx context.Context, st *store.Store, lc *trip.Lifecycle, sess *session.Context) error {
	changes := st.Subscribe()
	defer st.Unsubscribe(changes)
	sessEvents := sess.Subscribe()
	defer sess.Unsubscribe(sessEvents)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down, trip stays active on the backend")
			return nil

		case evt := <-sessEvents:
			if evt.Type == session.EventInvalidated {
				return fmt.Errorf("session invalidated: %s", evt.Reason)
			}

		case change := <-changes:
			if change.Slice != "location" {
				continue
			}
			done, err := maybeAdvance(ctx, st, lc)
			if err != nil {
				log.WithError(err).Warn("advance failed")
				continue
			}
			if done {
				return nil
			}
		}
	}
}

func maybeAdvance(ctx context.Context, st *store.Store, lc *trip.Lifecycle) (bool, error) {
	snap := st.Snapshot()
	cur := snap.Location.Current
	if cur == nil {
		return false, nil
	}
	prog := lc.Progress()
	target := prog.NextStop
	if target == nil {
		// Already at the final stop; approach handled below via the
		// current stop marker.
		target = prog.CurrentStop
	}
	if target == nil {
		return false, nil
	}
	dist := model.HaversineMeters(cur.Latitude, cur.Longitude, target.Latitude, target.Longitude)
	if dist > arrivalRadiusM {
		return false, nil
	}

	next, complete, err := lc.Advance()
	if err != nil {
		return false, err
	}
	log.WithFields(log.Fields{
		"stop":    next.CurrentStop.Name,
		"percent": fmt.Sprintf("%.0f%%", next.PercentComplete*100),
	}).Info("reached stop")

	if complete {
		log.Info("final stop reached, ending trip")
		if err := lc.StopTrip(ctx); err != nil {
			return false, fmt.Errorf("stop trip: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func permissionFromConfig(mode string) sampler.PermissionFunc {
	granted := mode != "denied"
	return func(ctx context.Context) (bool, error) { return granted, nil }
}

func routeByID(routes []model.Route, id int) (model.Route, bool) {
	for _, r := range routes {
		if r.ID == id {
			return r, true
		}
	}
	return model.Route{}, false
}

func routeNames(routes []model.Route) string {
	if len(routes) == 0 {
		return "none"
	}
	out := ""
	for i, r := range routes {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d=%s", r.ID, r.Name)
	}
	return out
}

func setupLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
