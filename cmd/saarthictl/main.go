// Command saarthictl is the operator's command line for the fleet
// backend. Authority users manage buses, routes, stops, users, and
// route assignments; commuters can query nearby buses, arrival
// estimates, and submit occupancy feedback. Results print as JSON so
// the output composes with jq.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"saarthi/internal/config"
	"saarthi/internal/model"
	"saarthi/internal/rest"
	"saarthi/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, relying on environment")
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(os.Getenv("SAARTHI_CONFIG"))
	if err != nil {
		fatal(err)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sess := session.Open(cfg.Session.Path)
	api := rest.NewClient(cfg.API.BaseURL, sess, rest.WithTimeout(cfg.API.Timeout))
	ctx := context.Background()

	cmd, args := os.Args[1], os.Args[2:]
	if err := dispatchCommand(ctx, api, cmd, args); err != nil {
		fatal(err)
	}
}

func dispatchCommand(ctx context.Context, api *rest.Client, cmd string, args []string) error {
	switch cmd {
	case "login":
		return cmdLogin(ctx, api, args)
	case "logout":
		return api.Logout()
	case "register":
		return cmdRegister(ctx, api, args)
	case "whoami":
		return printResult(api.Me(ctx))

	case "buses":
		return printResult(api.ListBuses(ctx))
	case "bus-add":
		return cmdBusAdd(ctx, api, args)
	case "bus-set":
		return cmdBusSet(ctx, api, args)
	case "routes":
		return printResult(api.ListRoutes(ctx))
	case "route-add":
		return cmdRouteAdd(ctx, api, args)
	case "stop-add":
		return cmdStopAdd(ctx, api, args)
	case "users":
		return printResult(api.ListUsers(ctx))
	case "user-add":
		return cmdUserAdd(ctx, api, args)
	case "user-rm":
		return cmdUserRm(ctx, api, args)
	case "assign-routes":
		return cmdAssignRoutes(ctx, api, args)
	case "trips":
		return cmdTrips(ctx, api, args)
	case "analytics":
		return printResult(api.Analytics(ctx))

	case "nearby":
		return cmdNearby(ctx, api, args)
	case "eta":
		return cmdETA(ctx, api, args)
	case "feedback":
		return cmdFeedback(ctx, api, args)

	case "stats":
		return printResult(api.Stats(ctx))
	case "history":
		return printResult(api.TripHistory(ctx, 20))

	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdLogin(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", os.Getenv("SAARTHI_EMAIL"), "account email")
	password := fs.String("password", os.Getenv("SAARTHI_PASSWORD"), "account password")
	role := fs.String("role", string(model.RoleAuthority), "required role (driver, commuter, authority); empty skips the check")
	_ = fs.Parse(args)
	if *email == "" || *password == "" {
		return fmt.Errorf("login requires -email and -password (or SAARTHI_EMAIL/SAARTHI_PASSWORD)")
	}
	creds := rest.Credentials{Email: *email, Password: *password}
	if *role == "" {
		return printResult(api.Login(ctx, creds))
	}
	return printResult(api.LoginAs(ctx, creds, model.Role(*role)))
}

func cmdRegister(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "display name")
	role := fs.String("role", string(model.RoleCommuter), "driver, commuter, or authority")
	_ = fs.Parse(args)
	if *email == "" || *password == "" {
		return fmt.Errorf("register requires -email and -password")
	}
	return printResult(api.Register(ctx, rest.RegisterRequest{
		Email:    *email,
		Password: *password,
		Name:     *name,
		Role:     model.Role(*role),
	}))
}

func cmdBusAdd(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("bus-add", flag.ExitOnError)
	number := fs.String("number", "", "bus number plate")
	routeID := fs.Int("route", 0, "route to place the bus on (optional)")
	_ = fs.Parse(args)
	if *number == "" {
		return fmt.Errorf("bus-add requires -number")
	}
	in := rest.BusCreate{Number: *number}
	if *routeID != 0 {
		in.RouteID = routeID
	}
	return printResult(api.CreateBus(ctx, in))
}

func cmdBusSet(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("bus-set", flag.ExitOnError)
	id := fs.Int("id", 0, "bus id")
	routeID := fs.Int("route", 0, "move the bus to this route")
	active := fs.String("active", "", "true or false")
	_ = fs.Parse(args)
	if *id == 0 {
		return fmt.Errorf("bus-set requires -id")
	}
	var patch rest.BusPatch
	if *routeID != 0 {
		patch.RouteID = routeID
	}
	if *active != "" {
		v, err := strconv.ParseBool(*active)
		if err != nil {
			return fmt.Errorf("invalid -active: %w", err)
		}
		patch.IsActive = &v
	}
	return printResult(api.UpdateBus(ctx, *id, patch))
}

func cmdRouteAdd(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("route-add", flag.ExitOnError)
	name := fs.String("name", "", "route name")
	desc := fs.String("desc", "", "description")
	_ = fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("route-add requires -name")
	}
	return printResult(api.CreateRoute(ctx, rest.RouteCreate{Name: *name, Description: *desc}))
}

func cmdStopAdd(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("stop-add", flag.ExitOnError)
	routeID := fs.Int("route", 0, "route id")
	name := fs.String("name", "", "stop name")
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	seq := fs.Int("seq", 0, "position along the route, 1-based")
	_ = fs.Parse(args)
	if *routeID == 0 || *name == "" || *seq == 0 {
		return fmt.Errorf("stop-add requires -route, -name, and -seq")
	}
	return printResult(api.CreateStop(ctx, rest.StopCreate{
		RouteID:       *routeID,
		Name:          *name,
		Latitude:      *lat,
		Longitude:     *lng,
		SequenceOrder: *seq,
	}))
}

func cmdUserAdd(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("user-add", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "initial password")
	role := fs.String("role", string(model.RoleDriver), "driver, commuter, or authority")
	name := fs.String("name", "", "display name")
	_ = fs.Parse(args)
	if *email == "" || *password == "" {
		return fmt.Errorf("user-add requires -email and -password")
	}
	return printResult(api.CreateUser(ctx, rest.UserCreate{
		Email:    *email,
		Password: *password,
		Role:     model.Role(*role),
		Name:     *name,
	}))
}

func cmdUserRm(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("user-rm", flag.ExitOnError)
	id := fs.Int("id", 0, "user id")
	_ = fs.Parse(args)
	if *id == 0 {
		return fmt.Errorf("user-rm requires -id")
	}
	return api.DeleteUser(ctx, *id)
}

func cmdAssignRoutes(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("assign-routes", flag.ExitOnError)
	driverID := fs.Int("driver", 0, "driver user id")
	routes := fs.String("routes", "", "comma-separated route ids")
	_ = fs.Parse(args)
	if *driverID == 0 {
		return fmt.Errorf("assign-routes requires -driver")
	}
	var ids []int
	for _, part := range strings.Split(*routes, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid route id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if err := api.SetDriverRoutes(ctx, *driverID, ids); err != nil {
		return err
	}
	return printResult(api.DriverRoutes(ctx, *driverID))
}

func cmdTrips(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("trips", flag.ExitOnError)
	driverID := fs.Int("driver", 0, "filter by driver user id")
	_ = fs.Parse(args)
	return printResult(api.Trips(ctx, *driverID))
}

func cmdNearby(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("nearby", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	radius := fs.Float64("radius", 2000, "search radius in meters")
	_ = fs.Parse(args)
	return printResult(api.NearbyBuses(ctx, *lat, *lng, *radius))
}

func cmdETA(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("eta", flag.ExitOnError)
	busID := fs.Int("bus", 0, "bus id")
	stopID := fs.Int("stop", 0, "stop id")
	_ = fs.Parse(args)
	if *busID == 0 || *stopID == 0 {
		return fmt.Errorf("eta requires -bus and -stop")
	}
	return printResult(api.BusETA(ctx, *busID, *stopID))
}

func cmdFeedback(ctx context.Context, api *rest.Client, args []string) error {
	fs := flag.NewFlagSet("feedback", flag.ExitOnError)
	busID := fs.Int("bus", 0, "bus id")
	occupancy := fs.String("occupancy", "", "low, medium, or high")
	comment := fs.String("comment", "", "free-form comment")
	_ = fs.Parse(args)
	if *busID == 0 || *occupancy == "" {
		return fmt.Errorf("feedback requires -bus and -occupancy")
	}
	return api.SubmitFeedback(ctx, model.Feedback{
		BusID:     *busID,
		Occupancy: model.Occupancy(*occupancy),
		Comment:   *comment,
	})
}

// printResult accepts the (value, error) pair from an API call and
// renders the value as indented JSON on success.
func printResult[T any](v T, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fatal(err error) {
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(os.Stderr, "error: %s (status %d)\n", apiErr.Detail, apiErr.Status)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: saarthictl <command> [flags]

auth:
  login -email X -password Y     authenticate and save the session
        [-role authority]        reject accounts without the role
  logout                         drop the saved session
  register -email X -password Y  create an account
  whoami                         show the logged-in user

authority:
  buses | routes | users         list resources
  bus-add / bus-set              register or update a bus
  route-add / stop-add           build routes
  user-add / user-rm             manage accounts
  assign-routes -driver N -routes 1,2
  trips [-driver N]              list trip records
  analytics                      dashboard aggregates

commuter:
  nearby -lat L -lng G           buses near a point
  eta -bus N -stop M             arrival estimate
  feedback -bus N -occupancy low|medium|high

driver:
  stats                          totals for the logged-in driver
  history                        recent trips`)
}
