package sampler

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"saarthi/internal/model"
)

// SimSource is a Source that drives a route's stop sequence at bus speed,
// one reading per tick. It stands in for device GPS in the headless agent
// and in tests. Not safe for concurrent use; the watcher is its only
// reader.
type SimSource struct {
	points    []simPoint
	tick      time.Duration
	speedKmh  float64
	segIndex  int
	segOffset float64 // meters into current segment
	rng       *rand.Rand
	timeFn    func() time.Time
}

type simPoint struct{ lat, lng float64 }

// ErrEmptyRoute is returned when building a simulator over a route with
// no stops.
var ErrEmptyRoute = errors.New("route has no stops")

// NewSimSource builds a simulated GPS feed along route. The polyline is
// densified with interpolated points between consecutive stops, roughly
// one per hundred meters, so readings move smoothly instead of jumping
// stop to stop.
func NewSimSource(route model.Route, tick time.Duration, speedKmh float64) (*SimSource, error) {
	stops := route.SortedStops()
	if len(stops) == 0 {
		return nil, ErrEmptyRoute
	}
	pts := densify(stops)
	return &SimSource{
		points:   pts,
		tick:     tick,
		speedKmh: speedKmh,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		timeFn:   time.Now,
	}, nil
}

// Next waits one tick and returns the next reading along the polyline.
// Past the end of the route the position holds at the final point.
func (s *SimSource) Next(ctx context.Context) (model.PositionSample, error) {
	t := time.NewTimer(s.tick)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return model.PositionSample{}, ctx.Err()
	case <-t.C:
	}

	// Light speed noise, clamped to plausible bus speeds.
	s.speedKmh += (s.rng.Float64()*2 - 1) * 1.5
	if s.speedKmh < 10 {
		s.speedKmh = 10
	}
	if s.speedKmh > 60 {
		s.speedKmh = 60
	}

	prev := s.position()
	s.step(s.speedKmh * 1000 / 3600 * s.tick.Seconds())
	cur := s.position()

	heading := bearing(prev.lat, prev.lng, cur.lat, cur.lng)
	speed := s.speedKmh
	return model.PositionSample{
		Latitude:  cur.lat,
		Longitude: cur.lng,
		Heading:   &heading,
		Speed:     &speed,
		Timestamp: s.timeFn(),
	}, nil
}

func (s *SimSource) position() simPoint {
	if s.segIndex >= len(s.points)-1 {
		return s.points[len(s.points)-1]
	}
	a, b := s.points[s.segIndex], s.points[s.segIndex+1]
	segLen := model.HaversineMeters(a.lat, a.lng, b.lat, b.lng)
	if segLen == 0 {
		return a
	}
	lat, lng := model.Interpolate(a.lat, a.lng, b.lat, b.lng, s.segOffset/segLen)
	return simPoint{lat, lng}
}

func (s *SimSource) step(meters float64) {
	for meters > 0 && s.segIndex < len(s.points)-1 {
		a, b := s.points[s.segIndex], s.points[s.segIndex+1]
		segLen := model.HaversineMeters(a.lat, a.lng, b.lat, b.lng)
		left := segLen - s.segOffset
		if meters >= left {
			s.segIndex++
			s.segOffset = 0
			meters -= left
			continue
		}
		s.segOffset += meters
		meters = 0
	}
}

// densify inserts straight-line intermediate points between consecutive
// stops, one per ~100m with sane bounds, so the feed moves smoothly
// between distant stops.
func densify(stops []model.Stop) []simPoint {
	pts := []simPoint{{stops[0].Latitude, stops[0].Longitude}}
	for i := 0; i < len(stops)-1; i++ {
		a, b := stops[i], stops[i+1]
		dist := model.HaversineMeters(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
		steps := int(dist / 100)
		if steps < 5 {
			steps = 5
		}
		if steps > 20 {
			steps = 20
		}
		for j := 1; j < steps; j++ {
			lat, lng := model.Interpolate(a.Latitude, a.Longitude, b.Latitude, b.Longitude, float64(j)/float64(steps))
			pts = append(pts, simPoint{lat, lng})
		}
		pts = append(pts, simPoint{b.Latitude, b.Longitude})
	}
	return pts
}

// bearing returns the initial compass bearing in degrees from point a to
// point b, normalized to [0,360).
func bearing(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLng := (lng2 - lng1) * rad
	y := math.Sin(dLng) * math.Cos(lat2*rad)
	x := math.Cos(lat1*rad)*math.Sin(lat2*rad) - math.Sin(lat1*rad)*math.Cos(lat2*rad)*math.Cos(dLng)
	deg := math.Atan2(y, x) / rad
	return math.Mod(deg+360, 360)
}
