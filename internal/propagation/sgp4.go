package propagation

import (
	"fmt"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// Note: Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. We detect propagation failures by checking output for NaN/Inf
// and unreasonable position magnitudes.

// SGP4Propagator wraps the go-satellite library for a single element set.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID string
}

// NewSGP4Propagator creates an SGP4 propagator from TLE lines using the WGS-72
// gravity model the element sets are fitted against.
//
// Lines are validated before they reach the library, because go-satellite
// panics through log.Panic on malformed input.
func NewSGP4Propagator(line1, line2 string) (*SGP4Propagator, error) {
	if err := tle.ValidateLines(line1, line2); err != nil {
		return nil, err
	}
	id := line1[2:7]

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %s: code=%d %s", id, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: id}, nil
}

// Propagate computes the inertial (TEME) state at t, truncated to whole seconds.
func (p *SGP4Propagator) Propagate(t time.Time) (transform.StateVector, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	sv := transform.StateVector{
		Position: transform.Vector3{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: transform.Vector3{X: vel.X, Y: vel.Y, Z: vel.Z},
	}
	if !transform.ValidatePosition(sv.Position) {
		return transform.StateVector{}, fmt.Errorf("sgp4 propagation failed for NORAD %s at %s: unreasonable position %.1f km",
			p.noradID, t.Format(time.RFC3339), sv.Position.Norm())
	}
	return sv, nil
}
