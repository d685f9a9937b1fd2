// Package transform holds the reference-frame types and conversions used to
// turn an SGP4 state vector into ground-track and look-angle values.
//
// Inertial (TEME) to earth-fixed and geodetic conversions are delegated to
// github.com/joshuaferrara/go-satellite. The topocentric step from an
// earth-fixed target to azimuth/elevation/range uses the SEZ rotation in
// topocentric.go. All distances are kilometres and all angles radians unless
// a name says otherwise.
package transform

import "math"

// Vector3 is a Cartesian position (km) or velocity (km/s).
type Vector3 struct {
	X, Y, Z float64
}

// Norm returns the vector magnitude.
func (v Vector3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// StateVector is a satellite position and velocity in the inertial frame.
type StateVector struct {
	Position Vector3 // km
	Velocity Vector3 // km/s
}

// Geodetic is a position relative to the earth ellipsoid.
type Geodetic struct {
	Latitude  float64 // radians, [-π/2, π/2]
	Longitude float64 // radians, (-π, π]
	Height    float64 // km above the ellipsoid
}

// LookAngles holds azimuth, elevation, and range from observer to satellite.
type LookAngles struct {
	Azimuth   float64 // radians, 0 = North, clockwise
	Elevation float64 // radians, 0 = horizon
	Range     float64 // km
}

// ValidatePosition checks that an inertial or earth-fixed position is
// physically reasonable for an Earth-orbiting satellite.
func ValidatePosition(pos Vector3) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}

	// Earth radius is ~6371km. LEO is ~6571-6971km. GEO is ~42164km.
	const minRadius = 6200.0
	const maxRadius = 50000.0

	mag := pos.Norm()
	return mag >= minRadius && mag <= maxRadius
}
