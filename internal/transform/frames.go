package transform

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Whole seconds are the finest resolution the library accepts; every frame
// operation truncates to it so sidereal time and propagation agree.
func civil(t time.Time) (year, month, day, hour, min, sec int) {
	t = t.UTC().Truncate(time.Second)
	return t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second()
}

// SiderealTime returns Greenwich Mean Sidereal Time in radians at t.
func SiderealTime(t time.Time) float64 {
	return satellite.GSTimeFromDate(civil(t))
}

// ECIToECF rotates an inertial position into the earth-fixed frame.
func ECIToECF(eci Vector3, gmst float64) Vector3 {
	v := satellite.ECIToECEF(satellite.Vector3{X: eci.X, Y: eci.Y, Z: eci.Z}, gmst)
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// ECIToGeodetic converts an inertial position to geodetic coordinates.
func ECIToGeodetic(eci Vector3, gmst float64) Geodetic {
	alt, _, ll := satellite.ECIToLLA(satellite.Vector3{X: eci.X, Y: eci.Y, Z: eci.Z}, gmst)
	return Geodetic{
		Latitude:  ll.Latitude,
		Longitude: wrapPi(ll.Longitude),
		Height:    alt,
	}
}

// wrapPi normalises an angle to (-π, π].
func wrapPi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
