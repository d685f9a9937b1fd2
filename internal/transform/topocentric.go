package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378.137              // semi-major axis (km)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Observer holds a ground observer's location in both geodetic and
// earth-fixed frames. The earth-fixed position is precomputed once so it can
// be reused across many look-angle evaluations.
type Observer struct {
	Geodetic Geodetic
	ECF      Vector3 // km
}

// NewObserver creates an Observer from geodetic coordinates.
// Latitude and longitude are in degrees, height in km above the WGS-84 ellipsoid.
func NewObserver(latDeg, lonDeg, heightKm float64) Observer {
	gd := Geodetic{
		Latitude:  Radians(latDeg),
		Longitude: Radians(lonDeg),
		Height:    heightKm,
	}
	return Observer{Geodetic: gd, ECF: GeodeticToECF(gd)}
}

// GeodeticToECF converts a geodetic point to earth-fixed coordinates (km).
func GeodeticToECF(gd Geodetic) Vector3 {
	sinLat := math.Sin(gd.Latitude)
	cosLat := math.Cos(gd.Latitude)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Vector3{
		X: (N + gd.Height) * cosLat * math.Cos(gd.Longitude),
		Y: (N + gd.Height) * cosLat * math.Sin(gd.Longitude),
		Z: (N*(1-wgs84E2) + gd.Height) * sinLat,
	}
}

// ECFToLookAngles computes azimuth, elevation, and range from an observer
// to a satellite given in earth-fixed km.
//
// Uses the SEZ (South-East-Zenith) topocentric rotation per Vallado Section 4.4.
func ECFToLookAngles(obs Observer, sat Vector3) LookAngles {
	// Range vector in ECF.
	rx := sat.X - obs.ECF.X
	ry := sat.Y - obs.ECF.Y
	rz := sat.Z - obs.ECF.Z

	sinLat := math.Sin(obs.Geodetic.Latitude)
	cosLat := math.Cos(obs.Geodetic.Latitude)
	sinLon := math.Sin(obs.Geodetic.Longitude)
	cosLon := math.Cos(obs.Geodetic.Longitude)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rangeMag := math.Sqrt(south*south + east*east + zenith*zenith)

	// In SEZ, North = -South direction, so az = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		Azimuth:   az,
		Elevation: math.Asin(zenith / rangeMag),
		Range:     rangeMag,
	}
}
