package transform

import (
	"fmt"
	"math"
)

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// LatitudeDegrees converts a geodetic latitude to degrees, rejecting values
// outside [-π/2, π/2].
func LatitudeDegrees(rad float64) (float64, error) {
	if math.IsNaN(rad) || rad < -math.Pi/2 || rad > math.Pi/2 {
		return 0, fmt.Errorf("latitude %v rad out of range [-pi/2, pi/2]", rad)
	}
	return Degrees(rad), nil
}

// LongitudeDegrees converts a longitude to degrees in (-180, 180].
func LongitudeDegrees(rad float64) (float64, error) {
	if math.IsNaN(rad) || math.IsInf(rad, 0) {
		return 0, fmt.Errorf("longitude %v rad is not finite", rad)
	}
	return Degrees(wrapPi(rad)), nil
}

// FormatLatitude renders degrees with a hemisphere letter, e.g. "37.8141°S".
func FormatLatitude(deg float64) string {
	return formatHemisphere(deg, 'N', 'S')
}

// FormatLongitude renders degrees with a hemisphere letter, e.g. "144.9633°E".
func FormatLongitude(deg float64) string {
	return formatHemisphere(deg, 'E', 'W')
}

func formatHemisphere(deg float64, pos, neg rune) string {
	h := pos
	if deg < 0 {
		h = neg
	}
	return fmt.Sprintf("%.4f°%c", math.Abs(deg), h)
}
