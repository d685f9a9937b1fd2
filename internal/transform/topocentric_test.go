package transform

import (
	"math"
	"testing"
)

func TestNewObserver_ECFMagnitude(t *testing.T) {
	// Observer at sea level on the equator sits on the semi-major axis.
	obs := NewObserver(0, 0, 0)
	if math.Abs(obs.ECF.Norm()-6378.137) > 0.001 {
		t.Errorf("equatorial observer ECF magnitude = %.4f km, want ~6378.137 km", obs.ECF.Norm())
	}

	// Observer at north pole: magnitude should be ~6356.752 km (polar radius).
	pole := NewObserver(90, 0, 0)
	if math.Abs(pole.ECF.Norm()-6356.7523) > 0.001 {
		t.Errorf("polar observer ECF magnitude = %.4f km, want ~6356.752 km", pole.ECF.Norm())
	}
}

func TestNewObserver_Height(t *testing.T) {
	obs0 := NewObserver(0, 0, 0)
	obs1 := NewObserver(0, 0, 0.1)

	diff := obs1.ECF.Norm() - obs0.ECF.Norm()
	if math.Abs(diff-0.1) > 1e-6 {
		t.Errorf("height difference = %.6f km, want 0.1 km", diff)
	}
}

func TestECFToLookAngles_DirectlyOverhead(t *testing.T) {
	obs := NewObserver(0, 0, 0)

	// Satellite 400 km straight up from the equator/prime meridian.
	sat := Vector3{X: obs.ECF.X + 400, Y: obs.ECF.Y, Z: obs.ECF.Z}
	la := ECFToLookAngles(obs, sat)

	if math.Abs(Degrees(la.Elevation)-90.0) > 0.1 {
		t.Errorf("overhead elevation = %.2f deg, want ~90", Degrees(la.Elevation))
	}
	if math.Abs(la.Range-400.0) > 1.0 {
		t.Errorf("overhead range = %.2f km, want ~400", la.Range)
	}
}

func TestECFToLookAngles_AzimuthDirections(t *testing.T) {
	obs := NewObserver(0, 0, 0)

	tests := []struct {
		name   string
		lat    float64
		lon    float64
		wantAz float64
	}{
		{"north", 10, 0, 0},
		{"east", 0, 10, 90},
		{"south", -10, 0, 180},
		{"west", 0, -10, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sat := NewObserver(tt.lat, tt.lon, 400)
			la := ECFToLookAngles(obs, sat.ECF)

			az := Degrees(la.Azimuth)
			diff := math.Abs(az - tt.wantAz)
			if diff > 180 {
				diff = 360 - diff
			}
			if diff > 30 {
				t.Errorf("azimuth = %.2f deg, want near %.0f", az, tt.wantAz)
			}
			if la.Azimuth < 0 || la.Azimuth >= 2*math.Pi {
				t.Errorf("azimuth %.4f rad outside [0, 2pi)", la.Azimuth)
			}
		})
	}
}

func TestECFToLookAngles_BelowHorizon(t *testing.T) {
	// Melbourne observer, satellite over the opposite side of the planet.
	obs := NewObserver(-37.8141, 144.9633, 0.054)
	sat := NewObserver(37.8141, -35.0367, 420)

	la := ECFToLookAngles(obs, sat.ECF)
	if la.Elevation >= 0 {
		t.Errorf("antipodal satellite elevation = %.2f deg, want negative", Degrees(la.Elevation))
	}
	if la.Range < 12000 {
		t.Errorf("antipodal range = %.1f km, want > 12000", la.Range)
	}
}
