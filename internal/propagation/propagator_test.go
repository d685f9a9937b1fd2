package propagation

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// ISS elements, epoch 2019-12-29 16:31:19 UTC.
const (
	issLine1 = "1 25544U 98067A   19363.68841800 -.00001219  00000-0 -13621-4 0  9999"
	issLine2 = "2 25544  51.6441 112.1375 0005206  80.7345  71.7270 15.49520118205583"
)

var issEpoch = time.Date(2019, 12, 29, 16, 31, 19, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func issElements() tle.Elements {
	return tle.Elements{NORADID: 25544, Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2}
}

// TestPropagateSingle verifies that the ISS propagates to a physically
// reasonable inertial state near its epoch.
func TestPropagateSingle(t *testing.T) {
	prop, err := NewSGP4Propagator(issLine1, issLine2)
	if err != nil {
		t.Fatalf("NewSGP4Propagator failed: %v", err)
	}

	sv, err := prop.Propagate(issEpoch.Add(30 * time.Minute))
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	// ~6371 + 420 km.
	if mag := sv.Position.Norm(); mag < 6650 || mag > 6850 {
		t.Errorf("position magnitude = %.1f km, expected ~6790 km (ISS orbit)", mag)
	}
	// Circular LEO speed ~7.66 km/s.
	if speed := sv.Velocity.Norm(); speed < 7.4 || speed > 7.9 {
		t.Errorf("speed = %.3f km/s, expected ~7.66 km/s", speed)
	}
}

// TestPropagateTruncatesSubSecond verifies that instants inside the same
// second propagate to the same state.
func TestPropagateTruncatesSubSecond(t *testing.T) {
	prop, err := NewSGP4Propagator(issLine1, issLine2)
	if err != nil {
		t.Fatal(err)
	}
	a, err := prop.Propagate(issEpoch)
	if err != nil {
		t.Fatal(err)
	}
	b, err := prop.Propagate(issEpoch.Add(900 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("sub-second offset changed state: %+v vs %+v", a.Position, b.Position)
	}
}

// TestPropagateInvalidTLE verifies that an invalid TLE returns an error
// instead of reaching the library.
func TestPropagateInvalidTLE(t *testing.T) {
	_, err := NewSGP4Propagator("invalid line 1", "invalid line 2")
	if !errors.Is(err, tle.ErrInvalidTLE) {
		t.Fatalf("expected ErrInvalidTLE, got %v", err)
	}

	// Columns the library would fail to parse must be rejected before it sees them.
	for _, line2 := range []string{
		strings.Replace(issLine2, "0005206", "000520 ", 1),
		strings.Replace(issLine2, " 51.6441", "  51.64 ", 1),
	} {
		if _, err := NewSGP4Propagator(issLine1, line2); !errors.Is(err, tle.ErrInvalidTLE) {
			t.Errorf("line2 %q: expected ErrInvalidTLE, got %v", line2, err)
		}
	}
}

func TestLibraryReusesPropagator(t *testing.T) {
	lib := NewLibrary(testLogger())
	el := issElements()

	if _, err := lib.Propagate(el, issEpoch); err != nil {
		t.Fatal(err)
	}
	first := lib.last.Load()

	if _, err := lib.Propagate(el, issEpoch.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if lib.last.Load() != first {
		t.Error("propagator rebuilt for unchanged lines")
	}

	bad := el
	bad.Line1 = bad.Line1[:68]
	if _, err := lib.Propagate(bad, issEpoch); !errors.Is(err, tle.ErrInvalidTLE) {
		t.Errorf("expected ErrInvalidTLE for short line, got %v", err)
	}
	if lib.last.Load() != first {
		t.Error("failed parse replaced the cached propagator")
	}
}

// TestLibraryPipeline runs the full ECI -> ECF -> geodetic -> look angle chain.
func TestLibraryPipeline(t *testing.T) {
	lib := NewLibrary(testLogger())
	at := issEpoch.Add(45 * time.Minute)

	sv, err := lib.Propagate(issElements(), at)
	if err != nil {
		t.Fatal(err)
	}
	gmst := lib.SiderealTime(at)

	ecf := lib.ECIToECF(sv.Position, gmst)
	if math.Abs(ecf.Norm()-sv.Position.Norm()) > 1e-6 {
		t.Errorf("ECF magnitude %.6f differs from ECI magnitude %.6f", ecf.Norm(), sv.Position.Norm())
	}

	gd := lib.ECIToGeodetic(sv.Position, gmst)
	// Inclination bounds the latitude.
	if math.Abs(transform.Degrees(gd.Latitude)) > 51.7 {
		t.Errorf("latitude %.3f exceeds orbit inclination", transform.Degrees(gd.Latitude))
	}
	if gd.Height < 380 || gd.Height > 460 {
		t.Errorf("height = %.1f km, expected ~420 km", gd.Height)
	}

	// The sub-satellite point computed from the geodetic result must be
	// directly overhead.
	obs := transform.NewObserver(transform.Degrees(gd.Latitude), transform.Degrees(gd.Longitude), 0)
	la := lib.LookAngles(obs, ecf)
	if math.Abs(transform.Degrees(la.Elevation)-90) > 0.5 {
		t.Errorf("elevation from sub-satellite point = %.3f deg, want ~90", transform.Degrees(la.Elevation))
	}
	if math.Abs(la.Range-gd.Height) > 1 {
		t.Errorf("range from sub-satellite point = %.3f km, want ~%.3f", la.Range, gd.Height)
	}
}
