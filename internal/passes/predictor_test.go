package passes

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/tle"
)

var start = time.Date(2019, 12, 29, 18, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func issElements(t testing.TB) tle.Elements {
	t.Helper()
	el, err := tle.NewFixedSource(testLogger()).FetchElements(context.Background(), "", tle.Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	return el
}

func newPredictor() *Predictor {
	return NewPredictor(propagation.NewLibrary(testLogger()), groundtrack.GroundStation)
}

func TestPredictISS(t *testing.T) {
	passes, err := newPredictor().Predict(context.Background(), issElements(t), Request{
		Start:     start,
		Horizon:   24 * time.Hour,
		MaxPasses: 10,
	})
	if err != nil {
		t.Fatal(err)
	}

	// ISS in LEO should have multiple passes over Melbourne in 24h.
	if len(passes) == 0 {
		t.Fatal("expected at least 1 ISS pass over the ground station in 24h")
	}

	for i, p := range passes {
		if p.DurationSeconds < 10 {
			t.Errorf("pass %d: duration %.1fs too short", i, p.DurationSeconds)
		}
		if p.MaxElevation <= 0 || p.MaxElevation > 90 {
			t.Errorf("pass %d: max elevation %.2f out of range", i, p.MaxElevation)
		}
		for _, az := range []float64{p.AzimuthAtMax, p.StartAzimuth, p.EndAzimuth} {
			if az < 0 || az >= 360 {
				t.Errorf("pass %d: azimuth %.2f out of range", i, az)
			}
		}
		if p.StartTime.After(p.MaxElevationTime) || !p.MaxElevationTime.Before(p.EndTime) {
			t.Errorf("pass %d: time ordering violated: start=%v max=%v end=%v", i, p.StartTime, p.MaxElevationTime, p.EndTime)
		}
		if i > 0 && !passes[i-1].EndTime.Before(p.StartTime) {
			t.Errorf("pass %d overlaps the previous pass", i)
		}

		if len(p.GroundTrack) == 0 {
			t.Errorf("pass %d: expected ground track points, got none", i)
		}
		for j, gt := range p.GroundTrack {
			if gt.Latitude < -90 || gt.Latitude > 90 {
				t.Errorf("pass %d gt %d: latitude %.2f out of range", i, j, gt.Latitude)
			}
			if gt.Altitude < 300 || gt.Altitude > 500 {
				t.Errorf("pass %d gt %d: altitude %.0f km out of ISS range", i, j, gt.Altitude)
			}
			if gt.Elevation < 0 || gt.Elevation > 90 {
				t.Errorf("pass %d gt %d: elevation %.2f out of range (0-90)", i, j, gt.Elevation)
			}
		}

		t.Logf("pass %d: start=%v maxEl=%.1f° az=%.1f° dur=%.0fs groundTrack=%d pts",
			i, p.StartTime.Format(time.RFC3339), p.MaxElevation, p.AzimuthAtMax, p.DurationSeconds, len(p.GroundTrack))
	}
}

func TestPredictMinElevationFilter(t *testing.T) {
	pred := newPredictor()
	el := issElements(t)

	low, err := pred.Predict(context.Background(), el, Request{Start: start, Horizon: 48 * time.Hour, MaxPasses: 20})
	if err != nil {
		t.Fatal(err)
	}
	high, err := pred.Predict(context.Background(), el, Request{Start: start, Horizon: 48 * time.Hour, MinElevation: 45, MaxPasses: 20})
	if err != nil {
		t.Fatal(err)
	}

	if len(low) == 0 {
		t.Fatal("expected passes with min elevation 0")
	}
	if len(high) >= len(low) {
		t.Errorf("min elevation 45 passes (%d) should be fewer than min elevation 0 passes (%d)", len(high), len(low))
	}
	for i, p := range high {
		if p.MaxElevation < 45 {
			t.Errorf("pass %d: max elevation %.1f below the 45 degree floor", i, p.MaxElevation)
		}
	}
}

func TestPredictCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	passes, err := newPredictor().Predict(ctx, issElements(t), Request{Start: start, Horizon: 24 * time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if len(passes) != 0 {
		t.Errorf("cancelled prediction returned %d passes", len(passes))
	}
}

func TestPredictInvalidTLE(t *testing.T) {
	bad := issElements(t)
	bad.Line2 = bad.Line2[:60]

	if _, err := newPredictor().Predict(context.Background(), bad, Request{Start: start, Horizon: time.Hour}); err == nil {
		t.Fatal("expected error for a truncated line")
	}
}

// haversineKm computes the great-circle distance (km) between two geodetic points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	Δφ := (lat2 - lat1) * math.Pi / 180
	Δλ := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return R * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// TestGroundTrackWithinVisibilityCircle checks each pass point against the
// largest ground distance at which a satellite at that altitude is visible.
func TestGroundTrackWithinVisibilityCircle(t *testing.T) {
	passes, err := newPredictor().Predict(context.Background(), issElements(t), Request{
		Start:     start,
		Horizon:   24 * time.Hour,
		MaxPasses: 20,
	})
	if err != nil {
		t.Fatal(err)
	}

	gs := groundtrack.GroundStation
	for pi, p := range passes {
		for gi, gt := range p.GroundTrack {
			const R = 6371.0
			horizon := R * math.Acos(R/(R+gt.Altitude))
			// 10% slack for the spherical approximation.
			if d := haversineKm(gs.Latitude, gs.Longitude, gt.Latitude, gt.Longitude); d > horizon*1.1 {
				t.Errorf("pass %d gt[%d]: %.0f km from the station, visible limit %.0f km", pi, gi, d, horizon)
			}
		}
	}
}

func BenchmarkPredict24h(b *testing.B) {
	pred := newPredictor()
	el := issElements(b)
	req := Request{Start: start, Horizon: 24 * time.Hour, MinElevation: 10, MaxPasses: 10}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pred.Predict(context.Background(), el, req)
	}
}
