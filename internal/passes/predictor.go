// Package passes predicts when the satellite rises above the ground station's
// horizon, for pointing the antenna ahead of time.
package passes

import (
	"context"
	"fmt"
	"time"

	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// TrackPoint is a sub-satellite position sampled during a pass.
type TrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Elevation float64   `json:"elevation"` // degrees above the station's horizon
}

// Pass describes one pass over the ground station. Angles are degrees.
type Pass struct {
	StartTime        time.Time    `json:"start_time"`
	MaxElevationTime time.Time    `json:"max_elevation_time"`
	EndTime          time.Time    `json:"end_time"`
	DurationSeconds  float64      `json:"duration_seconds"`
	MaxElevation     float64      `json:"max_elevation"`
	AzimuthAtMax     float64      `json:"azimuth_at_max"`
	StartAzimuth     float64      `json:"start_azimuth"`
	EndAzimuth       float64      `json:"end_azimuth"`
	GroundTrack      []TrackPoint `json:"ground_track"`
}

// Request holds the parameters for a prediction.
type Request struct {
	Start        time.Time
	Horizon      time.Duration
	MinElevation float64 // degrees
	MaxPasses    int
}

const (
	coarseStep      = 30 * time.Second
	fineStep        = time.Second
	groundTrackStep = 10 * time.Second
	minPassDur      = 10 * time.Second
)

// Predictor finds passes over a station using the converter's transformer.
type Predictor struct {
	tr  groundtrack.Transformer
	obs transform.Observer
}

// NewPredictor creates a Predictor for station.
func NewPredictor(tr groundtrack.Transformer, station groundtrack.Station) *Predictor {
	return &Predictor{tr: tr, obs: station.Observer()}
}

// Predict returns up to req.MaxPasses passes of el starting within
// [req.Start, req.Start+req.Horizon). Cancellation returns the passes found so far.
func (p *Predictor) Predict(ctx context.Context, el tle.Elements, req Request) ([]Pass, error) {
	if req.MaxPasses <= 0 {
		req.MaxPasses = 10
	}
	// Parse failures surface here rather than being skipped by the scan.
	if _, err := p.tr.Propagate(el, req.Start); err != nil {
		return nil, fmt.Errorf("predicting passes: %w", err)
	}

	end := req.Start.Add(req.Horizon)
	var passes []Pass

	// Coarse scan: step through the range looking for elevation above zero.
	t := req.Start
	for t.Before(end) && len(passes) < req.MaxPasses {
		if ctx.Err() != nil {
			return passes, nil
		}

		elev, _, _, err := p.elevationAt(el, t)
		if err != nil || elev <= 0 {
			t = t.Add(coarseStep)
			continue
		}

		pass, windowEnd := p.refine(ctx, el, t, req.Start, end, req.MinElevation)
		if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDur {
			passes = append(passes, *pass)
		}
		t = windowEnd.Add(coarseStep)
	}

	return passes, nil
}

// refine does a fine scan around a coarse hit. It backs up to find the rise,
// then scans forward to the set. Returns the pass and where the window ended.
func (p *Predictor) refine(ctx context.Context, el tle.Elements, coarseHit, windowStart, windowEnd time.Time, minElev float64) (*Pass, time.Time) {
	searchStart := coarseHit.Add(-coarseStep)
	if searchStart.Before(windowStart) {
		searchStart = windowStart
	}

	var (
		pass      Pass
		wasAbove  bool
		foundRise bool
	)

	t := searchStart
	for t.Before(windowEnd) {
		if ctx.Err() != nil {
			break
		}

		elev, az, gd, err := p.elevationAt(el, t)
		if err != nil {
			t = t.Add(fineStep)
			continue
		}
		above := elev >= minElev

		if above && !wasAbove {
			foundRise = true
			pass = Pass{
				StartTime:        t,
				StartAzimuth:     az,
				MaxElevation:     elev,
				MaxElevationTime: t,
				AzimuthAtMax:     az,
			}
		}

		if above && foundRise {
			if elev > pass.MaxElevation {
				pass.MaxElevation = elev
				pass.MaxElevationTime = t
				pass.AzimuthAtMax = az
			}
			if t.Sub(pass.StartTime)%groundTrackStep == 0 {
				pass.GroundTrack = append(pass.GroundTrack, TrackPoint{
					Time:      t,
					Latitude:  transform.Degrees(gd.Latitude),
					Longitude: transform.Degrees(gd.Longitude),
					Altitude:  gd.Height,
					Elevation: elev,
				})
			}
		}

		if !above && wasAbove && foundRise {
			pass.EndTime = t
			pass.EndAzimuth = az
			break
		}

		wasAbove = above
		t = t.Add(fineStep)
	}

	// Still above at the end of the window: close the pass there.
	if foundRise && pass.EndTime.IsZero() && wasAbove {
		pass.EndTime = t
		if _, az, _, err := p.elevationAt(el, t); err == nil {
			pass.EndAzimuth = az
		}
	}

	if !foundRise || pass.EndTime.IsZero() {
		return nil, t
	}
	pass.DurationSeconds = pass.EndTime.Sub(pass.StartTime).Seconds()
	return &pass, pass.EndTime
}

// elevationAt returns elevation and azimuth in degrees and the geodetic
// sub-satellite point at t.
func (p *Predictor) elevationAt(el tle.Elements, t time.Time) (float64, float64, transform.Geodetic, error) {
	sv, err := p.tr.Propagate(el, t)
	if err != nil {
		return 0, 0, transform.Geodetic{}, err
	}
	gmst := p.tr.SiderealTime(t)
	la := p.tr.LookAngles(p.obs, p.tr.ECIToECF(sv.Position, gmst))
	return transform.Degrees(la.Elevation), transform.Degrees(la.Azimuth), p.tr.ECIToGeodetic(sv.Position, gmst), nil
}
