// Package propagation adapts go-satellite to the coordinate-transformer
// capability the ground-track converter depends on.
package propagation

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// parsed holds the propagator for one pair of TLE lines.
// Immutable after construction; safe for concurrent reads.
type parsed struct {
	line1, line2 string
	prop         *SGP4Propagator
}

// Library is the go-satellite backed coordinate transformer. Parsing a TLE is
// the expensive step, so the most recent propagator is kept and reused while
// the lines stay the same.
type Library struct {
	logger *slog.Logger
	last   atomic.Pointer[parsed]
	mu     sync.Mutex // serializes cache rebuilds
}

// NewLibrary creates a transformer.
func NewLibrary(logger *slog.Logger) *Library {
	return &Library{logger: logger}
}

// propagator returns the cached propagator for el, rebuilding it if the lines
// changed (double-checked locking).
func (l *Library) propagator(el tle.Elements) (*SGP4Propagator, error) {
	if c := l.last.Load(); c != nil && c.line1 == el.Line1 && c.line2 == el.Line2 {
		return c.prop, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if c := l.last.Load(); c != nil && c.line1 == el.Line1 && c.line2 == el.Line2 {
		return c.prop, nil
	}

	prop, err := NewSGP4Propagator(el.Line1, el.Line2)
	if err != nil {
		return nil, fmt.Errorf("parsing elements for %q: %w", el.Name, err)
	}

	l.logger.Info("sgp4 propagator initialised",
		"norad_id", el.NORADID,
		"name", el.Name,
		"epoch", el.Epoch,
	)
	l.last.Store(&parsed{line1: el.Line1, line2: el.Line2, prop: prop})
	return prop, nil
}

// Propagate returns the inertial state of el at the given instant.
func (l *Library) Propagate(el tle.Elements, at time.Time) (transform.StateVector, error) {
	prop, err := l.propagator(el)
	if err != nil {
		metrics.RecordPropagationError()
		return transform.StateVector{}, err
	}
	sv, err := prop.Propagate(at)
	if err != nil {
		metrics.RecordPropagationError()
		return transform.StateVector{}, err
	}
	return sv, nil
}

// SiderealTime returns GMST in radians at the given instant.
func (l *Library) SiderealTime(at time.Time) float64 {
	return transform.SiderealTime(at)
}

// ECIToECF rotates an inertial position into the earth-fixed frame.
func (l *Library) ECIToECF(eci transform.Vector3, gmst float64) transform.Vector3 {
	return transform.ECIToECF(eci, gmst)
}

// ECIToGeodetic converts an inertial position to geodetic coordinates.
func (l *Library) ECIToGeodetic(eci transform.Vector3, gmst float64) transform.Geodetic {
	return transform.ECIToGeodetic(eci, gmst)
}

// LookAngles returns azimuth, elevation and range from obs to an earth-fixed target.
func (l *Library) LookAngles(obs transform.Observer, ecf transform.Vector3) transform.LookAngles {
	return transform.ECFToLookAngles(obs, ecf)
}
