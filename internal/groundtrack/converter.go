// Package groundtrack turns orbital elements into the ground-track and
// look-angle values the map UI reads, and keeps the key-value store in step
// with them.
package groundtrack

import (
	"fmt"
	"time"

	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// Transformer is the coordinate capability the converter is built on.
// propagation.Library implements it with go-satellite.
type Transformer interface {
	Propagate(el tle.Elements, at time.Time) (transform.StateVector, error)
	SiderealTime(at time.Time) float64
	ECIToECF(eci transform.Vector3, gmst float64) transform.Vector3
	ECIToGeodetic(eci transform.Vector3, gmst float64) transform.Geodetic
	LookAngles(obs transform.Observer, ecf transform.Vector3) transform.LookAngles
}

// Position is a sub-satellite point.
type Position struct {
	Latitude  float64 // degrees
	Longitude float64 // degrees, (-180, 180]
	Altitude  float64 // km
}

// Snapshot is the satellite as seen at one instant. Azimuth and elevation stay
// in radians here; they are converted to degrees only when persisted.
type Snapshot struct {
	Position
	LatitudeText  string // e.g. "37.8141°S"
	LongitudeText string // e.g. "144.9633°E"
	Azimuth       float64
	Elevation     float64
	Range         float64 // km
	At            time.Time
}

// Converter evaluates elements at an instant against GroundStation.
type Converter struct {
	tr       Transformer
	observer transform.Observer
	now      func() time.Time
}

// NewConverter creates a Converter. A nil now uses the wall clock.
func NewConverter(tr Transformer, now func() time.Time) *Converter {
	if now == nil {
		now = time.Now
	}
	return &Converter{
		tr:       tr,
		observer: GroundStation.Observer(),
		now:      now,
	}
}

// Now reads the converter's clock.
func (c *Converter) Now() time.Time {
	return c.now()
}

// AddMinutes returns t shifted by a signed number of minutes.
func AddMinutes(t time.Time, minutes int) time.Time {
	return t.Add(time.Duration(minutes) * time.Minute)
}

// Snapshot computes position and look angles at the given instant.
func (c *Converter) Snapshot(el tle.Elements, at time.Time) (Snapshot, error) {
	sv, err := c.tr.Propagate(el, at)
	if err != nil {
		return Snapshot{}, err
	}
	gmst := c.tr.SiderealTime(at)

	pos, err := c.position(sv, gmst)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot at %s: %w", at.UTC().Format(time.RFC3339), err)
	}
	la := c.tr.LookAngles(c.observer, c.tr.ECIToECF(sv.Position, gmst))

	return Snapshot{
		Position:      pos,
		LatitudeText:  transform.FormatLatitude(pos.Latitude),
		LongitudeText: transform.FormatLongitude(pos.Longitude),
		Azimuth:       la.Azimuth,
		Elevation:     la.Elevation,
		Range:         la.Range,
		At:            at,
	}, nil
}

// AtOffset computes the position minutes away from base.
func (c *Converter) AtOffset(el tle.Elements, base time.Time, minutes int) (Position, error) {
	at := AddMinutes(base, minutes)
	sv, err := c.tr.Propagate(el, at)
	if err != nil {
		return Position{}, err
	}
	pos, err := c.position(sv, c.tr.SiderealTime(at))
	if err != nil {
		return Position{}, fmt.Errorf("offset %+d min: %w", minutes, err)
	}
	return pos, nil
}

// Offset is AtOffset from a freshly read clock. Two calls with the same
// offset can disagree at the sub-second level.
func (c *Converter) Offset(el tle.Elements, minutes int) (Position, error) {
	return c.AtOffset(el, c.now(), minutes)
}

func (c *Converter) position(sv transform.StateVector, gmst float64) (Position, error) {
	gd := c.tr.ECIToGeodetic(sv.Position, gmst)
	lat, err := transform.LatitudeDegrees(gd.Latitude)
	if err != nil {
		return Position{}, err
	}
	lon, err := transform.LongitudeDegrees(gd.Longitude)
	if err != nil {
		return Position{}, err
	}
	return Position{Latitude: lat, Longitude: lon, Altitude: gd.Height}, nil
}
