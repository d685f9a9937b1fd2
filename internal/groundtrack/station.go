package groundtrack

import "github.com/star/groundtrack/internal/transform"

// Station is a fixed ground observer in degrees and km.
type Station struct {
	Latitude  float64
	Longitude float64
	Height    float64
}

// GroundStation is the Melbourne station every look angle is computed from.
var GroundStation = Station{Latitude: -37.8141, Longitude: 144.9633, Height: 0.054}

// Observer returns the station in the form the transformer consumes.
func (s Station) Observer() transform.Observer {
	return transform.NewObserver(s.Latitude, s.Longitude, s.Height)
}
