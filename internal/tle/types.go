package tle

import (
	"errors"
	"time"
)

var (
	// ErrElementsNotFound is returned when a source holds no record for the requested id.
	ErrElementsNotFound = errors.New("orbital elements not found")

	// ErrInvalidTLE is returned for lines that fail format validation.
	ErrInvalidTLE = errors.New("invalid TLE")
)

// Elements is one satellite's two-line element set plus the labels that
// travel with it. Immutable once obtained.
type Elements struct {
	NORADID   int
	Name      string
	Epoch     string    // epoch label as delivered by the source record
	EpochTime time.Time // epoch decoded from line 1
	Line0     string
	Line1     string
	Line2     string
}

// Credentials authenticate against an element source. Sources that need no
// authentication ignore them.
type Credentials struct {
	Username string
	Password string
}
