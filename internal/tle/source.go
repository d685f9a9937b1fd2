package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Source obtains orbital elements for a catalogue id. A remote implementation
// would use creds to authenticate; the sources in this package do not.
type Source interface {
	FetchElements(ctx context.Context, id string, creds Credentials) (Elements, error)
}

// fixedRecord is a Space-Track GP record for the ISS, epoch 2019-12-29.
const fixedRecord = `[{"COMMENT":"GENERATED VIA SPACETRACK.ORG API","ORIGINATOR":"18 SPCS","NORAD_CAT_ID":"25544","OBJECT_NAME":"ISS (ZARYA)","OBJECT_TYPE":"PAYLOAD","CLASSIFICATION_TYPE":"U","INTLDES":"98067A","EPOCH":"2019-12-29 16:31:19","EPOCH_MICROSECONDS":"315200","MEAN_MOTION":"15.49520118","ECCENTRICITY":"0.0005206","INCLINATION":"51.6441","RA_OF_ASC_NODE":"112.1375","ARG_OF_PERICENTER":"80.7345","MEAN_ANOMALY":"71.727","EPHEMERIS_TYPE":"0","ELEMENT_SET_NO":"999","REV_AT_EPOCH":"20558","BSTAR":"-1.3621e-05","MEAN_MOTION_DOT":"-1.219e-05","MEAN_MOTION_DDOT":"0","FILE":"2675216","TLE_LINE0":"0 ISS (ZARYA)","TLE_LINE1":"1 25544U 98067A   19363.68841800 -.00001219  00000-0 -13621-4 0  9999","TLE_LINE2":"2 25544  51.6441 112.1375 0005206  80.7345  71.7270 15.49520118205583","OBJECT_ID":"1998-067A","OBJECT_NUMBER":"25544","SEMIMAJOR_AXIS":"6796.265","PERIOD":"92.931","APOGEE":"421.669","PERIGEE":"414.592","DECAYED":"0"}]`

// FixedSource serves one hardcoded record.
type FixedSource struct {
	data   []byte
	logger *slog.Logger
}

// NewFixedSource returns a source backed by the built-in ISS record.
func NewFixedSource(logger *slog.Logger) *FixedSource {
	return &FixedSource{data: []byte(fixedRecord), logger: logger}
}

// FetchElements returns the built-in record when id is empty or names it.
func (s *FixedSource) FetchElements(ctx context.Context, id string, _ Credentials) (Elements, error) {
	if err := ctx.Err(); err != nil {
		return Elements{}, err
	}
	records, err := DecodeRecords(s.data, s.logger)
	if err != nil {
		return Elements{}, err
	}
	return selectRecord(records, id)
}

// FileSource reads elements from a local file holding either a GP JSON array
// or 3-line TLE text.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource creates a FileSource reading from path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// FetchElements reads the file and returns the record for id, or the first
// record when id is empty.
func (s *FileSource) FetchElements(ctx context.Context, id string, _ Credentials) (Elements, error) {
	if err := ctx.Err(); err != nil {
		return Elements{}, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Elements{}, fmt.Errorf("reading elements file: %w", err)
	}

	var records []Elements
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		records, err = DecodeRecords(trimmed, s.logger)
	} else {
		records, err = Parse(bytes.NewReader(data), s.logger)
	}
	if err != nil {
		return Elements{}, err
	}
	return selectRecord(records, id)
}

func selectRecord(records []Elements, id string) (Elements, error) {
	if len(records) == 0 {
		return Elements{}, ErrElementsNotFound
	}
	if id == "" {
		return records[0], nil
	}
	want, err := strconv.Atoi(id)
	if err != nil {
		return Elements{}, fmt.Errorf("invalid NORAD id %q: %w", id, err)
	}
	for _, r := range records {
		if r.NORADID == want {
			return r, nil
		}
	}
	return Elements{}, fmt.Errorf("NORAD %d: %w", want, ErrElementsNotFound)
}
