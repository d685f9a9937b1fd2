package tle

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// gpRecord is the subset of the Space-Track GP (general perturbations) JSON
// schema carried into Elements. Numeric fields arrive as strings.
type gpRecord struct {
	NORADCatID string `json:"NORAD_CAT_ID"`
	ObjectName string `json:"OBJECT_NAME"`
	Epoch      string `json:"EPOCH"`
	Line0      string `json:"TLE_LINE0"`
	Line1      string `json:"TLE_LINE1"`
	Line2      string `json:"TLE_LINE2"`
}

// DecodeRecords parses a GP JSON array into Elements. Records whose lines fail
// validation abort the decode; checksum mismatches are only logged.
func DecodeRecords(data []byte, logger *slog.Logger) ([]Elements, error) {
	var records []gpRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding GP records: %w", err)
	}

	out := make([]Elements, 0, len(records))
	for i, r := range records {
		el, err := r.elements()
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.ObjectName, err)
		}
		warnChecksum(logger, el)
		out = append(out, el)
	}
	return out, nil
}

func (r gpRecord) elements() (Elements, error) {
	if err := ValidateLines(r.Line1, r.Line2); err != nil {
		return Elements{}, err
	}

	id, err := strconv.Atoi(strings.TrimSpace(r.NORADCatID))
	if err != nil {
		// Fall back to the catalogue number embedded in line 1.
		id, err = strconv.Atoi(strings.TrimSpace(r.Line1[2:7]))
		if err != nil {
			return Elements{}, fmt.Errorf("invalid NORAD id %q: %w", r.NORADCatID, err)
		}
	}

	epoch, err := lineEpoch(r.Line1)
	if err != nil {
		return Elements{}, fmt.Errorf("decoding epoch: %w", err)
	}

	name := strings.TrimSpace(r.ObjectName)
	line0 := r.Line0
	if line0 == "" && name != "" {
		line0 = "0 " + name
	}
	if name == "" {
		name = strings.TrimSpace(strings.TrimPrefix(line0, "0 "))
	}

	return Elements{
		NORADID:   id,
		Name:      name,
		Epoch:     r.Epoch,
		EpochTime: epoch,
		Line0:     line0,
		Line1:     r.Line1,
		Line2:     r.Line2,
	}, nil
}

func warnChecksum(logger *slog.Logger, el Elements) {
	if !ChecksumOK(el.Line1) || !ChecksumOK(el.Line2) {
		logger.Warn("TLE checksum mismatch", "norad_id", el.NORADID, "name", el.Name)
	}
}

// NewElements builds validated Elements from the persisted name, epoch label
// and lines. The catalogue number is taken from line 1.
func NewElements(name, epoch, line0, line1, line2 string) (Elements, error) {
	return gpRecord{
		ObjectName: name,
		Epoch:      epoch,
		Line0:      line0,
		Line1:      line1,
		Line2:      line2,
	}.elements()
}
