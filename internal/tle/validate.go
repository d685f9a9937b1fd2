package tle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const lineLength = 69

// column extracts a numeric field exactly as the SGP4 library does before
// handing it to strconv. The library panics on a parse failure,
// so every field it reads is checked here with the same transformation.
type column struct {
	name    string
	extract func(line string) string
	integer bool
}

// squeeze drops at most two blanks, matching the library's
// strings.Replace(s, " ", "", 2).
func squeeze(s string) string {
	return strings.Replace(s, " ", "", 2)
}

func cols(from, to int) func(string) string {
	return func(l string) string { return squeeze(l[from:to]) }
}

// exponent builds the "d.ddddde-d" form of the ndot-dot and bstar fields.
func exponent(at int) func(string) string {
	return func(l string) string {
		return squeeze(l[at:at+1] + "." + l[at+1:at+6] + "e" + l[at+6:at+8])
	}
}

var (
	line1Columns = []column{
		{"catalogue number", func(l string) string { return strings.TrimSpace(l[2:7]) }, true},
		{"epoch year", func(l string) string { return l[18:20] }, true},
		{"epoch day", func(l string) string { return l[20:32] }, false},
		{"mean motion first derivative", cols(33, 43), false},
		{"mean motion second derivative", exponent(44), false},
		{"bstar", exponent(53), false},
	}
	line2Columns = []column{
		{"inclination", cols(8, 16), false},
		{"right ascension", cols(17, 25), false},
		{"eccentricity", func(l string) string { return "." + l[26:33] }, false},
		{"argument of perigee", cols(34, 42), false},
		{"mean anomaly", cols(43, 51), false},
		{"mean motion", cols(52, 63), false},
	}
)

// ValidateLines checks that line1 and line2 form a well-formed TLE pair.
func ValidateLines(line1, line2 string) error {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")

	if len(line1) != lineLength {
		return fmt.Errorf("%w: line1 length %d, expected %d", ErrInvalidTLE, len(line1), lineLength)
	}
	if len(line2) != lineLength {
		return fmt.Errorf("%w: line2 length %d, expected %d", ErrInvalidTLE, len(line2), lineLength)
	}
	if line1[0] != '1' {
		return fmt.Errorf("%w: line1 must start with '1', got '%c'", ErrInvalidTLE, line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("%w: line2 must start with '2', got '%c'", ErrInvalidTLE, line2[0])
	}

	if err := checkColumns(line1, line1Columns); err != nil {
		return fmt.Errorf("%w: line1 %v", ErrInvalidTLE, err)
	}
	if err := checkColumns(line2, line2Columns); err != nil {
		return fmt.Errorf("%w: line2 %v", ErrInvalidTLE, err)
	}

	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return fmt.Errorf("%w: catalogue number mismatch %q vs %q", ErrInvalidTLE, line1[2:7], line2[2:7])
	}
	return nil
}

func checkColumns(line string, columns []column) error {
	for _, c := range columns {
		s := c.extract(line)
		var err error
		if c.integer {
			_, err = strconv.ParseInt(s, 10, 0)
		} else {
			_, err = strconv.ParseFloat(s, 64)
		}
		if err != nil {
			return fmt.Errorf("%s %q not numeric", c.name, s)
		}
	}
	return nil
}

// Checksum computes the modulo-10 checksum over the first 68 columns of a TLE
// line: digits count at face value, '-' counts as 1.
func Checksum(line string) int {
	if len(line) > lineLength-1 {
		line = line[:lineLength-1]
	}
	sum := 0
	for _, c := range line {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// ChecksumOK reports whether the last column of line matches its checksum.
func ChecksumOK(line string) bool {
	if len(line) < lineLength {
		return false
	}
	want := int(line[lineLength-1] - '0')
	return want == Checksum(line)
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := s[:2]
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", yearStr, err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}

// lineEpoch extracts and decodes the epoch from line 1 cols 19-32.
func lineEpoch(line1 string) (time.Time, error) {
	if len(line1) < 32 {
		return time.Time{}, fmt.Errorf("line1 too short for epoch")
	}
	return parseEpoch(strings.TrimSpace(line1[18:32]))
}
