package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads 3-line NORAD TLE format from r and returns parsed entries.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Elements, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Elements
	for i := 0; i+2 < len(lines); {
		name := lines[i]
		line1 := lines[i+1]
		line2 := lines[i+2]

		// Validate line prefixes.
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Try to find next valid triplet.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		if err := ValidateLines(line1, line2); err != nil {
			logger.Warn("skipping invalid TLE entry", "name", name, "error", err)
			i += 3
			continue
		}

		noradID, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
		if err != nil {
			logger.Warn("skipping TLE entry with invalid NORAD ID", "norad_str", line1[2:7], "name", name)
			i += 3
			continue
		}

		epoch, err := lineEpoch(line1)
		if err != nil {
			logger.Warn("skipping TLE entry with invalid epoch", "name", name, "error", err)
			i += 3
			continue
		}

		name = strings.TrimSpace(strings.TrimPrefix(name, "0 "))
		el := Elements{
			NORADID:   noradID,
			Name:      name,
			Epoch:     epochLabel(epoch),
			EpochTime: epoch,
			Line0:     "0 " + name,
			Line1:     line1,
			Line2:     line2,
		}
		warnChecksum(logger, el)
		entries = append(entries, el)
		i += 3
	}

	return entries, nil
}

// epochLabel renders an epoch the way GP records label it.
func epochLabel(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
