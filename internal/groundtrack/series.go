package groundtrack

import (
	"context"
	"fmt"
	"time"

	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/tle"
)

// SampleWindow is the largest offset, in minutes, sampled either side of the
// base instant.
const SampleWindow = 90

// OffsetSeries holds the sampled track. Index i of the Next sequences is
// i minutes after the base instant and of the Prev sequences i minutes before.
type OffsetSeries struct {
	NextLat  []float64
	NextLong []float64
	NextAlt  []float64
	PrevLat  []float64
	PrevLong []float64
	PrevAlt  []float64
}

// Sample evaluates el at every offset in [-SampleWindow, SampleWindow]. The
// first failure aborts the whole pass and no partial series is returned.
func (c *Converter) Sample(ctx context.Context, el tle.Elements, base time.Time) (OffsetSeries, error) {
	start := time.Now()
	const n = SampleWindow + 1
	s := OffsetSeries{
		NextLat:  make([]float64, n),
		NextLong: make([]float64, n),
		NextAlt:  make([]float64, n),
		PrevLat:  make([]float64, n),
		PrevLong: make([]float64, n),
		PrevAlt:  make([]float64, n),
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return OffsetSeries{}, err
		}

		next, err := c.AtOffset(el, base, i)
		if err != nil {
			return OffsetSeries{}, fmt.Errorf("sampling: %w", err)
		}
		s.NextLat[i], s.NextLong[i], s.NextAlt[i] = next.Latitude, next.Longitude, next.Altitude

		prev, err := c.AtOffset(el, base, -i)
		if err != nil {
			return OffsetSeries{}, fmt.Errorf("sampling: %w", err)
		}
		s.PrevLat[i], s.PrevLong[i], s.PrevAlt[i] = prev.Latitude, prev.Longitude, prev.Altitude
	}

	metrics.RecordSampling(time.Since(start))
	return s, nil
}
