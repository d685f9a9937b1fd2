package groundtrack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/star/groundtrack/internal/kvstore"
	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// ErrNoElements is returned by a refresh before any elements are loaded.
var ErrNoElements = errors.New("no orbital elements loaded")

// Session holds the current elements and drives the fetch and refresh
// operations. Operations are serialised, so the store sees one writer at a
// time. Every value computed within one operation uses a single instant.
type Session struct {
	source tle.Source
	conv   *Converter
	writer *kvstore.Writer
	cache  *tle.Cache
	logger *slog.Logger

	mu       sync.Mutex
	elements *tle.Elements

	updates hub
}

// NewSession creates a Session. cache may be nil.
func NewSession(source tle.Source, conv *Converter, writer *kvstore.Writer, cache *tle.Cache, logger *slog.Logger) *Session {
	return &Session{
		source: source,
		conv:   conv,
		writer: writer,
		cache:  cache,
		logger: logger,
	}
}

// Elements returns the loaded elements, if any.
func (s *Session) Elements() (tle.Elements, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.elements == nil {
		return tle.Elements{}, false
	}
	return *s.elements, true
}

// Now returns the session clock's current instant.
func (s *Session) Now() time.Time {
	return s.conv.Now()
}

// Fetch loads elements for id from the session's source, computes the
// snapshot and series, and replaces the store contents with the full field
// set. The fetched record is also written to the cache.
func (s *Session) Fetch(ctx context.Context, id string, creds tle.Credentials) error {
	return s.run("fetch", func() error {
		return s.fetch(ctx, s.source, id, creds, s.cache != nil)
	})
}

// FetchFrom is Fetch with an explicit source and no cache write. It is used
// to start from a cached record.
func (s *Session) FetchFrom(ctx context.Context, src tle.Source, id string) error {
	return s.run("fetch", func() error {
		return s.fetch(ctx, src, id, tle.Credentials{}, false)
	})
}

func (s *Session) fetch(ctx context.Context, src tle.Source, id string, creds tle.Credentials, cache bool) error {
	el, err := src.FetchElements(ctx, id, creds)
	if err != nil {
		return fmt.Errorf("fetching elements: %w", err)
	}

	now := s.conv.Now()
	snap, err := s.conv.Snapshot(el, now)
	if err != nil {
		return err
	}
	series, err := s.conv.Sample(ctx, el, now)
	if err != nil {
		return err
	}
	fields := FullFields(el, snap, series)
	if err := s.writer.Replace(ctx, fields); err != nil {
		return err
	}

	s.elements = &el
	publish(snap)
	s.updates.publish(Update{Operation: "fetch", Replaced: true, Fields: fields})
	s.logger.Info("elements fetched",
		"norad_id", el.NORADID,
		"name", el.Name,
		"epoch", el.Epoch,
		"lat", snap.LatitudeText,
		"long", snap.LongitudeText,
	)

	if cache {
		if err := s.cache.Write(el, now); err != nil {
			s.logger.Warn("caching elements failed", "error", err)
		}
	}
	return nil
}

// RefreshSnapshot recomputes the current position and look angles and
// overwrites only those keys.
func (s *Session) RefreshSnapshot(ctx context.Context) error {
	return s.run("refresh_snapshot", func() error {
		if s.elements == nil {
			return ErrNoElements
		}
		snap, err := s.conv.Snapshot(*s.elements, s.conv.Now())
		if err != nil {
			return err
		}
		fields := SnapshotFields(snap)
		if err := s.writer.Merge(ctx, fields); err != nil {
			return err
		}
		publish(snap)
		s.updates.publish(Update{Operation: "refresh_snapshot", Fields: fields})
		return nil
	})
}

// RefreshSeries resamples the offset window and overwrites only the
// sequence keys.
func (s *Session) RefreshSeries(ctx context.Context) error {
	return s.run("refresh_series", func() error {
		if s.elements == nil {
			return ErrNoElements
		}
		series, err := s.conv.Sample(ctx, *s.elements, s.conv.Now())
		if err != nil {
			return err
		}
		fields := SeriesFields(series)
		if err := s.writer.Merge(ctx, fields); err != nil {
			return err
		}
		s.updates.publish(Update{Operation: "refresh_series", Fields: fields})
		return nil
	})
}

// Subscribe registers for updates published after each successful write.
// The returned function unsubscribes; the channel is never closed.
func (s *Session) Subscribe(buf int) (<-chan Update, func()) {
	return s.updates.subscribe(buf)
}

// Subscribers returns the number of active subscriptions.
func (s *Session) Subscribers() int {
	return s.updates.count()
}

// Resume loads the elements a previous fetch left in the store.
func (s *Session) Resume(ctx context.Context) error {
	return s.run("resume", func() error {
		store := s.writer.Store()
		var vals [5]string
		for i, key := range []string{KeySatName, KeyEpoch, KeyTLELine0, KeyTLELine1, KeyTLELine2} {
			raw, err := store.Get(ctx, key)
			if errors.Is(err, kvstore.ErrNotFound) {
				return fmt.Errorf("%w: store has no %q", ErrNoElements, key)
			}
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &vals[i]); err != nil {
				return fmt.Errorf("decoding %q: %w", key, err)
			}
		}

		el, err := tle.NewElements(vals[0], vals[1], vals[2], vals[3], vals[4])
		if err != nil {
			return fmt.Errorf("restoring elements: %w", err)
		}
		s.elements = &el
		s.logger.Info("elements restored from store", "norad_id", el.NORADID, "name", el.Name)
		return nil
	})
}

func (s *Session) run(op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	err := fn()
	metrics.RecordOperation(op, time.Since(start), err)
	switch {
	case errors.Is(err, ErrNoElements):
		s.logger.Debug("operation skipped", "operation", op, "error", err)
	case err != nil:
		s.logger.Error("operation failed", "operation", op, "error", err)
	}
	return err
}

func publish(snap Snapshot) {
	metrics.SetSnapshot(snap.Latitude, snap.Longitude, snap.Altitude, transform.Degrees(snap.Elevation))
}
