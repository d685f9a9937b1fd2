package groundtrack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/groundtrack/internal/kvstore"
	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// base is about 90 minutes after the built-in ISS record's epoch.
var base = time.Date(2019, 12, 29, 18, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// clock is a settable time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func issElements(t *testing.T) tle.Elements {
	t.Helper()
	el, err := tle.NewFixedSource(testLogger()).FetchElements(context.Background(), "25544", tle.Credentials{})
	require.NoError(t, err)
	return el
}

func newConverter(c *clock) *Converter {
	return NewConverter(propagation.NewLibrary(testLogger()), c.now)
}

func newSession(tr Transformer, c *clock, store kvstore.Store) *Session {
	logger := testLogger()
	return NewSession(
		tle.NewFixedSource(logger),
		NewConverter(tr, c.now),
		kvstore.NewWriter(store, logger),
		nil,
		logger,
	)
}

// failingTransformer fails propagation at one instant.
type failingTransformer struct {
	Transformer
	failAt time.Time
}

func (f failingTransformer) Propagate(el tle.Elements, at time.Time) (transform.StateVector, error) {
	if at.Equal(f.failAt) {
		return transform.StateVector{}, errors.New("propagation diverged")
	}
	return f.Transformer.Propagate(el, at)
}

func TestAddMinutes(t *testing.T) {
	assert.Equal(t, base.Add(90*time.Minute), AddMinutes(base, 90))
	assert.Equal(t, base.Add(-90*time.Minute), AddMinutes(base, -90))
	assert.Equal(t, base, AddMinutes(base, 0))
}

func TestSnapshot(t *testing.T) {
	conv := newConverter(&clock{t: base})
	snap, err := conv.Snapshot(issElements(t), base)
	require.NoError(t, err)

	assert.InDelta(t, 420, snap.Altitude, 40)
	assert.LessOrEqual(t, math.Abs(snap.Latitude), 51.7)
	assert.True(t, snap.Longitude > -180 && snap.Longitude <= 180)
	assert.True(t, snap.Azimuth >= 0 && snap.Azimuth < 2*math.Pi)
	assert.True(t, snap.Elevation >= -math.Pi/2 && snap.Elevation <= math.Pi/2)
	assert.Greater(t, snap.Range, 0.0)
	assert.Equal(t, base, snap.At)
	assert.Regexp(t, `^\d+\.\d{4}°[NS]$`, snap.LatitudeText)
	assert.Regexp(t, `^\d+\.\d{4}°[EW]$`, snap.LongitudeText)
}

func TestSnapshotMatchesOffsetZero(t *testing.T) {
	conv := newConverter(&clock{t: base})
	el := issElements(t)

	snap, err := conv.Snapshot(el, base)
	require.NoError(t, err)
	pos, err := conv.AtOffset(el, base, 0)
	require.NoError(t, err)

	assert.Equal(t, snap.Position, pos)
}

func TestOffsetReadsClock(t *testing.T) {
	c := &clock{t: base}
	conv := newConverter(c)
	el := issElements(t)

	got, err := conv.Offset(el, 5)
	require.NoError(t, err)
	want, err := conv.AtOffset(el, base, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	c.t = base.Add(10 * time.Minute)
	moved, err := conv.Offset(el, 5)
	require.NoError(t, err)
	assert.NotEqual(t, want, moved)
}

func TestSampleShape(t *testing.T) {
	conv := newConverter(&clock{t: base})
	s, err := conv.Sample(context.Background(), issElements(t), base)
	require.NoError(t, err)

	for name, seq := range map[string][]float64{
		"NextLat": s.NextLat, "NextLong": s.NextLong, "NextAlt": s.NextAlt,
		"PrevLat": s.PrevLat, "PrevLong": s.PrevLong, "PrevAlt": s.PrevAlt,
	} {
		assert.Len(t, seq, SampleWindow+1, name)
	}

	// Offset 0 is shared by both directions.
	assert.Equal(t, s.NextLat[0], s.PrevLat[0])
	assert.Equal(t, s.NextLong[0], s.PrevLong[0])
	assert.Equal(t, s.NextAlt[0], s.PrevAlt[0])
}

func TestSampleMatchesOffsets(t *testing.T) {
	conv := newConverter(&clock{t: base})
	el := issElements(t)
	s, err := conv.Sample(context.Background(), el, base)
	require.NoError(t, err)

	for _, i := range []int{0, 1, 17, 45, 89, 90} {
		next, err := conv.AtOffset(el, base, i)
		require.NoError(t, err)
		assert.Equal(t, next, Position{Latitude: s.NextLat[i], Longitude: s.NextLong[i], Altitude: s.NextAlt[i]}, "next[%d]", i)

		prev, err := conv.AtOffset(el, base, -i)
		require.NoError(t, err)
		assert.Equal(t, prev, Position{Latitude: s.PrevLat[i], Longitude: s.PrevLong[i], Altitude: s.PrevAlt[i]}, "prev[%d]", i)
	}
}

func TestSampleAbortsOnFailure(t *testing.T) {
	tr := failingTransformer{Transformer: propagation.NewLibrary(testLogger()), failAt: AddMinutes(base, -37)}
	conv := NewConverter(tr, (&clock{t: base}).now)

	s, err := conv.Sample(context.Background(), issElements(t), base)
	require.Error(t, err)
	assert.Nil(t, s.NextLat)
	assert.Nil(t, s.PrevLat)
}

func TestSampleCancelled(t *testing.T) {
	conv := newConverter(&clock{t: base})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conv.Sample(ctx, issElements(t), base)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchWritesExactKeySet(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	require.NoError(t, store.SetAll(ctx, []kvstore.Entry{{Key: "staleKey", Value: []byte(`1`)}}))

	sess := newSession(propagation.NewLibrary(testLogger()), &clock{t: base}, store)
	require.NoError(t, sess.Fetch(ctx, "25544", tle.Credentials{}))

	want := []string{
		KeySatName, KeyEpoch, KeyTLELine0, KeyTLELine1, KeyTLELine2,
		KeyLat, KeyLong, KeyAltitude, KeyAzimuth, KeyElevation, KeyRange,
		KeyAntAz, KeyAntEl,
		KeyNextLat, KeyNextLong, KeyNextAlt, KeyPrevLat, KeyPrevLong, KeyPrevAlt,
		KeyGSLat, KeyGSLong, KeyGSAlt, KeyTracking,
	}
	sort.Strings(want)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, keys)

	assertJSON(t, store, KeySatName, "ISS (ZARYA)")
	assertJSON(t, store, KeyEpoch, "2019-12-29 16:31:19")
	assertJSON(t, store, KeyTLELine0, "0 ISS (ZARYA)")
	assertJSON(t, store, KeyGSLat, -37.8141)
	assertJSON(t, store, KeyGSLong, 144.9633)
	assertJSON(t, store, KeyGSAlt, 0.054)
	assertJSON(t, store, KeyAntAz, 0.0)
	assertJSON(t, store, KeyTracking, 0.0)

	el, ok := sess.Elements()
	require.True(t, ok)
	assert.Equal(t, 25544, el.NORADID)
}

func TestFetchUnknownIDPersistsNothing(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	sess := newSession(propagation.NewLibrary(testLogger()), &clock{t: base}, store)

	err := sess.Fetch(ctx, "44713", tle.Credentials{})
	assert.ErrorIs(t, err, tle.ErrElementsNotFound)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPersistedAnglesAreDegrees(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	sess := newSession(propagation.NewLibrary(testLogger()), &clock{t: base}, store)
	require.NoError(t, sess.Fetch(ctx, "", tle.Credentials{}))

	snap, err := newConverter(&clock{t: base}).Snapshot(issElements(t), base)
	require.NoError(t, err)

	var az, el float64
	decode(t, store, KeyAzimuth, &az)
	decode(t, store, KeyElevation, &el)
	assert.InDelta(t, snap.Azimuth*180/math.Pi, az, 1e-9)
	assert.InDelta(t, snap.Elevation*180/math.Pi, el, 1e-9)

	var lat, long float64
	decode(t, store, KeyLat, &lat)
	decode(t, store, KeyLong, &long)
	assert.Equal(t, snap.Latitude, lat)
	assert.Equal(t, snap.Longitude, long)
}

func TestRefreshSnapshotKeepsSeries(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	c := &clock{t: base}
	sess := newSession(propagation.NewLibrary(testLogger()), c, store)
	require.NoError(t, sess.Fetch(ctx, "", tle.Credentials{}))

	seriesKeys := []string{KeyNextLat, KeyNextLong, KeyNextAlt, KeyPrevLat, KeyPrevLong, KeyPrevAlt}
	before := snapshotRaw(t, store, append(seriesKeys, KeyLat)...)

	c.t = base.Add(5 * time.Minute)
	require.NoError(t, sess.RefreshSnapshot(ctx))

	after := snapshotRaw(t, store, append(seriesKeys, KeyLat)...)
	for _, k := range seriesKeys {
		assert.Equal(t, before[k], after[k], k)
	}
	assert.NotEqual(t, before[KeyLat], after[KeyLat])

	// The refreshed position is the forward sample five minutes out.
	var next []float64
	var lat float64
	decode(t, store, KeyNextLat, &next)
	decode(t, store, KeyLat, &lat)
	assert.Equal(t, next[5], lat)
}

func TestRefreshSeriesKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	c := &clock{t: base}
	sess := newSession(propagation.NewLibrary(testLogger()), c, store)
	require.NoError(t, sess.Fetch(ctx, "", tle.Credentials{}))

	snapKeys := []string{KeyLat, KeyLong, KeyAltitude, KeyAzimuth, KeyElevation, KeyRange}
	before := snapshotRaw(t, store, append(snapKeys, KeyNextLat)...)

	c.t = base.Add(3 * time.Minute)
	require.NoError(t, sess.RefreshSeries(ctx))

	after := snapshotRaw(t, store, append(snapKeys, KeyNextLat)...)
	for _, k := range snapKeys {
		assert.Equal(t, before[k], after[k], k)
	}
	assert.NotEqual(t, before[KeyNextLat], after[KeyNextLat])
}

func TestFailedRefreshLeavesStore(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	c := &clock{t: base}
	lib := propagation.NewLibrary(testLogger())

	require.NoError(t, newSession(lib, c, store).Fetch(ctx, "", tle.Credentials{}))
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	before := snapshotRaw(t, store, keys...)

	later := base.Add(time.Hour)
	c.t = later
	failing := newSession(failingTransformer{Transformer: lib, failAt: AddMinutes(later, 90)}, c, store)

	err = failing.Fetch(ctx, "", tle.Credentials{})
	require.Error(t, err)
	assert.Equal(t, before, snapshotRaw(t, store, keys...))

	require.NoError(t, failing.Resume(ctx))
	require.Error(t, failing.RefreshSeries(ctx))
	assert.Equal(t, before, snapshotRaw(t, store, keys...))

	failing = newSession(failingTransformer{Transformer: lib, failAt: later}, c, store)
	require.NoError(t, failing.Resume(ctx))
	require.Error(t, failing.RefreshSnapshot(ctx))
	assert.Equal(t, before, snapshotRaw(t, store, keys...))
}

func TestUpdatesFollowWrites(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: base}
	sess := newSession(propagation.NewLibrary(testLogger()), c, kvstore.NewMemory())

	updates, unsubscribe := sess.Subscribe(4)
	assert.Equal(t, 1, sess.Subscribers())

	require.NoError(t, sess.Fetch(ctx, "", tle.Credentials{}))
	require.NoError(t, sess.RefreshSnapshot(ctx))
	require.NoError(t, sess.RefreshSeries(ctx))

	u := <-updates
	assert.Equal(t, "fetch", u.Operation)
	assert.True(t, u.Replaced)
	assert.Len(t, u.Fields, 23)

	u = <-updates
	assert.Equal(t, "refresh_snapshot", u.Operation)
	assert.False(t, u.Replaced)
	assert.Len(t, u.Fields, 6)

	u = <-updates
	assert.Equal(t, "refresh_series", u.Operation)
	assert.Len(t, u.Fields, 6)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, sess.Subscribers())
}

func TestFailedWritePublishesNothing(t *testing.T) {
	ctx := context.Background()
	lib := propagation.NewLibrary(testLogger())
	sess := newSession(failingTransformer{Transformer: lib, failAt: base}, &clock{t: base}, kvstore.NewMemory())

	updates, unsubscribe := sess.Subscribe(1)
	defer unsubscribe()

	require.Error(t, sess.Fetch(ctx, "", tle.Credentials{}))
	select {
	case u := <-updates:
		t.Fatalf("unexpected update %q", u.Operation)
	default:
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	sess := newSession(propagation.NewLibrary(testLogger()), &clock{t: base}, kvstore.NewMemory())

	updates, unsubscribe := sess.Subscribe(1)
	defer unsubscribe()

	require.NoError(t, sess.Fetch(ctx, "", tle.Credentials{}))
	for i := 0; i < 3; i++ {
		require.NoError(t, sess.RefreshSnapshot(ctx))
	}

	assert.Equal(t, "fetch", (<-updates).Operation)
	assert.Empty(t, updates)
}

func TestRefreshWithoutElements(t *testing.T) {
	sess := newSession(propagation.NewLibrary(testLogger()), &clock{t: base}, kvstore.NewMemory())
	assert.ErrorIs(t, sess.RefreshSnapshot(context.Background()), ErrNoElements)
	assert.ErrorIs(t, sess.RefreshSeries(context.Background()), ErrNoElements)
	assert.ErrorIs(t, sess.Resume(context.Background()), ErrNoElements)
}

func TestResumeRestoresElements(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	c := &clock{t: base}
	lib := propagation.NewLibrary(testLogger())

	first := newSession(lib, c, store)
	require.NoError(t, first.Fetch(ctx, "25544", tle.Credentials{}))
	want, _ := first.Elements()

	second := newSession(lib, c, store)
	_, ok := second.Elements()
	require.False(t, ok)
	require.NoError(t, second.Resume(ctx))

	got, ok := second.Elements()
	require.True(t, ok)
	assert.Equal(t, want, got)

	c.t = base.Add(time.Minute)
	assert.NoError(t, second.RefreshSnapshot(ctx))
}

func TestFetchWritesCache(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()
	cache := tle.NewCache(t.TempDir(), 2)
	sess := NewSession(
		tle.NewFixedSource(logger),
		newConverter(&clock{t: base}),
		kvstore.NewWriter(kvstore.NewMemory(), logger),
		cache,
		logger,
	)
	require.NoError(t, sess.Fetch(ctx, "", tle.Credentials{}))

	path, ts, err := cache.Latest()
	require.NoError(t, err)
	assert.Equal(t, base.Unix(), ts.Unix())

	// A new session can start from the cached file.
	store := kvstore.NewMemory()
	restarted := newSession(propagation.NewLibrary(logger), &clock{t: base}, store)
	require.NoError(t, restarted.FetchFrom(ctx, tle.NewFileSource(path, logger), ""))
	assertJSON(t, store, KeyTLELine1, issElements(t).Line1)
}

func decode(t *testing.T, store kvstore.Store, key string, v any) {
	t.Helper()
	raw, err := store.Get(context.Background(), key)
	require.NoError(t, err, key)
	require.NoError(t, json.Unmarshal(raw, v), key)
}

func assertJSON(t *testing.T, store kvstore.Store, key string, want any) {
	t.Helper()
	var got any
	decode(t, store, key, &got)
	assert.Equal(t, want, got, key)
}

func snapshotRaw(t *testing.T, store kvstore.Store, keys ...string) map[string]string {
	t.Helper()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		raw, err := store.Get(context.Background(), k)
		require.NoError(t, err, k)
		out[k] = string(raw)
	}
	return out
}
