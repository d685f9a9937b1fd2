package groundtrack

import (
	"github.com/star/groundtrack/internal/kvstore"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// Store keys read by the map UI.
const (
	KeySatName   = "satName"
	KeyEpoch     = "epoch"
	KeyTLELine0  = "tleLine0"
	KeyTLELine1  = "tleLine1"
	KeyTLELine2  = "tleLine2"
	KeyLat       = "lat"
	KeyLong      = "long"
	KeyAltitude  = "altitude"
	KeyAzimuth   = "gsAziumth" // spelling is what the UI reads
	KeyElevation = "gsElevation"
	KeyRange     = "gsRangeSat"
	KeyAntAz     = "antAz"
	KeyAntEl     = "antEl"
	KeyNextLat   = "nextLat90"
	KeyNextLong  = "nextLong90"
	KeyNextAlt   = "nextAlt90"
	KeyPrevLat   = "prevLat90"
	KeyPrevLong  = "prevLong90"
	KeyPrevAlt   = "prevAlt90"
	KeyGSLat     = "gsLat"
	KeyGSLong    = "gsLong"
	KeyGSAlt     = "gsAlt"
	KeyTracking  = "trackingAlgorithm"
)

func elementFields(el tle.Elements) []kvstore.Field {
	return []kvstore.Field{
		{Key: KeySatName, Value: el.Name},
		{Key: KeyEpoch, Value: el.Epoch},
		{Key: KeyTLELine0, Value: el.Line0},
		{Key: KeyTLELine1, Value: el.Line1},
		{Key: KeyTLELine2, Value: el.Line2},
	}
}

// SnapshotFields are the keys a snapshot refresh rewrites.
func SnapshotFields(s Snapshot) []kvstore.Field {
	return []kvstore.Field{
		{Key: KeyLat, Value: s.Latitude},
		{Key: KeyLong, Value: s.Longitude},
		{Key: KeyAltitude, Value: s.Altitude},
		{Key: KeyAzimuth, Value: transform.Degrees(s.Azimuth)},
		{Key: KeyElevation, Value: transform.Degrees(s.Elevation)},
		{Key: KeyRange, Value: s.Range},
	}
}

// SeriesFields are the keys a series refresh rewrites.
func SeriesFields(s OffsetSeries) []kvstore.Field {
	return []kvstore.Field{
		{Key: KeyNextLat, Value: s.NextLat},
		{Key: KeyNextLong, Value: s.NextLong},
		{Key: KeyNextAlt, Value: s.NextAlt},
		{Key: KeyPrevLat, Value: s.PrevLat},
		{Key: KeyPrevLong, Value: s.PrevLong},
		{Key: KeyPrevAlt, Value: s.PrevAlt},
	}
}

// FullFields is the complete key set written by a fetch.
func FullFields(el tle.Elements, snap Snapshot, series OffsetSeries) []kvstore.Field {
	fields := elementFields(el)
	fields = append(fields, SnapshotFields(snap)...)
	fields = append(fields,
		kvstore.Field{Key: KeyAntAz, Value: 0},
		kvstore.Field{Key: KeyAntEl, Value: 0},
	)
	fields = append(fields, SeriesFields(series)...)
	return append(fields,
		kvstore.Field{Key: KeyGSLat, Value: GroundStation.Latitude},
		kvstore.Field{Key: KeyGSLong, Value: GroundStation.Longitude},
		kvstore.Field{Key: KeyGSAlt, Value: GroundStation.Height},
		kvstore.Field{Key: KeyTracking, Value: 0},
	)
}
