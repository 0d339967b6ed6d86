// ABOUTME: Routing domain values: coordinates, modes, routes, isochrones, matrices.
// ABOUTME: Backend clients produce these; the fairness ranker consumes matrices.

package routing

import (
	"encoding/json"
	"fmt"
)

// LatLon is a WGS84 coordinate in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Mode is a travel mode.
type Mode string

// Supported travel modes.
const (
	ModeDrive Mode = "drive"
	ModeCycle Mode = "cycle"
	ModeWalk  Mode = "walk"
)

// ParseMode validates a travel mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDrive, ModeCycle, ModeWalk:
		return m, nil
	default:
		return "", fmt.Errorf("unknown transport mode %q", s)
	}
}

// RouteLeg is one manoeuvre of a route.
type RouteLeg struct {
	Instruction     string
	DistanceKm      float64
	DurationMinutes float64
}

// RouteGeometry is a computed route between two points.
type RouteGeometry struct {
	DistanceKm      float64
	DurationMinutes float64
	Legs            []RouteLeg
	// Geometry is a GeoJSON LineString.
	Geometry json.RawMessage
}

// Isochrone is the area reachable from an origin within a travel time.
type Isochrone struct {
	Origin      LatLon
	Mode        Mode
	TimeMinutes float64
	// Polygon is a GeoJSON Polygon.
	Polygon json.RawMessage
}

// TravelTimeEntry is one origin/destination cell of a matrix. A negative
// DurationMinutes marks the pair as unreachable.
type TravelTimeEntry struct {
	OriginIndex      int
	DestinationIndex int
	DurationMinutes  float64
	DistanceKm       float64
}

// Reachable reports whether the entry carries a usable duration.
func (e TravelTimeEntry) Reachable() bool {
	return e.DurationMinutes >= 0
}

// TravelTimeMatrix holds travel times between origins and destinations.
// At most one entry exists per pair; missing pairs are unreachable. When a
// pair appears more than once the first entry wins.
type TravelTimeMatrix struct {
	Origins      []LatLon
	Destinations []LatLon
	Entries      []TravelTimeEntry

	index   map[[2]int]TravelTimeEntry
	indexed int
}

// NewTravelTimeMatrix returns a matrix with a lookup index over entries.
// Entries appended later are still found by Lookup, but edits to indexed
// entries are not seen.
func NewTravelTimeMatrix(origins, destinations []LatLon, entries []TravelTimeEntry) *TravelTimeMatrix {
	m := &TravelTimeMatrix{
		Origins:      origins,
		Destinations: destinations,
		Entries:      entries,
		index:        make(map[[2]int]TravelTimeEntry, len(entries)),
		indexed:      len(entries),
	}
	for _, e := range entries {
		key := [2]int{e.OriginIndex, e.DestinationIndex}
		if _, dup := m.index[key]; !dup {
			m.index[key] = e
		}
	}
	return m
}

// Lookup returns the entry for an origin/destination pair. It never mutates
// the matrix, so concurrent lookups are safe.
func (m *TravelTimeMatrix) Lookup(origin, destination int) (TravelTimeEntry, bool) {
	if m.index != nil {
		if e, ok := m.index[[2]int{origin, destination}]; ok {
			return e, true
		}
		if m.indexed >= len(m.Entries) {
			return TravelTimeEntry{}, false
		}
	}
	from := 0
	if m.index != nil {
		from = m.indexed
	}
	for _, e := range m.Entries[from:] {
		if e.OriginIndex == origin && e.DestinationIndex == destination {
			return e, true
		}
	}
	return TravelTimeEntry{}, false
}
