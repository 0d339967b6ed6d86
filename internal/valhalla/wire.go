// ABOUTME: Valhalla request and response wire types and their conversions.
// ABOUTME: Maps travel modes to costings and decodes route shapes to GeoJSON.

package valhalla

import (
	"encoding/json"
	"fmt"

	"github.com/2389/rendezvous-mcp/internal/routing"
)

type location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func toLocation(p routing.LatLon) location {
	return location{Lat: p.Lat, Lon: p.Lon}
}

func toLocations(ps []routing.LatLon) []location {
	out := make([]location, len(ps))
	for i, p := range ps {
		out[i] = toLocation(p)
	}
	return out
}

// costing maps a travel mode to a Valhalla costing model.
func costing(mode routing.Mode) string {
	switch mode {
	case routing.ModeCycle:
		return "bicycle"
	case routing.ModeWalk:
		return "pedestrian"
	default:
		return "auto"
	}
}

type routeRequest struct {
	Locations []location `json:"locations"`
	Costing   string     `json:"costing"`
	Units     string     `json:"units"`
}

type routeResponse struct {
	Trip struct {
		Legs []struct {
			Maneuvers []struct {
				Instruction string  `json:"instruction"`
				Length      float64 `json:"length"`
				Time        float64 `json:"time"`
			} `json:"maneuvers"`
			Shape string `json:"shape"`
		} `json:"legs"`
		Summary struct {
			Length float64 `json:"length"`
			Time   float64 `json:"time"`
		} `json:"summary"`
	} `json:"trip"`
}

type lineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

func (r *routeResponse) toRoute() (*routing.RouteGeometry, error) {
	route := &routing.RouteGeometry{
		DistanceKm:      r.Trip.Summary.Length,
		DurationMinutes: r.Trip.Summary.Time / 60,
	}

	line := lineString{Type: "LineString", Coordinates: [][2]float64{}}
	for _, leg := range r.Trip.Legs {
		for _, m := range leg.Maneuvers {
			route.Legs = append(route.Legs, routing.RouteLeg{
				Instruction:     m.Instruction,
				DistanceKm:      m.Length,
				DurationMinutes: m.Time / 60,
			})
		}
		points, err := decodePolyline(leg.Shape, shapePrecision)
		if err != nil {
			return nil, fmt.Errorf("decoding route shape: %w", err)
		}
		line.Coordinates = append(line.Coordinates, points...)
	}

	geometry, err := json.Marshal(line)
	if err != nil {
		return nil, fmt.Errorf("encoding route geometry: %w", err)
	}
	route.Geometry = geometry
	return route, nil
}

type contour struct {
	Time float64 `json:"time"`
}

type isochroneRequest struct {
	Locations []location `json:"locations"`
	Costing   string     `json:"costing"`
	Contours  []contour  `json:"contours"`
	Polygons  bool       `json:"polygons"`
}

type isochroneResponse struct {
	Features []struct {
		Geometry json.RawMessage `json:"geometry"`
	} `json:"features"`
}

type matrixRequest struct {
	Sources []location `json:"sources"`
	Targets []location `json:"targets"`
	Costing string     `json:"costing"`
	Units   string     `json:"units"`
}

type matrixCell struct {
	Distance *float64 `json:"distance"`
	Time     *float64 `json:"time"`
}

type matrixResponse struct {
	SourcesToTargets [][]matrixCell `json:"sources_to_targets"`
}

// toMatrix converts the response rows. A null time marks the pair as
// unreachable.
func (r *matrixResponse) toMatrix(origins, destinations []routing.LatLon) *routing.TravelTimeMatrix {
	var entries []routing.TravelTimeEntry
	for i, row := range r.SourcesToTargets {
		for j, cell := range row {
			entry := routing.TravelTimeEntry{
				OriginIndex:      i,
				DestinationIndex: j,
				DurationMinutes:  -1,
			}
			if cell.Time != nil {
				entry.DurationMinutes = *cell.Time / 60
			}
			if cell.Distance != nil {
				entry.DistanceKm = *cell.Distance
			}
			entries = append(entries, entry)
		}
	}
	return routing.NewTravelTimeMatrix(origins, destinations, entries)
}
