// ABOUTME: get_directions and get_isochrone tool handlers.
// ABOUTME: Distances round to 2 dp and durations to 1 dp in tool output.

package rendezvous

import (
	"context"
	"encoding/json"

	"github.com/2389/rendezvous-mcp/internal/routing"
	"github.com/2389/rendezvous-mcp/internal/session"
)

type point struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

func (p point) latLon() routing.LatLon {
	return routing.LatLon{Lat: *p.Lat, Lon: *p.Lon}
}

type directionsInput struct {
	From          *point `json:"from" validate:"required"`
	To            *point `json:"to" validate:"required"`
	TransportMode string `json:"transport_mode" validate:"required,oneof=drive cycle walk"`
}

type directionsStep struct {
	Instruction     string  `json:"instruction"`
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}

type directionsOutput struct {
	Success         bool             `json:"success"`
	DistanceKm      float64          `json:"distance_km"`
	DurationMinutes float64          `json:"duration_minutes"`
	Steps           []directionsStep `json:"steps"`
	Geometry        json.RawMessage  `json:"geometry"`
}

// GetDirections computes a route between two points.
func (h *handlers) GetDirections(ctx context.Context, sess *session.Session, input json.RawMessage) (json.RawMessage, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	var in directionsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	mode := routing.Mode(in.TransportMode)

	h.logger.Debug("computing route",
		"session_id", sess.ID,
		"mode", mode,
		"from", in.From.latLon(),
		"to", in.To.latLon(),
	)

	res, err := sess.Gateway.Route(ctx, in.From.latLon(), in.To.latLon(), mode)
	if err != nil {
		return nil, upstreamError(err)
	}
	if res.PaymentRequired() {
		return paymentRequired(res.Challenge)
	}

	route := res.Value
	steps := make([]directionsStep, 0, len(route.Legs))
	for _, leg := range route.Legs {
		steps = append(steps, directionsStep{
			Instruction:     leg.Instruction,
			DistanceKm:      round(leg.DistanceKm, 2),
			DurationMinutes: round(leg.DurationMinutes, 1),
		})
	}
	geometry := route.Geometry
	if len(geometry) == 0 {
		geometry = json.RawMessage("null")
	}

	return json.Marshal(directionsOutput{
		Success:         true,
		DistanceKm:      round(route.DistanceKm, 2),
		DurationMinutes: round(route.DurationMinutes, 1),
		Steps:           steps,
		Geometry:        geometry,
	})
}

type isochroneInput struct {
	Lat           *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon           *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	TransportMode string   `json:"transport_mode" validate:"required,oneof=drive cycle walk"`
	TimeMinutes   *float64 `json:"time_minutes" validate:"required,gte=1,lte=120"`
}

type isochroneOutput struct {
	Success       bool            `json:"success"`
	TimeMinutes   float64         `json:"time_minutes"`
	TransportMode routing.Mode    `json:"transport_mode"`
	Polygon       json.RawMessage `json:"polygon"`
}

// GetIsochrone computes the area reachable from a point within a time limit.
func (h *handlers) GetIsochrone(ctx context.Context, sess *session.Session, input json.RawMessage) (json.RawMessage, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	var in isochroneInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	origin := routing.LatLon{Lat: *in.Lat, Lon: *in.Lon}
	mode := routing.Mode(in.TransportMode)

	h.logger.Debug("computing isochrone",
		"session_id", sess.ID,
		"mode", mode,
		"minutes", *in.TimeMinutes,
		"origin", origin,
	)

	res, err := sess.Gateway.Isochrone(ctx, origin, mode, *in.TimeMinutes)
	if err != nil {
		return nil, upstreamError(err)
	}
	if res.PaymentRequired() {
		return paymentRequired(res.Challenge)
	}

	iso := res.Value
	return json.Marshal(isochroneOutput{
		Success:       true,
		TimeMinutes:   iso.TimeMinutes,
		TransportMode: iso.Mode,
		Polygon:       iso.Polygon,
	})
}
