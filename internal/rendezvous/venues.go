// ABOUTME: score_venues tool handler.
// ABOUTME: Fetches a participant-by-venue matrix and ranks venues by fairness.

package rendezvous

import (
	"context"
	"encoding/json"

	"github.com/2389/rendezvous-mcp/internal/fairness"
	"github.com/2389/rendezvous-mcp/internal/routing"
	"github.com/2389/rendezvous-mcp/internal/session"
)

type participantInput struct {
	Lat   *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon   *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	Label string   `json:"label"`
}

type venueInput struct {
	Lat  *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon  *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	Name *string  `json:"name" validate:"required"`
	Type string   `json:"type"`
}

type scoreVenuesInput struct {
	Participants  []participantInput `json:"participants" validate:"required,min=2,max=10,dive"`
	Venues        []venueInput       `json:"venues" validate:"required,min=1,max=50,dive"`
	TransportMode string             `json:"transport_mode" validate:"required,oneof=drive cycle walk"`
	Fairness      string             `json:"fairness"`
}

type rankedVenueOutput struct {
	Name          string             `json:"name"`
	Lat           float64            `json:"lat"`
	Lon           float64            `json:"lon"`
	Type          string             `json:"type,omitempty"`
	TravelTimes   map[string]float64 `json:"travel_times"`
	FairnessScore float64            `json:"fairness_score"`
}

type scoreVenuesOutput struct {
	Success      bool                `json:"success"`
	RankedVenues []rankedVenueOutput `json:"ranked_venues"`
}

// ScoreVenues ranks candidate venues by travel-time fairness.
func (h *handlers) ScoreVenues(ctx context.Context, sess *session.Session, input json.RawMessage) (json.RawMessage, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	var in scoreVenuesInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	participants := make([]fairness.Participant, len(in.Participants))
	origins := make([]routing.LatLon, len(in.Participants))
	for i, p := range in.Participants {
		origins[i] = routing.LatLon{Lat: *p.Lat, Lon: *p.Lon}
		participants[i] = fairness.Participant{Location: origins[i], Label: p.Label}
	}
	venues := make([]fairness.Venue, len(in.Venues))
	destinations := make([]routing.LatLon, len(in.Venues))
	for i, v := range in.Venues {
		destinations[i] = routing.LatLon{Lat: *v.Lat, Lon: *v.Lon}
		venues[i] = fairness.Venue{Location: destinations[i], Name: *v.Name, Type: v.Type}
	}
	objective := fairness.ParseObjective(in.Fairness)
	mode := routing.Mode(in.TransportMode)

	h.logger.Debug("scoring venues",
		"session_id", sess.ID,
		"venues", len(venues),
		"participants", len(participants),
		"mode", mode,
		"objective", objective,
	)

	res, err := sess.Gateway.Matrix(ctx, origins, destinations, mode)
	if err != nil {
		return nil, upstreamError(err)
	}
	if res.PaymentRequired() {
		return paymentRequired(res.Challenge)
	}

	ranked := fairness.Rank(res.Value, participants, venues, objective)
	out := scoreVenuesOutput{Success: true, RankedVenues: make([]rankedVenueOutput, 0, len(ranked))}
	for _, r := range ranked {
		out.RankedVenues = append(out.RankedVenues, rankedVenueOutput{
			Name:          r.Venue.Name,
			Lat:           r.Venue.Location.Lat,
			Lon:           r.Venue.Location.Lon,
			Type:          r.Venue.Type,
			TravelTimes:   r.TravelTimes,
			FairnessScore: r.Score,
		})
	}
	return json.Marshal(out)
}
