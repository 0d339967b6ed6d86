// ABOUTME: Ranks venues from a participant x venue travel-time matrix.
// ABOUTME: Unreachable venues are excluded; ties keep input order.

package fairness

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/2389/rendezvous-mcp/internal/routing"
)

// Participant is a person travelling to the venue.
type Participant struct {
	Location routing.LatLon
	// Label names the participant in travel times. An empty label is
	// treated as absent and replaced by DefaultLabel.
	Label string
}

// Venue is a candidate meeting place.
type Venue struct {
	Location routing.LatLon
	Name     string
	Type     string
}

// RankedVenue is a scored venue. TravelTimes maps participant labels to
// minutes rounded to one decimal.
type RankedVenue struct {
	Venue       Venue
	TravelTimes map[string]float64
	Score       float64
}

// DefaultLabel is the label given to the participant at a zero-based index.
func DefaultLabel(index int) string {
	return fmt.Sprintf("Participant %d", index+1)
}

// Labelled returns a copy of participants with empty labels replaced by
// "Participant N" (1-based).
func Labelled(participants []Participant) []Participant {
	out := make([]Participant, len(participants))
	for i, p := range participants {
		if p.Label == "" {
			p.Label = DefaultLabel(i)
		}
		out[i] = p
	}
	return out
}

// Rank scores every venue reachable by all participants and returns them in
// ascending score order. Matrix origins are participant indexes and
// destinations are venue indexes. A missing entry or a negative duration
// excludes the venue.
//
// Participants sharing a label share one key in TravelTimes; the later one
// wins.
func Rank(matrix *routing.TravelTimeMatrix, participants []Participant, venues []Venue, objective Objective) []RankedVenue {
	participants = Labelled(participants)
	ranked := make([]RankedVenue, 0, len(venues))

	for vi, venue := range venues {
		times, display, ok := travelTimes(matrix, participants, vi)
		if !ok {
			continue
		}
		ranked = append(ranked, RankedVenue{
			Venue:       venue,
			TravelTimes: display,
			Score:       round1(objective.Score(times)),
		})
	}

	slices.SortStableFunc(ranked, func(a, b RankedVenue) int {
		return cmp.Compare(a.Score, b.Score)
	})
	return ranked
}

func travelTimes(matrix *routing.TravelTimeMatrix, participants []Participant, venueIndex int) ([]float64, map[string]float64, bool) {
	if len(participants) == 0 {
		return nil, nil, false
	}
	times := make([]float64, 0, len(participants))
	display := make(map[string]float64, len(participants))
	for pi, p := range participants {
		entry, ok := matrix.Lookup(pi, venueIndex)
		if !ok || !entry.Reachable() {
			return nil, nil, false
		}
		times = append(times, entry.DurationMinutes)
		display[p.Label] = round1(entry.DurationMinutes)
	}
	return times, display, true
}

// round1 rounds to one decimal place.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
