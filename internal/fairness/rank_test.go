// ABOUTME: Tests for venue fairness ranking across objectives.
// ABOUTME: Covers scores, exclusion of unreachable venues, labels, and stable ties.

package fairness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/rendezvous-mcp/internal/routing"
)

// aliceBob is the two-participant, two-venue fixture:
// Alice→A=10, Alice→B=20, Bob→A=13, Bob→B=15.
func aliceBob() (*routing.TravelTimeMatrix, []Participant, []Venue) {
	matrix := &routing.TravelTimeMatrix{Entries: []routing.TravelTimeEntry{
		{OriginIndex: 0, DestinationIndex: 0, DurationMinutes: 10},
		{OriginIndex: 0, DestinationIndex: 1, DurationMinutes: 20},
		{OriginIndex: 1, DestinationIndex: 0, DurationMinutes: 13},
		{OriginIndex: 1, DestinationIndex: 1, DurationMinutes: 15},
	}}
	participants := []Participant{{Label: "Alice"}, {Label: "Bob"}}
	venues := []Venue{{Name: "VenueA", Type: "pub"}, {Name: "VenueB", Type: "cafe"}}
	return matrix, participants, venues
}

func names(ranked []RankedVenue) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Venue.Name
	}
	return out
}

func TestRank_Objectives(t *testing.T) {
	tests := []struct {
		objective Objective
		wantA     float64
		wantB     float64
	}{
		{MinMax, 13, 20},
		{MinTotal, 23, 35},
		{MinVariance, 1.5, 2.5},
	}

	for _, tt := range tests {
		t.Run(string(tt.objective), func(t *testing.T) {
			matrix, participants, venues := aliceBob()
			ranked := Rank(matrix, participants, venues, tt.objective)

			require.Len(t, ranked, 2)
			assert.Equal(t, []string{"VenueA", "VenueB"}, names(ranked))
			assert.InDelta(t, tt.wantA, ranked[0].Score, 1e-9)
			assert.InDelta(t, tt.wantB, ranked[1].Score, 1e-9)
		})
	}
}

func TestRank_TravelTimesByLabel(t *testing.T) {
	matrix, participants, venues := aliceBob()
	ranked := Rank(matrix, participants, venues, MinMax)

	require.Len(t, ranked, 2)
	assert.Equal(t, map[string]float64{"Alice": 10, "Bob": 13}, ranked[0].TravelTimes)
	assert.Equal(t, "pub", ranked[0].Venue.Type)
}

func TestRank_UnknownObjectiveFallsBackToMinMax(t *testing.T) {
	matrix, participants, venues := aliceBob()
	ranked := Rank(matrix, participants, venues, ParseObjective("most_scenic"))

	require.Len(t, ranked, 2)
	assert.Equal(t, 13.0, ranked[0].Score)
	assert.Equal(t, 20.0, ranked[1].Score)
}

func TestParseObjective(t *testing.T) {
	assert.Equal(t, MinMax, ParseObjective(""))
	assert.Equal(t, MinMax, ParseObjective("MIN_TOTAL"))
	assert.Equal(t, MinTotal, ParseObjective("min_total"))
	assert.Equal(t, MinVariance, ParseObjective("min_variance"))
}

func TestRank_ExcludesUnreachableVenues(t *testing.T) {
	for _, objective := range []Objective{MinMax, MinTotal, MinVariance} {
		t.Run(string(objective), func(t *testing.T) {
			matrix, participants, venues := aliceBob()
			matrix.Entries[3].DurationMinutes = -1 // Bob cannot reach VenueB

			ranked := Rank(matrix, participants, venues, objective)
			assert.Equal(t, []string{"VenueA"}, names(ranked))
		})
	}
}

func TestRank_MissingEntryIsUnreachable(t *testing.T) {
	matrix, participants, venues := aliceBob()
	matrix.Entries = matrix.Entries[:3] // no Bob→VenueB entry

	ranked := Rank(matrix, participants, venues, MinTotal)
	assert.Equal(t, []string{"VenueA"}, names(ranked))
}

func TestRank_DefaultLabels(t *testing.T) {
	matrix, _, venues := aliceBob()
	participants := []Participant{{Label: ""}, {Label: "Bob"}, {}}
	matrix.Entries = append(matrix.Entries,
		routing.TravelTimeEntry{OriginIndex: 2, DestinationIndex: 0, DurationMinutes: 7},
		routing.TravelTimeEntry{OriginIndex: 2, DestinationIndex: 1, DurationMinutes: 8},
	)

	ranked := Rank(matrix, participants, venues, MinMax)
	require.Len(t, ranked, 2)
	assert.Equal(t, map[string]float64{"Participant 1": 10, "Bob": 13, "Participant 3": 7}, ranked[0].TravelTimes)

	labelled := Labelled(participants)
	assert.Equal(t, "Participant 1", labelled[0].Label)
	assert.Equal(t, "Bob", labelled[1].Label)
	assert.Equal(t, "Participant 3", labelled[2].Label)
	assert.Empty(t, participants[0].Label, "input is not mutated")
}

func TestRank_StableTies(t *testing.T) {
	participants := []Participant{{Label: "Alice"}, {Label: "Bob"}}
	venues := []Venue{{Name: "Slow"}, {Name: "TieFirst"}, {Name: "TieSecond"}, {Name: "Fast"}, {Name: "TieThird"}}
	durations := [][]float64{
		{30, 12, 11, 5, 12},
		{25, 11, 12, 4, 10},
	}
	matrix := &routing.TravelTimeMatrix{}
	for pi, row := range durations {
		for vi, d := range row {
			matrix.Entries = append(matrix.Entries, routing.TravelTimeEntry{OriginIndex: pi, DestinationIndex: vi, DurationMinutes: d})
		}
	}

	ranked := Rank(matrix, participants, venues, MinMax)
	assert.Equal(t, []string{"Fast", "TieFirst", "TieSecond", "TieThird", "Slow"}, names(ranked))
}

func TestRank_RoundsDisplayAndScore(t *testing.T) {
	matrix := &routing.TravelTimeMatrix{Entries: []routing.TravelTimeEntry{
		{OriginIndex: 0, DestinationIndex: 0, DurationMinutes: 10.04},
		{OriginIndex: 1, DestinationIndex: 0, DurationMinutes: 10.04},
	}}
	participants := []Participant{{Label: "A"}, {Label: "B"}}

	ranked := Rank(matrix, participants, []Venue{{Name: "V"}}, MinTotal)
	require.Len(t, ranked, 1)
	assert.Equal(t, 10.0, ranked[0].TravelTimes["A"])
	// Score uses unrounded times: 20.08 → 20.1, not 10.0+10.0.
	assert.Equal(t, 20.1, ranked[0].Score)
}

func TestRank_DuplicateLabelsOverwrite(t *testing.T) {
	matrix, _, venues := aliceBob()
	participants := []Participant{{Label: "Sam"}, {Label: "Sam"}}

	ranked := Rank(matrix, participants, venues, MinMax)
	require.Len(t, ranked, 2)
	assert.Equal(t, map[string]float64{"Sam": 13}, ranked[0].TravelTimes)
	assert.Equal(t, 13.0, ranked[0].Score, "score still uses every participant")
}

func TestRank_Empty(t *testing.T) {
	matrix, participants, _ := aliceBob()
	assert.Empty(t, Rank(matrix, participants, nil, MinMax))
	assert.Empty(t, Rank(matrix, nil, []Venue{{Name: "V"}}, MinMax))
}
