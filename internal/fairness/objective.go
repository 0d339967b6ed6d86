// ABOUTME: Fairness objectives that reduce per-participant times to one score.
// ABOUTME: Unknown objective names fall back to min_max.

package fairness

import "math"

// Objective selects how travel times are aggregated into a score.
type Objective string

// Supported objectives. Lower scores are better for all of them.
const (
	MinMax      Objective = "min_max"
	MinTotal    Objective = "min_total"
	MinVariance Objective = "min_variance"
)

// DefaultObjective is used when none is given or the name is unknown.
const DefaultObjective = MinMax

// ParseObjective maps a name to an Objective. Empty and unknown names yield
// MinMax.
func ParseObjective(name string) Objective {
	switch o := Objective(name); o {
	case MinMax, MinTotal, MinVariance:
		return o
	default:
		return DefaultObjective
	}
}

// Score aggregates travel times under the objective. times must be non-empty.
func (o Objective) Score(times []float64) float64 {
	switch o {
	case MinTotal:
		return sum(times)
	case MinVariance:
		return stddev(times)
	default:
		return maxOf(times)
	}
}

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		m = math.Max(m, x)
	}
	return m
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	n := float64(len(xs))
	mean := sum(xs) / n
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return math.Sqrt(sq / n)
}
