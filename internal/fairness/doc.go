// Package fairness ranks candidate meeting venues by how evenly travel time
// is spread across participants.
//
// Rank consumes a participant × venue travel-time matrix. A venue that any
// participant cannot reach is dropped. Every remaining venue gets one score
// under the chosen Objective; lower is always better, and venues with equal
// scores keep their input order.
package fairness
