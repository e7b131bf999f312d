package models

import (
	"fmt"
	"strings"
	"time"
)

// NodeLoadStats summarizes the node load phase.
type NodeLoadStats struct {
	Counts  map[Label]int
	Batches int
}

// Total returns the number of nodes written across all labels.
func (s NodeLoadStats) Total() int {
	total := 0
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// RelationshipLoadStats summarizes the relationship load phase.
type RelationshipLoadStats struct {
	Counts  map[RelationshipType]int
	Batches int
}

// Total returns the number of relationships written across all types.
func (s RelationshipLoadStats) Total() int {
	total := 0
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// RunReport is the human-readable completion report for one pipeline run.
type RunReport struct {
	RunID         string
	Nodes         NodeLoadStats
	Relationships RelationshipLoadStats
	Warnings      []ReferentialWarning
	Elapsed       time.Duration
}

// String renders the report with one line per node label and relationship
// type. External tooling keys off the completion marker printed separately,
// not off this layout.
func (r *RunReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s finished in %s\n", r.RunID, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "nodes written: %d in %d batch(es)\n", r.Nodes.Total(), r.Nodes.Batches)
	for _, label := range NodeLabels {
		if count, ok := r.Nodes.Counts[label]; ok {
			fmt.Fprintf(&b, "  %s: %d\n", label, count)
		}
	}
	fmt.Fprintf(&b, "relationships written: %d in %d batch(es)\n", r.Relationships.Total(), r.Relationships.Batches)
	for _, relType := range RelationshipTypes {
		if count, ok := r.Relationships.Counts[relType]; ok {
			fmt.Fprintf(&b, "  %s: %d\n", relType, count)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "referential warnings: %d\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}
	return b.String()
}
