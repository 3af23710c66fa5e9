package domain

import "time"

// ReviewLog records one graded response. Entries are append-only; they go
// away only together with their card.
type ReviewLog struct {
	ID            string
	CardID        int64
	ReviewedAt    time.Time
	BaseGrade     int
	ResponseTime  float64 // seconds
	AdjustedGrade float64
	PhaseBefore   Phase
	PhaseAfter    Phase
}
