package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPhase = errors.New("domain: invalid phase")
	ErrInvalidState = errors.New("domain: invalid state")
)

// Phase is the coarse learning stage of a card. Each phase has its own
// interval policy.
type Phase int

const (
	PhaseIntensive     Phase = 1
	PhaseConsolidation Phase = 2
	PhaseMaintenance   Phase = 3
)

func (p Phase) Valid() bool {
	return p >= PhaseIntensive && p <= PhaseMaintenance
}

func (p Phase) String() string {
	switch p {
	case PhaseIntensive:
		return "intensive"
	case PhaseConsolidation:
		return "consolidation"
	case PhaseMaintenance:
		return "maintenance"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State is the display/reporting status of a card. It mostly follows the
// phase but can be set on its own, e.g. when a card is reset.
type State string

const (
	StateNew           State = "new"
	StateLearning      State = "learning"
	StateConsolidating State = "consolidating"
	StateMature        State = "mature"
)

// States lists every valid state in lifecycle order.
var States = []State{StateNew, StateLearning, StateConsolidating, StateMature}

func (s State) Valid() bool {
	switch s {
	case StateNew, StateLearning, StateConsolidating, StateMature:
		return true
	}
	return false
}

func (s State) String() string { return string(s) }

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v := State(text)
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, text)
	}
	*s = v
	return nil
}

// Scheduling defaults for a card that has never been reviewed.
const (
	InitialInterval   = 5.0
	InitialEaseFactor = 2.5
)

// Card is a single flashcard owned by exactly one user, together with its
// scheduling state.
type Card struct {
	ID       int64
	UserID   int64
	SourceID *int64 // nil for cards created by hand

	Question string
	Answer   string
	Context  string
	Hash     string

	Phase Phase
	State State

	Interval   float64 // seconds until the next review
	EaseFactor float64

	CreatedAt      time.Time
	LastReviewedAt *time.Time
	NextReviewAt   time.Time

	CorrectStreak   int
	IncorrectStreak int

	LastResponseTime  float64 // seconds
	LastAdjustedGrade float64
}

// NewCard returns a card in phase 1, state new, due immediately.
func NewCard(userID int64, question, answer, context string, now time.Time) Card {
	c := Card{
		UserID:    userID,
		Question:  question,
		Answer:    answer,
		Context:   context,
		CreatedAt: now,
	}
	c.Reset(now)
	return c
}

// Reset puts the scheduling fields back to those of a fresh card. Content,
// ownership and the last-response telemetry are left alone.
func (c *Card) Reset(now time.Time) {
	c.Phase = PhaseIntensive
	c.State = StateNew
	c.Interval = InitialInterval
	c.EaseFactor = InitialEaseFactor
	c.CorrectStreak = 0
	c.IncorrectStreak = 0
	c.NextReviewAt = now
}

// IsDue reports whether the card's next review time has passed.
func (c Card) IsDue(now time.Time) bool {
	return !now.Before(c.NextReviewAt)
}
