package domain

import "time"

// UserSchedulingState tracks how many new cards a user has introduced today.
// The counter is reset lazily on the first access of a new calendar day.
type UserSchedulingState struct {
	UserID            int64
	Name              string
	NewCardsToday     int
	MaxNewCardsPerDay int
	LastResetDate     time.Time // midnight of the day the counter was last reset
}
