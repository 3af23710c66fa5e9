package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/repaso/internal/domain"
)

func TestToday(t *testing.T) {
	madrid := time.FixedZone("CEST", 2*60*60)
	now := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), Today(now, nil))
	// 23:30 UTC is already the 16th in Madrid.
	assert.True(t, Today(now, madrid).Equal(time.Date(2025, 6, 16, 0, 0, 0, 0, madrid)))
}

func TestEnsureDailyReset(t *testing.T) {
	yesterday := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	today := yesterday.AddDate(0, 0, 1)

	s := domain.UserSchedulingState{NewCardsToday: 7, MaxNewCardsPerDay: 10, LastResetDate: yesterday}

	assert.True(t, EnsureDailyReset(&s, today))
	assert.Equal(t, 0, s.NewCardsToday)
	assert.Equal(t, today, s.LastResetDate)

	require.NoError(t, Reserve(&s))

	// Second call on the same day changes nothing.
	assert.False(t, EnsureDailyReset(&s, today))
	assert.Equal(t, 1, s.NewCardsToday)
	assert.Equal(t, today, s.LastResetDate)
}

func TestEnsureDailyResetSameDay(t *testing.T) {
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	s := domain.UserSchedulingState{NewCardsToday: 3, MaxNewCardsPerDay: 10, LastResetDate: today}

	assert.False(t, EnsureDailyReset(&s, today))
	assert.Equal(t, 3, s.NewCardsToday)
}

func TestReserve(t *testing.T) {
	s := domain.UserSchedulingState{MaxNewCardsPerDay: 2}

	require.NoError(t, Reserve(&s))
	assert.Equal(t, 1, Remaining(s))
	require.NoError(t, Reserve(&s))
	assert.Equal(t, 0, Remaining(s))

	assert.ErrorIs(t, Reserve(&s), ErrExhausted)
	assert.Equal(t, 2, s.NewCardsToday)
}

func TestReserveZeroLimit(t *testing.T) {
	s := domain.UserSchedulingState{MaxNewCardsPerDay: 0}
	assert.ErrorIs(t, Reserve(&s), ErrExhausted)
	assert.Equal(t, 0, Remaining(s))
}

func TestRemainingAfterLimitLowered(t *testing.T) {
	s := domain.UserSchedulingState{NewCardsToday: 8, MaxNewCardsPerDay: 5}
	assert.Equal(t, 0, Remaining(s))
}
