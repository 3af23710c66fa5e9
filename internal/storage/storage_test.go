package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/repaso/internal/domain"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testUser(t *testing.T, db *DB) *domain.UserSchedulingState {
	t.Helper()
	u, err := db.InsertUser(context.Background(), "ana", 10, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return u
}

func testCard(t *testing.T, db *DB, userID int64, hash string) domain.Card {
	t.Helper()
	c := domain.NewCard(userID, "Q "+hash, "A "+hash, "", t0)
	c.Hash = hash
	require.NoError(t, db.InsertCard(context.Background(), &c))
	return c
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	missing, err := db.FindUserByName(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	u := testUser(t, db)
	assert.NotZero(t, u.UserID)

	u.NewCardsToday = 4
	u.MaxNewCardsPerDay = 20
	u.LastResetDate = time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpdateUserQuota(ctx, *u))

	got, err := db.FindUserByName(ctx, "ana")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.UserID, got.UserID)
	assert.Equal(t, 4, got.NewCardsToday)
	assert.Equal(t, 20, got.MaxNewCardsPerDay)
	assert.True(t, got.LastResetDate.Equal(u.LastResetDate), "last reset date %v", got.LastResetDate)

	_, err = db.InsertUser(ctx, "ana", 10, t0)
	assert.Error(t, err, "user names are unique")

	err = db.UpdateUserQuota(ctx, domain.UserSchedulingState{UserID: 999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCardRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	u := testUser(t, db)

	c := testCard(t, db, u.UserID, "h1")
	require.NotZero(t, c.ID)

	got, err := db.FindCard(ctx, u.UserID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.PhaseIntensive, got.Phase)
	assert.Equal(t, domain.StateNew, got.State)
	assert.Equal(t, 5.0, got.Interval)
	assert.Equal(t, 2.5, got.EaseFactor)
	assert.Nil(t, got.LastReviewedAt)
	assert.Nil(t, got.SourceID)
	assert.True(t, got.NextReviewAt.Equal(t0))

	reviewed := t0.Add(time.Minute)
	got.Phase = domain.PhaseConsolidation
	got.State = domain.StateConsolidating
	got.Interval = 86400
	got.EaseFactor = 2.6
	got.LastReviewedAt = &reviewed
	got.NextReviewAt = reviewed.Add(24 * time.Hour)
	got.CorrectStreak = 0
	got.IncorrectStreak = 2
	got.LastResponseTime = 3.5
	got.LastAdjustedGrade = 4
	require.NoError(t, db.UpdateCard(ctx, *got))

	again, err := db.FindCardByHash(ctx, u.UserID, "h1")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, domain.PhaseConsolidation, again.Phase)
	assert.Equal(t, domain.StateConsolidating, again.State)
	assert.Equal(t, 86400.0, again.Interval)
	assert.Equal(t, 2, again.IncorrectStreak)
	assert.Equal(t, 3.5, again.LastResponseTime)
	require.NotNil(t, again.LastReviewedAt)
	assert.True(t, again.LastReviewedAt.Equal(reviewed))
	assert.True(t, again.NextReviewAt.Equal(reviewed.Add(24*time.Hour)))

	other, err := db.FindCard(ctx, u.UserID+1, c.ID)
	require.NoError(t, err)
	assert.Nil(t, other, "cards are scoped to their owner")

	assert.ErrorIs(t, db.UpdateCard(ctx, domain.Card{ID: 12345}), ErrNotFound)
}

func TestCardsByUserOrder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	u := testUser(t, db)

	late := testCard(t, db, u.UserID, "late")
	late.NextReviewAt = t0.Add(time.Hour)
	require.NoError(t, db.UpdateCard(ctx, late))
	early := testCard(t, db, u.UserID, "early")
	early.NextReviewAt = t0.Add(-time.Hour)
	require.NoError(t, db.UpdateCard(ctx, early))

	cards, err := db.CardsByUser(ctx, u.UserID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "early", cards[0].Hash)
	assert.Equal(t, "late", cards[1].Hash)

	oldest, err := db.OldestNewCard(ctx, u.UserID)
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.Equal(t, late.ID, oldest.ID)
}

func TestReviewLogsNewestFirstAndCascade(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	u := testUser(t, db)
	c := testCard(t, db, u.UserID, "h1")

	for i := range 4 {
		l := domain.ReviewLog{
			CardID:        c.ID,
			ReviewedAt:    t0.Add(time.Duration(i) * time.Minute),
			BaseGrade:     5,
			ResponseTime:  float64(i + 1),
			AdjustedGrade: 5,
			PhaseBefore:   domain.PhaseIntensive,
			PhaseAfter:    domain.PhaseIntensive,
		}
		require.NoError(t, db.InsertReviewLog(ctx, &l))
		assert.NotEmpty(t, l.ID)
	}

	recent, err := db.RecentReviewLogs(ctx, c.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []float64{4, 3, 2}, []float64{recent[0].ResponseTime, recent[1].ResponseTime, recent[2].ResponseTime})

	all, err := db.RecentReviewLogs(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, db.DeleteCard(ctx, c.ID))
	left, err := db.RecentReviewLogs(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, left, "review logs are deleted with their card")
}

func TestOpenWithQueryKeepsDefaults(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "p.db") + "?mode=rwc")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	u := testUser(t, db)
	c := testCard(t, db, u.UserID, "h1")
	l := domain.ReviewLog{
		CardID:        c.ID,
		ReviewedAt:    t0,
		BaseGrade:     4,
		ResponseTime:  2,
		AdjustedGrade: 4,
		PhaseBefore:   domain.PhaseIntensive,
		PhaseAfter:    domain.PhaseIntensive,
	}
	require.NoError(t, db.InsertReviewLog(ctx, &l))

	require.NoError(t, db.DeleteCard(ctx, c.ID))
	left, err := db.RecentReviewLogs(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, left, "foreign keys stay on when the dsn has its own parameters")
}

func TestWithDefaults(t *testing.T) {
	all := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite"
	tests := []struct {
		dsn  string
		want string
	}{
		{"a.db", "a.db?" + all},
		{"a.db?", "a.db?" + all},
		{"a.db?mode=rwc", "a.db?mode=rwc&" + all},
		{"a.db?mode=rwc&", "a.db?mode=rwc&" + all},
		{
			"a.db?_txlock=deferred&_pragma=busy_timeout(100)",
			"a.db?_txlock=deferred&_pragma=busy_timeout(100)&_pragma=foreign_keys(1)&_time_format=sqlite",
		},
		{"a.db?_pragma=foreign_keys%3D0", "a.db?_pragma=foreign_keys%3D0&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite"},
		{"file:a.db?" + all, "file:a.db?" + all},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withDefaults(tt.dsn), tt.dsn)
	}
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	u := testUser(t, db)

	id, err := db.InsertSource(ctx, u.UserID, "/decks/spanish", SourceLocal)
	require.NoError(t, err)

	src, err := db.FindSourceByPath(ctx, u.UserID, "/decks/spanish")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, id, src.ID)
	assert.Equal(t, SourceLocal, src.Type)
	assert.False(t, src.LastScanned.Valid)

	require.NoError(t, db.UpdateSourceLastScanned(ctx, id, t0))
	sources, err := db.SourcesByUser(ctx, u.UserID)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.True(t, sources[0].LastScanned.Valid)

	c := domain.NewCard(u.UserID, "Q", "A", "", t0)
	c.Hash = "h"
	c.SourceID = &id
	require.NoError(t, db.InsertCard(ctx, &c))

	bySource, err := db.CardsBySource(ctx, id)
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	require.NotNil(t, bySource[0].SourceID)
	assert.Equal(t, id, *bySource[0].SourceID)

	require.NoError(t, db.DeleteSource(ctx, u.UserID, id))
	gone, err := db.FindCard(ctx, u.UserID, c.ID)
	require.NoError(t, err)
	assert.Nil(t, gone, "cards are deleted with their source")

	assert.ErrorIs(t, db.DeleteSource(ctx, u.UserID, id), ErrNotFound)
}

func TestTxRollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	u := testUser(t, db)

	boom := errors.New("boom")
	err := db.Tx(ctx, func(s *Store) error {
		c := domain.NewCard(u.UserID, "Q", "A", "", t0)
		c.Hash = "rolled-back"
		if err := s.InsertCard(ctx, &c); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	c, err := db.FindCardByHash(ctx, u.UserID, "rolled-back")
	require.NoError(t, err)
	assert.Nil(t, c)

	err = db.Tx(ctx, func(s *Store) error {
		c := domain.NewCard(u.UserID, "Q", "A", "", t0)
		c.Hash = "committed"
		return s.InsertCard(ctx, &c)
	})
	require.NoError(t, err)
	c, err = db.FindCardByHash(ctx, u.UserID, "committed")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	first, err := db.EnsureUser(ctx, "ana", 5, t0)
	require.NoError(t, err)
	second, err := db.EnsureUser(ctx, "ana", 99, t0)
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, 5, second.MaxNewCardsPerDay, "an existing user keeps its limit")
}
