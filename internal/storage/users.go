package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/repaso/internal/domain"
)

// FindUserByName retrieves a user's scheduling state. It returns nil, nil
// when the user does not exist.
func (s *Store) FindUserByName(ctx context.Context, name string) (*domain.UserSchedulingState, error) {
	var u domain.UserSchedulingState
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, new_cards_today, max_new_cards_per_day, last_reset_date
		FROM users WHERE name = ?
	`, name).Scan(&u.UserID, &u.Name, &u.NewCardsToday, &u.MaxNewCardsPerDay, &u.LastResetDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user %s: %w", name, err)
	}
	return &u, nil
}

// FindUserByID is FindUserByName keyed by ID. A missing user is ErrNotFound.
func (s *Store) FindUserByID(ctx context.Context, id int64) (*domain.UserSchedulingState, error) {
	var u domain.UserSchedulingState
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, new_cards_today, max_new_cards_per_day, last_reset_date
		FROM users WHERE id = ?
	`, id).Scan(&u.UserID, &u.Name, &u.NewCardsToday, &u.MaxNewCardsPerDay, &u.LastResetDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find user %d: %w", id, err)
	}
	return &u, nil
}

// InsertUser creates a user with an empty quota counter for today.
func (s *Store) InsertUser(ctx context.Context, name string, maxNewPerDay int, today time.Time) (*domain.UserSchedulingState, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO users (name, new_cards_today, max_new_cards_per_day, last_reset_date)
		VALUES (?, 0, ?, ?)
	`, name, maxNewPerDay, today.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert user %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID for user %s: %w", name, err)
	}
	return &domain.UserSchedulingState{
		UserID:            id,
		Name:              name,
		MaxNewCardsPerDay: maxNewPerDay,
		LastResetDate:     today,
	}, nil
}

// UpdateUserQuota stores the quota counter, limit and reset date.
func (s *Store) UpdateUserQuota(ctx context.Context, u domain.UserSchedulingState) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE users
		SET new_cards_today = ?, max_new_cards_per_day = ?, last_reset_date = ?
		WHERE id = ?
	`, u.NewCardsToday, u.MaxNewCardsPerDay, u.LastResetDate.UTC(), u.UserID)
	if err != nil {
		return fmt.Errorf("failed to update quota for user %d: %w", u.UserID, err)
	}
	return expectAffected(res, fmt.Sprintf("user %d", u.UserID))
}

// EnsureUser returns the named user, creating it with the given daily limit
// when it does not exist yet.
func (s *Store) EnsureUser(ctx context.Context, name string, maxNewPerDay int, today time.Time) (*domain.UserSchedulingState, error) {
	u, err := s.FindUserByName(ctx, name)
	if err != nil || u != nil {
		return u, err
	}
	return s.InsertUser(ctx, name, maxNewPerDay, today)
}
