package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/repaso/internal/domain"
)

const cardColumns = `id, user_id, source_id, hash, question, answer, context, phase, state,
	interval_seconds, ease_factor, created_at, last_reviewed_at, next_review_at,
	correct_streak, incorrect_streak, last_response_time, last_adjusted_grade`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		c        domain.Card
		sourceID sql.NullInt64
		reviewed sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&sourceID,
		&c.Hash,
		&c.Question,
		&c.Answer,
		&c.Context,
		&c.Phase,
		&c.State,
		&c.Interval,
		&c.EaseFactor,
		&c.CreatedAt,
		&reviewed,
		&c.NextReviewAt,
		&c.CorrectStreak,
		&c.IncorrectStreak,
		&c.LastResponseTime,
		&c.LastAdjustedGrade,
	)
	if err != nil {
		return c, err
	}
	if sourceID.Valid {
		id := sourceID.Int64
		c.SourceID = &id
	}
	if reviewed.Valid {
		t := reviewed.Time
		c.LastReviewedAt = &t
	}
	return c, nil
}

func (s *Store) queryCards(ctx context.Context, what, query string, args ...any) ([]domain.Card, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row for %s: %w", what, err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", what, err)
	}
	return cards, nil
}

func (s *Store) findCard(ctx context.Context, what, query string, args ...any) (*domain.Card, error) {
	c, err := scanCard(s.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find %s: %w", what, err)
	}
	return &c, nil
}

// InsertCard inserts a new card and sets its ID.
func (s *Store) InsertCard(ctx context.Context, c *domain.Card) error {
	var reviewed any
	if c.LastReviewedAt != nil {
		reviewed = c.LastReviewedAt.UTC()
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO cards (user_id, source_id, hash, question, answer, context, phase, state,
			interval_seconds, ease_factor, created_at, last_reviewed_at, next_review_at,
			correct_streak, incorrect_streak, last_response_time, last_adjusted_grade)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.UserID,
		c.SourceID,
		c.Hash,
		c.Question,
		c.Answer,
		c.Context,
		c.Phase,
		c.State,
		c.Interval,
		c.EaseFactor,
		c.CreatedAt.UTC(),
		reviewed,
		c.NextReviewAt.UTC(),
		c.CorrectStreak,
		c.IncorrectStreak,
		c.LastResponseTime,
		c.LastAdjustedGrade,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", c.Hash, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for card %s: %w", c.Hash, err)
	}
	c.ID = id
	return nil
}

// UpdateCard stores the scheduling state of a card. Content and ownership
// are not touched.
func (s *Store) UpdateCard(ctx context.Context, c domain.Card) error {
	var reviewed any
	if c.LastReviewedAt != nil {
		reviewed = c.LastReviewedAt.UTC()
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE cards
		SET phase = ?, state = ?, interval_seconds = ?, ease_factor = ?, last_reviewed_at = ?,
			next_review_at = ?, correct_streak = ?, incorrect_streak = ?,
			last_response_time = ?, last_adjusted_grade = ?
		WHERE id = ?
	`,
		c.Phase,
		c.State,
		c.Interval,
		c.EaseFactor,
		reviewed,
		c.NextReviewAt.UTC(),
		c.CorrectStreak,
		c.IncorrectStreak,
		c.LastResponseTime,
		c.LastAdjustedGrade,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %d: %w", c.ID, err)
	}
	return expectAffected(res, fmt.Sprintf("card %d", c.ID))
}

// FindCard retrieves a card owned by userID. It returns nil, nil when no such
// card exists for that user.
func (s *Store) FindCard(ctx context.Context, userID, id int64) (*domain.Card, error) {
	return s.findCard(ctx, fmt.Sprintf("card %d", id),
		`SELECT `+cardColumns+` FROM cards WHERE id = ? AND user_id = ?`, id, userID)
}

// FindCardByHash retrieves a user's card by its content hash.
func (s *Store) FindCardByHash(ctx context.Context, userID int64, hash string) (*domain.Card, error) {
	return s.findCard(ctx, fmt.Sprintf("card by hash %s", hash),
		`SELECT `+cardColumns+` FROM cards WHERE user_id = ? AND hash = ?`, userID, hash)
}

// OldestNewCard returns the user's earliest created card still in state new.
func (s *Store) OldestNewCard(ctx context.Context, userID int64) (*domain.Card, error) {
	return s.findCard(ctx, "oldest new card",
		`SELECT `+cardColumns+` FROM cards WHERE user_id = ? AND state = ? ORDER BY created_at, id LIMIT 1`,
		userID, domain.StateNew)
}

// CardsByUser retrieves all of a user's cards ordered by next review time.
func (s *Store) CardsByUser(ctx context.Context, userID int64) ([]domain.Card, error) {
	return s.queryCards(ctx, fmt.Sprintf("cards for user %d", userID),
		`SELECT `+cardColumns+` FROM cards WHERE user_id = ? ORDER BY next_review_at, id`, userID)
}

// CardsBySource retrieves all cards imported from a source.
func (s *Store) CardsBySource(ctx context.Context, sourceID int64) ([]domain.Card, error) {
	return s.queryCards(ctx, fmt.Sprintf("cards for source %d", sourceID),
		`SELECT `+cardColumns+` FROM cards WHERE source_id = ? ORDER BY id`, sourceID)
}

// AllCards retrieves every card in the database.
func (s *Store) AllCards(ctx context.Context) ([]domain.Card, error) {
	return s.queryCards(ctx, "all cards", `SELECT `+cardColumns+` FROM cards ORDER BY id`)
}

// DeleteCard removes a card; its review logs go with it.
func (s *Store) DeleteCard(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	return expectAffected(res, fmt.Sprintf("card %d", id))
}
