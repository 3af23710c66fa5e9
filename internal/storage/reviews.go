package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/conorfennell/repaso/internal/domain"
)

// InsertReviewLog appends a review log entry, assigning it an ID if it has
// none.
func (s *Store) InsertReviewLog(ctx context.Context, l *domain.ReviewLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO review_logs (id, card_id, reviewed_at, base_grade, response_time,
			adjusted_grade, phase_before, phase_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID,
		l.CardID,
		l.ReviewedAt.UTC(),
		l.BaseGrade,
		l.ResponseTime,
		l.AdjustedGrade,
		l.PhaseBefore,
		l.PhaseAfter,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review log for card %d: %w", l.CardID, err)
	}
	return nil
}

// RecentReviewLogs returns up to limit review logs of a card, newest first.
// A limit of zero or less returns them all.
func (s *Store) RecentReviewLogs(ctx context.Context, cardID int64, limit int) ([]domain.ReviewLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, card_id, reviewed_at, base_grade, response_time, adjusted_grade, phase_before, phase_after
		FROM review_logs
		WHERE card_id = ?
		ORDER BY reviewed_at DESC, rowid DESC
		LIMIT ?
	`, cardID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs for card %d: %w", cardID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var l domain.ReviewLog
		if err := rows.Scan(
			&l.ID,
			&l.CardID,
			&l.ReviewedAt,
			&l.BaseGrade,
			&l.ResponseTime,
			&l.AdjustedGrade,
			&l.PhaseBefore,
			&l.PhaseAfter,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review log row for card %d: %w", cardID, err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review logs for card %d: %w", cardID, err)
	}
	return logs, nil
}
