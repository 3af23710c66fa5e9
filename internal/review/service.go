// Package review is the entry point for study sessions: it loads cards from
// storage, runs the scheduler, selector and quota, and persists the results.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/repaso/internal/cardhash"
	"github.com/conorfennell/repaso/internal/domain"
	"github.com/conorfennell/repaso/internal/metrics"
	"github.com/conorfennell/repaso/internal/quota"
	"github.com/conorfennell/repaso/internal/selector"
	"github.com/conorfennell/repaso/internal/sm2"
	"github.com/conorfennell/repaso/internal/storage"
)

var (
	ErrInvalidInput  = errors.New("review: invalid input")
	ErrCardNotFound  = errors.New("review: card not found")
	ErrDuplicateCard = errors.New("review: duplicate card")
)

// DefaultMaxNewPerDay seeds the quota of users created by the service.
const DefaultMaxNewPerDay = 10

// GradeRequest is one answered card.
type GradeRequest struct {
	User         string  `validate:"required"`
	CardID       int64   `validate:"gt=0"`
	Grade        int     `validate:"min=0,max=5"`
	ResponseTime float64 `validate:"gte=0"` // seconds
}

// NewCardRequest describes a hand-written card.
type NewCardRequest struct {
	User     string `validate:"required"`
	Question string `validate:"required"`
	Answer   string `validate:"required"`
	Context  string
}

// Service coordinates grading, selection and card creation for all users.
type Service struct {
	db           *storage.DB
	scheduler    *sm2.Scheduler
	metrics      *metrics.Metrics
	logger       *slog.Logger
	loc          *time.Location
	maxNewPerDay int
	now          func() time.Time
	validate     *validator.Validate
	locks        cardLocks
}

// Option configures a Service.
type Option func(*Service)

func WithScheduler(s *sm2.Scheduler) Option { return func(svc *Service) { svc.scheduler = s } }
func WithMetrics(m *metrics.Metrics) Option { return func(svc *Service) { svc.metrics = m } }
func WithLogger(l *slog.Logger) Option      { return func(svc *Service) { svc.logger = l } }
func WithClock(now func() time.Time) Option { return func(svc *Service) { svc.now = now } }

// WithLocation sets the zone whose midnight resets the daily quota.
func WithLocation(loc *time.Location) Option { return func(svc *Service) { svc.loc = loc } }

// WithMaxNewPerDay sets the daily limit given to newly created users.
func WithMaxNewPerDay(n int) Option { return func(svc *Service) { svc.maxNewPerDay = n } }

func NewService(db *storage.DB, opts ...Option) *Service {
	s := &Service{
		db:           db,
		scheduler:    sm2.New(),
		logger:       slog.Default(),
		loc:          time.Local,
		maxNewPerDay: DefaultMaxNewPerDay,
		now:          time.Now,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// EnsureUser returns the user's scheduling state, creating the user if needed.
func (s *Service) EnsureUser(ctx context.Context, name string) (*domain.UserSchedulingState, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty user name", ErrInvalidInput)
	}
	return s.db.EnsureUser(ctx, name, s.maxNewPerDay, quota.Today(s.now(), s.loc))
}

// findUserCard loads a card owned by the named user.
func findUserCard(ctx context.Context, st *storage.Store, user string, cardID int64) (*domain.Card, error) {
	u, err := st.FindUserByName(ctx, user)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %d", ErrCardNotFound, cardID)
	}
	c, err := st.FindCard(ctx, u.UserID, cardID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %d", ErrCardNotFound, cardID)
	}
	return c, nil
}

// Grade records a graded answer and reschedules the card. The card update and
// its review log are written in one transaction; concurrent grades of the same
// card are applied one after the other.
func (s *Service) Grade(ctx context.Context, req GradeRequest) (domain.Card, domain.ReviewLog, error) {
	if err := s.check(req); err != nil {
		return domain.Card{}, domain.ReviewLog{}, err
	}

	unlock := s.locks.lock(req.CardID)
	defer unlock()

	var (
		updated domain.Card
		entry   domain.ReviewLog
	)
	err := s.db.Tx(ctx, func(st *storage.Store) error {
		card, err := findUserCard(ctx, st, req.User, req.CardID)
		if err != nil {
			return err
		}
		history, err := st.RecentReviewLogs(ctx, card.ID, sm2.HistoryWindow)
		if err != nil {
			return err
		}
		updated, entry, err = s.scheduler.Grade(*card, history, sm2.Response{
			Grade:        req.Grade,
			ResponseTime: req.ResponseTime,
		}, s.now())
		if err != nil {
			return err
		}
		if err := st.UpdateCard(ctx, updated); err != nil {
			return err
		}
		return st.InsertReviewLog(ctx, &entry)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPhase) {
			s.logger.Error("card rejected by scheduler", "card_id", req.CardID, "error", err)
		}
		return domain.Card{}, domain.ReviewLog{}, err
	}

	s.metrics.RecordReview(req.Grade, entry.PhaseBefore, entry.PhaseAfter)
	s.logger.Debug("card graded",
		"card_id", updated.ID,
		"grade", req.Grade,
		"adjusted_grade", entry.AdjustedGrade,
		"phase_before", entry.PhaseBefore,
		"phase_after", entry.PhaseAfter,
		"interval", updated.Interval,
		"next_review_at", updated.NextReviewAt,
	)
	if entry.PhaseBefore != entry.PhaseAfter {
		s.logger.Info("card changed phase", "card_id", updated.ID, "from", entry.PhaseBefore, "to", entry.PhaseAfter)
	}
	return updated, entry, nil
}

// Next returns the most overdue card the user should review now. New cards
// are never returned; see NextNew.
func (s *Service) Next(ctx context.Context, user string) (domain.Card, bool, error) {
	u, err := s.db.FindUserByName(ctx, user)
	if err != nil || u == nil {
		return domain.Card{}, false, err
	}
	cards, err := s.db.CardsByUser(ctx, u.UserID)
	if err != nil {
		return domain.Card{}, false, err
	}
	c, ok := selector.SelectNext(cards, s.now())
	s.metrics.RecordSelection(ok)
	return c, ok, nil
}

// NextNew returns the user's oldest card that has never been reviewed.
func (s *Service) NextNew(ctx context.Context, user string) (domain.Card, bool, error) {
	u, err := s.db.FindUserByName(ctx, user)
	if err != nil || u == nil {
		return domain.Card{}, false, err
	}
	c, err := s.db.OldestNewCard(ctx, u.UserID)
	if err != nil || c == nil {
		return domain.Card{}, false, err
	}
	return *c, true, nil
}

// AddCard creates a card by hand. It takes one slot of the user's daily
// new-card quota and fails with quota.ErrExhausted when none is left.
func (s *Service) AddCard(ctx context.Context, req NewCardRequest) (domain.Card, error) {
	req.Question = strings.TrimSpace(req.Question)
	req.Answer = strings.TrimSpace(req.Answer)
	req.Context = strings.TrimSpace(req.Context)
	if err := s.check(req); err != nil {
		return domain.Card{}, err
	}

	now := s.now()
	today := quota.Today(now, s.loc)
	var card domain.Card
	err := s.db.Tx(ctx, func(st *storage.Store) error {
		u, err := st.EnsureUser(ctx, req.User, s.maxNewPerDay, today)
		if err != nil {
			return err
		}
		quota.EnsureDailyReset(u, today)

		hash := cardhash.Sum(req.Question, req.Answer, req.Context)
		existing, err := st.FindCardByHash(ctx, u.UserID, hash)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: same content as card %d", ErrDuplicateCard, existing.ID)
		}

		if err := quota.Reserve(u); err != nil {
			return err
		}
		card = domain.NewCard(u.UserID, req.Question, req.Answer, req.Context, now)
		card.Hash = hash
		if err := st.InsertCard(ctx, &card); err != nil {
			return err
		}
		return st.UpdateUserQuota(ctx, *u)
	})
	if err != nil {
		if errors.Is(err, quota.ErrExhausted) {
			s.metrics.RecordQuotaRejection()
		}
		return domain.Card{}, err
	}

	s.metrics.RecordCardCreated(metrics.OriginManual)
	s.logger.Info("card added", "card_id", card.ID, "user", req.User)
	return card, nil
}

// Reset puts a card back to its initial schedule. Its review history is kept.
func (s *Service) Reset(ctx context.Context, user string, cardID int64) (domain.Card, error) {
	unlock := s.locks.lock(cardID)
	defer unlock()

	var card domain.Card
	err := s.db.Tx(ctx, func(st *storage.Store) error {
		c, err := findUserCard(ctx, st, user, cardID)
		if err != nil {
			return err
		}
		c.Reset(s.now())
		card = *c
		return st.UpdateCard(ctx, card)
	})
	if err != nil {
		return domain.Card{}, err
	}
	s.logger.Info("card reset", "card_id", cardID)
	return card, nil
}
