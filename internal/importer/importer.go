// Package importer keeps a user's cards in step with their markdown decks.
//
// A sync first brings git checkouts up to date, several at a time, and then
// reconciles each source in turn: cards that appeared in the deck are added
// as new cards while the daily quota allows, cards that disappeared are
// deleted together with their history.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/repaso/internal/cardhash"
	"github.com/conorfennell/repaso/internal/domain"
	"github.com/conorfennell/repaso/internal/gitsource"
	"github.com/conorfennell/repaso/internal/metrics"
	"github.com/conorfennell/repaso/internal/parser"
	"github.com/conorfennell/repaso/internal/quota"
	"github.com/conorfennell/repaso/internal/storage"
)

// Fetcher brings a local checkout of a remote repository up to date.
type Fetcher interface {
	Sync(ctx context.Context, repoURL, localPath string) error
}

type Options struct {
	ReposDir     string // git checkouts live here
	Concurrency  int    // parallel git fetches; defaults to 4
	MaxNewPerDay int    // limit given to users created by a sync
	Location     *time.Location
	Fetcher      Fetcher
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Clock        func() time.Time
}

type Importer struct {
	db     *storage.DB
	opts   Options
	logger *slog.Logger
}

func New(db *storage.DB, opts Options) *Importer {
	if opts.ReposDir == "" {
		opts.ReposDir = "repos"
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = &gitsource.Syncer{Logger: opts.Logger}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Importer{db: db, opts: opts, logger: opts.Logger}
}

// SourceReport is the outcome of syncing one source.
type SourceReport struct {
	Source   storage.Source
	Parsed   int // distinct cards found in the deck
	Added    int
	Deferred int // new cards left for a later day by the quota
	Skipped  int // already present, possibly from another source
	Removed  int
	Problems []error // malformed cards; the rest of the deck is still used
	Err      error   // the source could not be synced at all
}

// Report is the outcome of Sync.
type Report struct {
	Sources []SourceReport
}

// Added sums the cards added across sources.
func (r Report) Added() int {
	var n int
	for _, s := range r.Sources {
		n += s.Added
	}
	return n
}

// Deferred sums the cards held back by the quota across sources.
func (r Report) Deferred() int {
	var n int
	for _, s := range r.Sources {
		n += s.Deferred
	}
	return n
}

// Failed returns the sources that could not be synced.
func (r Report) Failed() []SourceReport {
	var failed []SourceReport
	for _, s := range r.Sources {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

func (im *Importer) ensureUser(ctx context.Context, user string) (*domain.UserSchedulingState, error) {
	if strings.TrimSpace(user) == "" {
		return nil, errors.New("importer: empty user name")
	}
	return im.db.EnsureUser(ctx, user, im.opts.MaxNewPerDay, quota.Today(im.opts.Clock(), im.opts.Location))
}

// Sync fetches and reconciles all of the user's sources. A failing source is
// reported and does not stop the others; the returned error is reserved for
// problems that affect the whole run.
func (im *Importer) Sync(ctx context.Context, user string) (Report, error) {
	u, err := im.ensureUser(ctx, user)
	if err != nil {
		return Report{}, err
	}
	sources, err := im.db.SourcesByUser(ctx, u.UserID)
	if err != nil {
		return Report{}, err
	}
	if len(sources) == 0 {
		im.logger.Info("no sources configured", "user", user)
		return Report{}, nil
	}

	im.logger.Info("starting sync", "user", user, "sources", len(sources))
	reports := make([]SourceReport, len(sources))
	dirs, err := im.fetch(ctx, sources, reports)
	if err != nil {
		return Report{Sources: reports}, err
	}

	for i, src := range sources {
		r := &reports[i]
		if r.Err == nil {
			im.reconcile(ctx, u.UserID, dirs[i], r)
		}
		im.opts.Metrics.RecordSourceSync(src.Type, r.Err)
		if r.Err != nil {
			im.logger.Error("source sync failed", "id", src.ID, "path", src.Path, "error", r.Err)
			continue
		}
		im.logger.Info("reconciliation complete",
			"id", src.ID,
			"path", src.Path,
			"parsed_cards", r.Parsed,
			"added", r.Added,
			"deferred", r.Deferred,
			"orphaned_deleted", r.Removed,
			"errors", len(r.Problems),
		)
	}
	return Report{Sources: reports}, nil
}

// fetch updates git checkouts concurrently and returns the directory to scan
// for each source. A failed source is recorded on its report and does not
// stop the others; the returned error is set only when ctx is done.
func (im *Importer) fetch(ctx context.Context, sources []storage.Source, reports []SourceReport) ([]string, error) {
	dirs := make([]string, len(sources))
	var g errgroup.Group
	g.SetLimit(im.opts.Concurrency)
	for i, src := range sources {
		reports[i].Source = src
		if src.Type != storage.SourceGit {
			dirs[i] = src.Path
			continue
		}
		g.Go(func() error {
			dir, err := gitsource.LocalPath(im.opts.ReposDir, src.Path)
			if err == nil {
				err = im.opts.Fetcher.Sync(ctx, src.Path, dir)
			}
			if err != nil {
				reports[i].Err = err
				return ctx.Err()
			}
			dirs[i] = dir
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dirs, fmt.Errorf("fetching sources: %w", err)
	}
	return dirs, ctx.Err()
}

type deckCard struct {
	entry parser.Entry
	hash  string
}

// scan parses every markdown file under dir. Cards with the same content are
// kept once, in the order first seen.
func scan(dir string) ([]deckCard, []error, error) {
	var (
		cards    []deckCard
		problems []error
		seen     = make(map[string]bool)
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}
		entries, perr := parser.ParseFile(path)
		if perr != nil {
			var pe *parser.ParseError
			if !errors.As(perr, &pe) {
				return perr
			}
			problems = append(problems, perr)
		}
		for _, e := range entries {
			h := cardhash.Sum(e.Question, e.Answer, e.Context)
			if seen[h] {
				continue
			}
			seen[h] = true
			cards = append(cards, deckCard{entry: e, hash: h})
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return cards, problems, nil
}

func (im *Importer) reconcile(ctx context.Context, userID int64, dir string, r *SourceReport) {
	cards, problems, err := scan(dir)
	if err != nil {
		r.Err = err
		return
	}
	r.Parsed = len(cards)
	r.Problems = problems

	now := im.opts.Clock()
	today := quota.Today(now, im.opts.Location)
	sourceID := r.Source.ID

	// counts are only published once the transaction commits
	var added, deferred, skipped, removed int
	err = im.db.Tx(ctx, func(st *storage.Store) error {
		added, deferred, skipped, removed = 0, 0, 0, 0

		u, err := st.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		quota.EnsureDailyReset(u, today)

		existing, err := st.CardsBySource(ctx, sourceID)
		if err != nil {
			return err
		}
		inDeck := make(map[string]bool, len(cards))
		for _, c := range cards {
			inDeck[c.hash] = true
		}

		for _, c := range existing {
			if inDeck[c.Hash] {
				continue
			}
			if err := st.DeleteCard(ctx, c.ID); err != nil {
				return err
			}
			removed++
		}

		for _, dc := range cards {
			found, err := st.FindCardByHash(ctx, userID, dc.hash)
			if err != nil {
				return err
			}
			if found != nil {
				skipped++
				continue
			}
			if err := quota.Reserve(u); err != nil {
				deferred++
				continue
			}
			card := domain.NewCard(userID, dc.entry.Question, dc.entry.Answer, dc.entry.Context, now)
			card.Hash = dc.hash
			card.SourceID = &sourceID
			if err := st.InsertCard(ctx, &card); err != nil {
				return err
			}
			added++
		}

		if err := st.UpdateUserQuota(ctx, *u); err != nil {
			return err
		}
		return st.UpdateSourceLastScanned(ctx, sourceID, now)
	})
	if err != nil {
		r.Err = err
		return
	}

	r.Added, r.Deferred, r.Skipped, r.Removed = added, deferred, skipped, removed
	for range added {
		im.opts.Metrics.RecordCardCreated(metrics.OriginImport)
	}
	for range deferred {
		im.opts.Metrics.RecordQuotaRejection()
	}
	if deferred > 0 {
		im.logger.Info("daily new-card limit reached, deferring cards", "source_id", sourceID, "deferred", deferred)
	}
}
