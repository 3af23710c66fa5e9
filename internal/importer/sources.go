package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conorfennell/repaso/internal/gitsource"
	"github.com/conorfennell/repaso/internal/storage"
)

var (
	ErrSourceExists   = errors.New("importer: source already registered")
	ErrSourceNotFound = errors.New("importer: source not found")
	ErrNotDirectory   = errors.New("importer: not a directory")
)

// AddSource registers a deck for the user. Git URLs are recognised as such;
// anything else must be an existing local directory and is stored absolute.
func (im *Importer) AddSource(ctx context.Context, user, path string) (storage.Source, error) {
	sourceType := storage.SourceLocal
	if gitsource.IsRemote(path) {
		if _, err := gitsource.LocalPath(im.opts.ReposDir, path); err != nil {
			return storage.Source{}, err
		}
		sourceType = storage.SourceGit
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return storage.Source{}, fmt.Errorf("resolving %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return storage.Source{}, err
		}
		if !info.IsDir() {
			return storage.Source{}, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
		}
		path = abs
	}

	u, err := im.ensureUser(ctx, user)
	if err != nil {
		return storage.Source{}, err
	}

	var src storage.Source
	err = im.db.Tx(ctx, func(st *storage.Store) error {
		existing, err := st.FindSourceByPath(ctx, u.UserID, path)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrSourceExists, path)
		}
		id, err := st.InsertSource(ctx, u.UserID, path, sourceType)
		if err != nil {
			return err
		}
		src = storage.Source{ID: id, UserID: u.UserID, Path: path, Type: sourceType}
		return nil
	})
	if err != nil {
		return storage.Source{}, err
	}
	im.logger.Info("source added", "id", src.ID, "type", src.Type, "path", src.Path)
	return src, nil
}

// Sources lists the user's registered decks.
func (im *Importer) Sources(ctx context.Context, user string) ([]storage.Source, error) {
	u, err := im.db.FindUserByName(ctx, user)
	if err != nil || u == nil {
		return nil, err
	}
	return im.db.SourcesByUser(ctx, u.UserID)
}

// RemoveSource unregisters a deck. Its cards and their review logs go with it.
func (im *Importer) RemoveSource(ctx context.Context, user string, id int64) error {
	u, err := im.db.FindUserByName(ctx, user)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: %d", ErrSourceNotFound, id)
	}
	if err := im.db.DeleteSource(ctx, u.UserID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrSourceNotFound, id)
		}
		return err
	}
	im.logger.Info("source removed", "id", id)
	return nil
}
