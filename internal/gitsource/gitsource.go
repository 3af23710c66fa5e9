// Package gitsource keeps local checkouts of deck repositories up to date.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// ErrBadURL is returned when a repository URL cannot be mapped to a checkout path.
var ErrBadURL = errors.New("gitsource: unsupported repository url")

// IsRemote reports whether path names a git remote rather than a local directory.
func IsRemote(path string) bool {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "ssh://") {
		return true
	}
	return strings.HasSuffix(path, ".git") && strings.Contains(path, "@")
}

// LocalPath maps a repository URL to its checkout directory under baseDir,
// e.g. https://github.com/ana/decks.git -> baseDir/github.com/ana/decks.
// scp-style URLs (git@host:owner/repo.git) are supported too.
func LocalPath(baseDir, repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err == nil && (u.Scheme == "https" || u.Scheme == "http" || u.Scheme == "ssh") && u.Host != "" {
		return filepath.Join(baseDir, u.Hostname(), strings.TrimSuffix(u.Path, ".git")), nil
	}

	userHost, repoPath, ok := strings.Cut(repoURL, ":")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBadURL, repoURL)
	}
	_, host, ok := strings.Cut(userHost, "@")
	if !ok || host == "" || repoPath == "" {
		return "", fmt.Errorf("%w: %s", ErrBadURL, repoURL)
	}
	return filepath.Join(baseDir, host, strings.TrimSuffix(repoPath, ".git")), nil
}

// Syncer clones or pulls repositories.
type Syncer struct {
	Logger   *slog.Logger
	Progress io.Writer // git progress output; nil discards it
}

// Sync clones repoURL into localPath if nothing is there yet, otherwise pulls
// origin. An up-to-date checkout is not an error.
func (s *Syncer) Sync(ctx context.Context, repoURL, localPath string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("cloning repository", "url", repoURL, "path", localPath)
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(localPath), err)
		}
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:      repoURL,
			Progress: s.Progress,
		})
		if err != nil {
			return fmt.Errorf("cloning %s: %w", repoURL, err)
		}
	case err == nil:
		logger.Info("pulling repository", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("opening repository at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("worktree of %s: %w", localPath, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
			Progress:   s.Progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("pulling %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("checking %s: %w", localPath, err)
	}
	return nil
}
