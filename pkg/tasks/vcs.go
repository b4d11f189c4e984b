package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// VCS is the version control the tasks commit and push with
type VCS interface {
	Clone(ctx context.Context, url, dir string) error
	CommitFiles(ctx context.Context, repoDir, message string, files ...string) error
	CommitAll(ctx context.Context, repoDir, message string) error
	Push(ctx context.Context, repoDir string, tags bool) error
}

// GitVCS implements VCS with go-git
type GitVCS struct {
	// AuthorName and AuthorEmail sign commits; empty values fall back to
	// the repository's user configuration.
	AuthorName  string
	AuthorEmail string
	Remote      string
	Auth        transport.AuthMethod
}

// NewGitVCS creates a GitVCS pushing to origin
func NewGitVCS() *GitVCS {
	return &GitVCS{Remote: "origin"}
}

func (g *GitVCS) remote() string {
	if g.Remote == "" {
		return "origin"
	}
	return g.Remote
}

func (g *GitVCS) open(repoDir string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repo %s: %w", repoDir, err)
	}
	return repo, nil
}

func (g *GitVCS) commitOptions() *git.CommitOptions {
	opts := &git.CommitOptions{}
	if g.AuthorName != "" || g.AuthorEmail != "" {
		opts.Author = &object.Signature{
			Name:  g.AuthorName,
			Email: g.AuthorEmail,
			When:  time.Now(),
		}
	}
	return opts
}

// Clone clones url into dir
func (g *GitVCS) Clone(ctx context.Context, url, dir string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:  url,
		Auth: g.Auth,
	})
	if err != nil {
		return fmt.Errorf("clone %s: %w", url, err)
	}
	return nil
}

// CommitFiles stages files, relative to the repository root, and commits them
func (g *GitVCS) CommitFiles(ctx context.Context, repoDir, message string, files ...string) error {
	repo, err := g.open(repoDir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	for _, f := range files {
		if _, err := wt.Add(f); err != nil {
			return fmt.Errorf("stage %s: %w", f, err)
		}
	}
	if _, err := wt.Commit(message, g.commitOptions()); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CommitAll stages every change (like git add -A) and commits it
func (g *GitVCS) CommitAll(ctx context.Context, repoDir, message string) error {
	repo, err := g.open(repoDir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("stage all: %w", err)
	}
	if _, err := wt.Commit(message, g.commitOptions()); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Push pushes the current branch. With tags, every tag is pushed first.
func (g *GitVCS) Push(ctx context.Context, repoDir string, tags bool) error {
	repo, err := g.open(repoDir)
	if err != nil {
		return err
	}

	if tags {
		err := repo.PushContext(ctx, &git.PushOptions{
			RemoteName: g.remote(),
			RefSpecs:   []config.RefSpec{"refs/tags/*:refs/tags/*"},
			Auth:       g.Auth,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("push tags: %w", err)
		}
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return fmt.Errorf("push: HEAD is not on a branch")
	}
	refSpec := config.RefSpec(fmt.Sprintf("%s:%s", head.Name(), head.Name()))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: g.remote(),
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       g.Auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}
