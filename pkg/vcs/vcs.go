// Package vcs captures branch/commit provenance from the surrounding git
// repository so callers can tag observations for later scoped filtering.
package vcs

import (
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"

	"mnemo/pkg/memory"
)

// Context is the VCS provenance of the current working directory.
// Zero-valued fields mean the information is unavailable (not a git
// checkout, detached HEAD, no remote).
type Context struct {
	RepoID string
	Branch string
	Commit string
}

var (
	captureOnce sync.Once
	cached      Context
)

// Capture returns the VCS context of the current working directory,
// resolved once per process lifetime and cached.
func Capture() Context {
	captureOnce.Do(func() {
		cached = CaptureAt(".")
	})
	return cached
}

// CaptureAt resolves the VCS context for an arbitrary path, uncached.
func CaptureAt(path string) Context {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Context{}
	}

	var ctx Context

	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		ctx.RepoID = remote.Config().URLs[0]
	} else if wt, err := repo.Worktree(); err == nil {
		ctx.RepoID = filepath.Base(wt.Filesystem.Root())
	}

	head, err := repo.Head()
	if err != nil {
		return ctx
	}
	ctx.Commit = head.Hash().String()
	if head.Name().IsBranch() {
		ctx.Branch = head.Name().Short()
	}

	return ctx
}

// Fill returns metadata with empty provenance fields populated from the
// context. Caller-provided values always win.
func (c Context) Fill(meta memory.ObservationMetadata) memory.ObservationMetadata {
	if meta.RepoID == "" {
		meta.RepoID = c.RepoID
	}
	if meta.Branch == "" {
		meta.Branch = c.Branch
	}
	if meta.Commit == "" {
		meta.Commit = c.Commit
	}
	return meta
}
