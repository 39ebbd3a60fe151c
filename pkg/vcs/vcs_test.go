package vcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemo/pkg/memory"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@example.com:org/project.git"},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Tester",
			Email: "tester@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)

	return dir
}

func TestCaptureAt(t *testing.T) {
	dir := initTestRepo(t)

	ctx := CaptureAt(dir)
	assert.Equal(t, "git@example.com:org/project.git", ctx.RepoID)
	assert.NotEmpty(t, ctx.Branch)
	assert.Len(t, ctx.Commit, 40)
}

func TestCaptureAtDetectsDotGitUpward(t *testing.T) {
	dir := initTestRepo(t)
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	ctx := CaptureAt(nested)
	assert.Equal(t, "git@example.com:org/project.git", ctx.RepoID)
}

func TestCaptureAtOutsideRepo(t *testing.T) {
	ctx := CaptureAt(t.TempDir())
	assert.Equal(t, Context{}, ctx)
}

func TestFill(t *testing.T) {
	ctx := Context{RepoID: "repo-from-vcs", Branch: "main", Commit: "abc"}

	t.Run("fills empty fields", func(t *testing.T) {
		meta := ctx.Fill(memory.ObservationMetadata{SessionID: "sess-1"})
		assert.Equal(t, "sess-1", meta.SessionID)
		assert.Equal(t, "repo-from-vcs", meta.RepoID)
		assert.Equal(t, "main", meta.Branch)
		assert.Equal(t, "abc", meta.Commit)
	})

	t.Run("caller values win", func(t *testing.T) {
		meta := ctx.Fill(memory.ObservationMetadata{Branch: "feature/x", Commit: "def"})
		assert.Equal(t, "feature/x", meta.Branch)
		assert.Equal(t, "def", meta.Commit)
		assert.Equal(t, "repo-from-vcs", meta.RepoID)
	})

	t.Run("empty context leaves metadata alone", func(t *testing.T) {
		meta := Context{}.Fill(memory.ObservationMetadata{RepoID: "kept"})
		assert.Equal(t, "kept", meta.RepoID)
		assert.Empty(t, meta.Branch)
	})
}
