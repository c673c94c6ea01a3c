package repo

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initGitRepo creates a repository with one commit holding a.txt.
func initGitRepo(tb testing.TB) string {
	tb.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		tb.Skip("git is not installed")
	}

	dir := tb.TempDir()

	cmds := [][]string{
		{"init"},
		{"symbolic-ref", "HEAD", "refs/heads/main"},
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test"},
		{"config", "core.hooksPath", "/dev/null"},
	}
	for _, args := range cmds {
		gitCmd(tb, dir, args...)
	}

	writeFile(tb, filepath.Join(dir, "a.txt"), "hello\n")
	writeFile(tb, filepath.Join(dir, ".gitignore"), "*.log\n")
	gitCmd(tb, dir, "add", ".")
	gitCmd(tb, dir, "commit", "-m", "initial")

	return dir
}

func gitCmd(tb testing.TB, dir string, args ...string) string {
	tb.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(tb, err, "git %v: %s", args, out)

	return string(out)
}

func writeFile(tb testing.TB, path, content string) {
	tb.Helper()

	require.NoError(tb, os.WriteFile(path, []byte(content), 0o644))
}

func newTestGitRepository(t *testing.T) *GitRepository {
	g, err := NewGitRepository(10*time.Second, common.NewTestEntry(t, "git"))
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestGitRepository_State(t *testing.T) {
	dir := initGitRepo(t)
	g := newTestGitRepository(t)
	file := filepath.Join(dir, "a.txt")

	root, err := g.Root(file)
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, root)

	branch, err := g.CurrentBranch(file)
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/main", branch)

	commit, err := g.CurrentCommit(file)
	require.NoError(t, err)
	assert.Len(t, commit, 40)

	remote, err := g.RemoteURL(file)
	require.NoError(t, err)
	assert.Equal(t, root, remote, "without origin the root identifies the repository")

	gitCmd(t, dir, "remote", "add", "origin", "git@example.com:team/project.git")
	remote, err = g.RemoteURL(file)
	require.NoError(t, err)
	assert.Equal(t, "git@example.com:team/project.git", remote)

	rel, err := g.RelativePath(file)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", rel)

	content, err := g.FileAtCommit(file, commit)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", content)

	name, err := g.UserName(file)
	require.NoError(t, err)
	assert.Equal(t, "Test", name)
}

func TestGitRepository_NotRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}

	g := newTestGitRepository(t)

	_, err := g.Root(filepath.Join(t.TempDir(), "x.txt"))
	assert.True(t, errors.Is(err, ErrNotRepository), "err: %v", err)
}

func TestGitRepository_FileNotFound(t *testing.T) {
	dir := initGitRepo(t)
	g := newTestGitRepository(t)

	commit, err := g.CurrentCommit(dir)
	require.NoError(t, err)

	_, err = g.FileAtCommit(filepath.Join(dir, "new.txt"), commit)
	assert.True(t, errors.Is(err, ErrFileNotFound), "err: %v", err)
}

func TestGitRepository_IsIgnored(t *testing.T) {
	dir := initGitRepo(t)
	g := newTestGitRepository(t)

	ignored, err := g.IsIgnored(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	assert.True(t, ignored)

	ignored, err = g.IsIgnored(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.False(t, ignored)
}

func TestGitRepository_StageCommitReset(t *testing.T) {
	dir := initGitRepo(t)
	g := newTestGitRepository(t)
	file := filepath.Join(dir, "a.txt")

	before, err := g.CurrentCommit(file)
	require.NoError(t, err)

	// The working tree holds more than what gets staged.
	writeFile(t, file, "hello world, unstaged\n")
	require.NoError(t, g.StageContent(file, "hello world\n"))

	root, err := g.Root(file)
	require.NoError(t, err)

	after, err := g.Commit(root, "partial")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	content, err := g.FileAtCommit(file, after)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", content)

	require.NoError(t, g.ResetHard(root))
	disk, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(disk))

	ok, err := g.IsAncestor(root, before, after)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsAncestor(root, after, before)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGitRepository_CommitNothing(t *testing.T) {
	dir := initGitRepo(t)
	g := newTestGitRepository(t)

	root, err := g.Root(dir)
	require.NoError(t, err)

	_, err = g.Commit(root, "empty")
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr), "err: %v", err)
	assert.Equal(t, 1, cmdErr.ExitCode)
}

func TestGitRepository_Branches(t *testing.T) {
	dir := initGitRepo(t)
	g := newTestGitRepository(t)

	root, err := g.Root(dir)
	require.NoError(t, err)

	gitCmd(t, dir, "branch", "feature")

	branches, err := g.Branches(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"refs/heads/feature", "refs/heads/main"}, branches)

	require.NoError(t, g.Watch(root))
	require.NoError(t, g.Checkout(root, "refs/heads/feature"))

	branch, err := g.CurrentBranch(dir)
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/feature", branch)

	select {
	case changed := <-g.Changes():
		assert.Equal(t, root, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("checkout should be reported")
	}

	err = g.Checkout(root, "missing")
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr), "err: %v", err)
	assert.NotEmpty(t, cmdErr.Stderr)
}
