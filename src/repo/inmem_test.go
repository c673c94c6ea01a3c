package repo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInmemRepository(t *testing.T) {
	r := NewInmemRepository("/work/project", "git@example.com:p.git", "alice", map[string]string{
		"a.txt": "a",
	})
	file := r.Path("a.txt")

	root, err := r.Root(file)
	require.NoError(t, err)
	assert.Equal(t, "/work/project", root)

	_, err = r.Root("/elsewhere/b.txt")
	assert.True(t, errors.Is(err, ErrNotRepository))

	c1, err := r.CurrentCommit(file)
	require.NoError(t, err)

	content, err := r.FileAtCommit(file, c1)
	require.NoError(t, err)
	assert.Equal(t, "a", content)

	_, err = r.FileAtCommit(r.Path("new.txt"), c1)
	assert.True(t, errors.Is(err, ErrFileNotFound))

	require.NoError(t, r.StageContent(file, "ab"))
	staged, ok := r.Staged("a.txt")
	require.True(t, ok)
	assert.Equal(t, "ab", staged)

	c2, err := r.Commit(root, "second")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)

	_, err = r.Commit(root, "nothing")
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))

	ok, err = r.IsAncestor(root, c1, c2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsAncestor(root, c2, c1)
	require.NoError(t, err)
	assert.False(t, ok)

	// The working tree still holds the original content until reset.
	disk, err := r.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "a", disk)

	require.NoError(t, r.ResetHard(root))
	disk, err = r.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "ab", disk)
}

func TestInmemRepository_Branches(t *testing.T) {
	r := NewInmemRepository("/work/project", "", "alice", map[string]string{"a.txt": "a"})
	file := r.Path("a.txt")
	root, _ := r.Root(file)

	c1, _ := r.CurrentCommit(file)
	r.CreateBranch("feature", c1)
	<-r.Changes()

	c2 := r.CommitFiles("main moves on", map[string]string{"a.txt": "main"})
	<-r.Changes()

	branches, err := r.Branches(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"refs/heads/feature", "refs/heads/main"}, branches)

	require.NoError(t, r.Checkout(root, "feature"))
	assert.Equal(t, root, <-r.Changes())

	branch, _ := r.CurrentBranch(file)
	assert.Equal(t, "refs/heads/feature", branch)

	commit, _ := r.CurrentCommit(file)
	assert.Equal(t, c1, commit)

	disk, _ := r.ReadFile(file)
	assert.Equal(t, "a", disk)

	ok, err := r.IsAncestor(root, c2, c1)
	require.NoError(t, err)
	assert.False(t, ok)

	remote, _ := r.RemoteURL(file)
	assert.Equal(t, root, remote)

	assert.Error(t, r.Checkout(root, "missing"))
}

func TestInmemRepository_Ignore(t *testing.T) {
	r := NewInmemRepository("/work/project", "", "", nil)
	r.Ignore("*.log")
	r.Ignore("build/*")

	for name, want := range map[string]bool{
		"debug.log":     true,
		"sub/trace.log": true,
		"build/out":     true,
		"main.go":       false,
	} {
		got, err := r.IsIgnored(r.Path(name))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestBranchNames(t *testing.T) {
	assert.Equal(t, "refs/heads/main", BranchRef("main"))
	assert.Equal(t, "refs/heads/main", BranchRef("refs/heads/main"))
	assert.Equal(t, "HEAD", BranchRef("HEAD"))
	assert.Equal(t, "main", ShortBranch("refs/heads/main"))
}
