package repo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotRepository is returned for paths outside any repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrFileNotFound is returned when a file does not exist at a commit.
	ErrFileNotFound = errors.New("file not found at commit")
)

// BranchPrefix is the prefix of local branch refs.
const BranchPrefix = "refs/heads/"

// Repository is the repository capability. Methods taking a path accept any
// path inside a working tree; methods taking a root expect the value returned
// by Root.
type Repository interface {
	// Root returns the top level directory of the working tree containing
	// path.
	Root(path string) (string, error)

	// CurrentBranch returns the ref HEAD points to, like refs/heads/main, or
	// HEAD when detached.
	CurrentBranch(path string) (string, error)

	// CurrentCommit returns the commit hash of HEAD.
	CurrentCommit(path string) (string, error)

	// RemoteURL returns the URL of the origin remote, or the root when there
	// is none. It identifies the repository across peers.
	RemoteURL(path string) (string, error)

	// RelativePath returns the slash separated path of path within its
	// repository.
	RelativePath(path string) (string, error)

	// FileAtCommit returns the content of path at commit.
	FileAtCommit(path, commit string) (string, error)

	// UserName returns the configured user.name, possibly empty.
	UserName(path string) (string, error)

	// IsIgnored reports whether path matches the ignore rules.
	IsIgnored(path string) (bool, error)

	// StageContent writes content to the index at path, leaving the working
	// tree alone.
	StageContent(path, content string) error

	// Commit records the index as a new commit and returns its hash.
	Commit(root, message string) (string, error)

	// ResetHard resets the index and working tree to HEAD.
	ResetHard(root string) error

	// Checkout switches the working tree to branch.
	Checkout(root, branch string) error

	// Branches lists the local branch refs.
	Branches(root string) ([]string, error)

	// IsAncestor reports whether ancestor is an ancestor of, or equal to,
	// descendant.
	IsAncestor(root, ancestor, descendant string) (bool, error)

	// Watch starts reporting HEAD and branch changes of root on Changes.
	Watch(root string) error

	// Changes delivers the root of every repository whose HEAD or branches
	// changed.
	Changes() <-chan string

	// Close releases watchers.
	Close() error
}

// CommandError is a repository command that exited with a non-zero status.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

// Error ...
func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: exit status %d: %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

// Unwrap ...
func (e *CommandError) Unwrap() error {
	return e.Err
}

// ShortBranch strips the refs/heads/ prefix.
func ShortBranch(ref string) string {
	return strings.TrimPrefix(ref, BranchPrefix)
}

// BranchRef adds the refs/heads/ prefix when missing.
func BranchRef(branch string) string {
	if strings.HasPrefix(branch, BranchPrefix) || branch == "HEAD" {
		return branch
	}
	return BranchPrefix + branch
}
