package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// GitRepository implements Repository with the git command line.
type GitRepository struct {
	logger *logrus.Entry
	git    *runner

	rootsLock sync.Mutex
	roots     map[string]string

	watcher *Watcher
}

// NewGitRepository returns a GitRepository. Every git invocation is bounded by
// timeout when it is positive.
func NewGitRepository(timeout time.Duration, logger *logrus.Entry) (*GitRepository, error) {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	watcher, err := NewWatcher(logger.WithField("prefix", "watcher"))
	if err != nil {
		return nil, err
	}

	return &GitRepository{
		logger:  logger,
		git:     &runner{logger: logger, timeout: timeout},
		roots:   make(map[string]string),
		watcher: watcher,
	}, nil
}

// Root implements Repository. Results are cached per directory.
func (g *GitRepository) Root(path string) (string, error) {
	dir := dirOf(path)

	g.rootsLock.Lock()
	root, ok := g.roots[dir]
	g.rootsLock.Unlock()
	if ok {
		return root, nil
	}

	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("%s: %w", path, ErrNotRepository)
	}

	out, err := g.git.run(dir, nil, "rev-parse", "--show-toplevel")
	if err != nil {
		if exitCode(err) == 128 {
			return "", fmt.Errorf("%s: %w", path, ErrNotRepository)
		}
		return "", err
	}

	root = filepath.Clean(strings.TrimSpace(out))

	g.rootsLock.Lock()
	g.roots[dir] = root
	g.rootsLock.Unlock()

	return root, nil
}

// CurrentBranch implements Repository.
func (g *GitRepository) CurrentBranch(path string) (string, error) {
	root, err := g.Root(path)
	if err != nil {
		return "", err
	}

	out, err := g.git.run(root, nil, "symbolic-ref", "-q", "HEAD")
	if err != nil {
		if exitCode(err) == 1 {
			return "HEAD", nil
		}
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// CurrentCommit implements Repository.
func (g *GitRepository) CurrentCommit(path string) (string, error) {
	root, err := g.Root(path)
	if err != nil {
		return "", err
	}

	out, err := g.git.run(root, nil, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// RemoteURL implements Repository.
func (g *GitRepository) RemoteURL(path string) (string, error) {
	root, err := g.Root(path)
	if err != nil {
		return "", err
	}

	out, err := g.git.run(root, nil, "config", "--get", "remote.origin.url")
	if err != nil {
		if exitCode(err) == 1 {
			return root, nil
		}
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// RelativePath implements Repository.
func (g *GitRepository) RelativePath(path string) (string, error) {
	root, err := g.Root(path)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	// The root reported by git has its symlinks resolved.
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s: %w", path, ErrNotRepository)
	}

	return filepath.ToSlash(rel), nil
}

// FileAtCommit implements Repository.
func (g *GitRepository) FileAtCommit(path, commit string) (string, error) {
	root, err := g.Root(path)
	if err != nil {
		return "", err
	}

	rel, err := g.RelativePath(path)
	if err != nil {
		return "", err
	}

	out, err := g.git.run(root, nil, "cat-file", "blob", commit+":"+rel)
	if err != nil {
		if exitCode(err) == 128 {
			return "", fmt.Errorf("%s at %s: %w", rel, commit, ErrFileNotFound)
		}
		return "", err
	}

	return out, nil
}

// UserName implements Repository.
func (g *GitRepository) UserName(path string) (string, error) {
	root, err := g.Root(path)
	if err != nil {
		return "", err
	}

	out, err := g.git.run(root, nil, "config", "user.name")
	if err != nil {
		if exitCode(err) == 1 {
			return "", nil
		}
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// IsIgnored implements Repository.
func (g *GitRepository) IsIgnored(path string) (bool, error) {
	root, err := g.Root(path)
	if err != nil {
		return false, err
	}

	rel, err := g.RelativePath(path)
	if err != nil {
		return false, err
	}

	_, err = g.git.run(root, nil, "check-ignore", "-q", rel)
	switch {
	case err == nil:
		return true, nil
	case exitCode(err) == 1:
		return false, nil
	}
	return false, err
}

// StageContent implements Repository. The content is written to the object
// database and the index entry of the file is pointed at it.
func (g *GitRepository) StageContent(path, content string) error {
	root, err := g.Root(path)
	if err != nil {
		return err
	}

	rel, err := g.RelativePath(path)
	if err != nil {
		return err
	}

	out, err := g.git.run(root, []byte(content), "hash-object", "-w", "--stdin")
	if err != nil {
		return err
	}
	hash := strings.TrimSpace(out)

	_, err = g.git.run(root, nil, "update-index", "--add", "--cacheinfo",
		fmt.Sprintf("100644,%s,%s", hash, rel))
	return err
}

// Commit implements Repository.
func (g *GitRepository) Commit(root, message string) (string, error) {
	if _, err := g.git.run(root, nil, "commit", "-m", message); err != nil {
		return "", err
	}
	return g.CurrentCommit(root)
}

// ResetHard implements Repository.
func (g *GitRepository) ResetHard(root string) error {
	_, err := g.git.run(root, nil, "reset", "--hard", "HEAD")
	return err
}

// Checkout implements Repository.
func (g *GitRepository) Checkout(root, branch string) error {
	_, err := g.git.run(root, nil, "checkout", ShortBranch(branch))
	return err
}

// Branches implements Repository.
func (g *GitRepository) Branches(root string) ([]string, error) {
	out, err := g.git.run(root, nil, "for-each-ref", "--format=%(refname)", "refs/heads")
	if err != nil {
		return nil, err
	}

	res := []string{}
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			res = append(res, line)
		}
	}
	return res, nil
}

// IsAncestor implements Repository.
func (g *GitRepository) IsAncestor(root, ancestor, descendant string) (bool, error) {
	_, err := g.git.run(root, nil, "merge-base", "--is-ancestor", ancestor, descendant)
	switch {
	case err == nil:
		return true, nil
	case exitCode(err) == 1:
		return false, nil
	}
	return false, err
}

// Watch implements Repository.
func (g *GitRepository) Watch(root string) error {
	return g.watcher.Add(root)
}

// Changes implements Repository.
func (g *GitRepository) Changes() <-chan string {
	return g.watcher.Changes()
}

// Close implements Repository.
func (g *GitRepository) Close() error {
	return g.watcher.Close()
}

// dirOf returns the directory to run git in for path.
func dirOf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if fi, err := os.Stat(abs); err == nil && fi.IsDir() {
		return abs
	}
	return filepath.Dir(abs)
}
