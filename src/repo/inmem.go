package repo

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

type inmemCommit struct {
	hash    string
	parent  string
	message string
	files   map[string]string
}

// InmemRepository implements Repository with an in-memory object store. It
// holds a single working tree rooted at root, whose files live in memory too
// (cf ReadFile and WriteFile).
type InmemRepository struct {
	lock sync.Mutex

	root   string
	remote string
	user   string

	commits  map[string]*inmemCommit
	refs     map[string]string
	head     string
	index    map[string]string
	worktree map[string]string
	ignored  []string
	counter  int

	changes chan string
}

// NewInmemRepository creates a repository with one commit holding files, on
// refs/heads/main. File names are relative to root. An empty remote makes
// RemoteURL fall back to the root.
func NewInmemRepository(root, remote, user string, files map[string]string) *InmemRepository {
	r := &InmemRepository{
		root:     filepath.Clean(root),
		remote:   remote,
		user:     user,
		commits:  make(map[string]*inmemCommit),
		refs:     make(map[string]string),
		head:     BranchRef("main"),
		index:    make(map[string]string),
		worktree: make(map[string]string),
		changes:  make(chan string, 16),
	}

	hash := r.newCommit("", "initial", files)
	r.refs[r.head] = hash
	r.index = copyFiles(files)
	r.worktree = copyFiles(files)

	return r
}

func (r *InmemRepository) newCommit(parent, message string, files map[string]string) string {
	r.counter++
	sum := sha1.Sum([]byte(fmt.Sprintf("%d:%s:%s", r.counter, parent, message)))
	hash := hex.EncodeToString(sum[:])
	r.commits[hash] = &inmemCommit{
		hash:    hash,
		parent:  parent,
		message: message,
		files:   copyFiles(files),
	}
	return hash
}

func (r *InmemRepository) headCommit() string {
	if c, ok := r.refs[r.head]; ok {
		return c
	}
	return r.head
}

func (r *InmemRepository) notify() {
	select {
	case r.changes <- r.root:
	default:
	}
}

func (r *InmemRepository) rel(p string) (string, error) {
	rel, err := filepath.Rel(r.root, filepath.Clean(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", p, ErrNotRepository)
	}
	return filepath.ToSlash(rel), nil
}

// Path returns the absolute path of a file of the working tree.
func (r *InmemRepository) Path(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}

// Root implements Repository.
func (r *InmemRepository) Root(p string) (string, error) {
	if _, err := r.rel(p); err != nil {
		return "", err
	}
	return r.root, nil
}

// CurrentBranch implements Repository.
func (r *InmemRepository) CurrentBranch(p string) (string, error) {
	if _, err := r.rel(p); err != nil {
		return "", err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.refs[r.head]; ok {
		return r.head, nil
	}
	return "HEAD", nil
}

// CurrentCommit implements Repository.
func (r *InmemRepository) CurrentCommit(p string) (string, error) {
	if _, err := r.rel(p); err != nil {
		return "", err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	return r.headCommit(), nil
}

// RemoteURL implements Repository.
func (r *InmemRepository) RemoteURL(p string) (string, error) {
	if _, err := r.rel(p); err != nil {
		return "", err
	}
	if r.remote == "" {
		return r.root, nil
	}
	return r.remote, nil
}

// RelativePath implements Repository.
func (r *InmemRepository) RelativePath(p string) (string, error) {
	return r.rel(p)
}

// FileAtCommit implements Repository.
func (r *InmemRepository) FileAtCommit(p, commit string) (string, error) {
	rel, err := r.rel(p)
	if err != nil {
		return "", err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.commits[commit]
	if !ok {
		return "", &CommandError{
			Args:     []string{"cat-file", "blob", commit + ":" + rel},
			ExitCode: 128,
			Stderr:   "fatal: not a valid object name " + commit,
		}
	}

	content, ok := c.files[rel]
	if !ok {
		return "", fmt.Errorf("%s at %s: %w", rel, commit, ErrFileNotFound)
	}
	return content, nil
}

// UserName implements Repository.
func (r *InmemRepository) UserName(p string) (string, error) {
	if _, err := r.rel(p); err != nil {
		return "", err
	}
	return r.user, nil
}

// Ignore adds an ignore pattern, matched against the relative path and the
// base name of files.
func (r *InmemRepository) Ignore(pattern string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.ignored = append(r.ignored, pattern)
}

// IsIgnored implements Repository.
func (r *InmemRepository) IsIgnored(p string) (bool, error) {
	rel, err := r.rel(p)
	if err != nil {
		return false, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	for _, pattern := range r.ignored {
		if ok, _ := path.Match(pattern, rel); ok {
			return true, nil
		}
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			return true, nil
		}
	}
	return false, nil
}

// StageContent implements Repository.
func (r *InmemRepository) StageContent(p, content string) error {
	rel, err := r.rel(p)
	if err != nil {
		return err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.index[rel] = content
	return nil
}

// Staged returns the content of the index at rel.
func (r *InmemRepository) Staged(rel string) (string, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	content, ok := r.index[rel]
	return content, ok
}

// Commit implements Repository. Like git, it refuses to record a commit when
// the index does not differ from HEAD.
func (r *InmemRepository) Commit(root, message string) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if filepath.Clean(root) != r.root {
		return "", fmt.Errorf("%s: %w", root, ErrNotRepository)
	}

	parent := r.headCommit()
	if sameFiles(r.commits[parent].files, r.index) {
		return "", &CommandError{
			Args:     []string{"commit", "-m", message},
			ExitCode: 1,
			Stderr:   "nothing to commit, working tree clean",
		}
	}

	hash := r.newCommit(parent, message, r.index)
	r.moveHead(hash)
	r.notify()

	return hash, nil
}

// CommitFiles commits files on top of HEAD and updates the index and working
// tree, as if they had been written, added and committed.
func (r *InmemRepository) CommitFiles(message string, files map[string]string) string {
	r.lock.Lock()
	defer r.lock.Unlock()

	parent := r.headCommit()
	next := copyFiles(r.commits[parent].files)
	for name, content := range files {
		next[name] = content
	}

	hash := r.newCommit(parent, message, next)
	r.moveHead(hash)
	r.index = copyFiles(next)
	r.worktree = copyFiles(next)
	r.notify()

	return hash
}

func (r *InmemRepository) moveHead(hash string) {
	if _, ok := r.refs[r.head]; ok {
		r.refs[r.head] = hash
	} else {
		r.head = hash
	}
}

// CreateBranch creates a branch pointing at commit.
func (r *InmemRepository) CreateBranch(branch, commit string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.refs[BranchRef(branch)] = commit
	r.notify()
}

// ResetHard implements Repository.
func (r *InmemRepository) ResetHard(root string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if filepath.Clean(root) != r.root {
		return fmt.Errorf("%s: %w", root, ErrNotRepository)
	}

	files := r.commits[r.headCommit()].files
	r.index = copyFiles(files)
	r.worktree = copyFiles(files)

	return nil
}

// Checkout implements Repository.
func (r *InmemRepository) Checkout(root, branch string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if filepath.Clean(root) != r.root {
		return fmt.Errorf("%s: %w", root, ErrNotRepository)
	}

	ref := BranchRef(branch)
	hash, ok := r.refs[ref]
	if !ok {
		return &CommandError{
			Args:     []string{"checkout", ShortBranch(branch)},
			ExitCode: 1,
			Stderr:   fmt.Sprintf("error: pathspec '%s' did not match any file(s) known to git", ShortBranch(branch)),
		}
	}

	r.head = ref
	files := r.commits[hash].files
	r.index = copyFiles(files)
	r.worktree = copyFiles(files)
	r.notify()

	return nil
}

// Branches implements Repository.
func (r *InmemRepository) Branches(root string) ([]string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	res := make([]string, 0, len(r.refs))
	for ref := range r.refs {
		res = append(res, ref)
	}
	sort.Strings(res)
	return res, nil
}

// IsAncestor implements Repository.
func (r *InmemRepository) IsAncestor(root, ancestor, descendant string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for c := descendant; c != ""; {
		if c == ancestor {
			return true, nil
		}
		commit, ok := r.commits[c]
		if !ok {
			return false, &CommandError{
				Args:     []string{"merge-base", "--is-ancestor", ancestor, descendant},
				ExitCode: 128,
				Stderr:   "fatal: not a valid commit name " + c,
			}
		}
		c = commit.parent
	}
	return false, nil
}

// Watch implements Repository. Changes are always reported.
func (r *InmemRepository) Watch(root string) error {
	return nil
}

// Changes implements Repository.
func (r *InmemRepository) Changes() <-chan string {
	return r.changes
}

// Close implements Repository.
func (r *InmemRepository) Close() error {
	return nil
}

// ReadFile returns the working tree content of p.
func (r *InmemRepository) ReadFile(p string) (string, error) {
	rel, err := r.rel(p)
	if err != nil {
		return "", err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	content, ok := r.worktree[rel]
	if !ok {
		return "", fmt.Errorf("%s: %w", rel, ErrFileNotFound)
	}
	return content, nil
}

// WriteFile sets the working tree content of p.
func (r *InmemRepository) WriteFile(p, content string) error {
	rel, err := r.rel(p)
	if err != nil {
		return err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.worktree[rel] = content
	return nil
}

func copyFiles(files map[string]string) map[string]string {
	res := make(map[string]string, len(files))
	for k, v := range files {
		res[k] = v
	}
	return res
}

func sameFiles(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
