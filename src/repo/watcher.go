package repo

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reports changes of HEAD and of local branches of the watched
// repositories.
type Watcher struct {
	logger *logrus.Entry

	fs *fsnotify.Watcher

	lock  sync.Mutex
	roots map[string]string // watched dir -> repository root

	changes chan string

	shutdownCh chan struct{}
	closeOnce  sync.Once
}

// NewWatcher ...
func NewWatcher(logger *logrus.Entry) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		logger:     logger,
		fs:         fs,
		roots:      make(map[string]string),
		changes:    make(chan string, 16),
		shutdownCh: make(chan struct{}),
	}

	go w.loop()

	return w, nil
}

// Add starts watching the git directory of root.
func (w *Watcher) Add(root string) error {
	dirs := []string{
		filepath.Join(root, ".git"),
		filepath.Join(root, ".git", "refs", "heads"),
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	for _, dir := range dirs {
		if _, ok := w.roots[dir]; ok {
			continue
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			return err
		}
		w.roots[dir] = root
	}

	w.logger.WithField("root", root).Debug("watching repository")

	return nil
}

// Changes returns the channel of changed roots.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.shutdownCh)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if root, ok := w.relevant(event); ok {
				w.notify(root)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("watcher error")
		case <-w.shutdownCh:
			return
		}
	}
}

// relevant maps an event to the root it belongs to, ignoring lock files and
// everything in .git other than HEAD.
func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return "", false
	}

	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".lock") {
		return "", false
	}

	dir := filepath.Dir(event.Name)

	w.lock.Lock()
	root, ok := w.roots[dir]
	w.lock.Unlock()
	if !ok {
		return "", false
	}

	if filepath.Base(dir) == ".git" && name != "HEAD" {
		return "", false
	}

	return root, true
}

// notify never blocks. When the queue is full the pending notifications are
// enough for the consumer to rescan.
func (w *Watcher) notify(root string) {
	select {
	case w.changes <- root:
	default:
		w.logger.WithField("root", root).Debug("change notification dropped")
	}
}
