package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/sirupsen/logrus"
)

// BufferEditor keeps open buffers in memory, like a host editor would, and
// reports every change made to them.
type BufferEditor struct {
	logger *logrus.Entry

	lock         sync.Mutex
	buffers      map[string]string
	worktree     Worktree
	writeThrough bool

	changes chan ChangeEvent
}

// NewInmemEditor returns an editor whose buffers are loaded from and saved to
// worktree.
func NewInmemEditor(worktree Worktree, logger *logrus.Entry) *BufferEditor {
	return newBufferEditor(worktree, false, logger)
}

// NewFileEditor returns an editor for the headless daemon: buffers are plain
// files and every edit is written to disk immediately.
func NewFileEditor(logger *logrus.Entry) *BufferEditor {
	return newBufferEditor(DiskWorktree{}, true, logger)
}

func newBufferEditor(worktree Worktree, writeThrough bool, logger *logrus.Entry) *BufferEditor {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &BufferEditor{
		logger:       logger,
		buffers:      make(map[string]string),
		worktree:     worktree,
		writeThrough: writeThrough,
		changes:      make(chan ChangeEvent, 256),
	}
}

func (e *BufferEditor) open(file string) (string, error) {
	if text, ok := e.buffers[file]; ok {
		return text, nil
	}

	text, err := e.worktree.ReadFile(file)
	if err != nil {
		if !isNotExist(err) {
			return "", err
		}
		text = ""
	}

	e.buffers[file] = text
	return text, nil
}

// ApplyEdit implements Editor.
func (e *BufferEditor) ApplyEdit(file string, start, end crdt.Point, text string) error {
	return e.edit(file, []Change{{Start: start, End: end, Text: text}})
}

// Type simulates the user typing: the changes are applied in order, each in the
// coordinates left by the previous one, and reported like any other change.
func (e *BufferEditor) Type(file string, changes ...Change) error {
	for _, c := range changes {
		if err := e.edit(file, []Change{c}); err != nil {
			return err
		}
	}
	return nil
}

// Replace sets the whole content of the buffer of file, reported as a single
// change.
func (e *BufferEditor) Replace(file, text string) error {
	e.lock.Lock()
	current, err := e.open(file)
	e.lock.Unlock()
	if err != nil {
		return err
	}

	return e.ApplyEdit(file, crdt.Point{}, crdt.EndOf(current), text)
}

func (e *BufferEditor) edit(file string, changes []Change) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	text, err := e.open(file)
	if err != nil {
		return err
	}

	// Changes of one event do not overlap; apply the last one first so that
	// the coordinates of the others stay valid.
	sorted := append([]Change(nil), changes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Compare(sorted[j].Start) > 0
	})
	for _, c := range sorted {
		text = crdt.Splice(text, c.Start, c.End, c.Text)
	}
	e.buffers[file] = text

	if e.writeThrough {
		if err := e.worktree.WriteFile(file, text); err != nil {
			return err
		}
	}

	select {
	case e.changes <- ChangeEvent{File: file, Changes: changes}:
	default:
		e.logger.WithField("file", file).Warn("change event dropped")
	}

	return nil
}

// Text implements Editor.
func (e *BufferEditor) Text(file string) (string, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.open(file)
}

// Open reports whether file has an open buffer.
func (e *BufferEditor) Open(file string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	_, ok := e.buffers[file]
	return ok
}

// SaveAll implements Editor.
func (e *BufferEditor) SaveAll() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	for file, text := range e.buffers {
		if err := e.worktree.WriteFile(file, text); err != nil {
			return fmt.Errorf("saving %s: %w", file, err)
		}
	}
	return nil
}

// CloseAll implements Editor.
func (e *BufferEditor) CloseAll() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.buffers = make(map[string]string)
	return nil
}

// Changes implements Editor.
func (e *BufferEditor) Changes() <-chan ChangeEvent {
	return e.changes
}

// DiskWorktree is the working tree on the local file system.
type DiskWorktree struct{}

// ReadFile implements Worktree.
func (DiskWorktree) ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteFile implements Worktree.
func (DiskWorktree) WriteFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
