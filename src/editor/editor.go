package editor

import (
	"github.com/mosaicnetworks/gitmesh/src/crdt"
)

// Change is one replaced range of a buffer, in the coordinates of the buffer
// before the change.
type Change struct {
	Start crdt.Point `json:"start"`
	End   crdt.Point `json:"end"`
	Text  string     `json:"text"`
}

// ChangeEvent lists the changes made to one file.
type ChangeEvent struct {
	File    string   `json:"file"`
	Changes []Change `json:"changes"`
}

// Editor is the host editor surface.
type Editor interface {
	// ApplyEdit replaces a range of the buffer of file, opening it first
	// when needed.
	ApplyEdit(file string, start, end crdt.Point, text string) error

	// Text returns the content of the buffer of file, opening it first when
	// needed.
	Text(file string) (string, error)

	// SaveAll writes every open buffer to the working tree.
	SaveAll() error

	// CloseAll drops every open buffer without saving it.
	CloseAll() error

	// Changes delivers the change events of every buffer.
	Changes() <-chan ChangeEvent
}

// Worktree is where buffers are loaded from and saved to.
type Worktree interface {
	ReadFile(path string) (string, error)
	WriteFile(path, content string) error
}
