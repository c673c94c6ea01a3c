package node

import (
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/editor"
)

// PendingEcho is a buffer edit made by the Core whose change notification has
// not come back yet.
type PendingEcho struct {
	File  string
	Start crdt.Point
	End   crdt.Point
	Text  string
}

func (p PendingEcho) matches(c editor.Change) bool {
	return p.Start == c.Start && p.End == c.End && p.Text == c.Text
}

// echoIndex holds the pending echoes of every file, oldest first. Beyond limit
// per file, the oldest echo is dropped: its notification was lost.
type echoIndex struct {
	limit  int
	byFile map[string][]PendingEcho
}

func newEchoIndex(limit int) *echoIndex {
	if limit <= 0 {
		limit = DefaultEchoLimit
	}
	return &echoIndex{
		limit:  limit,
		byFile: make(map[string][]PendingEcho),
	}
}

func (x *echoIndex) add(e PendingEcho) {
	list := append(x.byFile[e.File], e)
	if len(list) > x.limit {
		list = list[len(list)-x.limit:]
	}
	x.byFile[e.File] = list
}

// consume removes the first echo of file equal to c and reports whether there
// was one.
func (x *echoIndex) consume(file string, c editor.Change) bool {
	list := x.byFile[file]
	for i, e := range list {
		if !e.matches(c) {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(x.byFile, file)
		} else {
			x.byFile[file] = list
		}
		return true
	}
	return false
}

// forget drops the most recent echo of file, whose edit failed.
func (x *echoIndex) forget(file string) {
	list := x.byFile[file]
	if len(list) == 0 {
		return
	}
	if len(list) == 1 {
		delete(x.byFile, file)
		return
	}
	x.byFile[file] = list[:len(list)-1]
}

func (x *echoIndex) len() int {
	n := 0
	for _, list := range x.byFile {
		n += len(list)
	}
	return n
}
