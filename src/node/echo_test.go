package node

import (
	"testing"

	"github.com/mosaicnetworks/gitmesh/src/editor"
	"github.com/stretchr/testify/assert"
)

func TestEchoConsume(t *testing.T) {
	x := newEchoIndex(0)

	x.add(PendingEcho{File: "/a", Start: pt(0, 0), End: pt(0, 0), Text: "x"})
	x.add(PendingEcho{File: "/a", Start: pt(0, 1), End: pt(0, 1), Text: "y"})
	x.add(PendingEcho{File: "/b", Start: pt(0, 0), End: pt(0, 0), Text: "x"})
	assert.Equal(t, 3, x.len())

	// the file must match
	assert.False(t, x.consume("/c", editor.Change{Start: pt(0, 0), End: pt(0, 0), Text: "x"}))

	// out of order
	assert.True(t, x.consume("/a", editor.Change{Start: pt(0, 1), End: pt(0, 1), Text: "y"}))
	assert.False(t, x.consume("/a", editor.Change{Start: pt(0, 1), End: pt(0, 1), Text: "y"}))
	assert.True(t, x.consume("/a", editor.Change{Start: pt(0, 0), End: pt(0, 0), Text: "x"}))
	assert.Equal(t, 1, x.len())
}

func TestEchoDuplicates(t *testing.T) {
	x := newEchoIndex(0)
	e := PendingEcho{File: "/a", Start: pt(0, 0), End: pt(0, 0), Text: "x"}
	x.add(e)
	x.add(e)

	c := editor.Change{Start: e.Start, End: e.End, Text: e.Text}
	assert.True(t, x.consume("/a", c))
	assert.True(t, x.consume("/a", c))
	assert.False(t, x.consume("/a", c))
}

func TestEchoLimit(t *testing.T) {
	x := newEchoIndex(2)
	x.add(PendingEcho{File: "/a", Text: "1"})
	x.add(PendingEcho{File: "/a", Text: "2"})
	x.add(PendingEcho{File: "/a", Text: "3"})

	assert.Equal(t, 2, x.len())
	assert.False(t, x.consume("/a", editor.Change{Text: "1"}))
	assert.True(t, x.consume("/a", editor.Change{Text: "2"}))
}

func TestEchoForget(t *testing.T) {
	x := newEchoIndex(0)
	x.forget("/a")

	x.add(PendingEcho{File: "/a", Text: "1"})
	x.add(PendingEcho{File: "/a", Text: "2"})
	x.forget("/a")

	assert.False(t, x.consume("/a", editor.Change{Text: "2"}))
	assert.True(t, x.consume("/a", editor.Change{Text: "1"}))

	x.add(PendingEcho{File: "/a", Text: "1"})
	x.forget("/a")
	assert.Equal(t, 0, x.len())
}
