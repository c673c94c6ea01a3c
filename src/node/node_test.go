package node

import (
	"fmt"
	"testing"
	"time"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/editor"
	"github.com/mosaicnetworks/gitmesh/src/net"
	"github.com/mosaicnetworks/gitmesh/src/repo"
	"github.com/mosaicnetworks/gitmesh/src/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

type testNode struct {
	*Node
	repo   *repo.InmemRepository
	editor *editor.BufferEditor
	trans  *net.InmemTransport
	store  *store.InmemStore
}

func newTestNode(t *testing.T, site crdt.SiteID, files map[string]string) *testNode {
	conf := TestConfig(t, site)
	conf.Workspace = testRoot
	conf.Moniker = fmt.Sprintf("node%d", site)

	r := repo.NewInmemRepository(testRoot, testRemote, conf.Moniker, files)
	ed := editor.NewInmemEditor(r, common.NewTestEntry(t, "editor"))
	st := store.NewInmemStore()
	_, trans := net.NewInmemTransport("")

	n := NewNode(conf, r, ed, st, trans)
	require.NoError(t, n.Init())

	return &testNode{
		Node:   n,
		repo:   r,
		editor: ed,
		trans:  trans,
		store:  st,
	}
}

func (n *testNode) bufferIs(rel, expected string) func() bool {
	return func() bool {
		text, err := n.editor.Text(n.repo.Path(rel))
		return err == nil && text == expected
	}
}

func TestNodePropagation(t *testing.T) {
	files := map[string]string{"a.txt": "hello"}
	a := newTestNode(t, 2, files)
	b := newTestNode(t, 3, files)
	defer a.Shutdown()
	defer b.Shutdown()

	a.trans.Connect(b.trans)
	a.RunAsync()
	b.RunAsync()

	require.NoError(t, a.editor.ApplyEdit(a.repo.Path("a.txt"), pt(0, 5), pt(0, 5), " world"))
	require.Eventually(t, b.bufferIs("a.txt", "hello world"), waitFor, tick)

	require.NoError(t, b.editor.ApplyEdit(b.repo.Path("a.txt"), pt(0, 0), pt(0, 0), "> "))
	require.Eventually(t, a.bufferIs("a.txt", "> hello world"), waitFor, tick)

	authors, err := a.Authors(a.repo.Path("a.txt"))
	require.NoError(t, err)
	assert.Len(t, authors, 2)

	docs, err := b.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Live)
	assert.Equal(t, "a.txt", docs[0].File)
}

func TestNodeLateJoiner(t *testing.T) {
	files := map[string]string{"a.txt": "hello"}
	a := newTestNode(t, 2, files)
	b := newTestNode(t, 3, files)
	defer a.Shutdown()
	defer b.Shutdown()

	a.RunAsync()
	b.RunAsync()

	require.NoError(t, a.editor.ApplyEdit(a.repo.Path("a.txt"), pt(0, 5), pt(0, 5), "!"))
	require.Eventually(t, func() bool {
		docs, err := a.Documents()
		return err == nil && len(docs) == 1
	}, waitFor, tick)

	// b asks for the operations of a when they connect
	a.trans.Connect(b.trans)
	require.Eventually(t, b.bufferIs("a.txt", "hello!"), waitFor, tick)
}

func TestNodePersists(t *testing.T) {
	a := newTestNode(t, 2, map[string]string{"a.txt": "hello"})
	defer a.Shutdown()
	a.RunAsync()

	require.NoError(t, a.editor.ApplyEdit(a.repo.Path("a.txt"), pt(0, 5), pt(0, 5), "!"))
	require.Eventually(t, func() bool {
		records, err := a.store.All()
		return err == nil && len(records) == 1
	}, waitFor, tick)
}

func TestNodePause(t *testing.T) {
	a := newTestNode(t, 2, map[string]string{"a.txt": "hello"})
	defer a.Shutdown()
	a.RunAsync()

	paused, deferred, err := a.TogglePauseChanges()
	require.NoError(t, err)
	assert.True(t, paused)
	assert.Equal(t, Paused, a.GetState())

	_, err = a.ToggleRemoteChangesVisible(false)
	assert.True(t, common.IsSync(err, common.UserActionable))

	paused, _, err = a.TogglePauseChanges()
	require.NoError(t, err)
	assert.False(t, paused)
	assert.Equal(t, Syncing, a.GetState())

	select {
	case <-deferred.Done():
		assert.NoError(t, deferred.Err())
	case <-time.After(waitFor):
		t.Fatal("pause was not settled")
	}
}

func TestNodeStats(t *testing.T) {
	a := newTestNode(t, 2, map[string]string{"a.txt": "hello"})
	defer a.Shutdown()
	a.RunAsync()

	stats := a.GetStats()
	assert.Equal(t, "Syncing", stats["state"])
	assert.Equal(t, "node2", stats["moniker"])
	assert.Equal(t, "0", stats["num_peers"])
	assert.Equal(t, "0", stats["updates"])
}

func TestNodeShutdown(t *testing.T) {
	a := newTestNode(t, 2, map[string]string{"a.txt": "hello"})
	a.RunAsync()

	a.Shutdown()
	assert.Equal(t, Shutdown, a.GetState())

	_, err := a.Documents()
	assert.Equal(t, ErrShutdown, err)

	_, _, err = a.TogglePauseChanges()
	assert.Equal(t, ErrShutdown, err)
	assert.Equal(t, Shutdown, a.GetState())

	// twice is fine
	a.Shutdown()
}
