package node

import (
	"testing"

	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(file, commit string) *DocumentEntry {
	return &DocumentEntry{
		Key: DocumentKey{
			File:   file,
			Repo:   testRemote,
			Branch: "refs/heads/main",
			Commit: commit,
		},
		Document: crdt.NewDocument(crdt.GhostSite, "").Replicate(2),
		Authors:  NewAuthors(),
	}
}

func TestRegistryPointer(t *testing.T) {
	r := NewRegistry(4, nil)

	e1 := testEntry("/a", "c1")
	e2 := testEntry("/a", "c2")
	r.Add(e1)
	r.Add(e2)

	assert.Nil(t, r.Current("/a"))

	r.SetPointer(e1.Key)
	assert.Same(t, e1, r.Current("/a"))
	assert.True(t, r.IsLive(e1))
	assert.False(t, r.IsLive(e2))

	r.SetPointer(e2.Key)
	assert.Same(t, e2, r.Current("/a"))
	assert.Equal(t, []*DocumentEntry{e2}, r.Live())
	assert.Equal(t, []string{"/a"}, r.Files())

	r.MarkStale(e2)
	assert.Nil(t, r.Current("/a"))
	assert.Empty(t, r.Live())
	assert.Same(t, e2, r.Get(e2.Key))
}

func TestRegistryStaleEviction(t *testing.T) {
	evicted := []*DocumentEntry{}
	r := NewRegistry(2, func(e *DocumentEntry) {
		evicted = append(evicted, e)
	})

	e1 := testEntry("/a", "c1")
	e2 := testEntry("/a", "c2")
	e3 := testEntry("/a", "c3")
	for _, e := range []*DocumentEntry{e1, e2, e3} {
		r.Add(e)
	}

	r.MarkStale(e1)
	r.MarkStale(e2)
	assert.Equal(t, 2, r.StaleLen())

	// e1 becomes the most recently used
	r.Get(e1.Key)

	r.MarkStale(e3)
	require.Len(t, evicted, 1)
	assert.Same(t, e2, evicted[0])
	assert.Nil(t, r.Get(e2.Key))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, r.StaleLen())
}

func TestRegistryRevive(t *testing.T) {
	evicted := 0
	r := NewRegistry(1, func(*DocumentEntry) { evicted++ })

	e1 := testEntry("/a", "c1")
	e2 := testEntry("/a", "c2")
	r.Add(e1)
	r.Add(e2)

	r.MarkStale(e1)
	r.Revive(e1)
	assert.False(t, e1.Stale)
	assert.Equal(t, 0, r.StaleLen())

	// reviving removes the entry from the cache without evicting it
	r.MarkStale(e2)
	assert.Equal(t, 0, evicted)
	assert.Same(t, e1, r.Get(e1.Key))

	// replacing a stale entry revives the key
	fresh := testEntry("/a", "c2")
	r.Add(fresh)
	assert.Equal(t, 0, r.StaleLen())
	assert.Same(t, fresh, r.Get(fresh.Key))
	assert.Equal(t, 0, evicted)
}

func TestRegistryEntriesOrder(t *testing.T) {
	r := NewRegistry(0, nil)
	r.Add(testEntry("/b", "c1"))
	r.Add(testEntry("/a", "c2"))
	r.Add(testEntry("/a", "c1"))

	entries := r.Entries()
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].Key.String() < entries[i].Key.String())
	}
}

func TestEntryMask(t *testing.T) {
	e := testEntry("/a", "c1")
	doc := crdt.NewDocument(crdt.GhostSite, "hello")
	e.Document = doc.Replicate(2)
	e.clearMask()

	other := doc.Replicate(3)
	ops := other.SetTextInRange(pt(0, 5), pt(0, 5), " world")
	e.Document.IntegrateOperations(ops)
	require.Equal(t, "hello world", e.Document.GetText())

	e.mask([]crdt.OpID{ops[0].ID})
	assert.True(t, e.isMasked(ops[0].ID))
	assert.Equal(t, []crdt.OpID{ops[0].ID}, e.maskedIDs())
	assert.Equal(t, "hello", e.bufferText())
	// the document keeps the operation
	assert.Equal(t, "hello world", e.Document.GetText())

	e.clearMask()
	assert.Equal(t, "hello world", e.bufferText())
}
