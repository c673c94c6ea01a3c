package store

import (
	"testing"

	cm "github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(file string) *Record {
	doc := crdt.NewDocument(crdt.GhostSite, "hello").Replicate(7)
	doc.SetTextInRange(crdt.Point{Column: 5}, crdt.Point{Column: 5}, " world")
	doc.SetTextInRange(crdt.Point{}, crdt.Point{Column: 1}, "J")

	return &Record{
		Key: Key{
			File:   file,
			Repo:   "git@example.com:p.git",
			Branch: "refs/heads/main",
			Commit: "c1",
		},
		Operations: doc.GetOperations(),
		Authors:    []Author{{SiteID: 7, Name: "alice"}},
	}
}

func testStore(t *testing.T, s Store) {
	r := testRecord("/work/a.txt")

	_, err := s.Get(r.Key)
	assert.True(t, cm.IsStore(err, cm.KeyNotFound), "err: %v", err)

	require.NoError(t, s.Put(r))
	require.NoError(t, s.Put(testRecord("/work/b.txt")))

	got, err := s.Get(r.Key)
	require.NoError(t, err)
	assert.Equal(t, r.Key, got.Key)
	assert.Equal(t, r.Authors, got.Authors)
	assert.Equal(t, r.Operations, got.Operations)

	// The stored history rebuilds the same text.
	doc := crdt.NewDocument(crdt.GhostSite, "hello").Replicate(9)
	doc.IntegrateOperations(got.Operations)
	assert.Equal(t, "Jello world", doc.GetText())

	all, err := s.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.Delete(r.Key))
	_, err = s.Get(r.Key)
	assert.True(t, cm.IsStore(err, cm.KeyNotFound), "err: %v", err)

	require.NoError(t, s.Delete(r.Key))
}

func TestInmemStore(t *testing.T) {
	s := NewInmemStore()
	testStore(t, s)
	require.NoError(t, s.Close())

	_, err := s.Get(Key{})
	assert.True(t, cm.IsStore(err, cm.Closed))
}

func TestBadgerStore(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBadgerStore(dir, cm.NewTestEntry(t, "badger"))
	require.NoError(t, err)
	testStore(t, s)
	assert.Equal(t, dir, s.StorePath())

	r := testRecord("/work/c.txt")
	require.NoError(t, s.Put(r))
	require.NoError(t, s.Close())

	// Reopen
	s, err = NewBadgerStore(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(r.Key)
	require.NoError(t, err)
	assert.Equal(t, r.Operations, got.Operations)
}
