package node

import (
	"sort"

	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/net"

	lru "github.com/hashicorp/golang-lru"
)

// DocumentEntry is a registered document.
type DocumentEntry struct {
	Key      DocumentKey
	Document crdt.Document
	Meta     net.MetaData
	Authors  *Authors
	Stale    bool

	// operations integrated into Document but not reflected in the buffer
	masked map[crdt.OpID]struct{}
}

func (e *DocumentEntry) mask(ids []crdt.OpID) {
	for _, id := range ids {
		e.masked[id] = struct{}{}
	}
}

func (e *DocumentEntry) isMasked(id crdt.OpID) bool {
	_, ok := e.masked[id]
	return ok
}

func (e *DocumentEntry) maskedIDs() []crdt.OpID {
	res := make([]crdt.OpID, 0, len(e.masked))
	for _, op := range e.Document.GetOperations() {
		if e.isMasked(op.ID) {
			res = append(res, op.ID)
		}
	}
	return res
}

func (e *DocumentEntry) clearMask() {
	e.masked = make(map[crdt.OpID]struct{})
}

// bufferText is the text the buffer of a live entry is expected to show.
func (e *DocumentEntry) bufferText() string {
	if len(e.masked) == 0 {
		return e.Document.GetText()
	}
	replica := e.Document.Replicate(e.Document.SiteID())
	replica.UndoOrRedoOperations(e.maskedIDs())
	return replica.GetText()
}

func (e *DocumentEntry) update(ops []crdt.Operation) *net.Update {
	return &net.Update{
		MetaData:   e.Meta,
		Operations: ops,
		Authors:    e.Authors.List(),
	}
}

// Registry holds the document entries and, for each file, the key of its live
// document. Stale entries are kept in an LRU; when it overflows, the least
// recently used stale entry is dropped and handed to onEvict.
type Registry struct {
	entries  map[DocumentKey]*DocumentEntry
	branches map[string]DocumentKey
	stale    *lru.Cache
	onEvict  func(*DocumentEntry)
}

// NewRegistry ...
func NewRegistry(staleLimit int, onEvict func(*DocumentEntry)) *Registry {
	if staleLimit <= 0 {
		staleLimit = DefaultStaleLimit
	}

	r := &Registry{
		entries:  make(map[DocumentKey]*DocumentEntry),
		branches: make(map[string]DocumentKey),
		onEvict:  onEvict,
	}

	// NewWithEvict only fails on a non-positive size
	r.stale, _ = lru.NewWithEvict(staleLimit, r.evicted)

	return r
}

func (r *Registry) evicted(key interface{}, value interface{}) {
	entry := value.(*DocumentEntry)
	// Revived entries are removed from the cache too
	if !entry.Stale {
		return
	}
	if current, ok := r.entries[entry.Key]; ok && current == entry {
		delete(r.entries, entry.Key)
	}
	if r.onEvict != nil {
		r.onEvict(entry)
	}
}

// Get returns the entry of key, stale or not, or nil.
func (r *Registry) Get(key DocumentKey) *DocumentEntry {
	entry, ok := r.entries[key]
	if !ok {
		return nil
	}
	if entry.Stale {
		r.stale.Get(key)
	}
	return entry
}

// Add registers entry, replacing any entry of the same key.
func (r *Registry) Add(entry *DocumentEntry) {
	if entry.masked == nil {
		entry.clearMask()
	}
	if old, ok := r.entries[entry.Key]; ok && old.Stale {
		old.Stale = false
		r.stale.Remove(old.Key)
	}
	r.entries[entry.Key] = entry
}

// Pointer returns the live key of file.
func (r *Registry) Pointer(file string) (DocumentKey, bool) {
	key, ok := r.branches[file]
	return key, ok
}

// SetPointer makes key the live key of its file.
func (r *Registry) SetPointer(key DocumentKey) {
	r.branches[key.File] = key
}

// Current returns the live, non-stale entry of file, or nil.
func (r *Registry) Current(file string) *DocumentEntry {
	key, ok := r.branches[file]
	if !ok {
		return nil
	}
	entry, ok := r.entries[key]
	if !ok || entry.Stale {
		return nil
	}
	return entry
}

// IsLive reports whether entry is the live document of its file.
func (r *Registry) IsLive(entry *DocumentEntry) bool {
	return r.Current(entry.Key.File) == entry
}

// MarkStale ...
func (r *Registry) MarkStale(entry *DocumentEntry) {
	if entry.Stale {
		return
	}
	entry.Stale = true
	r.stale.Add(entry.Key, entry)
}

// Revive clears the stale flag of entry.
func (r *Registry) Revive(entry *DocumentEntry) {
	if !entry.Stale {
		return
	}
	entry.Stale = false
	r.stale.Remove(entry.Key)
}

// Entries returns every entry, ordered by key.
func (r *Registry) Entries() []*DocumentEntry {
	res := make([]*DocumentEntry, 0, len(r.entries))
	for _, e := range r.entries {
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Key.String() < res[j].Key.String()
	})
	return res
}

// Live returns the live entries, ordered by file.
func (r *Registry) Live() []*DocumentEntry {
	res := []*DocumentEntry{}
	for _, file := range r.Files() {
		if e := r.Current(file); e != nil {
			res = append(res, e)
		}
	}
	return res
}

// Files returns every file with a registered entry, sorted.
func (r *Registry) Files() []string {
	seen := make(map[string]bool)
	res := []string{}
	for key := range r.entries {
		if !seen[key.File] {
			seen[key.File] = true
			res = append(res, key.File)
		}
	}
	sort.Strings(res)
	return res
}

// Len ...
func (r *Registry) Len() int {
	return len(r.entries)
}

// StaleLen returns the number of stale entries.
func (r *Registry) StaleLen() int {
	return r.stale.Len()
}
