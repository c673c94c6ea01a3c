package node

import (
	"errors"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/editor"
	"github.com/mosaicnetworks/gitmesh/src/net"
	"github.com/mosaicnetworks/gitmesh/src/repo"
	"github.com/mosaicnetworks/gitmesh/src/store"
	"github.com/sirupsen/logrus"
)

// Core is the synchronization engine. It is not safe for concurrent use; Node
// serializes every call.
type Core struct {
	siteID      crdt.SiteID
	moniker     string
	workspace   string
	newDocument crdt.Factory

	repo   repo.Repository
	editor editor.Editor
	trans  net.Broadcaster
	store  store.Store
	bus    *EventBus

	registry *Registry
	echoes   *echoIndex
	pause    pause
	visible  bool
	staged   map[crdt.SiteID]bool

	// repository URL -> checkout root
	roots   map[string]string
	watched map[string]bool
	users   map[string]string

	logger *logrus.Entry
}

// NewCore ...
func NewCore(conf *Config,
	repository repo.Repository,
	ed editor.Editor,
	trans net.Broadcaster,
	st store.Store,
	bus *EventBus) *Core {

	logger := conf.Logger
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	newDocument := conf.NewDocument
	if newDocument == nil {
		newDocument = crdt.NewDocument
	}

	if bus == nil {
		bus = NewEventBus()
	}

	c := &Core{
		siteID:      conf.SiteID,
		moniker:     conf.Moniker,
		workspace:   conf.Workspace,
		newDocument: newDocument,
		repo:        repository,
		editor:      ed,
		trans:       trans,
		store:       st,
		bus:         bus,
		echoes:      newEchoIndex(conf.EchoLimit),
		visible:     true,
		staged:      make(map[crdt.SiteID]bool),
		roots:       make(map[string]string),
		watched:     make(map[string]bool),
		users:       make(map[string]string),
		logger:      logger,
	}

	c.registry = NewRegistry(conf.StaleLimit, c.evict)

	return c
}

// SiteID ...
func (c *Core) SiteID() crdt.SiteID {
	return c.siteID
}

// Bus ...
func (c *Core) Bus() *EventBus {
	return c.bus
}

// Registry ...
func (c *Core) Registry() *Registry {
	return c.registry
}

/*******************************************************************************
Registry
*******************************************************************************/

// Lookup returns the entry of the exact key when commit, branch and repoURL
// are all given, and the live entry of file otherwise. It returns nil when
// nothing is registered.
func (c *Core) Lookup(file, commit, branch, repoURL string) *DocumentEntry {
	file = filepath.Clean(file)
	if commit != "" && branch != "" && repoURL != "" {
		return c.registry.Get(DocumentKey{
			File:   file,
			Repo:   repoURL,
			Branch: branch,
			Commit: commit,
		})
	}
	return c.registry.Current(file)
}

// Register returns the entry of file at the given state, creating it when
// needed. Empty branch, commit or repoURL default to the live state of the
// repository. Files outside a repository, or ignored, are skipped with a nil
// entry and a nil error.
func (c *Core) Register(file, branch, commit, repoURL string) (*DocumentEntry, error) {
	file = filepath.Clean(file)

	root, err := c.repo.Root(file)
	if err != nil {
		if errors.Is(err, repo.ErrNotRepository) {
			c.logger.WithField("file", file).Debug("Not in a repository")
			return nil, nil
		}
		return nil, c.repoErr("Register", err)
	}

	ignored, err := c.repo.IsIgnored(file)
	if err != nil {
		return nil, c.repoErr("Register", err)
	}
	if ignored {
		c.logger.WithField("file", file).Debug("Ignored file")
		return nil, nil
	}

	live, err := c.liveKey(file)
	if err != nil {
		return nil, err
	}

	key := live
	if branch != "" {
		key.Branch = branch
	}
	if commit != "" {
		key.Commit = commit
	}
	if repoURL != "" {
		key.Repo = repoURL
	}

	if entry := c.registry.Get(key); entry != nil {
		if key == live {
			c.registry.Revive(entry)
			c.registry.SetPointer(key)
		}
		return entry, nil
	}

	rel, err := c.repo.RelativePath(file)
	if err != nil {
		return nil, c.repoErr("Register", err)
	}

	text, err := c.repo.FileAtCommit(file, key.Commit)
	if err != nil {
		if !errors.Is(err, repo.ErrFileNotFound) {
			return nil, c.repoErr("Register", err)
		}
		text = ""
	}

	entry := &DocumentEntry{
		Key:      key,
		Document: c.newDocument(crdt.GhostSite, text).Replicate(c.siteID),
		Meta:     key.metaData(rel),
		Authors:  NewAuthors(),
	}
	entry.Authors.Add(c.siteID, c.userName(root, file))
	c.restore(entry)

	c.registry.Add(entry)
	c.roots[key.Repo] = root
	c.watch(root)

	if key == live {
		c.registry.SetPointer(key)
	}

	c.logger.WithFields(logrus.Fields{
		"file":   rel,
		"branch": key.Branch,
		"commit": key.Commit,
		"live":   key == live,
	}).Debug("Registered document")

	return entry, nil
}

func (c *Core) liveKey(file string) (DocumentKey, error) {
	branch, err := c.repo.CurrentBranch(file)
	if err != nil {
		return DocumentKey{}, c.repoErr("CurrentBranch", err)
	}
	commit, err := c.repo.CurrentCommit(file)
	if err != nil {
		return DocumentKey{}, c.repoErr("CurrentCommit", err)
	}
	url, err := c.repo.RemoteURL(file)
	if err != nil {
		return DocumentKey{}, c.repoErr("RemoteURL", err)
	}
	return DocumentKey{
		File:   file,
		Repo:   url,
		Branch: branch,
		Commit: commit,
	}, nil
}

func (c *Core) userName(root, file string) string {
	if name, ok := c.users[root]; ok {
		return name
	}
	name, err := c.repo.UserName(file)
	if err != nil {
		c.logger.WithError(err).Debug("Reading user name")
	}
	if name == "" {
		name = c.moniker
	}
	c.users[root] = name
	return name
}

func (c *Core) watch(root string) {
	if c.watched[root] {
		return
	}
	c.watched[root] = true
	if err := c.repo.Watch(root); err != nil {
		c.logger.WithError(err).WithField("root", root).Warn("Watching repository")
	}
}

// restore integrates the persisted history of the entry's key.
func (c *Core) restore(entry *DocumentEntry) {
	if c.store == nil {
		return
	}
	record, err := c.store.Get(entry.Key.storeKey())
	if err != nil {
		if !common.IsStore(err, common.KeyNotFound) {
			c.logger.WithError(err).WithField("key", entry.Key).Warn("Reading stored document")
		}
		return
	}
	entry.Document.IntegrateOperations(record.Operations)
	for _, a := range record.Authors {
		entry.Authors.Add(a.SiteID, a.Name)
	}
	c.logger.WithFields(logrus.Fields{
		"key":        entry.Key,
		"operations": len(record.Operations),
	}).Debug("Restored document")
}

// rootOf returns the checkout root of a repository URL, the workspace when it
// is unknown.
func (c *Core) rootOf(repoURL string) string {
	if root, ok := c.roots[repoURL]; ok {
		return root
	}
	root, err := c.repo.Root(c.workspace)
	if err == nil {
		if url, err := c.repo.RemoteURL(root); err == nil && url == repoURL {
			c.roots[repoURL] = root
		}
		return root
	}
	return c.workspace
}

func (c *Core) allRoots() []string {
	seen := make(map[string]bool)
	res := []string{}
	for _, root := range c.roots {
		if !seen[root] {
			seen[root] = true
			res = append(res, root)
		}
	}
	if len(res) == 0 && c.workspace != "" {
		if root, err := c.repo.Root(c.workspace); err == nil {
			res = append(res, root)
		}
	}
	sort.Strings(res)
	return res
}

// ReconcileBranches points every registered file at the live state of its
// repository. A stale entry matching the live state again is revived.
func (c *Core) ReconcileBranches() {
	for _, file := range c.registry.Files() {
		key, err := c.liveKey(file)
		if err != nil {
			c.logger.WithError(err).WithField("file", file).Debug("Reconciling branch")
			continue
		}
		if entry := c.registry.Get(key); entry != nil {
			c.registry.Revive(entry)
		}
		old, _ := c.registry.Pointer(file)
		c.registry.SetPointer(key)
		if old != key {
			c.logger.WithFields(logrus.Fields{
				"file":   file,
				"branch": key.Branch,
				"commit": key.Commit,
			}).Debug("Moved branch pointer")
		}
	}
}

/*******************************************************************************
Persistence
*******************************************************************************/

// Persist writes every entry to the store.
func (c *Core) Persist() error {
	if c.store == nil {
		return nil
	}
	for _, entry := range c.registry.Entries() {
		record := &store.Record{
			Key:        entry.Key.storeKey(),
			Operations: entry.Document.GetOperations(),
			Authors:    entry.Authors.records(),
		}
		if err := c.store.Put(record); err != nil {
			return err
		}
	}
	return nil
}

func (c *Core) evict(entry *DocumentEntry) {
	c.logger.WithField("key", entry.Key).Debug("Evicted stale document")
	if c.store == nil {
		return
	}
	if err := c.store.Delete(entry.Key.storeKey()); err != nil {
		c.logger.WithError(err).Warn("Deleting stale document")
	}
}

func (c *Core) requestSave(file string) {
	c.bus.Publish(Event{Type: SaveRequested, File: file})
}

/*******************************************************************************
Buffers
*******************************************************************************/

// applyUpdates applies text updates of a live entry to its buffer, last first,
// recording an echo before each edit.
func (c *Core) applyUpdates(entry *DocumentEntry, updates []crdt.TextUpdate) {
	sorted := append([]crdt.TextUpdate(nil), updates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OldStart.Compare(sorted[j].OldStart) > 0
	})
	for _, u := range sorted {
		c.edit(entry.Key.File, u.OldStart, u.OldEnd, u.NewText)
	}
}

func (c *Core) edit(file string, start, end crdt.Point, text string) {
	c.echoes.add(PendingEcho{
		File:  file,
		Start: start,
		End:   end,
		Text:  text,
	})
	if err := c.editor.ApplyEdit(file, start, end, text); err != nil {
		c.echoes.forget(file)
		c.logger.WithError(err).WithField("file", file).Warn("Applying edit")
	}
}

// restoreBuffer makes the buffer of a live entry show its document.
func (c *Core) restoreBuffer(entry *DocumentEntry) {
	text, err := c.editor.Text(entry.Key.File)
	if err != nil {
		c.logger.WithError(err).WithField("file", entry.Key.File).Warn("Reading buffer")
		return
	}
	want := entry.bufferText()
	if text == want {
		return
	}
	start, end, replacement := crdt.DiffRange(text, want)
	c.edit(entry.Key.File, start, end, replacement)
}

/*******************************************************************************
Queries
*******************************************************************************/

// DocumentInfo summarizes an entry.
type DocumentInfo struct {
	Key        DocumentKey  `json:"key"`
	File       string       `json:"file"`
	Live       bool         `json:"live"`
	Stale      bool         `json:"stale"`
	Operations int          `json:"operations"`
	Authors    []net.Author `json:"authors"`
}

// Documents describes every registered entry.
func (c *Core) Documents() []DocumentInfo {
	res := []DocumentInfo{}
	for _, e := range c.registry.Entries() {
		res = append(res, DocumentInfo{
			Key:        e.Key,
			File:       e.Meta.File,
			Live:       c.registry.IsLive(e),
			Stale:      e.Stale,
			Operations: len(e.Document.GetOperations()),
			Authors:    e.Authors.List(),
		})
	}
	return res
}

// Authors returns the authors of the live document of file, nil when there is
// none.
func (c *Core) Authors(file string) []net.Author {
	entry := c.registry.Current(filepath.Clean(file))
	if entry == nil {
		return nil
	}
	return entry.Authors.List()
}

// Operations returns an update per non-stale document, with its full history.
// It answers getOperations.
func (c *Core) Operations() []*net.Update {
	res := []*net.Update{}
	for _, e := range c.registry.Entries() {
		if e.Stale {
			continue
		}
		res = append(res, e.update(e.Document.GetOperations()))
	}
	return res
}

// Visible reports whether remote changes are shown.
func (c *Core) Visible() bool {
	return c.visible
}

// Paused ...
func (c *Core) Paused() bool {
	return c.pause.paused
}

// PauseSignal returns the Deferred of the current pause, nil if not paused.
func (c *Core) PauseSignal() *Deferred {
	if !c.pause.paused {
		return nil
	}
	return c.pause.signal
}

// Stats ...
func (c *Core) Stats() map[string]string {
	return map[string]string{
		"site_id":        strconv.FormatUint(uint64(c.siteID), 10),
		"documents":      strconv.Itoa(c.registry.Len()),
		"stale":          strconv.Itoa(c.registry.StaleLen()),
		"pending_echoes": strconv.Itoa(c.echoes.len()),
		"staged":         strconv.Itoa(len(c.staged)),
		"visible":        strconv.FormatBool(c.visible),
		"paused":         strconv.FormatBool(c.pause.paused),
	}
}

func (c *Core) repoErr(op string, err error) error {
	return common.WrapSyncErr(op, common.RepositoryCommand, err)
}
