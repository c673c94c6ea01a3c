package node

import (
	"path/filepath"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/editor"
	"github.com/mosaicnetworks/gitmesh/src/net"
	"github.com/sirupsen/logrus"
)

// OnLocalChange handles the change notification of a buffer. Changes made by
// the Core itself are recognized by their echo and skipped; the others become
// operations of the local site and are broadcast.
func (c *Core) OnLocalChange(ev editor.ChangeEvent) error {
	file := filepath.Clean(ev.File)

	entry := c.registry.Current(file)
	if entry == nil {
		genuine := false
		for _, change := range ev.Changes {
			if !c.echoes.consume(file, change) {
				genuine = true
			}
		}
		if !genuine {
			return nil
		}
		entry, err := c.Register(file, "", "", "")
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		// the buffer already holds the changes
		return c.adoptBuffer(entry)
	}

	ops := []crdt.Operation{}
	for _, change := range ev.Changes {
		if c.echoes.consume(file, change) {
			continue
		}
		ops = append(ops, c.localEdit(entry, change)...)
	}
	if len(ops) == 0 {
		return nil
	}

	c.broadcast(entry, ops)
	c.requestSave(file)

	return nil
}

// adoptBuffer turns the difference between the buffer of a live entry and its
// document into local operations.
func (c *Core) adoptBuffer(entry *DocumentEntry) error {
	text, err := c.editor.Text(entry.Key.File)
	if err != nil {
		return common.WrapSyncErr("AdoptBuffer", common.Internal, err)
	}
	current := entry.bufferText()
	if text == current {
		return nil
	}

	start, end, replacement := crdt.DiffRange(current, text)
	ops := c.localEdit(entry, editor.Change{
		Start: start,
		End:   end,
		Text:  replacement,
	})

	c.broadcast(entry, ops)
	c.requestSave(entry.Key.File)

	return nil
}

// localEdit applies a buffer change to the document of entry. Masked
// operations are absent from the buffer, so the change is computed against a
// replica where they are undone.
func (c *Core) localEdit(entry *DocumentEntry, change editor.Change) []crdt.Operation {
	if len(entry.masked) == 0 {
		return entry.Document.SetTextInRange(change.Start, change.End, change.Text)
	}
	replica := entry.Document.Replicate(c.siteID)
	replica.UndoOrRedoOperations(entry.maskedIDs())
	ops := replica.SetTextInRange(change.Start, change.End, change.Text)
	entry.Document.IntegrateOperations(ops)
	return ops
}

func (c *Core) broadcast(entry *DocumentEntry, ops []crdt.Operation) {
	if len(ops) == 0 || c.trans == nil {
		return
	}
	if err := c.trans.SendUpdate(entry.update(ops)); err != nil {
		c.logger.WithError(err).WithField("file", entry.Meta.File).Warn("Broadcasting update")
	}
}

// OnRemoteUpdate integrates the operations of a peer into the document of the
// sender's key, registering it when needed.
func (c *Core) OnRemoteUpdate(u *net.Update) error {
	md := u.MetaData
	root := c.rootOf(md.RepositoryURL)
	file := filepath.Join(root, filepath.FromSlash(md.File))

	entry := c.Lookup(file, md.Commit, md.Branch, md.RepositoryURL)
	if entry == nil {
		var err error
		entry, err = c.Register(file, md.Branch, md.Commit, md.RepositoryURL)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		if c.registry.IsLive(entry) {
			if err := c.adoptBuffer(entry); err != nil {
				return err
			}
		}
	}

	for _, a := range u.Authors {
		if entry.Authors.Add(a.SiteID, a.Name) {
			c.bus.Publish(Event{
				Type:   AuthorsChanged,
				File:   file,
				SiteID: a.SiteID,
				Name:   a.Name,
			})
		}
	}

	ops := u.Operations
	c.pause.run(func(cancelled bool) {
		c.integrateRemote(entry, ops, !cancelled)
	})
	c.requestSave(file)

	return nil
}

// integrateRemote integrates ops into entry. The resulting text updates reach
// the buffer only for the live entry, when remote changes are visible and show
// is set; otherwise the new operations of a live entry are masked.
func (c *Core) integrateRemote(entry *DocumentEntry, ops []crdt.Operation, show bool) {
	live := c.registry.IsLive(entry)

	var replica crdt.Document
	if live && len(entry.masked) > 0 {
		replica = entry.Document.Replicate(c.siteID)
		replica.UndoOrRedoOperations(entry.maskedIDs())
	}

	known := make(map[crdt.OpID]bool)
	if live {
		for _, op := range entry.Document.GetOperations() {
			known[op.ID] = true
		}
	}

	res := entry.Document.IntegrateOperations(ops)
	if res.Unresolved > 0 && c.trans != nil {
		err := common.NewSyncErr("IntegrateOperations", common.ResyncNeeded, "unresolved dependencies")
		c.logger.WithFields(logrus.Fields{
			"file":       entry.Meta.File,
			"unresolved": res.Unresolved,
		}).WithError(err).Debug("Requesting remote operations")
		c.trans.RequestRemoteOperations()
	}

	if !live {
		return
	}

	if !show || !c.visible {
		added := []crdt.OpID{}
		for _, op := range entry.Document.GetOperations() {
			if !known[op.ID] {
				added = append(added, op.ID)
			}
		}
		entry.mask(added)
		return
	}

	updates := res.TextUpdates
	if replica != nil {
		updates = replica.IntegrateOperations(ops).TextUpdates
	}
	c.applyUpdates(entry, updates)
}
