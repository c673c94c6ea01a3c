package node

import (
	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/sirupsen/logrus"
)

// ToggleRemoteChangesVisible hides or shows, in every live buffer, the edits
// of all authors but the ghost and, unless includeOwn is set, the local site.
// The documents are left untouched. It is refused while paused.
func (c *Core) ToggleRemoteChangesVisible(includeOwn bool) error {
	if c.pause.paused {
		return common.NewSyncErr("ToggleRemoteChangesVisible", common.UserActionable,
			"unpause changes before toggling their visibility")
	}

	c.visible = !c.visible

	toggled := func(site crdt.SiteID) bool {
		return site != crdt.GhostSite && (includeOwn || site != c.siteID)
	}

	for _, entry := range c.registry.Live() {
		ids := crdt.OperationsBySite(entry.Document.GetOperations(), toggled)
		if c.visible {
			c.reveal(entry, ids)
		} else {
			c.conceal(entry, ids)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"visible":     c.visible,
		"include_own": includeOwn,
	}).Debug("Toggled remote changes")

	c.bus.Publish(Event{Type: VisibilityChanged, Visible: c.visible})

	return nil
}

// conceal removes the effect of ids from the buffer and masks them.
func (c *Core) conceal(entry *DocumentEntry, ids []crdt.OpID) {
	added := []crdt.OpID{}
	for _, id := range ids {
		if !entry.isMasked(id) {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return
	}

	// move a replica to the state of the buffer, then undo the rest
	replica := entry.Document.Replicate(c.siteID)
	replica.UndoOrRedoOperations(entry.maskedIDs())
	updates := replica.UndoOrRedoOperations(added)

	entry.mask(added)
	c.applyUpdates(entry, updates)
}

// reveal brings back the effect of the masked operations among ids. The
// updates are those of undoing them, inverted.
func (c *Core) reveal(entry *DocumentEntry, ids []crdt.OpID) {
	shown := make(map[crdt.OpID]bool)
	for _, id := range ids {
		if entry.isMasked(id) {
			shown[id] = true
		}
	}
	if len(shown) == 0 {
		return
	}

	kept := []crdt.OpID{}
	revealed := []crdt.OpID{}
	for _, id := range entry.maskedIDs() {
		if shown[id] {
			revealed = append(revealed, id)
		} else {
			kept = append(kept, id)
		}
	}

	replica := entry.Document.Replicate(c.siteID)
	replica.UndoOrRedoOperations(kept)
	updates := crdt.InvertAll(replica.UndoOrRedoOperations(revealed))

	for _, id := range revealed {
		delete(entry.masked, id)
	}
	c.applyUpdates(entry, updates)
}

/*******************************************************************************
Pause
*******************************************************************************/

// TogglePauseChanges engages or releases the pause and returns the new state.
// Releasing applies the queued remote operations in arrival order.
func (c *Core) TogglePauseChanges() bool {
	if c.pause.paused {
		c.pause.release()
	} else {
		c.pause.engage()
	}

	c.logger.WithField("paused", c.pause.paused).Debug("Toggled pause")
	c.bus.Publish(Event{Type: PauseChanged, Paused: c.pause.paused})

	return c.pause.paused
}

func (c *Core) cancelPause() {
	if !c.pause.paused {
		return
	}
	c.pause.cancel()
	c.logger.Debug("Pause cancelled")
	c.bus.Publish(Event{Type: PauseChanged, Paused: false})
}
