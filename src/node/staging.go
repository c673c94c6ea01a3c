package node

import (
	"errors"
	"sort"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/repo"
	"github.com/sirupsen/logrus"
)

func siteSet(sites []crdt.SiteID) map[crdt.SiteID]bool {
	res := make(map[crdt.SiteID]bool, len(sites))
	for _, s := range sites {
		res[s] = true
	}
	return res
}

// excludedOperations returns the operations of entry by authors that are
// neither selected nor the ghost.
func excludedOperations(entry *DocumentEntry, selected map[crdt.SiteID]bool) []crdt.OpID {
	return crdt.OperationsBySite(entry.Document.GetOperations(), func(site crdt.SiteID) bool {
		return site != crdt.GhostSite && !selected[site]
	})
}

// stage writes to the index the content of entry restricted to the edits of
// the selected authors. The document itself is not modified.
func (c *Core) stage(entry *DocumentEntry, selected map[crdt.SiteID]bool) ([]crdt.OpID, error) {
	excluded := excludedOperations(entry, selected)

	replica := entry.Document.Replicate(c.siteID)
	replica.UndoOrRedoOperations(excluded)

	if err := c.repo.StageContent(entry.Key.File, replica.GetText()); err != nil {
		return nil, c.repoErr("StageContent", err)
	}
	return excluded, nil
}

// StageChangesBySiteIDs stages every live document with only the edits of
// the given authors on top of the committed content.
func (c *Core) StageChangesBySiteIDs(siteIDs []crdt.SiteID) error {
	selected := siteSet(siteIDs)
	for _, entry := range c.registry.Live() {
		if _, err := c.stage(entry, selected); err != nil {
			return err
		}
	}
	c.logger.WithField("sites", siteIDs).Debug("Staged changes")
	return nil
}

// StagedSiteIDs returns the staged authors, sorted.
func (c *Core) StagedSiteIDs() []crdt.SiteID {
	res := make([]crdt.SiteID, 0, len(c.staged))
	for site := range c.staged {
		res = append(res, site)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// ToggleStaged adds or removes site from the staged authors, restages, and
// reports whether site is now staged.
func (c *Core) ToggleStaged(site crdt.SiteID) (bool, error) {
	if c.staged[site] {
		delete(c.staged, site)
	} else {
		c.staged[site] = true
	}

	staged := c.StagedSiteIDs()
	err := c.StageChangesBySiteIDs(staged)

	c.bus.Publish(Event{Type: StagedChanged, SiteID: site, Staged: staged})

	return c.staged[site], err
}

type committedEntry struct {
	entry    *DocumentEntry
	excluded []crdt.OpID
	root     string
}

// CommitChangesBySiteIDs commits, in every repository with live documents,
// the edits of the given authors. The working trees are then reset to the new
// commits and the edits of the other authors are replayed on top of them.
// An empty selection is refused.
func (c *Core) CommitChangesBySiteIDs(siteIDs []crdt.SiteID, message string) error {
	if len(siteIDs) == 0 {
		return common.NewSyncErr("CommitChangesBySiteIDs", common.UserActionable,
			"select at least one author to commit")
	}

	if !c.visible {
		if err := c.ToggleRemoteChangesVisible(false); err != nil {
			return err
		}
	}

	selected := siteSet(siteIDs)

	committed := []committedEntry{}
	roots := []string{}
	seen := make(map[string]bool)
	for _, entry := range c.registry.Live() {
		excluded, err := c.stage(entry, selected)
		if err != nil {
			return err
		}
		root, err := c.repo.Root(entry.Key.File)
		if err != nil {
			return c.repoErr("Root", err)
		}
		committed = append(committed, committedEntry{entry, excluded, root})
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}

	if len(committed) == 0 {
		return common.NewSyncErr("CommitChangesBySiteIDs", common.UserActionable,
			"no document to commit")
	}

	if err := c.editor.CloseAll(); err != nil {
		c.logger.WithError(err).Warn("Closing buffers")
	}

	unchanged := make(map[string]bool)
	for _, root := range roots {
		hash, err := c.repo.Commit(root, message)
		if err != nil {
			var cmdErr *repo.CommandError
			if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
				c.logger.WithField("root", root).Info("Nothing to commit")
				unchanged[root] = true
				continue
			}
			return c.repoErr("Commit", err)
		}
		if err := c.repo.ResetHard(root); err != nil {
			return c.repoErr("ResetHard", err)
		}
		c.logger.WithFields(logrus.Fields{
			"root":   root,
			"commit": hash,
			"sites":  siteIDs,
		}).Info("Committed changes")
	}

	c.ReconcileBranches()

	for _, ce := range committed {
		if unchanged[ce.root] {
			c.restoreBuffer(ce.entry)
			continue
		}
		if err := c.replay(ce.entry, ce.excluded); err != nil {
			c.logger.WithError(err).WithField("file", ce.entry.Meta.File).Error("Replaying changes")
		}
	}

	c.requestSave("")

	return nil
}

// replay registers the post-commit document of old's file and re-applies, one
// author at a time, the operations that were left out of the commit. The
// replayed operations are authored by their original sites.
func (c *Core) replay(old *DocumentEntry, excluded []crdt.OpID) error {
	fresh, err := c.Register(old.Key.File, "", "", "")
	if err != nil {
		return err
	}
	if fresh == nil {
		return nil
	}
	if fresh.Key == old.Key {
		return common.NewSyncErr("Replay", common.Internal, "commit did not move HEAD")
	}

	fresh.Authors.Merge(old.Authors)
	c.registry.MarkStale(old)

	// the replica starts at the committed content
	replica := old.Document.Replicate(c.siteID)
	replica.UndoOrRedoOperations(excluded)

	bySite := make(map[crdt.SiteID][]crdt.OpID)
	order := []crdt.SiteID{}
	for _, id := range excluded {
		if _, ok := bySite[id.Site]; !ok {
			order = append(order, id.Site)
		}
		bySite[id.Site] = append(bySite[id.Site], id)
	}

	for _, site := range order {
		updates := replica.UndoOrRedoOperations(bySite[site])
		if len(updates) == 0 {
			continue
		}
		sort.SliceStable(updates, func(i, j int) bool {
			return updates[i].OldStart.Compare(updates[j].OldStart) > 0
		})

		author := fresh.Document.Replicate(site)
		ops := []crdt.Operation{}
		for _, u := range updates {
			ops = append(ops, author.SetTextInRange(u.OldStart, u.OldEnd, u.NewText)...)
		}

		res := fresh.Document.IntegrateOperations(ops)
		c.applyUpdates(fresh, res.TextUpdates)
		c.broadcast(fresh, ops)

		c.logger.WithFields(logrus.Fields{
			"file":       fresh.Meta.File,
			"site":       site,
			"operations": len(ops),
		}).Debug("Replayed changes")
	}

	return nil
}
