package node

import (
	"sort"

	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/sirupsen/logrus"
)

// SwitchBranch checks out branch in every known repository. Buffers are first
// brought back to the committed content so that the working trees are clean;
// afterwards, documents matching the new HEAD get their text back and
// documents whose commit is not an ancestor of the new HEAD become stale. A
// pending pause is cancelled and the staged authors are cleared.
func (c *Core) SwitchBranch(branch string) error {
	c.cancelPause()

	if !c.visible {
		if err := c.ToggleRemoteChangesVisible(false); err != nil {
			return err
		}
	}
	if err := c.ToggleRemoteChangesVisible(true); err != nil {
		return err
	}
	c.visible = true

	if err := c.editor.SaveAll(); err != nil {
		c.logger.WithError(err).Warn("Saving buffers")
	}
	if err := c.editor.CloseAll(); err != nil {
		c.logger.WithError(err).Warn("Closing buffers")
	}
	for _, entry := range c.registry.Entries() {
		entry.clearMask()
	}

	for _, root := range c.allRoots() {
		if err := c.repo.ResetHard(root); err != nil {
			return c.repoErr("ResetHard", err)
		}
		if err := c.repo.Checkout(root, branch); err != nil {
			return c.repoErr("Checkout", err)
		}
		c.logger.WithFields(logrus.Fields{
			"root":   root,
			"branch": branch,
		}).Info("Switched branch")
	}

	c.staged = make(map[crdt.SiteID]bool)
	c.bus.Publish(Event{Type: StagedChanged, Staged: []crdt.SiteID{}})

	c.ReconcileBranches()

	for _, entry := range c.registry.Entries() {
		if c.registry.IsLive(entry) {
			c.restoreBuffer(entry)
			continue
		}
		if entry.Stale {
			continue
		}

		live, ok := c.registry.Pointer(entry.Key.File)
		if !ok {
			continue
		}
		root, err := c.repo.Root(entry.Key.File)
		if err != nil {
			c.registry.MarkStale(entry)
			continue
		}
		ancestor, err := c.repo.IsAncestor(root, entry.Key.Commit, live.Commit)
		if err != nil {
			c.logger.WithError(err).WithField("commit", entry.Key.Commit).Debug("Unknown commit")
		}
		if !ancestor {
			c.registry.MarkStale(entry)
			c.logger.WithField("key", entry.Key).Debug("Marked document stale")
		}
	}

	return nil
}

// Branches lists the local branches of every known repository.
func (c *Core) Branches() ([]string, error) {
	seen := make(map[string]bool)
	res := []string{}
	for _, root := range c.allRoots() {
		branches, err := c.repo.Branches(root)
		if err != nil {
			return nil, c.repoErr("Branches", err)
		}
		for _, b := range branches {
			if !seen[b] {
				seen[b] = true
				res = append(res, b)
			}
		}
	}
	sort.Strings(res)
	return res, nil
}
