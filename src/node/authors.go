package node

import (
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/net"
	"github.com/mosaicnetworks/gitmesh/src/store"
)

// Authors maps site IDs to display names, in order of first appearance.
type Authors struct {
	order []crdt.SiteID
	names map[crdt.SiteID]string
}

// NewAuthors ...
func NewAuthors() *Authors {
	return &Authors{
		names: make(map[crdt.SiteID]string),
	}
}

// Add records the name of site and reports whether the site was new. A known
// site keeps its name unless it was empty.
func (a *Authors) Add(site crdt.SiteID, name string) bool {
	current, ok := a.names[site]
	if ok {
		if current == "" && name != "" {
			a.names[site] = name
		}
		return false
	}
	a.order = append(a.order, site)
	a.names[site] = name
	return true
}

// Merge adds every author of other and returns the sites that were new.
func (a *Authors) Merge(other *Authors) []crdt.SiteID {
	added := []crdt.SiteID{}
	for _, site := range other.order {
		if a.Add(site, other.names[site]) {
			added = append(added, site)
		}
	}
	return added
}

// Name ...
func (a *Authors) Name(site crdt.SiteID) (string, bool) {
	name, ok := a.names[site]
	return name, ok
}

// Sites returns the site IDs in order of first appearance.
func (a *Authors) Sites() []crdt.SiteID {
	return append([]crdt.SiteID(nil), a.order...)
}

// Len ...
func (a *Authors) Len() int {
	return len(a.order)
}

// List returns the authors in their wire form.
func (a *Authors) List() []net.Author {
	res := make([]net.Author, 0, len(a.order))
	for _, site := range a.order {
		res = append(res, net.Author{SiteID: site, Name: a.names[site]})
	}
	return res
}

func (a *Authors) records() []store.Author {
	res := make([]store.Author, 0, len(a.order))
	for _, site := range a.order {
		res = append(res, store.Author{SiteID: site, Name: a.names[site]})
	}
	return res
}
