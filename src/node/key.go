package node

import (
	"github.com/mosaicnetworks/gitmesh/src/net"
	"github.com/mosaicnetworks/gitmesh/src/store"
)

// DocumentKey identifies a document: a local file at a repository state.
// File is an absolute local path; Repo is the URL peers agree on.
type DocumentKey struct {
	File   string `json:"file"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Commit string `json:"commit"`
}

// String ...
func (k DocumentKey) String() string {
	return k.storeKey().String()
}

func (k DocumentKey) storeKey() store.Key {
	return store.Key{
		File:   k.File,
		Repo:   k.Repo,
		Branch: k.Branch,
		Commit: k.Commit,
	}
}

func (k DocumentKey) metaData(rel string) net.MetaData {
	return net.MetaData{
		RepositoryURL: k.Repo,
		Branch:        k.Branch,
		Commit:        k.Commit,
		File:          rel,
	}
}
