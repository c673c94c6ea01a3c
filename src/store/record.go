package store

import (
	"bytes"
	"fmt"

	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/ugorji/go/codec"
)

// Key identifies a document.
type Key struct {
	File   string
	Repo   string
	Branch string
	Commit string
}

// String ...
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.Repo, k.Branch, k.Commit, k.File)
}

// Author is one (site, display name) pair.
type Author struct {
	SiteID crdt.SiteID `json:"siteId"`
	Name   string      `json:"name"`
}

// Record is the persisted state of one document.
type Record struct {
	Key        Key              `json:"key"`
	Operations []crdt.Operation `json:"operations"`
	Authors    []Author         `json:"authors"`
}

// Marshal - json encoding of Record
func (r *Record) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(r); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (r *Record) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(r)
}
