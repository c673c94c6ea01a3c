package service

import (
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/node"
)

// StageRequest selects the authors whose edits are staged.
type StageRequest struct {
	SiteIDs []crdt.SiteID `json:"siteIds"`
}

// CommitRequest ...
type CommitRequest struct {
	SiteIDs []crdt.SiteID `json:"siteIds"`
	Message string        `json:"message"`
}

// VisibilityRequest ...
type VisibilityRequest struct {
	IncludeOwn bool `json:"includeOwn"`
}

// BranchRequest ...
type BranchRequest struct {
	Branch string `json:"branch"`
}

// StagedResponse ...
type StagedResponse struct {
	SiteID crdt.SiteID `json:"siteId"`
	Staged bool        `json:"staged"`
}

// VisibilityResponse ...
type VisibilityResponse struct {
	Visible bool `json:"visible"`
}

// PauseResponse ...
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// ErrorResponse ...
type ErrorResponse struct {
	Error string `json:"error"`
}

// EventMessage is what websocket clients receive. The first message of a
// session only carries the session id.
type EventMessage struct {
	Session string      `json:"session"`
	Event   *node.Event `json:"event,omitempty"`
}
