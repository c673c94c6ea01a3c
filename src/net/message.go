package net

import (
	"encoding/json"
	"fmt"

	"github.com/mosaicnetworks/gitmesh/src/crdt"
)

// CommandGetOperations asks a peer to send every document it knows.
const CommandGetOperations = "getOperations"

// MetaData locates the document an update belongs to.
type MetaData struct {
	RepositoryURL string `json:"repositoryUrl"`
	Branch        string `json:"branch"`
	Commit        string `json:"commit"`
	File          string `json:"file"`
}

// Author is one (site, display name) pair.
type Author struct {
	SiteID crdt.SiteID `json:"siteId"`
	Name   string      `json:"name"`
}

// Update is the payload of an update message.
type Update struct {
	MetaData   MetaData         `json:"metaData"`
	Operations []crdt.Operation `json:"operations"`
	Authors    []Author         `json:"authors"`
}

// Message is either an *UpdateMessage or a *CommandMessage.
type Message interface {
	message()
}

// UpdateMessage carries CRDT operations.
type UpdateMessage struct {
	Update *Update
}

func (*UpdateMessage) message() {}

// CommandMessage carries a named command.
type CommandMessage struct {
	Name string
}

func (*CommandMessage) message() {}

type wireMessage struct {
	Update  *Update `json:"update,omitempty"`
	Command string  `json:"command,omitempty"`

	// Answers to getOperations are sometimes written without the update
	// envelope.
	MetaData   *MetaData        `json:"metaData,omitempty"`
	Operations []crdt.Operation `json:"operations,omitempty"`
	Authors    []Author         `json:"authors,omitempty"`
}

// EncodeMessage returns the wire encoding of a message.
func EncodeMessage(m Message) ([]byte, error) {
	var w wireMessage

	switch msg := m.(type) {
	case *UpdateMessage:
		if msg.Update == nil {
			return nil, fmt.Errorf("empty update")
		}
		w.Update = msg.Update
	case *CommandMessage:
		if msg.Name == "" {
			return nil, fmt.Errorf("empty command")
		}
		w.Command = msg.Name
	default:
		return nil, fmt.Errorf("unknown message type %T", m)
	}

	return json.Marshal(&w)
}

// DecodeMessage parses one complete JSON object.
func DecodeMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	switch {
	case w.Update != nil:
		return &UpdateMessage{Update: w.Update}, nil
	case w.Command != "":
		return &CommandMessage{Name: w.Command}, nil
	case w.MetaData != nil:
		return &UpdateMessage{
			Update: &Update{
				MetaData:   *w.MetaData,
				Operations: w.Operations,
				Authors:    w.Authors,
			},
		}, nil
	}

	return nil, fmt.Errorf("message is neither an update nor a command")
}
