// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package room implements the live room: character presence, chat
// messaging with edit and retract, status indicators, and the
// serialized runtime that applies appearance actions.
package room

import (
	"context"
	"encoding/json"

	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/item"
	"github.com/vestiary/vestiary/internal/state"
)

// MessageKind discriminates the chat message union.
type MessageKind string

const (
	// MessageChat is in-character speech. May be directed.
	MessageChat MessageKind = "chat"
	// MessageOOC is out-of-character speech. May be directed.
	MessageOOC MessageKind = "ooc"
	// MessageEmote is a third-person emote. Always broadcast.
	MessageEmote MessageKind = "emote"
	// MessageMe is a first-person emote. Always broadcast.
	MessageMe MessageKind = "me"
	// MessageAction is a server-generated item action announcement.
	MessageAction MessageKind = "action"
	// MessageServer is a server notice.
	MessageServer MessageKind = "serverMessage"
	// MessageDeleted retracts an earlier message by id.
	MessageDeleted MessageKind = "deleted"
)

// Status is a character's chat activity indicator.
type Status string

const (
	StatusNone       Status = "none"
	StatusTyping     Status = "typing"
	StatusWhispering Status = "whispering"
	StatusAFK        Status = "afk"
)

// Segment is one styled run of chat text.
type Segment struct {
	Style string `json:"style"`
	Text  string `json:"text"`
}

// CharacterInfo is the public identity rendered with messages. It is
// cached so action messages stay renderable after a participant
// leaves.
type CharacterInfo struct {
	ID         state.CharacterID `json:"id"`
	Name       string            `json:"name"`
	Pronoun    string            `json:"pronoun"`
	LabelColor string            `json:"labelColor"`
}

// ClientMessage is one chat message as sent by a client. To is only
// honored for chat and ooc.
type ClientMessage struct {
	Kind     MessageKind       `json:"type"`
	To       state.CharacterID `json:"to,omitempty"`
	Segments []Segment         `json:"parts"`
}

// directed reports whether the message goes to a single addressee.
func (m ClientMessage) directed() bool {
	return (m.Kind == MessageChat || m.Kind == MessageOOC) && m.To != ""
}

// ActionData carries the participants and items of an action message.
type ActionData struct {
	Character       *CharacterInfo `json:"character,omitempty"`
	TargetCharacter *CharacterInfo `json:"targetCharacter,omitempty"`
	Asset           assets.AssetID `json:"asset,omitempty"`
	PreviousAsset   assets.AssetID `json:"previousAsset,omitempty"`
}

// Message is one entry of the room's chat stream. Time is a room-local
// strictly increasing stamp; it totally orders messages within the
// room.
type Message struct {
	Kind     MessageKind       `json:"type"`
	ID       uint64            `json:"id,omitempty"`
	InsertID uint64            `json:"insertId,omitempty"`
	From     *CharacterInfo    `json:"from,omitempty"`
	To       *CharacterInfo    `json:"to,omitempty"`
	Segments []Segment         `json:"parts,omitempty"`
	Action   item.DescriptorID `json:"action,omitempty"`
	Data     *ActionData       `json:"data,omitempty"`
	Time     int64             `json:"time"`
}

// visibleTo is the fan-out filter: a pure function of message kind and
// recipient identity. Directed chat reaches only sender and addressee;
// everything else is broadcast.
func visibleTo(msg Message, recipient state.CharacterID) bool {
	switch msg.Kind {
	case MessageChat, MessageOOC:
		if msg.To == nil {
			return true
		}
		return recipient == msg.From.ID || recipient == msg.To.ID
	case MessageEmote, MessageMe, MessageAction, MessageServer, MessageDeleted:
		return true
	default:
		panic("unhandled message kind " + string(msg.Kind))
	}
}

// DirectoryMessage is an externally authored action message relayed by
// the directory. DirectoryTime orders them across deliveries; replays
// are dropped.
type DirectoryMessage struct {
	DirectoryTime int64             `json:"directoryTime"`
	Action        item.DescriptorID `json:"action"`
	Character     state.CharacterID `json:"character,omitempty"`
	Target        state.CharacterID `json:"targetCharacter,omitempty"`
}

// RoomUpdate is the payload announcing presence and state changes.
type RoomUpdate struct {
	Room  *ClientData       `json:"room,omitempty"`
	Join  *CharacterInfo    `json:"join,omitempty"`
	Leave state.CharacterID `json:"leave,omitempty"`
}

// ClientData is the full room view sent to a character on entry.
type ClientData struct {
	Characters []CharacterInfo `json:"characters"`
	State      state.Bundle    `json:"state"`
}

// StatusUpdate announces a character's chat status.
type StatusUpdate struct {
	ID     state.CharacterID `json:"id"`
	Status Status            `json:"status"`
}

// Connection is the transport seen from the room: fire-and-forget
// sends plus a request/response primitive. The room never inspects
// transport internals.
type Connection interface {
	SendMessage(msgType string, payload any)
	AwaitResponse(ctx context.Context, msgType string, payload any) (json.RawMessage, error)
}
