// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package room_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vestiary/vestiary/internal/item"
	"github.com/vestiary/vestiary/internal/room"
	"github.com/vestiary/vestiary/internal/state"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sent struct {
	msgType string
	payload any
}

type fakeConn struct {
	mu   sync.Mutex
	sent []sent
}

func (c *fakeConn) SendMessage(msgType string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sent{msgType: msgType, payload: payload})
}

func (c *fakeConn) AwaitResponse(context.Context, string, any) (json.RawMessage, error) {
	return nil, nil
}

// messages returns every chat stream message delivered, in order.
func (c *fakeConn) messages() []room.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []room.Message
	for _, s := range c.sent {
		if s.msgType == "chatRoomMessage" {
			out = append(out, s.payload.([]room.Message)...)
		}
	}
	return out
}

func (c *fakeConn) countType(msgType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.sent {
		if s.msgType == msgType {
			n++
		}
	}
	return n
}

func info(id state.CharacterID, name string) room.CharacterInfo {
	return room.CharacterInfo{ID: id, Name: name, Pronoun: "they", LabelColor: "#88ccff"}
}

func newTestRoom(t *testing.T, clock *fakeClock) (*room.Room, *fakeConn, *fakeConn, *fakeConn) {
	t.Helper()
	r := room.NewRoom("r/test", nil, room.WithClock(clock.Now))
	t.Cleanup(r.Close)

	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	r.CharacterEnter(info("c1", "Ash"), a, room.ClientData{})
	r.CharacterEnter(info("c2", "Bea"), b, room.ClientData{})
	r.CharacterEnter(info("c3", "Cleo"), c, room.ClientData{})
	return r, a, b, c
}

func say(text string) []room.ClientMessage {
	return []room.ClientMessage{{
		Kind:     room.MessageChat,
		Segments: []room.Segment{{Style: "normal", Text: text}},
	}}
}

func TestRoom_MessageOrdering(t *testing.T) {
	clock := newFakeClock()
	r, a, _, _ := newTestRoom(t, clock)

	// The wall clock never advances; stamps must still increase.
	for i := uint64(1); i <= 5; i++ {
		r.HandleMessages("c1", say("hello"), i, 0, 0)
	}
	msgs := a.messages()
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].Time, msgs[i-1].Time)
	}
}

func TestRoom_EditWindow(t *testing.T) {
	t.Run("edit inside the window retracts then replaces", func(t *testing.T) {
		clock := newFakeClock()
		r, _, b, _ := newTestRoom(t, clock)

		r.HandleMessages("c1", say("hello"), 5, 0, 0)
		clock.Advance(time.Minute)
		r.HandleMessages("c1", say("hello world"), 6, 5, 0)

		msgs := b.messages()
		require.Len(t, msgs, 3)
		assert.Equal(t, room.MessageDeleted, msgs[1].Kind)
		assert.Equal(t, uint64(5), msgs[1].ID)
		assert.Equal(t, room.MessageChat, msgs[2].Kind)
		assert.Equal(t, uint64(6), msgs[2].ID)
		assert.Equal(t, "hello world", msgs[2].Segments[0].Text)
		assert.Greater(t, msgs[2].Time, msgs[1].Time)
	})

	t.Run("edit at 19:59 is applied", func(t *testing.T) {
		clock := newFakeClock()
		r, _, b, _ := newTestRoom(t, clock)

		r.HandleMessages("c1", say("hello"), 5, 0, 0)
		clock.Advance(19*time.Minute + 59*time.Second)
		r.HandleMessages("c1", say("late edit"), 6, 5, 0)
		assert.Len(t, b.messages(), 3)
	})

	t.Run("edit past the window is dropped silently", func(t *testing.T) {
		clock := newFakeClock()
		r, _, b, _ := newTestRoom(t, clock)

		r.HandleMessages("c1", say("hello"), 5, 0, 0)
		clock.Advance(room.MessageEditWindow + time.Second)
		r.HandleMessages("c1", say("too late"), 6, 5, 0)
		assert.Len(t, b.messages(), 1)
	})

	t.Run("edit of an unknown id is dropped silently", func(t *testing.T) {
		clock := newFakeClock()
		r, _, b, _ := newTestRoom(t, clock)

		r.HandleMessages("c1", say("hello"), 5, 0, 0)
		r.HandleMessages("c1", say("phantom"), 6, 99, 0)
		assert.Len(t, b.messages(), 1)
	})

	t.Run("edit with no history is dropped silently", func(t *testing.T) {
		clock := newFakeClock()
		r, _, b, _ := newTestRoom(t, clock)

		r.HandleMessages("c1", say("phantom"), 6, 5, 0)
		assert.Empty(t, b.messages())
	})

	t.Run("reused message id is dropped", func(t *testing.T) {
		clock := newFakeClock()
		r, _, b, _ := newTestRoom(t, clock)

		r.HandleMessages("c1", say("one"), 5, 0, 0)
		r.HandleMessages("c1", say("two"), 5, 0, 0)
		assert.Len(t, b.messages(), 1)
	})
}

func TestRoom_DirectedFanout(t *testing.T) {
	clock := newFakeClock()
	r, a, b, c := newTestRoom(t, clock)

	msg := []room.ClientMessage{{
		Kind:     room.MessageChat,
		To:       "c2",
		Segments: []room.Segment{{Style: "normal", Text: "psst"}},
	}}
	r.HandleMessages("c1", msg, 1, 0, 0)

	require.Len(t, a.messages(), 1)
	require.Len(t, b.messages(), 1)
	assert.Empty(t, c.messages(), "third parties must not see directed chat")
	assert.Equal(t, state.CharacterID("c2"), b.messages()[0].To.ID)
}

func TestRoom_MissingDirectTargetDropsMessage(t *testing.T) {
	clock := newFakeClock()
	r, a, _, _ := newTestRoom(t, clock)

	msg := []room.ClientMessage{{
		Kind:     room.MessageChat,
		To:       "c9",
		Segments: []room.Segment{{Style: "normal", Text: "psst"}},
	}}
	r.HandleMessages("c1", msg, 1, 0, 0)
	assert.Empty(t, a.messages())
}

func TestRoom_MuffleAppliedOncePreEnqueue(t *testing.T) {
	clock := newFakeClock()
	r, a, b, c := newTestRoom(t, clock)

	text := "hello there everyone"
	batch := []room.ClientMessage{
		{Kind: room.MessageChat, Segments: []room.Segment{{Style: "normal", Text: text}}},
		{Kind: room.MessageOOC, Segments: []room.Segment{{Style: "normal", Text: text}}},
	}
	r.HandleMessages("c1", batch, 1, 0, 8)

	want := room.MuffleSpokenText(text, 8)
	require.NotEqual(t, text, want)
	for _, conn := range []*fakeConn{a, b, c} {
		msgs := conn.messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, want, msgs[0].Segments[0].Text, "every recipient sees the same muffled text")
		assert.Equal(t, text, msgs[1].Segments[0].Text, "ooc is not muffled")
	}
}

func TestRoom_StatusClearsPreviousTarget(t *testing.T) {
	clock := newFakeClock()
	r, _, b, c := newTestRoom(t, clock)

	r.UpdateStatus("c1", room.StatusTyping, "c2")
	require.Equal(t, 1, b.countType("chatRoomStatus"))
	require.Equal(t, 0, c.countType("chatRoomStatus"))

	// Retargeting announces "none" at the old target first.
	r.UpdateStatus("c1", room.StatusTyping, "c3")
	assert.Equal(t, 2, b.countType("chatRoomStatus"))
	assert.Equal(t, 1, c.countType("chatRoomStatus"))

	// Going idle on the same target sends a single update.
	r.UpdateStatus("c1", room.StatusNone, "c3")
	assert.Equal(t, 2, c.countType("chatRoomStatus"))
}

func TestRoom_ActionParticipantCache(t *testing.T) {
	clock := newFakeClock()
	r, _, b, _ := newTestRoom(t, clock)

	r.CharacterLeave("c1")

	// The departed character is still renderable within retention.
	r.HandleActionMessages("c1", "c1", []item.ChatDescriptor{{ID: item.DescriptorItemAdd, Asset: "a/clothing/shirt"}})
	msgs := b.messages()
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Data.Character)
	assert.Equal(t, "Ash", msgs[0].Data.Character.Name)

	// Past retention another departure purges the entry.
	clock.Advance(room.ActionCacheRetention + time.Second)
	r.CharacterLeave("c3")
	r.HandleActionMessages("c1", "c1", []item.ChatDescriptor{{ID: item.DescriptorItemAdd, Asset: "a/clothing/shirt"}})
	msgs = b.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "[UNKNOWN]", msgs[1].Data.Character.Name)
}

func TestRoom_ActionMessageTarget(t *testing.T) {
	clock := newFakeClock()
	r, a, _, _ := newTestRoom(t, clock)

	r.HandleActionMessages("c1", "c2", []item.ChatDescriptor{{
		ID:            item.DescriptorItemReplace,
		Asset:         "a/body/head",
		PreviousAsset: "a/body/head",
	}})
	msgs := a.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, room.MessageAction, msgs[0].Kind)
	assert.Equal(t, item.DescriptorItemReplace, msgs[0].Action)
	require.NotNil(t, msgs[0].Data.TargetCharacter)
	assert.Equal(t, state.CharacterID("c2"), msgs[0].Data.TargetCharacter.ID)
}

func TestRoom_DirectoryMessagesReplaySafe(t *testing.T) {
	clock := newFakeClock()
	r, a, _, _ := newTestRoom(t, clock)

	batch := []room.DirectoryMessage{
		{DirectoryTime: 100, Action: "characterEntered", Character: "c2"},
		{DirectoryTime: 101, Action: "characterLeft", Character: "c2"},
	}
	r.ProcessDirectoryMessages(batch)
	require.Len(t, a.messages(), 2)

	// Replaying the same batch admits nothing.
	r.ProcessDirectoryMessages(batch)
	assert.Len(t, a.messages(), 2)

	// Only strictly newer messages from a mixed batch are admitted.
	r.ProcessDirectoryMessages([]room.DirectoryMessage{
		{DirectoryTime: 101, Action: "characterLeft", Character: "c2"},
		{DirectoryTime: 102, Action: "characterEntered", Character: "c3"},
	})
	assert.Len(t, a.messages(), 3)
}

func TestRoom_ChatRateLimit(t *testing.T) {
	clock := newFakeClock()
	r := room.NewRoom("r/limited", nil,
		room.WithClock(clock.Now),
		room.WithChatLimiter(room.NewChatLimiter(2, 0.5)))
	t.Cleanup(r.Close)

	a, b := &fakeConn{}, &fakeConn{}
	r.CharacterEnter(info("c1", "Ash"), a, room.ClientData{})
	r.CharacterEnter(info("c2", "Bea"), b, room.ClientData{})

	r.HandleMessages("c1", say("one"), 1, 0, 0)
	r.HandleMessages("c1", say("two"), 2, 0, 0)
	r.HandleMessages("c1", say("three"), 3, 0, 0)

	assert.Len(t, b.messages(), 2)
	assert.Equal(t, 1, a.countType("chatRoomError"), "only the sender learns about the limit")
	assert.Equal(t, 0, b.countType("chatRoomError"))
}

func TestRoom_EnterLeaveBroadcasts(t *testing.T) {
	clock := newFakeClock()
	r := room.NewRoom("r/updates", nil, room.WithClock(clock.Now))
	t.Cleanup(r.Close)

	a, b := &fakeConn{}, &fakeConn{}
	r.CharacterEnter(info("c1", "Ash"), a, room.ClientData{})
	require.Equal(t, 2, a.countType("chatRoomUpdate"), "room view plus own join")

	r.CharacterEnter(info("c2", "Bea"), b, room.ClientData{})
	assert.Equal(t, 3, a.countType("chatRoomUpdate"))

	r.CharacterLeave("c2")
	// The leaver gets a room-cleared update, the rest the leave notice.
	assert.Equal(t, 3, b.countType("chatRoomUpdate"))
	assert.Equal(t, 4, a.countType("chatRoomUpdate"))
}

func TestRoom_CloseStopsSweep(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := room.NewRoom("r/leak", nil)
	r.CharacterEnter(info("c1", "Ash"), &fakeConn{}, room.ClientData{})
	r.Close()
}
