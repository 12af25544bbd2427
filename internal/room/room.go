// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package room

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vestiary/vestiary/internal/item"
	"github.com/vestiary/vestiary/internal/state"
)

const (
	// MessageEditWindow is how long a sent chat message stays editable.
	MessageEditWindow = 20 * time.Minute

	// historySweepInterval is how often stale edit history is pruned.
	historySweepInterval = MessageEditWindow / 2

	// ActionCacheRetention is how long a departed character's identity
	// stays renderable in action messages.
	ActionCacheRetention = 60 * time.Second
)

// member is one present character with its live connection.
type member struct {
	info CharacterInfo
	conn Connection
}

// statusEntry is the last announced chat status of a character.
type statusEntry struct {
	status Status
	target state.CharacterID
}

// actionCacheEntry keeps a character's identity renderable after it
// leaves. left is zero while the character is present.
type actionCacheEntry struct {
	info CharacterInfo
	left time.Time
}

// Room is the live aggregate of present characters and their chat
// stream. All message stamping goes through one strictly increasing
// room-local clock. Callers serialize state-changing calls per room;
// the internal lock only shields the cleanup sweep.
type Room struct {
	id      string
	logger  *slog.Logger
	limiter *ChatLimiter
	now     func() time.Time

	mu          sync.Mutex
	members     map[state.CharacterID]*member
	history     map[state.CharacterID]map[uint64]time.Time
	status      map[state.CharacterID]statusEntry
	actionCache map[state.CharacterID]*actionCacheEntry

	lastMessageTime   int64
	lastDirectoryTime int64

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Room during construction.
type Option func(*Room)

// WithClock overrides the room's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// WithChatLimiter replaces the default chat flood limiter.
func WithChatLimiter(l *ChatLimiter) Option {
	return func(r *Room) { r.limiter = l }
}

// NewRoom creates a room and starts its cleanup sweep. Call Close to
// stop the sweep.
func NewRoom(id string, logger *slog.Logger, opts ...Option) *Room {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Room{
		id:          id,
		logger:      logger.With("room", id),
		limiter:     NewChatLimiter(0, 0),
		now:         time.Now,
		members:     make(map[state.CharacterID]*member),
		history:     make(map[state.CharacterID]map[uint64]time.Time),
		status:      make(map[state.CharacterID]statusEntry),
		actionCache: make(map[state.CharacterID]*actionCacheEntry),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.wg.Add(1)
	go r.sweepLoop()
	r.logger.Debug("room created")
	return r
}

// ID returns the room id.
func (r *Room) ID() string { return r.id }

// Close stops the cleanup sweep. The room must not be used afterwards.
func (r *Room) Close() {
	close(r.done)
	r.wg.Wait()
	r.logger.Debug("room destroyed")
}

func (r *Room) sweepLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(historySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep prunes edit history past the edit window and idle chat
// buckets. Runs on the sweep ticker; exported for tests.
func (r *Room) Sweep() {
	r.mu.Lock()
	now := r.now()
	for id, history := range r.history {
		for msgID, sent := range history {
			if sent.Add(MessageEditWindow).Before(now) {
				delete(history, msgID)
			}
		}
		if len(history) == 0 {
			delete(r.history, id)
		}
	}
	r.mu.Unlock()
	r.limiter.Cleanup(chatBucketMaxAge)
}

// nextMessageTime returns a strictly increasing room-local stamp, even
// when the wall clock stalls or repeats within one tick.
func (r *Room) nextMessageTime() int64 {
	t := r.now().UnixMilli()
	if t <= r.lastMessageTime {
		t = r.lastMessageTime + 1
	}
	r.lastMessageTime = t
	return t
}

// MemberIDs returns the present character ids.
func (r *Room) MemberIDs() []state.CharacterID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]state.CharacterID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}

// MemberInfos returns the public identities of present characters.
func (r *Room) MemberInfos() []CharacterInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CharacterInfo, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.info)
	}
	return out
}

// CharacterEnter adds a character, sends it the full room view, and
// announces the join to everyone present.
func (r *Room) CharacterEnter(info CharacterInfo, conn Connection, data ClientData) {
	r.mu.Lock()
	r.members[info.ID] = &member{info: info, conn: conn}
	r.actionCache[info.ID] = &actionCacheEntry{info: info}
	r.mu.Unlock()

	conn.SendMessage("chatRoomUpdate", RoomUpdate{Room: &data})
	r.broadcastUpdate(RoomUpdate{Join: &info})
	r.logger.Debug("character entered", "character", string(info.ID))
}

// CharacterLeave removes a character, drops its edit history and
// status, marks its action cache entry, and announces the leave.
func (r *Room) CharacterLeave(id state.CharacterID) {
	r.mu.Lock()
	m := r.members[id]
	delete(r.members, id)
	delete(r.history, id)
	delete(r.status, id)
	if cached, ok := r.actionCache[id]; ok {
		cached.left = r.now()
	}
	now := r.now()
	for key, cached := range r.actionCache {
		if !cached.left.IsZero() && cached.left.Add(ActionCacheRetention).Before(now) {
			delete(r.actionCache, key)
		}
	}
	r.mu.Unlock()

	if m != nil {
		m.conn.SendMessage("chatRoomUpdate", RoomUpdate{})
	}
	r.broadcastUpdate(RoomUpdate{Leave: id})
	r.logger.Debug("character left", "character", string(id))
}

func (r *Room) getMember(id state.CharacterID) *member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[id]
}

func (r *Room) broadcastUpdate(update RoomUpdate) {
	r.mu.Lock()
	conns := make([]Connection, 0, len(r.members))
	for _, m := range r.members {
		conns = append(conns, m.conn)
	}
	r.mu.Unlock()
	for _, conn := range conns {
		conn.SendMessage("chatRoomUpdate", update)
	}
}

// UpdateStatus records a character's typing status. When the target
// changes, status is first cleared at the previous target so stale
// indicators never linger.
func (r *Room) UpdateStatus(from state.CharacterID, status Status, target state.CharacterID) {
	r.mu.Lock()
	last, ok := r.status[from]
	if !ok {
		last = statusEntry{status: StatusNone}
	}
	r.status[from] = statusEntry{status: status, target: target}
	r.mu.Unlock()

	if target != last.target && last.status != StatusNone {
		r.sendStatus(last.target, StatusUpdate{ID: from, Status: StatusNone})
		if status == StatusNone {
			return
		}
	}
	r.sendStatus(target, StatusUpdate{ID: from, Status: status})
}

// sendStatus delivers a status update to one character, or to the
// whole room for an empty target.
func (r *Room) sendStatus(target state.CharacterID, update StatusUpdate) {
	if target == "" {
		r.mu.Lock()
		conns := make([]Connection, 0, len(r.members))
		for _, m := range r.members {
			conns = append(conns, m.conn)
		}
		r.mu.Unlock()
		for _, conn := range conns {
			conn.SendMessage("chatRoomStatus", update)
		}
		return
	}
	if m := r.getMember(target); m != nil {
		m.conn.SendMessage("chatRoomStatus", update)
	}
}

// RateLimited is sent to the sender alone when chat is flooded.
type RateLimited struct {
	CooldownMs int64 `json:"cooldownMs"`
}

// HandleMessages processes one chat submission: flood limiting, speech
// muffling, edit handling, stamping and fan-out. id is the sender's
// message id; insertID, when non-zero, asks to replace a prior
// message. Stale or unknown edits are dropped silently by policy.
func (r *Room) HandleMessages(from state.CharacterID, messages []ClientMessage, id, insertID uint64, muffleStrength int) {
	sender := r.getMember(from)
	if sender == nil {
		return
	}
	if ok, cooldown := r.limiter.Allow(from); !ok {
		sender.conn.SendMessage("chatRoomError", RateLimited{CooldownMs: cooldown})
		return
	}

	// Muffling applies once, pre-enqueue. Every recipient sees the
	// same text.
	if muffleStrength > 0 {
		for mi, msg := range messages {
			if msg.Kind != MessageChat {
				continue
			}
			segs := make([]Segment, len(msg.Segments))
			for si, seg := range msg.Segments {
				seg.Text = MuffleSpokenText(seg.Text, muffleStrength)
				segs[si] = seg
			}
			messages[mi].Segments = segs
		}
	}

	var queue []Message
	now := r.now()

	r.mu.Lock()
	history, ok := r.history[from]
	if !ok {
		history = make(map[uint64]time.Time)
		r.history[from] = history
		if insertID != 0 {
			r.mu.Unlock()
			return
		}
	} else {
		if _, exists := history[id]; exists {
			r.mu.Unlock()
			return
		}
		if insertID != 0 {
			sent, exists := history[insertID]
			if !exists {
				r.mu.Unlock()
				return
			}
			delete(history, insertID)
			if sent.Add(MessageEditWindow).Before(now) {
				r.mu.Unlock()
				return
			}
			queue = append(queue, Message{
				Kind: MessageDeleted,
				ID:   insertID,
				From: &sender.info,
				Time: r.nextMessageTime(),
			})
		}
	}
	history[id] = now

	for _, msg := range messages {
		out := Message{
			Kind:     msg.Kind,
			ID:       id,
			InsertID: insertID,
			From:     &sender.info,
			Segments: msg.Segments,
		}
		if msg.directed() {
			target := r.members[msg.To]
			if target == nil {
				continue
			}
			out.To = &target.info
		}
		out.Time = r.nextMessageTime()
		queue = append(queue, out)
	}
	r.mu.Unlock()

	r.queueMessages(queue)
}

// HandleActionMessages renders the engine's chat descriptors into
// action messages. target differs from source when one character acts
// on another.
func (r *Room) HandleActionMessages(source, target state.CharacterID, descriptors []item.ChatDescriptor) {
	var queue []Message
	r.mu.Lock()
	for _, d := range descriptors {
		data := &ActionData{
			Character:     r.actionInfo(source),
			Asset:         d.Asset,
			PreviousAsset: d.PreviousAsset,
		}
		if target != source {
			data.TargetCharacter = r.actionInfo(target)
		}
		queue = append(queue, Message{
			Kind:   MessageAction,
			Action: d.ID,
			Data:   data,
			Time:   r.nextMessageTime(),
		})
	}
	r.mu.Unlock()

	r.queueMessages(queue)
}

// ProcessDirectoryMessages admits externally authored action messages.
// Only messages newer than the last applied directory time are taken,
// so replayed batches are harmless; the marker then advances to the
// batch maximum.
func (r *Room) ProcessDirectoryMessages(messages []DirectoryMessage) {
	var queue []Message
	r.mu.Lock()
	for _, m := range messages {
		if m.DirectoryTime <= r.lastDirectoryTime {
			continue
		}
		out := Message{
			Kind:   MessageAction,
			Action: m.Action,
			Time:   r.nextMessageTime(),
		}
		if m.Character != "" {
			out.Data = &ActionData{
				Character:       r.actionInfo(m.Character),
				TargetCharacter: r.actionInfo(m.Target),
			}
		}
		queue = append(queue, out)
	}
	for _, m := range messages {
		if m.DirectoryTime > r.lastDirectoryTime {
			r.lastDirectoryTime = m.DirectoryTime
		}
	}
	r.mu.Unlock()

	r.queueMessages(queue)
}

// actionInfo resolves a participant identity for an action message,
// falling back to the cache for departed characters. Callers hold the
// lock.
func (r *Room) actionInfo(id state.CharacterID) *CharacterInfo {
	if id == "" {
		return nil
	}
	if m, ok := r.members[id]; ok {
		r.actionCache[id] = &actionCacheEntry{info: m.info}
		return &m.info
	}
	if cached, ok := r.actionCache[id]; ok {
		return &cached.info
	}
	return &CharacterInfo{ID: id, Name: "[UNKNOWN]", Pronoun: "they", LabelColor: "#ffffff"}
}

// queueMessages fans the batch out to every present character, keeping
// only the messages visible to each recipient.
func (r *Room) queueMessages(messages []Message) {
	if len(messages) == 0 {
		return
	}
	r.mu.Lock()
	recipients := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		recipients = append(recipients, m)
	}
	r.mu.Unlock()

	for _, recipient := range recipients {
		visible := make([]Message, 0, len(messages))
		for _, msg := range messages {
			if visibleTo(msg, recipient.info.ID) {
				visible = append(visible, msg)
			}
		}
		if len(visible) > 0 {
			recipient.conn.SendMessage("chatRoomMessage", visible)
		}
	}
}
