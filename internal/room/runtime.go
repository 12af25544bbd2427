// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package room

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/vestiary/vestiary/internal/action"
	"github.com/vestiary/vestiary/internal/restriction"
	"github.com/vestiary/vestiary/internal/state"
)

// ErrRuntimeClosed is returned for requests against a stopped runtime.
var ErrRuntimeClosed = oops.In("room").Errorf("room runtime closed")

// Runtime serializes all state-changing work of one room through a
// single goroutine. Commits are one atomic pointer swap, so readers
// always observe a fully valid snapshot and proposals never interleave.
type Runtime struct {
	room   *Room
	engine *action.Engine
	roles  *restriction.Roles
	logger *slog.Logger

	current  atomic.Pointer[state.GlobalState]
	requests chan func()
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewRuntime starts the room's writer goroutine over the initial
// snapshot. Call Close to stop it.
func NewRuntime(r *Room, engine *action.Engine, roles *restriction.Roles, initial *state.GlobalState, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{
		room:     r,
		engine:   engine,
		roles:    roles,
		logger:   logger.With("room", r.ID()),
		requests: make(chan func(), 64),
		done:     make(chan struct{}),
	}
	rt.current.Store(initial)
	rt.wg.Add(1)
	go rt.loop()
	return rt
}

// Room returns the chat room the runtime drives.
func (rt *Runtime) Room() *Room { return rt.room }

// State returns the current committed snapshot. Safe from any
// goroutine; the snapshot itself is immutable.
func (rt *Runtime) State() *state.GlobalState {
	return rt.current.Load()
}

// Close stops the writer goroutine. The in-flight request finishes;
// queued requests fail with ErrRuntimeClosed.
func (rt *Runtime) Close() {
	close(rt.done)
	rt.wg.Wait()
}

func (rt *Runtime) loop() {
	defer rt.wg.Done()
	for {
		select {
		case <-rt.done:
			return
		case fn := <-rt.requests:
			fn()
		}
	}
}

// submit runs fn on the writer goroutine and waits for it.
func (rt *Runtime) submit(ctx context.Context, fn func()) error {
	complete := make(chan struct{})
	wrapped := func() {
		defer close(complete)
		fn()
	}
	select {
	case rt.requests <- wrapped:
	case <-rt.done:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return oops.In("room").Wrapf(ctx.Err(), "submit request")
	}
	select {
	case <-complete:
		return nil
	case <-rt.done:
		return ErrRuntimeClosed
	}
}

// ApplyAction runs one appearance action to completion. On commit the
// snapshot is swapped and chat descriptors fan out; rejections reach
// only the caller.
func (rt *Runtime) ApplyAction(ctx context.Context, actor state.CharacterID, act action.Action, opts action.Options) (action.Result, error) {
	var res action.Result
	err := rt.submit(ctx, func() {
		res = rt.engine.Apply(ctx, rt.current.Load(), actor, act, opts)
		if !res.Applied || opts.DryRun {
			return
		}
		rt.current.Store(res.State)
		if len(res.Messages) > 0 {
			rt.room.HandleActionMessages(actor, actionTarget(act, actor), res.Messages)
		}
	})
	if err != nil {
		return action.Result{}, err
	}
	return res, nil
}

// actionTarget names the character an action is done to, for action
// message rendering. Room-inventory actions read as self-directed.
func actionTarget(act action.Action, actor state.CharacterID) state.CharacterID {
	var sel state.TargetSelector
	switch a := act.(type) {
	case action.Create:
		sel = a.Target
	case action.Delete:
		sel = a.Target
	case action.Move:
		sel = a.Target
	case action.Color:
		sel = a.Target
	case action.ModuleAction:
		sel = a.Target
	default:
		return actor
	}
	if sel.Type == state.TargetCharacter {
		return sel.Character
	}
	return actor
}

// Chat handles one chat submission, deriving the sender's muffle
// strength from the committed snapshot before enqueueing.
func (rt *Runtime) Chat(ctx context.Context, from state.CharacterID, messages []ClientMessage, id, insertID uint64) error {
	return rt.submit(ctx, func() {
		strength := 0
		if mgr := restriction.ManagerFor(rt.current.Load(), from, rt.roles); mgr != nil {
			strength = mgr.MouthMuffleStrength()
		}
		rt.room.HandleMessages(from, messages, id, insertID, strength)
	})
}

// Enter adds a character to the room and the snapshot, then sends the
// newcomer the full room view.
func (rt *Runtime) Enter(ctx context.Context, info CharacterInfo, conn Connection, cs *state.CharacterState) error {
	return rt.submit(ctx, func() {
		next := rt.current.Load().WithCharacter(cs)
		rt.current.Store(next)
		rt.room.CharacterEnter(info, conn, ClientData{
			Characters: append(rt.room.MemberInfos(), info),
			State:      next.Export(),
		})
	})
}

// Leave removes a character from the room and the snapshot.
func (rt *Runtime) Leave(ctx context.Context, id state.CharacterID) error {
	return rt.submit(ctx, func() {
		rt.current.Store(rt.current.Load().WithoutCharacter(id))
		rt.room.CharacterLeave(id)
	})
}

// UpdateStatus forwards a typing-status change.
func (rt *Runtime) UpdateStatus(ctx context.Context, from state.CharacterID, status Status, target state.CharacterID) error {
	return rt.submit(ctx, func() {
		rt.room.UpdateStatus(from, status, target)
	})
}

// ProcessDirectoryMessages forwards a directory batch.
func (rt *Runtime) ProcessDirectoryMessages(ctx context.Context, messages []DirectoryMessage) error {
	return rt.submit(ctx, func() {
		rt.room.ProcessDirectoryMessages(messages)
	})
}
