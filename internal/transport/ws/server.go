// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/vestiary/vestiary/internal/action"
	"github.com/vestiary/vestiary/internal/observability"
	"github.com/vestiary/vestiary/internal/room"
	"github.com/vestiary/vestiary/internal/state"
)

// Frame types of the client protocol.
const (
	TypeHello    = "hello"
	TypeWelcome  = "welcome"
	TypeAction   = "appearanceAction"
	TypeChat     = "chatMessage"
	TypeStatus   = "chatStatus"
	TypeResponse = "response"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 120 * time.Second
)

// Hello is the first frame a client must send.
type Hello struct {
	Character  state.CharacterID `json:"character"`
	Name       string            `json:"name"`
	Pronoun    string            `json:"pronoun"`
	LabelColor string            `json:"labelColor"`
}

// ActionRequest asks to run one appearance action.
type ActionRequest struct {
	Action json.RawMessage `json:"action"`
	DryRun bool            `json:"dryRun,omitempty"`
}

// ActionResponse reports the outcome to the requester alone.
type ActionResponse struct {
	Applied bool           `json:"applied"`
	Problem action.Problem `json:"problem,omitempty"`
}

// ChatRequest submits chat messages with the sender's message id and
// an optional id of a prior message to replace.
type ChatRequest struct {
	Messages []room.ClientMessage `json:"messages"`
	ID       uint64               `json:"id"`
	InsertID uint64               `json:"insertId,omitempty"`
}

// StatusRequest updates the typing indicator.
type StatusRequest struct {
	Status room.Status       `json:"status"`
	Target state.CharacterID `json:"target,omitempty"`
}

// CharacterLoader resolves a character's stored appearance at join.
type CharacterLoader interface {
	LoadCharacter(ctx context.Context, id state.CharacterID) (*state.CharacterState, error)
}

// Server upgrades websocket clients and bridges them to one room
// runtime.
type Server struct {
	runtime  *room.Runtime
	chars    CharacterLoader
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer builds a websocket server over the given room runtime.
func NewServer(rt *room.Runtime, chars CharacterLoader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runtime: rt,
		chars:   chars,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving the client protocol.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		wsConn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer wsConn.Close()
		s.serve(r.Context(), wsConn)
	}
}

func (s *Server) serve(ctx context.Context, wsConn *websocket.Conn) {
	hello, ok := s.handshake(wsConn)
	if !ok {
		observability.RecordConnection("rejected")
		return
	}
	logger := s.logger.With(
		"session_id", ulid.Make().String(),
		"character", string(hello.Character),
	)

	cs, err := s.chars.LoadCharacter(ctx, hello.Character)
	if err != nil {
		logger.Error("load character", "error", err)
		closePolicy(wsConn, "character unavailable")
		observability.RecordConnection("failed")
		return
	}
	observability.RecordConnection("accepted")

	conn := newConn(0, logger)
	defer conn.close()

	// Writer goroutine drains the outbound queue.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-conn.closed:
				return
			case frame := <-conn.out:
				_ = wsConn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := wsConn.WriteMessage(websocket.TextMessage, frame); err != nil {
					conn.close()
					return
				}
			}
		}
	}()

	info := room.CharacterInfo{
		ID:         hello.Character,
		Name:       hello.Name,
		Pronoun:    hello.Pronoun,
		LabelColor: hello.LabelColor,
	}
	if err := s.runtime.Enter(ctx, info, conn, cs); err != nil {
		logger.Error("enter room", "error", err)
		return
	}
	logger.Debug("client joined")

	s.readLoop(ctx, wsConn, conn, hello.Character, logger)

	if err := s.runtime.Leave(context.WithoutCancel(ctx), hello.Character); err != nil {
		logger.Error("leave room", "error", err)
	}
	conn.close()
	<-writerDone
	logger.Debug("client disconnected")
}

func (s *Server) readLoop(ctx context.Context, wsConn *websocket.Conn, conn *Conn, id state.CharacterID, logger *slog.Logger) {
	for {
		_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))
		_, frame, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			logger.Debug("malformed frame", "error", err)
			continue
		}
		s.handleFrame(ctx, env, conn, id, logger)
	}
}

func (s *Server) handleFrame(ctx context.Context, env Envelope, conn *Conn, id state.CharacterID, logger *slog.Logger) {
	switch env.Type {
	case TypeResponse:
		conn.resolve(env.ID, env.Payload)

	case TypeAction:
		var req ActionRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			logger.Debug("malformed action request", "error", err)
			return
		}
		act, err := action.Decode(req.Action)
		if err != nil {
			logger.Debug("malformed action", "error", err)
			conn.SendMessage("appearanceActionResult", ActionResponse{Problem: action.ProblemInvalid})
			return
		}
		res, err := s.runtime.ApplyAction(ctx, id, act, action.Options{DryRun: req.DryRun})
		if err != nil {
			logger.Error("apply action", "error", err)
			return
		}
		conn.SendMessage("appearanceActionResult", ActionResponse{
			Applied: res.Applied,
			Problem: res.Problem,
		})

	case TypeChat:
		var req ChatRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			logger.Debug("malformed chat request", "error", err)
			return
		}
		if err := s.runtime.Chat(ctx, id, req.Messages, req.ID, req.InsertID); err != nil {
			logger.Error("chat", "error", err)
		}

	case TypeStatus:
		var req StatusRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			logger.Debug("malformed status request", "error", err)
			return
		}
		if err := s.runtime.UpdateStatus(ctx, id, req.Status, req.Target); err != nil {
			logger.Error("update status", "error", err)
		}

	default:
		logger.Debug("unknown frame type", "type", env.Type)
	}
}

// handshake reads the hello frame and answers with a welcome.
func (s *Server) handshake(wsConn *websocket.Conn) (Hello, bool) {
	_ = wsConn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, frame, err := wsConn.ReadMessage()
	if err != nil {
		return Hello{}, false
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type != TypeHello {
		closePolicy(wsConn, "expected hello")
		return Hello{}, false
	}
	var hello Hello
	if err := json.Unmarshal(env.Payload, &hello); err != nil {
		closePolicy(wsConn, "malformed hello")
		return Hello{}, false
	}
	if err := hello.Character.Validate(); err != nil {
		closePolicy(wsConn, "invalid character id")
		return Hello{}, false
	}
	if hello.Name == "" {
		hello.Name = string(hello.Character)
	}

	welcome, err := json.Marshal(Envelope{Type: TypeWelcome})
	if err != nil {
		return Hello{}, false
	}
	_ = wsConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := wsConn.WriteMessage(websocket.TextMessage, welcome); err != nil {
		return Hello{}, false
	}
	return hello, true
}

func closePolicy(wsConn *websocket.Conn, reason string) {
	_ = wsConn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}
