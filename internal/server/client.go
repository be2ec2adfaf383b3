package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quiz-live/internal/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// client is one websocket connection attached to a room. Reads happen on the
// handler goroutine, writes on writePump.
type client struct {
	id     string
	code   string
	conn   *websocket.Conn
	engine *game.Engine
	logger *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// set by a successful join; only touched from readPump
	playerID  string
	hostToken string
}

func newClient(id, code string, conn *websocket.Conn, engine *game.Engine, logger *slog.Logger) *client {
	return &client{
		id:     id,
		code:   code,
		conn:   conn,
		engine: engine,
		logger: logger.With("code", code, "connection_id", id),
		send:   make(chan []byte, sendBufferSize),
	}
}

// enqueue never blocks. A client that cannot keep up loses the frame.
func (c *client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("ws send buffer full, dropping frame")
	}
}

// close stops accepting frames. writePump drains what is queued, then
// closes the connection.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *client) sendEvent(event game.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("encode event failed", "type", event.Type, "error", err)
		return
	}
	c.enqueue(data)
}

func (c *client) sendError(err error) {
	code := errorCode(err)
	message := err.Error()
	if errors.Is(err, errInvalidMessage) {
		code = "invalid_message"
	} else if code == "internal_error" {
		c.logger.Error("ws request failed", "error", err)
		message = "internal error"
	}
	c.sendEvent(game.Event{Type: game.EventError, Payload: wsErrorPayload{Code: code, Message: message}})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("ws write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("ws read failed", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.sendError(errInvalidMessage)
			continue
		}
		if err := c.handleMessage(ctx, msg); err != nil {
			c.sendError(err)
		}
	}
}

func (c *client) auth() game.HostAuth {
	return game.HostAuth{PlayerID: c.playerID, Token: c.hostToken}
}

func (c *client) handleMessage(ctx context.Context, msg inboundMessage) error {
	switch msg.Type {
	case msgPing:
		c.sendEvent(game.Event{Type: eventPong})
		return nil
	case msgJoin:
		return c.handleJoin(ctx, msg.Payload)
	}

	if c.playerID == "" {
		return game.ErrPlayerNotFound
	}
	switch msg.Type {
	case msgLeave:
		if err := c.engine.Leave(ctx, c.code, c.playerID); err != nil {
			return err
		}
		c.playerID, c.hostToken = "", ""
		return nil
	case msgReady:
		var payload readyPayload
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return err
		}
		return c.engine.SetReady(ctx, c.code, c.playerID, payload.Ready)
	case msgStart:
		return c.engine.Start(ctx, c.code, c.auth())
	case msgBeginQuestion:
		return c.engine.BeginQuestion(ctx, c.code, c.auth())
	case msgTick:
		var payload tickPayload
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return err
		}
		return c.engine.Tick(ctx, c.code, c.auth(), payload.TimeRemaining)
	case msgReveal:
		return c.engine.Reveal(ctx, c.code, c.auth())
	case msgNext:
		return c.engine.Next(ctx, c.code, c.auth())
	case msgEnd:
		return c.engine.End(ctx, c.code, c.auth())
	case msgAnswer:
		var payload answerPayload
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return err
		}
		_, err := c.engine.SubmitAnswer(ctx, game.AnswerRequest{
			Code:          c.code,
			PlayerID:      c.playerID,
			QuestionIndex: payload.QuestionIndex,
			AnswerID:      payload.AnswerID,
			TimeRemaining: payload.TimeRemaining,
		})
		return err
	default:
		return errInvalidMessage
	}
}

func (c *client) handleJoin(ctx context.Context, raw json.RawMessage) error {
	var payload joinPayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}
	name, err := validateName(payload.Name)
	if err != nil {
		return errors.Join(errInvalidMessage, err)
	}
	result, err := c.engine.Join(ctx, game.JoinRequest{
		Code:         c.code,
		PlayerID:     payload.PlayerID,
		ConnectionID: c.id,
		Name:         name,
		Avatar:       payload.Avatar,
		ClaimHost:    payload.ClaimHost,
		AccountID:    payload.AccountID,
		HostToken:    payload.HostToken,
	})
	if err != nil {
		return err
	}
	c.playerID = result.Player.ID
	c.hostToken = result.HostToken
	joined := joinedPayload{
		Player:    result.Player,
		HostToken: result.HostToken,
		Rejoined:  result.Rejoined,
		Snapshot:  result.Snapshot,
	}
	// a player landing in a running session resumes instead of joining
	if result.Resuming {
		c.sendEvent(game.Event{Type: game.EventResuming, Payload: resumingPayload{
			joinedPayload: joined,
			ResumeIndex:   result.ResumeIndex,
		}})
		return nil
	}
	c.sendEvent(game.Event{Type: game.EventJoined, Payload: joined})
	return nil
}
