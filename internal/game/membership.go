package game

import (
	"context"
	"crypto/subtle"
	"strings"
)

type JoinRequest struct {
	Code         string
	PlayerID     string
	ConnectionID string
	Name         string
	Avatar       string
	ClaimHost    bool
	AccountID    string
	HostToken    string
}

type JoinResult struct {
	Player      PlayerView
	Rejoined    bool
	Resuming    bool
	ResumeIndex int
	// HostToken is set only for the caller that claimed host or proved it.
	HostToken string
	Snapshot  Snapshot
}

// Visit registers a connection that has not joined as a player yet.
func (e *Engine) Visit(ctx context.Context, code, viewerID string) (Snapshot, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return Snapshot{}, err
	}
	room, err := e.update(ctx, code, true, func(room *Room, m *mutation) error {
		if room.playerByConnection(viewerID) == nil {
			room.Viewers[viewerID] = struct{}{}
		}
		m.broadcast(EventRoomUpdate, roomUpdateEvent(room).Payload)
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot(room), nil
}

// Join admits a player or refreshes an existing record for the same
// durable id. It is the only place player records are created.
func (e *Engine) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	code, err := NormalizeCode(req.Code)
	if err != nil {
		return JoinResult{}, err
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		return JoinResult{}, ErrPlayerNotFound
	}
	var result JoinResult
	room, err := e.update(ctx, code, true, func(room *Room, m *mutation) error {
		result = JoinResult{}
		if req.ClaimHost && room.State == StateFinished && room.Finalized {
			e.rehost(room, m)
		}
		// the host seat is bound to its token, whatever the connection
		if room.HostID != "" && req.PlayerID == room.HostID && !tokenMatches(room.HostToken, req.HostToken) {
			return ErrNotHost
		}

		player, exists := room.Players[req.PlayerID]
		if exists {
			result.Rejoined = true
			if req.Name != "" {
				player.Name = req.Name
			}
			if req.Avatar != "" {
				player.Avatar = req.Avatar
			}
			if player.AccountID == "" {
				player.AccountID = req.AccountID
			}
		} else {
			player = &Player{
				ID:        req.PlayerID,
				Name:      req.Name,
				Avatar:    req.Avatar,
				AccountID: req.AccountID,
				JoinOrder: room.NextJoinOrder,
				Answers:   make(map[int]PlayerAnswer),
			}
			room.NextJoinOrder++
			room.Players[req.PlayerID] = player
		}
		player.ConnectionID = req.ConnectionID
		player.Connected = true
		player.Ready = false
		delete(room.Viewers, req.ConnectionID)

		switch {
		case room.HostID == "" && req.ClaimHost:
			room.HostID = player.ID
			room.HostToken = newHostToken()
			room.HostAccountID = player.AccountID
			player.IsHost = true
			result.HostToken = room.HostToken
			e.logger.Info("host claimed", "code", room.Code, "player_id", player.ID)
		case room.HostID == player.ID:
			player.IsHost = true
			if room.HostAccountID == "" {
				room.HostAccountID = player.AccountID
			}
			result.HostToken = room.HostToken
			m.then(func() { e.timers.cancel(timerKey(room.Code, timerHost)) })
		}

		if room.GameStarted && room.State != StateFinished {
			player.ResumeIndex = room.CurrentQuestionIndex
			result.Resuming = true
			result.ResumeIndex = room.CurrentQuestionIndex
		}
		result.Player = viewOf(player)
		m.broadcast(EventRoomUpdate, roomUpdateEvent(room).Payload)
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}
	result.Snapshot = snapshot(room)
	e.logger.Info("player joined",
		"code", code,
		"player_id", req.PlayerID,
		"rejoined", result.Rejoined,
		"resuming", result.Resuming,
	)
	return result, nil
}

// rehost resets a finalized room so the same code can host a new session.
// Former participants stay attached as viewers.
func (e *Engine) rehost(room *Room, m *mutation) {
	fresh := newRoom(room.Code, e.now())
	fresh.Version = room.Version
	for id := range room.Viewers {
		fresh.Viewers[id] = struct{}{}
	}
	for _, player := range room.Players {
		if player.Connected && player.ConnectionID != "" {
			fresh.Viewers[player.ConnectionID] = struct{}{}
		}
	}
	code := room.Code
	*room = *fresh
	m.then(func() { e.timers.cancelRoom(code) })
	e.logger.Info("room re-hosted", "code", code, "session_id", fresh.SessionID)
}

// Leave removes a player, or a viewer when id names one.
func (e *Engine) Leave(ctx context.Context, code, id string) error {
	code, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	_, err = e.update(ctx, code, false, func(room *Room, m *mutation) error {
		if player, ok := room.Players[id]; ok {
			removePlayer(room, id)
			if player.IsHost && room.GameStarted && room.State != StateFinished {
				e.scheduleHostAbandon(room, m)
			}
		} else if _, ok := room.Viewers[id]; ok {
			delete(room.Viewers, id)
		} else {
			return ErrPlayerNotFound
		}
		if room.empty() {
			m.deleteRoom = true
			return nil
		}
		m.broadcast(EventRoomUpdate, roomUpdateEvent(room).Payload)
		return nil
	})
	if err != nil {
		e.logger.Warn("leave ignored", "code", code, "id", id, "error", err)
	}
	return err
}

// Disconnect cleans up after a dropped connection. Players of a started
// session are kept, marked disconnected, so a rejoin restores their score.
func (e *Engine) Disconnect(ctx context.Context, code, connectionID string) error {
	code, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	_, err = e.update(ctx, code, false, func(room *Room, m *mutation) error {
		player := room.playerByConnection(connectionID)
		switch {
		case player == nil:
			if _, ok := room.Viewers[connectionID]; !ok {
				return errNoChange
			}
			delete(room.Viewers, connectionID)
		case !room.GameStarted:
			removePlayer(room, player.ID)
		default:
			player.Connected = false
			if player.IsHost && room.State != StateFinished {
				e.scheduleHostAbandon(room, m)
			}
		}
		if room.empty() {
			m.deleteRoom = true
			return nil
		}
		m.broadcast(EventRoomUpdate, roomUpdateEvent(room).Payload)
		return nil
	})
	if err != nil {
		e.logger.Debug("disconnect ignored", "code", code, "connection_id", connectionID, "error", err)
	}
	return err
}

// SetReady toggles a player's readiness.
func (e *Engine) SetReady(ctx context.Context, code, playerID string, ready bool) error {
	code, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	_, err = e.update(ctx, code, false, func(room *Room, m *mutation) error {
		player, ok := room.Players[playerID]
		if !ok {
			return ErrPlayerNotFound
		}
		player.Ready = ready
		m.broadcast(EventRoomUpdate, roomUpdateEvent(room).Payload)
		return nil
	})
	if err != nil {
		e.logger.Warn("ready ignored", "code", code, "player_id", playerID, "error", err)
	}
	return err
}

// removePlayer drops a player record. A host leaving the lobby frees the
// seat for the next claim.
func removePlayer(room *Room, id string) {
	delete(room.Players, id)
	if room.HostID == id && !room.GameStarted {
		room.HostID = ""
		room.HostToken = ""
		room.HostAccountID = ""
	}
}

func (e *Engine) authorizeHost(room *Room, auth HostAuth) error {
	if room.HostID == "" || auth.PlayerID != room.HostID {
		return ErrNotHost
	}
	if !tokenMatches(room.HostToken, auth.Token) {
		return ErrNotHost
	}
	return nil
}

func tokenMatches(expected, provided string) bool {
	provided = strings.TrimSpace(provided)
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

func viewOf(player *Player) PlayerView {
	return PlayerView{
		ID:          player.ID,
		Name:        player.Name,
		Avatar:      player.Avatar,
		Ready:       player.Ready,
		Score:       player.Score,
		IsHost:      player.IsHost,
		Connected:   player.Connected,
		ResumeIndex: player.ResumeIndex,
	}
}
