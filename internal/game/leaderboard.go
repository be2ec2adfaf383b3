package game

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Score    int    `json:"score"`
}

// rankedPlayers returns non-host players by descending score. Ties keep
// join order, then durable id.
func rankedPlayers(room *Room) []*Player {
	players := make([]*Player, 0, len(room.Players))
	for _, player := range room.Players {
		if player.IsHost || player.ID == room.HostID {
			continue
		}
		players = append(players, player)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		if players[i].JoinOrder != players[j].JoinOrder {
			return players[i].JoinOrder < players[j].JoinOrder
		}
		return players[i].ID < players[j].ID
	})
	return players
}

func leaderboard(room *Room) []LeaderboardEntry {
	players := rankedPlayers(room)
	entries := make([]LeaderboardEntry, 0, len(players))
	for i, player := range players {
		entries = append(entries, LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: player.ID,
			Name:     player.Name,
			Avatar:   player.Avatar,
			Score:    player.Score,
		})
	}
	return entries
}

func summaries(room *Room) []PlayerSummary {
	players := rankedPlayers(room)
	list := make([]PlayerSummary, 0, len(players))
	for _, player := range players {
		list = append(list, summarize(player))
	}
	return list
}

func summarize(player *Player) PlayerSummary {
	summary := PlayerSummary{
		PlayerID:            player.ID,
		Name:                player.Name,
		Avatar:              player.Avatar,
		AccountID:           player.AccountID,
		Score:               player.Score,
		AverageResponseTime: decimal.Zero,
		Answers:             sortedAnswers(player),
	}
	responseTotal := 0
	for _, answer := range summary.Answers {
		if answer.Correct {
			summary.Correct++
		} else {
			summary.Wrong++
		}
		responseTotal += answer.Duration - answer.TimeRemaining
	}
	if n := len(summary.Answers); n > 0 {
		summary.AverageResponseTime = decimal.NewFromInt(int64(responseTotal)).
			Div(decimal.NewFromInt(int64(n))).
			Round(2)
	}
	return summary
}

// Leaderboard returns the current ranking of a room.
func (e *Engine) Leaderboard(ctx context.Context, code string) ([]LeaderboardEntry, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	room, ok, err := e.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoomNotFound
	}
	return leaderboard(room), nil
}
