package game

import (
	"sort"
	"time"
)

type PlayerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Ready       bool   `json:"ready"`
	Score       int    `json:"score"`
	IsHost      bool   `json:"is_host"`
	Connected   bool   `json:"connected"`
	ResumeIndex int    `json:"resume_index"`
}

// Snapshot is the public view of a room. Host tokens and connection ids
// never leave the engine through it.
type Snapshot struct {
	Code                 string       `json:"code"`
	State                State        `json:"state"`
	GameStarted          bool         `json:"game_started"`
	CurrentQuestionIndex int          `json:"current_question_index"`
	QuestionCount        int          `json:"question_count"`
	QuestionDuration     int          `json:"question_duration"`
	TimeRemaining        int          `json:"time_remaining"`
	HostID               string       `json:"host_id"`
	Players              []PlayerView `json:"players"`
	ViewerCount          int          `json:"viewer_count"`
	Finalized            bool         `json:"finalized"`
	FinalizeError        string       `json:"finalize_error,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}

func snapshot(room *Room) Snapshot {
	return Snapshot{
		Code:                 room.Code,
		State:                room.State,
		GameStarted:          room.GameStarted,
		CurrentQuestionIndex: room.CurrentQuestionIndex,
		QuestionCount:        room.QuestionCount,
		QuestionDuration:     room.QuestionDuration,
		TimeRemaining:        room.TimeRemaining,
		HostID:               room.HostID,
		Players:              playerViews(room),
		ViewerCount:          len(room.Viewers),
		Finalized:            room.Finalized,
		FinalizeError:        room.FinalizeError,
		CreatedAt:            room.CreatedAt,
	}
}

// playerViews lists players in join order.
func playerViews(room *Room) []PlayerView {
	players := make([]*Player, 0, len(room.Players))
	for _, player := range room.Players {
		players = append(players, player)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].JoinOrder < players[j].JoinOrder
	})
	views := make([]PlayerView, 0, len(players))
	for _, player := range players {
		views = append(views, PlayerView{
			ID:          player.ID,
			Name:        player.Name,
			Avatar:      player.Avatar,
			Ready:       player.Ready,
			Score:       player.Score,
			IsHost:      player.IsHost,
			Connected:   player.Connected,
			ResumeIndex: player.ResumeIndex,
		})
	}
	return views
}

func roomUpdateEvent(room *Room) Event {
	return Event{
		Type: EventRoomUpdate,
		Payload: RoomUpdatePayload{
			Players:     playerViews(room),
			HostID:      room.HostID,
			ViewerCount: len(room.Viewers),
		},
	}
}

func sortedAnswers(player *Player) []PlayerAnswer {
	answers := make([]PlayerAnswer, 0, len(player.Answers))
	for _, answer := range player.Answers {
		answers = append(answers, answer)
	}
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].QuestionIndex < answers[j].QuestionIndex
	})
	return answers
}
