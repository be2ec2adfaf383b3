package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateLobby     State = "lobby"
	StatePreparing State = "preparing"
	StateQuestion  State = "question"
	StateReveal    State = "reveal"
	StateFinished  State = "finished"
)

// Room is the authoritative in-progress state of one game code. It is
// serialized by the room store, so every field that must survive a
// round-trip is exported.
type Room struct {
	Code                 string              `json:"code"`
	SessionID            string              `json:"session_id"`
	Version              int64               `json:"version"`
	State                State               `json:"state"`
	GameStarted          bool                `json:"game_started"`
	CurrentQuestionIndex int                 `json:"current_question_index"`
	QuestionsAsked       int                 `json:"questions_asked"`
	QuestionCount        int                 `json:"question_count"`
	QuestionDuration     int                 `json:"question_duration"`
	TimeRemaining        int                 `json:"time_remaining"`
	HostID               string              `json:"host_id"`
	HostToken            string              `json:"host_token"`
	HostAccountID        string              `json:"host_account_id"`
	Players              map[string]*Player  `json:"players"`
	Viewers              map[string]struct{} `json:"viewers"`
	NextJoinOrder        int                 `json:"next_join_order"`
	Finalized            bool                `json:"finalized"`
	FinalizeError        string              `json:"finalize_error,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

type Player struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Avatar       string               `json:"avatar"`
	Ready        bool                 `json:"ready"`
	Score        int                  `json:"score"`
	IsHost       bool                 `json:"is_host"`
	AccountID    string               `json:"account_id,omitempty"`
	ConnectionID string               `json:"connection_id"`
	Connected    bool                 `json:"connected"`
	JoinOrder    int                  `json:"join_order"`
	ResumeIndex  int                  `json:"resume_index"`
	Answers      map[int]PlayerAnswer `json:"answers"`
}

type PlayerAnswer struct {
	QuestionIndex int    `json:"question_index"`
	AnswerID      string `json:"answer_id"`
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
	TimeRemaining int    `json:"time_remaining"`
	Duration      int    `json:"duration"`
}

// Question is the authoritative definition returned by a QuestionSource.
// Duration is in seconds.
type Question struct {
	Text     string   `json:"text"`
	Duration int      `json:"duration"`
	Answers  []Answer `json:"answers"`
}

type Answer struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type PlayerSummary struct {
	PlayerID            string          `json:"player_id"`
	Name                string          `json:"name"`
	Avatar              string          `json:"avatar"`
	AccountID           string          `json:"account_id,omitempty"`
	Score               int             `json:"score"`
	Correct             int             `json:"correct"`
	Wrong               int             `json:"wrong"`
	AverageResponseTime decimal.Decimal `json:"average_response_time"`
	Answers             []PlayerAnswer  `json:"answers"`
}

// Result is the immutable record written once per completed session.
type Result struct {
	GameCode      string          `json:"game_code"`
	HostAccountID string          `json:"host_account_id"`
	Players       []PlayerSummary `json:"players"`
	CreatedAt     time.Time       `json:"created_at"`
}

type GameStat struct {
	GameCode string
	Score    int
	Correct  int
	Wrong    int
}

// HostAuth is the proof a caller presents for host-only actions.
type HostAuth struct {
	PlayerID string
	Token    string
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		Code:      code,
		SessionID: newSessionID(),
		State:     StateLobby,
		Players:   make(map[string]*Player),
		Viewers:   make(map[string]struct{}),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *Room) empty() bool {
	return len(r.Players) == 0 && len(r.Viewers) == 0
}

func (r *Room) connectedCount() int {
	count := len(r.Viewers)
	for _, player := range r.Players {
		if player.Connected {
			count++
		}
	}
	return count
}

func (r *Room) playerByConnection(connectionID string) *Player {
	if connectionID == "" {
		return nil
	}
	for _, player := range r.Players {
		if player.ConnectionID == connectionID {
			return player
		}
	}
	return nil
}

func (r *Room) host() *Player {
	if r.HostID == "" {
		return nil
	}
	return r.Players[r.HostID]
}
