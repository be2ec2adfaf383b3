package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"quiz-live/internal/game"
)

const (
	msgJoin          = "join"
	msgLeave         = "leave"
	msgReady         = "ready"
	msgStart         = "start"
	msgBeginQuestion = "begin_question"
	msgTick          = "tick"
	msgReveal        = "reveal"
	msgNext          = "next"
	msgEnd           = "end"
	msgAnswer        = "answer"
	msgPing          = "ping"

	eventPong = "pong"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	PlayerID  string `json:"player_id" binding:"required,max=64"`
	Name      string `json:"name" binding:"required,name"`
	Avatar    string `json:"avatar" binding:"max=64"`
	ClaimHost bool   `json:"claim_host"`
	AccountID string `json:"account_id" binding:"max=64"`
	HostToken string `json:"host_token" binding:"max=64"`
}

type readyPayload struct {
	Ready bool `json:"ready"`
}

type tickPayload struct {
	TimeRemaining int `json:"time_remaining" binding:"min=0"`
}

type answerPayload struct {
	QuestionIndex int    `json:"question_index" binding:"min=0"`
	AnswerID      string `json:"answer_id" binding:"required,max=64"`
	TimeRemaining int    `json:"time_remaining" binding:"min=0"`
}

type joinedPayload struct {
	Player    game.PlayerView `json:"player"`
	HostToken string          `json:"host_token,omitempty"`
	Rejoined  bool            `json:"rejoined"`
	Snapshot  game.Snapshot   `json:"snapshot"`
}

type resumingPayload struct {
	joinedPayload
	ResumeIndex int `json:"resume_index"`
}

type wsErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errInvalidMessage marks frames that fail decoding or validation.
var errInvalidMessage = errors.New("invalid message")

// decodePayload unmarshals and validates a message payload. A missing
// payload decodes as an empty object.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidMessage, err)
	}
	if err := validatePayload(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", errInvalidMessage, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", errInvalidMessage, err)
	}
	return nil
}
