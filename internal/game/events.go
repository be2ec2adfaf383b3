package game

const (
	EventRoomUpdate        = "room_update"
	EventJoined            = "joined"
	EventResuming          = "resuming"
	EventSessionStarted    = "session_started"
	EventQuestionPreparing = "question_preparing"
	EventQuestionStarted   = "question_started"
	EventTimerTick         = "timer_tick"
	EventAnswerAccepted    = "answer_accepted"
	EventLeaderboard       = "leaderboard"
	EventAnswerReveal      = "answer_reveal"
	EventSessionEnded      = "session_ended"
	EventFinalizeFailed    = "finalize_failed"
	EventError             = "error"
)

// Event is the envelope pushed over a room channel.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Broadcaster is the connection layer as seen from the engine.
type Broadcaster interface {
	Broadcast(code string, event Event)
	Send(code, connectionID string, event Event)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, Event)    {}
func (nopBroadcaster) Send(string, string, Event) {}

type RoomUpdatePayload struct {
	Players     []PlayerView `json:"players"`
	HostID      string       `json:"host_id"`
	ViewerCount int          `json:"viewer_count"`
}

type SessionStartedPayload struct {
	QuestionCount int `json:"question_count"`
}

type PreparingPayload struct {
	Index   int `json:"index"`
	Seconds int `json:"seconds"`
}

type QuestionStartedPayload struct {
	Index    int `json:"index"`
	Duration int `json:"duration"`
}

type TickPayload struct {
	Index         int `json:"index"`
	TimeRemaining int `json:"time_remaining"`
}

type AnswerAcceptedPayload struct {
	QuestionIndex int            `json:"question_index"`
	Delta         int            `json:"delta"`
	Score         int            `json:"score"`
	Answers       []PlayerAnswer `json:"answers"`
}

type RevealPayload struct {
	Index           int    `json:"index"`
	CorrectAnswerID string `json:"correct_answer_id"`
}

type LeaderboardPayload struct {
	Entries []LeaderboardEntry `json:"entries"`
}

type SessionEndedPayload struct {
	Players []PlayerSummary `json:"players"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
