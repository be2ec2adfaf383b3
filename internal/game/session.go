package game

import (
	"context"
	"errors"
	"fmt"
)

type action string

const (
	actionStart  action = "start"
	actionBegin  action = "begin_question"
	actionReveal action = "reveal"
	actionNext   action = "next"
	actionEnd    action = "end"
)

// MaxQuestionSeconds caps configured question durations. Score keeps the
// standard bonus range up to this length.
const MaxQuestionSeconds = 300

type transitionContext struct {
	questions []Question
}

type transition func(e *Engine, room *Room, m *mutation, tc transitionContext) error

// transitions lists the actions each state accepts. Anything missing is an
// invalid-state error. Filled in init: the steps call back into apply,
// which reads the table.
var transitions map[State]map[action]transition

func init() {
	transitions = map[State]map[action]transition{
		StateLobby: {
			actionStart: func(e *Engine, room *Room, m *mutation, tc transitionContext) error {
				if len(tc.questions) == 0 {
					return ErrNoQuestions
				}
				room.GameStarted = true
				room.QuestionCount = len(tc.questions)
				room.QuestionsAsked = 0
				room.CurrentQuestionIndex = 0
				m.broadcast(EventSessionStarted, SessionStartedPayload{QuestionCount: room.QuestionCount})
				e.enterPreparing(room, m)
				return nil
			},
		},
		StatePreparing: {
			actionBegin: func(e *Engine, room *Room, m *mutation, tc transitionContext) error {
				return e.beginQuestion(room, m, tc)
			},
			actionEnd: func(e *Engine, room *Room, m *mutation, tc transitionContext) error {
				e.enterFinished(room, m)
				return nil
			},
		},
		StateQuestion: {
			actionReveal: func(e *Engine, room *Room, m *mutation, tc transitionContext) error {
				e.reveal(room, m, tc)
				return nil
			},
			actionEnd: func(e *Engine, room *Room, m *mutation, tc transitionContext) error {
				e.enterFinished(room, m)
				return nil
			},
		},
		StateReveal: {
			actionNext: func(e *Engine, room *Room, m *mutation, tc transitionContext) error {
				if room.QuestionsAsked >= room.QuestionCount {
					e.enterFinished(room, m)
					return nil
				}
				e.enterPreparing(room, m)
				return nil
			},
			actionEnd: func(e *Engine, room *Room, m *mutation, tc transitionContext) error {
				e.enterFinished(room, m)
				return nil
			},
		},
	}
}

// Start moves a lobby into the first countdown. Only the host may call it.
func (e *Engine) Start(ctx context.Context, code string, auth HostAuth) error {
	return e.hostAction(ctx, code, auth, actionStart)
}

// BeginQuestion ends the countdown early and opens the next question.
func (e *Engine) BeginQuestion(ctx context.Context, code string, auth HostAuth) error {
	return e.hostAction(ctx, code, auth, actionBegin)
}

// Reveal closes the active question before its clock runs out.
func (e *Engine) Reveal(ctx context.Context, code string, auth HostAuth) error {
	return e.hostAction(ctx, code, auth, actionReveal)
}

// Next advances from a reveal to the next question, or finishes after the
// last one.
func (e *Engine) Next(ctx context.Context, code string, auth HostAuth) error {
	return e.hostAction(ctx, code, auth, actionNext)
}

// End finishes the session early and finalizes it.
func (e *Engine) End(ctx context.Context, code string, auth HostAuth) error {
	return e.hostAction(ctx, code, auth, actionEnd)
}

func (e *Engine) hostAction(ctx context.Context, code string, auth HostAuth, act action) error {
	code, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	err = e.apply(ctx, code, act, func(room *Room) error {
		return e.authorizeHost(room, auth)
	})
	if err != nil {
		e.logger.Warn("host action rejected", "code", code, "action", act, "player_id", auth.PlayerID, "error", err)
	}
	return err
}

// apply runs the transition registered for act in the room's current state.
// guard runs first under the room lock.
func (e *Engine) apply(ctx context.Context, code string, act action, guard func(room *Room) error) error {
	questions, err := e.questions.Questions(ctx, code)
	if err != nil {
		return fmt.Errorf("load questions for %s: %w", code, err)
	}
	tc := transitionContext{questions: questions}
	var finished bool
	_, err = e.update(ctx, code, false, func(room *Room, m *mutation) error {
		if guard != nil {
			if err := guard(room); err != nil {
				return err
			}
		}
		step, ok := transitions[room.State][act]
		if !ok {
			return fmt.Errorf("%w: %s during %s", ErrInvalidState, act, room.State)
		}
		from := room.State
		if err := step(e, room, m, tc); err != nil {
			return err
		}
		finished = room.State == StateFinished
		e.logger.Info("session advanced", "code", room.Code, "from", from, "to", room.State, "action", act)
		return nil
	})
	if err != nil {
		return err
	}
	if finished {
		return e.finalize(ctx, code)
	}
	return nil
}

func (e *Engine) enterPreparing(room *Room, m *mutation) {
	room.State = StatePreparing
	next := room.QuestionsAsked
	m.broadcast(EventQuestionPreparing, PreparingPayload{
		Index:   next,
		Seconds: int(e.opts.PrepareDuration.Seconds()),
	})
	if e.opts.Clock != ClockServer {
		return
	}
	code, sessionID := room.Code, room.SessionID
	m.then(func() {
		e.timers.schedule(timerKey(code, timerPrepare), e.opts.PrepareDuration, func() {
			e.autoAdvance(code, sessionID, StatePreparing, actionBegin, next)
		})
	})
}

func (e *Engine) beginQuestion(room *Room, m *mutation, tc transitionContext) error {
	index := room.QuestionsAsked
	if index >= len(tc.questions) {
		return fmt.Errorf("%w: index %d", ErrQuestionNotFound, index)
	}
	duration := questionDuration(tc.questions[index], e.opts.DefaultQuestionSeconds)
	room.State = StateQuestion
	room.CurrentQuestionIndex = index
	room.QuestionsAsked = index + 1
	room.QuestionDuration = duration
	room.TimeRemaining = duration
	m.broadcast(EventQuestionStarted, QuestionStartedPayload{Index: index, Duration: duration})

	code, sessionID := room.Code, room.SessionID
	m.then(func() {
		e.timers.cancel(timerKey(code, timerPrepare))
		if e.opts.Clock == ClockServer {
			e.startClock(code, sessionID, index, duration)
		}
	})
	return nil
}

func (e *Engine) reveal(room *Room, m *mutation, tc transitionContext) {
	index := room.CurrentQuestionIndex
	room.State = StateReveal
	room.TimeRemaining = 0
	payload := RevealPayload{Index: index}
	if index < len(tc.questions) {
		payload.CorrectAnswerID = correctAnswerID(tc.questions[index])
	}
	m.broadcast(EventAnswerReveal, payload)
	code := room.Code
	m.then(func() { e.timers.cancel(timerKey(code, timerClock)) })
}

func (e *Engine) enterFinished(room *Room, m *mutation) {
	room.State = StateFinished
	room.TimeRemaining = 0
	code := room.Code
	m.then(func() {
		e.timers.cancel(timerKey(code, timerPrepare))
		e.timers.cancel(timerKey(code, timerClock))
		e.timers.cancel(timerKey(code, timerHost))
	})
}

// autoAdvance is the timer-driven path: it skips host authorization but
// only fires while the room is still in the session and state it was
// scheduled for.
func (e *Engine) autoAdvance(code, sessionID string, expected State, act action, index int) {
	ctx := context.Background()
	err := e.apply(ctx, code, act, func(room *Room) error {
		if room.SessionID != sessionID || room.State != expected {
			return errNoChange
		}
		if expected == StatePreparing && room.QuestionsAsked != index {
			return errNoChange
		}
		if expected == StateQuestion && room.CurrentQuestionIndex != index {
			return errNoChange
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		e.logger.Error("auto advance failed", "code", code, "action", act, "error", err)
	}
}

func (e *Engine) scheduleHostAbandon(room *Room, m *mutation) {
	if e.opts.HostReconnectGrace <= 0 {
		return
	}
	code, sessionID := room.Code, room.SessionID
	m.then(func() {
		e.timers.schedule(timerKey(code, timerHost), e.opts.HostReconnectGrace, func() {
			e.hostAbandoned(code, sessionID)
		})
	})
}

// hostAbandoned ends a session whose host never came back.
func (e *Engine) hostAbandoned(code, sessionID string) {
	ctx := context.Background()
	ended := false
	_, err := e.update(ctx, code, false, func(room *Room, m *mutation) error {
		if room.SessionID != sessionID || room.State == StateFinished {
			return errNoChange
		}
		if host := room.host(); host != nil && host.Connected {
			return errNoChange
		}
		e.enterFinished(room, m)
		ended = true
		e.logger.Warn("host did not reconnect, ending session", "code", code)
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			e.logger.Error("host abandon failed", "code", code, "error", err)
		}
		return
	}
	if !ended {
		return
	}
	if err := e.finalize(ctx, code); err != nil {
		e.logger.Error("finalize after host abandon failed", "code", code, "error", err)
	}
}

func questionDuration(q Question, fallback int) int {
	duration := q.Duration
	if duration <= 0 {
		duration = fallback
	}
	if duration > MaxQuestionSeconds {
		duration = MaxQuestionSeconds
	}
	return duration
}

func correctAnswerID(q Question) string {
	for _, answer := range q.Answers {
		if answer.Correct {
			return answer.ID
		}
	}
	return ""
}
