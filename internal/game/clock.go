package game

import (
	"context"
	"errors"
	"fmt"
)

// startClock runs the server-owned countdown for one question. Each tick
// is one second of question time.
func (e *Engine) startClock(code, sessionID string, index, duration int) {
	remaining := duration
	e.timers.every(timerKey(code, timerClock), e.opts.TickInterval, func() bool {
		remaining--
		if remaining < 0 {
			remaining = 0
		}
		running, err := e.applyTick(context.Background(), code, sessionID, index, remaining)
		if err != nil && !errors.Is(err, ErrRoomNotFound) {
			e.logger.Error("question clock tick failed", "code", code, "index", index, "error", err)
		}
		return running && err == nil
	})
}

// Tick relays a countdown value from the host. It is accepted only when
// the engine runs with the host clock.
func (e *Engine) Tick(ctx context.Context, code string, auth HostAuth, remaining int) error {
	code, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	if e.opts.Clock != ClockHost {
		return fmt.Errorf("%w: server owns the question clock", ErrInvalidState)
	}
	room, ok, err := e.store.Get(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoomNotFound
	}
	if err := e.authorizeHost(room, auth); err != nil {
		return err
	}
	_, err = e.applyTick(ctx, code, room.SessionID, room.CurrentQuestionIndex, remaining)
	return err
}

// applyTick records the authoritative remaining time, broadcasts it and
// reveals the answer once time is up. It reports whether the question is
// still running.
func (e *Engine) applyTick(ctx context.Context, code, sessionID string, index, remaining int) (bool, error) {
	questions, err := e.questions.Questions(ctx, code)
	if err != nil {
		return false, fmt.Errorf("load questions for %s: %w", code, err)
	}
	running := false
	_, err = e.update(ctx, code, false, func(room *Room, m *mutation) error {
		if room.SessionID != sessionID || room.State != StateQuestion || room.CurrentQuestionIndex != index {
			return errNoChange
		}
		if remaining < 0 {
			remaining = 0
		}
		// Ticks only move the clock forward.
		if remaining > room.TimeRemaining {
			remaining = room.TimeRemaining
		}
		room.TimeRemaining = remaining
		m.broadcast(EventTimerTick, TickPayload{Index: index, TimeRemaining: remaining})
		if remaining == 0 {
			e.reveal(room, m, transitionContext{questions: questions})
			e.logger.Info("question time up", "code", room.Code, "index", index)
			return nil
		}
		running = true
		return nil
	})
	return running, err
}
