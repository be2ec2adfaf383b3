package game

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Finalize retries finalization of a finished session on the host's
// request. It is a no-op once the result is stored.
func (e *Engine) Finalize(ctx context.Context, code string, auth HostAuth) error {
	code, err := NormalizeCode(code)
	if err != nil {
		return err
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
	return e.finalize(ctx, code)
}

func (e *Engine) finalize(ctx context.Context, code string) error {
	if !e.beginFinalizing(code) {
		return nil
	}
	defer e.endFinalizing(code)

	room, ok, err := e.store.Get(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoomNotFound
	}
	if room.State != StateFinished {
		return fmt.Errorf("%w: session is %s", ErrInvalidState, room.State)
	}
	if room.Finalized {
		return nil
	}

	result, err := buildResult(room, e.now())
	if err == nil {
		err = e.saveResult(ctx, result)
	}
	if err != nil {
		e.recordFinalizeFailure(ctx, code, room.SessionID, err)
		return err
	}

	sessionID := room.SessionID
	marked := false
	_, err = e.update(ctx, code, false, func(room *Room, m *mutation) error {
		if room.SessionID != sessionID || room.Finalized {
			return errNoChange
		}
		room.Finalized = true
		room.FinalizeError = ""
		marked = true
		m.broadcast(EventSessionEnded, SessionEndedPayload{Players: result.Players})
		m.then(func() { e.scheduleCleanup(code, sessionID) })
		return nil
	})
	if err != nil {
		return err
	}
	if !marked {
		return nil
	}
	e.logger.Info("session finalized", "code", code, "players", len(result.Players))
	e.recordStats(ctx, result)
	return nil
}

func (e *Engine) beginFinalizing(code string) bool {
	e.finalizingMu.Lock()
	defer e.finalizingMu.Unlock()
	if _, busy := e.finalizing[code]; busy {
		return false
	}
	e.finalizing[code] = struct{}{}
	return true
}

func (e *Engine) endFinalizing(code string) {
	e.finalizingMu.Lock()
	defer e.finalizingMu.Unlock()
	delete(e.finalizing, code)
}

// buildResult assembles the durable record. A session whose host has no
// account id cannot be stored.
func buildResult(room *Room, now time.Time) (Result, error) {
	accountID := room.HostAccountID
	if accountID == "" {
		if host := room.host(); host != nil {
			accountID = host.AccountID
		}
	}
	if accountID == "" {
		return Result{}, fmt.Errorf("%w: room %s host %q", ErrHostAccountUnresolved, room.Code, room.HostID)
	}
	return Result{
		GameCode:      room.Code,
		HostAccountID: accountID,
		Players:       summaries(room),
		CreatedAt:     now,
	}, nil
}

func (e *Engine) saveResult(ctx context.Context, result Result) error {
	var err error
	for attempt := 1; attempt <= e.opts.FinalizeAttempts; attempt++ {
		if err = e.results.SaveResult(ctx, result); err == nil {
			return nil
		}
		e.logger.Warn("save result failed", "code", result.GameCode, "attempt", attempt, "error", err)
		if attempt == e.opts.FinalizeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * e.opts.FinalizeBackoff):
		}
	}
	return fmt.Errorf("save result for %s: %w", result.GameCode, err)
}

func (e *Engine) recordFinalizeFailure(ctx context.Context, code, sessionID string, cause error) {
	e.logger.Error("finalize failed", "code", code, "error", cause)
	_, err := e.update(ctx, code, false, func(room *Room, m *mutation) error {
		if room.SessionID != sessionID {
			return errNoChange
		}
		room.FinalizeError = cause.Error()
		m.broadcast(EventFinalizeFailed, ErrorPayload{Message: cause.Error()})
		return nil
	})
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		e.logger.Error("record finalize failure", "code", code, "error", err)
	}
}

func (e *Engine) recordStats(ctx context.Context, result Result) {
	for _, summary := range result.Players {
		if summary.AccountID == "" {
			continue
		}
		stat := GameStat{
			GameCode: result.GameCode,
			Score:    summary.Score,
			Correct:  summary.Correct,
			Wrong:    summary.Wrong,
		}
		if err := e.stats.RecordGame(ctx, summary.AccountID, stat); err != nil {
			e.logger.Error("record stats failed", "code", result.GameCode, "account_id", summary.AccountID, "error", err)
		}
	}
}

// scheduleCleanup deletes the room after the grace period unless the code
// was re-hosted in the meantime.
func (e *Engine) scheduleCleanup(code, sessionID string) {
	e.timers.schedule(timerKey(code, timerCleanup), e.opts.ResultGrace, func() {
		_, err := e.update(context.Background(), code, false, func(room *Room, m *mutation) error {
			if room.SessionID != sessionID {
				return errNoChange
			}
			m.deleteRoom = true
			return nil
		})
		if err != nil && !errors.Is(err, ErrRoomNotFound) {
			e.logger.Error("room cleanup failed", "code", code, "error", err)
		}
	})
}
