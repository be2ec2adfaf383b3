package game

import (
	"context"
	"fmt"
	"math"
)

const (
	BasePoints  = 500
	BonusPoints = 1000
)

// Score awards nothing for a wrong answer and, for a right one, the base
// award plus a bonus proportional to the share of time left. Durations
// above MaxQuestionSeconds widen the bonus range so every extra second
// still earns at least three points.
func Score(correct bool, timeRemaining, duration int) int {
	if !correct {
		return 0
	}
	if duration <= 0 {
		return BasePoints
	}
	t := timeRemaining
	if t < 0 {
		t = 0
	}
	if t > duration {
		t = duration
	}
	scale := float64(BonusPoints)
	if duration > MaxQuestionSeconds {
		scale = float64(BonusPoints) * float64(duration) / MaxQuestionSeconds
	}
	bonus := math.Round(scale * float64(t) / float64(duration))
	return BasePoints + int(bonus)
}

type AnswerRequest struct {
	Code          string
	PlayerID      string
	QuestionIndex int
	AnswerID      string
	TimeRemaining int
}

type AnswerResult struct {
	Correct bool
	Points  int
	Delta   int
	Score   int
}

// SubmitAnswer scores one answer. A second submission for the same
// question replaces the first one and its points.
func (e *Engine) SubmitAnswer(ctx context.Context, req AnswerRequest) (AnswerResult, error) {
	code, err := NormalizeCode(req.Code)
	if err != nil {
		return AnswerResult{}, err
	}
	questions, err := e.questions.Questions(ctx, code)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("load questions for %s: %w", code, err)
	}
	var result AnswerResult
	_, err = e.update(ctx, code, false, func(room *Room, m *mutation) error {
		player, ok := room.Players[req.PlayerID]
		if !ok {
			return ErrPlayerNotFound
		}
		if player.IsHost {
			return fmt.Errorf("%w: host does not answer", ErrInvalidState)
		}
		if room.State != StateQuestion || req.QuestionIndex != room.CurrentQuestionIndex {
			return fmt.Errorf("%w: question %d is not open", ErrInvalidState, req.QuestionIndex)
		}
		if req.QuestionIndex < 0 || req.QuestionIndex >= len(questions) {
			return fmt.Errorf("%w: index %d", ErrQuestionNotFound, req.QuestionIndex)
		}
		question := questions[req.QuestionIndex]
		var chosen *Answer
		for i := range question.Answers {
			if question.Answers[i].ID == req.AnswerID {
				chosen = &question.Answers[i]
				break
			}
		}
		if chosen == nil {
			return fmt.Errorf("%w: %q", ErrAnswerNotFound, req.AnswerID)
		}

		remaining := req.TimeRemaining
		if remaining > room.TimeRemaining {
			remaining = room.TimeRemaining
		}
		if remaining < 0 {
			remaining = 0
		}
		points := Score(chosen.Correct, remaining, room.QuestionDuration)
		before := player.Score
		player.Answers[req.QuestionIndex] = PlayerAnswer{
			QuestionIndex: req.QuestionIndex,
			AnswerID:      chosen.ID,
			Correct:       chosen.Correct,
			Points:        points,
			TimeRemaining: remaining,
			Duration:      room.QuestionDuration,
		}
		player.Score = totalPoints(player)
		result = AnswerResult{
			Correct: chosen.Correct,
			Points:  points,
			Delta:   player.Score - before,
			Score:   player.Score,
		}
		m.send(player.ConnectionID, EventAnswerAccepted, AnswerAcceptedPayload{
			QuestionIndex: req.QuestionIndex,
			Delta:         result.Delta,
			Score:         player.Score,
			Answers:       sortedAnswers(player),
		})
		m.broadcast(EventLeaderboard, LeaderboardPayload{Entries: leaderboard(room)})
		return nil
	})
	if err != nil {
		e.logger.Warn("answer dropped",
			"code", code,
			"player_id", req.PlayerID,
			"question_index", req.QuestionIndex,
			"error", err,
		)
		return AnswerResult{}, err
	}
	return result, nil
}

func totalPoints(player *Player) int {
	total := 0
	for _, answer := range player.Answers {
		total += answer.Points
	}
	return total
}
