package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"quiz-live/internal/game"
)

// QuestionRepo serves the question bank to the session engine.
type QuestionRepo struct {
	db *gorm.DB
}

func NewQuestionRepo(conn *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: conn}
}

func (r *QuestionRepo) Questions(ctx context.Context, code string) ([]game.Question, error) {
	var quiz Quiz
	err := r.db.WithContext(ctx).
		Preload("Questions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		Preload("Questions.Answers", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		Where("game_code = ?", code).
		First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz %s: %w", code, err)
	}
	return toGameQuestions(quiz.Questions), nil
}

func toGameQuestions(records []Question) []game.Question {
	questions := make([]game.Question, 0, len(records))
	for _, record := range records {
		question := game.Question{
			Text:     record.Text,
			Duration: record.DurationSeconds,
			Answers:  make([]game.Answer, 0, len(record.Answers)),
		}
		for _, answer := range record.Answers {
			question.Answers = append(question.Answers, game.Answer{
				ID:      strconv.FormatUint(uint64(answer.ID), 10),
				Text:    answer.Text,
				Correct: answer.IsCorrect,
			})
		}
		questions = append(questions, question)
	}
	return questions
}

// SaveQuiz replaces the questions stored for a game code.
func SaveQuiz(ctx context.Context, conn *gorm.DB, code, title string, questions []QuestionRecord) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quiz := Quiz{GameCode: code}
		if err := tx.Where(Quiz{GameCode: code}).FirstOrCreate(&quiz).Error; err != nil {
			return err
		}
		if title != "" && quiz.Title != title {
			if err := tx.Model(&quiz).Update("title", title).Error; err != nil {
				return err
			}
		}
		var oldIDs []uint
		if err := tx.Model(&Question{}).Where("quiz_id = ?", quiz.ID).Pluck("id", &oldIDs).Error; err != nil {
			return err
		}
		if len(oldIDs) > 0 {
			if err := tx.Where("question_id IN ?", oldIDs).Delete(&Answer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", oldIDs).Delete(&Question{}).Error; err != nil {
				return err
			}
		}
		for i, record := range questions {
			question := Question{
				QuizID:          quiz.ID,
				Position:        i,
				Text:            record.Text,
				DurationSeconds: record.Duration,
			}
			for j, answer := range record.Answers {
				question.Answers = append(question.Answers, Answer{
					Position:  j,
					Text:      answer.Text,
					IsCorrect: answer.Correct,
				})
			}
			if err := tx.Create(&question).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
