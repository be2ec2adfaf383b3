package db

import (
	"time"

	"gorm.io/datatypes"
)

type Quiz struct {
	ID        uint      `gorm:"primaryKey"`
	GameCode  string    `gorm:"size:12;uniqueIndex;not null"`
	Title     string    `gorm:"size:200;not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Questions []Question
}

type Question struct {
	ID              uint      `gorm:"primaryKey"`
	QuizID          uint      `gorm:"index;not null;uniqueIndex:idx_questions_quiz_position"`
	Position        int       `gorm:"not null;uniqueIndex:idx_questions_quiz_position"`
	Text            string    `gorm:"size:500;not null"`
	DurationSeconds int       `gorm:"not null;default:20"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
	Answers         []Answer
}

type Answer struct {
	ID         uint      `gorm:"primaryKey"`
	QuestionID uint      `gorm:"index;not null;uniqueIndex:idx_answers_question_position"`
	Position   int       `gorm:"not null;uniqueIndex:idx_answers_question_position"`
	Text       string    `gorm:"size:280;not null"`
	IsCorrect  bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// Result holds one finalized session. Players is the ranked summary list.
type Result struct {
	ID            uint           `gorm:"primaryKey"`
	GameCode      string         `gorm:"size:12;uniqueIndex;not null"`
	HostAccountID string         `gorm:"size:64;index;not null"`
	Players       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

type UserStat struct {
	AccountID   string    `gorm:"primaryKey;size:64"`
	GamesPlayed int       `gorm:"not null;default:0"`
	TotalScore  int64     `gorm:"not null;default:0"`
	Correct     int       `gorm:"not null;default:0"`
	Wrong       int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// RoomState is the shared copy of an in-progress room, versioned for
// optimistic writes from several server processes.
type RoomState struct {
	Code      string         `gorm:"primaryKey;size:12"`
	Version   int64          `gorm:"not null"`
	State     datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"not null;index"`
}
