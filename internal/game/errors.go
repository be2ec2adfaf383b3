package game

import "errors"

var (
	ErrRoomNotFound          = errors.New("room not found")
	ErrPlayerNotFound        = errors.New("player not found")
	ErrQuestionNotFound      = errors.New("question not found")
	ErrAnswerNotFound        = errors.New("answer not found")
	ErrInvalidState          = errors.New("invalid action for current state")
	ErrNotHost               = errors.New("only host can perform this action")
	ErrNoQuestions           = errors.New("quiz has no questions")
	ErrHostAccountUnresolved = errors.New("host account could not be resolved")
	ErrVersionConflict       = errors.New("room version conflict")
	ErrInvalidCode           = errors.New("invalid game code")
)
