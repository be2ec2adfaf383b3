package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quiz-live/internal/game"
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, game.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrRoomNotFound),
		errors.Is(err, game.ErrPlayerNotFound),
		errors.Is(err, game.ErrQuestionNotFound),
		errors.Is(err, game.ErrAnswerNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, game.ErrInvalidState),
		errors.Is(err, game.ErrNoQuestions),
		errors.Is(err, game.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, game.ErrHostAccountUnresolved):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the machine-readable reason sent on websocket error events.
func errorCode(err error) string {
	switch statusForError(err) {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusForbidden:
		return "not_host"
	case http.StatusConflict:
		return "invalid_state"
	case http.StatusUnprocessableEntity:
		return "host_unresolved"
	default:
		return "internal_error"
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		message = "internal error"
	}
	c.JSON(status, gin.H{"error": message})
}
