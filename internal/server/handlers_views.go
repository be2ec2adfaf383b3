package server

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"

	"quiz-live/internal/game"
	"quiz-live/internal/web"
)

func (s *Server) handleResultsView(c *gin.Context) {
	code, ok := bindRoom(c)
	if !ok {
		return
	}
	result, found, err := s.engine.Result(c.Request.Context(), code)
	if err != nil {
		s.logger.Error("load result failed", "code", code, "error", err)
		c.String(http.StatusInternalServerError, "failed to load results")
		return
	}
	if !found {
		c.String(http.StatusNotFound, "no results for game %s", code)
		return
	}
	templ.Handler(web.Results(resultPage(result))).ServeHTTP(c.Writer, c.Request)
}

func resultPage(result *game.Result) web.ResultPage {
	page := web.ResultPage{
		GameCode:  result.GameCode,
		CreatedAt: web.FormatTime(result.CreatedAt),
		Rows:      make([]web.ResultRow, 0, len(result.Players)),
	}
	for i, player := range result.Players {
		page.Rows = append(page.Rows, web.ResultRow{
			Rank:                i + 1,
			Name:                player.Name,
			Avatar:              player.Avatar,
			Score:               player.Score,
			Correct:             player.Correct,
			Wrong:               player.Wrong,
			AverageResponseTime: player.AverageResponseTime.StringFixed(2),
		})
	}
	return page
}
