package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"quiz-live/internal/game"
)

type finalizeRequest struct {
	PlayerID  string `json:"player_id" binding:"required,max=64"`
	HostToken string `json:"host_token" binding:"required,max=64"`
}

type qrQuery struct {
	Size int `form:"size" binding:"omitempty,min=64,max=1024"`
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	snap, err := s.engine.CreateRoom(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info("room created via api", "code", snap.Code)
	c.JSON(http.StatusCreated, gin.H{
		"code":     snap.Code,
		"join_url": s.joinURL(snap.Code),
		"qr_url":   "/api/rooms/" + snap.Code + "/qr",
		"room":     snap,
	})
}

func (s *Server) handleGetRoom(c *gin.Context) {
	code, ok := bindRoom(c)
	if !ok {
		return
	}
	snap, found, err := s.engine.Snapshot(c.Request.Context(), code)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !found {
		s.respondError(c, game.ErrRoomNotFound)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	code, ok := bindRoom(c)
	if !ok {
		return
	}
	entries, err := s.engine.Leaderboard(c.Request.Context(), code)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "entries": entries})
}

func (s *Server) handleResult(c *gin.Context) {
	code, ok := bindRoom(c)
	if !ok {
		return
	}
	result, found, err := s.engine.Result(c.Request.Context(), code)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleFinalize(c *gin.Context) {
	code, ok := bindRoom(c)
	if !ok {
		return
	}
	var req finalizeRequest
	if !bindJSON(c, &req, bindMessages{
		"PlayerID":  {"required": "player_id is required"},
		"HostToken": {"required": "host_token is required"},
	}, "") {
		return
	}
	auth := game.HostAuth{PlayerID: req.PlayerID, Token: req.HostToken}
	if err := s.engine.Finalize(c.Request.Context(), code, auth); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "finalized": true})
}

func (s *Server) handleQRCode(c *gin.Context) {
	code, ok := bindRoom(c)
	if !ok {
		return
	}
	var query qrQuery
	if !bindQuery(c, &query) {
		return
	}
	size := query.Size
	if size == 0 {
		size = 256
	}
	png, err := qrcode.Encode(s.joinURL(code), qrcode.Medium, size)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) joinURL(code string) string {
	return s.cfg.BaseURL + "/?code=" + code
}
