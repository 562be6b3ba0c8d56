// Package api maps the REST surface onto room coordinator operations.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/icchi-game/icchi/internal/game"
	"github.com/icchi-game/icchi/internal/ws"
)

type Server struct {
	rooms     *game.Manager
	socket    *ws.Server
	publicURL string
}

func New(rooms *game.Manager, socket *ws.Server, publicURL string) *Server {
	return &Server{rooms: rooms, socket: socket, publicURL: strings.TrimRight(publicURL, "/")}
}

// Mount attaches all routes to the given engine.
func (s *Server) Mount(r *gin.Engine) {
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := r.Group("/api")
	api.POST("/rooms", s.createRoom)
	api.POST("/rooms/:id/join", s.joinRoom)
	api.GET("/rooms/:id/state", s.getState)
	api.PATCH("/rooms/:id/settings", s.updateSettings)
	api.POST("/rooms/:id/settings", s.updateSettings)
	api.POST("/rooms/:id/start", s.startGame)
	api.POST("/rooms/:id/round", s.createRound)
	api.POST("/rooms/:id/round/:roundId/topic", s.setTopic)
	api.POST("/rooms/:id/round/:roundId/answer", s.submitAnswer)
	api.POST("/rooms/:id/round/:roundId/open", s.openRound)
	api.POST("/rooms/:id/round/:roundId/result", s.judgeResult)
	api.POST("/rooms/:id/reset", s.resetRoom)
	api.GET("/rooms/:id/qr", s.shareQR)

	r.GET("/ws/:id", s.socket.Handle)
}

func (s *Server) createRoom(c *gin.Context) {
	var req struct {
		RoomID string `json:"roomId"`
		Name   string `json:"name"`
		Icon   string `json:"icon"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	created, err := s.rooms.CreateRoom(req.RoomID, req.Name, req.Icon)
	if err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("room", created.RoomID).Msg("room created")
	c.JSON(http.StatusOK, created)
}

func (s *Server) joinRoom(c *gin.Context) {
	room, err := s.rooms.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var req struct {
		Name string `json:"name"`
		Icon string `json:"icon"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := room.Join(req.Name, req.Icon)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": user.ID})
}

func (s *Server) getState(c *gin.Context) {
	room, err := s.rooms.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room.Snapshot())
}

func (s *Server) updateSettings(c *gin.Context) {
	room, err := s.rooms.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var req struct {
		GMToken  string             `json:"gmToken"`
		Settings game.SettingsPatch `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := room.UpdateSettings(req.GMToken, req.Settings); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) startGame(c *gin.Context) {
	room, err := s.rooms.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var req struct {
		GMToken string `json:"gmToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := room.Start(req.GMToken); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) createRound(c *gin.Context) {
	room, err := s.rooms.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var req struct {
		GMToken string `json:"gmToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	round, err := room.CreateRound(req.GMToken)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roundId": round.ID})
}

func (s *Server) setTopic(c *gin.Context) {
	room, err := s.rooms.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var req struct {
		Topic    string `json:"topic"`
		SetterID string `json:"setterId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := room.SetTopic(c.Param("roundId"), req.Topic, req.SetterID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) submitAnswer(c *gin.Context) {
	room, err := s.rooms.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var req struct {
		UserID string `json:"userId"`
		Value  string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := room.SubmitAnswer(c.Param("roundId"), req.UserID, req.Value); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) openRound(c *gin.Context) {
	room, err := s.rooms.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var req struct {
		GMToken string `json:"gmToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := room.OpenRound(c.Param("roundId"), req.GMToken); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) judgeResult(c *gin.Context) {
	room, err := s.rooms.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var req struct {
		Unanimous *bool  `json:"unanimous"`
		GMToken   string `json:"gmToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Unanimous == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unanimous must be boolean"})
		return
	}
	finished, reason, err := room.JudgeResult(c.Param("roundId"), *req.Unanimous, req.GMToken)
	if err != nil {
		fail(c, err)
		return
	}
	resp := gin.H{"ok": true, "gameFinished": finished}
	if reason != "" {
		resp["reason"] = reason
	}
	c.JSON(http.StatusOK, resp)
}

// resetRoom takes the GM token from the Authorization header (Bearer)
// or the X-Gm-Token header rather than the body.
func (s *Server) resetRoom(c *gin.Context) {
	room, err := s.rooms.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	token := ""
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	} else {
		token = c.GetHeader("X-Gm-Token")
	}
	if err := room.Reset(token); err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("room", c.Param("id")).Msg("room reset")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// shareQR renders a QR code pointing a phone at the room page.
func (s *Server) shareQR(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := s.rooms.Get(roomID); err != nil {
		fail(c, err)
		return
	}
	size := 256
	if v := c.Query("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 64 && n <= 1024 {
			size = n
		}
	}
	png, err := qrcode.Encode(s.publicURL+"/room/"+roomID, qrcode.Medium, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate qr code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrRoomNotFound), errors.Is(err, game.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, game.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, game.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
