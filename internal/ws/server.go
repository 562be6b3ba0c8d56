package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/icchi-game/icchi/internal/game"
)

// Server upgrades HTTP requests to room-scoped websockets.
type Server struct {
	hub      *Hub
	rooms    *game.Manager
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, rooms *game.Manager) *Server {
	return &Server{
		hub:   hub,
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle is the gin handler for GET /ws/:id. The new connection gets a
// full state snapshot immediately so a late joiner needs no deltas to
// become consistent.
func (s *Server) Handle(c *gin.Context) {
	roomID := c.Param("id")
	room, err := s.rooms.Get(roomID)
	if err != nil {
		c.String(http.StatusNotFound, "room not found")
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("websocket upgrade failed")
		return
	}

	client := newClient(s.hub, room, roomID, conn)
	s.hub.add(roomID, client)
	client.sendEvent(game.NewStateEvent(room.Snapshot()))
	log.Info().Str("room", roomID).Int("connections", s.hub.ConnectionCount(roomID)).Msg("socket connected")

	go client.writePump()
	client.readPump()
}
