package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// DefaultCountdown is the delay between the start broadcast and the
// actual waiting -> playing transition.
const DefaultCountdown = 1500 * time.Millisecond

// Manager maps room ids to their coordinators. Rooms are fully
// independent; the manager lock only guards the lookup table.
type Manager struct {
	mu        sync.RWMutex
	rooms     map[string]*RoomCtx
	notify    Broadcaster
	countdown time.Duration
}

func NewManager(notify Broadcaster, countdown time.Duration) *Manager {
	if countdown <= 0 {
		countdown = DefaultCountdown
	}
	return &Manager{
		rooms:     make(map[string]*RoomCtx),
		notify:    notify,
		countdown: countdown,
	}
}

// CreatedRoom is the response to a successful room creation.
type CreatedRoom struct {
	RoomID   string `json:"roomId"`
	GMID     string `json:"gmId"`
	GMToken  string `json:"gmToken"`
	GMUserID string `json:"gmUserId"`
}

// CreateRoom allocates a room and registers its creator as the GM.
// An empty roomID picks a free 4-digit id.
func (m *Manager) CreateRoom(roomID, name, icon string) (CreatedRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if roomID == "" {
		roomID = randomRoomID()
		for m.rooms[roomID] != nil {
			roomID = randomRoomID()
		}
	} else if m.rooms[roomID] != nil {
		return CreatedRoom{}, fmt.Errorf("%w: room %s already exists", ErrConflict, roomID)
	}

	c := newRoomCtx(roomID, m.notify, m.countdown)
	c.mu.Lock()
	gm, err := c.addUser(name, icon, true)
	c.mu.Unlock()
	if err != nil {
		return CreatedRoom{}, err
	}

	m.rooms[roomID] = c
	return CreatedRoom{
		RoomID:   roomID,
		GMID:     c.room.GMID,
		GMToken:  c.gmToken,
		GMUserID: gm.ID,
	}, nil
}

// Get looks up the coordinator for a room id.
func (m *Manager) Get(roomID string) (*RoomCtx, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.rooms[roomID]
	if c == nil {
		return nil, ErrRoomNotFound
	}
	return c, nil
}

// randomRoomID returns a 4-digit numeric room id.
func randomRoomID() string {
	return fmt.Sprintf("%04d", rand.Intn(9000)+1000)
}
