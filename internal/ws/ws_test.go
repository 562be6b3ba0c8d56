package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icchi-game/icchi/internal/game"
)

type testStack struct {
	hub     *Hub
	rooms   *game.Manager
	httpSrv *httptest.Server
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	rooms := game.NewManager(hub, 5*time.Millisecond)
	socket := NewServer(hub, rooms)

	r := gin.New()
	r.GET("/ws/:id", socket.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testStack{hub: hub, rooms: rooms, httpSrv: srv}
}

func (s *testStack) dial(t *testing.T, roomID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + "/ws/" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func sendMessage(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestSnapshotOnConnect(t *testing.T) {
	s := newTestStack(t)
	created, err := s.rooms.CreateRoom("", "Alice", "1")
	require.NoError(t, err)

	conn := s.dial(t, created.RoomID)
	ev := readEvent(t, conn)
	assert.Equal(t, game.EventState, ev["type"])

	room := ev["room"].(map[string]any)
	assert.Equal(t, created.RoomID, room["id"])
	assert.Equal(t, "waiting", room["status"])
}

func TestConnectUnknownRoom(t *testing.T) {
	s := newTestStack(t)
	url := "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + "/ws/0000"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestPingReturnsState(t *testing.T) {
	s := newTestStack(t)
	created, err := s.rooms.CreateRoom("", "Alice", "1")
	require.NoError(t, err)

	conn := s.dial(t, created.RoomID)
	readEvent(t, conn) // initial snapshot

	sendMessage(t, conn, map[string]any{"type": "ping"})
	ev := readEvent(t, conn)
	assert.Equal(t, game.EventState, ev["type"])
}

func TestJoinOverSocketBroadcasts(t *testing.T) {
	s := newTestStack(t)
	created, err := s.rooms.CreateRoom("", "Alice", "1")
	require.NoError(t, err)

	conn1 := s.dial(t, created.RoomID)
	conn2 := s.dial(t, created.RoomID)
	readEvent(t, conn1)
	readEvent(t, conn2)

	sendMessage(t, conn1, map[string]any{"type": "join", "name": "Bob", "icon": "2"})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		ev := readEvent(t, conn)
		require.Equal(t, game.EventUserJoined, ev["type"])
		user := ev["user"].(map[string]any)
		assert.Equal(t, "Bob", user["name"])
		assert.Equal(t, false, user["isGM"])
	}

	room, err := s.rooms.Get(created.RoomID)
	require.NoError(t, err)
	assert.Len(t, room.Snapshot().Users, 2)
}

func TestDisconnectRemovesSocketJoinedUser(t *testing.T) {
	s := newTestStack(t)
	created, err := s.rooms.CreateRoom("", "Alice", "1")
	require.NoError(t, err)
	room, err := s.rooms.Get(created.RoomID)
	require.NoError(t, err)

	conn1 := s.dial(t, created.RoomID)
	conn2 := s.dial(t, created.RoomID)
	readEvent(t, conn1)
	readEvent(t, conn2)

	sendMessage(t, conn1, map[string]any{"type": "join", "name": "Bob", "icon": "2"})
	readEvent(t, conn1) // userJoined echo
	readEvent(t, conn2)

	conn1.Close()

	ev := readEvent(t, conn2)
	require.Equal(t, game.EventUserLeft, ev["type"])
	assert.Equal(t, "Bob", ev["userName"])
	ev = readEvent(t, conn2)
	assert.Equal(t, game.EventState, ev["type"])

	require.Eventually(t, func() bool {
		return len(room.Snapshot().Users) == 1
	}, time.Second, time.Millisecond)
	assert.True(t, room.Snapshot().Users[0].IsGM)
}

func TestViewerDisconnectLeavesRoomUntouched(t *testing.T) {
	s := newTestStack(t)
	created, err := s.rooms.CreateRoom("", "Alice", "1")
	require.NoError(t, err)
	room, err := s.rooms.Get(created.RoomID)
	require.NoError(t, err)

	// a connection that never joined carries no user association
	conn := s.dial(t, created.RoomID)
	readEvent(t, conn)
	conn.Close()

	require.Eventually(t, func() bool {
		return s.hub.ConnectionCount(created.RoomID) == 0
	}, time.Second, time.Millisecond)
	assert.Len(t, room.Snapshot().Users, 1)
}

func TestLeaveMessage(t *testing.T) {
	s := newTestStack(t)
	created, err := s.rooms.CreateRoom("", "Alice", "1")
	require.NoError(t, err)
	room, err := s.rooms.Get(created.RoomID)
	require.NoError(t, err)
	bob, err := room.Join("Bob", "1")
	require.NoError(t, err)

	conn := s.dial(t, created.RoomID)
	readEvent(t, conn)

	sendMessage(t, conn, map[string]any{"type": "leave", "userId": bob.ID})

	ev := readEvent(t, conn)
	require.Equal(t, game.EventUserLeft, ev["type"])
	assert.Equal(t, bob.ID, ev["userId"])

	require.Eventually(t, func() bool {
		return len(room.Snapshot().Users) == 1
	}, time.Second, time.Millisecond)
}

func TestMalformedMessageErrorsOffenderOnly(t *testing.T) {
	s := newTestStack(t)
	created, err := s.rooms.CreateRoom("", "Alice", "1")
	require.NoError(t, err)

	conn1 := s.dial(t, created.RoomID)
	conn2 := s.dial(t, created.RoomID)
	readEvent(t, conn1)
	readEvent(t, conn2)

	require.NoError(t, conn1.WriteMessage(websocket.TextMessage, []byte("{not json")))

	ev := readEvent(t, conn1)
	assert.Equal(t, game.EventError, ev["type"])
	assert.Equal(t, "bad message", ev["message"])

	// the offending message reaches nobody else
	require.NoError(t, conn2.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = conn2.ReadMessage()
	assert.Error(t, err)
}

// stalledClient registers a connection whose write pump never runs, so
// its send queue only fills up.
func stalledClient(t *testing.T, s *testStack, roomID string) *Client {
	t.Helper()
	room, err := s.rooms.Get(roomID)
	require.NoError(t, err)

	registered := make(chan *Client, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := newClient(s.hub, room, roomID, conn)
		s.hub.add(roomID, c)
		registered <- c
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return <-registered
}

func TestStalledConnectionPrunedWithoutBlockingBroadcast(t *testing.T) {
	s := newTestStack(t)
	created, err := s.rooms.CreateRoom("", "Alice", "1")
	require.NoError(t, err)
	room, err := s.rooms.Get(created.RoomID)
	require.NoError(t, err)

	healthy := s.dial(t, created.RoomID)
	readEvent(t, healthy)

	bob, err := room.Join("Bob", "2")
	require.NoError(t, err)
	ev := readEvent(t, healthy)
	require.Equal(t, game.EventUserJoined, ev["type"])

	stalled := stalledClient(t, s, created.RoomID)
	stalled.setUser(bob.ID)
	for i := 0; i < sendQueueSize; i++ {
		stalled.enqueue([]byte(`{}`))
	}

	// the next coordinator broadcast overflows the stalled queue; the
	// operation must still return and deliver to the healthy connection
	joined := make(chan error, 1)
	go func() {
		_, err := room.Join("Carol", "3")
		joined <- err
	}()
	select {
	case err := <-joined:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("join blocked on a stalled connection")
	}

	ev = readEvent(t, healthy)
	require.Equal(t, game.EventUserJoined, ev["type"])
	assert.Equal(t, "Carol", ev["user"].(map[string]any)["name"])

	// the stalled connection is dropped and its joined user removed
	ev = readEvent(t, healthy)
	require.Equal(t, game.EventUserLeft, ev["type"])
	assert.Equal(t, bob.ID, ev["userId"])

	require.Eventually(t, func() bool {
		snap := room.Snapshot()
		return len(snap.Users) == 2 && s.hub.ConnectionCount(created.RoomID) == 1
	}, time.Second, time.Millisecond)
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	s := newTestStack(t)
	created, err := s.rooms.CreateRoom("", "Alice", "1")
	require.NoError(t, err)
	room, err := s.rooms.Get(created.RoomID)
	require.NoError(t, err)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = s.dial(t, created.RoomID)
		readEvent(t, conns[i])
	}

	_, err = room.Join("Bob", "1")
	require.NoError(t, err)

	for _, conn := range conns {
		ev := readEvent(t, conn)
		assert.Equal(t, game.EventUserJoined, ev["type"])
	}
}
