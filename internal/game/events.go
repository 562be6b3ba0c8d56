package game

// Server-to-client events, one tagged JSON variant per struct. The
// constructors below pin the type tag so a payload can never go out
// with the wrong discriminator.
const (
	EventState                 = "state"
	EventUserJoined            = "userJoined"
	EventUserLeft              = "userLeft"
	EventGameCountdownStarted  = "gameCountdownStarted"
	EventGameStarted           = "gameStarted"
	EventRoundCreated          = "roundCreated"
	EventTopicSet              = "topicSet"
	EventAnswerSubmitted       = "answerSubmitted"
	EventRoundOpened           = "roundOpened"
	EventResultJudged          = "resultJudged"
	EventGameFinished          = "gameFinished"
	EventSettingsUpdated       = "settingsUpdated"
	EventRoomReset             = "roomReset"
	EventError                 = "error"
)

type StateEvent struct {
	Type string `json:"type"`
	Room Room   `json:"room"`
}

type UserJoinedEvent struct {
	Type string `json:"type"`
	User User   `json:"user"`
}

type UserLeftEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type GameCountdownStartedEvent struct {
	Type string `json:"type"`
}

type GameStartedEvent struct {
	Type string `json:"type"`
	Room Room   `json:"room"`
}

type RoundCreatedEvent struct {
	Type  string `json:"type"`
	Round Round  `json:"round"`
}

type TopicSetEvent struct {
	Type    string `json:"type"`
	RoundID string `json:"roundId"`
	Topic   string `json:"topic"`
}

type AnswerSubmittedEvent struct {
	Type            string   `json:"type"`
	RoundID         string   `json:"roundId"`
	UserID          string   `json:"userId"`
	HasAnswered     bool     `json:"hasAnswered"`
	AnsweredUserIDs []string `json:"answeredUserIds"`
	TotalAnswers    int      `json:"totalAnswers"`
	TotalUsers      int      `json:"totalUsers"`
}

type RoundOpenedEvent struct {
	Type    string   `json:"type"`
	RoundID string   `json:"roundId"`
	Answers []Answer `json:"answers"`
}

type ResultJudgedEvent struct {
	Type      string `json:"type"`
	RoundID   string `json:"roundId"`
	Unanimous bool   `json:"unanimous"`
}

type GameFinishedEvent struct {
	Type       string     `json:"type"`
	Room       Room       `json:"room"`
	GameResult GameResult `json:"gameResult"`
}

type SettingsUpdatedEvent struct {
	Type     string       `json:"type"`
	Settings RoomSettings `json:"settings"`
}

type RoomResetEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewStateEvent(room Room) StateEvent { return StateEvent{Type: EventState, Room: room} }

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: message}
}

func newUserJoinedEvent(u User) UserJoinedEvent {
	return UserJoinedEvent{Type: EventUserJoined, User: u}
}

// ClientMessage is an inbound message on the persistent channel.
type ClientMessage struct {
	Type   string `json:"type"` // "ping" | "join" | "leave"
	Name   string `json:"name,omitempty"`
	Icon   string `json:"icon,omitempty"`
	UserID string `json:"userId,omitempty"`
}

const (
	ClientPing  = "ping"
	ClientJoin  = "join"
	ClientLeave = "leave"
)

// Broadcaster fans an event out to every connection subscribed to a
// room. Implementations must not block the caller on slow receivers;
// the coordinator invokes it while holding the room lock so that
// events are handed over in commit order.
type Broadcaster interface {
	Broadcast(roomID string, event any)
}
