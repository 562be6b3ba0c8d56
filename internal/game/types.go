package game

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type RoundResult string

const (
	RoundUnopened RoundResult = "unopened"
	RoundOpened   RoundResult = "opened"
)

type GameResult string

const (
	GameWin  GameResult = "win"
	GameLose GameResult = "lose"
)

type TopicMode string

const (
	TopicModeGM  TopicMode = "gm"
	TopicModeAll TopicMode = "all"
)

type WinConditionType string

const (
	WinCount       WinConditionType = "count"
	WinConsecutive WinConditionType = "consecutive"
	WinNone        WinConditionType = "none"
)

type WinCondition struct {
	Type  WinConditionType `json:"type"`
	Value int              `json:"value,omitempty"`
}

// RoomSettings is mutable only by the GM and only while the room is
// waiting. MaxRounds == 0 means unlimited rounds.
type RoomSettings struct {
	TopicMode    TopicMode    `json:"topicMode"`
	WinCondition WinCondition `json:"winCondition"`
	MaxRounds    int          `json:"maxRounds,omitempty"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	IsGM bool   `json:"isGM"`
}

type Answer struct {
	UserID      string `json:"userId"`
	Value       string `json:"value"`
	SubmittedAt int64  `json:"submittedAt"` // unix milliseconds
}

// Round moves through unopened{topic empty} -> unopened{topic set} ->
// opened{unanimous nil} -> opened{unanimous set}. Each edge is taken
// exactly once.
type Round struct {
	ID        string      `json:"id"`
	Topic     string      `json:"topic"`
	SetterID  string      `json:"setterId"`
	Answers   []Answer    `json:"answers"`
	Result    RoundResult `json:"result"`
	Unanimous *bool       `json:"unanimous"`
}

type Room struct {
	ID         string       `json:"id"`
	GMID       string       `json:"gmId"`
	Users      []User       `json:"users"`
	Settings   RoomSettings `json:"settings"`
	Status     Status       `json:"status"`
	Rounds     []Round      `json:"rounds"`
	GameResult GameResult   `json:"gameResult,omitempty"`
}

// clone deep-copies the room so snapshots and broadcast payloads never
// alias the coordinator-owned state.
func (r *Room) clone() Room {
	out := *r
	out.Users = append([]User(nil), r.Users...)
	out.Rounds = make([]Round, len(r.Rounds))
	for i := range r.Rounds {
		out.Rounds[i] = r.Rounds[i].clone()
	}
	return out
}

func (rd *Round) clone() Round {
	out := *rd
	out.Answers = append([]Answer(nil), rd.Answers...)
	if rd.Unanimous != nil {
		u := *rd.Unanimous
		out.Unanimous = &u
	}
	return out
}

func (r *Room) findRound(id string) *Round {
	for i := range r.Rounds {
		if r.Rounds[i].ID == id {
			return &r.Rounds[i]
		}
	}
	return nil
}

func (r *Room) gm() *User {
	for i := range r.Users {
		if r.Users[i].IsGM {
			return &r.Users[i]
		}
	}
	return nil
}
