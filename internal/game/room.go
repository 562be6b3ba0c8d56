package game

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RoomCtx owns the mutable state of a single room. Every operation is
// a short critical section under mu; nothing awaits mid-mutation, so
// concurrent callers can never observe a half-applied update. The only
// delayed effect is the start countdown, which re-enters through
// completeStart as an independent critical section.
type RoomCtx struct {
	mu      sync.Mutex
	room    Room
	gmToken string

	notify    Broadcaster
	countdown time.Duration

	// starting latches between the countdown broadcast and the actual
	// waiting -> playing transition so a second start is a conflict.
	starting bool
	// generation is bumped by reset; a countdown scheduled against an
	// older generation completes as a no-op.
	generation uint64
}

func newRoomCtx(roomID string, notify Broadcaster, countdown time.Duration) *RoomCtx {
	return &RoomCtx{
		room: Room{
			ID:   roomID,
			GMID: uuid.NewString(),
			Settings: RoomSettings{
				TopicMode:    TopicModeAll,
				WinCondition: WinCondition{Type: WinCount, Value: 1},
			},
			Status: StatusWaiting,
			Users:  []User{},
			Rounds: []Round{},
		},
		gmToken:   uuid.NewString(),
		notify:    notify,
		countdown: countdown,
	}
}

// Snapshot returns a deep copy of the current room state.
func (c *RoomCtx) Snapshot() Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room.clone()
}

// Join appends a non-GM user and broadcasts userJoined.
func (c *RoomCtx) Join(name, icon string) (User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addUser(name, icon, false)
}

func (c *RoomCtx) addUser(name, icon string, isGM bool) (User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name required", ErrBadRequest)
	}
	if icon == "" {
		icon = "1"
	}
	u := User{ID: uuid.NewString(), Name: name, Icon: icon, IsGM: isGM}
	c.room.Users = append(c.room.Users, u)
	if !isGM {
		c.notify.Broadcast(c.room.ID, newUserJoinedEvent(u))
	}
	return u, nil
}

// UpdateSettings merges a settings patch. Only the GM may call it, and
// only while the room is waiting.
func (c *RoomCtx) UpdateSettings(gmToken string, patch SettingsPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireGM(gmToken); err != nil {
		return err
	}
	if c.room.Status != StatusWaiting {
		return fmt.Errorf("%w: settings are frozen once the game starts", ErrConflict)
	}
	c.room.Settings = applySettingsPatch(c.room.Settings, patch)
	c.notify.Broadcast(c.room.ID, SettingsUpdatedEvent{Type: EventSettingsUpdated, Settings: c.room.Settings})
	c.notify.Broadcast(c.room.ID, NewStateEvent(c.room.clone()))
	return nil
}

// Start broadcasts the countdown and schedules the waiting -> playing
// transition. The room stays formally waiting until the countdown
// fires; operations requiring playing are rejected in that window.
func (c *RoomCtx) Start(gmToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireGM(gmToken); err != nil {
		return err
	}
	if c.room.Status != StatusWaiting || c.starting {
		return fmt.Errorf("%w: game already started", ErrConflict)
	}
	if len(c.room.Users) < 2 {
		return fmt.Errorf("%w: at least 2 players required", ErrBadRequest)
	}
	c.starting = true
	c.notify.Broadcast(c.room.ID, GameCountdownStartedEvent{Type: EventGameCountdownStarted})
	gen := c.generation
	time.AfterFunc(c.countdown, func() { c.completeStart(gen) })
	return nil
}

func (c *RoomCtx) completeStart(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || !c.starting || c.room.Status != StatusWaiting {
		return
	}
	c.starting = false
	c.room.Status = StatusPlaying
	round := c.appendRound()
	c.notify.Broadcast(c.room.ID, GameStartedEvent{Type: EventGameStarted, Room: c.room.clone()})
	c.notify.Broadcast(c.room.ID, RoundCreatedEvent{Type: EventRoundCreated, Round: round})
}

// CreateRound appends the next unopened round.
func (c *RoomCtx) CreateRound(gmToken string) (Round, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireGM(gmToken); err != nil {
		return Round{}, err
	}
	if c.room.Status != StatusPlaying {
		return Round{}, fmt.Errorf("%w: game not started", ErrConflict)
	}
	if mr := c.room.Settings.MaxRounds; mr > 0 && len(c.room.Rounds) >= mr {
		return Round{}, fmt.Errorf("%w: max rounds reached", ErrConflict)
	}
	round := c.appendRound()
	c.notify.Broadcast(c.room.ID, RoundCreatedEvent{Type: EventRoundCreated, Round: round})
	return round, nil
}

// appendRound creates a round with the rotation policy's setter and
// returns a copy for the caller. Must be called with mu held.
func (c *RoomCtx) appendRound() Round {
	round := Round{
		ID:       uuid.NewString(),
		SetterID: nextSetter(&c.room),
		Answers:  []Answer{},
		Result:   RoundUnopened,
	}
	c.room.Rounds = append(c.room.Rounds, round)
	return round.clone()
}

// SetTopic records the round's topic. Only the designated setter may
// call it, and only once per round.
func (c *RoomCtx) SetTopic(roundID, topic, setterID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	round := c.room.findRound(roundID)
	if round == nil {
		return ErrRoundNotFound
	}
	topic = strings.TrimSpace(topic)
	if topic == "" || setterID == "" {
		return fmt.Errorf("%w: setterId and topic required", ErrBadRequest)
	}
	if round.SetterID != setterID {
		return fmt.Errorf("%w: not authorized to set topic", ErrForbidden)
	}
	if round.Topic != "" {
		return fmt.Errorf("%w: topic already set", ErrConflict)
	}
	round.Topic = topic
	c.notify.Broadcast(c.room.ID, TopicSetEvent{Type: EventTopicSet, RoundID: roundID, Topic: topic})
	return nil
}

// SubmitAnswer upserts the user's answer for an unopened round. The
// broadcast reveals who has answered, never the answer values.
func (c *RoomCtx) SubmitAnswer(roundID, userID, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	round := c.room.findRound(roundID)
	if round == nil {
		return ErrRoundNotFound
	}
	if round.Result == RoundOpened {
		return fmt.Errorf("%w: round already opened", ErrConflict)
	}
	value = strings.TrimSpace(value)
	if userID == "" || value == "" {
		return fmt.Errorf("%w: userId and value required", ErrBadRequest)
	}
	kept := round.Answers[:0]
	for _, a := range round.Answers {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	round.Answers = append(kept, Answer{
		UserID:      userID,
		Value:       value,
		SubmittedAt: time.Now().UnixMilli(),
	})
	answered := make([]string, len(round.Answers))
	for i, a := range round.Answers {
		answered[i] = a.UserID
	}
	c.notify.Broadcast(c.room.ID, AnswerSubmittedEvent{
		Type:            EventAnswerSubmitted,
		RoundID:         roundID,
		UserID:          userID,
		HasAnswered:     true,
		AnsweredUserIDs: answered,
		TotalAnswers:    len(round.Answers),
		TotalUsers:      len(c.room.Users),
	})
	return nil
}

// OpenRound reveals the round's answers. GM only, once per round.
func (c *RoomCtx) OpenRound(roundID, gmToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	round := c.room.findRound(roundID)
	if round == nil {
		return ErrRoundNotFound
	}
	if err := c.requireGM(gmToken); err != nil {
		return err
	}
	if round.Result == RoundOpened {
		return fmt.Errorf("%w: round already opened", ErrConflict)
	}
	round.Result = RoundOpened
	c.notify.Broadcast(c.room.ID, RoundOpenedEvent{
		Type:    EventRoundOpened,
		RoundID: roundID,
		Answers: append([]Answer(nil), round.Answers...),
	})
	return nil
}

// JudgeResult records the GM's unanimity verdict and evaluates the win
// condition. Returns whether the game finished and the reason.
func (c *RoomCtx) JudgeResult(roundID string, unanimous bool, gmToken string) (finished bool, reason string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	round := c.room.findRound(roundID)
	if round == nil {
		return false, "", ErrRoundNotFound
	}
	if err := c.requireGM(gmToken); err != nil {
		return false, "", err
	}
	if round.Result != RoundOpened {
		return false, "", fmt.Errorf("%w: round not opened", ErrConflict)
	}
	if round.Unanimous != nil {
		return false, "", fmt.Errorf("%w: result already judged", ErrConflict)
	}
	round.Unanimous = &unanimous

	o := checkWin(&c.room)
	c.notify.Broadcast(c.room.ID, ResultJudgedEvent{Type: EventResultJudged, RoundID: roundID, Unanimous: unanimous})
	if o.terminal() {
		c.room.Status = StatusFinished
		if o.win {
			c.room.GameResult = GameWin
		} else {
			c.room.GameResult = GameLose
		}
		c.notify.Broadcast(c.room.ID, GameFinishedEvent{
			Type:       EventGameFinished,
			Room:       c.room.clone(),
			GameResult: c.room.GameResult,
		})
	}
	return o.terminal(), o.reason, nil
}

// Reset returns the room to waiting and clears the round history.
// Users persist. A countdown in flight is invalidated.
func (c *RoomCtx) Reset(gmToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireGM(gmToken); err != nil {
		return err
	}
	c.generation++
	c.starting = false
	c.room.Status = StatusWaiting
	c.room.Rounds = []Round{}
	c.room.GameResult = ""
	c.notify.Broadcast(c.room.ID, RoomResetEvent{Type: EventRoomReset, Message: "game has been reset"})
	c.notify.Broadcast(c.room.ID, NewStateEvent(c.room.clone()))
	return nil
}

// RemoveUser drops a user from the room on leave or disconnect. The GM
// is never removed, and removing an absent user is a no-op, so the
// disconnect path may fire more than once without side effects.
func (c *RoomCtx) RemoveUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.room.Users {
		if c.room.Users[i].ID != userID {
			continue
		}
		u := c.room.Users[i]
		if u.IsGM {
			return
		}
		c.room.Users = append(c.room.Users[:i], c.room.Users[i+1:]...)
		c.notify.Broadcast(c.room.ID, UserLeftEvent{Type: EventUserLeft, UserID: u.ID, UserName: u.Name})
		c.notify.Broadcast(c.room.ID, NewStateEvent(c.room.clone()))
		return
	}
}

func (c *RoomCtx) requireGM(gmToken string) error {
	if gmToken == "" || gmToken != c.gmToken {
		return ErrForbidden
	}
	return nil
}
