package game

import (
	"encoding/json"
	"time"
)

type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseStarted Phase = "started"
	PhaseRunning Phase = "running"
	PhaseEnded   Phase = "ended"
)

type Player struct {
	UserId int64  `json:"user_id"`
	Name   string `json:"name"`
	Score  int64  `json:"score"`
}

// Gift describes the most recent gift-play applied to a room, broadcast
// to participants alongside the state.
type Gift struct {
	GiftId    string `json:"gift_id"`
	UserId    int64  `json:"user_id"`
	Quantity  int    `json:"quantity"`
	TotalCost int64  `json:"total_cost"`
}

// State is the authoritative per-room game state. Players keep join
// order and never contain the same user twice.
type State struct {
	RoomId      string          `json:"room_id"`
	Phase       Phase           `json:"phase"`
	Players     []*Player       `json:"players"`
	TimeLeft    int             `json:"time_left"`
	Pot         int64           `json:"pot"`
	UpdatedAt   time.Time       `json:"updated_at"`
	LastAction  string          `json:"last_action,omitempty"`
	LastPayload json.RawMessage `json:"payload,omitempty"`
	LastGift    *Gift           `json:"gift,omitempty"`
}

func NewState(roomId string) *State {
	return &State{
		RoomId:    roomId,
		Phase:     PhaseLobby,
		UpdatedAt: time.Now(),
	}
}

// AddPlayer appends the user to the player list if not already present.
// Returns false when the user was already playing.
func (s *State) AddPlayer(userId int64, name string) bool {
	if s.FindPlayer(userId) != nil {
		return false
	}
	s.Players = append(s.Players, &Player{UserId: userId, Name: name})
	return true
}

func (s *State) FindPlayer(userId int64) *Player {
	for _, p := range s.Players {
		if p.UserId == userId {
			return p
		}
	}
	return nil
}

// Reset clears the round: players discarded, pot zeroed, back to lobby.
func (s *State) Reset() {
	s.Phase = PhaseLobby
	s.Players = nil
	s.TimeLeft = 0
	s.Pot = 0
	s.LastAction = ""
	s.LastPayload = nil
	s.LastGift = nil
	s.UpdatedAt = time.Now()
}
