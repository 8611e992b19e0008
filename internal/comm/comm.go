package comm

import (
	"encoding/json"
	"time"

	"github.com/voysta/game-services/internal/game"
)

// WSMessage is the wire envelope shared by the socket transport and the
// NATS data channel. SocketId addresses one client connection, RoomId
// addresses every participant of a room.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "join", "state_update"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
	RoomId   string          `json:"roomid,omitempty"`
}

// Inbound event types.
const (
	TypeJoin     = "join"
	TypeStart    = "start"
	TypeAction   = "action"
	TypeEnd      = "end"
	TypeGiftPlay = "gift_play"
	TypeLeave    = "leave"
)

// Outbound event types.
const (
	TypeJoined      = "joined"
	TypeAck         = "ack"
	TypeStateUpdate = "state_update"
	TypeReward      = "reward"
	TypeError       = "error"
)

// Error codes carried in acks and error events.
const (
	CodeSessionInvalid      = "session_invalid"
	CodeActionInvalid       = "action_invalid"
	CodeActionRejected      = "action_rejected"
	CodeRateLimited         = "rate_limited"
	CodeInsufficientBalance = "insufficient_balance"
	CodeGiftInvalid         = "gift_invalid"
	CodeRoomNotFound        = "room_not_found"
	CodeUserNotFound        = "user_not_found"
)

type JoinRequest struct {
	RoomId    string `json:"room_id"`
	UserId    int64  `json:"user_id"`
	SessionId string `json:"session_id"`
	Name      string `json:"name,omitempty"`
}

type StartRequest struct {
	RoomId    string `json:"room_id"`
	UserId    int64  `json:"user_id"`
	SessionId string `json:"session_id"`
}

type ActionRequest struct {
	RoomId    string          `json:"room_id"`
	UserId    int64           `json:"user_id"`
	SessionId string          `json:"session_id"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type EndRequest struct {
	RoomId    string `json:"room_id"`
	UserId    int64  `json:"user_id"`
	SessionId string `json:"session_id"`
}

type GiftPlayRequest struct {
	RoomId    string `json:"room_id"`
	UserId    int64  `json:"user_id"`
	SessionId string `json:"session_id"`
	GiftId    string `json:"gift_id"`
	Quantity  int    `json:"quantity"`
}

// Ack is the per-request acknowledgement payload.
type Ack struct {
	Status  string `json:"status"` // "ok" | "error"
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func OkAck() *Ack {
	return &Ack{Status: "ok"}
}

func ErrorAck(code, message string) *Ack {
	return &Ack{Status: "error", Code: code, Message: message}
}

// StateUpdate is the state_update payload pushed to all room participants.
type StateUpdate struct {
	RoomId     string          `json:"room_id"`
	Phase      game.Phase      `json:"phase"`
	Players    []*game.Player  `json:"players"`
	UpdatedAt  int64           `json:"updated_at"` // unix millis
	TimeLeft   int             `json:"time_left"`
	Pot        int64           `json:"pot"`
	LastAction string          `json:"last_action,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Gift       *game.Gift      `json:"gift,omitempty"`
}

// SnapshotState projects the authoritative state into its wire form.
// Players are copied so a later mutation cannot race a pending encode.
func SnapshotState(s *game.State) *StateUpdate {
	players := make([]*game.Player, len(s.Players))
	for i, p := range s.Players {
		cp := *p
		players[i] = &cp
	}
	return &StateUpdate{
		RoomId:     s.RoomId,
		Phase:      s.Phase,
		Players:    players,
		UpdatedAt:  s.UpdatedAt.UnixMilli(),
		TimeLeft:   s.TimeLeft,
		Pot:        s.Pot,
		LastAction: s.LastAction,
		Payload:    s.LastPayload,
		Gift:       s.LastGift,
	}
}

// RewardNotice is the terminal payload of a settled round.
type RewardNotice struct {
	RoomId           string          `json:"room_id"`
	Status           string          `json:"status"`
	Rewards          map[int64]int64 `json:"rewards"`
	TotalDistributed int64           `json:"total_distributed"`
}

// SessionGrant is the REST response for a freshly issued game session.
type SessionGrant struct {
	RoomId    string    `json:"room_id"`
	UserId    int64     `json:"user_id"`
	SessionId string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
