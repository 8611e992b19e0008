package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/voysta/game-services/internal/comm"
	"github.com/voysta/game-services/internal/game"
	log "github.com/sirupsen/logrus"
)

var ErrThrottled = errors.New("client throttle exceeded")

// Event is one incoming transport event, already decoded.
type Event struct {
	Type   string
	Ack    *comm.Ack
	State  *comm.StateUpdate
	Reward *comm.RewardNotice
}

// Transport hides which wire the bridge talks over: websocket, the media
// data channel, or the in-process simulation.
type Transport interface {
	Connect(ctx context.Context) (<-chan Event, error)
	Send(ctx context.Context, msgType string, payload interface{}) error
	Disconnect() error
}

// UIState is the projection the mobile screens render from.
type UIState struct {
	Joined   bool
	Phase    game.Phase
	Players  []*game.Player
	Score    int64
	TimeLeft int
	Pot      int64
	Message  string
}

// Bridge wraps a transport, throttles outgoing actions and folds
// incoming events into a UI-facing state.
type Bridge struct {
	transport Transport
	throttle  *Throttle

	mu        sync.Mutex
	ui        UIState
	roomId    string
	userId    int64
	sessionId string
}

func NewBridge(t Transport) *Bridge {
	return &Bridge{
		transport: t,
		throttle:  NewThrottle(DefaultThrottleWindow, DefaultMaxActions),
	}
}

// Connect opens the transport and starts projecting its events.
func (b *Bridge) Connect(ctx context.Context) error {
	events, err := b.transport.Connect(ctx)
	if err != nil {
		return err
	}
	go func() {
		for ev := range events {
			b.project(ev)
		}
	}()
	return nil
}

func (b *Bridge) Join(ctx context.Context, roomId string, userId int64, sessionId, name string) error {
	b.mu.Lock()
	b.roomId = roomId
	b.userId = userId
	b.sessionId = sessionId
	b.mu.Unlock()

	return b.transport.Send(ctx, comm.TypeJoin, &comm.JoinRequest{
		RoomId:    roomId,
		UserId:    userId,
		SessionId: sessionId,
		Name:      name,
	})
}

func (b *Bridge) Start(ctx context.Context) error {
	roomId, userId, sessionId := b.identity()
	return b.transport.Send(ctx, comm.TypeStart, &comm.StartRequest{
		RoomId:    roomId,
		UserId:    userId,
		SessionId: sessionId,
	})
}

// SendAction dispatches an action under the client-side throttle.
func (b *Bridge) SendAction(ctx context.Context, action string, payload json.RawMessage) error {
	if !b.throttle.Allow() {
		return ErrThrottled
	}
	roomId, userId, sessionId := b.identity()
	return b.transport.Send(ctx, comm.TypeAction, &comm.ActionRequest{
		RoomId:    roomId,
		UserId:    userId,
		SessionId: sessionId,
		Action:    action,
		Payload:   payload,
	})
}

func (b *Bridge) SendGiftPlay(ctx context.Context, giftId string, quantity int) error {
	roomId, userId, sessionId := b.identity()
	return b.transport.Send(ctx, comm.TypeGiftPlay, &comm.GiftPlayRequest{
		RoomId:    roomId,
		UserId:    userId,
		SessionId: sessionId,
		GiftId:    giftId,
		Quantity:  quantity,
	})
}

func (b *Bridge) End(ctx context.Context) error {
	roomId, userId, sessionId := b.identity()
	return b.transport.Send(ctx, comm.TypeEnd, &comm.EndRequest{
		RoomId:    roomId,
		UserId:    userId,
		SessionId: sessionId,
	})
}

func (b *Bridge) Leave(ctx context.Context) error {
	return b.transport.Send(ctx, comm.TypeLeave, nil)
}

func (b *Bridge) Disconnect() error {
	return b.transport.Disconnect()
}

// UI returns a copy of the current projection.
func (b *Bridge) UI() UIState {
	b.mu.Lock()
	defer b.mu.Unlock()

	ui := b.ui
	ui.Players = make([]*game.Player, len(b.ui.Players))
	for i, p := range b.ui.Players {
		cp := *p
		ui.Players[i] = &cp
	}
	return ui
}

func (b *Bridge) identity() (string, int64, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.roomId, b.userId, b.sessionId
}

func (b *Bridge) project(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Type {
	case comm.TypeJoined:
		b.ui.Joined = true
		b.ui.Message = "joined room " + b.roomId

	case comm.TypeStateUpdate:
		if ev.State == nil {
			return
		}
		b.ui.Phase = ev.State.Phase
		b.ui.Players = ev.State.Players
		b.ui.TimeLeft = ev.State.TimeLeft
		b.ui.Pot = ev.State.Pot
		for _, p := range ev.State.Players {
			if p.UserId == b.userId {
				b.ui.Score = p.Score
			}
		}

	case comm.TypeReward:
		if ev.Reward == nil {
			return
		}
		b.ui.Phase = game.PhaseLobby
		b.ui.TimeLeft = 0
		b.ui.Pot = 0
		if amount, ok := ev.Reward.Rewards[b.userId]; ok {
			b.ui.Message = fmt.Sprintf("round over, you won %d coins", amount)
		} else {
			b.ui.Message = "round over"
		}

	case comm.TypeError:
		if ev.Ack == nil {
			return
		}
		b.ui.Message = ev.Ack.Code
		log.Warnf("server rejected request: %s %s", ev.Ack.Code, ev.Ack.Message)

	case comm.TypeAck:
		// ok acks carry no UI change
	}
}
