package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/voysta/game-services/internal/comm"
	"github.com/voysta/game-services/internal/economy"
	"github.com/voysta/game-services/internal/game"
	"github.com/voysta/game-services/internal/session"
	log "github.com/sirupsen/logrus"
)

// DefaultMinActionInterval is the server-enforced floor between two
// actions from the same binding. The client-side 15/s window is advisory
// only; this value is authoritative.
const DefaultMinActionInterval = 250 * time.Millisecond

// Sink fans a serialized envelope out to every participant of a room.
// Delivery failures are logged by the coordinator and never retried; the
// authoritative state has already changed.
type Sink interface {
	Broadcast(roomId string, msg *comm.WSMessage) error
}

type Config struct {
	MinActionInterval time.Duration
	EntryFee          int64 // added to the pot at each user's first join of a round
}

// OpError carries the wire error code for a rejected operation.
type OpError struct {
	Code    string
	Message string
}

func (e *OpError) Error() string {
	return e.Code + ": " + e.Message
}

func opErr(code, message string) *OpError {
	return &OpError{Code: code, Message: message}
}

// Binding records a live connection's claim to one (room, user, session)
// after a successful join. One binding per connection.
type Binding struct {
	ConnId    string
	RoomId    string
	UserId    int64
	SessionId string

	mu           sync.Mutex
	lastActionAt time.Time
}

type room struct {
	mu    sync.Mutex
	state *game.State
}

// Coordinator is the per-room game state machine shared by both
// transports. Transports decode envelopes, call one operation per event
// and write the returned ack; all state mutation and broadcasting
// happens here, so the socket and data-channel behaviors cannot drift.
type Coordinator struct {
	registry session.Registry
	economy  economy.Gateway
	sink     Sink
	cfg      Config

	rooms    sync.Map // roomId -> *room
	bindings sync.Map // connId -> *Binding
}

func New(registry session.Registry, eco economy.Gateway, sink Sink, cfg Config) *Coordinator {
	if cfg.MinActionInterval <= 0 {
		cfg.MinActionInterval = DefaultMinActionInterval
	}
	return &Coordinator{
		registry: registry,
		economy:  eco,
		sink:     sink,
		cfg:      cfg,
	}
}

// Join admits a user into a room's game. The session is consumed on the
// first successful validation; rejoining requires a fresh session but
// never duplicates the player entry.
func (c *Coordinator) Join(ctx context.Context, connId string, req *comm.JoinRequest) *OpError {
	if req.RoomId == "" || req.UserId == 0 || req.SessionId == "" {
		return opErr(comm.CodeActionInvalid, "room_id, user_id and session_id are required")
	}

	if !c.registry.ValidateAndConsume(ctx, req.SessionId, req.RoomId, req.UserId) {
		return opErr(comm.CodeSessionInvalid, "session missing, expired or already used")
	}

	r := c.roomFor(req.RoomId)
	r.mu.Lock()
	if r.state.AddPlayer(req.UserId, req.Name) {
		r.state.Pot += c.cfg.EntryFee
	}
	r.state.UpdatedAt = time.Now()
	snap := comm.SnapshotState(r.state)
	r.mu.Unlock()

	c.bindings.Store(connId, &Binding{
		ConnId:    connId,
		RoomId:    req.RoomId,
		UserId:    req.UserId,
		SessionId: req.SessionId,
	})

	c.broadcastState(req.RoomId, snap)
	return nil
}

// Start moves the room's round into the started phase.
func (c *Coordinator) Start(ctx context.Context, connId string, req *comm.StartRequest) *OpError {
	b, oerr := c.binding(connId, req.RoomId, req.UserId, req.SessionId)
	if oerr != nil {
		return oerr
	}

	r := c.roomFor(b.RoomId)
	r.mu.Lock()
	if r.state.Phase == game.PhaseRunning || r.state.Phase == game.PhaseEnded {
		phase := r.state.Phase
		r.mu.Unlock()
		return opErr(comm.CodeActionRejected, "cannot start while round is "+string(phase))
	}
	r.state.Phase = game.PhaseStarted
	r.state.UpdatedAt = time.Now()
	snap := comm.SnapshotState(r.state)
	r.mu.Unlock()

	c.broadcastState(b.RoomId, snap)
	return nil
}

// Action applies a player action under the server rate limit and
// broadcasts the state augmented with the action and its payload.
func (c *Coordinator) Action(ctx context.Context, connId string, req *comm.ActionRequest) *OpError {
	if req.Action == "" {
		return opErr(comm.CodeActionInvalid, "action name is required")
	}

	b, oerr := c.binding(connId, req.RoomId, req.UserId, req.SessionId)
	if oerr != nil {
		return oerr
	}

	now := time.Now()
	b.mu.Lock()
	if now.Sub(b.lastActionAt) < c.cfg.MinActionInterval {
		b.mu.Unlock()
		return opErr(comm.CodeRateLimited, "action arrived before the minimum interval")
	}
	b.lastActionAt = now
	b.mu.Unlock()

	r := c.roomFor(b.RoomId)
	r.mu.Lock()
	if r.state.Phase == game.PhaseEnded {
		r.mu.Unlock()
		return opErr(comm.CodeActionRejected, "round already ended")
	}
	p := r.state.FindPlayer(b.UserId)
	if p == nil {
		// binding survived a round reset; re-admit with a fresh score
		r.state.AddPlayer(b.UserId, "")
		p = r.state.FindPlayer(b.UserId)
	}
	p.Score += game.ScoreFor(req.Action)
	r.state.LastAction = req.Action
	r.state.LastPayload = req.Payload
	r.state.UpdatedAt = now
	snap := comm.SnapshotState(r.state)
	r.mu.Unlock()

	c.broadcastState(b.RoomId, snap)
	return nil
}

// End finishes the round: the ended state is broadcast, the pot is
// settled exactly once, winners are credited and the room resets to the
// lobby with an empty pot.
func (c *Coordinator) End(ctx context.Context, connId string, req *comm.EndRequest) *OpError {
	b, oerr := c.binding(connId, req.RoomId, req.UserId, req.SessionId)
	if oerr != nil {
		return oerr
	}

	r := c.roomFor(b.RoomId)
	r.mu.Lock()
	if r.state.Phase != game.PhaseStarted && r.state.Phase != game.PhaseRunning {
		r.mu.Unlock()
		return opErr(comm.CodeActionRejected, "no running round to end")
	}
	r.state.Phase = game.PhaseEnded
	r.state.UpdatedAt = time.Now()
	snap := comm.SnapshotState(r.state)
	outcome := game.Settle(r.state)
	r.state.Reset()
	r.mu.Unlock()

	c.broadcastState(b.RoomId, snap)
	c.distribute(ctx, outcome)
	c.broadcastReward(b.RoomId, outcome)
	return nil
}

// GiftPlay debits the full gift cost atomically before any state
// mutation; an insufficient balance leaves both the wallet and the room
// untouched.
func (c *Coordinator) GiftPlay(ctx context.Context, connId string, req *comm.GiftPlayRequest) *OpError {
	b, oerr := c.binding(connId, req.RoomId, req.UserId, req.SessionId)
	if oerr != nil {
		return oerr
	}

	if req.Quantity <= 0 {
		return opErr(comm.CodeGiftInvalid, "quantity must be positive")
	}

	unitCost, err := c.economy.ResolveGiftCost(ctx, req.GiftId)
	if err != nil {
		if errors.Is(err, economy.ErrGiftNotFound) {
			return opErr(comm.CodeGiftInvalid, "unknown gift "+req.GiftId)
		}
		log.Errorf("gift cost lookup failed for %s: %v", req.GiftId, err)
		return opErr(comm.CodeActionRejected, "economy unavailable")
	}

	totalCost := unitCost * int64(req.Quantity)
	if err := c.economy.Debit(ctx, b.UserId, totalCost); err != nil {
		if errors.Is(err, economy.ErrInsufficientBalance) {
			return opErr(comm.CodeInsufficientBalance, "balance does not cover gift cost")
		}
		log.Errorf("gift debit failed for user %d: %v", b.UserId, err)
		return opErr(comm.CodeActionRejected, "economy unavailable")
	}

	r := c.roomFor(b.RoomId)
	r.mu.Lock()
	r.state.LastGift = &game.Gift{
		GiftId:    req.GiftId,
		UserId:    b.UserId,
		Quantity:  req.Quantity,
		TotalCost: totalCost,
	}
	r.state.UpdatedAt = time.Now()
	snap := comm.SnapshotState(r.state)
	r.mu.Unlock()

	c.broadcastState(b.RoomId, snap)
	return nil
}

// Leave drops the connection's binding. The player entry stays until the
// round settles, matching the room state lifecycle.
func (c *Coordinator) Leave(connId string) {
	c.bindings.Delete(connId)
}

// Disconnect is Leave for transport-level connection loss.
func (c *Coordinator) Disconnect(connId string) {
	c.bindings.Delete(connId)
}

// Snapshot returns the room's current wire state, letting clients
// resynchronize after a missed broadcast.
func (c *Coordinator) Snapshot(roomId string) (*comm.StateUpdate, bool) {
	v, ok := c.rooms.Load(roomId)
	if !ok {
		return nil, false
	}
	r := v.(*room)
	r.mu.Lock()
	defer r.mu.Unlock()
	return comm.SnapshotState(r.state), true
}

// binding verifies the caller's claim: every post-join operation must
// match the connection's bound room, user and session exactly. A request
// that disagrees is rejected, never redirected.
func (c *Coordinator) binding(connId, roomId string, userId int64, sessionId string) (*Binding, *OpError) {
	v, ok := c.bindings.Load(connId)
	if !ok {
		return nil, opErr(comm.CodeSessionInvalid, "no session bound for this connection")
	}
	b := v.(*Binding)
	if b.RoomId != roomId || b.UserId != userId || b.SessionId != sessionId {
		return nil, opErr(comm.CodeSessionInvalid, "request does not match the bound session")
	}
	return b, nil
}

func (c *Coordinator) roomFor(roomId string) *room {
	v, _ := c.rooms.LoadOrStore(roomId, &room{state: game.NewState(roomId)})
	return v.(*room)
}

func (c *Coordinator) distribute(ctx context.Context, outcome *game.Outcome) {
	for userId, amount := range outcome.Rewards {
		if amount == 0 {
			continue
		}
		if err := c.economy.Credit(ctx, userId, amount); err != nil {
			log.Errorf("reward credit failed for user %d in room %s: %v", userId, outcome.RoomId, err)
		}
	}
}

func (c *Coordinator) broadcastState(roomId string, snap *comm.StateUpdate) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Errorf("unable to marshal state for room %s: %v", roomId, err)
		return
	}
	c.broadcast(roomId, &comm.WSMessage{Type: comm.TypeStateUpdate, Data: data, RoomId: roomId})
}

func (c *Coordinator) broadcastReward(roomId string, outcome *game.Outcome) {
	notice := comm.RewardNotice{
		RoomId:           outcome.RoomId,
		Status:           outcome.Status,
		Rewards:          outcome.Rewards,
		TotalDistributed: outcome.TotalDistributed,
	}
	data, err := json.Marshal(notice)
	if err != nil {
		log.Errorf("unable to marshal reward for room %s: %v", roomId, err)
		return
	}
	c.broadcast(roomId, &comm.WSMessage{Type: comm.TypeReward, Data: data, RoomId: roomId})
}

// broadcast is fire-and-forget: a failed delivery is logged and the
// state mutation that triggered it stands.
func (c *Coordinator) broadcast(roomId string, env *comm.WSMessage) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Broadcast(roomId, env); err != nil {
		log.Errorf("broadcast to room %s failed: %v", roomId, err)
	}
}
