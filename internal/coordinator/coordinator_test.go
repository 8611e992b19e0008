package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voysta/game-services/internal/comm"
	"github.com/voysta/game-services/internal/economy"
	"github.com/voysta/game-services/internal/game"
	"github.com/voysta/game-services/internal/session"
)

type captureSink struct {
	mu   sync.Mutex
	fail bool
	envs []*comm.WSMessage
}

func (s *captureSink) Broadcast(roomId string, env *comm.WSMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.envs = append(s.envs, env)
	return nil
}

func (s *captureSink) countByType(msgType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, env := range s.envs {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

func newTestCoordinator() (*Coordinator, *session.MemoryRegistry, *economy.MemoryGateway, *captureSink) {
	reg := session.NewMemoryRegistry(time.Minute, 0)
	eco := economy.NewMemoryGateway()
	sink := &captureSink{}
	coord := New(reg, eco, sink, Config{
		MinActionInterval: 50 * time.Millisecond,
		EntryFee:          100,
	})
	return coord, reg, eco, sink
}

func mustJoin(t *testing.T, coord *Coordinator, reg *session.MemoryRegistry, connId, roomId string, userId int64) string {
	t.Helper()
	sess, err := reg.Create(context.Background(), roomId, userId)
	if err != nil {
		t.Fatalf("session create failed: %v", err)
	}
	oerr := coord.Join(context.Background(), connId, &comm.JoinRequest{
		RoomId:    roomId,
		UserId:    userId,
		SessionId: sess.SessionId,
	})
	if oerr != nil {
		t.Fatalf("join failed: %v", oerr)
	}
	return sess.SessionId
}

func TestJoinRequiresValidSession(t *testing.T) {
	coord, _, _, sink := newTestCoordinator()

	oerr := coord.Join(context.Background(), "conn-1", &comm.JoinRequest{
		RoomId:    "room-1",
		UserId:    1,
		SessionId: "bogus",
	})
	if oerr == nil || oerr.Code != comm.CodeSessionInvalid {
		t.Fatalf("expected session_invalid, got %v", oerr)
	}
	if sink.countByType(comm.TypeStateUpdate) != 0 {
		t.Fatalf("rejected join must not broadcast")
	}
}

func TestJoinAdmitsAndBroadcasts(t *testing.T) {
	coord, reg, _, sink := newTestCoordinator()

	mustJoin(t, coord, reg, "conn-1", "room-1", 1)

	snap, ok := coord.Snapshot("room-1")
	if !ok {
		t.Fatalf("room state should exist after join")
	}
	if len(snap.Players) != 1 || snap.Players[0].UserId != 1 {
		t.Fatalf("expected player 1 admitted, got %+v", snap.Players)
	}
	if snap.Pot != 100 {
		t.Fatalf("expected entry fee in pot, got %d", snap.Pot)
	}
	if sink.countByType(comm.TypeStateUpdate) != 1 {
		t.Fatalf("join must broadcast the updated state")
	}
}

func TestJoinSessionIsSingleUse(t *testing.T) {
	coord, reg, _, _ := newTestCoordinator()

	sessionId := mustJoin(t, coord, reg, "conn-1", "room-1", 1)

	oerr := coord.Join(context.Background(), "conn-2", &comm.JoinRequest{
		RoomId:    "room-1",
		UserId:    1,
		SessionId: sessionId,
	})
	if oerr == nil || oerr.Code != comm.CodeSessionInvalid {
		t.Fatalf("reusing a consumed session must fail, got %v", oerr)
	}
}

func TestIdempotentJoinWithFreshSession(t *testing.T) {
	coord, reg, _, _ := newTestCoordinator()

	mustJoin(t, coord, reg, "conn-1", "room-1", 1)
	mustJoin(t, coord, reg, "conn-2", "room-1", 1)

	snap, _ := coord.Snapshot("room-1")
	if len(snap.Players) != 1 {
		t.Fatalf("rejoin must not duplicate the player, got %d entries", len(snap.Players))
	}
	if snap.Pot != 100 {
		t.Fatalf("rejoin must not grow the pot, got %d", snap.Pot)
	}
}

func TestActionRateLimited(t *testing.T) {
	coord, reg, _, _ := newTestCoordinator()
	ctx := context.Background()

	sessionId := mustJoin(t, coord, reg, "conn-1", "room-1", 1)
	req := &comm.ActionRequest{RoomId: "room-1", UserId: 1, SessionId: sessionId, Action: game.ActionTap}

	if oerr := coord.Action(ctx, "conn-1", req); oerr != nil {
		t.Fatalf("first action should pass: %v", oerr)
	}
	if oerr := coord.Action(ctx, "conn-1", req); oerr == nil || oerr.Code != comm.CodeRateLimited {
		t.Fatalf("immediate second action must be rate_limited, got %v", oerr)
	}

	time.Sleep(60 * time.Millisecond)
	if oerr := coord.Action(ctx, "conn-1", req); oerr != nil {
		t.Fatalf("action after the interval should pass: %v", oerr)
	}
}

func TestBindingMismatchRejected(t *testing.T) {
	coord, reg, _, _ := newTestCoordinator()
	ctx := context.Background()

	sessionId := mustJoin(t, coord, reg, "conn-1", "room-1", 1)

	oerr := coord.Action(ctx, "conn-1", &comm.ActionRequest{
		RoomId: "room-2", UserId: 1, SessionId: sessionId, Action: game.ActionTap,
	})
	if oerr == nil || oerr.Code != comm.CodeSessionInvalid {
		t.Fatalf("mismatched room must be session_invalid, got %v", oerr)
	}
	if _, ok := coord.Snapshot("room-2"); ok {
		t.Fatalf("mismatched request must never touch the other room")
	}

	oerr = coord.Action(ctx, "conn-1", &comm.ActionRequest{
		RoomId: "room-1", UserId: 2, SessionId: sessionId, Action: game.ActionTap,
	})
	if oerr == nil || oerr.Code != comm.CodeSessionInvalid {
		t.Fatalf("mismatched user must be session_invalid, got %v", oerr)
	}
}

func TestGiftPlayAtomicDebit(t *testing.T) {
	coord, reg, eco, sink := newTestCoordinator()
	ctx := context.Background()

	eco.SetGiftCost("rose", 20)
	eco.SetBalance(1, 99)

	sessionId := mustJoin(t, coord, reg, "conn-1", "room-1", 1)
	req := &comm.GiftPlayRequest{RoomId: "room-1", UserId: 1, SessionId: sessionId, GiftId: "rose", Quantity: 5}

	oerr := coord.GiftPlay(ctx, "conn-1", req)
	if oerr == nil || oerr.Code != comm.CodeInsufficientBalance {
		t.Fatalf("expected insufficient_balance, got %v", oerr)
	}
	if got := eco.Balance(1); got != 99 {
		t.Fatalf("failed gift must leave the balance unchanged, got %d", got)
	}
	snap, _ := coord.Snapshot("room-1")
	if snap.Gift != nil {
		t.Fatalf("failed gift must not mutate state")
	}

	eco.SetBalance(1, 100)
	if oerr := coord.GiftPlay(ctx, "conn-1", req); oerr != nil {
		t.Fatalf("covered gift should succeed: %v", oerr)
	}
	if got := eco.Balance(1); got != 0 {
		t.Fatalf("expected balance 0 after gift, got %d", got)
	}
	snap, _ = coord.Snapshot("room-1")
	if snap.Gift == nil || snap.Gift.TotalCost != 100 || snap.Gift.Quantity != 5 {
		t.Fatalf("state should carry the gift descriptor, got %+v", snap.Gift)
	}
	if sink.countByType(comm.TypeStateUpdate) < 2 {
		t.Fatalf("successful gift must broadcast")
	}
}

func TestGiftPlayValidation(t *testing.T) {
	coord, reg, eco, _ := newTestCoordinator()
	ctx := context.Background()

	eco.SetGiftCost("rose", 20)
	eco.SetBalance(1, 1000)
	sessionId := mustJoin(t, coord, reg, "conn-1", "room-1", 1)

	oerr := coord.GiftPlay(ctx, "conn-1", &comm.GiftPlayRequest{
		RoomId: "room-1", UserId: 1, SessionId: sessionId, GiftId: "rose", Quantity: 0,
	})
	if oerr == nil || oerr.Code != comm.CodeGiftInvalid {
		t.Fatalf("zero quantity must be gift_invalid, got %v", oerr)
	}

	oerr = coord.GiftPlay(ctx, "conn-1", &comm.GiftPlayRequest{
		RoomId: "room-1", UserId: 1, SessionId: sessionId, GiftId: "unicorn", Quantity: 1,
	})
	if oerr == nil || oerr.Code != comm.CodeGiftInvalid {
		t.Fatalf("unknown gift must be gift_invalid, got %v", oerr)
	}
	if got := eco.Balance(1); got != 1000 {
		t.Fatalf("invalid gifts must not touch the balance, got %d", got)
	}
}

func TestEndSettlesOnceAndResets(t *testing.T) {
	coord, reg, eco, sink := newTestCoordinator()
	ctx := context.Background()

	s1 := mustJoin(t, coord, reg, "conn-1", "room-1", 1)
	s2 := mustJoin(t, coord, reg, "conn-2", "room-1", 2)
	s3 := mustJoin(t, coord, reg, "conn-3", "room-1", 3)

	if oerr := coord.Start(ctx, "conn-1", &comm.StartRequest{RoomId: "room-1", UserId: 1, SessionId: s1}); oerr != nil {
		t.Fatalf("start failed: %v", oerr)
	}

	// one action per binding keeps everybody under the rate limit
	actions := []struct {
		conn   string
		userId int64
		sess   string
		action string
	}{
		{"conn-1", 1, s1, game.ActionSuper},
		{"conn-2", 2, s2, game.ActionCombo},
		{"conn-3", 3, s3, game.ActionTap},
	}
	for _, a := range actions {
		oerr := coord.Action(ctx, a.conn, &comm.ActionRequest{
			RoomId: "room-1", UserId: a.userId, SessionId: a.sess, Action: a.action,
		})
		if oerr != nil {
			t.Fatalf("action for user %d failed: %v", a.userId, oerr)
		}
	}

	if oerr := coord.End(ctx, "conn-1", &comm.EndRequest{RoomId: "room-1", UserId: 1, SessionId: s1}); oerr != nil {
		t.Fatalf("end failed: %v", oerr)
	}

	// pot 300 -> pool 240 -> 80 per winner
	for _, userId := range []int64{1, 2, 3} {
		if got := eco.Balance(userId); got != 80 {
			t.Fatalf("user %d expected 80 credited, got %d", userId, got)
		}
	}
	if sink.countByType(comm.TypeReward) != 1 {
		t.Fatalf("end must broadcast one reward event")
	}

	snap, _ := coord.Snapshot("room-1")
	if snap.Phase != game.PhaseLobby || snap.Pot != 0 || len(snap.Players) != 0 {
		t.Fatalf("round must reset after settlement, got %+v", snap)
	}

	// the round is gone; a second end cannot settle again
	oerr := coord.End(ctx, "conn-1", &comm.EndRequest{RoomId: "room-1", UserId: 1, SessionId: s1})
	if oerr == nil || oerr.Code != comm.CodeActionRejected {
		t.Fatalf("double end must be action_rejected, got %v", oerr)
	}
	if got := eco.Balance(1); got != 80 {
		t.Fatalf("double end must not credit twice, got %d", got)
	}
}

func TestEndRequiresStartedRound(t *testing.T) {
	coord, reg, _, _ := newTestCoordinator()

	sessionId := mustJoin(t, coord, reg, "conn-1", "room-1", 1)

	oerr := coord.End(context.Background(), "conn-1", &comm.EndRequest{RoomId: "room-1", UserId: 1, SessionId: sessionId})
	if oerr == nil || oerr.Code != comm.CodeActionRejected {
		t.Fatalf("ending a lobby round must be action_rejected, got %v", oerr)
	}
}

func TestBroadcastFailureDoesNotRollBack(t *testing.T) {
	coord, reg, _, sink := newTestCoordinator()
	sink.fail = true

	mustJoin(t, coord, reg, "conn-1", "room-1", 1)

	snap, ok := coord.Snapshot("room-1")
	if !ok || len(snap.Players) != 1 {
		t.Fatalf("state mutation must stand when the broadcast fails")
	}
}

func TestLeaveDropsBinding(t *testing.T) {
	coord, reg, _, _ := newTestCoordinator()
	ctx := context.Background()

	sessionId := mustJoin(t, coord, reg, "conn-1", "room-1", 1)
	coord.Leave("conn-1")

	oerr := coord.Action(ctx, "conn-1", &comm.ActionRequest{
		RoomId: "room-1", UserId: 1, SessionId: sessionId, Action: game.ActionTap,
	})
	if oerr == nil || oerr.Code != comm.CodeSessionInvalid {
		t.Fatalf("actions after leave must be session_invalid, got %v", oerr)
	}
}
