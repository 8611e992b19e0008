package client

import (
	"context"
	"sync/atomic"

	"github.com/voysta/game-services/internal/comm"
	"github.com/voysta/game-services/internal/local"
)

// LocalTransport drives the in-process simulation when no server game
// transport is configured. Sessions are not enforced locally; joins and
// actions go straight to the simulation loop.
type LocalTransport struct {
	sim    *local.Simulation
	userId atomic.Int64
	events chan Event
}

func NewLocalTransport(sim *local.Simulation) *LocalTransport {
	return &LocalTransport{
		sim:    sim,
		events: make(chan Event, 64),
	}
}

func (t *LocalTransport) Connect(ctx context.Context) (<-chan Event, error) {
	go func() {
		defer close(t.events)
		for {
			select {
			case ev, ok := <-t.sim.Events():
				if !ok {
					return
				}
				t.events <- Event{Type: ev.Type, State: ev.State, Reward: ev.Reward}
			case <-ctx.Done():
				return
			}
		}
	}()
	return t.events, nil
}

func (t *LocalTransport) Send(ctx context.Context, msgType string, payload interface{}) error {
	switch msgType {
	case comm.TypeJoin:
		req := payload.(*comm.JoinRequest)
		t.userId.Store(req.UserId)
		t.sim.Join(req.UserId, req.Name)
		t.events <- Event{Type: comm.TypeJoined, Ack: comm.OkAck()}

	case comm.TypeAction:
		req := payload.(*comm.ActionRequest)
		t.sim.Action(req.UserId, req.Action)

	case comm.TypeGiftPlay:
		// no economy in local play
		t.events <- Event{Type: comm.TypeError, Ack: comm.ErrorAck(comm.CodeActionRejected, "gift play needs a server transport")}

	case comm.TypeStart, comm.TypeEnd, comm.TypeLeave:
		// the simulation loop owns its own lifecycle
	}

	return nil
}

func (t *LocalTransport) Disconnect() error {
	return nil
}
