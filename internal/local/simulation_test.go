package local

import (
	"testing"
	"time"

	"github.com/voysta/game-services/internal/comm"
	"github.com/voysta/game-services/internal/game"
)

func waitForReward(t *testing.T, sim *Simulation) *comm.RewardNotice {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sim.Events():
			if ev.Type == comm.TypeReward {
				return ev.Reward
			}
		case <-deadline:
			t.Fatalf("simulation never settled")
		}
	}
}

func TestSimulationLifecycle(t *testing.T) {
	sim := NewSimulation("room-1", Options{Ticks: 3, TickEvery: 5 * time.Millisecond, EntryFee: 100})

	sim.Join(1, "ada")
	sim.Join(2, "grace")
	sim.Join(3, "joan")

	sim.Action(1, game.ActionSuper)
	sim.Action(2, game.ActionCombo)
	sim.Action(3, game.ActionTap)

	reward := waitForReward(t, sim)

	// pot 300 -> pool 240 -> 80 each
	if reward.TotalDistributed != 240 {
		t.Fatalf("expected 240 distributed, got %d", reward.TotalDistributed)
	}
	if len(reward.Rewards) != 3 {
		t.Fatalf("expected 3 winners, got %d", len(reward.Rewards))
	}
	for userId, amount := range reward.Rewards {
		if amount != 80 {
			t.Fatalf("user %d expected 80, got %d", userId, amount)
		}
	}

	snap := sim.Snapshot()
	if snap.Phase != game.PhaseLobby || snap.Pot != 0 || len(snap.Players) != 0 {
		t.Fatalf("round must reset after settlement, got %+v", snap)
	}
}

func TestSimulationRejoinDoesNotGrowPot(t *testing.T) {
	sim := NewSimulation("room-1", Options{Ticks: 1000, TickEvery: time.Minute, EntryFee: 100})

	sim.Join(1, "ada")
	sim.Join(1, "ada")

	snap := sim.Snapshot()
	if len(snap.Players) != 1 {
		t.Fatalf("rejoin must not duplicate the player, got %d", len(snap.Players))
	}
	if snap.Pot != 100 {
		t.Fatalf("rejoin must not grow the pot, got %d", snap.Pot)
	}
}

func TestSimulationActionAfterSettlementIsNoop(t *testing.T) {
	sim := NewSimulation("room-1", Options{Ticks: 1, TickEvery: 5 * time.Millisecond, EntryFee: 100})

	sim.Join(1, "ada")
	waitForReward(t, sim)

	sim.Action(1, game.ActionSuper)

	snap := sim.Snapshot()
	if len(snap.Players) != 0 {
		t.Fatalf("late action must not resurrect the round, got %+v", snap.Players)
	}
}
