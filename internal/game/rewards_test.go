package game

import "testing"

func settleState(pot int64, scores ...int64) *State {
	s := NewState("room-1")
	s.Pot = pot
	for i, score := range scores {
		s.AddPlayer(int64(i+1), "")
		s.Players[i].Score = score
	}
	return s
}

func TestSettleTopThreePayout(t *testing.T) {
	s := settleState(1000, 50, 30, 10)

	out := Settle(s)

	// rewardPool = floor(1000*0.8) = 800, share = floor(800/3) = 266
	for user := int64(1); user <= 3; user++ {
		if out.Rewards[user] != 266 {
			t.Fatalf("user %d expected 266, got %d", user, out.Rewards[user])
		}
	}
	if out.TotalDistributed != 798 {
		t.Fatalf("expected 798 distributed (2 coins dropped), got %d", out.TotalDistributed)
	}
}

func TestSettleFewerThanThreeWinners(t *testing.T) {
	s := settleState(100, 7, 3)

	out := Settle(s)

	if len(out.Rewards) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(out.Rewards))
	}
	if out.Rewards[1] != 40 || out.Rewards[2] != 40 {
		t.Fatalf("expected 40 each, got %+v", out.Rewards)
	}
	if out.TotalDistributed != 80 {
		t.Fatalf("expected 80 distributed, got %d", out.TotalDistributed)
	}
}

func TestSettleOnlyTopThreeOfMany(t *testing.T) {
	s := settleState(900, 5, 50, 20, 40, 1)

	out := Settle(s)

	if len(out.Rewards) != 3 {
		t.Fatalf("expected 3 winners, got %d", len(out.Rewards))
	}
	// winners are users 2 (50), 4 (40) and 3 (20)
	for _, user := range []int64{2, 3, 4} {
		if out.Rewards[user] != 240 {
			t.Fatalf("user %d expected 240, got %d", user, out.Rewards[user])
		}
	}
	if _, ok := out.Rewards[1]; ok {
		t.Fatalf("user 1 must not be rewarded")
	}
}

func TestSettleTieKeepsJoinOrder(t *testing.T) {
	s := settleState(300, 10, 10, 10, 10)

	out := Settle(s)

	for _, user := range []int64{1, 2, 3} {
		if _, ok := out.Rewards[user]; !ok {
			t.Fatalf("tied winner %d missing from rewards: %+v", user, out.Rewards)
		}
	}
	if _, ok := out.Rewards[4]; ok {
		t.Fatalf("fourth tied player must lose the tie on join order")
	}
}

func TestSettleNoPlayers(t *testing.T) {
	s := settleState(1000)

	out := Settle(s)

	if len(out.Rewards) != 0 || out.TotalDistributed != 0 {
		t.Fatalf("empty round must distribute nothing, got %+v", out)
	}
}
