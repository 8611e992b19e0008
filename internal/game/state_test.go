package game

import "testing"

func TestAddPlayerNoDuplicates(t *testing.T) {
	s := NewState("room-1")

	if !s.AddPlayer(1, "a") {
		t.Fatalf("first join should add the player")
	}
	if s.AddPlayer(1, "a") {
		t.Fatalf("rejoin must not add a duplicate entry")
	}
	if !s.AddPlayer(2, "b") {
		t.Fatalf("second user should be added")
	}

	if len(s.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(s.Players))
	}
	if s.Players[0].UserId != 1 || s.Players[1].UserId != 2 {
		t.Fatalf("players must keep join order, got %+v", s.Players)
	}
}

func TestResetClearsRound(t *testing.T) {
	s := NewState("room-1")
	s.AddPlayer(1, "a")
	s.Phase = PhaseRunning
	s.Pot = 500
	s.TimeLeft = 12
	s.LastAction = ActionTap

	s.Reset()

	if s.Phase != PhaseLobby {
		t.Fatalf("expected lobby after reset, got %s", s.Phase)
	}
	if s.Pot != 0 || s.TimeLeft != 0 || len(s.Players) != 0 || s.LastAction != "" {
		t.Fatalf("reset left round data behind: %+v", s)
	}
}
