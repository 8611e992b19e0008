package game

import "math/rand"

// Known action names. The score policy lives here so both transports and
// the local simulation apply identical effects.
const (
	ActionTap   = "tap"
	ActionCombo = "combo"
	ActionSuper = "super"
	ActionDraw  = "draw"
)

// ScoreFor returns the score delta an action grants the calling player.
// Unknown actions grant nothing but are still broadcast.
func ScoreFor(action string) int64 {
	switch action {
	case ActionTap:
		return 1
	case ActionCombo:
		return 5
	case ActionSuper:
		return 10
	case ActionDraw:
		return rand.Int63n(10) + 1
	default:
		return 0
	}
}
