package game

import "sort"

const (
	// MaxWinners limits how many top scorers share the reward pool.
	MaxWinners = 3

	// reward pool is 80% of the pot; the rest stays with the house
	rewardNumerator   = 80
	rewardDenominator = 100
)

type Outcome struct {
	RoomId           string          `json:"room_id"`
	Status           string          `json:"status"`
	Rewards          map[int64]int64 `json:"rewards"`
	TotalDistributed int64           `json:"total_distributed"`
}

// Settle computes the end-of-round outcome for the given state. Players
// are ranked by descending score (ties keep join order), the top three
// become winners and split floor(pot*0.8) evenly with integer division.
// Any remainder of the division is dropped, not redistributed. Settle
// does not mutate the state; callers reset the round afterwards.
func Settle(s *State) *Outcome {
	out := &Outcome{
		RoomId:  s.RoomId,
		Status:  "settled",
		Rewards: make(map[int64]int64),
	}

	ranked := make([]*Player, len(s.Players))
	copy(ranked, s.Players)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	winners := ranked
	if len(winners) > MaxWinners {
		winners = winners[:MaxWinners]
	}
	if len(winners) == 0 {
		return out
	}

	rewardPool := s.Pot * rewardNumerator / rewardDenominator
	perWinnerShare := rewardPool / int64(len(winners))

	for _, w := range winners {
		out.Rewards[w.UserId] = perWinnerShare
	}
	out.TotalDistributed = perWinnerShare * int64(len(winners))

	return out
}
