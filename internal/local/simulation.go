package local

import (
	"sync"
	"time"

	"github.com/voysta/game-services/internal/comm"
	"github.com/voysta/game-services/internal/game"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTicks     = 30
	DefaultTickEvery = time.Second
	defaultBuffer    = 64
)

// Event is what the simulation emits in place of a server broadcast.
type Event struct {
	Type   string
	State  *comm.StateUpdate
	Reward *comm.RewardNotice
}

type Options struct {
	Ticks     int           // countdown length, in ticks
	TickEvery time.Duration // tick period
	EntryFee  int64
	Buffer    int // event channel capacity
}

// Simulation runs the game state machine without any server transport:
// a single timer-driven loop per room owns the countdown, so tick N+1
// strictly follows tick N and the loop stops itself at settlement.
type Simulation struct {
	mu      sync.Mutex
	state   *game.State
	running bool
	opts    Options
	events  chan Event
}

func NewSimulation(roomId string, opts Options) *Simulation {
	if opts.Ticks <= 0 {
		opts.Ticks = DefaultTicks
	}
	if opts.TickEvery <= 0 {
		opts.TickEvery = DefaultTickEvery
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	return &Simulation{
		state:  game.NewState(roomId),
		opts:   opts,
		events: make(chan Event, opts.Buffer),
	}
}

func (s *Simulation) Events() <-chan Event {
	return s.events
}

// Join records the player, adds the entry fee to the pot and starts the
// countdown loop on the first join. Rejoins neither duplicate the player
// nor grow the pot.
func (s *Simulation) Join(userId int64, name string) {
	s.mu.Lock()
	if s.state.AddPlayer(userId, name) {
		s.state.Pot += s.opts.EntryFee
	}
	s.state.UpdatedAt = time.Now()
	if !s.running {
		s.running = true
		s.state.Phase = game.PhaseRunning
		s.state.TimeLeft = s.opts.Ticks
		go s.run()
	}
	snap := comm.SnapshotState(s.state)
	s.mu.Unlock()

	s.emit(Event{Type: comm.TypeStateUpdate, State: snap})
}

// Action mutates the calling user's score while the round runs and is a
// no-op once the loop has stopped.
func (s *Simulation) Action(userId int64, action string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	p := s.state.FindPlayer(userId)
	if p == nil {
		s.mu.Unlock()
		return
	}
	p.Score += game.ScoreFor(action)
	s.state.LastAction = action
	s.state.UpdatedAt = time.Now()
	snap := comm.SnapshotState(s.state)
	s.mu.Unlock()

	s.emit(Event{Type: comm.TypeStateUpdate, State: snap})
}

// Snapshot returns the current state without emitting anything.
func (s *Simulation) Snapshot() *comm.StateUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return comm.SnapshotState(s.state)
}

func (s *Simulation) run() {
	ticker := time.NewTicker(s.opts.TickEvery)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		s.state.TimeLeft--
		s.state.UpdatedAt = time.Now()

		if s.state.TimeLeft < 0 {
			outcome := game.Settle(s.state)
			s.state.Reset()
			s.running = false
			s.mu.Unlock()

			s.emit(Event{Type: comm.TypeReward, Reward: &comm.RewardNotice{
				RoomId:           outcome.RoomId,
				Status:           outcome.Status,
				Rewards:          outcome.Rewards,
				TotalDistributed: outcome.TotalDistributed,
			}})
			return
		}

		snap := comm.SnapshotState(s.state)
		s.mu.Unlock()

		s.emit(Event{Type: comm.TypeStateUpdate, State: snap})
	}
}

// emit never blocks the loop; a full channel drops the event, the next
// snapshot or a state fetch catches the client up.
func (s *Simulation) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		log.Warnf("simulation event dropped for room %s", s.state.RoomId)
	}
}
