// Package phase implements the round Phase Scheduler: a small explicit state
// machine driven by the same fixed-interval ticker pattern as
// internal/simulation.Loop, generalized from "advance a physics step" to
// "decrement a phase timer and emit a transition".
package phase

import (
	"time"

	"echobattler/internal/config"
)

// State names one round phase.
type State string

const (
	WaitingForPlayers State = "WaitingForPlayers"
	Preparation       State = "Preparation"
	Combat            State = "Combat"
	Reward            State = "Reward"
	MutationChoice    State = "MutationChoice"
	GameOver          State = "GameOver"
)

// Changed is emitted on every transition.
type Changed struct {
	Old          State
	New          State
	DurationSecs int
}

// Scheduler owns the current phase, its remaining timer, and the round count.
type Scheduler struct {
	settings config.PhaseSettings
	state    State
	remain   time.Duration
	round    int

	allReady      bool
	combatsDone   bool
	onePlayerLeft bool
}

// NewScheduler starts in WaitingForPlayers with round 1.
func NewScheduler(settings config.PhaseSettings) *Scheduler {
	return &Scheduler{settings: settings, state: WaitingForPlayers, round: 1}
}

// State reports the current phase.
func (s *Scheduler) State() State { return s.state }

// Round reports the current round number.
func (s *Scheduler) Round() int { return s.round }

// Remaining reports the time left in the current phase's timer. In
// WaitingForPlayers it is the lobby countdown, which runs only once every seat
// is ready; in GameOver (terminal) it is zero.
func (s *Scheduler) Remaining() time.Duration { return s.remain }

// NotifyAllReady marks that every lobby seat is ready; combined with the
// lobby countdown elapsing, this allows WaitingForPlayers -> Preparation.
func (s *Scheduler) NotifyAllReady(ready bool) { s.allReady = ready }

// NotifyCombatsDone marks that every active combat in the round has
// resolved, allowing Combat -> Reward ahead of the safety timer.
func (s *Scheduler) NotifyCombatsDone(done bool) { s.combatsDone = done }

// NotifyOnePlayerLeft marks that only one player with hp > 0 remains,
// forcing an immediate transition to GameOver from any state.
func (s *Scheduler) NotifyOnePlayerLeft(left bool) { s.onePlayerLeft = left }

// Advance steps the scheduler by delta wall-clock time, returning a Changed
// event if a transition fired this call (nil otherwise).
func (s *Scheduler) Advance(delta time.Duration) *Changed {
	if s.onePlayerLeft && s.state != GameOver {
		return s.transitionTo(GameOver, 0)
	}
	switch s.state {
	case WaitingForPlayers:
		if s.allReady {
			if s.remain <= 0 {
				s.remain = time.Duration(s.settings.LobbyCountdownSecs) * time.Second
			}
			s.remain -= delta
			if s.remain <= 0 {
				return s.transitionTo(Preparation, s.settings.PreparationSecs)
			}
		}
	case Preparation:
		s.remain -= delta
		if s.remain <= 0 {
			return s.transitionTo(Combat, s.settings.CombatMaxSecs)
		}
	case Combat:
		s.remain -= delta
		if s.combatsDone || s.remain <= 0 {
			return s.transitionTo(Reward, s.settings.RewardSecs)
		}
	case Reward:
		s.remain -= delta
		if s.remain <= 0 {
			return s.transitionTo(MutationChoice, s.settings.MutationChoiceSecs)
		}
	case MutationChoice:
		s.remain -= delta
		if s.remain <= 0 {
			if s.settings.RoundCap > 0 && s.round >= s.settings.RoundCap {
				return s.transitionTo(GameOver, 0)
			}
			s.round++
			return s.transitionTo(Preparation, s.settings.PreparationSecs)
		}
	case GameOver:
		// terminal
	}
	return nil
}

func (s *Scheduler) transitionTo(next State, durationSecs int) *Changed {
	old := s.state
	s.state = next
	s.remain = time.Duration(durationSecs) * time.Second
	s.combatsDone = false
	return &Changed{Old: old, New: next, DurationSecs: durationSecs}
}
