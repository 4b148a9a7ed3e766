// Package intervention owns the per-team cost/cooldown bookkeeping for the
// five player-triggered combat interventions and turns a submission into the
// queued combat.Intervention the simulator applies on its next StepBatch.
package intervention

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"echobattler/internal/combat"
	"echobattler/internal/config"
)

var (
	// ErrUnknownKind rejects a submission naming a kind outside the closed set.
	ErrUnknownKind = errors.New("unknown intervention kind")
	// ErrNoActiveCombat rejects a submission from a player not currently in combat.
	ErrNoActiveCombat = errors.New("no active combat")
	// ErrInsufficientEnergy rejects a submission the team cannot afford.
	ErrInsufficientEnergy = errors.New("insufficient energy")
)

// CooldownError reports the remaining wall-clock cooldown for a kind.
type CooldownError struct {
	Kind      string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown: %.0fs", e.Remaining.Seconds())
}

// teamState tracks one team's per-kind cooldowns.
// Energy itself is authoritative on the combat.Simulator; this package keeps
// only the cooldown clocks, which tick on wall-clock delta independent of
// combat ticks per spec §4.I.
type teamState struct {
	cooldowns map[string]time.Duration
}

func newTeamState() *teamState {
	return &teamState{cooldowns: make(map[string]time.Duration)}
}

// Engine gates intervention submissions against cost/cooldown and enqueues
// accepted ones for the next StepBatch of the combat they target.
type Engine struct {
	mu       sync.Mutex
	settings config.InterventionSettings
	teams    map[int]map[combat.Team]*teamState // combatID -> team -> state
	queued   map[int][]combat.Intervention      // combatID -> pending interventions
}

// NewEngine constructs an intervention engine bound to one session's tuning.
func NewEngine(settings config.InterventionSettings) *Engine {
	return &Engine{
		settings: settings,
		teams:    make(map[int]map[combat.Team]*teamState),
		queued:   make(map[int][]combat.Intervention),
	}
}

func (e *Engine) stateFor(combatID int, team combat.Team) *teamState {
	byTeam, ok := e.teams[combatID]
	if !ok {
		byTeam = make(map[combat.Team]*teamState)
		e.teams[combatID] = byTeam
	}
	st, ok := byTeam[team]
	if !ok {
		st = newTeamState()
		byTeam[team] = st
	}
	return st
}

// Activated describes a submission the engine accepted, for the
// intervention_activated broadcast.
type Activated struct {
	CombatID int
	Team     combat.Team
	Kind     string
	TargetID int
}

// Submit validates and, if accepted, enqueues kind against combatID/team for
// the next StepBatch, deducting energy and starting its cooldown.
func (e *Engine) Submit(sim *combat.Simulator, combatID int, team combat.Team, kind string, targetID int) (Activated, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kindSettings, ok := e.settings.Kinds[kind]
	if !ok {
		return Activated{}, ErrUnknownKind
	}
	if sim == nil {
		return Activated{}, ErrNoActiveCombat
	}
	st := e.stateFor(combatID, team)
	if remaining := st.cooldowns[kind]; remaining > 0 {
		return Activated{}, &CooldownError{Kind: kind, Remaining: remaining}
	}
	if sim.Energy(team) < kindSettings.Cost {
		return Activated{}, ErrInsufficientEnergy
	}

	sim.SpendEnergy(team, kindSettings.Cost)
	st.cooldowns[kind] = kindSettings.Cooldown

	iv := combat.Intervention{Kind: kind, Team: team, TargetID: targetID}
	e.queued[combatID] = append(e.queued[combatID], iv)
	return Activated{CombatID: combatID, Team: team, Kind: kind, TargetID: targetID}, nil
}

// DrainPending returns and clears the interventions queued for combatID,
// for the orchestrator to hand to Simulator.StepBatch.
func (e *Engine) DrainPending(combatID int) []combat.Intervention {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending := e.queued[combatID]
	delete(e.queued, combatID)
	return pending
}

// Tick advances every tracked cooldown by delta, per spec's wall-clock
// independent-of-combat-ticks cooldown rule.
func (e *Engine) Tick(delta time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, byTeam := range e.teams {
		for _, st := range byTeam {
			for kind, remaining := range st.cooldowns {
				next := remaining - delta
				if next < 0 {
					next = 0
				}
				st.cooldowns[kind] = next
			}
		}
	}
}

// ResetCombat drops cooldown state for a finished combat id; a new combat
// between the same players starts with fresh cooldowns per spec's note that
// cooldowns "in practice...reset when a new combat starts".
func (e *Engine) ResetCombat(combatID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.teams, combatID)
	delete(e.queued, combatID)
}
