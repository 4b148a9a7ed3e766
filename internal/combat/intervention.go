package combat

import "echobattler/internal/config"

// interventionEffect is the closed dispatch-table extension point applied at
// the start of the StepBatch that received the queued intervention.
type interventionEffect func(s *Simulator, team Team, targetID int)

var interventionEffects = map[string]interventionEffect{
	"Reposition":      effectReposition,
	"Focus":           effectFocus,
	"Barrier":         effectBarrier,
	"Accelerate":      effectAccelerate,
	"TacticalRetreat": effectTacticalRetreat,
}

const (
	focusDurationTicks   = 90
	barrierShieldHP      = 40
	accelerateDuration   = 120
	retreatDurationTicks = 60
)

func (s *Simulator) applyIntervention(iv Intervention) {
	handler, ok := interventionEffects[iv.Kind]
	if !ok {
		return
	}
	handler(s, iv.Team, iv.TargetID)
	s.emit(Event{Kind: "intervention", TargetID: iv.TargetID, AbilityID: iv.Kind})
}

func effectReposition(s *Simulator, team Team, targetID int) {
	target, ok := s.byID[targetID]
	if !ok || target.Team != team || !target.Alive {
		return
	}
	for dc := -1; dc <= 1; dc++ {
		for dr := -1; dr <= 1; dr++ {
			if dc == 0 && dr == 0 {
				continue
			}
			col, row := target.Col+dc, target.Row+dr
			if col < 0 || col >= CombatWidth || row < 0 || row >= CombatHeight {
				continue
			}
			if s.cellFree(col, row) {
				target.Col, target.Row = col, row
				return
			}
		}
	}
}

func (s *Simulator) cellFree(col, row int) bool {
	for _, u := range s.units {
		if u.Alive && u.Col == col && u.Row == row {
			return false
		}
	}
	return true
}

func effectFocus(s *Simulator, team Team, targetID int) {
	for _, u := range s.units {
		if u.Team != team || !u.Alive || u.Retreating {
			continue
		}
		u.FocusTargetID = targetID
		u.FocusTicks = focusDurationTicks
	}
}

func effectBarrier(s *Simulator, team Team, targetID int) {
	target, ok := s.byID[targetID]
	if !ok || target.Team != team {
		return
	}
	target.Shield += barrierShieldHP
}

func effectAccelerate(s *Simulator, team Team, targetID int) {
	for _, u := range s.units {
		if u.Team != team || !u.Alive {
			continue
		}
		u.Effects = append(u.Effects, StatusEffect{Kind: "Haste", Remaining: accelerateDuration})
	}
}

func effectTacticalRetreat(s *Simulator, team Team, targetID int) {
	target, ok := s.byID[targetID]
	if !ok || target.Team != team || !target.Alive {
		return
	}
	target.ReturnCol, target.ReturnRow = target.Col, target.Row
	target.Retreating = true
	target.RetreatTicks = retreatDurationTicks
	if team == TeamA {
		target.Col = 0
	} else {
		target.Col = CombatWidth - 1
	}
}

// Energy bookkeeping: passive trickle, kill bonus, and damage-received
// accumulation, each clamped to max_energy.

func (s *Simulator) onKill(killerTeam Team) {
	opponent := TeamB
	if killerTeam == TeamB {
		opponent = TeamA
	}
	s.grantEnergy(opponent, s.interv.KillGain)
}

func (s *Simulator) accumulateDamageEnergy(receivingTeam Team, dmg int) {
	if s.interv.DamagePerEnergy <= 0 {
		return
	}
	s.damageAcc[receivingTeam] += dmg
	for s.damageAcc[receivingTeam] >= s.interv.DamagePerEnergy {
		s.damageAcc[receivingTeam] -= s.interv.DamagePerEnergy
		s.grantEnergy(receivingTeam, 1)
	}
}

func (s *Simulator) grantEnergy(team Team, amount int) {
	s.energy[team] = minInt(s.energy[team]+amount, s.interv.MaxEnergy)
}

// Energy reports the current clamped energy pool for a team.
func (s *Simulator) Energy(team Team) int { return s.energy[team] }

// SpendEnergy deducts a submitted intervention's cost, floored at zero.
func (s *Simulator) SpendEnergy(team Team, cost int) {
	s.energy[team] -= cost
	if s.energy[team] < 0 {
		s.energy[team] = 0
	}
}

// GrantEnergy adds to a team's pool, clamped to max_energy. Exported so
// callers outside this package, such as the intervention package's tests,
// can seed a team's pool without going through onKill/accumulateDamageEnergy.
func (s *Simulator) GrantEnergy(team Team, amount int) {
	s.grantEnergy(team, amount)
}

// TickPassiveEnergy applies the passive trickle; called once every
// PassiveIntervalTick ticks of simulated time from StepBatch.
func (s *Simulator) TickPassiveEnergy() {
	s.grantEnergy(TeamA, 1)
	s.grantEnergy(TeamB, 1)
}

// SetInterventionSettings overrides the intervention tunables used for
// energy math and cast effects, for callers that construct a Simulator
// without passing them to NewSimulator.
func (s *Simulator) SetInterventionSettings(settings config.InterventionSettings) {
	s.interv = settings
}
