package combat

// abilityHandler is the closed dispatch-table extension point for ability
// casts: read-only over the full unit list, free to mutate hp/shield/
// position on targets it selects, must route damage through engage-style
// arithmetic for consistency, and must emit at least one event.
type abilityHandler func(s *Simulator, caster *Unit)

var abilityHandlers = map[string]abilityHandler{
	"heal_pulse":        healPulse,
	"blink_strike":      blinkStrike,
	"chain_bolt":        chainBolt,
	"molten_shield":     moltenShield,
	"tidal_surge":       tidalSurge,
	"prismatic_barrier": prismaticBarrier,
	"undertow_stun":     undertowStun,
	"accelerant":        accelerant,
}

func (s *Simulator) castAbility(caster *Unit, abilityID string) {
	handler, ok := abilityHandlers[abilityID]
	if !ok {
		return
	}
	handler(s, caster)
}

func healPulse(s *Simulator, caster *Unit) {
	var weakestAlly *Unit
	for _, u := range s.units {
		if u.Team != caster.Team || !u.Alive {
			continue
		}
		if weakestAlly == nil || u.HP < weakestAlly.HP {
			weakestAlly = u
		}
	}
	if weakestAlly == nil {
		return
	}
	heal := weakestAlly.MaxHP / 4
	weakestAlly.HP = minInt(weakestAlly.HP+heal, weakestAlly.MaxHP)
	s.emit(Event{Kind: "ability", ActorID: caster.InstanceID, TargetID: weakestAlly.InstanceID, Amount: heal, AbilityID: "heal_pulse"})
}

func blinkStrike(s *Simulator, caster *Unit) {
	target := s.selectTarget(caster)
	if target == nil {
		return
	}
	caster.Col, caster.Row = target.Col, target.Row
	s.applyDirectDamage(caster, target, caster.Attack)
	s.emit(Event{Kind: "ability", ActorID: caster.InstanceID, TargetID: target.InstanceID, AbilityID: "blink_strike"})
}

func chainBolt(s *Simulator, caster *Unit) {
	hit := 0
	for _, u := range s.units {
		if hit >= 3 || u.Team == caster.Team || !u.Alive {
			continue
		}
		s.applyDirectDamage(caster, u, caster.Attack/2)
		hit++
	}
	s.emit(Event{Kind: "ability", ActorID: caster.InstanceID, Amount: hit, AbilityID: "chain_bolt"})
}

func moltenShield(s *Simulator, caster *Unit) {
	caster.Shield += caster.MaxHP / 5
	s.emit(Event{Kind: "ability", ActorID: caster.InstanceID, TargetID: caster.InstanceID, AbilityID: "molten_shield"})
}

func tidalSurge(s *Simulator, caster *Unit) {
	for _, u := range s.units {
		if u.Team != caster.Team || !u.Alive {
			continue
		}
		u.Shield += caster.MaxHP / 10
	}
	s.emit(Event{Kind: "ability", ActorID: caster.InstanceID, AbilityID: "tidal_surge"})
}

func prismaticBarrier(s *Simulator, caster *Unit) {
	caster.Effects = append(caster.Effects, StatusEffect{Kind: "Invisible", Remaining: 30})
	s.emit(Event{Kind: "ability", ActorID: caster.InstanceID, AbilityID: "prismatic_barrier"})
}

func undertowStun(s *Simulator, caster *Unit) {
	target := s.selectTarget(caster)
	if target == nil {
		return
	}
	target.Effects = append(target.Effects, StatusEffect{Kind: "Stun", Remaining: 45, SourceTeam: caster.Team})
	s.emit(Event{Kind: "ability", ActorID: caster.InstanceID, TargetID: target.InstanceID, AbilityID: "undertow_stun"})
}

func accelerant(s *Simulator, caster *Unit) {
	caster.Effects = append(caster.Effects, StatusEffect{Kind: "Haste", Remaining: 60})
	s.emit(Event{Kind: "ability", ActorID: caster.InstanceID, AbilityID: "accelerant"})
}

// applyDirectDamage routes ability damage through the same
// defense/shield/hp staged pipeline engage uses, so reflect/invulnerability
// style hooks (when added) apply uniformly regardless of damage source.
func (s *Simulator) applyDirectDamage(attacker, target *Unit, rawDamage int) {
	dmg := maxInt(1, rawDamage-target.Defense)
	absorbed := minInt(target.Shield, dmg)
	target.Shield -= absorbed
	dmg -= absorbed
	target.HP -= dmg
	if target.HP <= 0 && target.Alive {
		target.HP = 0
		target.Alive = false
		s.emit(Event{Kind: "death", ActorID: attacker.InstanceID, TargetID: target.InstanceID})
		s.onKill(attacker.Team)
	}
	s.accumulateDamageEnergy(target.Team, dmg)
}
