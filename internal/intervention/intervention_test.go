package intervention

import (
	"errors"
	"testing"
	"time"

	"echobattler/internal/catalog"
	"echobattler/internal/combat"
	"echobattler/internal/config"
)

func newTestSimulator() *combat.Simulator {
	cat := catalog.Default()
	teamA := []combat.BoardUnit{{InstanceID: 1001, CatalogID: 1, Star: 1}}
	teamB := []combat.BoardUnit{{InstanceID: 2001, CatalogID: 2, Star: 1}}
	return combat.NewSimulator(teamA, teamB, cat, config.DefaultCombatSettings(), config.DefaultInterventionSettings(), 1, 1)
}

func TestSubmitRejectsUnknownKind(t *testing.T) {
	e := NewEngine(config.DefaultInterventionSettings())
	sim := newTestSimulator()
	if _, err := e.Submit(sim, 1, combat.TeamA, "NotAKind", 1001); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestSubmitRejectsWhenNoActiveCombat(t *testing.T) {
	e := NewEngine(config.DefaultInterventionSettings())
	if _, err := e.Submit(nil, 1, combat.TeamA, "Barrier", 1001); !errors.Is(err, ErrNoActiveCombat) {
		t.Fatalf("expected ErrNoActiveCombat, got %v", err)
	}
}

func TestSubmitRejectsInsufficientEnergy(t *testing.T) {
	e := NewEngine(config.DefaultInterventionSettings())
	sim := newTestSimulator()
	if _, err := e.Submit(sim, 1, combat.TeamA, "Barrier", 1001); !errors.Is(err, ErrInsufficientEnergy) {
		t.Fatalf("expected ErrInsufficientEnergy at zero starting energy, got %v", err)
	}
}

func TestSubmitDeductsEnergyAndStartsCooldown(t *testing.T) {
	settings := config.DefaultInterventionSettings()
	e := NewEngine(settings)
	sim := newTestSimulator()
	sim.SetInterventionSettings(settings)
	sim.GrantEnergy(combat.TeamA, 100)

	activated, err := e.Submit(sim, 1, combat.TeamA, "Barrier", 1001)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if activated.Kind != "Barrier" || activated.TargetID != 1001 {
		t.Fatalf("unexpected activation: %+v", activated)
	}
	cost := settings.Kinds["Barrier"].Cost
	if sim.Energy(combat.TeamA) != 100-cost {
		t.Fatalf("expected energy deducted by %d, got %d", cost, sim.Energy(combat.TeamA))
	}

	if _, err := e.Submit(sim, 1, combat.TeamA, "Barrier", 1001); err == nil {
		t.Fatalf("expected second submission to hit cooldown")
	}
}

func TestTickDecaysCooldownToZeroFloor(t *testing.T) {
	settings := config.DefaultInterventionSettings()
	e := NewEngine(settings)
	sim := newTestSimulator()
	sim.GrantEnergy(combat.TeamA, 100)
	if _, err := e.Submit(sim, 1, combat.TeamA, "Barrier", 1001); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cooldown := settings.Kinds["Barrier"].Cooldown
	e.Tick(cooldown + time.Second)
	sim.GrantEnergy(combat.TeamA, 100)
	if _, err := e.Submit(sim, 1, combat.TeamA, "Barrier", 1001); err != nil {
		t.Fatalf("expected resubmission after cooldown elapsed to succeed, got %v", err)
	}
}

func TestDrainPendingReturnsAndClearsQueue(t *testing.T) {
	settings := config.DefaultInterventionSettings()
	e := NewEngine(settings)
	sim := newTestSimulator()
	sim.GrantEnergy(combat.TeamA, 100)
	if _, err := e.Submit(sim, 1, combat.TeamA, "Barrier", 1001); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	pending := e.DrainPending(1)
	if len(pending) != 1 || pending[0].Kind != "Barrier" {
		t.Fatalf("expected one queued Barrier intervention, got %+v", pending)
	}
	if rest := e.DrainPending(1); len(rest) != 0 {
		t.Fatalf("expected queue cleared after drain, got %+v", rest)
	}
}
