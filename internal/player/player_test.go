package player

import (
	"testing"

	"echobattler/internal/catalog"
	"echobattler/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cat := catalog.Default()
	rules := config.DefaultPlayerSettings()
	resRules := config.DefaultResonanceSettings()
	return NewStore(cat, rules, resRules)
}

func TestInitializeSeatsDefaults(t *testing.T) {
	store := newTestStore(t)
	change, err := store.Initialize(1, "Ada", 7, 28, 9)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if change.New.Gold != config.DefaultPlayerSettings().StartingGold {
		t.Fatalf("unexpected starting gold: %d", change.New.Gold)
	}
	if len(change.New.Board) != 28 || len(change.New.Bench) != 9 {
		t.Fatalf("unexpected board/bench size: %d/%d", len(change.New.Board), len(change.New.Bench))
	}
	if _, err := store.Initialize(1, "Ada", 7, 28, 9); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestTryDeductGoldRejectsWhenInsufficient(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Initialize(1, "Ada", 1, 28, 9); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, _, err := store.TryDeductGold(1, 1_000_000); err != ErrInsufficientGold {
		t.Fatalf("expected ErrInsufficientGold, got %v", err)
	}
	change, _, err := store.TryDeductGold(1, 1)
	if err != nil {
		t.Fatalf("TryDeductGold: %v", err)
	}
	if change.New.Gold != config.DefaultPlayerSettings().StartingGold-1 {
		t.Fatalf("unexpected gold after deduction: %d", change.New.Gold)
	}
}

func TestModifyHPClampsAndMarksElimination(t *testing.T) {
	store := newTestStore(t)
	store.Initialize(2, "Bo", 2, 28, 9)

	change, eliminated, err := store.ModifyHP(2, -10_000)
	if err != nil {
		t.Fatalf("ModifyHP: %v", err)
	}
	if change.New.NexusHealth != 0 || !change.New.Eliminated || !eliminated {
		t.Fatalf("expected elimination at zero hp, got %+v eliminated=%v", change.New, eliminated)
	}
}

func TestAddXPLevelsUpAndCapsAtLevelCap(t *testing.T) {
	store := newTestStore(t)
	store.Initialize(3, "Cy", 3, 28, 9)

	change, _, err := store.AddXP(3, 1_000_000)
	if err != nil {
		t.Fatalf("AddXP: %v", err)
	}
	rules := config.DefaultPlayerSettings()
	if change.New.Level != rules.LevelCap {
		t.Fatalf("expected level cap %d, got %d", rules.LevelCap, change.New.Level)
	}
	if change.New.Experience != 0 {
		t.Fatalf("expected xp to reset to zero at cap, got %d", change.New.Experience)
	}
}

func TestTryAddToBenchFusesThreeCopiesIntoTwoStar(t *testing.T) {
	store := newTestStore(t)
	store.Initialize(4, "Di", 4, 28, 9)

	ids := []int{1001, 1002, 1003}
	var lastEvents []struct{ count int }
	for _, inst := range ids {
		_, _, events, err := store.TryAddToBench(4, inst)
		if err != nil {
			t.Fatalf("TryAddToBench(%d): %v", inst, err)
		}
		lastEvents = append(lastEvents, struct{ count int }{len(events)})
	}
	final, ok := store.Get(4)
	if !ok {
		t.Fatalf("expected player 4 to exist")
	}
	fused := 0
	for _, s := range final.Bench {
		if !s.Empty() && s.Star == 2 {
			fused++
		}
	}
	if fused != 1 {
		t.Fatalf("expected exactly one fused 2-star survivor on bench, got %d (events per step=%v)", fused, lastEvents)
	}
}

func TestTryAddToBenchRejectsWhenFull(t *testing.T) {
	store := newTestStore(t)
	store.Initialize(5, "Eli", 5, 1, 1)

	if _, _, _, err := store.TryAddToBench(5, 1001); err != nil {
		t.Fatalf("first TryAddToBench: %v", err)
	}
	if _, _, _, err := store.TryAddToBench(5, 2001); err != ErrBenchFull {
		t.Fatalf("expected ErrBenchFull, got %v", err)
	}
}

func TestBoardBenchMovesEnforceInvariants(t *testing.T) {
	store := newTestStore(t)
	store.Initialize(6, "Fen", 6, 1, 1)

	if _, _, _, err := store.TryAddToBench(6, 1001); err != nil {
		t.Fatalf("TryAddToBench: %v", err)
	}
	if _, _, err := store.TryMoveBenchToBoard(6, 1001, 0); err != nil {
		t.Fatalf("TryMoveBenchToBoard: %v", err)
	}
	runtime, _ := store.Get(6)
	if runtime.Board[0].InstanceID != 1001 {
		t.Fatalf("expected instance 1001 on board slot 0, got %+v", runtime.Board[0])
	}

	if _, _, err := store.TryMoveBoardToBench(6, 1001); err != nil {
		t.Fatalf("TryMoveBoardToBench: %v", err)
	}
	runtime, _ = store.Get(6)
	if !runtime.Board[0].Empty() {
		t.Fatalf("expected board slot 0 empty after moving back to bench")
	}
}

func TestUpdateStreakIsMutuallyExclusive(t *testing.T) {
	store := newTestStore(t)
	store.Initialize(7, "Gus", 7, 28, 9)

	change, _, err := store.UpdateStreak(7, true)
	if err != nil {
		t.Fatalf("UpdateStreak: %v", err)
	}
	if change.New.Wins != 1 || change.New.Losses != 0 {
		t.Fatalf("unexpected streak after win: wins=%d losses=%d", change.New.Wins, change.New.Losses)
	}
	change, _, err = store.UpdateStreak(7, false)
	if err != nil {
		t.Fatalf("UpdateStreak: %v", err)
	}
	if change.New.Losses != 1 || change.New.Wins != 0 {
		t.Fatalf("unexpected streak after loss: wins=%d losses=%d", change.New.Wins, change.New.Losses)
	}
}
