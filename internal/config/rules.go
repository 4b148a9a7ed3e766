package config

import "time"

// PlayerSettings configures per-seat economy defaults and caps.
type PlayerSettings struct {
	StartingHP    int
	StartingGold  int
	MaxGold       int
	BenchSize     int
	BoardSize     int
	LevelCap      int
	XPThresholds  []int // index 0 is the xp required to leave level 1
	InterestCap   int   // max gold-interest granted per round
	BaseGoldRound int
	XPBuyCost     int
	AutoXPPerLvl  int
	StreakBonus   [2]int // {small-streak, large-streak} bonus gold amounts (streak of 3+, streak of 5+)
}

// DefaultPlayerSettings matches the illustrative balance used by the tests.
func DefaultPlayerSettings() PlayerSettings {
	return PlayerSettings{
		StartingHP:    100,
		StartingGold:  10,
		MaxGold:       999,
		BenchSize:     9,
		BoardSize:     28, // 7 cols x 4 rows, matches the client contract's BoardCols*Rows
		LevelCap:      10,
		XPThresholds:  []int{2, 6, 10, 20, 36, 56, 80, 100, 120},
		InterestCap:   5,
		BaseGoldRound: 5,
		XPBuyCost:     4,
		AutoXPPerLvl:  2,
		StreakBonus:   [2]int{3, 1},
	}
}

// ShopSettings configures refresh cost, pity thresholds, and per-level-bucket
// rarity probability rows.
type ShopSettings struct {
	Size           int
	RefreshCost    int
	RarityCost     [4]int // Common, Rare, Epic, Legendary
	PityThresholds [3]int // no_rare, no_epic, no_legendary
	Buckets        []ProbabilityBucket
}

// ProbabilityBucket maps an inclusive player-level range to a rarity roll row.
type ProbabilityBucket struct {
	MinLevel int
	MaxLevel int // 0 means unbounded (covers MinLevel and above)
	Weights  [4]int
}

// DefaultShopSettings matches the illustrative balance used by the tests.
func DefaultShopSettings() ShopSettings {
	return ShopSettings{
		Size:           5,
		RefreshCost:    2,
		RarityCost:     [4]int{1, 2, 3, 4},
		PityThresholds: [3]int{8, 12, 18},
		Buckets: []ProbabilityBucket{
			{MinLevel: 1, MaxLevel: 1, Weights: [4]int{100, 0, 0, 0}},
			{MinLevel: 2, MaxLevel: 3, Weights: [4]int{80, 20, 0, 0}},
			{MinLevel: 4, MaxLevel: 6, Weights: [4]int{55, 30, 13, 2}},
			{MinLevel: 7, MaxLevel: 9, Weights: [4]int{35, 35, 22, 8}},
			{MinLevel: 10, MaxLevel: 0, Weights: [4]int{20, 30, 33, 17}},
		},
	}
}

// BucketForLevel returns the configured probability row for a player level.
func (s ShopSettings) BucketForLevel(level int) ProbabilityBucket {
	for _, b := range s.Buckets {
		if level >= b.MinLevel && (b.MaxLevel == 0 || level <= b.MaxLevel) {
			return b
		}
	}
	if len(s.Buckets) > 0 {
		return s.Buckets[len(s.Buckets)-1]
	}
	return ProbabilityBucket{}
}

// StatMultiplier scales a unit's stats when it fuses to a higher star level.
type StatMultiplier struct {
	HP     float64
	Attack float64
}

// CombatSettings configures the deterministic simulator.
type CombatSettings struct {
	MaxTicks             int
	SnapshotIntervalTick int
	ManaPerAttack        int
	ManaPerHit           int
	MaxMana              int
	// StarMultipliers holds the split Hp/Attack scaling per star level
	// (index 0 = 2-star, index 1 = 3-star); see SPEC_FULL.md 4.H for why
	// the split shape was chosen over a single combined multiplier.
	StarMultipliers   [2]StatMultiplier
	ClassCooldowns    map[string]int // ticks between attacks, per class
	ClassRanges       map[string]int // Chebyshev attack range, per class
	DefaultDamageBase int
}

// DefaultCombatSettings matches the illustrative balance used by the tests.
func DefaultCombatSettings() CombatSettings {
	return CombatSettings{
		MaxTicks:             1800, // 30 simulated seconds at 60 ticks/sec
		SnapshotIntervalTick: 3,
		ManaPerAttack:        10,
		ManaPerHit:           5,
		MaxMana:              100,
		StarMultipliers: [2]StatMultiplier{
			{HP: 1.8, Attack: 1.8},
			{HP: 3.2, Attack: 3.2},
		},
		ClassCooldowns: map[string]int{
			"Guardian":   40,
			"Skirmisher": 25,
			"Mystic":     35,
		},
		ClassRanges: map[string]int{
			"Guardian":   1,
			"Skirmisher": 1,
			"Mystic":     3,
		},
		DefaultDamageBase: 50,
	}
}

// InterventionSettings configures energy gain and per-kind cost/cooldown/duration.
type InterventionSettings struct {
	MaxEnergy           int
	PassiveIntervalTick int
	KillGain            int
	DamagePerEnergy     int
	Kinds               map[string]InterventionKindSettings
}

// InterventionKindSettings configures one intervention kind.
type InterventionKindSettings struct {
	Cost     int
	Cooldown time.Duration
	Duration int // ticks, meaning depends on the kind
}

// DefaultInterventionSettings matches the illustrative balance used by the tests.
func DefaultInterventionSettings() InterventionSettings {
	return InterventionSettings{
		MaxEnergy:           100,
		PassiveIntervalTick: 60,
		KillGain:            15,
		DamagePerEnergy:     20,
		Kinds: map[string]InterventionKindSettings{
			"Reposition":      {Cost: 20, Cooldown: 8 * time.Second, Duration: 0},
			"Focus":           {Cost: 30, Cooldown: 12 * time.Second, Duration: 90},
			"Barrier":         {Cost: 25, Cooldown: 10 * time.Second, Duration: 0},
			"Accelerate":      {Cost: 35, Cooldown: 15 * time.Second, Duration: 120},
			"TacticalRetreat": {Cost: 20, Cooldown: 9 * time.Second, Duration: 60},
		},
	}
}

// ResonanceSettings configures tier thresholds and per-resonance-per-tier bonuses.
type ResonanceSettings struct {
	Thresholds [3]int // counts required for tier 1/2/3
	Bonuses    map[string][3]ResonanceBonus
}

// ResonanceBonus describes the stat bonus granted at one tier.
type ResonanceBonus struct {
	AttackPct int
	HPPct     int
}

// DefaultResonanceSettings matches the illustrative balance used by the tests.
func DefaultResonanceSettings() ResonanceSettings {
	return ResonanceSettings{
		Thresholds: [3]int{2, 4, 6},
		Bonuses: map[string][3]ResonanceBonus{
			"Ember": {{AttackPct: 10}, {AttackPct: 20}, {AttackPct: 35}},
			"Tide":  {{HPPct: 15}, {HPPct: 30}, {HPPct: 50}},
			"Gale":  {{AttackPct: 5, HPPct: 5}, {AttackPct: 12, HPPct: 12}, {AttackPct: 20, HPPct: 20}},
		},
	}
}

// PhaseSettings configures how long each round phase lasts.
type PhaseSettings struct {
	PreparationSecs    int
	CombatMaxSecs      int
	RewardSecs         int
	MutationChoiceSecs int
	LobbyCountdownSecs int
	RoundCap           int
}

// DefaultPhaseSettings matches the illustrative balance used by the tests.
func DefaultPhaseSettings() PhaseSettings {
	return PhaseSettings{
		PreparationSecs:    30,
		CombatMaxSecs:      30,
		RewardSecs:         5,
		MutationChoiceSecs: 15,
		LobbyCountdownSecs: 5,
		RoundCap:           40,
	}
}

// PoolSettings configures the seed count per rarity for the shared pool bank.
type PoolSettings struct {
	CopiesPerRarity [4]int
}

// DefaultPoolSettings matches the illustrative balance used by the tests.
func DefaultPoolSettings() PoolSettings {
	return PoolSettings{CopiesPerRarity: [4]int{29, 22, 18, 10}}
}

// GameRules bundles every gameplay-tunable nested config together.
type GameRules struct {
	Player       PlayerSettings
	Shop         ShopSettings
	Combat       CombatSettings
	Intervention InterventionSettings
	Resonance    ResonanceSettings
	Phase        PhaseSettings
	Pool         PoolSettings
}

// DefaultGameRules bundles every Default*Settings constructor above.
func DefaultGameRules() GameRules {
	return GameRules{
		Player:       DefaultPlayerSettings(),
		Shop:         DefaultShopSettings(),
		Combat:       DefaultCombatSettings(),
		Intervention: DefaultInterventionSettings(),
		Resonance:    DefaultResonanceSettings(),
		Phase:        DefaultPhaseSettings(),
		Pool:         DefaultPoolSettings(),
	}
}
