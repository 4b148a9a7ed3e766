// Package catalog holds the immutable table of echo (unit) definitions
// shared read-only across every session. It must be fully loaded before a
// session accepts connections and never changes afterwards.
package catalog

import (
	"encoding/json"
	"fmt"
	"sync"

	_ "embed"
)

// Rarity orders the shop/pity tiers from least to most valuable.
type Rarity int

const (
	Common Rarity = iota
	Rare
	Epic
	Legendary
)

// String renders the rarity using its catalog name.
func (r Rarity) String() string {
	switch r {
	case Common:
		return "Common"
	case Rare:
		return "Rare"
	case Epic:
		return "Epic"
	case Legendary:
		return "Legendary"
	default:
		return "Unknown"
	}
}

func parseRarity(raw string) (Rarity, error) {
	switch raw {
	case "Common":
		return Common, nil
	case "Rare":
		return Rare, nil
	case "Epic":
		return Epic, nil
	case "Legendary":
		return Legendary, nil
	default:
		return 0, fmt.Errorf("unknown rarity %q", raw)
	}
}

// Stats captures the immutable base combat stats for a catalog entry.
type Stats struct {
	//1.- HP is the base hit point pool before star-up multipliers apply.
	HP int
	//2.- Mana is the pool that must fill before the unit casts its ability.
	Mana int
	//3.- Attack is the base physical damage dealt on a successful engage.
	Attack int
	//4.- Defense is subtracted from incoming damage before further mitigation.
	Defense int
	//5.- MagicResist is copied onto each combat unit; neither the base pipeline nor the ability handlers read it.
	MagicResist int
	//6.- AttackSpeed is an integer percentage (100 is baseline); the simulator uses it as the unit's move speed, while attack cooldowns come from the per-class cooldown table.
	AttackSpeed int
	//7.- AttackRange is expressed in Chebyshev cells on the combat board.
	AttackRange int
	//8.- CritChance is an integer percentage in [0, 100].
	CritChance int
	//9.- CritMultiplier is an integer percentage; 150 means 1.5x damage.
	CritMultiplier int
}

// EchoDefinition is one immutable catalog entry.
type EchoDefinition struct {
	ID         int
	Name       string
	Rarity     Rarity
	Class      string
	Resonance  string
	Base       Stats
	AbilityIDs []string
}

type echoFile struct {
	Echoes []echoRecord `json:"echoes"`
}

type echoRecord struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Rarity         string   `json:"rarity"`
	Class          string   `json:"class"`
	Resonance      string   `json:"resonance"`
	HP             int      `json:"hp"`
	Mana           int      `json:"mana"`
	Attack         int      `json:"attack"`
	Defense        int      `json:"defense"`
	MagicResist    int      `json:"magicResist"`
	AttackSpeed    int      `json:"attackSpeed"`
	AttackRange    int      `json:"attackRange"`
	CritChance     int      `json:"critChance"`
	CritMultiplier int      `json:"critMultiplier"`
	Abilities      []string `json:"abilities"`
}

// Catalog is the immutable, process-shareable id -> definition table.
type Catalog struct {
	byID map[int]EchoDefinition
}

//go:embed echoes.json
var defaultEchoesPayload []byte

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the illustrative catalog embedded with the binary. It is
// parsed once and cached; callers receive the shared immutable instance.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(defaultEchoesPayload)
	})
	//1.- A malformed embedded catalog is a build-time bug, not a runtime condition to recover from.
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCat
}

// Parse decodes a JSON catalog payload into a Catalog.
func Parse(payload []byte) (*Catalog, error) {
	var decoded echoFile
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	cat := &Catalog{byID: make(map[int]EchoDefinition, len(decoded.Echoes))}
	for _, rec := range decoded.Echoes {
		rarity, err := parseRarity(rec.Rarity)
		if err != nil {
			return nil, fmt.Errorf("echo %d: %w", rec.ID, err)
		}
		cat.byID[rec.ID] = EchoDefinition{
			ID:        rec.ID,
			Name:      rec.Name,
			Rarity:    rarity,
			Class:     rec.Class,
			Resonance: rec.Resonance,
			Base: Stats{
				HP:             rec.HP,
				Mana:           rec.Mana,
				Attack:         rec.Attack,
				Defense:        rec.Defense,
				MagicResist:    rec.MagicResist,
				AttackSpeed:    rec.AttackSpeed,
				AttackRange:    rec.AttackRange,
				CritChance:     rec.CritChance,
				CritMultiplier: rec.CritMultiplier,
			},
			AbilityIDs: append([]string(nil), rec.Abilities...),
		}
	}
	return cat, nil
}

// ByID looks up a catalog id, reporting ok=false for unknown ids (an
// internal invariant violation per the error handling design).
func (c *Catalog) ByID(id int) (EchoDefinition, bool) {
	if c == nil {
		return EchoDefinition{}, false
	}
	def, ok := c.byID[id]
	return def, ok
}

// ByInstance derives the catalog id from an instance id (instance_id / 1000)
// and resolves it, per the instance-id encoding invariant in the data model.
func (c *Catalog) ByInstance(instanceID int) (EchoDefinition, bool) {
	return c.ByID(CatalogIDFromInstance(instanceID))
}

// CatalogIDFromInstance extracts the catalog id encoded into an instance id.
func CatalogIDFromInstance(instanceID int) int {
	return instanceID / 1000
}

// RarityCost returns the configured shop cost for a rarity tier.
func RarityCost(r Rarity, costs [4]int) int {
	if int(r) < 0 || int(r) >= len(costs) {
		return 0
	}
	return costs[r]
}

// IDs returns every catalog id, sorted ascending, mainly for test fixtures
// and pool seeding.
func (c *Catalog) IDs() []int {
	if c == nil {
		return nil
	}
	ids := make([]int, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// ByRarity returns every catalog id at the given rarity, in ascending order.
func (c *Catalog) ByRarity(r Rarity) []int {
	var out []int
	for _, id := range c.IDs() {
		if c.byID[id].Rarity == r {
			out = append(out, id)
		}
	}
	return out
}
