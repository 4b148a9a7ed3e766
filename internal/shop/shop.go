// Package shop implements the per-session pool bank, per-player shop slots,
// and the pity-gated rarity roll algorithm.
package shop

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"echobattler/internal/catalog"
	"echobattler/internal/config"
	"echobattler/internal/player"
)

var (
	// ErrSlotEmpty is returned when Buy targets an empty shop slot.
	ErrSlotEmpty = errors.New("slot vuoto")
	// ErrBenchFull is returned when Buy cannot place the purchased unit on the bench.
	ErrBenchFull = errors.New("panchina piena")
	// ErrInsufficientGold is returned when Buy cannot afford the rarity cost.
	ErrInsufficientGold = errors.New("oro insufficiente")
)

const emptySlot = -1

// Pool is the per-session shared multiset of available catalog ids, keyed by rarity.
type Pool struct {
	bags [4]map[int]int
}

// NewPool seeds a pool from the catalog, with CopiesPerRarity[r] copies of
// every catalog entry at rarity r.
func NewPool(cat *catalog.Catalog, settings config.PoolSettings) *Pool {
	p := &Pool{}
	for r := range p.bags {
		p.bags[r] = make(map[int]int)
	}
	for _, id := range cat.IDs() {
		def, ok := cat.ByID(id)
		if !ok {
			continue
		}
		copies := 0
		if int(def.Rarity) < len(settings.CopiesPerRarity) {
			copies = settings.CopiesPerRarity[def.Rarity]
		}
		p.bags[def.Rarity][id] = copies
	}
	return p
}

// Take decrements the count for id if available, reporting success.
func (p *Pool) Take(rarity catalog.Rarity, id int) bool {
	bag := p.bags[rarity]
	if bag[id] <= 0 {
		return false
	}
	bag[id]--
	return true
}

// Return increments the count for id.
func (p *Pool) Return(rarity catalog.Rarity, id int) {
	p.bags[rarity][id]++
}

// AvailableIDs returns every catalog id at rarity with count > 0, sorted ascending.
func (p *Pool) AvailableIDs(rarity catalog.Rarity) []int {
	var ids []int
	for id, count := range p.bags[rarity] {
		if count > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// pityCounters tracks per-player rounds-since-last-roll for each gated rarity.
type pityCounters struct {
	noRare, noEpic, noLegendary int
}

// Shop is one player's five-slot rolled offering plus their pity state.
type Shop struct {
	Slots [5]int // catalog id, or emptySlot
	pity  pityCounters
}

// NewShop returns an empty shop with zeroed pity counters.
func NewShop() *Shop {
	s := &Shop{}
	for i := range s.Slots {
		s.Slots[i] = emptySlot
	}
	return s
}

// Manager owns the pool and every player's shop, bound to one session.
type Manager struct {
	pool     *Pool
	catalog  *catalog.Catalog
	settings config.ShopSettings
	rng      *rand.Rand
	shops    map[int]*Shop
}

// NewManager constructs a shop manager for a session, sharing the session's
// seeded RNG so a full replay (combat + shop rolls) stays deterministic.
func NewManager(cat *catalog.Catalog, settings config.ShopSettings, pool config.PoolSettings, rng *rand.Rand) *Manager {
	return &Manager{
		pool:     NewPool(cat, pool),
		catalog:  cat,
		settings: settings,
		rng:      rng,
		shops:    make(map[int]*Shop),
	}
}

func (m *Manager) shopFor(playerID int) *Shop {
	s, ok := m.shops[playerID]
	if !ok {
		s = NewShop()
		m.shops[playerID] = s
	}
	return s
}

// Snapshot returns the catalog ids currently offered to playerID, empty slots as -1.
func (m *Manager) Snapshot(playerID int) [5]int {
	return m.shopFor(playerID).Slots
}

// BuyResult names what happened to the purchased slot.
type BuyResult struct {
	SlotIndex  int
	CatalogID  int
	Cost       int
	InstanceID int
}

// Buy composes the bench-placement and gold-deduction transforms into one
// all-or-nothing operation: on gold rejection, the bench placement is
// reversed before returning the error (Open Question 1 resolution — no
// partial effect survives a rejected buy).
func (m *Manager) Buy(store *player.Store, playerID, slotIndex int) (BuyResult, error) {
	shop := m.shopFor(playerID)
	if slotIndex < 0 || slotIndex >= len(shop.Slots) || shop.Slots[slotIndex] == emptySlot {
		return BuyResult{}, ErrSlotEmpty
	}
	catalogID := shop.Slots[slotIndex]
	def, ok := m.catalog.ByID(catalogID)
	if !ok {
		return BuyResult{}, fmt.Errorf("catalog id %d not found", catalogID)
	}
	cost := catalog.RarityCost(def.Rarity, m.settings.RarityCost)
	instanceID := catalogID*1000 + m.rng.Intn(1000)

	change, _, _, err := store.TryAddToBench(playerID, instanceID)
	if err != nil {
		return BuyResult{}, ErrBenchFull
	}
	_ = change
	if _, _, err := store.TryDeductGold(playerID, cost); err != nil {
		//1.- Reverse the bench placement so the rejected buy leaves no trace.
		_, _, _ = store.TryRemove(playerID, instanceID)
		return BuyResult{}, ErrInsufficientGold
	}
	shop.Slots[slotIndex] = emptySlot
	return BuyResult{SlotIndex: slotIndex, CatalogID: catalogID, Cost: cost, InstanceID: instanceID}, nil
}

// Sell decodes the catalog id from instanceID, removes it from board/bench via
// the player store, refunds the rarity cost (no discount), and returns the
// catalog id to the pool.
func (m *Manager) Sell(store *player.Store, playerID, instanceID int) (int, error) {
	catalogID := catalog.CatalogIDFromInstance(instanceID)
	def, ok := m.catalog.ByID(catalogID)
	if !ok {
		return 0, fmt.Errorf("catalog id %d not found", catalogID)
	}
	if _, _, err := store.TryRemove(playerID, instanceID); err != nil {
		return 0, err
	}
	refund := catalog.RarityCost(def.Rarity, m.settings.RarityCost)
	if _, _, err := store.AddGold(playerID, refund); err != nil {
		return 0, err
	}
	m.pool.Return(def.Rarity, catalogID)
	return refund, nil
}

// Refresh deducts the fixed refresh cost, returns the current shop to the
// pool, bumps all three pity counters, and rolls a fresh shop.
func (m *Manager) Refresh(store *player.Store, playerID, level int) error {
	if _, _, err := store.TryDeductGold(playerID, m.settings.RefreshCost); err != nil {
		return err
	}
	shop := m.shopFor(playerID)
	for i, id := range shop.Slots {
		if id == emptySlot {
			continue
		}
		if def, ok := m.catalog.ByID(id); ok {
			m.pool.Return(def.Rarity, id)
		}
		shop.Slots[i] = emptySlot
	}
	shop.pity.noRare++
	shop.pity.noEpic++
	shop.pity.noLegendary++
	m.generate(shop, level)
	return nil
}

// GenerateFresh rolls a brand new shop without touching gold or pity state
// reset (used at seat init and round start).
func (m *Manager) GenerateFresh(playerID, level int) {
	m.generate(m.shopFor(playerID), level)
}

func (m *Manager) generate(shop *Shop, level int) {
	for i := range shop.Slots {
		shop.Slots[i] = m.rollSlot(shop, level)
	}
}

func (m *Manager) rollSlot(shop *Shop, level int) int {
	target, forced := m.pityTarget(shop)
	if !forced {
		target = m.rollRarityByLevel(level)
	}
	for r := int(target); r >= int(catalog.Common); r-- {
		rarity := catalog.Rarity(r)
		candidates := m.pool.AvailableIDs(rarity)
		if len(candidates) == 0 {
			continue
		}
		shuffled := append([]int(nil), candidates...)
		m.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		for _, id := range shuffled {
			if m.pool.Take(rarity, id) {
				if !forced && rarity >= catalog.Rare {
					m.resetPityAtOrBelow(shop, rarity)
				}
				return id
			}
		}
	}
	return emptySlot
}

func (m *Manager) pityTarget(shop *Shop) (catalog.Rarity, bool) {
	if shop.pity.noLegendary >= m.settings.PityThresholds[2] {
		shop.pity.noRare, shop.pity.noEpic, shop.pity.noLegendary = 0, 0, 0
		return catalog.Legendary, true
	}
	if shop.pity.noEpic >= m.settings.PityThresholds[1] {
		shop.pity.noEpic, shop.pity.noRare = 0, 0
		return catalog.Epic, true
	}
	if shop.pity.noRare >= m.settings.PityThresholds[0] {
		shop.pity.noRare = 0
		return catalog.Rare, true
	}
	return catalog.Common, false
}

func (m *Manager) resetPityAtOrBelow(shop *Shop, rarity catalog.Rarity) {
	switch {
	case rarity >= catalog.Legendary:
		shop.pity.noRare, shop.pity.noEpic, shop.pity.noLegendary = 0, 0, 0
	case rarity >= catalog.Epic:
		shop.pity.noRare, shop.pity.noEpic = 0, 0
	case rarity >= catalog.Rare:
		shop.pity.noRare = 0
	}
}

func (m *Manager) rollRarityByLevel(level int) catalog.Rarity {
	bucket := m.settings.BucketForLevel(level)
	total := 0
	for _, w := range bucket.Weights {
		total += w
	}
	if total <= 0 {
		return catalog.Common
	}
	roll := m.rng.Intn(total)
	acc := 0
	for r, w := range bucket.Weights {
		acc += w
		if roll < acc {
			return catalog.Rarity(r)
		}
	}
	return catalog.Rarity(len(bucket.Weights) - 1)
}
