// Package matchmaker pairs alive players each round, substituting a Ghost
// opponent for anyone left unpaired, and surfaces an optional featured match.
package matchmaker

import "sort"

// GhostID is the sentinel opponent id assigned when no live partner exists.
const GhostID = -99

// Candidate is the minimal per-player shape the pairing algorithm needs.
type Candidate struct {
	ID           int
	NexusHealth  int
	LastOpponent int // 0 if none recorded yet
}

// Pair is one matchup for the round.
type Pair struct {
	PlayerA      int
	PlayerB      int // GhostID when PlayerA drew a ghost
	IsGhost      bool
	GhostBoard   []int // catalog ids snapshot, only meaningful when IsGhost
	CombinedHP   int
	HasAtRiskLow bool
}

// FeaturedReason names why a pair was promoted to the featured match.
type FeaturedReason string

const (
	ReasonNone   FeaturedReason = ""
	ReasonAtRisk FeaturedReason = "AtRisk"
	ReasonHighHP FeaturedReason = "HighHP"
)

// Featured names the round's highlighted pair, if any.
type Featured struct {
	Player1 int
	Player2 int
	Reason  FeaturedReason
}

// Bank remembers, per player id, the board snapshot of whoever most recently
// beat them — used to stand in for a live opponent when a player is left
// unpaired (odd count, or no eligible partner).
type Bank struct {
	lastOpponent map[int]int
	beatenBy     map[int][]int // loserID -> winner's board snapshot (catalog ids)
}

// NewBank constructs an empty ghost bank / last-opponent tracker.
func NewBank() *Bank {
	return &Bank{
		lastOpponent: make(map[int]int),
		beatenBy:     make(map[int][]int),
	}
}

// RecordResult updates last-opponent tracking for both sides and records the
// winner's board snapshot under the loser's id in the ghost bank.
func (b *Bank) RecordResult(winner, loser int, winnerSnapshot []int) {
	b.lastOpponent[winner] = loser
	b.lastOpponent[loser] = winner
	b.beatenBy[loser] = append([]int(nil), winnerSnapshot...)
}

func (b *Bank) lastOpponentOf(id int) int {
	return b.lastOpponent[id]
}

// ghostBoardFor returns the board that last beat id, falling back to the
// player's own board (mirrored) when nobody has beaten them yet.
func (b *Bank) ghostBoardFor(id int, ownBoard []int) []int {
	if snap, ok := b.beatenBy[id]; ok {
		return snap
	}
	return ownBoard
}

// Settings feeds the featured-match selection: AtRiskHPThreshold is the nexus
// hp below which a player counts as at risk.
type Settings struct {
	AtRiskHPThreshold int
}

// Pairings computes this round's pairing list. ownBoards supplies each
// candidate's current board (catalog ids), used only for the own-board
// mirror fallback in the ghost case.
func Pairings(candidates []Candidate, ownBoards map[int][]int, bank *Bank, settings Settings) ([]Pair, Featured) {
	sorted := append([]Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].NexusHealth != sorted[j].NexusHealth {
			return sorted[i].NexusHealth > sorted[j].NexusHealth
		}
		return sorted[i].ID < sorted[j].ID
	})

	byID := make(map[int]Candidate, len(sorted))
	for _, c := range sorted {
		byID[c.ID] = c
	}

	paired := make(map[int]bool, len(sorted))
	var pairs []Pair

	for _, c := range sorted {
		if paired[c.ID] {
			continue
		}
		partner, ok := bestPartner(c, sorted, paired, bank)
		if !ok {
			paired[c.ID] = true
			pairs = append(pairs, Pair{
				PlayerA:    c.ID,
				PlayerB:    GhostID,
				IsGhost:    true,
				GhostBoard: bank.ghostBoardFor(c.ID, ownBoards[c.ID]),
				CombinedHP: c.NexusHealth,
			})
			continue
		}
		paired[c.ID] = true
		paired[partner.ID] = true
		pairs = append(pairs, Pair{
			PlayerA:    c.ID,
			PlayerB:    partner.ID,
			CombinedHP: c.NexusHealth + partner.NexusHealth,
		})
	}

	return pairs, selectFeatured(pairs, byID, settings)
}

// bestPartner finds c's ideal unpaired opponent: prefer someone whose id
// differs from c's last-round opponent; among candidates, smallest |Δhp|,
// tie-broken by ascending id.
func bestPartner(c Candidate, sorted []Candidate, paired map[int]bool, bank *Bank) (Candidate, bool) {
	lastOpp := bank.lastOpponentOf(c.ID)

	pick := func(excludeLastOpponent bool) (Candidate, bool) {
		var best Candidate
		found := false
		bestDelta := -1
		for _, cand := range sorted {
			if cand.ID == c.ID || paired[cand.ID] {
				continue
			}
			if excludeLastOpponent && cand.ID == lastOpp {
				continue
			}
			delta := abs(c.NexusHealth - cand.NexusHealth)
			if !found || delta < bestDelta || (delta == bestDelta && cand.ID < best.ID) {
				best, bestDelta, found = cand, delta, true
			}
		}
		return best, found
	}

	if best, ok := pick(true); ok {
		return best, true
	}
	return pick(false)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func selectFeatured(pairs []Pair, byID map[int]Candidate, settings Settings) Featured {
	for _, p := range pairs {
		if isAtRisk(p.PlayerA, byID, settings) || (!p.IsGhost && isAtRisk(p.PlayerB, byID, settings)) {
			return Featured{Player1: p.PlayerA, Player2: p.PlayerB, Reason: ReasonAtRisk}
		}
	}
	best := -1
	var featured Pair
	for _, p := range pairs {
		if p.IsGhost {
			continue
		}
		if p.CombinedHP > best {
			best, featured = p.CombinedHP, p
		}
	}
	if best < 0 {
		return Featured{}
	}
	return Featured{Player1: featured.PlayerA, Player2: featured.PlayerB, Reason: ReasonHighHP}
}

func isAtRisk(id int, byID map[int]Candidate, settings Settings) bool {
	c, ok := byID[id]
	return ok && c.NexusHealth < settings.AtRiskHPThreshold
}
