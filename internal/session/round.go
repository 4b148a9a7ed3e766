package session

import (
	"echobattler/internal/combat"
	"echobattler/internal/envelope"
	"echobattler/internal/matchmaker"
	"echobattler/internal/phase"
	"echobattler/internal/player"
)

// phaseChangedPayload is broadcast on every scheduler transition.
type phaseChangedPayload struct {
	State        string `json:"State"`
	DurationSecs int    `json:"DurationSecs"`
	Round        int    `json:"Round"`
}

func (s *Session) onPhaseChanged(ch phase.Changed) {
	s.broadcast(envelope.KindPhaseChanged, phaseChangedPayload{
		State:        string(ch.New),
		DurationSecs: ch.DurationSecs,
		Round:        s.phaseSched.Round(),
	})

	switch ch.New {
	case phase.Combat:
		s.startCombats()
	case phase.Preparation:
		// Skip the very first WaitingForPlayers -> Preparation entry: there is
		// no completed round yet to reward, and join-time already grants each
		// player their opening shop (see handleJoinLobby).
		if ch.Old == phase.MutationChoice {
			s.resolveRound()
		}
	case phase.GameOver:
		s.announceGameEnd()
	}
}

// combatStartedPayload announces a new pairing to its two participants and
// every spectator.
type combatStartedPayload struct {
	CombatID int  `json:"CombatID"`
	PlayerA  int  `json:"PlayerA"`
	PlayerB  int  `json:"PlayerB"`
	IsGhost  bool `json:"IsGhost"`
}

type featuredMatchPayload struct {
	Player1 int    `json:"Player1"`
	Player2 int    `json:"Player2"`
	Reason  string `json:"Reason"`
}

// startCombats builds this round's pairings and constructs one combat.Simulator
// per pair, grounded on spec §4.J's pairing algorithm and §4.H's simulator.
func (s *Session) startCombats() {
	candidates := make([]matchmaker.Candidate, 0, len(s.seats))
	ownBoards := make(map[int][]int, len(s.seats))
	runtimes := make(map[int]player.Runtime, len(s.seats))

	for playerID := range s.playerConn {
		r, ok := s.store.Get(playerID)
		if !ok || r.Eliminated {
			continue
		}
		candidates = append(candidates, matchmaker.Candidate{ID: playerID, NexusHealth: r.NexusHealth})
		ownBoards[playerID] = boardCatalogIDs(r)
		runtimes[playerID] = r
	}

	pairs, featured := matchmaker.Pairings(candidates, ownBoards, s.bank, matchmaker.Settings{AtRiskHPThreshold: atRiskHPThreshold})

	s.combats = make(map[int]*activeCombat, len(pairs))
	s.combatsLeft = len(pairs)

	for _, pair := range pairs {
		combatID := s.nextCombatID
		s.nextCombatID++

		teamA := boardUnitsFrom(runtimes[pair.PlayerA])
		var teamB []combat.BoardUnit
		if pair.IsGhost {
			teamB = ghostUnitsFrom(pair.GhostBoard)
		} else {
			teamB = boardUnitsFrom(runtimes[pair.PlayerB])
		}

		sim := combat.NewSimulator(teamA, teamB, s.cat, s.rules.Combat, s.rules.Intervention, s.rng.Int63(), s.phaseSched.Round())
		connA, _ := s.connFor(pair.PlayerA)
		connB, _ := s.connFor(pair.PlayerB)
		s.combats[combatID] = &activeCombat{sim: sim, playerA: pair.PlayerA, playerB: pair.PlayerB, isGhost: pair.IsGhost, connA: connA, connB: connB}

		s.broadcast(envelope.KindCombatStarted, combatStartedPayload{
			CombatID: combatID, PlayerA: pair.PlayerA, PlayerB: pair.PlayerB, IsGhost: pair.IsGhost,
		})
	}

	if featured.Reason != matchmaker.ReasonNone {
		s.broadcast(envelope.KindFeaturedMatch, featuredMatchPayload{
			Player1: featured.Player1, Player2: featured.Player2, Reason: string(featured.Reason),
		})
	}

	if s.combatsLeft == 0 {
		s.phaseSched.NotifyCombatsDone(true)
	}
}

type combatUpdatePayload struct {
	CombatID int               `json:"CombatID"`
	Tick     int               `json:"Tick"`
	Units    []combat.UnitView `json:"Units"`
	Events   []combat.Event    `json:"Events"`
	Done     bool              `json:"Done"`
}

type combatEndedPayload struct {
	CombatID    int `json:"CombatID"`
	WinnerTeam  int `json:"WinnerTeam"`
	DamageDealt int `json:"DamageDealt"`
}

// stepCombats advances every live combat by one snapshot batch, broadcasting
// updates and resolving finished combats immediately.
func (s *Session) stepCombats() {
	for combatID, ac := range s.combats {
		if ac.resolved {
			continue
		}
		pending := s.interv.DrainPending(combatID)
		snap := ac.sim.StepBatch(pending)
		s.broadcastCombatUpdate(combatID, snap)
		if snap.Done {
			s.finishCombat(combatID, ac, snap)
		}
	}
}

func (s *Session) broadcastCombatUpdate(combatID int, snap combat.Snapshot) {
	payload := combatUpdatePayload{CombatID: combatID, Tick: snap.Tick, Units: snap.Units, Events: snap.Events, Done: snap.Done}
	if ac, ok := s.combats[combatID]; ok {
		if ac.connA != 0 {
			s.sendTo(ac.connA, envelope.KindCombatUpdate, false, payload)
		}
		if !ac.isGhost && ac.connB != 0 {
			s.sendTo(ac.connB, envelope.KindCombatUpdate, false, payload)
		}
	}
}

func (s *Session) finishCombat(combatID int, ac *activeCombat, snap combat.Snapshot) {
	ac.resolved = true
	s.combatsLeft--
	s.interv.ResetCombat(combatID)

	winnerID, loserID := ac.playerA, ac.playerB
	if snap.Result.WinnerTeam == combat.TeamB {
		winnerID, loserID = ac.playerB, ac.playerA
	}

	s.broadcast(envelope.KindCombatEnded, combatEndedPayload{
		CombatID: combatID, WinnerTeam: int(snap.Result.WinnerTeam), DamageDealt: snap.Result.DamageDealt,
	})

	if !ac.isGhost {
		_, _, _ = s.store.UpdateStreak(winnerID, true)
	}
	if loserID != matchmaker.GhostID {
		s.applyLoss(loserID, snap.Result.DamageDealt)
	}
	if winnerID != matchmaker.GhostID && loserID != matchmaker.GhostID {
		if winnerRuntime, ok := s.store.Get(winnerID); ok {
			s.bank.RecordResult(winnerID, loserID, boardCatalogIDs(winnerRuntime))
		}
	}

	if s.combatsLeft <= 0 {
		s.phaseSched.NotifyCombatsDone(true)
	}
	s.checkGameOver()
}

func (s *Session) applyLoss(loserID, damage int) {
	change, eliminated, err := s.store.ModifyHP(loserID, -damage)
	if err != nil {
		return
	}
	_, _, _ = s.store.UpdateStreak(loserID, false)
	if eliminated {
		s.broadcast(envelope.KindPlayerEliminated, struct {
			PlayerID int `json:"PlayerID"`
		}{PlayerID: change.ID})
	}
}

// checkGameOver forces the phase scheduler into GameOver once one or zero
// non-eliminated players remain.
func (s *Session) checkGameOver() {
	alive := 0
	for playerID := range s.playerConn {
		if r, ok := s.store.Get(playerID); ok && !r.Eliminated {
			alive++
		}
	}
	if alive <= 1 {
		s.phaseSched.NotifyOnePlayerLeft(true)
	}
}

// resolveRound grants end-of-round economy to every surviving player and
// rolls each of them a fresh shop. Called on Preparation entry (spec §4.L
// step 5), mirroring the teacher's per-tick batched state commits via
// player.Store.Transform.
func (s *Session) resolveRound() {
	for playerID := range s.playerConn {
		r, ok := s.store.Get(playerID)
		if !ok || r.Eliminated {
			continue
		}
		_, _, _ = s.store.Transform(playerID, s.store.GrantEndOfRoundGold())
		_, _, _ = s.store.GrantAutoXP(playerID)
		updated, _ := s.store.Get(playerID)
		s.shopMgr.GenerateFresh(playerID, updated.Level)
		if connID, ok := s.connFor(playerID); ok {
			s.sendPlayerState(connID, playerID)
		}
	}
}

// combatTeam converts the wire-level team index into the combat package's
// Team type.
func combatTeam(v int) combat.Team { return combat.Team(v) }

func (s *Session) announceGameEnd() {
	if s.ended {
		return
	}
	s.ended = true
	winner := -1
	for playerID := range s.playerConn {
		if r, ok := s.store.Get(playerID); ok && !r.Eliminated {
			winner = playerID
			break
		}
	}
	s.broadcast(envelope.KindGameEnded, struct {
		WinnerID int `json:"WinnerID"`
	}{WinnerID: winner})
}
