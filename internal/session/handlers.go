package session

import (
	"echobattler/internal/envelope"
	"echobattler/internal/logging"
	"echobattler/internal/player"
)

// handlerFunc processes one decoded inbound envelope under the session lock.
type handlerFunc func(s *Session, connID int, env envelope.Envelope)

// handlers is the closed dispatch table mirroring spec §6's message-kind
// table; unlisted kinds (server -> client only, or Ack handled separately in
// dispatch) are simply absent.
var handlers = map[envelope.Kind]handlerFunc{
	envelope.KindJoinLobby:       (*Session).handleJoinLobby,
	envelope.KindReadyUp:         (*Session).handleReadyUp,
	envelope.KindBuyEcho:         (*Session).handleBuyEcho,
	envelope.KindSellEcho:        (*Session).handleSellEcho,
	envelope.KindRefreshShop:     (*Session).handleRefreshShop,
	envelope.KindBuyXP:           (*Session).handleBuyXP,
	envelope.KindPositionEcho:    (*Session).handlePositionEcho,
	envelope.KindRemoveFromBoard: (*Session).handleRemoveFromBoard,
	envelope.KindUseIntervention: (*Session).handleUseIntervention,
	envelope.KindPing:            (*Session).handlePing,
}

type joinLobbyRequest struct {
	DisplayName string `json:"DisplayName"`
}

type joinLobbyResponse struct {
	PlayerID int `json:"PlayerID"`
}

type lobbyStatePayload struct {
	PlayerIDs []int `json:"PlayerIDs"`
	ReadyIDs  []int `json:"ReadyIDs"`
}

// handleJoinLobby seats a new player at this connection. A seat's player id
// is the connection id it joined on; reconnecting under a new connection is
// out of scope (spec's disconnect handling removes the seat outright).
func (s *Session) handleJoinLobby(connID int, env envelope.Envelope) {
	var req joinLobbyRequest
	if err := env.Decode(&req); err != nil {
		s.rejectAction(connID, env, "malformed JoinLobby payload")
		return
	}
	if _, exists := s.seats[connID]; exists {
		s.rejectAction(connID, env, "connection already joined")
		return
	}

	playerID := connID
	if _, err := s.store.Initialize(playerID, req.DisplayName, connID, s.rules.Player.BoardSize, s.rules.Player.BenchSize); err != nil {
		s.rejectAction(connID, env, err.Error())
		return
	}
	s.shopMgr.GenerateFresh(playerID, 1)
	s.seats[connID] = playerID
	s.playerConn[playerID] = connID

	s.sendTo(connID, envelope.KindJoinLobbyResponse, true, joinLobbyResponse{PlayerID: playerID})
	s.broadcastLobbyState()
}

func (s *Session) broadcastLobbyState() {
	ids := make([]int, 0, len(s.playerConn))
	ready := make([]int, 0, len(s.playerConn))
	for playerID := range s.playerConn {
		ids = append(ids, playerID)
		if s.ready[playerID] {
			ready = append(ready, playerID)
		}
	}
	s.broadcast(envelope.KindLobbyState, lobbyStatePayload{PlayerIDs: ids, ReadyIDs: ready})
}

// handleReadyUp marks the seat ready; once every seated player (at least two)
// is ready, the phase scheduler is told so its lobby countdown can start.
func (s *Session) handleReadyUp(connID int, env envelope.Envelope) {
	playerID, ok := s.seats[connID]
	if !ok {
		s.rejectAction(connID, env, "not seated")
		return
	}
	s.ready[playerID] = true
	s.broadcastLobbyState()

	if len(s.playerConn) < 2 {
		return
	}
	for pid := range s.playerConn {
		if !s.ready[pid] {
			s.phaseSched.NotifyAllReady(false)
			return
		}
	}
	s.phaseSched.NotifyAllReady(true)
}

type buyEchoRequest struct {
	SlotIndex int `json:"SlotIndex"`
}

func (s *Session) handleBuyEcho(connID int, env envelope.Envelope) {
	playerID, ok := s.seats[connID]
	if !ok {
		s.rejectAction(connID, env, "not seated")
		return
	}
	var req buyEchoRequest
	if err := env.Decode(&req); err != nil {
		s.rejectAction(connID, env, "malformed BuyEcho payload")
		return
	}
	if _, err := s.shopMgr.Buy(s.store, playerID, req.SlotIndex); err != nil {
		s.rejectAction(connID, env, err.Error())
		return
	}
	s.sendPlayerState(connID, playerID)
	s.sendShopState(connID, playerID)
}

type sellEchoRequest struct {
	InstanceID int `json:"InstanceID"`
}

func (s *Session) handleSellEcho(connID int, env envelope.Envelope) {
	playerID, ok := s.seats[connID]
	if !ok {
		s.rejectAction(connID, env, "not seated")
		return
	}
	var req sellEchoRequest
	if err := env.Decode(&req); err != nil {
		s.rejectAction(connID, env, "malformed SellEcho payload")
		return
	}
	if _, err := s.shopMgr.Sell(s.store, playerID, req.InstanceID); err != nil {
		s.rejectAction(connID, env, err.Error())
		return
	}
	s.sendPlayerState(connID, playerID)
}

func (s *Session) handleRefreshShop(connID int, env envelope.Envelope) {
	playerID, ok := s.seats[connID]
	if !ok {
		s.rejectAction(connID, env, "not seated")
		return
	}
	r, ok := s.store.Get(playerID)
	if !ok {
		s.rejectAction(connID, env, player.ErrNotFound.Error())
		return
	}
	if err := s.shopMgr.Refresh(s.store, playerID, r.Level); err != nil {
		s.rejectAction(connID, env, err.Error())
		return
	}
	s.sendPlayerState(connID, playerID)
	s.sendShopState(connID, playerID)
}

func (s *Session) handleBuyXP(connID int, env envelope.Envelope) {
	playerID, ok := s.seats[connID]
	if !ok {
		s.rejectAction(connID, env, "not seated")
		return
	}
	if _, _, err := s.store.TryDeductGold(playerID, s.rules.Player.XPBuyCost); err != nil {
		s.rejectAction(connID, env, err.Error())
		return
	}
	if _, _, err := s.store.AddXP(playerID, s.rules.Player.AutoXPPerLvl); err != nil {
		s.rejectAction(connID, env, err.Error())
		return
	}
	s.sendPlayerState(connID, playerID)
}

type positionEchoRequest struct {
	InstanceID int `json:"InstanceID"`
	BoardIndex int `json:"BoardIndex"`
}

func (s *Session) handlePositionEcho(connID int, env envelope.Envelope) {
	playerID, ok := s.seats[connID]
	if !ok {
		s.rejectAction(connID, env, "not seated")
		return
	}
	var req positionEchoRequest
	if err := env.Decode(&req); err != nil {
		s.rejectAction(connID, env, "malformed PositionEcho payload")
		return
	}
	if _, _, err := s.store.TryMoveBenchToBoard(playerID, req.InstanceID, req.BoardIndex); err != nil {
		s.rejectAction(connID, env, err.Error())
		return
	}
	s.sendPlayerState(connID, playerID)
}

type removeFromBoardRequest struct {
	InstanceID int `json:"InstanceID"`
}

func (s *Session) handleRemoveFromBoard(connID int, env envelope.Envelope) {
	playerID, ok := s.seats[connID]
	if !ok {
		s.rejectAction(connID, env, "not seated")
		return
	}
	var req removeFromBoardRequest
	if err := env.Decode(&req); err != nil {
		s.rejectAction(connID, env, "malformed RemoveFromBoard payload")
		return
	}
	if _, _, err := s.store.TryMoveBoardToBench(playerID, req.InstanceID); err != nil {
		s.rejectAction(connID, env, err.Error())
		return
	}
	s.sendPlayerState(connID, playerID)
}

type useInterventionRequest struct {
	CombatID int    `json:"CombatID"`
	Team     int    `json:"Team"`
	Kind     string `json:"Kind"`
	TargetID int    `json:"TargetID"`
}

type interventionActivatedPayload struct {
	CombatID int    `json:"CombatID"`
	Team     int    `json:"Team"`
	Kind     string `json:"Kind"`
	TargetID int    `json:"TargetID"`
}

type energyUpdatePayload struct {
	CombatID int `json:"CombatID"`
	Team     int `json:"Team"`
	Energy   int `json:"Energy"`
}

func (s *Session) handleUseIntervention(connID int, env envelope.Envelope) {
	if _, ok := s.seats[connID]; !ok {
		s.rejectAction(connID, env, "not seated")
		return
	}
	var req useInterventionRequest
	if err := env.Decode(&req); err != nil {
		s.rejectAction(connID, env, "malformed UseIntervention payload")
		return
	}
	ac, ok := s.combats[req.CombatID]
	if !ok || ac.resolved {
		s.rejectAction(connID, env, "no active combat")
		return
	}
	teamValue := combatTeam(req.Team)
	activated, err := s.interv.Submit(ac.sim, req.CombatID, teamValue, req.Kind, req.TargetID)
	if err != nil {
		s.rejectAction(connID, env, err.Error())
		return
	}
	s.broadcast(envelope.KindInterventionActivated, interventionActivatedPayload{
		CombatID: activated.CombatID, Team: int(activated.Team), Kind: activated.Kind, TargetID: activated.TargetID,
	})
	s.broadcast(envelope.KindEnergyUpdate, energyUpdatePayload{
		CombatID: req.CombatID, Team: req.Team, Energy: ac.sim.Energy(teamValue),
	})
}

func (s *Session) handlePing(connID int, env envelope.Envelope) {
	s.sendTo(connID, envelope.KindPong, false, struct{}{})
}

type actionRejectedPayload struct {
	Kind   string `json:"Kind"`
	Reason string `json:"Reason"`
}

func (s *Session) rejectAction(connID int, env envelope.Envelope, reason string) {
	s.logger.Debug("action rejected", logging.String("kind", string(env.Type)), logging.String("reason", reason))
	s.sendTo(connID, envelope.KindActionRejected, false, actionRejectedPayload{Kind: string(env.Type), Reason: reason})
}

type playerStatePayload struct {
	ID          int           `json:"ID"`
	NexusHealth int           `json:"NexusHealth"`
	Gold        int           `json:"Gold"`
	Level       int           `json:"Level"`
	Experience  int           `json:"Experience"`
	Board       []player.Slot `json:"Board"`
	Bench       []player.Slot `json:"Bench"`
	Wins        int           `json:"Wins"`
	Losses      int           `json:"Losses"`
}

func (s *Session) sendPlayerState(connID, playerID int) {
	r, ok := s.store.Get(playerID)
	if !ok {
		return
	}
	s.sendTo(connID, envelope.KindPlayerStateUpdate, false, playerStatePayload{
		ID: r.ID, NexusHealth: r.NexusHealth, Gold: r.Gold, Level: r.Level,
		Experience: r.Experience, Board: r.Board, Bench: r.Bench, Wins: r.Wins, Losses: r.Losses,
	})
}

func (s *Session) sendShopState(connID, playerID int) {
	snapshot := s.shopMgr.Snapshot(playerID)
	s.sendTo(connID, envelope.KindShopRefreshed, false, struct {
		Slots [5]int `json:"Slots"`
	}{Slots: snapshot})
}
