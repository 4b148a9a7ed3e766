// Package session implements the Session Orchestrator: the component that
// owns one instance each of the player store, catalog, shop manager, combat
// simulators, intervention engine, matchmaker, and phase scheduler for a
// single 2-8 player match, and drives them from one fixed-timestep loop built
// on internal/simulation.Loop.
package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"echobattler/internal/catalog"
	"echobattler/internal/combat"
	"echobattler/internal/config"
	"echobattler/internal/envelope"
	"echobattler/internal/intervention"
	"echobattler/internal/logging"
	"echobattler/internal/matchmaker"
	"echobattler/internal/phase"
	"echobattler/internal/player"
	"echobattler/internal/shop"
	"echobattler/internal/simulation"
	"echobattler/internal/transport"
)

// atRiskHPThreshold feeds the matchmaker's featured-match selection; a player
// below this nexus hp is flagged at risk of elimination this round.
const atRiskHPThreshold = 30

// boardCols is the board's visual column count; slot index -> (col, row) for
// seeding a combat.Simulator follows this layout (matches the client's
// BoardCols*Rows contract recorded alongside PlayerSettings.BoardSize).
const boardCols = 7

// activeCombat is one in-progress pairing for the current round.
type activeCombat struct {
	sim      *combat.Simulator
	playerA  int
	playerB  int // matchmaker.GhostID when playerB has no live opponent
	isGhost  bool
	resolved bool
	connA    int
	connB    int
}

// Session ties every gameplay component together for one match and drives
// them from a single 60Hz tick, the way the teacher's server loop owns one
// instance each of its subsystems and steps them from one goroutine.
type Session struct {
	mu sync.Mutex

	logger *logging.Logger
	rules  config.GameRules
	cat    *catalog.Catalog

	store      *player.Store
	shopMgr    *shop.Manager
	bank       *matchmaker.Bank
	phaseSched *phase.Scheduler
	interv     *intervention.Engine

	srv          *transport.Server
	seq          *envelope.SequenceCounter
	broadcastSeq *envelope.SequenceCounter

	seats      map[int]int // connID -> playerID
	playerConn map[int]int // playerID -> connID
	ready      map[int]bool

	combats      map[int]*activeCombat
	nextCombatID int
	combatsLeft  int

	rng   *rand.Rand
	ended bool

	ticks *simulation.TickMonitor
}

// New constructs a Session bound to one transport server and one rule set.
func New(rules config.GameRules, cat *catalog.Catalog, srv *transport.Server, logger *logging.Logger, seed int64) *Session {
	return &Session{
		logger:       logger,
		rules:        rules,
		cat:          cat,
		store:        player.NewStore(cat, rules.Player, rules.Resonance),
		shopMgr:      shop.NewManager(cat, rules.Shop, rules.Pool, rand.New(rand.NewSource(seed))),
		bank:         matchmaker.NewBank(),
		phaseSched:   phase.NewScheduler(rules.Phase),
		interv:       intervention.NewEngine(rules.Intervention),
		srv:          srv,
		seq:          envelope.NewSequenceCounter(0),
		broadcastSeq: envelope.DisjointBroadcastCounter(),
		seats:        make(map[int]int),
		playerConn:   make(map[int]int),
		ready:        make(map[int]bool),
		combats:      make(map[int]*activeCombat),
		rng:          rand.New(rand.NewSource(seed)),
		ticks:        simulation.NewTickMonitor(),
	}
}

// Run drives the session's tick loop and inbound/disconnect plumbing until
// ctx is cancelled.
func (s *Session) Run(ctx context.Context, tickHz float64) {
	loop := simulation.NewLoop(tickHz, s.step)
	loop.Start(ctx)

	for {
		select {
		case <-ctx.Done():
			loop.Stop()
			return
		case msg := <-s.srv.Inbox():
			s.dispatch(msg)
		case connID := <-s.srv.Disconnected():
			s.handleDisconnect(connID)
		}
	}
}

// step is the fixed-timestep callback: drain nothing here (inbound messages
// are handled as they arrive on Run's select), advance the phase scheduler,
// step every live combat, and age intervention cooldowns.
func (s *Session) step(delta time.Duration) {
	start := time.Now()
	defer func() { s.ticks.Observe(time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if changed := s.phaseSched.Advance(delta); changed != nil {
		s.onPhaseChanged(*changed)
	}
	s.stepCombats()
	s.interv.Tick(delta)
}

func (s *Session) dispatch(msg transport.InboundMessage) {
	if msg.Envelope.Type == envelope.KindAck {
		s.srv.AckTable().Ack(msg.ConnID, msg.Envelope.SequenceId)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	handler, ok := handlers[msg.Envelope.Type]
	if !ok {
		s.logger.Warn("unhandled envelope kind", logging.String("kind", string(msg.Envelope.Type)))
		return
	}
	handler(s, msg.ConnID, msg.Envelope)
}

func (s *Session) handleDisconnect(connID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playerID, ok := s.seats[connID]
	if !ok {
		return
	}
	// Per spec's disconnect policy: remove silently, no "player left" broadcast.
	delete(s.seats, connID)
	delete(s.playerConn, playerID)
	delete(s.ready, playerID)
	s.store.Remove(playerID)
}

// sendTo encodes and enqueues one envelope addressed to a single connection.
func (s *Session) sendTo(connID int, kind envelope.Kind, reliable bool, payload any) {
	seq := s.seq.Next()
	var (
		raw []byte
		err error
	)
	if reliable {
		raw, err = transport.EncodeReliable(s.srv.AckTable(), connID, kind, seq, payload, time.Now())
	} else {
		raw, err = transport.EncodeUnreliable(kind, seq, payload)
	}
	if err != nil {
		s.logger.Warn("encode envelope failed", logging.String("kind", string(kind)), logging.Error(err))
		return
	}
	s.srv.Send(connID, raw)
}

// broadcast fans a payload out to every connected client. Broadcasts are not
// individually acked: a dropped broadcast is superseded by the next periodic
// state snapshot, per spec §5's "broadcast is not atomic across recipients".
func (s *Session) broadcast(kind envelope.Kind, payload any) {
	seq := s.broadcastSeq.Next()
	raw, err := transport.EncodeUnreliable(kind, seq, payload)
	if err != nil {
		s.logger.Warn("encode broadcast failed", logging.String("kind", string(kind)), logging.Error(err))
		return
	}
	s.srv.Broadcast(raw)
}

func (s *Session) connFor(playerID int) (int, bool) {
	connID, ok := s.playerConn[playerID]
	return connID, ok
}

// Stats is the read-only snapshot the admin/ops HTTP surface reports at
// GET /sessions/{id}.
type Stats struct {
	Clients            int
	Broadcasts         int64
	PlayerCount        int
	Round              int
	Phase              string
	PhaseRemainingSecs int
	AverageTickMs      float64
	MaxTickMs          float64
}

// Stats reports this session's current capacity, round/phase state, and
// tick-timing health.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	tick := s.ticks.Snapshot()
	return Stats{
		Clients:            s.srv.ConnectionCount(),
		Broadcasts:         s.srv.BroadcastCount(),
		PlayerCount:        len(s.playerConn),
		Round:              s.phaseSched.Round(),
		Phase:              string(s.phaseSched.State()),
		PhaseRemainingSecs: int(s.phaseSched.Remaining().Seconds()),
		AverageTickMs:      float64(tick.Average) / float64(time.Millisecond),
		MaxTickMs:          float64(tick.Max) / float64(time.Millisecond),
	}
}

// Observe subscribes a read-only spectator to every broadcast envelope this
// session sends. Callers must call the returned cancel func once done.
func (s *Session) Observe() (<-chan []byte, func()) {
	id, feed := s.srv.RegisterObserver()
	return feed, func() { s.srv.UnregisterObserver(id) }
}

// Ready reports whether this session's transport is still accepting
// connections, the GET /readyz signal.
func (s *Session) Ready() bool {
	return !s.ended
}

// boardCatalogIDs returns catalog ids for the occupied board slots of a
// runtime (empty slots are skipped), used for ghost-board snapshots.
func boardCatalogIDs(r player.Runtime) []int {
	var ids []int
	for _, slot := range r.Board {
		if slot.Empty() {
			continue
		}
		ids = append(ids, catalog.CatalogIDFromInstance(slot.InstanceID))
	}
	return ids
}

// boardUnitsFrom converts a player's occupied board slots into the minimal
// BoardUnit shape the combat simulator seeds a side from.
func boardUnitsFrom(r player.Runtime) []combat.BoardUnit {
	var units []combat.BoardUnit
	for i, slot := range r.Board {
		if slot.Empty() {
			continue
		}
		units = append(units, combat.BoardUnit{
			InstanceID: slot.InstanceID,
			CatalogID:  catalog.CatalogIDFromInstance(slot.InstanceID),
			Star:       slot.Star,
			Col:        i % boardCols,
			Row:        i / boardCols,
		})
	}
	return units
}

// ghostUnitsFrom seeds a side purely from a catalog-id snapshot (no instance
// history survives in the ghost bank), each at star 1.
func ghostUnitsFrom(ids []int) []combat.BoardUnit {
	var units []combat.BoardUnit
	for i, id := range ids {
		units = append(units, combat.BoardUnit{
			InstanceID: id*1000 + i,
			CatalogID:  id,
			Star:       1,
			Col:        i % boardCols,
			Row:        i / boardCols,
		})
	}
	return units
}
