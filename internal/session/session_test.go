package session

import (
	"testing"
	"time"

	"echobattler/internal/catalog"
	"echobattler/internal/config"
	"echobattler/internal/envelope"
	"echobattler/internal/logging"
	"echobattler/internal/phase"
	"echobattler/internal/transport"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	srv, err := transport.NewServer("127.0.0.1:0", 0, time.Second, 3, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.Close)
	return New(config.DefaultGameRules(), catalog.Default(), srv, logging.NewTestLogger(), 7)
}

func joinAndReady(t *testing.T, s *Session, connID int, name string) {
	t.Helper()
	joinEnv, err := envelope.Encode(envelope.KindJoinLobby, uint32(connID*10), true, joinLobbyRequest{DisplayName: name})
	if err != nil {
		t.Fatalf("encode JoinLobby: %v", err)
	}
	s.dispatch(transport.InboundMessage{ConnID: connID, Envelope: joinEnv})

	readyEnv, err := envelope.Encode(envelope.KindReadyUp, uint32(connID*10+1), false, struct{}{})
	if err != nil {
		t.Fatalf("encode ReadyUp: %v", err)
	}
	s.dispatch(transport.InboundMessage{ConnID: connID, Envelope: readyEnv})
}

func TestJoinLobbySeatsPlayerAndTracksReadiness(t *testing.T) {
	s := newTestSession(t)
	joinAndReady(t, s, 1, "Alice")

	if _, ok := s.store.Get(1); !ok {
		t.Fatalf("expected player 1 to be initialized")
	}
	if !s.ready[1] {
		t.Fatalf("expected player 1 to be marked ready")
	}
	if s.phaseSched.State() != phase.WaitingForPlayers {
		t.Fatalf("expected a single ready player to stay in WaitingForPlayers, got %s", s.phaseSched.State())
	}
}

func TestTwoReadyPlayersAdvanceThroughLobbyIntoPreparationThenCombat(t *testing.T) {
	s := newTestSession(t)
	joinAndReady(t, s, 1, "Alice")
	joinAndReady(t, s, 2, "Bob")

	s.step(6 * time.Second)
	if s.phaseSched.State() != phase.Preparation {
		t.Fatalf("expected Preparation after the lobby countdown elapses, got %s", s.phaseSched.State())
	}

	s.step(31 * time.Second)
	if s.phaseSched.State() != phase.Combat {
		t.Fatalf("expected Combat after the preparation timer elapses, got %s", s.phaseSched.State())
	}
	if len(s.combats) != 1 {
		t.Fatalf("expected exactly one pairing for two players, got %d", len(s.combats))
	}
}

func TestEmptyBoardsResolveInstantlyAndReachReward(t *testing.T) {
	s := newTestSession(t)
	joinAndReady(t, s, 1, "Alice")
	joinAndReady(t, s, 2, "Bob")

	s.step(6 * time.Second)
	s.step(31 * time.Second) // -> Combat; the empty-board combat resolves in this same step

	s.step(time.Second) // combats done -> Reward, ahead of the combat timer
	if s.combatsLeft != 0 {
		t.Fatalf("expected the empty-board combat to resolve on its first batch, combatsLeft=%d", s.combatsLeft)
	}

	if s.phaseSched.State() != phase.Reward {
		t.Fatalf("expected Reward once combats finish, got %s", s.phaseSched.State())
	}
}

func TestBuyEchoMovesGoldAndPopulatesBench(t *testing.T) {
	s := newTestSession(t)
	joinAndReady(t, s, 1, "Alice")

	before, _ := s.store.Get(1)
	shopSnapshot := s.shopMgr.Snapshot(1)
	slotIdx := -1
	for i, id := range shopSnapshot {
		if id != -1 {
			slotIdx = i
			break
		}
	}
	if slotIdx < 0 {
		t.Fatalf("expected a freshly rolled shop to offer at least one echo")
	}

	buyEnv, err := envelope.Encode(envelope.KindBuyEcho, 99, true, buyEchoRequest{SlotIndex: slotIdx})
	if err != nil {
		t.Fatalf("encode BuyEcho: %v", err)
	}
	s.dispatch(transport.InboundMessage{ConnID: 1, Envelope: buyEnv})

	after, _ := s.store.Get(1)
	if after.Gold >= before.Gold {
		t.Fatalf("expected gold to decrease after a successful buy, before=%d after=%d", before.Gold, after.Gold)
	}
	if after.BoardUnitCount() != 0 {
		t.Fatalf("a bought echo lands on the bench, not the board")
	}
	occupied := 0
	for _, slot := range after.Bench {
		if !slot.Empty() {
			occupied++
		}
	}
	if occupied != 1 {
		t.Fatalf("expected exactly one occupied bench slot after buying, got %d", occupied)
	}
}

func TestDisconnectRemovesSeatSilently(t *testing.T) {
	s := newTestSession(t)
	joinAndReady(t, s, 1, "Alice")

	s.handleDisconnect(1)

	if _, ok := s.store.Get(1); ok {
		t.Fatalf("expected player 1 to be removed from the store after disconnect")
	}
	if _, ok := s.seats[1]; ok {
		t.Fatalf("expected connection 1's seat mapping to be cleared")
	}
}

func TestEndOfRoundEconomyGrantedOnPreparationEntryNotReward(t *testing.T) {
	s := newTestSession(t)
	joinAndReady(t, s, 1, "Alice")
	joinAndReady(t, s, 2, "Bob")

	s.step(6 * time.Second)  // -> Preparation (round 1, no grant: nothing to reward yet)
	s.step(31 * time.Second) // -> Combat; empty boards resolve in this same step
	s.step(time.Second)      // combats done -> Reward

	if s.phaseSched.State() != phase.Reward {
		t.Fatalf("expected Reward, got %s", s.phaseSched.State())
	}
	r, _ := s.store.Get(1)
	if r.Gold != s.rules.Player.StartingGold {
		t.Fatalf("expected gold unchanged on Reward entry, got %d", r.Gold)
	}

	s.step(6 * time.Second) // -> MutationChoice
	if s.phaseSched.State() != phase.MutationChoice {
		t.Fatalf("expected MutationChoice, got %s", s.phaseSched.State())
	}
	r, _ = s.store.Get(1)
	if r.Gold != s.rules.Player.StartingGold {
		t.Fatalf("expected gold still unchanged on MutationChoice entry, got %d", r.Gold)
	}

	s.step(16 * time.Second) // -> Preparation (round 2): economy granted here
	if s.phaseSched.State() != phase.Preparation {
		t.Fatalf("expected Preparation, got %s", s.phaseSched.State())
	}
	r, _ = s.store.Get(1)
	if r.Gold <= s.rules.Player.StartingGold {
		t.Fatalf("expected end-of-round gold granted on Preparation entry, got %d", r.Gold)
	}
}

func TestStatsReportsPlayerCountAndTickTiming(t *testing.T) {
	s := newTestSession(t)
	joinAndReady(t, s, 1, "Alice")
	joinAndReady(t, s, 2, "Bob")

	s.step(10 * time.Millisecond)

	stats := s.Stats()
	if stats.PlayerCount != 2 {
		t.Fatalf("expected player count 2, got %d", stats.PlayerCount)
	}
	if stats.AverageTickMs <= 0 {
		t.Fatalf("expected a positive average tick duration after stepping, got %v", stats.AverageTickMs)
	}
}

func TestObserveReceivesBroadcasts(t *testing.T) {
	s := newTestSession(t)
	feed, cancel := s.Observe()
	defer cancel()

	s.broadcast(envelope.KindLobbyState, struct{}{})

	select {
	case <-feed:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for observer to receive a broadcast")
	}
}

func TestReadyReflectsSessionLifecycle(t *testing.T) {
	s := newTestSession(t)
	if !s.Ready() {
		t.Fatalf("expected a freshly constructed session to be ready")
	}
	s.ended = true
	if s.Ready() {
		t.Fatalf("expected an ended session to report not ready")
	}
}
