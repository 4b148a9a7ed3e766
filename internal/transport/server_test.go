package transport

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"echobattler/internal/envelope"
	"echobattler/internal/logging"
)

func TestServerAcceptsAndDeliversInboundEnvelope(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", 0, time.Second, 3, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	env, err := envelope.Encode(envelope.KindPing, 1, false, struct {
		Timestamp int64 `json:"timestamp"`
	}{Timestamp: 42})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := WriteFrame(conn, raw); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	select {
	case msg := <-srv.Inbox():
		if msg.Envelope.Type != envelope.KindPing {
			t.Fatalf("expected Ping envelope, got %+v", msg.Envelope)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for inbound envelope")
	}
}

func TestBroadcastFansOutToObserversAndCountsBroadcasts(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", 0, time.Second, 3, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	id, feed := srv.RegisterObserver()
	defer srv.UnregisterObserver(id)

	srv.Broadcast([]byte("frame-1"))

	select {
	case payload := <-feed:
		if string(payload) != "frame-1" {
			t.Fatalf("unexpected observer payload: %s", payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for observer fan-out")
	}

	if got := srv.BroadcastCount(); got != 1 {
		t.Fatalf("expected broadcast count 1, got %d", got)
	}
}

func TestUnregisterObserverClosesFeed(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", 0, time.Second, 3, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	id, feed := srv.RegisterObserver()
	srv.UnregisterObserver(id)

	if _, ok := <-feed; ok {
		t.Fatalf("expected feed to be closed after unregistering")
	}
}

func TestAckTableSweepRetriesThenGivesUp(t *testing.T) {
	table := NewAckTable(10*time.Millisecond, 1)
	start := time.Now()
	table.Track(1, 5, []byte("payload"), start)

	retries := table.Sweep(start.Add(20 * time.Millisecond))
	if len(retries) != 1 {
		t.Fatalf("expected one retry, got %d", len(retries))
	}

	gaveUp := table.Sweep(start.Add(50 * time.Millisecond))
	if len(gaveUp) != 0 {
		t.Fatalf("expected no further retries after max attempts, got %+v", gaveUp)
	}
}

func TestAckTableAckClearsPending(t *testing.T) {
	table := NewAckTable(time.Millisecond, 5)
	now := time.Now()
	table.Track(1, 9, []byte("x"), now)
	table.Ack(1, 9)
	retries := table.Sweep(now.Add(time.Second))
	if len(retries) != 0 {
		t.Fatalf("expected acked entry to be cleared, got %+v", retries)
	}
}

func TestAckTableDropConnectionDiscardsPending(t *testing.T) {
	table := NewAckTable(time.Millisecond, 5)
	now := time.Now()
	table.Track(7, 1, []byte("x"), now)
	table.DropConnection(7)
	retries := table.Sweep(now.Add(time.Second))
	if len(retries) != 0 {
		t.Fatalf("expected dropped connection's pending sends discarded, got %+v", retries)
	}
}
