package transport

import (
	"encoding/json"
	"sync"
	"time"

	"echobattler/internal/envelope"
)

// pendingEnvelope is one reliable send awaiting acknowledgement, grounded on
// the teacher's subscriberState.pending at-least-once bookkeeping in
// internal/events.Stream, adapted from a subscribe/replay log into a
// per-recipient pending-envelope map swept on a timer instead of replayed on
// (re)subscribe.
type pendingEnvelope struct {
	connID   int
	payload  []byte
	sentAt   time.Time
	retries  int
	sequence uint32
}

// AckTable tracks in-flight reliable sends per connection, keyed by sequence
// id, and is swept periodically to retry or give up on stale entries.
type AckTable struct {
	mu      sync.Mutex
	timeout time.Duration
	maxTry  int
	byConn  map[int]map[uint32]*pendingEnvelope
}

// NewAckTable configures the sweeper's retry timeout and max attempt count.
func NewAckTable(timeout time.Duration, maxRetries int) *AckTable {
	return &AckTable{
		timeout: timeout,
		maxTry:  maxRetries,
		byConn:  make(map[int]map[uint32]*pendingEnvelope),
	}
}

// Track registers a reliable send awaiting an Ack envelope.
func (t *AckTable) Track(connID int, sequence uint32, payload []byte, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.byConn[connID]
	if !ok {
		conn = make(map[uint32]*pendingEnvelope)
		t.byConn[connID] = conn
	}
	conn[sequence] = &pendingEnvelope{connID: connID, payload: payload, sentAt: now, sequence: sequence}
}

// Ack clears a pending send once its Ack envelope arrives.
func (t *AckTable) Ack(connID int, sequence uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.byConn[connID]; ok {
		delete(conn, sequence)
	}
}

// DropConnection discards every pending send for a disconnected connection.
func (t *AckTable) DropConnection(connID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byConn, connID)
}

// Sweep scans every pending send; overdue entries are retried up to maxTry
// times (returned in retry) and then given up on and dropped (the session
// continues per spec §5's cancellation policy).
func (t *AckTable) Sweep(now time.Time) (retry []RetryTarget) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for connID, conn := range t.byConn {
		for seq, p := range conn {
			if now.Sub(p.sentAt) < t.timeout {
				continue
			}
			if p.retries >= t.maxTry {
				delete(conn, seq)
				continue
			}
			p.retries++
			p.sentAt = now
			retry = append(retry, RetryTarget{ConnID: connID, Sequence: p.sequence, Payload: p.payload})
		}
	}
	return retry
}

// RetryTarget names one pending send the sweeper decided to resend.
type RetryTarget struct {
	ConnID   int
	Sequence uint32
	Payload  []byte
}

// EncodeReliable builds and tracks a reliable envelope, returning its
// wire-ready JSON payload for the caller to enqueue on the connection.
func EncodeReliable(table *AckTable, connID int, kind envelope.Kind, seq uint32, payloadValue any, now time.Time) ([]byte, error) {
	env, err := envelope.Encode(kind, seq, true, payloadValue)
	if err != nil {
		return nil, err
	}
	raw, err := encodeEnvelope(env)
	if err != nil {
		return nil, err
	}
	table.Track(connID, seq, raw, now)
	return raw, nil
}

// encodeEnvelope marshals an envelope to the wire-ready JSON frame payload.
func encodeEnvelope(env envelope.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// EncodeUnreliable builds a non-acked envelope's wire-ready JSON payload.
func EncodeUnreliable(kind envelope.Kind, seq uint32, payloadValue any) ([]byte, error) {
	env, err := envelope.Encode(kind, seq, false, payloadValue)
	if err != nil {
		return nil, err
	}
	return encodeEnvelope(env)
}
