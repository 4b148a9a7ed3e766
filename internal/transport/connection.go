package transport

import (
	"encoding/json"
	"net"
	"sync"

	"echobattler/internal/envelope"
	"echobattler/internal/logging"
)

// Connection wraps one accepted net.Conn: a read goroutine decodes inbound
// frames onto Inbound, and a single writer goroutine drains a per-connection
// outbound channel, mirroring the teacher's per-client send chan []byte
// pattern adapted from a websocket.Conn to a raw net.Conn.
type Connection struct {
	ID   int
	conn net.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// InboundMessage pairs a decoded envelope with the connection it arrived on.
type InboundMessage struct {
	ConnID   int
	Envelope envelope.Envelope
}

// NewConnection wraps conn with a bounded outbound buffer.
func NewConnection(id int, conn net.Conn, sendBuffer int) *Connection {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Connection{
		ID:     id,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Enqueue queues a pre-encoded frame payload for the writer goroutine; it
// drops the message and reports false if the connection is closed or the
// outbound buffer is full (a slow reader must not stall the orchestrator).
func (c *Connection) Enqueue(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close shuts down the connection and stops its writer goroutine exactly once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// RunWriter drains the outbound channel onto the wire until the connection closes.
func (c *Connection) RunWriter(logger *logging.Logger) {
	for {
		select {
		case <-c.closed:
			return
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			if err := WriteFrame(c.conn, payload); err != nil {
				logger.Warn("write frame failed", logging.Int("conn_id", c.ID), logging.Error(err))
				c.Close()
				return
			}
		}
	}
}

// RunReader decodes inbound frames and pushes them onto inbox until the
// connection errors or closes; it always sends a final nil-error disconnect
// signal via disconnect when it returns.
func (c *Connection) RunReader(inbox chan<- InboundMessage, disconnect func(connID int), logger *logging.Logger) {
	defer disconnect(c.ID)
	defer c.Close()
	for {
		payload, err := ReadFrame(c.conn)
		if err != nil {
			logger.Debug("connection read ended", logging.Int("conn_id", c.ID), logging.Error(err))
			return
		}
		var env envelope.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			logger.Warn("dropping malformed envelope", logging.Int("conn_id", c.ID), logging.Error(err))
			return
		}
		select {
		case inbox <- InboundMessage{ConnID: c.ID, Envelope: env}:
		case <-c.closed:
			return
		}
	}
}
