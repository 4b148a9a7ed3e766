package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"echobattler/internal/logging"
)

// Server accepts raw TCP connections, framing each with the length-prefix
// codec and dispatching decoded envelopes onto a shared inbound channel for
// the session orchestrator to drain each tick.
type Server struct {
	listener   net.Listener
	maxClients int
	sendBuffer int

	mu       sync.Mutex
	conns    map[int]*Connection
	nextID   int
	ackTable *AckTable

	inbox      chan InboundMessage
	disconnect chan int
	logger     *logging.Logger

	broadcasts int64

	obsMu      sync.Mutex
	observers  map[int]chan []byte
	nextObsID  int
}

// NewServer binds a listener at addr and constructs a Server ready to Serve.
func NewServer(addr string, maxClients int, ackTimeout time.Duration, ackMaxRetries int, logger *logging.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:   ln,
		maxClients: maxClients,
		sendBuffer: 256,
		conns:      make(map[int]*Connection),
		ackTable:   NewAckTable(ackTimeout, ackMaxRetries),
		inbox:      make(chan InboundMessage, 1024),
		disconnect: make(chan int, 64),
		logger:     logger,
		observers:  make(map[int]chan []byte),
	}, nil
}

// Addr reports the bound listener address (useful when addr was ":0").
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Inbox is the channel the orchestrator drains once per tick.
func (s *Server) Inbox() <-chan InboundMessage { return s.inbox }

// Disconnected is the channel of connection ids that have gone away.
func (s *Server) Disconnected() <-chan int { return s.disconnect }

// AckTable exposes the reliable-delivery bookkeeping for the orchestrator's
// send helpers and sweeper loop.
func (s *Server) AckTable() *AckTable { return s.ackTable }

// Serve accepts connections until ctx is cancelled or the listener errors.
func (s *Server) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.logger.Warn("accept failed", logging.Error(err))
				return
			}
		}
		s.acceptConn(ctx, conn)
	}
}

func (s *Server) acceptConn(ctx context.Context, raw net.Conn) {
	s.mu.Lock()
	if s.maxClients > 0 && len(s.conns) >= s.maxClients {
		s.mu.Unlock()
		_ = raw.Close()
		return
	}
	s.nextID++
	id := s.nextID
	conn := NewConnection(id, raw, s.sendBuffer)
	s.conns[id] = conn
	s.mu.Unlock()

	go conn.RunWriter(s.logger)
	go conn.RunReader(s.inbox, s.onDisconnect, s.logger)
}

func (s *Server) onDisconnect(connID int) {
	s.mu.Lock()
	delete(s.conns, connID)
	s.mu.Unlock()
	s.ackTable.DropConnection(connID)
	select {
	case s.disconnect <- connID:
	default:
	}
}

// Send enqueues a pre-encoded frame payload to one connection.
func (s *Server) Send(connID int, payload []byte) bool {
	s.mu.Lock()
	conn, ok := s.conns[connID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return conn.Enqueue(payload)
}

// Broadcast enqueues a pre-encoded payload to every currently connected
// client; per spec §5, broadcasts are not atomic across recipients. Every
// broadcast is also fanned out to registered observers (the /observe
// spectator feed), best-effort: a slow observer drops frames rather than
// backpressuring gameplay.
func (s *Server) Broadcast(payload []byte) {
	s.mu.Lock()
	targets := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.Unlock()
	for _, c := range targets {
		c.Enqueue(payload)
	}
	atomic.AddInt64(&s.broadcasts, 1)

	s.obsMu.Lock()
	for _, ch := range s.observers {
		select {
		case ch <- payload:
		default:
		}
	}
	s.obsMu.Unlock()
}

// BroadcastCount reports the cumulative number of broadcasts sent.
func (s *Server) BroadcastCount() int64 {
	return atomic.LoadInt64(&s.broadcasts)
}

// RegisterObserver subscribes a read-only spectator to every future
// broadcast payload. Callers must UnregisterObserver with the returned id
// once done draining the channel.
func (s *Server) RegisterObserver() (id int, feed <-chan []byte) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.nextObsID++
	id = s.nextObsID
	ch := make(chan []byte, 64)
	s.observers[id] = ch
	return id, ch
}

// UnregisterObserver removes a spectator feed previously returned by
// RegisterObserver.
func (s *Server) UnregisterObserver(id int) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	if ch, ok := s.observers[id]; ok {
		delete(s.observers, id)
		close(ch)
	}
}

// ConnectionCount reports the number of currently accepted connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close closes the listener and every tracked connection.
func (s *Server) Close() {
	_ = s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
}

// RunAckSweeper runs the retry sweeper on a fixed interval until ctx is
// cancelled, reusing the fixed-interval ticker pattern from
// internal/simulation.Loop for the sweep cadence.
func (s *Server) RunAckSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, target := range s.ackTable.Sweep(now) {
				s.Send(target.ConnID, target.Payload)
			}
		}
	}
}
