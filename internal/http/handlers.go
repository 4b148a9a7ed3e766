package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"echobattler/internal/logging"
	"echobattler/internal/session"
)

// SessionProvider exposes the subset of a running session.Session the
// admin/ops surface needs: capacity + round/phase introspection and a
// read-only feed of every broadcast envelope.
type SessionProvider interface {
	Stats() session.Stats
	Ready() bool
	Observe() (<-chan []byte, func())
}

// ReplayDumper triggers a replay flush and optionally reports the artefact
// location it was written to.
type ReplayDumper interface {
	DumpReplay(ctx context.Context) (string, error)
}

// ReplayDumperFunc adapts a function into a ReplayDumper.
type ReplayDumperFunc func(ctx context.Context) (string, error)

// DumpReplay implements ReplayDumper.
func (f ReplayDumperFunc) DumpReplay(ctx context.Context) (string, error) { return f(ctx) }

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Session     SessionProvider
	SessionID   string
	Replay      ReplayDumper
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
	Upgrader    *websocket.Upgrader
}

// HandlerSet bundles the session's operational HTTP handlers.
type HandlerSet struct {
	logger      *logging.Logger
	sess        SessionProvider
	sessionID   string
	replay      ReplayDumper
	adminToken  string
	rateLimiter RateLimiter
	now         func() time.Time
	upgrader    websocket.Upgrader
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	upgrader := websocket.Upgrader{}
	if opts.Upgrader != nil {
		upgrader = *opts.Upgrader
	}
	return &HandlerSet{
		logger:      logger,
		sess:        opts.Session,
		sessionID:   opts.SessionID,
		replay:      opts.Replay,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		rateLimiter: opts.RateLimiter,
		now:         now,
		upgrader:    upgrader,
	}
}

// Register attaches every admin/ops route to mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/healthz", h.HealthzHandler())
	mux.HandleFunc("/readyz", h.ReadyzHandler())
	mux.HandleFunc("/stats", h.StatsHandler())
	mux.HandleFunc("GET /sessions/{id}", h.SessionHandler())
	mux.HandleFunc("/replay/dump", h.ReplayDumpHandler())
	mux.HandleFunc("/observe", h.ObserveHandler())
}

// HealthzHandler reports that the process is alive and serving.
func (h *HandlerSet) HealthzHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadyzHandler reports whether the session is still accepting connections.
func (h *HandlerSet) ReadyzHandler() http.HandlerFunc {
	type response struct {
		Status string `json:"status"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if h.sess == nil || !h.sess.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, response{Status: "not_ready"})
			return
		}
		writeJSON(w, http.StatusOK, response{Status: "ready"})
	}
}

// StatsHandler reports cumulative broadcast and client counters.
func (h *HandlerSet) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.sess == nil {
			writeJSON(w, http.StatusServiceUnavailable, struct {
				Status string `json:"status"`
			}{Status: "no_session"})
			return
		}
		writeJSON(w, http.StatusOK, h.sess.Stats())
	}
}

// SessionHandler reports this session's capacity and round/phase snapshot.
// Only the one session this process hosts is ever addressable; any other id
// is a 404, matching spec.md's single-match-per-process scope.
func (h *HandlerSet) SessionHandler() http.HandlerFunc {
	type response struct {
		ID    string        `json:"id"`
		Stats session.Stats `json:"stats"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if h.sess == nil || id != h.sessionID {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, response{ID: id, Stats: h.sess.Stats()})
	}
}

// ReplayDumpHandler authorises and triggers a replay flush.
func (h *HandlerSet) ReplayDumpHandler() http.HandlerFunc {
	type response struct {
		Status   string `json:"status"`
		Location string `json:"location,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "replay_dump"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("replay dump denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("replay dump denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("replay dump denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.replay == nil {
			reqLogger.Warn("replay dump denied: no dumper configured")
			http.Error(w, "replay dumping is unavailable", http.StatusServiceUnavailable)
			return
		}
		location, err := h.replay.DumpReplay(r.Context())
		if err != nil {
			reqLogger.Error("replay dump trigger failed", logging.Error(err))
			http.Error(w, "failed to trigger replay dump", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("replay dump triggered")
		writeJSON(w, http.StatusAccepted, response{Status: "accepted", Location: location})
	}
}

// ObserveHandler upgrades the connection to a websocket and streams every
// broadcast envelope the session sends, read-only, until the client
// disconnects. Grounded on the teacher's main.go websocket client loop
// (upgrader, write deadline, text frames).
func (h *HandlerSet) ObserveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.sess == nil {
			http.Error(w, "no active session", http.StatusServiceUnavailable)
			return
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("observe upgrade failed", logging.Error(err))
			return
		}
		defer conn.Close()

		feed, cancel := h.sess.Observe()
		defer cancel()

		for payload := range feed {
			conn.SetWriteDeadline(h.now().Add(observeWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

const observeWriteWait = 10 * time.Second

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
