package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// backlogWarning is the pending row count reported as a problem without
// failing the check.
const backlogWarning = 1000

// RelayStatus is the relay's health report.
type RelayStatus struct {
	Healthy       bool       `json:"healthy"`
	Listening     bool       `json:"listening"`
	Database      bool       `json:"database"`
	Broker        *bool      `json:"broker,omitempty"` // absent when relaying without NATS
	PendingEvents int        `json:"pending_events"`
	Relayed       uint64     `json:"relayed"`
	LastRelayedAt *time.Time `json:"last_relayed_at,omitempty"`
	Problems      []string   `json:"problems,omitempty"`
}

func (s *RelayStatus) fail(format string, args ...any) {
	s.Healthy = false
	s.warn(format, args...)
}

func (s *RelayStatus) warn(format string, args ...any) {
	s.Problems = append(s.Problems, fmt.Sprintf(format, args...))
}

// RelayHealthChecker reports whether the outbox relay is keeping up.
type RelayHealthChecker struct {
	listener *Listener
	db       *sql.DB
	repo     *Repository
	nc       *nats.Conn
	// stallAfter is how long a backlog may sit without any event relayed.
	stallAfter time.Duration
}

// NewRelayHealthChecker builds a checker. nc may be nil.
func NewRelayHealthChecker(listener *Listener, db *sql.DB, nc *nats.Conn, stallAfter time.Duration) *RelayHealthChecker {
	return &RelayHealthChecker{
		listener:   listener,
		db:         db,
		repo:       NewRepository(db),
		nc:         nc,
		stallAfter: stallAfter,
	}
}

func (h *RelayHealthChecker) Check(ctx context.Context) RelayStatus {
	status := RelayStatus{Healthy: true}

	var last time.Time
	status.Relayed, last = h.listener.Stats()
	if !last.IsZero() {
		status.LastRelayedAt = &last
	}

	if status.Listening = h.listener.Running(); !status.Listening {
		status.fail("listener not running")
	}

	if h.nc != nil {
		connected := h.nc.IsConnected()
		status.Broker = &connected
		if !connected {
			status.fail("NATS %s", h.nc.Status())
		}
	}

	if err := h.db.PingContext(ctx); err != nil {
		status.fail("database ping failed: %v", err)
		return status
	}
	status.Database = true

	pending, err := h.repo.CountPending(ctx)
	if err != nil {
		status.warn("failed to count pending events: %v", err)
		return status
	}
	status.PendingEvents = pending
	if pending > backlogWarning {
		status.warn("backlog of %d pending events", pending)
	}
	if pending > 0 && !last.IsZero() {
		if idle := time.Since(last); idle > h.stallAfter {
			status.fail("%d events pending, nothing relayed for %s", pending, idle.Round(time.Second))
		}
	}
	return status
}

func (h *RelayHealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health response")
	}
}
