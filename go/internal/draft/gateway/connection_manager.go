package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	// SendBufferSize is how many frames a slow client may fall behind before it is dropped.
	SendBufferSize int
	CheckOrigin    func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBufferSize:  256,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// ConnectionStats summarizes open connections
type ConnectionStats struct {
	TotalConnections  int            `json:"total_connections"`
	ActiveLeagues     int            `json:"active_leagues"`
	LeagueConnections map[string]int `json:"league_connections"`
}

// client is one browser watching a league's draft room.
type client struct {
	id          string
	userID      string
	leagueID    uuid.UUID
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time
}

// room is the set of clients watching one league.
type room map[*client]struct{}

type broadcast struct {
	leagueID uuid.UUID
	event    *LeagueEvent
}

// ConnectionManager fans league events out to the clients in each league's room.
// Broadcasts are applied by a single loop, so every client of a league sees
// events in the order they were queued.
type ConnectionManager struct {
	config   ConnectionConfig
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[uuid.UUID]room

	broadcasts chan broadcast
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		rooms:      make(map[uuid.UUID]room),
		broadcasts: make(chan broadcast, 1024),
	}
}

// Start applies queued broadcasts until ctx is cancelled, then disconnects everyone.
func (cm *ConnectionManager) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			cm.disconnectAll()
			log.Info().Msg("connection manager stopped")
			return
		case b := <-cm.broadcasts:
			cm.deliver(b)
		}
	}
}

// UpgradeConnection upgrades the request and joins the client to the league's
// room. initial, when non-nil, is the first frame the client receives.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID string, leagueID uuid.UUID, initial *LeagueEvent) error {
	var first []byte
	if initial != nil {
		data, err := json.Marshal(initial)
		if err != nil {
			return fmt.Errorf("marshal initial event: %w", err)
		}
		first = data
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &client{
		id:          uuid.NewString(),
		userID:      userID,
		leagueID:    leagueID,
		conn:        conn,
		send:        make(chan []byte, cm.config.SendBufferSize),
		connectedAt: time.Now(),
	}
	if first != nil {
		c.send <- first
	}

	watching := cm.join(c)
	go cm.writeLoop(c)
	go cm.readLoop(c)

	log.Info().
		Str("connection_id", c.id).
		Str("user_id", userID).
		Str("league_id", leagueID.String()).
		Int("watching", watching).
		Msg("client joined draft room")
	return nil
}

func (cm *ConnectionManager) join(c *client) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	r, ok := cm.rooms[c.leagueID]
	if !ok {
		r = make(room)
		cm.rooms[c.leagueID] = r
	}
	r[c] = struct{}{}
	return len(r)
}

func (cm *ConnectionManager) leave(c *client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.leaveLocked(c)
}

// leaveLocked removes c and closes its send channel exactly once.
func (cm *ConnectionManager) leaveLocked(c *client) {
	r := cm.rooms[c.leagueID]
	if _, ok := r[c]; !ok {
		return
	}
	delete(r, c)
	close(c.send)
	if len(r) == 0 {
		delete(cm.rooms, c.leagueID)
	}

	log.Info().
		Str("connection_id", c.id).
		Str("user_id", c.userID).
		Str("league_id", c.leagueID.String()).
		Dur("connected_for", time.Since(c.connectedAt)).
		Msg("client left draft room")
}

func (cm *ConnectionManager) disconnectAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, r := range cm.rooms {
		for c := range r {
			cm.leaveLocked(c)
		}
	}
}

// BroadcastToLeague queues an event for every client in the league's room.
// It never blocks; when the queue is full the event is dropped and clients
// recover from the next snapshot.
func (cm *ConnectionManager) BroadcastToLeague(leagueID uuid.UUID, event *LeagueEvent) {
	select {
	case cm.broadcasts <- broadcast{leagueID: leagueID, event: event}:
	default:
		log.Warn().
			Str("league_id", leagueID.String()).
			Str("event_type", event.Type).
			Msg("broadcast queue full, dropping event")
	}
}

func (cm *ConnectionManager) deliver(b broadcast) {
	frame, err := json.Marshal(b.event)
	if err != nil {
		log.Error().Err(err).Str("event_type", b.event.Type).Msg("failed to encode event")
		return
	}

	// Held exclusively so no send channel closes while frames are queued on it.
	cm.mu.Lock()
	defer cm.mu.Unlock()

	delivered := 0
	for c := range cm.rooms[b.leagueID] {
		select {
		case c.send <- frame:
			delivered++
		default:
			log.Warn().
				Str("connection_id", c.id).
				Str("user_id", c.userID).
				Msg("client too slow, disconnecting")
			cm.leaveLocked(c)
		}
	}

	log.Debug().
		Str("event_type", b.event.Type).
		Str("league_id", b.leagueID.String()).
		Int("clients", delivered).
		Msg("event delivered")
}

func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveLeagues:     len(cm.rooms),
		LeagueConnections: make(map[string]int, len(cm.rooms)),
	}
	for leagueID, r := range cm.rooms {
		stats.TotalConnections += len(r)
		stats.LeagueConnections[leagueID.String()] = len(r)
	}
	return stats
}

// writeLoop is the only writer on c.conn.
func (cm *ConnectionManager) writeLoop(c *client) {
	ping := time.NewTicker(cm.config.PingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
		cm.leave(c)
	}()

	for {
		select {
		case frame, open := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cm.config.WriteTimeout))
			if !open {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("write failed")
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cm.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("ping failed")
				return
			}
		}
	}
}

// readLoop keeps the read deadline fresh on pongs. Clients make picks over
// the HTTP API, so anything they send is discarded.
func (cm *ConnectionManager) readLoop(c *client) {
	defer func() {
		cm.leave(c)
		_ = c.conn.Close()
	}()

	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(cm.config.ReadTimeout))
	}
	c.conn.SetReadLimit(cm.config.MaxMessageSize)
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.id).Msg("unexpected WebSocket close")
			}
			return
		}
		_ = extend()
	}
}
