package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	writeTimeout      = 5 * time.Second
	heartbeatInterval = 30 * time.Second
)

// hubConnection wraps a socket with a write mutex so broadcasts and
// direct replies never interleave frames on the same connection.
type hubConnection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (hc *hubConnection) writeJSON(ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	hc.writeMu.Lock()
	defer hc.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return hc.conn.Write(ctx, websocket.MessageText, data)
}

// ConnectionHub owns room membership and fan-out. Rooms are keyed by
// game ID; a connection belongs to at most one room, and joining another
// replaces the previous membership. Membership is mutated only from the
// connection's own lifecycle events, never from game-state handlers.
type ConnectionHub struct {
	mu          sync.RWMutex
	connections map[string]*hubConnection  // connectionID → socket
	rooms       map[string]map[string]bool // gameID → connectionID set
	memberOf    map[string]string          // connectionID → gameID
}

func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{
		connections: make(map[string]*hubConnection),
		rooms:       make(map[string]map[string]bool),
		memberOf:    make(map[string]string),
	}
}

func (h *ConnectionHub) AddConnection(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[id] = &hubConnection{conn: conn}
}

func (h *ConnectionHub) RemoveConnection(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

func (h *ConnectionHub) removeLocked(id string) {
	if gameID, ok := h.memberOf[id]; ok {
		delete(h.rooms[gameID], id)
		if len(h.rooms[gameID]) == 0 {
			delete(h.rooms, gameID)
		}
		delete(h.memberOf, id)
	}
	delete(h.connections, id)
}

// Join places a connection in a game's room, replacing any previous
// membership.
func (h *ConnectionHub) Join(connectionID, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.memberOf[connectionID]; ok {
		delete(h.rooms[prev], connectionID)
		if len(h.rooms[prev]) == 0 {
			delete(h.rooms, prev)
		}
	}

	if h.rooms[gameID] == nil {
		h.rooms[gameID] = make(map[string]bool)
	}
	h.rooms[gameID][connectionID] = true
	h.memberOf[connectionID] = gameID
}

// Leave removes the connection from its room but keeps the socket open.
func (h *ConnectionHub) Leave(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if gameID, ok := h.memberOf[connectionID]; ok {
		delete(h.rooms[gameID], connectionID)
		if len(h.rooms[gameID]) == 0 {
			delete(h.rooms, gameID)
		}
		delete(h.memberOf, connectionID)
	}
}

func (h *ConnectionHub) RoomSize(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[gameID])
}

func (h *ConnectionHub) roomMembers(gameID string) []*hubConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]*hubConnection, 0, len(h.rooms[gameID]))
	for id := range h.rooms[gameID] {
		if hc, ok := h.connections[id]; ok {
			members = append(members, hc)
		}
	}
	return members
}

// Broadcast sends a message to every connection in the game's room.
// Delivery is best-effort: a failed send is logged and skipped, and the
// connection is left for the heartbeat loop or its own read loop to
// reap. Within one room, callers invoke Broadcast in mutation-completion
// order, so frames go out in that order per connection.
func (h *ConnectionHub) Broadcast(gameID string, msg ServerMessage) {
	for _, hc := range h.roomMembers(gameID) {
		if err := hc.writeJSON(context.Background(), msg); err != nil {
			log.Printf("Broadcast to room %s failed for one connection: %v", gameID, err)
		}
	}
}

// Heartbeat pings every connection on a fixed interval and drops the
// ones that fail, so dead sockets don't linger in rooms. Runs until ctx
// is canceled.
func (h *ConnectionHub) Heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pingAll(ctx)
		}
	}
}

func (h *ConnectionHub) pingAll(ctx context.Context) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.connections))
	conns := make([]*hubConnection, 0, len(h.connections))
	for id, hc := range h.connections {
		ids = append(ids, id)
		conns = append(conns, hc)
	}
	h.mu.RUnlock()

	for i, hc := range conns {
		pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := hc.conn.Ping(pingCtx)
		cancel()

		if err != nil {
			log.Printf("Heartbeat failed for connection %s, dropping: %v", ids[i], err)
			hc.conn.Close(websocket.StatusGoingAway, "heartbeat failed")
			h.RemoveConnection(ids[i])
		}
	}
}
