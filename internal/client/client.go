// Package client implements the reconnecting game client used by
// companion tooling and integration tests: a persistent websocket with
// exponential-backoff reconnect, heartbeat, and a periodic full-state
// reconciliation poll over HTTP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"hideandseek-server/internal/game"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second

	// Heartbeats slower than this risk idle-timeout disconnects from
	// intermediate proxies, so configured intervals are clamped up.
	minHeartbeat = 25 * time.Second
)

// Callbacks are invoked from the read loop. A nil callback is skipped.
// Clients must treat every GameUpdate as authoritative and overwrite
// local state; no merging.
type Callbacks struct {
	OnGameUpdate   func(g *game.Game)
	OnClueRequest  func(targetTeamID string, req *game.ClueRequest)
	OnClueResponse func(requestingTeamID string, resp *game.ClueResponse)
	OnConnected    func()
	OnDisconnected func(err error)
}

// Config for a ReconnectingClient. WSURL is the websocket endpoint,
// APIBaseURL the HTTP origin for reconciliation polls.
type Config struct {
	WSURL      string
	APIBaseURL string
	GameID     string

	// HeartbeatInterval is clamped to at least 25s.
	HeartbeatInterval time.Duration

	// PollInterval controls the reconciliation poll; 0 disables it.
	PollInterval time.Duration

	HTTPClient *http.Client
}

// serverFrame mirrors the server's flat message layout.
type serverFrame struct {
	Type             string             `json:"type"`
	Game             *game.Game         `json:"game,omitempty"`
	TargetTeamID     string             `json:"targetTeamId,omitempty"`
	Request          *game.ClueRequest  `json:"request,omitempty"`
	RequestingTeamID string             `json:"requestingTeamId,omitempty"`
	Response         *game.ClueResponse `json:"response,omitempty"`
	T                int64              `json:"t,omitempty"`
	Message          string             `json:"message,omitempty"`
}

type clientFrame struct {
	Type   string `json:"type"`
	GameID string `json:"gameId,omitempty"`
	T      int64  `json:"t,omitempty"`
}

// ReconnectingClient maintains a live connection to one game's room.
// On any read failure it redials with exponential backoff (1s doubling
// to 30s, reset on success) and rejoins the room, so a missed broadcast
// costs at most one reconnect plus one snapshot.
type ReconnectingClient struct {
	cfg       Config
	callbacks Callbacks
	http      *http.Client

	mu      sync.Mutex
	conn    *websocket.Conn
	backoff time.Duration
	closed  bool
}

func New(cfg Config, callbacks Callbacks) *ReconnectingClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ReconnectingClient{
		cfg:       cfg,
		callbacks: callbacks,
		http:      httpClient,
		backoff:   initialBackoff,
	}
}

// Run connects and keeps the connection alive until ctx is canceled or
// Close is called. Blocks; run it in its own goroutine.
func (c *ReconnectingClient) Run(ctx context.Context) error {
	heartbeat := c.cfg.HeartbeatInterval
	if heartbeat < minHeartbeat {
		heartbeat = minHeartbeat
	}

	if c.cfg.PollInterval > 0 {
		go c.reconciliationLoop(ctx)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.isClosed() {
			return nil
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if c.callbacks.OnDisconnected != nil {
				c.callbacks.OnDisconnected(err)
			}
			if !c.sleepBackoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		c.setConn(conn)
		c.resetBackoff()

		if c.callbacks.OnConnected != nil {
			c.callbacks.OnConnected()
		}

		// Rejoin our room: the server binds membership to the
		// connection, so every new socket starts roomless.
		if err := c.writeFrame(ctx, clientFrame{Type: "join", GameID: c.cfg.GameID}); err != nil {
			conn.Close(websocket.StatusInternalError, "join failed")
			continue
		}

		readErr := c.readLoop(ctx, conn, heartbeat)
		c.setConn(nil)
		conn.Close(websocket.StatusNormalClosure, "reconnecting")

		if c.callbacks.OnDisconnected != nil {
			c.callbacks.OnDisconnected(readErr)
		}
		if c.isClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		if !c.sleepBackoff(ctx) {
			return ctx.Err()
		}
	}
}

func (c *ReconnectingClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.cfg.WSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.WSURL, err)
	}
	return conn, nil
}

func (c *ReconnectingClient) readLoop(ctx context.Context, conn *websocket.Conn, heartbeat time.Duration) error {
	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go c.heartbeatLoop(heartbeatCtx, heartbeat)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("client: dropping malformed frame: %v", err)
			continue
		}

		switch frame.Type {
		case "gameUpdate":
			if c.callbacks.OnGameUpdate != nil && frame.Game != nil {
				c.callbacks.OnGameUpdate(frame.Game)
			}
		case "clueRequest":
			if c.callbacks.OnClueRequest != nil && frame.Request != nil {
				c.callbacks.OnClueRequest(frame.TargetTeamID, frame.Request)
			}
		case "clueResponse":
			if c.callbacks.OnClueResponse != nil && frame.Response != nil {
				c.callbacks.OnClueResponse(frame.RequestingTeamID, frame.Response)
			}
		case "pong":
			// Liveness only
		case "error":
			log.Printf("client: server error: %s", frame.Message)
		default:
			log.Printf("client: unknown frame type %q", frame.Type)
		}
	}
}

func (c *ReconnectingClient) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := clientFrame{Type: "ping", T: time.Now().UnixMilli()}
			if err := c.writeFrame(ctx, frame); err != nil {
				// The read loop will notice the dead socket.
				return
			}
		}
	}
}

func (c *ReconnectingClient) writeFrame(ctx context.Context, frame clientFrame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

// reconciliationLoop periodically fetches the full game over HTTP and
// feeds it to OnGameUpdate. Broadcasts are best-effort, so the poll is
// the correctness backstop for missed events, independent of the push
// channel.
func (c *ReconnectingClient) reconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g, err := c.FetchGame(ctx)
			if err != nil {
				log.Printf("client: reconciliation poll failed: %v", err)
				continue
			}
			if c.callbacks.OnGameUpdate != nil {
				c.callbacks.OnGameUpdate(g)
			}
		}
	}
}

// FetchGame retrieves the authoritative snapshot over HTTP.
func (c *ReconnectingClient) FetchGame(ctx context.Context) (*game.Game, error) {
	url := fmt.Sprintf("%s/api/games/%s", c.cfg.APIBaseURL, c.cfg.GameID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch game: status %d: %s", resp.StatusCode, body)
	}

	var g game.Game
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Close stops reconnecting and closes the current socket.
func (c *ReconnectingClient) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client closed")
	}
}

func (c *ReconnectingClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *ReconnectingClient) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *ReconnectingClient) resetBackoff() {
	c.mu.Lock()
	c.backoff = initialBackoff
	c.mu.Unlock()
}

// sleepBackoff waits the current backoff then doubles it, capped at 30s.
// Returns false if ctx ended during the wait.
func (c *ReconnectingClient) sleepBackoff(ctx context.Context) bool {
	c.mu.Lock()
	wait := c.backoff
	c.backoff *= 2
	if c.backoff > maxBackoff {
		c.backoff = maxBackoff
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}
