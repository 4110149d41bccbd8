package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter implements per-connection rate limiting with a sliding
// window. Location pings and heartbeats are frequent but bounded, so a
// generous window catches only genuinely abusive clients.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time // connectionID -> recent request times
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow reports whether the connection may send another message. Old
// timestamps are dropped on each check so memory stays bounded.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[connectionID]

	validTimestamps := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= r.maxRequests {
		r.requests[connectionID] = validTimestamps
		return false
	}

	validTimestamps = append(validTimestamps, now)
	r.requests[connectionID] = validTimestamps
	return true
}

// Cleanup drops connections with no activity inside the window. Called
// periodically; disconnects otherwise leave entries behind.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)

	for connID, timestamps := range r.requests {
		allOld := true
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				allOld = false
				break
			}
		}
		if allOld {
			delete(r.requests, connID)
		}
	}
}

func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

// ConnectionHealth tracks the last client heartbeat per connection.
// Separate from RateLimiter: health and abuse prevention are different
// concerns.
type ConnectionHealth struct {
	lastActivity map[string]time.Time
	mu           sync.RWMutex
}

func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		lastActivity: make(map[string]time.Time),
	}
}

// UpdateActivity records that a connection is alive. Called on every
// message received, not just pings, since any traffic proves liveness.
func (h *ConnectionHealth) UpdateActivity(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity[connectionID] = time.Now()
}

// IsInactive reports whether the connection has been silent longer than
// timeout. Untracked connections are not considered inactive.
func (h *ConnectionHealth) IsInactive(connectionID string, timeout time.Duration) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	lastActivity, exists := h.lastActivity[connectionID]
	if !exists {
		return false
	}

	return time.Since(lastActivity) > timeout
}

// GetInactiveConnections returns every connection silent longer than
// timeout, for batch cleanup.
func (h *ConnectionHealth) GetInactiveConnections(timeout time.Duration) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	inactive := make([]string, 0)
	now := time.Now()

	for connID, lastActivity := range h.lastActivity {
		if now.Sub(lastActivity) > timeout {
			inactive = append(inactive, connID)
		}
	}

	return inactive
}

func (h *ConnectionHealth) RemoveConnection(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastActivity, connectionID)
}

// ValidateMessageType rejects frames whose type is not part of the
// protocol, so typos get a clear error instead of silence.
func ValidateMessageType(msgType string) error {
	validTypes := map[string]bool{
		"join":  true,
		"ping":  true,
		"leave": true,
	}

	if !validTypes[msgType] {
		return fmt.Errorf("INVALID_MESSAGE_TYPE: Unknown message type '%s'", msgType)
	}
	return nil
}
