package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", s.websocketHandler)

	// Game lifecycle
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("GET /api/games/{id}", s.handleGetGame)
	mux.HandleFunc("GET /api/games/code/{code}", s.handleGetGameByCode)
	mux.HandleFunc("POST /api/games/{id}/start", s.handleStartGame)
	mux.HandleFunc("POST /api/games/{id}/pause", s.handlePauseGame)
	mux.HandleFunc("POST /api/games/{id}/resume", s.handleResumeGame)
	mux.HandleFunc("POST /api/games/{id}/end", s.handleEndGame)
	mux.HandleFunc("POST /api/games/{id}/restart", s.handleRestartGame)
	mux.HandleFunc("POST /api/games/{id}/next-round", s.handleNextRound)
	mux.HandleFunc("GET /api/games/{id}/stats", s.handleGameStats)

	// Team actions
	mux.HandleFunc("POST /api/games/{id}/teams/{teamId}/location", s.handleUpdateLocation)
	mux.HandleFunc("POST /api/games/{id}/teams/{teamId}/found", s.handleMarkFound)
	mux.HandleFunc("PATCH /api/games/{id}/teams/{teamId}/role", s.handleChangeRole)

	// Challenges
	mux.HandleFunc("POST /api/games/{id}/teams/{teamId}/draw-challenge", s.handleDrawChallenge)
	mux.HandleFunc("POST /api/games/{id}/teams/{teamId}/complete-challenge", s.handleCompleteChallenge)
	mux.HandleFunc("POST /api/games/{id}/teams/{teamId}/veto-challenge", s.handleVetoChallenge)

	// Curses
	mux.HandleFunc("POST /api/games/{id}/teams/{teamId}/curse", s.handleApplyCurse)
	mux.HandleFunc("POST /api/games/{id}/teams/{teamId}/acknowledge-curse", s.handleAcknowledgeCurse)
	mux.HandleFunc("POST /api/games/{id}/teams/{teamId}/complete-curse", s.handleCompleteCurse)

	// Clues
	mux.HandleFunc("GET /api/clue-types", s.handleClueTypes)
	mux.HandleFunc("POST /api/games/{id}/teams/{teamId}/clues", s.handlePurchaseClue)
	mux.HandleFunc("GET /api/games/{id}/teams/{teamId}/clues", s.handleClueHistory)
	mux.HandleFunc("POST /api/clue-requests/{requestId}/respond", s.handleClueRequestRespond)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" {
		origins = "*"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.Health())
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.hub.AddConnection(connectionID, socket)
	s.health.UpdateActivity(connectionID)
	defer func() {
		s.hub.RemoveConnection(connectionID)
		s.health.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		log.Printf("Connection closed: %s", connectionID)
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			socket.Close(websocket.StatusUnsupportedData, "Invalid JSON")
			return
		}

		s.health.UpdateActivity(connectionID)

		if err := ValidateMessageType(msg.Type); err != nil {
			log.Printf("Unknown message type '%s' from %s", msg.Type, connectionID)
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			log.Printf("Rate limit exceeded for %s", connectionID)
			s.sendToConnection(connectionID, ServerMessage{
				Type:    "error",
				Message: "Rate limit exceeded",
			})
			continue
		}

		switch msg.Type {
		case "join":
			if msg.GameID == "" {
				s.sendToConnection(connectionID, ServerMessage{Type: "error", Message: "join requires gameId"})
				continue
			}
			if _, err := s.store.GetGame(msg.GameID); err != nil {
				s.sendToConnection(connectionID, ServerMessage{Type: "error", Message: "Game not found"})
				continue
			}
			s.hub.Join(connectionID, msg.GameID)
			log.Printf("Connection %s joined room %s", connectionID, msg.GameID)

			// Push the current snapshot so a (re)joining client is
			// immediately consistent without waiting for the next action.
			if snapshot, err := s.store.Snapshot(msg.GameID); err == nil {
				s.sendToConnection(connectionID, ServerMessage{Type: "gameUpdate", Game: snapshot})
			}

		case "ping":
			s.sendToConnection(connectionID, ServerMessage{Type: "pong", T: msg.T})

		case "leave":
			s.hub.Leave(connectionID)
			log.Printf("Connection %s left its room", connectionID)
		}
	}
}

func (s *Server) sendToConnection(connectionID string, msg ServerMessage) {
	s.hub.mu.RLock()
	hc, ok := s.hub.connections[connectionID]
	s.hub.mu.RUnlock()
	if !ok {
		return
	}
	if err := hc.writeJSON(context.Background(), msg); err != nil {
		log.Printf("Failed to send %s to %s: %v", msg.Type, connectionID, err)
	}
}

// broadcastGameUpdate pushes the full authoritative snapshot to the
// game's room. Every successful mutation goes through here.
func (s *Server) broadcastGameUpdate(gameID string) {
	snapshot, err := s.store.Snapshot(gameID)
	if err != nil {
		log.Printf("Failed to snapshot game %s for broadcast: %v", gameID, err)
		return
	}
	s.hub.Broadcast(gameID, ServerMessage{Type: "gameUpdate", Game: snapshot})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: APIError{
			Code:    "INVALID_INPUT",
			Message: fmt.Sprintf("Invalid request body: %v", err),
		}})
		return false
	}
	return true
}
