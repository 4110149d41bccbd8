package server

import (
	"log"
	"net/http"

	"hideandseek-server/internal/game"
)

// Every mutating handler follows the same shape: parse → call the game
// service → persist best-effort → broadcast the new snapshot → respond
// with the same snapshot. HTTP response and broadcast carry identical
// post-mutation state, so clients may rely on either.

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if !s.readBody(w, r, &req) {
		return
	}

	g, err := s.store.CreateGame(req.TeamNames, game.TeamRole(req.PlayerRole), req.RoundLengthMinutes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	log.Printf("Game created: %s (code %s, %d teams)", g.ID, g.Code, len(g.Teams))
	s.saveGame(g.ID)
	s.respondWithGame(w, http.StatusCreated, g.ID)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.store.Snapshot(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleGetGameByCode(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.GetGameByCode(r.PathValue("code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.respondWithGame(w, http.StatusOK, g.ID)
}

// ===== Lifecycle =====

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(w, r, s.service.StartGame)
}

func (s *Server) handlePauseGame(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(w, r, s.service.PauseGame)
}

func (s *Server) handleResumeGame(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(w, r, s.service.ResumeGame)
}

func (s *Server) handleEndGame(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(w, r, s.service.EndGame)
}

func (s *Server) handleRestartGame(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(w, r, s.service.RestartGame)
}

func (s *Server) handleNextRound(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(w, r, s.service.NextRound)
}

func (s *Server) lifecycleAction(w http.ResponseWriter, r *http.Request, action func(string) (*game.Game, error)) {
	gameID := r.PathValue("id")

	if _, err := action(gameID); err != nil {
		writeDomainError(w, err)
		return
	}

	// Read status and round from the record, not the live pointer: the
	// store lock is gone by now and another action may be mutating.
	rec, err := s.store.Record(gameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	log.Printf("Game %s is now %s (round %d)", rec.ID, rec.Status, rec.Round)
	s.afterMutation(gameID)
	writeRawJSON(w, http.StatusOK, rec.Snapshot)
}

func (s *Server) handleGameStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ===== Team actions =====

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req UpdateLocationRequest
	if !s.readBody(w, r, &req) {
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: APIError{
			Code:    "INVALID_INPUT",
			Message: "latitude and longitude are required",
		}})
		return
	}

	gameID := r.PathValue("id")
	_, err := s.service.UpdateLocation(gameID, r.PathValue("teamId"),
		*req.Latitude, *req.Longitude, req.Accuracy)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.afterMutation(gameID)
	s.respondWithGame(w, http.StatusOK, gameID)
}

func (s *Server) handleMarkFound(w http.ResponseWriter, r *http.Request) {
	var req MarkFoundRequest
	if !s.readBody(w, r, &req) {
		return
	}

	gameID := r.PathValue("id")
	result, err := s.service.MarkFound(gameID, r.PathValue("teamId"), req.SeekerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	log.Printf("Game %s: %s found by %s (%d hiders remain, ended=%v)",
		gameID, result.FoundHider.Name, result.FindingSeeker.Name,
		result.RemainingHiders, result.GameEnded)
	s.afterMutation(gameID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	var req ChangeRoleRequest
	if !s.readBody(w, r, &req) {
		return
	}

	gameID := r.PathValue("id")
	_, err := s.service.ChangeRole(gameID, r.PathValue("teamId"), game.TeamRole(req.Role))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.afterMutation(gameID)
	s.respondWithGame(w, http.StatusOK, gameID)
}

// ===== Challenges =====

func (s *Server) handleDrawChallenge(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")

	_, drawn, err := s.service.DrawChallenge(gameID, r.PathValue("teamId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.afterMutation(gameID)
	writeJSON(w, http.StatusOK, drawn)
}

func (s *Server) handleCompleteChallenge(w http.ResponseWriter, r *http.Request) {
	var req CompleteChallengeRequest
	if !s.readBody(w, r, &req) {
		return
	}

	gameID := r.PathValue("id")
	teamID := r.PathValue("teamId")
	_, awarded, total, err := s.service.CompleteChallenge(gameID, teamID, req.ChallengeTitle, req.CustomTokens)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.afterMutation(gameID)
	writeJSON(w, http.StatusOK, CompleteChallengeResponse{
		TokensAwarded: awarded,
		TotalTokens:   total,
		TeamID:        teamID,
	})
}

func (s *Server) handleVetoChallenge(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")

	_, err := s.service.VetoChallenge(gameID, r.PathValue("teamId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.afterMutation(gameID)
	s.respondWithGame(w, http.StatusOK, gameID)
}

// ===== Curses =====

func (s *Server) handleApplyCurse(w http.ResponseWriter, r *http.Request) {
	var req ApplyCurseRequest
	if !s.readBody(w, r, &req) {
		return
	}

	gameID := r.PathValue("id")
	_, applied, err := s.service.ApplyCurse(gameID, r.PathValue("teamId"), req.TargetTeamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	log.Printf("Game %s: curse %q applied to team %s", gameID, applied.Title, req.TargetTeamID)
	s.afterMutation(gameID)
	writeJSON(w, http.StatusOK, applied)
}

func (s *Server) handleAcknowledgeCurse(w http.ResponseWriter, r *http.Request) {
	s.curseAction(w, r, s.service.AcknowledgeCurse)
}

func (s *Server) handleCompleteCurse(w http.ResponseWriter, r *http.Request) {
	s.curseAction(w, r, s.service.CompleteCurse)
}

func (s *Server) curseAction(w http.ResponseWriter, r *http.Request, action func(gameID, teamID, curseID string) (*game.Game, error)) {
	var req CurseActionRequest
	if !s.readBody(w, r, &req) {
		return
	}

	gameID := r.PathValue("id")
	_, err := action(gameID, r.PathValue("teamId"), req.CurseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.afterMutation(gameID)
	s.respondWithGame(w, http.StatusOK, gameID)
}

// ===== Clues =====

func (s *Server) handleClueTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, game.ClueTypeCatalog)
}

func (s *Server) handlePurchaseClue(w http.ResponseWriter, r *http.Request) {
	var req PurchaseClueRequest
	if !s.readBody(w, r, &req) {
		return
	}

	gameID := r.PathValue("id")
	_, delivery, err := s.service.PurchaseClue(gameID, r.PathValue("teamId"), req.ClueTypeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Pending requests go to the target hiders through the room; each
	// client filters on targetTeamId. Broadcast copies: the stored
	// request may be answered and mutated before the marshal happens.
	for _, clueReq := range delivery.Requests {
		pending := *clueReq
		s.hub.Broadcast(gameID, ServerMessage{
			Type:         "clueRequest",
			TargetTeamID: pending.TargetTeamID,
			Request:      &pending,
		})
	}

	s.afterMutation(gameID)
	writeJSON(w, http.StatusOK, delivery.Clue)
}

func (s *Server) handleClueHistory(w http.ResponseWriter, r *http.Request) {
	history := s.store.ClueHistoryForTeam(r.PathValue("id"), r.PathValue("teamId"))
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleClueRequestRespond(w http.ResponseWriter, r *http.Request) {
	var req ClueResponseRequest
	if !s.readBody(w, r, &req) {
		return
	}

	delivery, err := s.service.RespondToClueRequest(r.PathValue("requestId"), req.Response)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.hub.Broadcast(delivery.GameID, ServerMessage{
		Type:             "clueResponse",
		RequestingTeamID: delivery.RequestingTeamID,
		Response:         &delivery.Response,
	})

	s.afterMutation(delivery.GameID)
	writeJSON(w, http.StatusOK, delivery.Clue)
}

// ===== Shared plumbing =====

// afterMutation persists the game and pushes the fresh snapshot to its
// room. Persistence failures are logged, not surfaced: the periodic save
// pass retries them.
func (s *Server) afterMutation(gameID string) {
	s.saveGame(gameID)
	s.broadcastGameUpdate(gameID)
}

func (s *Server) saveGame(gameID string) {
	rec, err := s.store.Record(gameID)
	if err != nil {
		return
	}
	if err := s.persistence.SaveGameSnapshot(rec.ID, rec.Code, string(rec.Status), rec.Snapshot, rec.CreatedAt, rec.UpdatedAt); err != nil {
		log.Printf("Failed to persist game %s: %v", gameID, err)
	}
}

func (s *Server) respondWithGame(w http.ResponseWriter, status int, gameID string) {
	snapshot, err := s.store.Snapshot(gameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeRawJSON(w, status, snapshot)
}
