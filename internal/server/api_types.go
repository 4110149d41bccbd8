package server

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// RemainingTime is set only for VETO_ACTIVE (seconds until the team
	// may draw again).
	RemainingTime int `json:"remainingTime,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ============================================================================
// CREATE GAME (POST /api/games)
// ============================================================================
// tygo:generate
type CreateGameRequest struct {
	TeamNames []string `json:"teamNames"`
	// PlayerRole overrides the first team's role, for solo games.
	PlayerRole         string `json:"playerRole,omitempty"`
	RoundLengthMinutes int    `json:"roundLengthMinutes,omitempty"`
}

// ============================================================================
// TEAM ACTIONS
// ============================================================================
// tygo:generate
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy,omitempty"`
}

// tygo:generate
type MarkFoundRequest struct {
	SeekerID string `json:"seekerId"`
}

// tygo:generate
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// ============================================================================
// CHALLENGES (POST .../draw-challenge, complete-challenge, veto-challenge)
// ============================================================================
// tygo:generate
type CompleteChallengeRequest struct {
	ChallengeTitle string `json:"challengeTitle"`
	CustomTokens   *int   `json:"customTokens,omitempty"`
}

// tygo:generate
type CompleteChallengeResponse struct {
	TokensAwarded int    `json:"tokensAwarded"`
	TotalTokens   int    `json:"totalTokens"`
	TeamID        string `json:"teamId"`
}

// ============================================================================
// CURSES (POST .../curse, acknowledge-curse, complete-curse)
// ============================================================================
// tygo:generate
type ApplyCurseRequest struct {
	TargetTeamID string `json:"targetTeamId"`
}

// tygo:generate
type CurseActionRequest struct {
	CurseID string `json:"curseId"`
}

// ============================================================================
// CLUES (POST .../clues, POST /api/clue-requests/{requestId}/respond)
// ============================================================================
// tygo:generate
type PurchaseClueRequest struct {
	ClueTypeID string `json:"clueTypeId"`
}

// tygo:generate
type ClueResponseRequest struct {
	Response string `json:"response"`
}
