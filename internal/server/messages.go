package server

import (
	"encoding/json"

	"hideandseek-server/internal/game"
)

// ClientMessage is a client → server frame. The protocol is flat JSON:
// {"type":"join","gameId":...}, {"type":"ping","t":...}, {"type":"leave"}.
type ClientMessage struct {
	Type   string `json:"type"`
	GameID string `json:"gameId,omitempty"`
	T      int64  `json:"t,omitempty"`
}

// ServerMessage is a server → client frame. Which payload fields are set
// depends on Type:
//
//	gameUpdate   → Game (full snapshot, never a diff)
//	clueRequest  → TargetTeamID + Request
//	clueResponse → RequestingTeamID + Response
//	pong         → T (echo of the ping's t)
//	error        → Message
type ServerMessage struct {
	Type string `json:"type"`

	Game json.RawMessage `json:"game,omitempty"`

	TargetTeamID     string             `json:"targetTeamId,omitempty"`
	Request          *game.ClueRequest  `json:"request,omitempty"`
	RequestingTeamID string             `json:"requestingTeamId,omitempty"`
	Response         *game.ClueResponse `json:"response,omitempty"`

	T int64 `json:"t,omitempty"`

	Message string `json:"message,omitempty"`
}
