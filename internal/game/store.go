package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the authoritative in-memory home of all game state. Every
// mutation goes through Update so concurrent actions on the same game are
// serialized; broadcast and HTTP reads take JSON snapshots under the read
// lock so marshaling never races a mutator.
type Store struct {
	mu        sync.RWMutex
	games     map[string]*Game // id → game
	codes     map[string]string
	usedCodes map[string]bool

	clueMu        sync.RWMutex
	clueHistory   map[string][]PurchasedClue // "gameID:teamID" → purchases
	clueRequests  map[string]*ClueRequest    // requestID → request
	clueResponses map[string][]ClueResponse  // gameID → responses
}

func NewStore() *Store {
	return &Store{
		games:         make(map[string]*Game),
		codes:         make(map[string]string),
		usedCodes:     make(map[string]bool),
		clueHistory:   make(map[string][]PurchasedClue),
		clueRequests:  make(map[string]*ClueRequest),
		clueResponses: make(map[string][]ClueResponse),
	}
}

// initialTokens matches the on-paper rules: multi-team games seed every
// team with 10 tokens, a solo practice game starts from zero.
func initialTokens(teamCount int) int {
	if teamCount >= 2 {
		return 10
	}
	return 0
}

// CreateGame builds a new game in waiting status. The first team is the
// seeker, the rest hiders; team order is preserved for display.
// playerRole overrides the first team's role for solo practice games.
func (s *Store) CreateGame(teamNames []string, playerRole TeamRole, roundLengthMinutes int) (*Game, error) {
	if len(teamNames) == 0 {
		return nil, errors.New("INVALID_INPUT: At least one team name is required")
	}
	if playerRole != "" && playerRole != RoleHider && playerRole != RoleSeeker {
		return nil, errors.New("INVALID_INPUT: Role must be hider or seeker")
	}
	for _, name := range teamNames {
		if name == "" {
			return nil, errors.New("INVALID_INPUT: Team names must not be empty")
		}
	}
	if roundLengthMinutes < 0 {
		return nil, errors.New("INVALID_INPUT: Round length must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	code := GenerateGameCode(s.usedCodes)
	tokens := initialTokens(len(teamNames))

	g := &Game{
		ID:                 uuid.NewString(),
		Code:               code,
		Status:             StatusWaiting,
		Round:              1,
		RoundLengthMinutes: roundLengthMinutes,
		StartTime:          &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	for i, name := range teamNames {
		role := RoleHider
		if i == 0 {
			role = RoleSeeker
			if playerRole != "" {
				role = playerRole
			}
		}
		g.Teams = append(g.Teams, &Team{
			ID:                  uuid.NewString(),
			Name:                name,
			Role:                role,
			Tokens:              tokens,
			CompletedChallenges: []CompletedChallenge{},
			ActiveCurses:        []ActiveCurse{},
			AppliedCurses:       []AppliedCurse{},
			CompletedCurses:     []string{},
		})
	}

	s.games[g.ID] = g
	s.codes[code] = g.ID
	s.usedCodes[code] = true

	return g, nil
}

var ErrGameNotFound = errors.New("GAME_NOT_FOUND: Game not found")

// GetGame returns the live game pointer. Callers must not mutate it;
// mutation goes through Update.
func (s *Store) GetGame(id string) (*Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

func (s *Store) GetGameByCode(code string) (*Game, error) {
	code = NormalizeGameCode(code)

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.codes[code]
	if !ok {
		return nil, ErrGameNotFound
	}
	return s.games[id], nil
}

// Update runs mutate under the write lock and stamps UpdatedAt on
// success. This is the single serialization point for game mutation:
// two concurrent actions on the same game always see each other's
// completed writes.
func (s *Store) Update(id string, mutate func(*Game) error) (*Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}

	if err := mutate(g); err != nil {
		return nil, err
	}

	g.UpdatedAt = time.Now().UTC()
	return g, nil
}

// Snapshot marshals the game under the read lock so the caller gets a
// stable byte image no mutator can tear.
func (s *Store) Snapshot(id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}

	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize game %s: %w", id, err)
	}
	return data, nil
}

// CloneGame returns a deep copy of the game, taken under the read lock.
// The copy shares no memory with live state, so callers may hold, read,
// and marshal it with no further locking.
func (s *Store) CloneGame(id string) (*Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g.clone(), nil
}

// GameRecord pairs a snapshot with the row metadata the persistence
// layer writes. All fields are read under one lock acquisition, so the
// metadata can never disagree with the snapshot bytes.
type GameRecord struct {
	ID        string
	Code      string
	Status    GameStatus
	Round     int
	CreatedAt time.Time
	UpdatedAt time.Time
	Snapshot  json.RawMessage
}

func (s *Store) Record(id string) (*GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}

	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize game %s: %w", id, err)
	}
	return &GameRecord{
		ID:        g.ID,
		Code:      g.Code,
		Status:    g.Status,
		Round:     g.Round,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
		Snapshot:  data,
	}, nil
}

// DeleteGame removes a game and frees its code for reuse.
func (s *Store) DeleteGame(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[id]
	if !ok {
		return ErrGameNotFound
	}

	delete(s.games, id)
	delete(s.codes, g.Code)
	delete(s.usedCodes, g.Code)

	s.clueMu.Lock()
	for key := range s.clueHistory {
		if hasGamePrefix(key, id) {
			delete(s.clueHistory, key)
		}
	}
	for reqID, req := range s.clueRequests {
		if req.GameID == id {
			delete(s.clueRequests, reqID)
		}
	}
	delete(s.clueResponses, id)
	s.clueMu.Unlock()

	return nil
}

func hasGamePrefix(key, gameID string) bool {
	return len(key) > len(gameID) && key[:len(gameID)] == gameID && key[len(gameID)] == ':'
}

// Restore places a persisted game back into the store, reclaiming its
// code. Used on startup only, before any traffic.
func (s *Store) Restore(g *Game) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.games[g.ID] = g
	s.codes[g.Code] = g.ID
	s.usedCodes[g.Code] = true
}

// ReserveCode marks a code as taken so the generator skips it. Startup
// restore uses this for codes persisted as in-use.
func (s *Store) ReserveCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usedCodes[NormalizeGameCode(code)] = true
}

// AllGames returns the live game pointers. Callers that serialize them
// must hold RLock via WithRLock to avoid racing mutators.
func (s *Store) AllGames() []*Game {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]*Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	return games
}

// WithRLock runs fn while holding the read lock. The periodic persistence
// pass uses this so JSON marshaling of every game happens against a
// quiescent store.
func (s *Store) WithRLock(fn func(games map[string]*Game)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.games)
}

// ===== Clue history and async requests =====

func clueHistoryKey(gameID, teamID string) string {
	return gameID + ":" + teamID
}

func (s *Store) AddClueToHistory(gameID, teamID string, clue PurchasedClue) {
	s.clueMu.Lock()
	defer s.clueMu.Unlock()

	key := clueHistoryKey(gameID, teamID)
	s.clueHistory[key] = append(s.clueHistory[key], clue)
}

// UpdateClueInHistory replaces the stored clue with the same ID, if any.
func (s *Store) UpdateClueInHistory(gameID, teamID string, clue PurchasedClue) {
	s.clueMu.Lock()
	defer s.clueMu.Unlock()

	key := clueHistoryKey(gameID, teamID)
	for i := range s.clueHistory[key] {
		if s.clueHistory[key][i].ID == clue.ID {
			s.clueHistory[key][i] = clue
			return
		}
	}
}

func (s *Store) ClueHistoryForTeam(gameID, teamID string) []PurchasedClue {
	s.clueMu.RLock()
	defer s.clueMu.RUnlock()

	history := s.clueHistory[clueHistoryKey(gameID, teamID)]
	out := make([]PurchasedClue, len(history))
	copy(out, history)
	return out
}

func (s *Store) AddClueRequest(req *ClueRequest) {
	s.clueMu.Lock()
	defer s.clueMu.Unlock()
	s.clueRequests[req.ID] = req
}

func (s *Store) GetClueRequest(id string) (*ClueRequest, bool) {
	s.clueMu.RLock()
	defer s.clueMu.RUnlock()
	req, ok := s.clueRequests[id]
	return req, ok
}

// PendingClueRequests returns the pending requests across all games.
// The expiry sweep walks this.
func (s *Store) PendingClueRequests() []*ClueRequest {
	s.clueMu.RLock()
	defer s.clueMu.RUnlock()

	var pending []*ClueRequest
	for _, req := range s.clueRequests {
		if req.Status == RequestPending {
			pending = append(pending, req)
		}
	}
	return pending
}

func (s *Store) SetClueRequestStatus(id string, status ClueRequestStatus) {
	s.clueMu.Lock()
	defer s.clueMu.Unlock()
	if req, ok := s.clueRequests[id]; ok {
		req.Status = status
	}
}

func (s *Store) AddClueResponse(gameID string, resp ClueResponse) {
	s.clueMu.Lock()
	defer s.clueMu.Unlock()
	s.clueResponses[gameID] = append(s.clueResponses[gameID], resp)
}
