package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

const (
	foundBonusTokens   = 50
	vetoPenaltyMinutes = 5
	curseCost          = 10
)

// Service implements every state-mutating action. All mutation funnels
// through the store's Update path, so handlers for the same game are
// serialized end to end: validation and write happen inside one critical
// section and no partial mutation is ever observable.
type Service struct {
	store *Store

	// Overridable in tests for deterministic draws and clocks.
	now  func() time.Time
	intn func(n int) int
}

func NewService(store *Store) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		intn:  rand.Intn,
	}
}

func (s *Service) Store() *Store { return s.store }

func findTeam(g *Game, teamID string) (*Team, error) {
	t := g.TeamByID(teamID)
	if t == nil {
		return nil, errors.New("TEAM_NOT_FOUND: Team not found")
	}
	return t, nil
}

func requireActive(g *Game) error {
	if g.Status != StatusActive {
		return fmt.Errorf("GAME_NOT_ACTIVE: Game is %s", g.Status)
	}
	return nil
}

// flushHiderClock banks a hider's elapsed time into TotalHiderTime.
// Called on pause, on being found, and at round/game end so hider time
// never includes paused spans.
func flushHiderClock(t *Team, now time.Time) {
	if t.HiderStartTime == nil {
		return
	}
	t.TotalHiderTime += now.Sub(*t.HiderStartTime).Milliseconds()
	t.HiderStartTime = nil
}

// settleCursePenalties charges the effective-hiding-time penalty for
// every curse the hider never completed, then clears the list. Round-end
// scoring only; completing a curse in time waives its penalty.
func settleCursePenalties(t *Team) {
	for _, c := range t.ActiveCurses {
		if !c.Completed {
			t.TotalHiderTime += int64(c.Penalty) * 1000
		}
	}
	t.ActiveCurses = []ActiveCurse{}
}

// StartGame moves a waiting game to active and starts the round clocks.
func (s *Service) StartGame(id string) (*Game, error) {
	return s.store.Update(id, func(g *Game) error {
		if g.Status != StatusWaiting {
			return fmt.Errorf("INVALID_STATE: Cannot start a %s game", g.Status)
		}

		now := s.now()
		g.Status = StatusActive
		if g.GameStartTime == nil {
			g.GameStartTime = &now
		}
		g.RoundStartTime = &now
		g.PausedDurationAtRoundStart = g.TotalPausedDuration
		g.PausedByTimeLimit = false

		for _, t := range g.Teams {
			if t.Role == RoleHider {
				start := now
				t.HiderStartTime = &start
			}
		}
		return nil
	})
}

// PauseGame suspends an active game. Hider clocks are banked so paused
// time never counts as hiding time.
func (s *Service) PauseGame(id string) (*Game, error) {
	return s.pause(id, false)
}

func (s *Service) pause(id string, byTimeLimit bool) (*Game, error) {
	return s.store.Update(id, func(g *Game) error {
		if g.Status != StatusActive {
			return fmt.Errorf("INVALID_STATE: Cannot pause a %s game", g.Status)
		}

		now := s.now()
		g.Status = StatusPaused
		g.PauseTime = &now
		g.PausedByTimeLimit = byTimeLimit

		for _, t := range g.Teams {
			if t.Role == RoleHider {
				flushHiderClock(t, now)
			}
		}
		return nil
	})
}

// ResumeGame continues a manually paused game. A round-clock pause can
// only be cleared by advancing to the next round.
func (s *Service) ResumeGame(id string) (*Game, error) {
	return s.store.Update(id, func(g *Game) error {
		if g.Status != StatusPaused {
			return fmt.Errorf("INVALID_STATE: Cannot resume a %s game", g.Status)
		}
		if g.PausedByTimeLimit {
			return errors.New("INVALID_STATE: Round time limit reached; advance to the next round")
		}

		now := s.now()
		g.Status = StatusActive
		s.accumulatePause(g, now)

		for _, t := range g.Teams {
			if t.Role == RoleHider {
				start := now
				t.HiderStartTime = &start
			}
		}
		return nil
	})
}

func (s *Service) accumulatePause(g *Game, now time.Time) {
	if g.PauseTime != nil {
		g.TotalPausedDuration += now.Sub(*g.PauseTime).Milliseconds()
		g.PauseTime = nil
	}
}

// EndGame finishes the game from active or paused. If exactly one hider
// survived, it wins.
func (s *Service) EndGame(id string) (*Game, error) {
	return s.store.Update(id, func(g *Game) error {
		if g.Status != StatusActive && g.Status != StatusPaused {
			return fmt.Errorf("INVALID_STATE: Cannot end a %s game", g.Status)
		}

		now := s.now()
		s.accumulatePause(g, now)
		g.Status = StatusEnded
		g.EndTime = &now

		var lastHider *Team
		hiderCount := 0
		for _, t := range g.Teams {
			if t.Role == RoleHider {
				hiderCount++
				lastHider = t
				flushHiderClock(t, now)
			}
			settleCursePenalties(t)
		}
		if hiderCount == 1 {
			g.WinnerTeamID = lastHider.ID
		}
		return nil
	})
}

// RestartGame resets an ended game to waiting, keeping its id and code.
func (s *Service) RestartGame(id string) (*Game, error) {
	return s.store.Update(id, func(g *Game) error {
		if g.Status != StatusEnded {
			return fmt.Errorf("INVALID_STATE: Cannot restart a %s game", g.Status)
		}

		g.Status = StatusWaiting
		g.Round = 1
		g.PauseTime = nil
		g.EndTime = nil
		g.GameStartTime = nil
		g.RoundStartTime = nil
		g.TotalPausedDuration = 0
		g.PausedDurationAtRoundStart = 0
		g.PausedByTimeLimit = false
		g.WinnerTeamID = ""

		tokens := initialTokens(len(g.Teams))
		for i, t := range g.Teams {
			if i == 0 {
				t.Role = RoleSeeker
			} else {
				t.Role = RoleHider
			}
			t.Tokens = tokens
			t.ActiveChallenge = nil
			t.CompletedChallenges = []CompletedChallenge{}
			t.VetoEndTime = nil
			t.ActiveCurses = []ActiveCurse{}
			t.AppliedCurses = []AppliedCurse{}
			t.CompletedCurses = []string{}
			t.FoundAt = nil
			t.HiderStartTime = nil
			t.TotalHiderTime = 0
		}
		return nil
	})
}

// NextRound rotates roles and starts a fresh round. The seeker slot walks
// the team list in creation order, so over n rounds every team seeks
// once. Tokens and hider-time totals persist across rounds; per-round
// progress resets.
func (s *Service) NextRound(id string) (*Game, error) {
	return s.store.Update(id, func(g *Game) error {
		if g.Status != StatusActive && g.Status != StatusPaused {
			return fmt.Errorf("INVALID_STATE: Cannot advance round of a %s game", g.Status)
		}

		now := s.now()
		s.accumulatePause(g, now)

		g.Round++
		g.Status = StatusActive
		g.RoundStartTime = &now
		g.PausedDurationAtRoundStart = g.TotalPausedDuration
		g.PausedByTimeLimit = false

		seekerIdx := (g.Round - 1) % len(g.Teams)
		for i, t := range g.Teams {
			flushHiderClock(t, now)
			settleCursePenalties(t)

			t.ActiveChallenge = nil
			t.CompletedChallenges = []CompletedChallenge{}
			t.VetoEndTime = nil
			t.FoundAt = nil

			if i == seekerIdx {
				t.Role = RoleSeeker
			} else {
				t.Role = RoleHider
				start := now
				t.HiderStartTime = &start
			}
		}
		return nil
	})
}

// EnforceRoundTimeLimits pauses every active timed game whose round clock
// has run out. Returns the IDs of games it paused so callers can
// broadcast the change. Run from a short-interval ticker.
func (s *Service) EnforceRoundTimeLimits() []string {
	now := s.now()
	var expired []string

	for _, g := range s.store.AllGames() {
		s.store.mu.RLock()
		timed := g.Status == StatusActive && g.RoundLengthMinutes > 0 && g.RoundStartTime != nil
		var elapsed time.Duration
		if timed {
			pausedThisRound := g.TotalPausedDuration - g.PausedDurationAtRoundStart
			elapsed = now.Sub(*g.RoundStartTime) - time.Duration(pausedThisRound)*time.Millisecond
		}
		limit := time.Duration(g.RoundLengthMinutes) * time.Minute
		id := g.ID
		s.store.mu.RUnlock()

		if timed && elapsed >= limit {
			if _, err := s.pause(id, true); err == nil {
				expired = append(expired, id)
			}
		}
	}
	return expired
}

// UpdateLocation upserts a team's last known position. Role-independent:
// hiders push for discoverability, seekers for nearest-hider targeting.
func (s *Service) UpdateLocation(gameID, teamID string, lat, lng, accuracy float64) (*Game, error) {
	if lat < -90 || lat > 90 {
		return nil, errors.New("INVALID_INPUT: Latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return nil, errors.New("INVALID_INPUT: Longitude must be between -180 and 180")
	}

	return s.store.Update(gameID, func(g *Game) error {
		if g.Status == StatusEnded {
			return errors.New("INVALID_STATE: Game has ended")
		}
		t, err := findTeam(g, teamID)
		if err != nil {
			return err
		}
		t.Location = &Location{
			Latitude:  lat,
			Longitude: lng,
			Accuracy:  accuracy,
			Timestamp: s.now(),
		}
		return nil
	})
}

// FoundResult is the outcome of marking a hider found. Every field is a
// copy detached from live state, so callers may marshal it while other
// actions mutate the game.
type FoundResult struct {
	Game            *Game `json:"game"`
	FoundHider      Team  `json:"foundHider"`
	FindingSeeker   Team  `json:"findingSeeker"`
	RemainingHiders int   `json:"remainingHiders"`
	GameEnded       bool  `json:"gameEnded"`
}

// MarkFound flips a found hider to seeker and pays the finding team. A
// freshly found team starts its seeker life clean: zero tokens, no
// challenges, no curses. When only one hider is left the game ends and
// the survivor wins.
func (s *Service) MarkFound(gameID, hiderID, seekerID string) (*FoundResult, error) {
	result := &FoundResult{}

	_, err := s.store.Update(gameID, func(g *Game) error {
		if err := requireActive(g); err != nil {
			return err
		}

		hider, err := findTeam(g, hiderID)
		if err != nil {
			return err
		}
		seeker, err := findTeam(g, seekerID)
		if err != nil {
			return err
		}
		if hider.Role != RoleHider {
			return errors.New("INVALID_ROLE: Team is not a hider")
		}
		if seeker.Role != RoleSeeker {
			return errors.New("INVALID_ROLE: Team is not a seeker")
		}

		now := s.now()
		flushHiderClock(hider, now)
		settleCursePenalties(hider)

		hider.FoundAt = &now
		hider.Role = RoleSeeker
		hider.Tokens = 0
		hider.ActiveChallenge = nil
		hider.CompletedChallenges = []CompletedChallenge{}
		hider.VetoEndTime = nil

		seeker.Tokens += foundBonusTokens

		remaining := g.Hiders()
		if len(remaining) == 1 {
			g.Status = StatusEnded
			g.EndTime = &now
			g.WinnerTeamID = remaining[0].ID
			flushHiderClock(remaining[0], now)
			settleCursePenalties(remaining[0])
		}

		result.FoundHider = hider.clone()
		result.FindingSeeker = seeker.clone()
		result.RemainingHiders = len(remaining)
		result.GameEnded = g.Status == StatusEnded
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Game, err = s.store.CloneGame(gameID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ChangeRole is the manual override for a team's role. Per-round progress
// resets on switch; tokens and accumulated hider time carry over, the
// same carry-over policy NextRound applies.
func (s *Service) ChangeRole(gameID, teamID string, role TeamRole) (*Game, error) {
	if role != RoleHider && role != RoleSeeker {
		return nil, errors.New("INVALID_INPUT: Role must be hider or seeker")
	}

	return s.store.Update(gameID, func(g *Game) error {
		t, err := findTeam(g, teamID)
		if err != nil {
			return err
		}
		if t.Role == role {
			return nil
		}

		now := s.now()
		if t.Role == RoleHider {
			flushHiderClock(t, now)
		}

		t.Role = role
		t.ActiveChallenge = nil
		t.CompletedChallenges = []CompletedChallenge{}
		t.VetoEndTime = nil
		t.ActiveCurses = []ActiveCurse{}
		t.FoundAt = nil

		if role == RoleHider {
			start := now
			t.HiderStartTime = &start
		}
		return nil
	})
}

// Stats builds the end-of-game leaderboards. Current hiders get credit
// for their in-flight stint so mid-game stats are meaningful.
func (s *Service) Stats(gameID string) (*GameStats, error) {
	g, err := s.store.GetGame(gameID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	type row struct {
		id, name                  string
		hiderMs                   int64
		challenges, cursesApplied int
	}

	s.store.mu.RLock()
	stats := &GameStats{GameID: g.ID, Round: g.Round, Status: g.Status}
	rows := make([]row, 0, len(g.Teams))
	for _, t := range g.Teams {
		r := row{id: t.ID, name: t.Name, hiderMs: t.TotalHiderTime,
			challenges: len(t.CompletedChallenges), cursesApplied: len(t.AppliedCurses)}
		if t.HiderStartTime != nil && g.Status == StatusActive {
			r.hiderMs += now.Sub(*t.HiderStartTime).Milliseconds()
		}
		rows = append(rows, r)
	}
	s.store.mu.RUnlock()

	byHider := make([]row, len(rows))
	copy(byHider, rows)
	sort.SliceStable(byHider, func(i, j int) bool { return byHider[i].hiderMs > byHider[j].hiderMs })
	for _, r := range byHider {
		stats.Leaderboard.ByHiderTime = append(stats.Leaderboard.ByHiderTime,
			LeaderboardEntry{TeamID: r.id, TeamName: r.name, Value: int(r.hiderMs / 1000)})
	}

	byChallenges := make([]row, len(rows))
	copy(byChallenges, rows)
	sort.SliceStable(byChallenges, func(i, j int) bool { return byChallenges[i].challenges > byChallenges[j].challenges })
	for _, r := range byChallenges {
		stats.Leaderboard.ByChallengesCompleted = append(stats.Leaderboard.ByChallengesCompleted,
			LeaderboardEntry{TeamID: r.id, TeamName: r.name, Value: r.challenges})
	}

	byCurses := make([]row, len(rows))
	copy(byCurses, rows)
	sort.SliceStable(byCurses, func(i, j int) bool { return byCurses[i].cursesApplied > byCurses[j].cursesApplied })
	for _, r := range byCurses {
		stats.Leaderboard.ByCursesApplied = append(stats.Leaderboard.ByCursesApplied,
			LeaderboardEntry{TeamID: r.id, TeamName: r.name, Value: r.cursesApplied})
	}

	return stats, nil
}
