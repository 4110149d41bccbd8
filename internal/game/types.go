package game

import "time"

type GameStatus string

const (
	StatusWaiting GameStatus = "waiting"
	StatusActive  GameStatus = "active"
	StatusPaused  GameStatus = "paused"
	StatusEnded   GameStatus = "ended"
)

type TeamRole string

const (
	RoleHider  TeamRole = "hider"
	RoleSeeker TeamRole = "seeker"
)

// Game is the authoritative state for one session. All timestamps are UTC.
// TotalPausedDuration accumulates across pause/resume cycles so elapsed
// game time can be derived without walking a pause history.
type Game struct {
	ID     string     `json:"id"`
	Code   string     `json:"code"`
	Status GameStatus `json:"status"`
	Teams  []*Team    `json:"teams"`
	Round  int        `json:"round"`

	StartTime           *time.Time `json:"startTime,omitempty"`
	PauseTime           *time.Time `json:"pauseTime,omitempty"`
	EndTime             *time.Time `json:"endTime,omitempty"`
	TotalPausedDuration int64      `json:"totalPausedDuration"` // milliseconds

	GameStartTime              *time.Time `json:"gameStartTime,omitempty"`
	RoundStartTime             *time.Time `json:"roundStartTime,omitempty"`
	PausedDurationAtRoundStart int64      `json:"pausedDurationAtRoundStart"`
	RoundLengthMinutes         int        `json:"roundLengthMinutes"` // 0 = untimed
	PausedByTimeLimit          bool       `json:"pausedByTimeLimit"`

	WinnerTeamID string `json:"winnerTeamId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Team struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Role   TeamRole `json:"role"`
	Tokens int      `json:"tokens"`

	Location *Location `json:"location,omitempty"`

	ActiveChallenge     *ActiveChallenge     `json:"activeChallenge,omitempty"`
	CompletedChallenges []CompletedChallenge `json:"completedChallenges"`
	VetoEndTime         *time.Time           `json:"vetoEndTime,omitempty"`

	ActiveCurses  []ActiveCurse  `json:"activeCurses"`
	AppliedCurses []AppliedCurse `json:"appliedCurses"`
	// CompletedCurses holds curse IDs already inflicted on this team,
	// so random selection avoids repeats until the catalog is exhausted.
	CompletedCurses []string `json:"completedCurses"`

	FoundAt        *time.Time `json:"foundAt,omitempty"`
	HiderStartTime *time.Time `json:"hiderStartTime,omitempty"`
	TotalHiderTime int64      `json:"totalHiderTime"` // milliseconds across all rounds
}

type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Challenge is a catalog entry. Tokens is a string because the deck mixes
// fixed awards ("5"), "Variable", and dice multipliers ("2 x Dice roll").
type Challenge struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tokens      string `json:"tokens"`
	Category    string `json:"category,omitempty"`
}

type ActiveChallenge struct {
	Challenge
	DrawnAt time.Time `json:"drawnAt"`
}

type CompletedChallenge struct {
	Title       string    `json:"title"`
	Tokens      int       `json:"tokens"`
	CompletedAt time.Time `json:"completedAt"`
}

// Curse is a catalog entry. TimeSeconds is how long the curse afflicts the
// target; Penalty is the extra hiding time (seconds) charged at round-end
// scoring when the target never completes it.
type Curse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Penalty     int    `json:"penalty,omitempty"`
	TokenCount  int    `json:"tokenCount"`
	TimeSeconds int    `json:"timeSeconds,omitempty"`
	Cost        int    `json:"cost"`
}

type ActiveCurse struct {
	Curse
	AppliedAt    time.Time  `json:"appliedAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	Acknowledged bool       `json:"acknowledged"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// AppliedCurse records a curse cast by a seeker, kept on the caster so
// the UI can show who they hit without scanning every team.
type AppliedCurse struct {
	CurseID        string    `json:"curseId"`
	Title          string    `json:"title"`
	TargetTeamID   string    `json:"targetTeamId"`
	TargetTeamName string    `json:"targetTeamName"`
	AppliedAt      time.Time `json:"appliedAt"`
}

// ClueType describes a purchasable clue. ResponseType is empty for clues
// the server can answer itself, "photo" or "text" for clues that require
// the hider to respond. RangeMeters of 0 means every hider is a target.
type ClueType struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Cost         int    `json:"cost"`
	ResponseType string `json:"responseType,omitempty"`
	RangeMeters  int    `json:"range,omitempty"`
}

type PurchasedClue struct {
	ID        string          `json:"id"`
	TypeID    string          `json:"typeId"`
	TypeName  string          `json:"typeName"`
	Cost      int             `json:"cost"`
	Content   string          `json:"content,omitempty"`
	Pending   bool            `json:"pending,omitempty"`
	HiderData []HiderClueData `json:"hiderData,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// HiderClueData carries one hider's slice of a multi-target clue: either
// resolved content or the request ID still awaiting that hider's answer.
type HiderClueData struct {
	TeamID    string `json:"teamId"`
	TeamName  string `json:"teamName"`
	Content   string `json:"content,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ClueRequestStatus string

const (
	RequestPending   ClueRequestStatus = "pending"
	RequestCompleted ClueRequestStatus = "completed"
	RequestExpired   ClueRequestStatus = "expired"
)

type ClueRequest struct {
	ID               string            `json:"id"`
	GameID           string            `json:"gameId"`
	ClueTypeID       string            `json:"clueTypeId"`
	RequestingTeamID string            `json:"requestingTeamId"`
	TargetTeamID     string            `json:"targetTeamId"`
	ResponseType     string            `json:"responseType"`
	Status           ClueRequestStatus `json:"status"`
	CreatedAt        time.Time         `json:"createdAt"`
	ExpiresAt        time.Time         `json:"expiresAt"`
}

type ClueResponse struct {
	RequestID   string    `json:"requestId"`
	Response    string    `json:"response"`
	RespondedAt time.Time `json:"respondedAt"`
}

type GameStats struct {
	GameID      string      `json:"gameId"`
	Round       int         `json:"round"`
	Status      GameStatus  `json:"status"`
	Leaderboard Leaderboard `json:"leaderboard"`
}

type Leaderboard struct {
	ByHiderTime           []LeaderboardEntry `json:"byHiderTime"`
	ByChallengesCompleted []LeaderboardEntry `json:"byChallengesCompleted"`
	ByCursesApplied       []LeaderboardEntry `json:"byCursesApplied"`
}

type LeaderboardEntry struct {
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	Value    int    `json:"value"`
}

// TeamByID returns the team or nil.
func (g *Game) TeamByID(id string) *Team {
	for _, t := range g.Teams {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Hiders returns teams currently in the hider role.
func (g *Game) Hiders() []*Team {
	var hiders []*Team
	for _, t := range g.Teams {
		if t.Role == RoleHider {
			hiders = append(hiders, t)
		}
	}
	return hiders
}

// HasUnexpiredCurse reports whether the team carries a curse that is
// neither completed nor past its expiry. Expired entries are pruned in
// place so callers see a clean list.
func (t *Team) HasUnexpiredCurse(now time.Time) bool {
	kept := t.ActiveCurses[:0]
	active := false
	for _, c := range t.ActiveCurses {
		if !c.Completed && now.After(c.ExpiresAt) {
			continue // lazily drop expired curses
		}
		if !c.Completed {
			active = true
		}
		kept = append(kept, c)
	}
	t.ActiveCurses = kept
	return active
}

// clone returns a deep copy of the team. The copy owns its slices and
// pointer fields, so it can be read and marshaled with no lock held.
func (t *Team) clone() Team {
	c := *t
	c.CompletedChallenges = append([]CompletedChallenge(nil), t.CompletedChallenges...)
	c.ActiveCurses = append([]ActiveCurse(nil), t.ActiveCurses...)
	c.AppliedCurses = append([]AppliedCurse(nil), t.AppliedCurses...)
	c.CompletedCurses = append([]string(nil), t.CompletedCurses...)
	if t.Location != nil {
		loc := *t.Location
		c.Location = &loc
	}
	if t.ActiveChallenge != nil {
		ac := *t.ActiveChallenge
		c.ActiveChallenge = &ac
	}
	c.VetoEndTime = cloneTime(t.VetoEndTime)
	c.FoundAt = cloneTime(t.FoundAt)
	c.HiderStartTime = cloneTime(t.HiderStartTime)
	return c
}

// clone returns a deep copy of the game, detached from live state.
func (g *Game) clone() *Game {
	c := *g
	c.Teams = make([]*Team, len(g.Teams))
	for i, t := range g.Teams {
		ct := t.clone()
		c.Teams[i] = &ct
	}
	c.StartTime = cloneTime(g.StartTime)
	c.PauseTime = cloneTime(g.PauseTime)
	c.EndTime = cloneTime(g.EndTime)
	c.GameStartTime = cloneTime(g.GameStartTime)
	c.RoundStartTime = cloneTime(g.RoundStartTime)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
