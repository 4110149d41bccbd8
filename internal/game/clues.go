package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const clueRequestTTL = 10 * time.Minute

// ClueDelivery is what the transport layer pushes after a purchase: the
// purchased clue for the buyer plus any pending requests that must reach
// the target hiders.
type ClueDelivery struct {
	Clue     PurchasedClue
	Requests []*ClueRequest
}

// PurchaseClue resolves a clue purchase. Deterministic types are answered
// immediately from the static POI table and the targets' last known
// locations; action-required types (photo or text) fan out one
// ClueRequest per target and leave a pending clue in the buyer's history
// until the hiders answer or the requests expire.
func (s *Service) PurchaseClue(gameID, teamID, clueTypeID string) (*Game, *ClueDelivery, error) {
	clueType := ClueTypeByID(clueTypeID)
	if clueType == nil {
		return nil, nil, errors.New("CLUE_TYPE_NOT_FOUND: Unknown clue type")
	}

	delivery := &ClueDelivery{}

	g, err := s.store.Update(gameID, func(g *Game) error {
		if err := requireActive(g); err != nil {
			return err
		}
		buyer, err := findTeam(g, teamID)
		if err != nil {
			return err
		}
		if buyer.Role != RoleSeeker {
			return errors.New("INVALID_ROLE: Only seekers can purchase clues")
		}
		if buyer.Location == nil {
			return errors.New("LOCATION_UNKNOWN: Share your location before purchasing clues")
		}
		if buyer.Tokens < clueType.Cost {
			return fmt.Errorf("INSUFFICIENT_TOKENS: This clue costs %d tokens", clueType.Cost)
		}

		targets := s.clueTargets(g, buyer, clueType)
		if len(targets) == 0 {
			return errors.New("NO_HIDERS_AVAILABLE: No hiders with known locations in range")
		}

		now := s.now()
		if clueType.ResponseType == "" {
			delivery.Clue = s.resolveDeterministicClue(clueType, buyer, targets, now)
		} else {
			delivery.Clue, delivery.Requests = s.createClueRequests(g.ID, clueType, buyer, targets, now)
		}

		buyer.Tokens -= clueType.Cost
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.store.AddClueToHistory(gameID, teamID, delivery.Clue)
	for _, req := range delivery.Requests {
		s.store.AddClueRequest(req)
	}

	return g, delivery, nil
}

// clueTargets returns hiders with known locations, filtered to the
// type's radius around the buyer when the type is range-limited.
func (s *Service) clueTargets(g *Game, buyer *Team, clueType *ClueType) []*Team {
	var targets []*Team
	for _, t := range g.Hiders() {
		if t.Location == nil {
			continue
		}
		if clueType.RangeMeters > 0 {
			d := DistanceMeters(buyer.Location.Latitude, buyer.Location.Longitude,
				t.Location.Latitude, t.Location.Longitude)
			if d > float64(clueType.RangeMeters) {
				continue
			}
		}
		targets = append(targets, t)
	}
	return targets
}

func (s *Service) resolveDeterministicClue(clueType *ClueType, buyer *Team, targets []*Team, now time.Time) PurchasedClue {
	clue := PurchasedClue{
		ID:        uuid.NewString(),
		TypeID:    clueType.ID,
		TypeName:  clueType.Name,
		Cost:      clueType.Cost,
		Timestamp: now,
	}

	for _, target := range targets {
		clue.HiderData = append(clue.HiderData, HiderClueData{
			TeamID:   target.ID,
			TeamName: target.Name,
			Content:  clueContent(clueType.ID, buyer, target),
		})
	}

	if len(targets) == 1 {
		clue.Content = clue.HiderData[0].Content
	} else {
		clue.Content = fmt.Sprintf("%s for %d hider teams", clueType.Name, len(targets))
	}
	return clue
}

// createClueRequests builds one pending request per target. The clue's ID
// is the comma-joined request IDs so a response can be matched back to
// its slice of the aggregate.
func (s *Service) createClueRequests(gameID string, clueType *ClueType, buyer *Team, targets []*Team, now time.Time) (PurchasedClue, []*ClueRequest) {
	var requests []*ClueRequest
	var requestIDs []string
	var hiderData []HiderClueData

	for _, target := range targets {
		req := &ClueRequest{
			ID:               uuid.NewString(),
			GameID:           gameID,
			ClueTypeID:       clueType.ID,
			RequestingTeamID: buyer.ID,
			TargetTeamID:     target.ID,
			ResponseType:     clueType.ResponseType,
			Status:           RequestPending,
			CreatedAt:        now,
			ExpiresAt:        now.Add(clueRequestTTL),
		}
		requests = append(requests, req)
		requestIDs = append(requestIDs, req.ID)
		hiderData = append(hiderData, HiderClueData{
			TeamID:    target.ID,
			TeamName:  target.Name,
			RequestID: req.ID,
		})
	}

	content := fmt.Sprintf("Waiting for a response from %s...", targets[0].Name)
	if len(targets) > 1 {
		content = fmt.Sprintf("Waiting for responses from %d hider teams...", len(targets))
	}

	clue := PurchasedClue{
		ID:        strings.Join(requestIDs, ","),
		TypeID:    clueType.ID,
		TypeName:  clueType.Name,
		Cost:      clueType.Cost,
		Content:   content,
		Pending:   true,
		HiderData: hiderData,
		Timestamp: now,
	}
	return clue, requests
}

func clueContent(clueTypeID string, buyer, target *Team) string {
	loc := target.Location

	switch clueTypeID {
	case "exact-location":
		return fmt.Sprintf("Coordinates: %.6f, %.6f", loc.Latitude, loc.Longitude)

	case "relative-direction":
		dir := CompassDirection(buyer.Location.Latitude, buyer.Location.Longitude,
			loc.Latitude, loc.Longitude)
		return fmt.Sprintf("The hiders are to the %s of you", dir)

	case "distance":
		d := DistanceMeters(buyer.Location.Latitude, buyer.Location.Longitude,
			loc.Latitude, loc.Longitude)
		return fmt.Sprintf("About %d minutes away on foot (%s)", WalkingTimeMinutes(d), FormatDistance(d))

	case "inside-outside":
		building := ClosestPOI(loc.Latitude, loc.Longitude, "building")
		if building != nil {
			d := DistanceMeters(loc.Latitude, loc.Longitude, building.Latitude, building.Longitude)
			if d < 50 {
				return "Inside a building"
			}
		}
		return "Outside"

	case "closest-street":
		if poi := ClosestPOI(loc.Latitude, loc.Longitude, "street"); poi != nil {
			return fmt.Sprintf("Closest street: %s", poi.Name)
		}
		return "No nearby named streets identified"

	case "closest-library":
		if poi := ClosestPOI(loc.Latitude, loc.Longitude, "library"); poi != nil {
			return fmt.Sprintf("Closest library: %s", poi.Name)
		}
		return "No nearby libraries identified"

	case "closest-museum":
		if poi := ClosestPOI(loc.Latitude, loc.Longitude, "museum"); poi != nil {
			return fmt.Sprintf("Closest museum: %s", poi.Name)
		}
		return "No nearby museums identified"

	case "closest-parking":
		return "Parking information: check the campus parking map for the nearest lot"

	default:
		return fmt.Sprintf("Clue type %s has no deterministic content", clueTypeID)
	}
}

// ClueResponseDelivery is pushed to the requesting team after a hider
// answers.
type ClueResponseDelivery struct {
	GameID           string
	RequestingTeamID string
	Response         ClueResponse
	Clue             PurchasedClue
}

// RespondToClueRequest records a hider's answer to a pending request and
// folds it into the buyer's clue history. Expiry is checked lazily here:
// answering an overdue request marks it expired and fails.
func (s *Service) RespondToClueRequest(requestID, response string) (*ClueResponseDelivery, error) {
	req, ok := s.store.GetClueRequest(requestID)
	if !ok {
		return nil, errors.New("REQUEST_NOT_FOUND: Clue request not found")
	}
	if req.Status != RequestPending {
		return nil, fmt.Errorf("INVALID_STATE: Clue request is %s", req.Status)
	}

	now := s.now()
	if now.After(req.ExpiresAt) {
		s.store.SetClueRequestStatus(requestID, RequestExpired)
		return nil, errors.New("REQUEST_EXPIRED: Clue request has expired")
	}

	s.store.SetClueRequestStatus(requestID, RequestCompleted)

	resp := ClueResponse{RequestID: requestID, Response: response, RespondedAt: now}
	s.store.AddClueResponse(req.GameID, resp)

	clue, found := s.store.resolveRequestInHistory(req.GameID, req.RequestingTeamID, requestID, response)
	if !found {
		return nil, errors.New("REQUEST_NOT_FOUND: No pending clue for this request")
	}

	return &ClueResponseDelivery{
		GameID:           req.GameID,
		RequestingTeamID: req.RequestingTeamID,
		Response:         resp,
		Clue:             clue,
	}, nil
}

// resolveRequestInHistory fills in one hider's slice of a pending clue
// and flips the clue to resolved once every slice has content.
func (s *Store) resolveRequestInHistory(gameID, teamID, requestID, response string) (PurchasedClue, bool) {
	s.clueMu.Lock()
	defer s.clueMu.Unlock()

	key := clueHistoryKey(gameID, teamID)
	for i := range s.clueHistory[key] {
		clue := &s.clueHistory[key][i]
		if !clueContainsRequest(clue.ID, requestID) {
			continue
		}

		allResolved := true
		for j := range clue.HiderData {
			if clue.HiderData[j].RequestID == requestID {
				clue.HiderData[j].Content = response
				clue.HiderData[j].RequestID = ""
			}
			if clue.HiderData[j].RequestID != "" {
				allResolved = false
			}
		}
		if allResolved {
			clue.Pending = false
			if len(clue.HiderData) == 1 {
				clue.Content = clue.HiderData[0].Content
			} else {
				clue.Content = fmt.Sprintf("%s: all responses received", clue.TypeName)
			}
		}
		return *clue, true
	}
	return PurchasedClue{}, false
}

func clueContainsRequest(clueID, requestID string) bool {
	for _, part := range strings.Split(clueID, ",") {
		if part == requestID {
			return true
		}
	}
	return false
}

// ExpiredReveal describes one auto-reveal performed by the expiry sweep,
// so the transport layer knows which rooms to refresh.
type ExpiredReveal struct {
	GameID           string
	RequestingTeamID string
	TargetTeamID     string
}

// ExpireClueRequests sweeps pending requests past their deadline. Each
// one is marked expired, reported as "no response" in the buyer's
// history, and compensated with a free exact-location reveal of the
// target, read from the target's current location.
func (s *Service) ExpireClueRequests() []ExpiredReveal {
	now := s.now()
	var reveals []ExpiredReveal

	for _, req := range s.store.PendingClueRequests() {
		if !now.After(req.ExpiresAt) {
			continue
		}

		s.store.SetClueRequestStatus(req.ID, RequestExpired)
		s.store.resolveRequestInHistory(req.GameID, req.RequestingTeamID, req.ID, "No response")

		loc, targetName, err := s.store.TeamLocation(req.GameID, req.TargetTeamID)
		if err != nil || loc == nil {
			continue
		}

		s.store.AddClueToHistory(req.GameID, req.RequestingTeamID, PurchasedClue{
			ID:       uuid.NewString(),
			TypeID:   "exact-location",
			TypeName: "Exact Location (auto-revealed)",
			Cost:     0,
			Content: fmt.Sprintf("%s did not respond in time. Coordinates: %.6f, %.6f",
				targetName, loc.Latitude, loc.Longitude),
			HiderData: []HiderClueData{{
				TeamID:   req.TargetTeamID,
				TeamName: targetName,
				Content:  fmt.Sprintf("Coordinates: %.6f, %.6f", loc.Latitude, loc.Longitude),
			}},
			Timestamp: now,
		})

		reveals = append(reveals, ExpiredReveal{
			GameID:           req.GameID,
			RequestingTeamID: req.RequestingTeamID,
			TargetTeamID:     req.TargetTeamID,
		})
	}
	return reveals
}

// TeamLocation returns a copy of a team's last known location plus its
// name, under the read lock.
func (s *Store) TeamLocation(gameID, teamID string) (*Location, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[gameID]
	if !ok {
		return nil, "", ErrGameNotFound
	}
	t := g.TeamByID(teamID)
	if t == nil {
		return nil, "", errors.New("TEAM_NOT_FOUND: Team not found")
	}
	if t.Location == nil {
		return nil, t.Name, nil
	}
	loc := *t.Location
	return &loc, t.Name, nil
}
