package game

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// cluePositions puts the seeker at the Rose Garden and hiders at known
// campus spots so distances are stable.
func cluePositions(t *testing.T, svc *Service, g *Game) {
	t.Helper()
	positions := [][2]float64{
		{49.2676, -123.2576}, // seeker: Rose Garden
		{49.2681, -123.2561}, // hider: Koerner Library
		{49.2663, -123.2492}, // hider: SUB
	}
	for i, team := range g.Teams {
		if i >= len(positions) {
			break
		}
		if _, err := svc.UpdateLocation(g.ID, team.ID, positions[i][0], positions[i][1], 10); err != nil {
			t.Fatalf("UpdateLocation failed: %v", err)
		}
	}
}

func TestPurchaseClue_ExactLocation(t *testing.T) {
	svc, clock, g := activeGame(t, "Alpha", "Beta")
	cluePositions(t, svc, g)

	updated, delivery, err := svc.PurchaseClue(g.ID, g.Teams[0].ID, "exact-location")
	if err != nil {
		t.Fatalf("PurchaseClue failed: %v", err)
	}

	assert.Equal(t, 0, updated.TeamByID(g.Teams[0].ID).Tokens) // cost 10
	assert.False(t, delivery.Clue.Pending)
	assert.Empty(t, delivery.Requests)
	assert.Equal(t, "Coordinates: 49.268100, -123.256100", delivery.Clue.Content)
	assert.Equal(t, clock.Now(), delivery.Clue.Timestamp)

	history := svc.Store().ClueHistoryForTeam(g.ID, g.Teams[0].ID)
	if assert.Len(t, history, 1) {
		assert.Equal(t, delivery.Clue.ID, history[0].ID)
	}
}

func TestPurchaseClue_Validation(t *testing.T) {
	svc, _ := newTestService()
	g := mustCreateGame(t, svc, "Alpha", "Beta")
	seeker, hider := g.Teams[0], g.Teams[1]

	_, _, err := svc.PurchaseClue(g.ID, seeker.ID, "made-up-type")
	assert.ErrorContains(t, err, "CLUE_TYPE_NOT_FOUND")

	_, _, err = svc.PurchaseClue(g.ID, seeker.ID, "distance")
	assert.ErrorContains(t, err, "GAME_NOT_ACTIVE")

	svc.StartGame(g.ID)

	_, _, err = svc.PurchaseClue(g.ID, hider.ID, "distance")
	assert.ErrorContains(t, err, "INVALID_ROLE")

	// Seeker has no location yet.
	_, _, err = svc.PurchaseClue(g.ID, seeker.ID, "distance")
	assert.ErrorContains(t, err, "LOCATION_UNKNOWN")

	cluePositions(t, svc, g)

	svc.Store().Update(g.ID, func(g *Game) error {
		g.TeamByID(seeker.ID).Tokens = 2
		return nil
	})
	_, _, err = svc.PurchaseClue(g.ID, seeker.ID, "distance")
	assert.ErrorContains(t, err, "INSUFFICIENT_TOKENS")
}

func TestPurchaseClue_FailedPurchaseKeepsTokens(t *testing.T) {
	svc, _, g := activeGame(t, "Alpha", "Beta")
	// Seeker has a location but the hider does not: no targets.
	svc.UpdateLocation(g.ID, g.Teams[0].ID, 49.2676, -123.2576, 10)

	_, _, err := svc.PurchaseClue(g.ID, g.Teams[0].ID, "distance")
	assert.ErrorContains(t, err, "NO_HIDERS_AVAILABLE")

	current, _ := svc.Store().GetGame(g.ID)
	assert.Equal(t, 10, current.TeamByID(g.Teams[0].ID).Tokens)
	assert.Empty(t, svc.Store().ClueHistoryForTeam(g.ID, g.Teams[0].ID))
}

func TestPurchaseClue_RangeFilterExcludesDistantHiders(t *testing.T) {
	svc, _, g := activeGame(t, "Alpha", "Beta", "Gamma")
	cluePositions(t, svc, g)
	// Move Gamma far off campus, outside every range-limited radius.
	svc.UpdateLocation(g.ID, g.Teams[2].ID, 49.8, -123.2, 10)

	// inside-outside is limited to 1000 m, so only Beta qualifies.
	_, delivery, err := svc.PurchaseClue(g.ID, g.Teams[0].ID, "inside-outside")
	if err != nil {
		t.Fatalf("PurchaseClue failed: %v", err)
	}

	if assert.Len(t, delivery.Clue.HiderData, 1) {
		assert.Equal(t, g.Teams[1].ID, delivery.Clue.HiderData[0].TeamID)
	}
}

func TestPurchaseClue_AllHidersOutOfRange(t *testing.T) {
	svc, _, g := activeGame(t, "Alpha", "Beta")
	svc.UpdateLocation(g.ID, g.Teams[0].ID, 49.2676, -123.2576, 10)
	svc.UpdateLocation(g.ID, g.Teams[1].ID, 49.8, -123.2, 10)

	_, _, err := svc.PurchaseClue(g.ID, g.Teams[0].ID, "closest-street")
	assert.ErrorContains(t, err, "NO_HIDERS_AVAILABLE")
}

func TestPurchaseClue_DistanceContentMatchesHaversine(t *testing.T) {
	svc, _, g := activeGame(t, "Alpha", "Beta")
	cluePositions(t, svc, g)

	_, delivery, err := svc.PurchaseClue(g.ID, g.Teams[0].ID, "distance")
	if err != nil {
		t.Fatalf("PurchaseClue failed: %v", err)
	}

	d := DistanceMeters(49.2676, -123.2576, 49.2681, -123.2561)
	expected := fmt.Sprintf("About %d minutes away on foot (%s)", WalkingTimeMinutes(d), FormatDistance(d))
	assert.Equal(t, expected, delivery.Clue.Content)
}

func TestPurchaseClue_RelativeDirection(t *testing.T) {
	svc, _, g := activeGame(t, "Alpha", "Beta")
	svc.UpdateLocation(g.ID, g.Teams[0].ID, 49.26, -123.25, 10)
	svc.UpdateLocation(g.ID, g.Teams[1].ID, 49.28, -123.25, 10)

	_, delivery, err := svc.PurchaseClue(g.ID, g.Teams[0].ID, "relative-direction")
	if err != nil {
		t.Fatalf("PurchaseClue failed: %v", err)
	}
	assert.Equal(t, "The hiders are to the north of you", delivery.Clue.Content)
}

func TestPurchaseClue_MultipleHidersAggregated(t *testing.T) {
	svc, _, g := activeGame(t, "Alpha", "Beta", "Gamma")
	cluePositions(t, svc, g)

	_, delivery, err := svc.PurchaseClue(g.ID, g.Teams[0].ID, "distance")
	if err != nil {
		t.Fatalf("PurchaseClue failed: %v", err)
	}

	assert.Len(t, delivery.Clue.HiderData, 2)
	assert.Contains(t, delivery.Clue.Content, "2 hider teams")
}

func TestPurchaseClue_ActionRequiredCreatesRequests(t *testing.T) {
	svc, clock, g := activeGame(t, "Alpha", "Beta", "Gamma")
	cluePositions(t, svc, g)

	_, delivery, err := svc.PurchaseClue(g.ID, g.Teams[0].ID, "team-selfie")
	if err != nil {
		t.Fatalf("PurchaseClue failed: %v", err)
	}

	assert.True(t, delivery.Clue.Pending)
	if assert.Len(t, delivery.Requests, 2) {
		req := delivery.Requests[0]
		assert.Equal(t, g.ID, req.GameID)
		assert.Equal(t, g.Teams[0].ID, req.RequestingTeamID)
		assert.Equal(t, "photo", req.ResponseType)
		assert.Equal(t, RequestPending, req.Status)
		assert.Equal(t, clock.Now().Add(10*time.Minute), req.ExpiresAt)
	}

	// The pending clue's ID joins its request IDs.
	parts := strings.Split(delivery.Clue.ID, ",")
	assert.Len(t, parts, 2)
	assert.Equal(t, delivery.Requests[0].ID, parts[0])
	assert.Equal(t, delivery.Requests[1].ID, parts[1])
}

func TestRespondToClueRequest(t *testing.T) {
	svc, _, g := activeGame(t, "Alpha", "Beta")
	cluePositions(t, svc, g)

	_, delivery, _ := svc.PurchaseClue(g.ID, g.Teams[0].ID, "closest-landmark")
	req := delivery.Requests[0]

	resp, err := svc.RespondToClueRequest(req.ID, "The big fountain")
	if err != nil {
		t.Fatalf("RespondToClueRequest failed: %v", err)
	}

	assert.Equal(t, g.ID, resp.GameID)
	assert.Equal(t, g.Teams[0].ID, resp.RequestingTeamID)
	assert.Equal(t, "The big fountain", resp.Response.Response)

	// Single-target clue resolves fully on the first answer.
	assert.False(t, resp.Clue.Pending)
	assert.Equal(t, "The big fountain", resp.Clue.Content)

	history := svc.Store().ClueHistoryForTeam(g.ID, g.Teams[0].ID)
	if assert.Len(t, history, 1) {
		assert.False(t, history[0].Pending)
	}
}

func TestRespondToClueRequest_PartialResolutionStaysPending(t *testing.T) {
	svc, _, g := activeGame(t, "Alpha", "Beta", "Gamma")
	cluePositions(t, svc, g)

	_, delivery, _ := svc.PurchaseClue(g.ID, g.Teams[0].ID, "team-selfie")

	resp, err := svc.RespondToClueRequest(delivery.Requests[0].ID, "photo-url-1")
	if err != nil {
		t.Fatalf("first response failed: %v", err)
	}
	assert.True(t, resp.Clue.Pending)

	resp, err = svc.RespondToClueRequest(delivery.Requests[1].ID, "photo-url-2")
	if err != nil {
		t.Fatalf("second response failed: %v", err)
	}
	assert.False(t, resp.Clue.Pending)
	assert.Contains(t, resp.Clue.Content, "all responses received")
}

func TestRespondToClueRequest_SecondAnswerRejected(t *testing.T) {
	svc, _, g := activeGame(t, "Alpha", "Beta")
	cluePositions(t, svc, g)

	_, delivery, _ := svc.PurchaseClue(g.ID, g.Teams[0].ID, "team-selfie")
	req := delivery.Requests[0]

	svc.RespondToClueRequest(req.ID, "first")
	_, err := svc.RespondToClueRequest(req.ID, "second")
	assert.ErrorContains(t, err, "INVALID_STATE")
}

func TestRespondToClueRequest_UnknownRequest(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.RespondToClueRequest("no-such-request", "hello")
	assert.ErrorContains(t, err, "REQUEST_NOT_FOUND")
}

func TestRespondToClueRequest_LazyExpiry(t *testing.T) {
	svc, clock, g := activeGame(t, "Alpha", "Beta")
	cluePositions(t, svc, g)

	_, delivery, _ := svc.PurchaseClue(g.ID, g.Teams[0].ID, "team-selfie")
	req := delivery.Requests[0]

	clock.Advance(11 * time.Minute)
	_, err := svc.RespondToClueRequest(req.ID, "too late")
	assert.ErrorContains(t, err, "REQUEST_EXPIRED")

	stored, ok := svc.Store().GetClueRequest(req.ID)
	if assert.True(t, ok) {
		assert.Equal(t, RequestExpired, stored.Status)
	}
}

func TestExpireClueRequests_AutoRevealsLocation(t *testing.T) {
	svc, clock, g := activeGame(t, "Alpha", "Beta")
	cluePositions(t, svc, g)

	_, delivery, _ := svc.PurchaseClue(g.ID, g.Teams[0].ID, "team-selfie")
	assert.True(t, delivery.Clue.Pending)

	clock.Advance(11 * time.Minute)
	reveals := svc.ExpireClueRequests()

	if assert.Len(t, reveals, 1) {
		assert.Equal(t, g.ID, reveals[0].GameID)
		assert.Equal(t, g.Teams[0].ID, reveals[0].RequestingTeamID)
		assert.Equal(t, g.Teams[1].ID, reveals[0].TargetTeamID)
	}

	history := svc.Store().ClueHistoryForTeam(g.ID, g.Teams[0].ID)
	if assert.Len(t, history, 2) {
		// The original clue reads "No response"...
		assert.False(t, history[0].Pending)
		assert.Equal(t, "No response", history[0].Content)
		// ...and the compensation clue is a free exact location.
		assert.Equal(t, "exact-location", history[1].TypeID)
		assert.Zero(t, history[1].Cost)
		assert.Contains(t, history[1].Content, "49.268100, -123.256100")
	}
}

func TestExpireClueRequests_LeavesFreshRequestsAlone(t *testing.T) {
	svc, clock, g := activeGame(t, "Alpha", "Beta")
	cluePositions(t, svc, g)

	svc.PurchaseClue(g.ID, g.Teams[0].ID, "team-selfie")

	clock.Advance(5 * time.Minute)
	assert.Empty(t, svc.ExpireClueRequests())
	assert.Len(t, svc.Store().PendingClueRequests(), 1)
}

func TestClueTypeCatalog_Lookup(t *testing.T) {
	ct := ClueTypeByID("exact-location")
	if assert.NotNil(t, ct) {
		assert.Equal(t, 10, ct.Cost)
		assert.Empty(t, ct.ResponseType)
	}

	ct = ClueTypeByID("closest-landmark")
	if assert.NotNil(t, ct) {
		assert.Equal(t, "text", ct.ResponseType)
	}

	assert.Nil(t, ClueTypeByID("nope"))
}
