package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VetoActiveError carries the remaining cooldown so the HTTP layer can
// return it as a retry hint.
type VetoActiveError struct {
	RemainingSeconds int
}

func (e *VetoActiveError) Error() string {
	return fmt.Sprintf("VETO_ACTIVE: Cannot draw for another %d seconds", e.RemainingSeconds)
}

// DrawChallenge deals a uniform-random card from the challenges the team
// has not yet completed. A team holds at most one undecided challenge;
// an in-progress challenge blocks drawing regardless of veto state.
func (s *Service) DrawChallenge(gameID, teamID string) (*Game, *ActiveChallenge, error) {
	var drawn *ActiveChallenge

	g, err := s.store.Update(gameID, func(g *Game) error {
		if err := requireActive(g); err != nil {
			return err
		}
		t, err := findTeam(g, teamID)
		if err != nil {
			return err
		}

		if t.ActiveChallenge != nil {
			return errors.New("CHALLENGE_IN_PROGRESS: Complete or veto your current challenge first")
		}

		now := s.now()
		if t.VetoEndTime != nil && now.Before(*t.VetoEndTime) {
			remaining := int(t.VetoEndTime.Sub(now).Seconds())
			if remaining < 1 {
				remaining = 1
			}
			return &VetoActiveError{RemainingSeconds: remaining}
		}

		pool := remainingChallenges(t)
		if len(pool) == 0 {
			return errors.New("NO_CARDS_AVAILABLE: Every challenge has been completed")
		}

		card := pool[s.intn(len(pool))]
		t.ActiveChallenge = &ActiveChallenge{Challenge: card, DrawnAt: now}

		// Hand back a copy so callers can marshal it after the lock is
		// released, while the live card gets completed or vetoed.
		dealt := *t.ActiveChallenge
		drawn = &dealt
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return g, drawn, nil
}

func remainingChallenges(t *Team) []Challenge {
	completed := make(map[string]bool, len(t.CompletedChallenges))
	for _, c := range t.CompletedChallenges {
		completed[c.Title] = true
	}

	var pool []Challenge
	for _, c := range ChallengeCatalog {
		if !completed[c.Title] {
			pool = append(pool, c)
		}
	}
	return pool
}

// CompleteChallenge awards tokens for the team's active challenge. The
// title must match the in-flight card; a second completion attempt fails
// because the first one cleared it. Returns the tokens awarded and the
// team's balance as of this completion, both read inside the critical
// section so they always agree.
func (s *Service) CompleteChallenge(gameID, teamID, challengeTitle string, customTokens *int) (*Game, int, int, error) {
	var awarded, total int

	g, err := s.store.Update(gameID, func(g *Game) error {
		if err := requireActive(g); err != nil {
			return err
		}
		t, err := findTeam(g, teamID)
		if err != nil {
			return err
		}

		if t.ActiveChallenge == nil || t.ActiveChallenge.Title != challengeTitle {
			return errors.New("CHALLENGE_NOT_FOUND: No matching active challenge")
		}
		if customTokens != nil && *customTokens < 0 {
			return errors.New("INVALID_INPUT: Custom tokens must not be negative")
		}

		tokens, err := s.tokenAward(t.ActiveChallenge.Tokens, customTokens)
		if err != nil {
			return err
		}

		t.CompletedChallenges = append(t.CompletedChallenges, CompletedChallenge{
			Title:       t.ActiveChallenge.Title,
			Tokens:      tokens,
			CompletedAt: s.now(),
		})
		t.ActiveChallenge = nil
		t.Tokens += tokens
		awarded = tokens
		total = t.Tokens
		return nil
	})
	if err != nil {
		return nil, 0, 0, err
	}
	return g, awarded, total, nil
}

// tokenAward parses a card's token spec: a plain number, "Variable"
// (caller-supplied count, dice roll when absent), or a dice multiplier
// like "2 x Dice roll".
func (s *Service) tokenAward(spec string, customTokens *int) (int, error) {
	spec = strings.TrimSpace(spec)

	if n, err := strconv.Atoi(spec); err == nil {
		return n, nil
	}

	if strings.EqualFold(spec, "Variable") {
		if customTokens != nil {
			return *customTokens, nil
		}
		return s.rollDice(), nil
	}

	if idx := strings.Index(spec, " x Dice roll"); idx > 0 {
		multiplier, err := strconv.Atoi(strings.TrimSpace(spec[:idx]))
		if err != nil {
			return 0, fmt.Errorf("INVALID_INPUT: Unparseable token spec %q", spec)
		}
		return multiplier * s.rollDice(), nil
	}

	return 0, fmt.Errorf("INVALID_INPUT: Unparseable token spec %q", spec)
}

func (s *Service) rollDice() int {
	return s.intn(6) + 1
}

// VetoChallenge discards the active challenge without reward and locks
// the deck for five minutes.
func (s *Service) VetoChallenge(gameID, teamID string) (*Game, error) {
	return s.store.Update(gameID, func(g *Game) error {
		if err := requireActive(g); err != nil {
			return err
		}
		t, err := findTeam(g, teamID)
		if err != nil {
			return err
		}
		if t.ActiveChallenge == nil {
			return errors.New("INVALID_STATE: No active challenge to veto")
		}

		t.ActiveChallenge = nil
		vetoEnd := s.now().Add(vetoPenaltyMinutes * time.Minute)
		t.VetoEndTime = &vetoEnd
		return nil
	})
}
