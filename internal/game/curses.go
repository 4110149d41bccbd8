package game

import (
	"errors"
	"time"
)

// ApplyCurse lets a seeker inflict a random curse on a hider. Validation
// runs in full before any state is touched: role checks, a flat 10-token
// cost, and a target that is not already under an unexpired, uncompleted
// curse. Curse selection avoids repeats per target until the catalog is
// exhausted, then the history resets.
func (s *Service) ApplyCurse(gameID, seekerID, targetID string) (*Game, *ActiveCurse, error) {
	var applied *ActiveCurse

	g, err := s.store.Update(gameID, func(g *Game) error {
		if err := requireActive(g); err != nil {
			return err
		}
		seeker, err := findTeam(g, seekerID)
		if err != nil {
			return err
		}
		target, err := findTeam(g, targetID)
		if err != nil {
			return err
		}

		if seeker.Role != RoleSeeker {
			return errors.New("INVALID_ROLE: Only seekers can apply curses")
		}
		if target.Role != RoleHider {
			return errors.New("NO_VALID_TARGETS: Target is not a hider")
		}
		if seeker.Tokens < curseCost {
			return errors.New("INSUFFICIENT_TOKENS: Applying a curse costs 10 tokens")
		}

		now := s.now()
		if target.HasUnexpiredCurse(now) {
			return errors.New("NO_VALID_TARGETS: Target already has an active curse")
		}

		curse := s.randomCurseFor(target)

		duration := time.Duration(curse.TimeSeconds) * time.Second
		if curse.TimeSeconds <= 0 {
			duration = time.Duration(curse.TokenCount) * time.Minute
		}

		active := ActiveCurse{
			Curse:     curse,
			AppliedAt: now,
			ExpiresAt: now.Add(duration),
		}
		target.ActiveCurses = append(target.ActiveCurses, active)
		target.CompletedCurses = append(target.CompletedCurses, curse.ID)

		seeker.Tokens -= curseCost
		seeker.AppliedCurses = append(seeker.AppliedCurses, AppliedCurse{
			CurseID:        curse.ID,
			Title:          curse.Title,
			TargetTeamID:   target.ID,
			TargetTeamName: target.Name,
			AppliedAt:      now,
		})

		// active is a local value appended by copy above, so the caller
		// gets a curse detached from the target's live slice.
		applied = &active
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return g, applied, nil
}

// randomCurseFor picks uniformly from curses the target has not seen
// this game. When the whole catalog has been used the history resets.
func (s *Service) randomCurseFor(target *Team) Curse {
	seen := make(map[string]bool, len(target.CompletedCurses))
	for _, id := range target.CompletedCurses {
		seen[id] = true
	}

	var available []Curse
	for _, c := range CurseCatalog {
		if !seen[c.ID] {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		target.CompletedCurses = []string{}
		available = append(available, CurseCatalog...)
	}

	return available[s.intn(len(available))]
}

// AcknowledgeCurse marks the hider's newest matching curse as seen.
// Informational only; seekers watch for it in the broadcast state.
func (s *Service) AcknowledgeCurse(gameID, teamID, curseID string) (*Game, error) {
	return s.store.Update(gameID, func(g *Game) error {
		t, err := findTeam(g, teamID)
		if err != nil {
			return err
		}
		for i := range t.ActiveCurses {
			if t.ActiveCurses[i].ID == curseID && !t.ActiveCurses[i].Acknowledged {
				t.ActiveCurses[i].Acknowledged = true
				return nil
			}
		}
		return errors.New("CURSE_NOT_FOUND: No matching active curse")
	})
}

// CompleteCurse marks a curse done, waiving its round-end penalty.
func (s *Service) CompleteCurse(gameID, teamID, curseID string) (*Game, error) {
	return s.store.Update(gameID, func(g *Game) error {
		t, err := findTeam(g, teamID)
		if err != nil {
			return err
		}
		for i := range t.ActiveCurses {
			if t.ActiveCurses[i].ID == curseID && !t.ActiveCurses[i].Completed {
				now := s.now()
				t.ActiveCurses[i].Completed = true
				t.ActiveCurses[i].CompletedAt = &now
				return nil
			}
		}
		return errors.New("CURSE_NOT_FOUND: No matching active curse")
	})
}
