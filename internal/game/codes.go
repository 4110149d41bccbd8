package game

import (
	"errors"
	"math/rand"
	"strings"
)

// GenerateGameCode returns a 6-letter uppercase code not present in
// usedCodes. Retries until it finds a free one; with 26^6 combinations
// collisions are rare at any realistic game count.
func GenerateGameCode(usedCodes map[string]bool) string {
	for {
		code := make([]byte, 6)
		for i := range code {
			code[i] = 'A' + byte(rand.Intn(26))
		}
		gameCode := string(code)

		if !usedCodes[gameCode] {
			return gameCode
		}
	}
}

func ValidateGameCode(code string) error {
	if len(code) != 6 {
		return errors.New("Game code must be exactly 6 characters")
	}

	code = strings.ToUpper(code)
	for _, ch := range code {
		if ch < 'A' || ch > 'Z' {
			return errors.New("Game code must contain only letters A-Z")
		}
	}

	return nil
}

func NormalizeGameCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
