package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hideandseek-server/internal/game"
)

// PersistenceManager snapshots game state to the database so a restart
// does not lose running games. The whole Game serializes to one JSON
// blob per row; the store stays authoritative and rows are only read
// back at startup.
type PersistenceManager struct {
	db *sql.DB
}

func NewPersistenceManager(db *sql.DB) *PersistenceManager {
	return &PersistenceManager{
		db: db,
	}
}

// SaveGame persists one game, upserting on its id.
func (pm *PersistenceManager) SaveGame(g *game.Game) error {
	gameData, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to serialize game: %w", err)
	}
	return pm.SaveGameSnapshot(g.ID, g.Code, string(g.Status), gameData, g.CreatedAt, g.UpdatedAt)
}

// SaveGameSnapshot persists a pre-marshaled snapshot. Handlers use this
// so the bytes written match the bytes broadcast.
func (pm *PersistenceManager) SaveGameSnapshot(id, code, status string, gameData json.RawMessage, createdAt, updatedAt time.Time) error {
	query := `
		INSERT INTO games (id, code, status, game_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			status = excluded.status,
			game_data = excluded.game_data,
			updated_at = excluded.updated_at
	`

	_, err := pm.db.Exec(query, id, code, status, string(gameData), createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", id, err)
	}

	return nil
}

// LoadGame retrieves a game by id.
func (pm *PersistenceManager) LoadGame(id string) (*game.Game, error) {
	query := `SELECT game_data FROM games WHERE id = ?`

	var gameData string
	err := pm.db.QueryRow(query, id).Scan(&gameData)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("game not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}

	var g game.Game
	if err := json.Unmarshal([]byte(gameData), &g); err != nil {
		return nil, fmt.Errorf("failed to deserialize game %s: %w", id, err)
	}

	return &g, nil
}

// LoadAllActiveGames retrieves every game that has not ended. Used on
// server startup to restore in-memory state.
func (pm *PersistenceManager) LoadAllActiveGames() ([]*game.Game, error) {
	query := `
		SELECT game_data FROM games
		WHERE status != ?
		ORDER BY updated_at DESC
	`

	rows, err := pm.db.Query(query, string(game.StatusEnded))
	if err != nil {
		return nil, fmt.Errorf("failed to query active games: %w", err)
	}
	defer rows.Close()

	var games []*game.Game
	for rows.Next() {
		var gameData string
		if err := rows.Scan(&gameData); err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}

		var g game.Game
		if err := json.Unmarshal([]byte(gameData), &g); err != nil {
			// Log the error but continue with other games
			fmt.Printf("Warning: failed to deserialize game: %v\n", err)
			continue
		}

		games = append(games, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game rows: %w", err)
	}

	return games, nil
}

// DeleteGame removes a game row and frees its code for reuse.
func (pm *PersistenceManager) DeleteGame(id string) error {
	var code string
	if err := pm.db.QueryRow(`SELECT code FROM games WHERE id = ?`, id).Scan(&code); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("game not found: %s", id)
		}
		return fmt.Errorf("failed to look up game %s: %w", id, err)
	}

	if _, err := pm.db.Exec(`DELETE FROM games WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete game %s: %w", id, err)
	}

	// Why: prevents code exhaustion over time
	if err := pm.SaveGameCode(code, false); err != nil {
		fmt.Printf("Warning: failed to mark game code %s as unused: %v\n", code, err)
	}

	return nil
}

// SaveGameCode marks a join code as in use or free.
func (pm *PersistenceManager) SaveGameCode(code string, inUse bool) error {
	query := `
		INSERT INTO game_codes (code, in_use, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET in_use = excluded.in_use
	`

	_, err := pm.db.Exec(query, code, inUse, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save game code %s: %w", code, err)
	}

	return nil
}

// LoadUsedGameCodes retrieves all join codes and their in-use flags.
// Used on server startup to seed the code generator.
func (pm *PersistenceManager) LoadUsedGameCodes() (map[string]bool, error) {
	query := `SELECT code, in_use FROM game_codes`

	rows, err := pm.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query game codes: %w", err)
	}
	defer rows.Close()

	usedCodes := make(map[string]bool)
	for rows.Next() {
		var code string
		var inUse bool
		if err := rows.Scan(&code, &inUse); err != nil {
			return nil, fmt.Errorf("failed to scan game code row: %w", err)
		}
		usedCodes[code] = inUse
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game code rows: %w", err)
	}

	return usedCodes, nil
}

// CleanupOldGames deletes ended games older than the given duration and
// frees their codes.
func (pm *PersistenceManager) CleanupOldGames(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	selectQuery := `SELECT code FROM games WHERE status = ? AND updated_at < ?`
	rows, err := pm.db.Query(selectQuery, string(game.StatusEnded), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to query old games: %w", err)
	}

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan game code: %w", err)
		}
		codes = append(codes, code)
	}
	rows.Close()

	deleteQuery := `DELETE FROM games WHERE status = ? AND updated_at < ?`
	result, err := pm.db.Exec(deleteQuery, string(game.StatusEnded), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old games: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check cleanup result: %w", err)
	}

	for _, code := range codes {
		if err := pm.SaveGameCode(code, false); err != nil {
			// Log but continue - don't fail cleanup because of a code update
			fmt.Printf("Warning: failed to mark game code %s as unused: %v\n", code, err)
		}
	}

	return int(rowsAffected), nil
}
