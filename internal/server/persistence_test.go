package server

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"

	"hideandseek-server/internal/game"
)

// setupTestDB opens an in-memory sqlite database with the migrations
// applied. One connection only: each sqlite :memory: connection is its
// own database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatalf("Failed to set goose dialect: %v", err)
	}
	if err := goose.Up(db, "../../db/migrations"); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	return db
}

func TestPersistence_SaveAndLoadGame(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	store := game.NewStore()
	g, err := store.CreateGame([]string{"Alpha", "Beta"}, "", 30)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	if err := pm.SaveGame(g); err != nil {
		t.Fatalf("SaveGame failed: %v", err)
	}

	loaded, err := pm.LoadGame(g.ID)
	if err != nil {
		t.Fatalf("LoadGame failed: %v", err)
	}

	assert.Equal(t, g.ID, loaded.ID)
	assert.Equal(t, g.Code, loaded.Code)
	assert.Equal(t, game.StatusWaiting, loaded.Status)
	assert.Equal(t, 30, loaded.RoundLengthMinutes)
	if assert.Len(t, loaded.Teams, 2) {
		assert.Equal(t, "Alpha", loaded.Teams[0].Name)
		assert.Equal(t, game.RoleSeeker, loaded.Teams[0].Role)
		assert.Equal(t, 10, loaded.Teams[0].Tokens)
	}
}

func TestPersistence_SaveGameUpserts(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	store := game.NewStore()
	svc := game.NewService(store)
	g, _ := store.CreateGame([]string{"Alpha", "Beta"}, "", 0)

	if err := pm.SaveGame(g); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	if _, err := svc.StartGame(g.ID); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if err := pm.SaveGame(g); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, err := pm.LoadGame(g.ID)
	if err != nil {
		t.Fatalf("LoadGame failed: %v", err)
	}
	assert.Equal(t, game.StatusActive, loaded.Status)
}

func TestPersistence_LoadGame_NotFound(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	_, err := pm.LoadGame("missing-id")
	assert.ErrorContains(t, err, "game not found")
}

func TestPersistence_LoadAllActiveGames_SkipsEnded(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	store := game.NewStore()
	svc := game.NewService(store)

	running, _ := store.CreateGame([]string{"Alpha", "Beta"}, "", 0)
	finished, _ := store.CreateGame([]string{"Gamma", "Delta"}, "", 0)
	svc.StartGame(finished.ID)
	svc.EndGame(finished.ID)

	pm.SaveGame(running)
	pm.SaveGame(finished)

	games, err := pm.LoadAllActiveGames()
	if err != nil {
		t.Fatalf("LoadAllActiveGames failed: %v", err)
	}

	if assert.Len(t, games, 1) {
		assert.Equal(t, running.ID, games[0].ID)
	}
}

func TestPersistence_DeleteGameFreesCode(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	store := game.NewStore()
	g, _ := store.CreateGame([]string{"Alpha", "Beta"}, "", 0)
	pm.SaveGame(g)
	pm.SaveGameCode(g.Code, true)

	if err := pm.DeleteGame(g.ID); err != nil {
		t.Fatalf("DeleteGame failed: %v", err)
	}

	_, err := pm.LoadGame(g.ID)
	assert.ErrorContains(t, err, "game not found")

	codes, err := pm.LoadUsedGameCodes()
	if err != nil {
		t.Fatalf("LoadUsedGameCodes failed: %v", err)
	}
	assert.False(t, codes[g.Code])
}

func TestPersistence_DeleteGame_NotFound(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	err := pm.DeleteGame("missing-id")
	assert.ErrorContains(t, err, "game not found")
}

func TestPersistence_GameCodeRoundTrip(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	pm.SaveGameCode("ABCDEF", true)
	pm.SaveGameCode("GHIJKL", false)
	// Flipping an existing code updates in place.
	pm.SaveGameCode("GHIJKL", true)

	codes, err := pm.LoadUsedGameCodes()
	if err != nil {
		t.Fatalf("LoadUsedGameCodes failed: %v", err)
	}
	assert.True(t, codes["ABCDEF"])
	assert.True(t, codes["GHIJKL"])
}

func TestPersistence_CleanupOldGames(t *testing.T) {
	db := setupTestDB(t)
	pm := NewPersistenceManager(db)

	store := game.NewStore()
	svc := game.NewService(store)

	old, _ := store.CreateGame([]string{"Alpha", "Beta"}, "", 0)
	svc.StartGame(old.ID)
	svc.EndGame(old.ID)
	pm.SaveGame(old)
	pm.SaveGameCode(old.Code, true)

	fresh, _ := store.CreateGame([]string{"Gamma", "Delta"}, "", 0)
	svc.StartGame(fresh.ID)
	svc.EndGame(fresh.ID)
	pm.SaveGame(fresh)

	// Age the first game's row past the retention window.
	stale := time.Now().Add(-48 * time.Hour)
	if _, err := db.Exec(`UPDATE games SET updated_at = ? WHERE id = ?`, stale, old.ID); err != nil {
		t.Fatalf("Failed to backdate game: %v", err)
	}

	deleted, err := pm.CleanupOldGames(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldGames failed: %v", err)
	}
	assert.Equal(t, 1, deleted)

	_, err = pm.LoadGame(old.ID)
	assert.ErrorContains(t, err, "game not found")
	if _, err := pm.LoadGame(fresh.ID); err != nil {
		t.Errorf("Recent ended game should survive cleanup: %v", err)
	}

	codes, _ := pm.LoadUsedGameCodes()
	assert.False(t, codes[old.Code])
}

func TestLoadPersistedState_RestoresGamesAndCodes(t *testing.T) {
	pm := NewPersistenceManager(setupTestDB(t))

	origin := game.NewStore()
	g, _ := origin.CreateGame([]string{"Alpha", "Beta"}, "", 0)
	pm.SaveGame(g)
	pm.SaveGameCode(g.Code, true)

	restored := game.NewStore()
	if err := loadPersistedState(pm, restored); err != nil {
		t.Fatalf("loadPersistedState failed: %v", err)
	}

	got, err := restored.GetGameByCode(g.Code)
	if err != nil {
		t.Fatalf("restored game not reachable by code: %v", err)
	}
	assert.Equal(t, g.ID, got.ID)
}
