package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/pressly/goose/v3"

	"hideandseek-server/internal/database"
	"hideandseek-server/internal/game"
)

type Server struct {
	port        int
	db          database.Service
	store       *game.Store
	service     *game.Service
	hub         *ConnectionHub
	persistence *PersistenceManager
	rateLimiter *RateLimiter
	health      *ConnectionHealth
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	// Initialize database
	dbService := database.New()

	// Run migrations
	if err := runMigrations(dbService.DB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	persistence := NewPersistenceManager(dbService.DB())

	store := game.NewStore()
	service := game.NewService(store)

	// Load persisted state from database
	if err := loadPersistedState(persistence, store); err != nil {
		log.Printf("Warning: Failed to load persisted state: %v", err)
		// Don't fatal - allow server to start with empty state
	}

	srv := &Server{
		port:        port,
		db:          dbService,
		store:       store,
		service:     service,
		hub:         NewConnectionHub(),
		persistence: persistence,
		rateLimiter: NewRateLimiter(30, time.Second),
		health:      NewConnectionHealth(),
	}

	// Start background tasks
	go srv.hub.Heartbeat(context.Background())
	go srv.periodicSaveTask()
	go srv.cleanupTask()
	go srv.clueExpiryTask()
	go srv.roundTimerTask()

	return srv, &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Shutdown saves every game and closes the database. Runs before the
// HTTP listener shuts down so in-flight state survives a restart.
func (s *Server) Shutdown(ctx context.Context) error {
	savedCount := 0
	s.store.WithRLock(func(games map[string]*game.Game) {
		for _, g := range games {
			if err := s.persistence.SaveGame(g); err != nil {
				log.Printf("Shutdown save failed for game %s: %v", g.ID, err)
			} else {
				savedCount++
			}
		}
	})
	log.Printf("Shutdown: persisted %d games", savedCount)

	return s.db.Close()
}

// runMigrations applies database migrations using goose
func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect(database.GooseDialect()); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "./db/migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Println("Database migrations applied successfully")
	return nil
}

// loadPersistedState restores games and join codes from the database
func loadPersistedState(pm *PersistenceManager, store *game.Store) error {
	games, err := pm.LoadAllActiveGames()
	if err != nil {
		return fmt.Errorf("failed to load games: %w", err)
	}

	for _, g := range games {
		store.Restore(g)
		log.Printf("Restored game: %s (code %s, status %s)", g.ID, g.Code, g.Status)
	}

	usedCodes, err := pm.LoadUsedGameCodes()
	if err != nil {
		return fmt.Errorf("failed to load game codes: %w", err)
	}
	for code, inUse := range usedCodes {
		if inUse {
			store.ReserveCode(code)
		}
	}

	log.Printf("Loaded %d games, %d codes", len(games), len(usedCodes))
	return nil
}

// periodicSaveTask runs every 30 seconds and persists all games. Catches
// state the per-action saves missed (failed writes, clock-driven
// mutations).
// Why hold the read lock across the whole pass: releasing it mid-save
// would let a handler mutate a game while json.Marshal reads it.
func (s *Server) periodicSaveTask() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		savedCount := 0

		s.store.WithRLock(func(games map[string]*game.Game) {
			for _, g := range games {
				if err := s.persistence.SaveGame(g); err != nil {
					log.Printf("Periodic save failed for game %s: %v", g.ID, err)
				} else {
					savedCount++
				}
			}
		})

		log.Printf("Periodic save completed: %d games persisted", savedCount)
	}
}

// cleanupTask runs hourly and deletes ended games older than 24 hours.
// The window gives players time to review final standings.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		deleted, err := s.persistence.CleanupOldGames(24 * time.Hour)
		if err != nil {
			log.Printf("Cleanup task failed: %v", err)
			continue
		}

		if deleted > 0 {
			log.Printf("Cleanup task: deleted %d old ended games", deleted)
		}

		s.rateLimiter.Cleanup()
	}
}

// clueExpiryTask sweeps pending clue requests every 30 seconds. Expired
// requests auto-reveal the unresponsive hider, so the affected rooms
// need a fresh snapshot.
func (s *Server) clueExpiryTask() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		reveals := s.service.ExpireClueRequests()
		for _, reveal := range reveals {
			log.Printf("Clue request expired in game %s: revealed team %s to team %s",
				reveal.GameID, reveal.TargetTeamID, reveal.RequestingTeamID)
			s.broadcastGameUpdate(reveal.GameID)
		}
	}
}

// roundTimerTask enforces round time limits with a 5 second poll.
func (s *Server) roundTimerTask() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		for _, gameID := range s.service.EnforceRoundTimeLimits() {
			log.Printf("Round time limit reached, paused game %s", gameID)
			s.saveGame(gameID)
			s.broadcastGameUpdate(gameID)
		}
	}
}
