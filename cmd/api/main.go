package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hideandseek-server/internal/server"
)

func gracefulShutdown(gameServer *server.Server, httpServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("Shutdown signal received, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// Why 30 seconds: enough to persist every running game, still a
	// responsive shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Save games before the listener goes away
	if err := gameServer.Shutdown(ctx); err != nil {
		log.Printf("Error during game server shutdown: %v", err)
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown with error: %v", err)
	}

	done <- true
}

func main() {
	gameServer, httpServer := server.NewServer()

	done := make(chan bool, 1)

	go gracefulShutdown(gameServer, httpServer, done)

	err := httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	log.Println("Graceful shutdown complete.")
}
