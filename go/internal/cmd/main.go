package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := setupDatabase()
	if err != nil {
		log.Fatalf("Failed to setup database: %v", err)
	}
	defer database.Close()

	services, err := setupServices(config, database)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer services.Bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background workers: broadcast loop, bus consumer, deadline sweep.
	go services.ConnectionManager.Start(ctx)
	if err := services.EventConsumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start event consumer: %v", err)
	}
	go services.SelfPaced.RunDeadlineWatcher(ctx)

	server := setupServer(config, services)
	go func() {
		log.Printf("Quiz engine listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")
	cancel()
	services.Live.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
