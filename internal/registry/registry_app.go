package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clawdhub/clawdhub/internal/registry/api"
	"github.com/clawdhub/clawdhub/internal/registry/auth"
	"github.com/clawdhub/clawdhub/internal/registry/changelog"
	"github.com/clawdhub/clawdhub/internal/registry/config"
	"github.com/clawdhub/clawdhub/internal/registry/database"
	"github.com/clawdhub/clawdhub/internal/registry/embeddings"
	"github.com/clawdhub/clawdhub/internal/registry/ratelimit"
	"github.com/clawdhub/clawdhub/internal/registry/service"
	"github.com/clawdhub/clawdhub/internal/registry/storage"
)

// App wires the registry server from environment config and runs it until
// SIGINT/SIGTERM.
func App(_ context.Context) error {
	cfg := config.NewConfig()

	// Bounded context for the PostgreSQL connection attempt
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Database selection: DATABASE_URL="memory" runs the in-memory backend,
	// useful for local development and smoke tests. Everything else is a
	// Postgres connection string.
	var db database.Database
	if cfg.DatabaseURL == "memory" {
		log.Println("Using in-memory database (DATABASE_URL=memory)")
		db = database.NewMemory()
	} else {
		pg, err := database.NewPostgreSQL(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		db = pg
	}

	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		} else {
			log.Println("Database connection closed successfully")
		}
	}()

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	provider, err := embeddings.NewProvider(cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("failed to initialize embeddings provider: %w", err)
	}
	if provider == nil {
		log.Println("Semantic embeddings disabled; search falls back to exact matching")
	}

	summarizer := changelog.New(cfg.Changelog, cfg.Embeddings.OpenAIAPIKey, cfg.Embeddings.OpenAIBaseURL)

	dispatcher := service.NewDispatcher(cfg)
	registryService := service.NewRegistryService(db, store, provider, summarizer, dispatcher, cfg)

	authn := auth.NewAuthenticator(db)
	limiter := ratelimit.New()

	log.Printf("Starting clawdhub registry %s", cfg.Version)

	server := api.NewServer(cfg, registryService, authn, limiter)

	// Start server in a goroutine so it doesn't block signal handling
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()

	if err := server.Shutdown(sctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Let in-flight webhook deliveries drain before exiting.
	dispatcher.Wait()

	log.Println("Server exiting")
	return nil
}
