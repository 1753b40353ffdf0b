package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collab-editor/internal/api"
	"collab-editor/internal/auth"
	"collab-editor/internal/config"
	"collab-editor/internal/db"
	"collab-editor/internal/presence"
	"collab-editor/internal/repository"
	"collab-editor/internal/services"
	"collab-editor/internal/services/collaboration"
	"collab-editor/internal/telemetry"
)

/*
LEARNING: GRACEFUL SHUTDOWN PATTERN WITH OBSERVABILITY

This main function demonstrates:
1. Service initialization and dependency injection
2. Concurrent server and worker pool management
3. Distributed tracing with Jaeger
4. Graceful shutdown handling (listening for SIGINT/SIGTERM)
5. Proper resource cleanup order

Shutdown order matters: stop accepting HTTP, close the WebSockets, drain
the persistence queue, and only then close the stores.
*/

const serviceVersion = "1.0.0"

// documentStore is what both the persistence pipeline and the REST API need
type documentStore interface {
	services.DocumentRepository
	api.DocumentReader
}

func main() {
	log.Println("🚀 Starting collaborative editor server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Initialize Jaeger tracing
	// Learning: Do this FIRST so all operations are traced
	var tracingShutdown telemetry.ShutdownFunc = telemetry.Noop
	if cfg.TracingEnabled {
		tracingShutdown, err = telemetry.InitJaeger("collab-editor", serviceVersion, cfg.JaegerEndpoint)
		if err != nil {
			log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
			tracingShutdown = telemetry.Noop
		}
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	// Users always live in the relational database; documents follow DOCUMENT_STORE
	relational := *cfg
	if relational.DocumentStore == config.StoreMongo {
		relational.DocumentStore = config.StorePostgres
	}
	database, err := db.NewGorm(&relational)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	var docs documentStore
	if cfg.DocumentStore == config.StoreMongo {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoDB, err := db.NewMongo(ctx, cfg)
		cancel()
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}
		defer mongoDB.Close()
		docs = repository.NewMongoDocumentRepository(mongoDB.Database)
	} else {
		docs = repository.NewDocumentRepository(database.DB)
	}
	log.Printf("✓ Document store: %s", cfg.DocumentStore)

	userRepo := repository.NewUserRepository(database.DB)
	authService := auth.NewService(userRepo, cfg.JWTSecret, cfg.TokenTTL)

	// Initialize persistence service with worker pool
	// Learning: This creates the worker pool but doesn't start it yet
	persistence := services.NewPersistenceService(docs, cfg.PersistWorkers, cfg.PersistQueueSize, cfg.StoreTimeout)

	// Start the worker pool
	// Learning: This spawns goroutines that will process store calls concurrently
	persistence.Start()

	// Initialize WebSocket session manager for real-time collaboration
	sessionManager := collaboration.NewSessionManager(persistence, cfg.SendBufferSize)

	// Optional Redis presence mirror
	var presenceSource api.PresenceSource
	if cfg.RedisURL != "" {
		store, err := presence.NewRedisStore(cfg.RedisURL, cfg.InstanceID, cfg.PresenceTTL)
		if err != nil {
			log.Printf("⚠️  Failed to connect to Redis: %v (presence stays process-local)", err)
		} else {
			defer store.Close()
			sessionManager.SetPresenceMirror(store, cfg.PresenceTTL/2)
			presenceSource = store
			log.Printf("✓ Presence mirror enabled (instance %s)", cfg.InstanceID)
		}
	}

	sessionManager.Start()

	// Initialize WebSocket handler
	wsHandler := collaboration.NewWebSocketHandler(sessionManager, authService, cfg.AllowAnonymous)

	// Initialize handlers with dependency injection
	handler := api.NewHandler(docs, authService, sessionManager, persistence, presenceSource, wsHandler.HandleConnection)

	// Setup routes
	router := api.SetupRoutes(handler, cfg.StaticDir)

	// Configure HTTP server
	// Learning: No WriteTimeout - it would also cut long-lived WebSocket connections
	addr := cfg.Addr()
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start HTTP server in a goroutine
	// Learning: This allows us to handle shutdown signals concurrently
	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("📚 Endpoints:")
		log.Printf("   POST   /signup                      - Create account")
		log.Printf("   POST   /login                       - Get a token")
		log.Printf("   GET    /checkAuth                   - Verify a token")
		log.Printf("   (document and presence routes need Authorization: Bearer <token>)")
		log.Printf("   GET    /api/documents               - List documents")
		log.Printf("   GET    /api/documents/:id           - Get document")
		log.Printf("   GET    /api/documents/:id/presence  - Who is editing")
		log.Printf("   GET    /api/presence                - Documents being edited")
		log.Printf("   GET    /api/health                  - Health check")
		log.Printf("   GET    /ws?token=...                - Collaboration WebSocket")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	// Learning: This is the graceful shutdown pattern
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	// Shutdown HTTP server with timeout
	// Learning: Give the server 30 seconds to finish existing requests
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Shutdown WebSocket session manager
	// Learning: This closes all active WebSocket connections
	sessionManager.Shutdown()

	// Shutdown persistence service
	// Learning: This waits for queued writes to reach the store
	persistence.Shutdown()

	log.Println("✓ Server shutdown complete")
}
