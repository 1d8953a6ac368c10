package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"outreachai/internal/config"
	"outreachai/internal/gateway"
	"outreachai/internal/handler"
	"outreachai/internal/middleware"
	"outreachai/internal/service"
	"outreachai/internal/store"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Wire the store backend
	var (
		campaigns    store.CampaignStore
		users        store.UserStore
		suppressions store.SuppressionStore
		db           *sql.DB
		feedConn     *store.Connection
	)

	switch cfg.Store.Backend {
	case "postgres":
		// Connect to database
		db, err = sql.Open("postgres", cfg.GetDatabaseDSN())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		// Verify database connection
		if err := db.Ping(); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}
		log.Println("✅ Connected to database")

		// Connect to RabbitMQ for the change feed
		feedConn, err = store.NewConnection(cfg.GetRabbitMQURL())
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer feedConn.Close()
		log.Println("✅ Connected to RabbitMQ")

		feed, err := store.NewAMQPFeed(feedConn, store.DefaultExchange)
		if err != nil {
			log.Fatalf("Failed to set up change feed: %v", err)
		}

		campaigns = store.NewPostgresCampaignStore(db, feed)
		users = store.NewPostgresUserStore(db)
		suppressions = store.NewPostgresSuppressionStore(db)
	case "memory":
		log.Println("⚠️  Running with in-memory store (data is not persisted)")
		campaigns = store.NewMemoryCampaignStore(nil)
		users = store.NewMemoryUserStore()
		suppressions = store.NewMemorySuppressionStore()
	}

	// Engine gateway and health probe
	engine := gateway.NewWebhookGateway(cfg.EngineEndpoints())
	prober := gateway.NewProber(engine, cfg.ProbeInterval())
	prober.Start()
	defer prober.Stop()

	// Services
	sessions := service.NewSessionManager(campaigns, users, engine, prober)
	callbacks := service.NewEngineCallbacks(campaigns, users)
	unsubscribes := service.NewSuppressionService(suppressions)

	var feedChecker service.FeedChecker
	if feedConn != nil {
		feedChecker = feedConn
	}
	health := service.NewHealthChecker(db, feedChecker, prober, "1.0.0")

	// Handlers
	campaignHandler := handler.NewCampaignHandler(sessions)
	callbackHandler := handler.NewCallbackHandler(callbacks)
	unsubscribeHandler := handler.NewUnsubscribeHandler(unsubscribes)
	healthHandler := handler.NewHealthHandler(health)

	// Create router
	router := mux.NewRouter()
	router.Use(middleware.Recovery)

	router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")

	router.HandleFunc("/campaigns", campaignHandler.Launch).Methods("POST")
	router.HandleFunc("/campaigns", campaignHandler.List).Methods("GET")
	router.HandleFunc("/campaigns/drafts-ready", campaignHandler.DraftsReady).Methods("GET")
	router.HandleFunc("/campaigns/stats", campaignHandler.Stats).Methods("GET")
	router.HandleFunc("/campaigns/pending", campaignHandler.Pending).Methods("GET")
	router.HandleFunc("/campaigns/{id}", campaignHandler.Detail).Methods("GET")
	router.HandleFunc("/campaigns/{id}/drafts/{index}", campaignHandler.EditDraft).Methods("PATCH")
	router.HandleFunc("/campaigns/{id}/send", campaignHandler.Send).Methods("POST")
	router.HandleFunc("/campaigns/{id}/check-replies", campaignHandler.CheckReplies).Methods("POST")
	router.HandleFunc("/logout", campaignHandler.Logout).Methods("POST")

	router.HandleFunc("/unsubscribe", unsubscribeHandler.Unsubscribe).Methods("POST")
	router.HandleFunc("/unsubscribe/{email}", unsubscribeHandler.Check).Methods("GET")

	router.HandleFunc("/callbacks/drafts", callbackHandler.Drafts).Methods("POST")
	router.HandleFunc("/callbacks/progress", callbackHandler.Progress).Methods("POST")

	// Start server
	port := ":" + cfg.Server.Port
	server := &http.Server{
		Addr:    port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 API Server starting on port %s", port)
		log.Printf("📍 Health check: http://localhost%s/health", port)
		log.Printf("🌍 Environment: %s", cfg.Env)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	sessions.StopAll()
	prober.Stop()

	log.Println("✅ Server stopped")
}
