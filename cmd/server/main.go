package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ai-portraits-backend/internal/astria"
	"ai-portraits-backend/internal/config"
	"ai-portraits-backend/internal/database"
	"ai-portraits-backend/internal/handlers"
	"ai-portraits-backend/internal/middleware"
	"ai-portraits-backend/internal/resend"
	"ai-portraits-backend/internal/supabase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Provider clients, constructed once with credentials and bounded
	// timeouts
	astriaClient := astria.NewClient(cfg.AstriaAPIBaseURL, cfg.AstriaAPIKey)
	resendClient := resend.NewClient(cfg.ResendAPIBaseURL, cfg.ResendAPIKey)

	// Supabase clients
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	realtimeClient := supabase.NewRealtimeClient(supabaseClient.Supabase)

	// Database client for the order store
	var dbClient *supabase.DatabaseClient
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set. Order persistence and migrations will be unavailable.")
	} else {
		dbClient, err = supabase.NewDatabaseClient(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Failed to initialize database client: %v", err)
		} else {
			defer dbClient.Close()

			migrator, err := database.NewMigrator(cfg.DatabaseURL)
			if err != nil {
				log.Printf("Warning: Failed to initialize migrator: %v", err)
			} else {
				defer migrator.Close()
				if err := migrator.Run(); err != nil {
					log.Printf("Warning: Migration failed: %v", err)
				} else {
					log.Println("Migrations completed successfully")
				}
			}
		}
	}

	// Handlers. The interfaces tolerate a nil store; handlers answer 500
	// until the database is configured.
	var orderStore handlers.OrderStore
	if dbClient != nil {
		orderStore = dbClient
	}
	ordersHandler := handlers.NewOrdersHandler(astriaClient, orderStore, storageClient, realtimeClient, cfg.TrainingCallbackURL())
	callbacksHandler := handlers.NewCallbacksHandler(cfg, orderStore, astriaClient, resendClient, realtimeClient)

	// Setup router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	// Provider callbacks (no auth; correlation is by tune id and by the
	// per-prompt token in the URL)
	callbacks := router.Group("/api/v1/callbacks")
	callbacks.POST("/training", callbacksHandler.TrainingCompleted)
	callbacks.POST("/generation/:prompt_token", callbacksHandler.ImagesGenerated)

	// Order API (called by the checkout frontend)
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))
	api.POST("/orders", ordersHandler.CreateOrder)
	api.GET("/orders/:order_id", ordersHandler.GetOrder)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
