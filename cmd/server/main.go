package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adivish/quickmeet/internal/config"
	"github.com/adivish/quickmeet/internal/database"
	"github.com/adivish/quickmeet/internal/handlers"
	"github.com/adivish/quickmeet/internal/repositories"
	"github.com/adivish/quickmeet/internal/services"
	"github.com/adivish/quickmeet/internal/videosdk"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := repositories.NewPostgresUserRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient)
	presenceRepo := repositories.NewRedisPresenceRepository(redisClient)

	// External call-hosting provider
	provider := videosdk.NewClient(cfg.VideoSDKAPIKey, cfg.VideoSDKSecret, cfg.VideoSDKAPIURL, cfg.VideoSDKEmbedURL)

	// Services
	authService := services.NewAuthService(userRepo, sessionRepo, presenceRepo, cfg.JWTSecret, cfg.JWTExpiry)
	presenceService := services.NewPresenceService(presenceRepo)
	callService := services.NewCallService(presenceRepo, provider, cfg.DashboardURL)

	handler := handlers.New(authService, presenceService, callService, presenceRepo, provider)

	// Initialize HTTP Server
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", handler.Health)
	router.Handle("/metrics", promhttp.Handler())

	router.Post("/auth/signup", handler.Signup)
	router.Post("/auth/login", handler.Login)

	router.Group(func(r chi.Router) {
		r.Use(handler.Authenticate)

		r.Post("/auth/logout", handler.Logout)
		r.Post("/auth/logout-all", handler.LogoutAll)

		r.Get("/api/video-token", handler.VideoToken)
		r.Get("/dashboard/candidates", handler.Candidates)

		r.Post("/calls/start", handler.StartCall)
		r.Post("/calls/accept", handler.AcceptCall)
		r.Post("/calls/decline", handler.DeclineCall)
		r.Post("/calls/leave", handler.LeaveCall)

		r.Get("/ws/signals", handler.Signals)
	})

	// Start Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
