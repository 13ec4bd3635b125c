package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/database"
	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/internal/handlers"
	"github.com/soudorock6666/Pet-Shop/internal/imghost"
	"github.com/soudorock6666/Pet-Shop/internal/middleware"
	"github.com/soudorock6666/Pet-Shop/internal/services"
	"github.com/soudorock6666/Pet-Shop/pkg/config"
)

func main() {
	// Initialize logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().
		Str("env", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Msg("Starting pet shop gateway")

	// Initialize Redis
	redisDB, err := database.NewRedisDB(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisDB.Close()

	// Initialize upstream clients
	authClient := firebase.NewAuthClient(&cfg.Firebase)
	storeClient := firebase.NewFirestoreClient(&cfg.Firebase)
	imageClient := imghost.NewClient(&cfg.ImgBB)

	// Initialize services
	jwtService := services.NewJWTService(&cfg.JWT, redisDB)
	sessionService := services.NewSessionService(redisDB, authClient, cfg.JWT.RefreshExpiry)
	profileService := services.NewProfileService(storeClient)
	catalogService := services.NewCatalogService(storeClient, cfg.Catalog.WatchInterval)
	mutationService := services.NewMutationService(storeClient, imageClient)
	bootstrap := services.NewBootstrap(profileService)

	// Nobody is signed in at process start
	bootstrap.OnSignedOut()

	// Initialize handlers
	isProduction := cfg.Server.Environment == "production"
	authHandler := handlers.NewAuthHandler(authClient, jwtService, sessionService, profileService, bootstrap, isProduction)
	catalogHandler := handlers.NewCatalogHandler(catalogService, mutationService, sessionService)
	healthHandler := handlers.NewHealthHandler(redisDB)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisDB, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowDuration)
	requireAuth := middleware.JWTAuth(jwtService, sessionService)
	requireAdmin := middleware.RequireAdmin(sessionService, profileService)

	// Periodically refresh the active sessions gauge
	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if count, err := redisDB.CountSessions(metricsCtx); err == nil {
					middleware.SetActiveSessions(float64(count))
				}
			case <-metricsCtx.Done():
				return
			}
		}
	}()

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))

	// Health check endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", middleware.MetricsHandler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes
		r.Route("/auth", func(r chi.Router) {
			// Public endpoints (rate limited)
			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(60 * time.Second))
				r.Use(rateLimiter.Limit("auth"))
				r.Post("/login", authHandler.Login)
				r.Post("/register", authHandler.Register)
				r.Post("/refresh", authHandler.RefreshToken)
				r.Get("/state", authHandler.State)
			})

			// Shell state stream; no timeout, the connection is long-lived
			r.Get("/state/watch", authHandler.StateStream)

			// Protected endpoints (require JWT)
			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(60 * time.Second))
				r.Use(requireAuth)
				r.Get("/me", authHandler.Me)
				r.Put("/profile", authHandler.UpdateProfile)
				r.Post("/logout", authHandler.Logout)
				r.Post("/password", authHandler.ChangePassword)
				r.Get("/sessions", authHandler.ListSessions)
				r.Delete("/sessions/{id}", authHandler.RevokeSession)
				r.Post("/sessions/revoke-others", authHandler.RevokeOtherSessions)
			})
		})

		// Admin-only user management
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(60 * time.Second))
			r.Use(requireAuth)
			r.Use(requireAdmin)
			r.Post("/users/{uid}/promote", authHandler.PromoteUser)
		})

		// Catalog routes
		r.Route("/products", func(r chi.Router) {
			r.Use(requireAuth)

			// Long-lived snapshot stream, registered outside the timeout
			r.Get("/watch", catalogHandler.WatchProducts)

			// Reads for every authenticated user
			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(60 * time.Second))
				r.Get("/", catalogHandler.ListProducts)
				r.Get("/{id}", catalogHandler.GetProduct)
			})

			// Mutations re-verify the admin capability on every request
			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(60 * time.Second))
				r.Use(requireAdmin)
				r.Post("/", catalogHandler.CreateProduct)
				r.Put("/{id}", catalogHandler.UpdateProduct)
				r.Delete("/{id}", catalogHandler.DeleteProduct)
			})
		})
	})

	// Create HTTP server. WriteTimeout stays unset because the watch
	// endpoints hold their connections open indefinitely.
	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped gracefully")
}
