package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"buildForgeAPI/handlers"
	"buildForgeAPI/internal/docstore"
	"buildForgeAPI/middleware"
	"buildForgeAPI/services"

	_ "net/http/pprof"
)

var (
	store               *docstore.FirestoreStore
	reconcilerService   *services.ReconcilerService
	relationshipService *services.RelationshipService
	engagementService   *services.EngagementService
	buildService        *services.BuildService
	leaderboardService  *services.LeaderboardService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	projectID := os.Getenv("FIREBASE_PROJECT_ID")
	if projectID == "" {
		log.Fatal("FIREBASE_PROJECT_ID environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	store, err = docstore.NewFirestoreStore(ctx, projectID, "./serviceAccountKey.json")
	if err != nil {
		log.Fatal("Failed to initialize Firestore:", err)
	}

	log.Println("Successfully connected to Firestore")

	reconcilerService = services.NewReconcilerService(store)
	relationshipService = services.NewRelationshipService(store, reconcilerService)
	engagementService = services.NewEngagementService(store, reconcilerService)
	buildService = services.NewBuildService(store)
	leaderboardService = services.NewLeaderboardService(store)

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing Firestore client...")
		store.Close()
	}()

	// The sweeper heals pairs and counters left divergent by partial writes.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	reconcilerService.StartSweeper(sweepCtx, time.Minute)

	// Initialize handlers
	friendHandler := handlers.NewFriendHandler(relationshipService)
	buildHandler := handlers.NewBuildHandler(buildService, engagementService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)

	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()

	go middleware.CleanupVisitors()

	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		// A not-found read still proves the store answers.
		_, err := store.Get(ctx, "health/ping")
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "document store unreachable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "buildForge-api"}`))
	}).Methods("GET")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/builds/public", buildHandler.GetPublicBuilds).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user/friends", friendHandler.GetFriends).Methods("GET")
	protected.HandleFunc("/user/friends/requests", friendHandler.GetFriendRequests).Methods("GET")
	protected.HandleFunc("/user/friends/requests", friendHandler.SendFriendRequest).Methods("POST")
	protected.HandleFunc("/user/friends/requests/{memberId}/accept", friendHandler.AcceptFriendRequest).Methods("POST")
	protected.HandleFunc("/user/friends/requests/{memberId}/decline", friendHandler.DeclineFriendRequest).Methods("POST")

	protected.HandleFunc("/builds", buildHandler.CreateBuild).Methods("POST")
	protected.HandleFunc("/builds/{buildId}", buildHandler.GetBuild).Methods("GET")
	protected.HandleFunc("/builds/{buildId}/like", buildHandler.LikeBuild).Methods("POST")
	protected.HandleFunc("/builds/{buildId}/like", buildHandler.UnlikeBuild).Methods("DELETE")
	protected.HandleFunc("/builds/{buildId}/popularity", buildHandler.GetPopularity).Methods("GET")

	protected.HandleFunc("/leaderboard", leaderboardHandler.GetGlobalLeaderboard).Methods("GET")
	protected.HandleFunc("/leaderboard/score", leaderboardHandler.UpdateScore).Methods("PUT")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	sweepCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// One last pass so anything flagged during drain is not lost.
	reconcilerService.Sweep(shutdownCtx)

	log.Println("Server shutdown complete")
}
