package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/voysta/game-services/configs"

	"github.com/voysta/game-services/internal/coordinator"
	"github.com/voysta/game-services/internal/db"
	"github.com/voysta/game-services/internal/economy"
	handlers "github.com/voysta/game-services/internal/gamesvc/handlers"
	"github.com/voysta/game-services/internal/rooms"
	"github.com/voysta/game-services/internal/session"
	"github.com/voysta/game-services/internal/socketsvc/routes"
	"github.com/voysta/game-services/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

func init() {
	instanceId := "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	// pg connection for the wallet ledger and room directory
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	eco := economy.NewLedgerGateway(dbpool)
	roomDir := rooms.NewPgDirectory(dbpool)

	registry, cleanup := buildRegistry()
	defer cleanup()

	// Initialize websocket transport; it is also the broadcast sink
	s := ws.NewWs(nil)
	coord := coordinator.New(registry, eco, s, coordinator.Config{
		EntryFee: envInt64("GAME_ENTRY_FEE", 10),
	})
	s.Coord = coord // set coordinator reference for websocket handler logic

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimit := int(envInt64("RATE_LIMIT", 300))
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	gameAPI := handlers.NewHandler(registry, roomDir, coord)
	gameAPI.InitAuth()

	routes.SetRoutes(r, s, gameAPI)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("SOCKET_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

// buildRegistry prefers the shared Mongo registry when configured and
// falls back to the in-memory one with a reaper.
func buildRegistry() (session.Registry, func()) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI != "" {
		mdb, cancel, err := db.ConnectMongo(mongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		reg, err := session.NewMongoRegistry(context.Background(), mdb, session.DefaultTTL)
		if err != nil {
			log.Fatalf("Failed to init mongo session registry: %v", err)
		}
		log.Printf("mongo session registry ready")
		return reg, func() { cancel() }
	}

	reg := session.NewMemoryRegistry(session.DefaultTTL, session.DefaultMaxEntries)
	ctx, cancel := context.WithCancel(context.Background())
	reg.StartReaper(ctx, session.DefaultReapEvery)
	return reg, cancel
}

func envInt64(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Fatalf("Invalid %s value: %v", key, err)
	}
	return v
}
