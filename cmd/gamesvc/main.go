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
	"github.com/voysta/game-services/internal/gamesvc/broker"
	handlers "github.com/voysta/game-services/internal/gamesvc/handlers"
	natscli "github.com/voysta/game-services/internal/nats"
	"github.com/voysta/game-services/internal/rooms"
	"github.com/voysta/game-services/internal/session"
)

const SERVICE_NAME = "game"

func init() {
	instanceId := "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	// pg connection
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

	// Connect to NATS
	n, err := natscli.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Initialize the data-channel broker; it is also the broadcast sink
	b := broker.NewBroker(n.Conn, nil)
	coord := coordinator.New(registry, eco, b, coordinator.Config{
		EntryFee: envInt64("GAME_ENTRY_FEE", 10),
	})
	b.Coord = coord // set coordinator reference for broker dispatch

	// consume client events relayed from the media service
	sub, err := b.QueueSubscribeIngress("gamesvc")
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(0)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	rateLimit := int(envInt64("RATE_LIMIT", 300))
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	h := handlers.NewHandler(registry, roomDir, coord)
	h.InitAuth()
	h.SetRoutes(r)

	server := &http.Server{
		Addr:         ":" + os.Getenv("SERVICE_PORT"),
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

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

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
