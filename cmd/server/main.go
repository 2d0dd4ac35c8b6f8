package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codingconcepts/env"
	"github.com/golden-vcr/auth"
	"github.com/golden-vcr/server-common/db"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/deskit-live/livehost/internal/admin"
	"github.com/deskit-live/livehost/internal/admission"
	"github.com/deskit-live/livehost/internal/broadcast"
	"github.com/deskit-live/livehost/internal/health"
	"github.com/deskit-live/livehost/internal/lifecycle"
	"github.com/deskit-live/livehost/internal/presence"
	"github.com/deskit-live/livehost/internal/sse"
)

type Config struct {
	BindAddr   string `env:"BIND_ADDR"`
	ListenPort uint16 `env:"LISTEN_PORT" default:"5000"`

	AuthURL string `env:"AUTH_URL" default:"http://localhost:5002"`

	// When unset, viewer presence is tracked in-process
	RedisURL         string `env:"REDIS_URL"`
	ViewerTTLSeconds int    `env:"VIEWER_TTL_SECONDS" default:"90"`

	ReadyWindowPreStartMinutes int `env:"READY_WINDOW_PRE_START_MINUTES" default:"10"`
	ReadyWindowGraceMinutes    int `env:"READY_WINDOW_GRACE_MINUTES" default:"10"`

	DatabaseHost     string `env:"PGHOST" required:"true"`
	DatabasePort     int    `env:"PGPORT" required:"true"`
	DatabaseName     string `env:"PGDATABASE" required:"true"`
	DatabaseUser     string `env:"PGUSER" required:"true"`
	DatabasePassword string `env:"PGPASSWORD" required:"true"`
	DatabaseSslMode  string `env:"PGSSLMODE"`
}

func main() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("error loading .env file: %v", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	ctx, close := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM)
	defer close()

	// Connect to the database
	connectionString := db.FormatConnectionString(
		config.DatabaseHost,
		config.DatabasePort,
		config.DatabaseName,
		config.DatabaseUser,
		config.DatabasePassword,
		config.DatabaseSslMode,
	)
	sqlDb, err := sql.Open("postgres", connectionString)
	if err != nil {
		log.Fatalf("error opening database: %v", err)
	}
	defer sqlDb.Close()
	if err := sqlDb.Ping(); err != nil {
		log.Fatalf("error connecting to database: %v", err)
	}

	// Track viewer presence in Redis when configured, in-process otherwise
	var presenceStore presence.Store
	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			log.Fatalf("error parsing Redis URL: %v", err)
		}
		presenceStore = presence.NewRedisStore(redis.NewClient(opts))
	} else {
		fmt.Printf("REDIS_URL is not set; tracking viewer presence in-process\n")
		presenceStore = presence.NewMemoryStore()
	}
	tracker := presence.NewTracker(presenceStore, time.Duration(config.ViewerTTLSeconds)*time.Second)

	windows := lifecycle.Windows{
		PreStart: time.Duration(config.ReadyWindowPreStartMinutes) * time.Minute,
		Grace:    time.Duration(config.ReadyWindowGraceMinutes) * time.Minute,
	}
	store := broadcast.NewStore(sqlDb)
	controller := admission.NewController(admission.NewPostgresStore(sqlDb))

	// Stream effective-status changes to connected clients as the database reports
	// row changes
	events := make(chan sse.StatusEvent, 32)
	pql := pq.NewListener(connectionString, time.Second, 30*time.Second, nil)
	listener, err := broadcast.NewChangeListener(pql, windows, events)
	if err != nil {
		log.Fatalf("error initializing broadcast change listener: %v", err)
	}

	authClient, err := auth.NewClient(ctx, config.AuthURL)
	if err != nil {
		log.Fatalf("error initializing auth client: %v", err)
	}

	r := mux.NewRouter()
	r.Path("/").Methods("GET").Handler(health.NewServer(
		func(ctx context.Context) error { return sqlDb.PingContext(ctx) },
		presenceStore.Ping,
	))
	{
		broadcastsRouter := r.PathPrefix("/broadcasts").Subrouter()
		admission.NewServer(controller).RegisterRoutes(broadcastsRouter)
		broadcast.NewServer(store, tracker, windows).RegisterRoutes(broadcastsRouter)
		presence.NewServer(tracker).RegisterRoutes(broadcastsRouter)
	}
	{
		adminRouter := r.PathPrefix("/admin").Subrouter()
		admin.NewServer(store, windows).RegisterRoutes(authClient, adminRouter)
	}
	r.Path("/events/broadcasts").Methods("GET").Handler(sse.NewHandler(ctx, events))

	withCors := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
	})
	addr := fmt.Sprintf("%s:%d", config.BindAddr, config.ListenPort)
	server := &http.Server{Addr: addr, Handler: withCors.Handler(r)}

	fmt.Printf("Listening on %s...\n", addr)
	var wg errgroup.Group
	wg.Go(server.ListenAndServe)
	wg.Go(func() error {
		return listener.Run(ctx)
	})

	select {
	case <-ctx.Done():
		fmt.Printf("Received signal; closing server...\n")
		server.Shutdown(context.Background())
	}

	err = wg.Wait()
	if err == http.ErrServerClosed {
		fmt.Printf("Server closed.\n")
	} else {
		log.Fatalf("error running server: %v", err)
	}
}
