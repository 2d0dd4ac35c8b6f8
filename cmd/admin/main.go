package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/codingconcepts/env"
	"github.com/golden-vcr/server-common/db"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/deskit-live/livehost/internal/broadcast"
	"github.com/deskit-live/livehost/internal/lifecycle"
)

type Config struct {
	DatabaseHost     string `env:"PGHOST" required:"true"`
	DatabasePort     int    `env:"PGPORT" required:"true"`
	DatabaseName     string `env:"PGDATABASE" required:"true"`
	DatabaseUser     string `env:"PGUSER" required:"true"`
	DatabasePassword string `env:"PGPASSWORD" required:"true"`
	DatabaseSslMode  string `env:"PGSSLMODE"`
}

// Operator CLI for administrative broadcast maintenance:
//
//	admin list
//	admin stop <broadcast-id> <reason>
//	admin set-visibility <broadcast-id> public|private
func main() {
	// Initialize config from environment vars
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("error loading .env file: %v", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	// Construct a postgres connection string from our config
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

	// Verify that we can connect to the database
	if err := sqlDb.Ping(); err != nil {
		log.Fatalf("error connecting to database: %v", err)
	}

	ctx := context.Background()
	store := broadcast.NewStore(sqlDb)

	if len(os.Args) < 2 || os.Args[1] == "list" {
		listBroadcasts(ctx, store)
		return
	}

	switch os.Args[1] {
	case "stop":
		if len(os.Args) < 4 {
			log.Fatalf("usage: admin stop <broadcast-id> <reason>")
		}
		id := parseBroadcastId(os.Args[2])
		if err := store.RecordBroadcastStop(ctx, id, os.Args[3], time.Now()); err != nil {
			log.Fatalf("error stopping broadcast: %v", err)
		}
		fmt.Printf("stopped broadcast %s\n", id)
	case "set-visibility":
		if len(os.Args) < 4 {
			log.Fatalf("usage: admin set-visibility <broadcast-id> public|private")
		}
		id := parseBroadcastId(os.Args[2])
		setVisibility(ctx, store, id, os.Args[3])
	default:
		log.Fatalf("unrecognized command '%s'", os.Args[1])
	}
}

func listBroadcasts(ctx context.Context, store *broadcast.Store) {
	rows, err := store.ListBroadcasts(ctx)
	if err != nil {
		log.Fatalf("error listing broadcasts: %v", err)
	}
	now := time.Now()
	for _, row := range rows {
		status := lifecycle.DefaultWindows.Resolve(lifecycle.Inputs{
			Stored:      lifecycle.ParseStatus(row.Status),
			ScheduledAt: nullableTime(row.ScheduledAt),
			StartAt:     nullableTime(row.StartAt),
			EndAt:       nullableTime(row.EndAt),
		}, now)
		scheduled := "<n/a>"
		if row.ScheduledAt.Valid {
			scheduled = row.ScheduledAt.Time.Format(time.RFC3339)
		}
		fmt.Printf("%s  %-8s  %s  %s (%s)\n", row.Id, status, scheduled, row.Title, row.SellerId)
	}
}

func setVisibility(ctx context.Context, store *broadcast.Store, id uuid.UUID, value string) {
	var vis lifecycle.Visibility
	switch value {
	case "public":
		vis = lifecycle.VisibilityPublic
	case "private":
		vis = lifecycle.VisibilityPrivate
	default:
		log.Fatalf("visibility must be 'public' or 'private'")
	}

	row, err := store.GetBroadcastById(ctx, id)
	if err != nil {
		log.Fatalf("error getting broadcast: %v", err)
	}
	status := lifecycle.DefaultWindows.Resolve(lifecycle.Inputs{
		Stored:      lifecycle.ParseStatus(row.Status),
		ScheduledAt: nullableTime(row.ScheduledAt),
		StartAt:     nullableTime(row.StartAt),
		EndAt:       nullableTime(row.EndAt),
	}, time.Now())
	if !lifecycle.IsTerminal(status) {
		log.Fatalf("broadcast %s has no recording to manage (status %s)", id, status)
	}

	status, vis, adminLock := lifecycle.NormalizeVisibility(status, vis, row.AdminLock)
	if err := store.UpdateVodVisibility(ctx, id, string(status), string(vis), adminLock); err != nil {
		log.Fatalf("error updating visibility: %v", err)
	}
	fmt.Printf("broadcast %s: status=%s visibility=%s adminLock=%t\n", id, status, vis, adminLock)
}

func parseBroadcastId(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		log.Fatalf("broadcast ID must be a UUID: %v", err)
	}
	return id
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
