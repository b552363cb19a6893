package main

import (
	"context"
	"log"
	"net/http"

	"chicken-hunt/internal/bus"
	"chicken-hunt/internal/config"
	"chicken-hunt/internal/db"
	"chicken-hunt/internal/server"
	"chicken-hunt/internal/venue"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	conn, err := db.Open()
	if err != nil {
		log.Printf("running without persistence: %v", err)
		conn = nil
	}
	if conn != nil {
		if err := db.ConfigurePool(conn, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeSeconds, cfg.DBConnMaxIdleTimeSeconds); err != nil {
			log.Fatalf("failed to configure db pool: %v", err)
		}
		if err := db.Migrate(conn); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
	}

	srv := server.New(conn, cfg)
	if cfg.VenueSearchURL != "" {
		srv.SetPlaceSearch(venue.NewHTTPClient(cfg.VenueSearchURL))
	}

	if conn != nil && cfg.BusListen {
		listener := bus.NewListener(cfg.DatabaseURL, srv.PublishChange)
		go listener.Run(context.Background())
	}

	addr := ":" + cfg.Port
	log.Printf("chicken-hunt server listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal(err)
	}
}
