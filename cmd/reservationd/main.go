package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"makerspace-reservation-backend/config"
	"makerspace-reservation-backend/internal/api"
	"makerspace-reservation-backend/internal/db"
	"makerspace-reservation-backend/internal/reservation"
	"makerspace-reservation-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "reservationd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	appStore := store.NewGormStore(gormDB)

	service := reservation.NewService(appStore, reservation.Config{
		HorizonDays:       cfg.Reservation.HorizonDays,
		Location:          cfg.Reservation.Location,
		SlotSearchMaxDays: cfg.Reservation.SlotSearchMaxDays,
		Grace:             time.Duration(cfg.Reservation.GraceMinutes) * time.Minute,
	}, nil)
	logger.Printf("reservation service ready (horizon %d days, timezone %s)",
		cfg.Reservation.HorizonDays, cfg.Reservation.Timezone)

	router := api.NewRouter(appStore, service, api.RouterOptions{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
