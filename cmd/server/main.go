package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fairchain/internal/config"
	"fairchain/internal/db"
	"fairchain/internal/handlers"
	"fairchain/internal/services"
	"fairchain/internal/storage"
	"fairchain/internal/store"
	"fairchain/internal/websocket"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	users := store.NewUserStore(database)
	notifications := store.NewNotificationStore(database)
	tasks := store.NewTaskStore(database)
	codes := store.NewCodeStore(database)
	settings := store.NewSettingsStore(database)
	kyc := store.NewKycStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	uploader, err := storage.NewGCSUploader(context.Background(), cfg.KycBucket, cfg.KycCredentials)
	if err != nil {
		log.Fatalf("failed to create storage client: %v", err)
	}
	defer uploader.Close()

	service := services.NewSettlementService(txRunner, users, settings, notifications, tasks, codes, kyc, audit, hub)

	handler := handlers.New(txRunner, cfg, users, notifications, tasks, codes, settings, kyc, audit, service, uploader, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("fairchain API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
