package main

import (
	"context"
	"net/http"
	"time"

	"naskah/config"
	"naskah/config/database"
	"naskah/internal/auth"
	"naskah/internal/document/repository"
	"naskah/internal/editor"
	"naskah/pkg/logger"
	"naskah/router"
	"naskah/socket"
)

func main() {
	cfg, loaded := config.Load()
	logger.Init(cfg.LogLevel)
	defer logger.Log.Sync()
	if !loaded {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}
	if err := cfg.Validate(); err != nil {
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.Connect(ctx, cfg)
	cancel()
	if err != nil {
		logger.Sugar.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()

	var revocations *auth.RevocationStore
	if cfg.RedisURL != "" {
		revocations, err = auth.NewRevocationStore(cfg.RedisURL)
		if err != nil {
			logger.Sugar.Fatalf("Could not connect to Redis: %v", err)
		}
		defer revocations.Close()
		logger.Sugar.Info("Token revocation enabled")
	} else {
		logger.Sugar.Warn("REDIS_URL not set, logged-out tokens stay valid until they expire")
	}

	repo := repository.NewDocumentRepository(db)
	hub := socket.NewHub(&editor.Opener{
		Documents:     repo,
		Collaborators: repo,
		Directory:     repo,
		Clock:         editor.RealClock{},
		QuietPeriod:   cfg.QuietPeriod,
	})
	go hub.Run()

	handler := router.Setup(repo, hub, cfg, revocations, auth.NewRegistry())

	logger.Sugar.Infof("Go Backend listening on %s", cfg.Addr())
	if err := http.ListenAndServe(cfg.Addr(), handler); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
