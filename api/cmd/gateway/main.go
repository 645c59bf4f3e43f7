package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/app"
	"stemly-gateway/api/internal/config"
	"stemly-gateway/api/internal/handle"
	"stemly-gateway/api/internal/httpserver"
	"stemly-gateway/api/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()

	h := handle.New(deps(a))
	srv := httpserver.New(net.JoinHostPort("0.0.0.0", cfg.Port), h.Handler())
	log.WithFields(log.Fields{
		"llm":    cfg.LLMBackend,
		"chat":   cfg.ChatBackend,
		"vision": cfg.VisionBackend,
	}).Info("stemly gateway starting")
	if err := httpserver.Run(ctx, srv); err != nil {
		log.Fatalf("http: %v", err)
	}
}

// deps leaves store interfaces nil when the database is disabled.
func deps(a *app.App) handle.Deps {
	d := handle.Deps{
		Classifier: a.Classifier,
		Notes:      a.Notes,
		Quiz:       a.Quiz,
		Visualiser: a.Visualiser,
		Chat:       a.Chat,
		Images:     a.Images,
	}
	if a.DB != nil {
		d.DB = a.DB
		d.Scans = a.Scans
		d.NotesCache = a.NotesCache
		d.States = a.States
	}
	return d
}
