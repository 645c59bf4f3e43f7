// Package app assembles the services shared by the HTTP gateway and the
// Telegram bot.
package app

import (
	"context"
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/config"
	"stemly-gateway/api/internal/fallback"
	"stemly-gateway/api/internal/imagegen"
	"stemly-gateway/api/internal/store"
	"stemly-gateway/api/internal/tutor"
)

type App struct {
	Config *config.Config
	Bank   *fallback.Bank

	Classifier *tutor.Classifier
	Notes      *tutor.NotesService
	Quiz       *tutor.QuizService
	Visualiser *tutor.Visualiser
	Chat       *tutor.Chat
	Images     *imagegen.Client

	DB         *sql.DB
	Scans      *store.ScanRepo
	NotesCache *store.NotesRepo
	States     *store.VisualiserRepo
}

// New wires every feature. The database is optional: without DATABASE_URL
// the store fields stay nil.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	bank, err := loadBank(cfg.FallbackBankPath)
	if err != nil {
		return nil, err
	}

	engs := tutor.NewEngines(cfg, nil)
	text, err := engs.GetEngine(cfg.LLMBackend)
	if err != nil {
		return nil, err
	}
	chat, err := engs.GetEngine(cfg.ChatBackend)
	if err != nil {
		return nil, err
	}
	vision, err := engs.GetEngine(cfg.VisionBackend)
	if err != nil {
		return nil, err
	}
	for _, g := range []*tutor.Gateway{text, chat, vision} {
		if !g.Configured() {
			log.WithField("provider", g.Name()).Warn("no usable credential; features on this backend will serve fallback content")
		}
	}

	a := &App{
		Config:     cfg,
		Bank:       bank,
		Classifier: tutor.NewClassifier(text, vision, cfg.SystemFallbackKey),
		Notes:      tutor.NewNotesService(text, bank),
		Quiz:       tutor.NewQuizService(text, bank),
		Visualiser: tutor.NewVisualiser(chat),
		Chat:       tutor.NewChat(chat),
		Images:     imagegen.New(cfg.AIMLAPIKey, cfg.AIMLBaseURL, cfg.ImageModel),
	}

	if cfg.DatabaseURL != "" {
		db, err := OpenDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.DB = db
		a.Scans = store.NewScanRepo(db)
		a.NotesCache = store.NewNotesRepo(db)
		a.States = store.NewVisualiserRepo(db)
	} else {
		log.Info("DATABASE_URL is empty; history storage disabled")
	}
	return a, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func loadBank(path string) (*fallback.Bank, error) {
	if path == "" {
		return fallback.Default()
	}
	b, err := fallback.Load(path)
	if err != nil {
		return nil, fmt.Errorf("fallback bank %s: %w", path, err)
	}
	log.WithFields(log.Fields{"path": path, "buckets": b.Names()}).Info("fallback bank loaded")
	return b, nil
}
