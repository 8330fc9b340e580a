package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/josiah-roberts/muninn/internal/agent"
	"github.com/josiah-roberts/muninn/internal/audio"
	"github.com/josiah-roberts/muninn/internal/config"
	"github.com/josiah-roberts/muninn/internal/database"
	"github.com/josiah-roberts/muninn/internal/handler"
	"github.com/josiah-roberts/muninn/internal/journal"
	"github.com/josiah-roberts/muninn/internal/logger"
	"github.com/josiah-roberts/muninn/internal/markdown"
	"github.com/josiah-roberts/muninn/internal/pipeline"
	"github.com/josiah-roberts/muninn/internal/store"
	"github.com/josiah-roberts/muninn/internal/stt"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

type application struct {
	DB      *sql.DB
	Logger  *zap.Logger
	Config  *config.Config
	Store   *store.Store
	Handler *handler.Handler
}

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, _ := logger.New(cfg.Env)
	defer log.Sync()
	sugar := log.Sugar()
	sugar.Infof("config loaded, env=%s", cfg.Env)

	db, err := database.Open(cfg.DB.Path, cfg.DB.BusyTimeout)
	if err != nil {
		sugar.Fatal(err)
	}
	defer db.Close()

	audioStore, err := audio.NewFSStore(cfg.Storage.AudioDir)
	if err != nil {
		sugar.Fatal(err)
	}

	st := store.New(db)
	mirror := markdown.NewMirror(cfg.Storage.MarkdownDir, log)
	journalSvc := journal.NewService(st, mirror, audioStore, log)

	orchestrator := pipeline.NewOrchestrator(
		journalSvc,
		st,
		audioStore,
		stt.NewClient(cfg.STT),
		agent.NewClient(cfg.Agent),
		log,
		pipeline.Options{
			MaxUploadBytes:  cfg.Upload.MaxBytes,
			ChunkIdleWindow: cfg.Upload.ChunkIdleWindow,
		},
	)
	orchestrator.StartSweeper(ctx, time.Minute)

	app := &application{
		DB:     db,
		Logger: log,
		Config: cfg,
		Store:  st,
		Handler: &handler.Handler{
			Logger:   log,
			Store:    st,
			Journal:  journalSvc,
			Pipeline: orchestrator,
		},
	}

	if err := app.serve(); err != nil {
		sugar.Fatal(err)
	}
}
