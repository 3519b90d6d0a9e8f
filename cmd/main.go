package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"repoEventsCache/internal/archive"
	"repoEventsCache/internal/config"
	"repoEventsCache/internal/events"
	"repoEventsCache/internal/feed"
	"repoEventsCache/internal/handlers"
	"repoEventsCache/internal/logger"
	"repoEventsCache/internal/middleware"
	"repoEventsCache/internal/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	logger.InitLogger()
	defer logger.Lg.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Lg.Error("config load", zap.Error(err))
		os.Exit(1)
	}

	db, rdb, err := archive.Open(cfg.DBPath, cfg.RedisAddr)
	if err != nil {
		logger.Lg.Error("sql open", zap.Error(err))
		os.Exit(1)
	}
	if err := archive.CreateTable(db); err != nil { //ignores if already exists btw
		logger.Lg.Error("create table", zap.Error(err))
		os.Exit(1)
	}

	st := store.New(cfg.CacheFile())
	st.Load()

	arc := archive.New(db, rdb)
	client := feed.NewClient(cfg.FeedURL())
	refresher := feed.NewRefresher(client, st, arc)
	svc := events.NewService(st, arc, arc, refresher)

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go refresher.Run(ctx, wg, cfg.FetchInterval)

	app := fiber.New()
	app.Use(middleware.RequestLogger())
	h := handlers.NewHTTP(svc)

	// endpoints
	app.Get("/events/:id", h.GetEventById)
	app.Get("/events", h.GetEvents)
	app.Post("/refresh", h.Refresh)
	app.Get("/healthz", h.Healthz)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			logger.Lg.Info("Server stopped", zap.Error(err))
		}
	}()

	GracefulShutdown(app, cancel, wg, db)
	logger.Lg.Info("Shutdown complete")
}

func GracefulShutdown(app *fiber.App, cancel context.CancelFunc, wg *sync.WaitGroup, db *sql.DB) {
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	logger.Lg.Info("Shutdown sig rcv")
	cancel()
	if err := app.Shutdown(); err != nil {
		logger.Lg.Error("Server shutdown error", zap.Error(err))
	}
	wg.Wait()
	if err := db.Close(); err != nil {
		logger.Lg.Error("db close error", zap.Error(err))
	}
}
