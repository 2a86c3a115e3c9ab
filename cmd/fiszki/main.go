package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mzalewski/fiszki/internal/bootstrap"
	"github.com/mzalewski/fiszki/internal/catalog"
	"github.com/mzalewski/fiszki/internal/config"
	"github.com/mzalewski/fiszki/internal/session"
	"github.com/mzalewski/fiszki/internal/storage"
	"github.com/mzalewski/fiszki/internal/syncer"
	"github.com/mzalewski/fiszki/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("fiszki", pflag.ExitOnError)
	configPath := flags.String("config", "fiszki.yaml", "Path to the YAML config file")
	flags.String("db_path", "fiszki.db", "Path to the SQLite database file")
	flags.String("listen", "127.0.0.1:8484", "Address of the local review UI")
	flags.String("server_url", "", "Base URL of the catalog service")
	flags.Int64("user_id", 0, "User whose catalog to study")
	flags.Int64("deck_id", 0, "Deck to review (defaults to the first root deck)")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open local store", "db_path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("local store opened", "db_path", cfg.DBPath, "schema_version", storage.SchemaVersion)

	client := catalog.NewClient(cfg.ServerURL, cfg.APIToken)

	// Without a catalog there is nothing to study: a failed initial pull
	// ends the session here and the user retries once connectivity is back.
	if err := bootstrap.New(db, client, cfg.UserID).Run(context.Background()); err != nil {
		slog.Error("initial catalog pull failed, please retry", "server_url", cfg.ServerURL, "error", err)
		os.Exit(1)
	}

	deckID := cfg.DeckID
	if deckID == 0 {
		deckID, err = firstRootDeck(db)
		if err != nil {
			slog.Error("no deck to review", "error", err)
			os.Exit(1)
		}
	}

	sess, err := session.Open(db, cfg.UserID, deckID)
	if err != nil {
		slog.Error("failed to open session", "deck_id", deckID, "error", err)
		os.Exit(1)
	}
	slog.Info("session opened", "session_id", sess.ID(), "user_id", cfg.UserID, "deck_id", deckID)

	engine := syncer.New(db, client, sess, cfg.SyncInterval())
	if err := engine.Start(); err != nil {
		slog.Error("failed to start sync engine", "error", err)
		os.Exit(1)
	}

	srv, err := web.NewServer(sess, web.NewLazyImageCache(db, client))
	if err != nil {
		slog.Error("failed to build web server", "error", err)
		os.Exit(1)
	}
	httpServer := &http.Server{Addr: cfg.Listen, Handler: srv}

	go func() {
		slog.Info("review UI listening", "addr", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("web server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down", "session_id", sess.ID())

	engine.Stop()

	// Best-effort final flush; a failure here is not retried, the outbox
	// keeps the entries for the next session.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.Flush(ctx); err != nil {
		slog.Warn("final sync flush failed", "error", err)
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Warn("web server shutdown failed", "error", err)
	}
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func firstRootDeck(db *storage.DB) (int64, error) {
	decks, err := db.Decks()
	if err != nil {
		return 0, err
	}
	for _, d := range decks {
		if d.ParentID == nil {
			return d.DeckID, nil
		}
	}
	return 0, errors.New("catalog has no root decks")
}
