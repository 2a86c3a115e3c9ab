// Package bootstrap seeds the local store from the catalog service: one
// full pull of decks, cards, settings and progress at session start.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mzalewski/fiszki/internal/catalog"
	"github.com/mzalewski/fiszki/internal/storage"
)

// Bootstrapper performs the initial catalog pull. Running it again later
// refreshes the cache wholesale; it is idempotent.
type Bootstrapper struct {
	store  *storage.DB
	client *catalog.Client
	userID int64
}

// New returns a bootstrapper for the given user.
func New(store *storage.DB, client *catalog.Client, userID int64) *Bootstrapper {
	return &Bootstrapper{store: store, client: client, userID: userID}
}

// Run pulls the user's catalog and upserts every table by primary key.
// Rows missing from the snapshot are deliberately left in place: a partial
// pull cannot be told apart from a trimmed catalog, so nothing is ever
// deleted here. A failed pull is fatal to session start; the caller should
// prompt for a retry.
func (b *Bootstrapper) Run(ctx context.Context) error {
	snapshot, err := b.client.PullUserCatalog(ctx, b.userID)
	if err != nil {
		return fmt.Errorf("catalog pull failed: %w", err)
	}

	if err := b.store.UpsertDecks(snapshot.Decks); err != nil {
		return fmt.Errorf("failed to cache decks: %w", err)
	}
	if err := b.store.UpsertCards(snapshot.Cards); err != nil {
		return fmt.Errorf("failed to cache cards: %w", err)
	}
	if err := b.store.UpsertSettings(snapshot.Settings); err != nil {
		return fmt.Errorf("failed to cache settings: %w", err)
	}
	if err := b.store.UpsertProgress(snapshot.Progress); err != nil {
		return fmt.Errorf("failed to cache progress: %w", err)
	}

	slog.Info("catalog bootstrapped",
		"user_id", b.userID,
		"decks", len(snapshot.Decks),
		"cards", len(snapshot.Cards),
		"settings", len(snapshot.Settings),
		"progress", len(snapshot.Progress),
	)
	return nil
}
