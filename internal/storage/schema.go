package storage

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current version of the local database schema.
// Bumps must only add stores; existing tables are never dropped or
// rewritten so that an upgraded client keeps its cached catalog.
const SchemaVersion = 2

// migrations[i] brings the schema from version i to version i+1.
var migrations = []string{
	// v1: the cached catalog and the outbox.
	`
CREATE TABLE IF NOT EXISTS decks (
    deck_id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    parent_id INTEGER
);
CREATE INDEX IF NOT EXISTS idx_decks_parent_id ON decks(parent_id);

CREATE TABLE IF NOT EXISTS cards (
    card_id INTEGER PRIMARY KEY,
    deck_id INTEGER NOT NULL,
    front_content TEXT NOT NULL,
    back_content TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cards_deck_id ON cards(deck_id);

CREATE TABLE IF NOT EXISTS progress (
    user_id INTEGER NOT NULL,
    card_id INTEGER NOT NULL,
    difficulty_level INTEGER,
    last_reviewed DATETIME,
    next_review DATETIME,
    review_session_id TEXT,
    PRIMARY KEY (user_id, card_id)
);
CREATE INDEX IF NOT EXISTS idx_progress_card_id ON progress(card_id);

CREATE TABLE IF NOT EXISTS settings (
    setting_id INTEGER PRIMARY KEY,
    deck_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    daily_card_limit INTEGER NOT NULL,
    daily_review_limit INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id INTEGER NOT NULL
);
`,
	// v2: locally cached images for lazy loading.
	`
CREATE TABLE IF NOT EXISTS images (
    image_id INTEGER PRIMARY KEY,
    file_name TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    category TEXT,
    image_data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_images_file_name ON images(file_name);
`,
}

// migrate brings the database up to SchemaVersion, applying each pending
// step in its own transaction and recording it in schema_migrations.
func migrate(conn *sql.DB) error {
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}

	for version := current + 1; version <= SchemaVersion; version++ {
		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("migrate: begin v%d: %w", version, err)
		}
		if _, err := tx.Exec(migrations[version-1]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate: apply v%d: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate: record v%d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate: commit v%d: %w", version, err)
		}
	}
	return nil
}
