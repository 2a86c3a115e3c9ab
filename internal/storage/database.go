// Package storage is the local durable store: a schema-versioned SQLite
// database holding the cached catalog (decks, cards, settings, progress,
// images) and the outbox of unsynced progress updates.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mzalewski/fiszki/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB wraps the SQLite connection behind typed catalog operations.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is at the
// current version. Pass ":memory:" for an ephemeral store.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// ready guards every operation against use before Open.
func (db *DB) ready() error {
	if db == nil || db.conn == nil {
		return domain.ErrStoreNotReady
	}
	return nil
}

// UpsertDecks writes decks into the cache by primary key in one
// transaction. Rows absent from the slice are left in place.
func (db *DB) UpsertDecks(decks []domain.Deck) error {
	if err := db.ready(); err != nil {
		return err
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin deck upsert: %w", err)
	}
	defer tx.Rollback()

	for _, d := range decks {
		_, err := tx.Exec(`
			INSERT INTO decks (deck_id, name, parent_id) VALUES (?, ?, ?)
			ON CONFLICT(deck_id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id
		`, d.DeckID, d.Name, nullableInt64(d.ParentID))
		if err != nil {
			return fmt.Errorf("failed to upsert deck %d: %w", d.DeckID, err)
		}
	}
	return tx.Commit()
}

// UpsertCards writes cards into the cache by primary key in one transaction.
func (db *DB) UpsertCards(cards []domain.Card) error {
	if err := db.ready(); err != nil {
		return err
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin card upsert: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cards {
		_, err := tx.Exec(`
			INSERT INTO cards (card_id, deck_id, front_content, back_content) VALUES (?, ?, ?, ?)
			ON CONFLICT(card_id) DO UPDATE SET
				deck_id = excluded.deck_id,
				front_content = excluded.front_content,
				back_content = excluded.back_content
		`, c.CardID, c.DeckID, c.FrontContent, c.BackContent)
		if err != nil {
			return fmt.Errorf("failed to upsert card %d: %w", c.CardID, err)
		}
	}
	return tx.Commit()
}

// UpsertSettings writes deck settings into the cache in one transaction.
func (db *DB) UpsertSettings(settings []domain.Settings) error {
	if err := db.ready(); err != nil {
		return err
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin settings upsert: %w", err)
	}
	defer tx.Rollback()

	for _, s := range settings {
		_, err := tx.Exec(`
			INSERT INTO settings (setting_id, deck_id, user_id, daily_card_limit, daily_review_limit)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(setting_id) DO UPDATE SET
				deck_id = excluded.deck_id,
				user_id = excluded.user_id,
				daily_card_limit = excluded.daily_card_limit,
				daily_review_limit = excluded.daily_review_limit
		`, s.SettingID, s.DeckID, s.UserID, s.DailyCardLimit, s.DailyReviewLimit)
		if err != nil {
			return fmt.Errorf("failed to upsert settings %d: %w", s.SettingID, err)
		}
	}
	return tx.Commit()
}

// UpsertProgress writes progress rows by (user_id, card_id) in one
// transaction.
func (db *DB) UpsertProgress(progress []domain.Progress) error {
	if err := db.ready(); err != nil {
		return err
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin progress upsert: %w", err)
	}
	defer tx.Rollback()

	for _, p := range progress {
		if err := upsertProgressTx(tx, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func upsertProgressTx(tx *sql.Tx, p domain.Progress) error {
	_, err := tx.Exec(`
		INSERT INTO progress (user_id, card_id, difficulty_level, last_reviewed, next_review, review_session_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, card_id) DO UPDATE SET
			difficulty_level = excluded.difficulty_level,
			last_reviewed = excluded.last_reviewed,
			next_review = excluded.next_review,
			review_session_id = excluded.review_session_id
	`, p.UserID, p.CardID, nullableInt64(p.DifficultyLevel), nullableTime(p.LastReviewed), nullableTime(p.NextReview), nullableString(p.ReviewSessionID))
	if err != nil {
		return fmt.Errorf("failed to upsert progress for card %d: %w", p.CardID, err)
	}
	return nil
}

// SaveReview writes one progress row and appends the matching outbox entry
// as a single transaction: either both land or neither does.
func (db *DB) SaveReview(p domain.Progress) error {
	if err := db.ready(); err != nil {
		return err
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin review save: %w", err)
	}
	defer tx.Rollback()

	if err := upsertProgressTx(tx, p); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO outbox (card_id) VALUES (?)`, p.CardID); err != nil {
		return fmt.Errorf("failed to enqueue card %d: %w", p.CardID, err)
	}
	return tx.Commit()
}

// Decks returns every cached deck.
func (db *DB) Decks() ([]domain.Deck, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`SELECT deck_id, name, parent_id FROM decks ORDER BY deck_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		var parent sql.NullInt64
		if err := rows.Scan(&d.DeckID, &d.Name, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		if parent.Valid {
			d.ParentID = &parent.Int64
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

// Cards returns every cached card in card_id order.
func (db *DB) Cards() ([]domain.Card, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`SELECT card_id, deck_id, front_content, back_content FROM cards ORDER BY card_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.CardID, &c.DeckID, &c.FrontContent, &c.BackContent); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// ProgressForUser returns every progress row cached for the user.
func (db *DB) ProgressForUser(userID int64) ([]domain.Progress, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`
		SELECT user_id, card_id, difficulty_level, last_reviewed, next_review, review_session_id
		FROM progress WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress for user %d: %w", userID, err)
	}
	defer rows.Close()
	return scanProgressRows(rows)
}

// SettingsForDeck returns the deck's settings, or nil when none are cached.
func (db *DB) SettingsForDeck(deckID int64) (*domain.Settings, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	var s domain.Settings
	err := db.conn.QueryRow(`
		SELECT setting_id, deck_id, user_id, daily_card_limit, daily_review_limit
		FROM settings WHERE deck_id = ?
	`, deckID).Scan(&s.SettingID, &s.DeckID, &s.UserID, &s.DailyCardLimit, &s.DailyReviewLimit)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settings for deck %d: %w", deckID, err)
	}
	return &s, nil
}

// OutboxSize returns the number of queued outbox entries.
func (db *DB) OutboxSize() (int, error) {
	if err := db.ready(); err != nil {
		return 0, err
	}
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}

// OutboxHighWater returns the id of the newest outbox entry, or 0 when the
// outbox is empty. A sync cycle snapshots this before resolving its batch
// so entries appended while the push is in flight stay queued.
func (db *DB) OutboxHighWater() (int64, error) {
	if err := db.ready(); err != nil {
		return 0, err
	}
	var id int64
	if err := db.conn.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM outbox`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read outbox high water: %w", err)
	}
	return id, nil
}

// PendingReviews resolves outbox entries up to and including throughID to
// the latest progress row per queued card. Duplicate entries for one card
// collapse to a single row.
func (db *DB) PendingReviews(userID, throughID int64) ([]domain.Progress, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`
		SELECT user_id, card_id, difficulty_level, last_reviewed, next_review, review_session_id
		FROM progress
		WHERE user_id = ? AND card_id IN (SELECT DISTINCT card_id FROM outbox WHERE id <= ?)
		ORDER BY card_id
	`, userID, throughID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve outbox: %w", err)
	}
	defer rows.Close()
	return scanProgressRows(rows)
}

// ClearOutboxThrough removes outbox entries up to and including throughID.
// Called only after the catalog service confirmed the batch those entries
// resolved into; entries appended since are left queued.
func (db *DB) ClearOutboxThrough(throughID int64) error {
	if err := db.ready(); err != nil {
		return err
	}
	if _, err := db.conn.Exec(`DELETE FROM outbox WHERE id <= ?`, throughID); err != nil {
		return fmt.Errorf("failed to clear outbox through %d: %w", throughID, err)
	}
	return nil
}

// ImageByFileName returns a cached image, or nil when it was never fetched.
func (db *DB) ImageByFileName(fileName string) (*domain.Image, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	var img domain.Image
	var category sql.NullString
	err := db.conn.QueryRow(`
		SELECT image_id, file_name, mime_type, category, image_data
		FROM images WHERE file_name = ?
	`, fileName).Scan(&img.ImageID, &img.FileName, &img.MimeType, &category, &img.ImageData)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get image %s: %w", fileName, err)
	}
	img.Category = category.String
	return &img, nil
}

// SaveImage caches a fetched image by primary key.
func (db *DB) SaveImage(img domain.Image) error {
	if err := db.ready(); err != nil {
		return err
	}
	_, err := db.conn.Exec(`
		INSERT INTO images (image_id, file_name, mime_type, category, image_data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET
			file_name = excluded.file_name,
			mime_type = excluded.mime_type,
			category = excluded.category,
			image_data = excluded.image_data
	`, img.ImageID, img.FileName, img.MimeType, img.Category, img.ImageData)
	if err != nil {
		return fmt.Errorf("failed to save image %s: %w", img.FileName, err)
	}
	return nil
}

func scanProgressRows(rows *sql.Rows) ([]domain.Progress, error) {
	var progress []domain.Progress
	for rows.Next() {
		var p domain.Progress
		var difficulty sql.NullInt64
		var lastReviewed, nextReview sql.NullTime
		var sessionID sql.NullString
		if err := rows.Scan(&p.UserID, &p.CardID, &difficulty, &lastReviewed, &nextReview, &sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		if difficulty.Valid {
			p.DifficultyLevel = &difficulty.Int64
		}
		if lastReviewed.Valid {
			t := lastReviewed.Time
			p.LastReviewed = &t
		}
		if nextReview.Valid {
			t := nextReview.Time
			p.NextReview = &t
		}
		if sessionID.Valid {
			p.ReviewSessionID = &sessionID.String
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullableTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func nullableString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
