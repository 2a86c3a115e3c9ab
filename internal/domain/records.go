package domain

import "time"

// Deck is one node of the deck forest. ParentID is nil for root decks.
// A deck's effective card set is its own cards plus those of every
// descendant deck.
type Deck struct {
	DeckID   int64  `json:"deck_id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
}

// Card belongs to exactly one deck. Content is authored catalog-side and
// read-only here.
type Card struct {
	CardID       int64  `json:"card_id"`
	DeckID       int64  `json:"deck_id"`
	FrontContent string `json:"front_content"`
	BackContent  string `json:"back_content"`
}

// Progress is the per-user review state of a card, keyed by
// (user_id, card_id). A nil DifficultyLevel marks a card that has never
// been successfully reviewed.
type Progress struct {
	UserID          int64      `json:"user_id"`
	CardID          int64      `json:"card_id"`
	DifficultyLevel *int64     `json:"difficulty_level"`
	LastReviewed    *time.Time `json:"last_reviewed"`
	NextReview      *time.Time `json:"next_review"`
	ReviewSessionID *string    `json:"review_session_id"`
}

// Reviewed reports whether p records at least one completed review.
func (p *Progress) Reviewed() bool {
	return p != nil && p.DifficultyLevel != nil && p.LastReviewed != nil && p.NextReview != nil
}

// Settings holds the per-deck study limits. The catalog service owns the
// bounds (1..1000); the client treats the values as read-only.
type Settings struct {
	SettingID        int64 `json:"setting_id"`
	DeckID           int64 `json:"deck_id"`
	UserID           int64 `json:"user_id"`
	DailyCardLimit   int   `json:"daily_card_limit"`
	DailyReviewLimit int   `json:"daily_review_limit"`
}

// Image is a locally cached card illustration, fetched lazily from the
// catalog service on first use.
type Image struct {
	ImageID   int64  `json:"image_id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	Category  string `json:"category"`
	ImageData []byte `json:"image_data"`
}

// OutboxEntry marks a card whose progress has a local change not yet
// confirmed by the catalog service. Entries are append-only; a confirmed
// sync clears the entries it carried and nothing appended since.
// Duplicates for one card are harmless.
type OutboxEntry struct {
	ID     int64
	CardID int64
}

// DeckCounts is the new/learning/reviewing rollup for a deck subtree.
type DeckCounts struct {
	New       int `json:"new"`
	Learning  int `json:"learning"`
	Reviewing int `json:"reviewing"`
}

// Add sums other into c.
func (c *DeckCounts) Add(other DeckCounts) {
	c.New += other.New
	c.Learning += other.Learning
	c.Reviewing += other.Reviewing
}
