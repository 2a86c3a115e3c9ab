// Package session owns the state of one study session: the user, the
// active deck subtree, the cached progress records and the new-cards
// counter. It exposes the review loop upward (next card, record answer,
// deck counts) and never touches the network; all I/O goes through the
// local store.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mzalewski/fiszki/internal/domain"
	"github.com/mzalewski/fiszki/internal/scheduler"
	"github.com/mzalewski/fiszki/internal/storage"
)

// Session is the per-login context threaded through the UI and the sync
// engine. It is torn down with the process; nothing here outlives the
// local store.
type Session struct {
	store  *storage.DB
	userID int64
	deckID int64
	id     string

	tree     *scheduler.DeckTree
	decks    []domain.Deck
	allCards []domain.Card
	settings *domain.Settings

	mu            sync.Mutex
	deckCards     []domain.Card
	progress      map[int64]*domain.Progress
	newCardsShown int

	now func() time.Time
}

// Open loads the deck subtree, its settings and the user's progress from
// the local store. The store must already be bootstrapped; an empty deck
// is not an error, it just exhausts immediately.
func Open(store *storage.DB, userID, deckID int64) (*Session, error) {
	decks, err := store.Decks()
	if err != nil {
		return nil, fmt.Errorf("failed to load decks: %w", err)
	}
	cards, err := store.Cards()
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	progressRows, err := store.ProgressForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	settings, err := store.SettingsForDeck(deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	tree := scheduler.NewDeckTree(decks)

	inSubtree := make(map[int64]bool)
	for _, id := range tree.Subtree(deckID) {
		inSubtree[id] = true
	}
	var deckCards []domain.Card
	for _, c := range cards {
		if inSubtree[c.DeckID] {
			deckCards = append(deckCards, c)
		}
	}

	progress := make(map[int64]*domain.Progress, len(progressRows))
	for i := range progressRows {
		progress[progressRows[i].CardID] = &progressRows[i]
	}

	return &Session{
		store:     store,
		userID:    userID,
		deckID:    deckID,
		id:        uuid.NewString(),
		tree:      tree,
		decks:     decks,
		allCards:  cards,
		settings:  settings,
		deckCards: deckCards,
		progress:  progress,
		now:       time.Now,
	}, nil
}

// ID is the session identifier, minted at open, used for log correlation.
func (s *Session) ID() string { return s.id }

// UserID returns the user whose progress this session mutates.
func (s *Session) UserID() int64 { return s.userID }

// DeckID returns the active deck.
func (s *Session) DeckID() int64 { return s.deckID }

// Settings returns the active deck's settings, or nil when none are
// cached. Limits are display-only; selection does not consult them.
func (s *Session) Settings() *domain.Settings { return s.settings }

// NextCard selects the card to show: most overdue due card first, then the
// first never-reviewed card, then nil when the deck is exhausted for now.
// The new-cards counter moves only when a new card is actually returned.
func (s *Session) NextCard() *domain.Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	pick := scheduler.Next(s.deckCards, s.progress, s.now())
	if pick == nil {
		return nil
	}
	if pick.IsNew {
		s.newCardsShown++
	}
	return pick.Card
}

// Intervals returns the four candidate intervals for the card's buttons.
func (s *Session) Intervals(cardID int64) scheduler.IntervalSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scheduler.Intervals(s.progress[cardID])
}

// RecordAnswer applies a difficulty choice: schedules the card
// intervalMinutes from now, persists the progress row and enqueues it for
// sync as one atomic unit, then refreshes the in-memory cache.
func (s *Session) RecordAnswer(card *domain.Card, intervalMinutes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	nextReview := now.Add(time.Duration(intervalMinutes) * time.Minute)
	interval := intervalMinutes

	updated := domain.Progress{
		UserID:          s.userID,
		CardID:          card.CardID,
		DifficultyLevel: &interval,
		LastReviewed:    &now,
		NextReview:      &nextReview,
	}
	if existing := s.progress[card.CardID]; existing != nil {
		updated.ReviewSessionID = existing.ReviewSessionID
	}

	if err := s.store.SaveReview(updated); err != nil {
		return fmt.Errorf("failed to record answer for card %d: %w", card.CardID, err)
	}
	s.progress[card.CardID] = &updated
	return nil
}

// DeckCounts returns the new/learning/reviewing rollup for the subtree
// rooted at deckID, recomputed from cached state.
func (s *Session) DeckCounts(deckID int64) domain.DeckCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scheduler.Counts(s.tree, deckID, s.allCards, s.progress, s.now())
}

// Decks returns the deck tree for the UI.
func (s *Session) Decks() *scheduler.DeckTree { return s.tree }

// AllDecks returns every cached deck in stable order.
func (s *Session) AllDecks() []domain.Deck { return s.decks }

// Card looks up a card of the active subtree by id.
func (s *Session) Card(cardID int64) (*domain.Card, bool) {
	for i := range s.deckCards {
		if s.deckCards[i].CardID == cardID {
			return &s.deckCards[i], true
		}
	}
	return nil, false
}

// NewCardsShown reports how many new cards were shown since the last
// confirmed sync.
func (s *Session) NewCardsShown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newCardsShown
}

// MarkNewCardsSynced subtracts the count a confirmed sync carried. New
// cards shown while that sync was in flight stay counted for the next one.
func (s *Session) MarkNewCardsSynced(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newCardsShown -= n
	if s.newCardsShown < 0 {
		s.newCardsShown = 0
	}
}
