package scheduler

import "github.com/mzalewski/fiszki/internal/domain"

// DeckTree is the deck forest as an adjacency map, built once per session
// so that subtree walks never go back to the store. parent_id cycles are a
// catalog-side integrity bug and are assumed absent.
type DeckTree struct {
	decks    map[int64]domain.Deck
	children map[int64][]int64
	roots    []int64
}

// NewDeckTree indexes decks by id and by parent, recording the root decks
// in input order.
func NewDeckTree(decks []domain.Deck) *DeckTree {
	t := &DeckTree{
		decks:    make(map[int64]domain.Deck, len(decks)),
		children: make(map[int64][]int64),
	}
	for _, d := range decks {
		t.decks[d.DeckID] = d
		if d.ParentID != nil {
			t.children[*d.ParentID] = append(t.children[*d.ParentID], d.DeckID)
		} else {
			t.roots = append(t.roots, d.DeckID)
		}
	}
	return t
}

// Deck returns the deck with the given id, if present.
func (t *DeckTree) Deck(deckID int64) (domain.Deck, bool) {
	d, ok := t.decks[deckID]
	return d, ok
}

// Children returns the direct child deck ids of deckID.
func (t *DeckTree) Children(deckID int64) []int64 {
	return t.children[deckID]
}

// Subtree returns deckID followed by every descendant deck id,
// depth-first. Each deck appears exactly once.
func (t *DeckTree) Subtree(deckID int64) []int64 {
	ids := []int64{deckID}
	for _, child := range t.children[deckID] {
		ids = append(ids, t.Subtree(child)...)
	}
	return ids
}

// Roots returns the ids of all decks without a parent, in input order.
func (t *DeckTree) Roots() []int64 {
	return t.roots
}
