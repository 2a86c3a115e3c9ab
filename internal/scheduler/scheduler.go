// Package scheduler holds the pure decision core of the review loop: which
// card to show next, which intervals to offer for it, and the per-deck
// new/learning/reviewing rollups. It performs no I/O; callers supply the
// cards, the progress records and the clock.
package scheduler

import (
	"sort"
	"time"

	"github.com/mzalewski/fiszki/internal/domain"
)

// DueHorizon is how far ahead of its scheduled time a card already counts
// as due.
const DueHorizon = 30 * time.Minute

// reviewingGap separates short-cycle learning cards from long-cycle
// reviewing cards in the rollup counts.
const reviewingGap = 12 * time.Hour

// Pick is the result of a selection pass.
type Pick struct {
	Card *domain.Card
	// IsNew is true when the card has never been successfully reviewed.
	IsNew bool
}

// due reports whether p schedules a review at or before now+DueHorizon.
func due(p *domain.Progress, now time.Time) bool {
	if !p.Reviewed() {
		return false
	}
	return !p.NextReview.After(now.Add(DueHorizon))
}

// isNew reports whether the card behind p was never successfully reviewed.
// A missing or malformed progress record counts as new rather than
// breaking the loop.
func isNew(p *domain.Progress) bool {
	return !p.Reviewed()
}

// Next selects the card to present: the most overdue due card first, then
// the first new card in input order, then nil when the deck is exhausted.
func Next(cards []domain.Card, progress map[int64]*domain.Progress, now time.Time) *Pick {
	var dueCards []*domain.Card
	for i := range cards {
		if due(progress[cards[i].CardID], now) {
			dueCards = append(dueCards, &cards[i])
		}
	}
	if len(dueCards) > 0 {
		sort.SliceStable(dueCards, func(a, b int) bool {
			pa := progress[dueCards[a].CardID]
			pb := progress[dueCards[b].CardID]
			return pa.NextReview.Before(*pb.NextReview)
		})
		return &Pick{Card: dueCards[0]}
	}
	for i := range cards {
		if isNew(progress[cards[i].CardID]) {
			return &Pick{Card: &cards[i], IsNew: true}
		}
	}
	return nil
}

// classify buckets one card for the rollup counts. Reviewed cards that are
// not due within the horizon fall into no bucket.
func classify(p *domain.Progress, now time.Time, c *domain.DeckCounts) {
	if isNew(p) {
		c.New++
		return
	}
	gap := p.NextReview.Sub(*p.LastReviewed)
	if gap < 0 {
		gap = -gap
	}
	switch {
	case !p.NextReview.After(now):
		if gap >= reviewingGap {
			c.Reviewing++
		} else {
			c.Learning++
		}
	case !p.NextReview.After(now.Add(DueHorizon)):
		c.Learning++
	}
}

// Counts returns the rollup for the subtree rooted at deckID: the sum of
// each member deck's own card counts. Every card belongs to exactly one
// deck, so nothing is counted twice.
func Counts(tree *DeckTree, deckID int64, cards []domain.Card, progress map[int64]*domain.Progress, now time.Time) domain.DeckCounts {
	perDeck := make(map[int64]*domain.DeckCounts)
	for i := range cards {
		c := perDeck[cards[i].DeckID]
		if c == nil {
			c = &domain.DeckCounts{}
			perDeck[cards[i].DeckID] = c
		}
		classify(progress[cards[i].CardID], now, c)
	}

	var total domain.DeckCounts
	for _, id := range tree.Subtree(deckID) {
		if c := perDeck[id]; c != nil {
			total.Add(*c)
		}
	}
	return total
}
