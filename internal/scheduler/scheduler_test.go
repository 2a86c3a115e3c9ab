package scheduler

import (
	"testing"
	"time"

	"github.com/mzalewski/fiszki/internal/domain"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func reviewedProgress(cardID int64, lastReviewed, nextReview time.Time) *domain.Progress {
	diff := int64(10)
	return &domain.Progress{
		UserID:          1,
		CardID:          cardID,
		DifficultyLevel: &diff,
		LastReviewed:    &lastReviewed,
		NextReview:      &nextReview,
	}
}

func TestIntervalsForGap(t *testing.T) {
	tests := []struct {
		gapMinutes float64
		expected   IntervalSet
	}{
		{0, IntervalSet{1, 6, 10, 5760}},
		{5.9, IntervalSet{1, 6, 10, 5760}},
		{6, IntervalSet{1, 10, 15, 1440}},
		{9.5, IntervalSet{1, 10, 15, 1440}},
		{10, IntervalSet{1, 10, 1440, 5760}},
		{14, IntervalSet{1, 10, 1440, 5760}},
		{15, IntervalSet{1, 15, 5760, 8640}},
		{1439, IntervalSet{1, 15, 5760, 8640}},
		{1440, IntervalSet{1, 1440, 5760, 8640}},
		{6000, IntervalSet{1, 1440, 5760, 8640}},
		{5760, IntervalSet{1, 1440, 5760, 8640}},
		{8639, IntervalSet{1, 1440, 5760, 8640}},
		{8640, IntervalSet{1, 1440, 5760, 11520}},
		{11519, IntervalSet{1, 1440, 5760, 11520}},
		{11520, IntervalSet{1, 5760, 8640, 11520}},
		{11521, IntervalSet{1, 8640, 11520, 43200}},
		{100000, IntervalSet{1, 8640, 11520, 43200}},
	}
	for _, tt := range tests {
		got := IntervalsForGap(tt.gapMinutes)
		if got != tt.expected {
			t.Errorf("IntervalsForGap(%v) = %v, expected %v", tt.gapMinutes, got, tt.expected)
		}
	}
}

func TestIntervals(t *testing.T) {
	t.Run("no history uses the first tier", func(t *testing.T) {
		if got := Intervals(nil); got != (IntervalSet{1, 6, 10, 5760}) {
			t.Errorf("Intervals(nil) = %v", got)
		}
	})

	t.Run("null difficulty counts as no history", func(t *testing.T) {
		p := &domain.Progress{UserID: 1, CardID: 1}
		if got := Intervals(p); got != (IntervalSet{1, 6, 10, 5760}) {
			t.Errorf("Intervals = %v", got)
		}
	})

	t.Run("mature card uses the gap tier", func(t *testing.T) {
		last := testNow.Add(-4 * 24 * time.Hour)
		next := testNow
		// Gap of 4 days = 5760 minutes -> fifth tier.
		p := reviewedProgress(1, last, next)
		if got := Intervals(p); got != (IntervalSet{1, 1440, 5760, 8640}) {
			t.Errorf("Intervals = %v", got)
		}
	})
}

func TestNext(t *testing.T) {
	cards := []domain.Card{
		{CardID: 1, DeckID: 1},
		{CardID: 2, DeckID: 1},
		{CardID: 3, DeckID: 1},
	}

	t.Run("due card wins over new card", func(t *testing.T) {
		progress := map[int64]*domain.Progress{
			2: reviewedProgress(2, testNow.Add(-time.Hour), testNow.Add(-time.Minute)),
		}
		pick := Next(cards, progress, testNow)
		if pick == nil || pick.Card.CardID != 2 {
			t.Fatalf("expected due card 2, got %+v", pick)
		}
		if pick.IsNew {
			t.Error("due card must not be flagged new")
		}
	})

	t.Run("due cards are ordered by earliest next_review", func(t *testing.T) {
		progress := map[int64]*domain.Progress{
			1: reviewedProgress(1, testNow.Add(-2*time.Hour), testNow.Add(-5*time.Minute)),
			2: reviewedProgress(2, testNow.Add(-2*time.Hour), testNow.Add(-20*time.Minute)),
		}
		pick := Next(cards, progress, testNow)
		if pick == nil || pick.Card.CardID != 2 {
			t.Fatalf("expected most overdue card 2, got %+v", pick)
		}
	})

	t.Run("card due within the horizon counts as due", func(t *testing.T) {
		progress := map[int64]*domain.Progress{
			3: reviewedProgress(3, testNow.Add(-time.Hour), testNow.Add(29*time.Minute)),
		}
		pick := Next(cards[2:], progress, testNow)
		if pick == nil || pick.Card.CardID != 3 {
			t.Fatalf("expected card 3 within horizon, got %+v", pick)
		}
	})

	t.Run("new cards keep input order", func(t *testing.T) {
		pick := Next(cards, map[int64]*domain.Progress{}, testNow)
		if pick == nil || pick.Card.CardID != 1 {
			t.Fatalf("expected first new card, got %+v", pick)
		}
		if !pick.IsNew {
			t.Error("never-reviewed card must be flagged new")
		}
	})

	t.Run("exhausted deck yields nil", func(t *testing.T) {
		progress := map[int64]*domain.Progress{
			1: reviewedProgress(1, testNow, testNow.Add(2*time.Hour)),
			2: reviewedProgress(2, testNow, testNow.Add(2*time.Hour)),
			3: reviewedProgress(3, testNow, testNow.Add(2*time.Hour)),
		}
		if pick := Next(cards, progress, testNow); pick != nil {
			t.Errorf("expected nil pick, got card %d", pick.Card.CardID)
		}
	})

	t.Run("no cards yields nil", func(t *testing.T) {
		if pick := Next(nil, nil, testNow); pick != nil {
			t.Errorf("expected nil pick, got %+v", pick)
		}
	})
}

func TestCounts(t *testing.T) {
	parent := int64(1)
	decks := []domain.Deck{
		{DeckID: 1, Name: "root"},
		{DeckID: 2, Name: "child", ParentID: &parent},
	}
	tree := NewDeckTree(decks)

	cards := []domain.Card{
		{CardID: 10, DeckID: 1},
		{CardID: 11, DeckID: 1},
		{CardID: 12, DeckID: 2},
	}

	t.Run("new cards roll up with a due child card", func(t *testing.T) {
		// Child card reviewed with a long gap and due now -> reviewing.
		progress := map[int64]*domain.Progress{
			12: reviewedProgress(12, testNow.Add(-13*time.Hour), testNow.Add(-time.Minute)),
		}
		got := Counts(tree, 1, cards, progress, testNow)
		expected := domain.DeckCounts{New: 2, Reviewing: 1}
		if got != expected {
			t.Errorf("Counts = %+v, expected %+v", got, expected)
		}
	})

	t.Run("short gap due card is learning", func(t *testing.T) {
		progress := map[int64]*domain.Progress{
			12: reviewedProgress(12, testNow.Add(-10*time.Minute), testNow.Add(-time.Minute)),
		}
		got := Counts(tree, 1, cards, progress, testNow)
		expected := domain.DeckCounts{New: 2, Learning: 1}
		if got != expected {
			t.Errorf("Counts = %+v, expected %+v", got, expected)
		}
	})

	t.Run("imminent card is learning regardless of gap", func(t *testing.T) {
		progress := map[int64]*domain.Progress{
			12: reviewedProgress(12, testNow.Add(-13*time.Hour), testNow.Add(10*time.Minute)),
		}
		got := Counts(tree, 1, cards, progress, testNow)
		expected := domain.DeckCounts{New: 2, Learning: 1}
		if got != expected {
			t.Errorf("Counts = %+v, expected %+v", got, expected)
		}
	})

	t.Run("not-yet-due card is uncounted", func(t *testing.T) {
		progress := map[int64]*domain.Progress{
			12: reviewedProgress(12, testNow, testNow.Add(2*time.Hour)),
		}
		got := Counts(tree, 1, cards, progress, testNow)
		expected := domain.DeckCounts{New: 2}
		if got != expected {
			t.Errorf("Counts = %+v, expected %+v", got, expected)
		}
	})

	t.Run("child subtree excludes the parent's cards", func(t *testing.T) {
		got := Counts(tree, 2, cards, map[int64]*domain.Progress{}, testNow)
		expected := domain.DeckCounts{New: 1}
		if got != expected {
			t.Errorf("Counts = %+v, expected %+v", got, expected)
		}
	})
}

func TestDeckTreeSubtree(t *testing.T) {
	p1 := int64(1)
	p2 := int64(2)
	decks := []domain.Deck{
		{DeckID: 1, Name: "root"},
		{DeckID: 2, Name: "child", ParentID: &p1},
		{DeckID: 3, Name: "grandchild", ParentID: &p2},
		{DeckID: 4, Name: "other root"},
	}
	tree := NewDeckTree(decks)

	got := tree.Subtree(1)
	expected := []int64{1, 2, 3}
	if len(got) != len(expected) {
		t.Fatalf("Subtree(1) = %v, expected %v", got, expected)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("Subtree(1) = %v, expected %v", got, expected)
		}
	}

	if roots := tree.Roots(); len(roots) != 2 || roots[0] != 1 || roots[1] != 4 {
		t.Errorf("Roots = %v, expected [1 4]", roots)
	}
}
