package scheduler

import "github.com/mzalewski/fiszki/internal/domain"

// IntervalSet holds the four candidate next-review intervals, in minutes,
// for the again/hard/good/easy buttons. Values within a set are strictly
// increasing.
type IntervalSet [4]int64

// Button indexes into an IntervalSet.
const (
	Again = iota
	Hard
	Good
	Easy
)

// The interval ladder. A card's candidate intervals depend on how far
// apart its last review and its scheduled next review were: the wider the
// gap, the more mature the card, the longer the offered intervals. The
// tiers are a fixed lookup table, not a formula.
var intervalTiers = []struct {
	gapBelow float64 // minutes
	set      IntervalSet
}{
	{6, IntervalSet{1, 6, 10, 5760}},
	{10, IntervalSet{1, 10, 15, 1440}},
	{15, IntervalSet{1, 10, 1440, 5760}},
	{1440, IntervalSet{1, 15, 5760, 8640}},
	{5760, IntervalSet{1, 1440, 5760, 8640}},
	{8640, IntervalSet{1, 1440, 5760, 11520}},
	{11520, IntervalSet{1, 5760, 8640, 11520}},
}

// matureSet covers every gap of 11520 minutes or more.
var matureSet = IntervalSet{1, 8640, 11520, 43200}

// IntervalsForGap returns the interval set for a given gap, in minutes,
// between a card's last review and its scheduled next review.
func IntervalsForGap(gapMinutes float64) IntervalSet {
	for _, tier := range intervalTiers {
		if gapMinutes < tier.gapBelow {
			return tier.set
		}
	}
	return matureSet
}

// Intervals returns the candidate intervals for a card with the given
// progress. A card with no review history uses the first tier.
func Intervals(p *domain.Progress) IntervalSet {
	if !p.Reviewed() {
		return intervalTiers[0].set
	}
	gap := p.NextReview.Sub(*p.LastReviewed)
	if gap < 0 {
		gap = -gap
	}
	return IntervalsForGap(gap.Minutes())
}
