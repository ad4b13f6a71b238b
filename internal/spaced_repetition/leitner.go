package spaced_repetition

import (
	"sort"
	"time"

	"github.com/example/leitner/pkg/models"
)

// BatchSize is the number of items reviewed together in one batch
const BatchSize = 5

// Leitner implements a fixed-interval Leitner schedule for spaced repetition
type Leitner struct {
	// Review intervals in days, indexed by successful review streak
	Intervals []int
	// Streak at which an item counts as mastered
	MasteryThreshold int
}

// NewLeitner creates a new Leitner scheduler with default settings
func NewLeitner() *Leitner {
	return &Leitner{
		Intervals:        []int{1, 3, 7, 14, 30},
		MasteryThreshold: models.MasteryThreshold,
	}
}

// IntervalFor returns the interval in days that applies after the given streak
func (l *Leitner) IntervalFor(streak int) int {
	if streak < 0 {
		streak = 0
	}
	if streak >= len(l.Intervals) {
		streak = len(l.Intervals) - 1
	}
	return l.Intervals[streak]
}

// IsDue reports whether an item should be reviewed at the given time
func (l *Leitner) IsDue(item models.Reviewable, now time.Time) bool {
	if item.Excluded() {
		return false
	}
	state := item.Review()
	if state.IsMastered {
		return false
	}
	if state.NeverReviewed() {
		return true
	}
	days := int(now.Sub(*state.LastReviewedAt) / (24 * time.Hour))
	return days >= l.IntervalFor(state.SuccessfulReviewStreak)
}

// NextReview returns when an item becomes due again, or nil if it never will
func (l *Leitner) NextReview(state models.ReviewState) *time.Time {
	if state.IsMastered {
		return nil
	}
	if state.NeverReviewed() {
		return nil
	}
	next := state.LastReviewedAt.Add(time.Duration(l.IntervalFor(state.SuccessfulReviewStreak)) * 24 * time.Hour)
	return &next
}

// RecordOutcome returns the review state after one review.
// A failure resets the streak and clears mastery.
func (l *Leitner) RecordOutcome(state models.ReviewState, wasSuccessful bool, now time.Time) models.ReviewState {
	reviewed := now
	state.LastReviewedAt = &reviewed
	if wasSuccessful {
		state.SuccessfulReviewStreak++
		if state.SuccessfulReviewStreak >= l.MasteryThreshold {
			state.IsMastered = true
		}
	} else {
		state.SuccessfulReviewStreak = 0
		state.IsMastered = false
	}
	return state
}

// ToggleMastered flips the mastered flag. Toggling it off starts the item over.
func (l *Leitner) ToggleMastered(state models.ReviewState) models.ReviewState {
	state.IsMastered = !state.IsMastered
	if !state.IsMastered {
		state.SuccessfulReviewStreak = 0
	}
	return state
}

// ToggleExcluded flips whether a paragraph takes part in reviews
func (l *Leitner) ToggleExcluded(p models.ParagraphItem) models.ParagraphItem {
	p.IsExcluded = !p.IsExcluded
	return p
}

// SortForReview orders items in place: never reviewed first, then oldest review first.
// Ties keep their original order.
func SortForReview[T models.Reviewable](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Review().LastReviewedAt, items[j].Review().LastReviewedAt
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		}
		return a.Before(*b)
	})
}

// DueItems returns the items due at the given time in review order
func DueItems[T models.Reviewable](l *Leitner, items []T, now time.Time) []T {
	var due []T
	for _, item := range items {
		if l.IsDue(item, now) {
			due = append(due, item)
		}
	}
	SortForReview(due)
	return due
}

// Partition splits items into consecutive batches of at most size elements
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = BatchSize
	}
	var batches [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// Stats summarises a collection for the word list
type Stats struct {
	Total       int
	Active      int
	Mastered    int
	Excluded    int
	Due         int
	MasteryRate float64 // percentage of items mastered
}

// ComputeStats gathers collection statistics at the given time
func ComputeStats[T models.Reviewable](l *Leitner, items []T, now time.Time) Stats {
	stats := Stats{Total: len(items)}
	for _, item := range items {
		switch {
		case item.Excluded():
			stats.Excluded++
		case item.Review().IsMastered:
			stats.Mastered++
		default:
			stats.Active++
		}
		if l.IsDue(item, now) {
			stats.Due++
		}
	}
	if stats.Total > 0 {
		stats.MasteryRate = float64(stats.Mastered) * 100 / float64(stats.Total)
	}
	return stats
}
