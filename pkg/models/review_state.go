package models

import "time"

// MasteryThreshold is the successful review streak at which an item counts as mastered
const MasteryThreshold = 5

// ReviewState is the spaced repetition state shared by every reviewable item
type ReviewState struct {
	LastReviewedAt         *time.Time `json:"last_reviewed_at" db:"last_reviewed_at"`                    // nil means never reviewed
	SuccessfulReviewStreak int        `json:"count_of_successful_reviews" db:"successful_review_streak"` // consecutive successes
	IsMastered             bool       `json:"is_mastered" db:"is_mastered"`
}

// NeverReviewed reports whether the item has no review on record
func (s ReviewState) NeverReviewed() bool {
	return s.LastReviewedAt == nil
}

// Reviewable is implemented by items the scheduler can plan reviews for
type Reviewable interface {
	Review() ReviewState
	Excluded() bool
}
