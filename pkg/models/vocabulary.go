package models

import "time"

// VocabularyItem represents a word or phrase extracted from a paragraph
type VocabularyItem struct {
	ID                int64  `json:"id" db:"id"`
	Term              string `json:"word" db:"term"`           // lemma form
	Meaning           string `json:"translation" db:"meaning"` // explanation in the native language
	Root              string `json:"root,omitempty" db:"root"` // optional origin note
	SourceParagraphID int64  `json:"paragraph_id" db:"source_paragraph_id"`
	ReviewState
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Review implements Reviewable
func (v VocabularyItem) Review() ReviewState { return v.ReviewState }

// Excluded implements Reviewable. Vocabulary can only leave rotation through mastery.
func (v VocabularyItem) Excluded() bool { return false }
