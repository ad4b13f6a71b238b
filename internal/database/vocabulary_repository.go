package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/leitner/pkg/models"
)

const vocabularyCollection = "word"

const vocabularyColumns = `id, term, meaning, root, source_paragraph_id,
	last_reviewed_at, successful_review_streak, is_mastered, created_at`

// VocabularyRepository handles database operations for vocabulary items
type VocabularyRepository struct {
	db *sqlx.DB
}

// NewVocabularyRepository creates a new repository instance
func NewVocabularyRepository(db *sqlx.DB) *VocabularyRepository {
	return &VocabularyRepository{db: db}
}

// Create inserts a new item and returns its id. A term that already exists
// is rejected with a DuplicateError.
func (r *VocabularyRepository) Create(ctx context.Context, item *models.VocabularyItem) (int64, error) {
	if strings.TrimSpace(item.Term) == "" || strings.TrimSpace(item.Meaning) == "" {
		return 0, fmt.Errorf("word and translation are required")
	}

	existing, err := r.FindByTerm(ctx, item.Term)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, &DuplicateError{Term: item.Term}
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	id, err := insertReturningID(ctx, r.db, `
		INSERT INTO vocabulary (term, meaning, root, source_paragraph_id,
			last_reviewed_at, successful_review_streak, is_mastered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Term,
		item.Meaning,
		item.Root,
		item.SourceParagraphID,
		utc(item.LastReviewedAt),
		item.SuccessfulReviewStreak,
		item.IsMastered,
		item.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return 0, &DuplicateError{Term: item.Term}
		}
		return 0, errors.Wrap(err, "failed to create word")
	}

	item.ID = id
	return id, nil
}

// Get returns a word by ID
func (r *VocabularyRepository) Get(ctx context.Context, id int64) (*models.VocabularyItem, error) {
	var item models.VocabularyItem
	err := r.db.GetContext(ctx, &item, r.db.Rebind("SELECT "+vocabularyColumns+" FROM vocabulary WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Collection: vocabularyCollection, ID: id}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get word by ID")
	}
	return &item, nil
}

// FindByTerm returns the word with exactly this term, or nil when there is none
func (r *VocabularyRepository) FindByTerm(ctx context.Context, term string) (*models.VocabularyItem, error) {
	var item models.VocabularyItem
	err := r.db.GetContext(ctx, &item, r.db.Rebind("SELECT "+vocabularyColumns+" FROM vocabulary WHERE term = ?"), term)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get word by term")
	}
	return &item, nil
}

// List returns all words in insertion order
func (r *VocabularyRepository) List(ctx context.Context) ([]models.VocabularyItem, error) {
	var items []models.VocabularyItem
	if err := r.db.SelectContext(ctx, &items, "SELECT "+vocabularyColumns+" FROM vocabulary ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "failed to get words")
	}
	return items, nil
}

// ListByParagraph returns the words extracted from a paragraph
func (r *VocabularyRepository) ListByParagraph(ctx context.Context, paragraphID int64) ([]models.VocabularyItem, error) {
	var items []models.VocabularyItem
	err := r.db.SelectContext(ctx, &items,
		r.db.Rebind("SELECT "+vocabularyColumns+" FROM vocabulary WHERE source_paragraph_id = ? ORDER BY id"), paragraphID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get words by paragraph")
	}
	return items, nil
}

// Update replaces every mutable field of a word. The id and creation time are preserved.
func (r *VocabularyRepository) Update(ctx context.Context, id int64, item *models.VocabularyItem) error {
	existing, err := r.FindByTerm(ctx, item.Term)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != id {
		return &DuplicateError{Term: item.Term}
	}

	err = execOne(ctx, r.db, vocabularyCollection, id, `
		UPDATE vocabulary SET
			term = ?,
			meaning = ?,
			root = ?,
			source_paragraph_id = ?,
			last_reviewed_at = ?,
			successful_review_streak = ?,
			is_mastered = ?
		WHERE id = ?`,
		item.Term,
		item.Meaning,
		item.Root,
		item.SourceParagraphID,
		utc(item.LastReviewedAt),
		item.SuccessfulReviewStreak,
		item.IsMastered,
		id,
	)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return err
		}
		if isUniqueConstraintErr(err) {
			return &DuplicateError{Term: item.Term}
		}
		return errors.Wrap(err, "failed to update word")
	}
	item.ID = id
	return nil
}

// UpdateReview persists only the review state of a word
func (r *VocabularyRepository) UpdateReview(ctx context.Context, id int64, state models.ReviewState) error {
	err := execOne(ctx, r.db, vocabularyCollection, id, `
		UPDATE vocabulary SET
			last_reviewed_at = ?,
			successful_review_streak = ?,
			is_mastered = ?
		WHERE id = ?`,
		utc(state.LastReviewedAt),
		state.SuccessfulReviewStreak,
		state.IsMastered,
		id,
	)
	var nf *NotFoundError
	if err != nil && !errors.As(err, &nf) {
		return errors.Wrap(err, "failed to update review")
	}
	return err
}

// Delete removes a word
func (r *VocabularyRepository) Delete(ctx context.Context, id int64) error {
	err := execOne(ctx, r.db, vocabularyCollection, id, "DELETE FROM vocabulary WHERE id = ?", id)
	var nf *NotFoundError
	if err != nil && !errors.As(err, &nf) {
		return errors.Wrap(err, "failed to delete word")
	}
	return err
}

// Clear removes every word
func (r *VocabularyRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM vocabulary"); err != nil {
		return errors.Wrap(err, "failed to clear words")
	}
	return nil
}
