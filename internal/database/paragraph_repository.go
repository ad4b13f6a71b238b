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

const paragraphCollection = "paragraph"

const paragraphColumns = `id, text, translation_text, annotations, focus_words,
	last_reviewed_at, successful_review_streak, is_mastered, is_excluded, created_at`

// paragraphRow is the flat database shape of a ParagraphItem
type paragraphRow struct {
	ID              int64              `db:"id"`
	Text            string             `db:"text"`
	TranslationText string             `db:"translation_text"`
	Annotations     models.Annotations `db:"annotations"`
	FocusWords      models.WordList    `db:"focus_words"`
	models.ReviewState
	IsExcluded bool      `db:"is_excluded"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r paragraphRow) toModel() models.ParagraphItem {
	return models.ParagraphItem{
		ID:   r.ID,
		Text: r.Text,
		Translation: models.Translation{
			Text:        r.TranslationText,
			Annotations: r.Annotations,
		},
		FocusWords:  r.FocusWords,
		ReviewState: r.ReviewState,
		IsExcluded:  r.IsExcluded,
		CreatedAt:   r.CreatedAt,
	}
}

// ParagraphRepository handles database operations for paragraphs
type ParagraphRepository struct {
	db *sqlx.DB
}

// NewParagraphRepository creates a new repository instance
func NewParagraphRepository(db *sqlx.DB) *ParagraphRepository {
	return &ParagraphRepository{db: db}
}

// Create inserts a new paragraph and returns its id
func (r *ParagraphRepository) Create(ctx context.Context, p *models.ParagraphItem) (int64, error) {
	if strings.TrimSpace(p.Text) == "" || strings.TrimSpace(p.Translation.Text) == "" {
		return 0, fmt.Errorf("paragraph and translation are required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	id, err := insertReturningID(ctx, r.db, `
		INSERT INTO paragraphs (text, translation_text, annotations, focus_words,
			last_reviewed_at, successful_review_streak, is_mastered, is_excluded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Text,
		p.Translation.Text,
		p.Translation.Annotations,
		p.FocusWords,
		utc(p.LastReviewedAt),
		p.SuccessfulReviewStreak,
		p.IsMastered,
		p.IsExcluded,
		p.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create paragraph")
	}

	p.ID = id
	return id, nil
}

// Get returns a paragraph by ID
func (r *ParagraphRepository) Get(ctx context.Context, id int64) (*models.ParagraphItem, error) {
	var row paragraphRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind("SELECT "+paragraphColumns+" FROM paragraphs WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Collection: paragraphCollection, ID: id}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get paragraph by ID")
	}
	p := row.toModel()
	return &p, nil
}

// List returns all paragraphs in insertion order
func (r *ParagraphRepository) List(ctx context.Context) ([]models.ParagraphItem, error) {
	var rows []paragraphRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT "+paragraphColumns+" FROM paragraphs ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "failed to get paragraphs")
	}
	out := make([]models.ParagraphItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// Update replaces every mutable field of a paragraph. The id and creation time are preserved.
func (r *ParagraphRepository) Update(ctx context.Context, id int64, p *models.ParagraphItem) error {
	err := execOne(ctx, r.db, paragraphCollection, id, `
		UPDATE paragraphs SET
			text = ?,
			translation_text = ?,
			annotations = ?,
			focus_words = ?,
			last_reviewed_at = ?,
			successful_review_streak = ?,
			is_mastered = ?,
			is_excluded = ?
		WHERE id = ?`,
		p.Text,
		p.Translation.Text,
		p.Translation.Annotations,
		p.FocusWords,
		utc(p.LastReviewedAt),
		p.SuccessfulReviewStreak,
		p.IsMastered,
		p.IsExcluded,
		id,
	)
	var nf *NotFoundError
	if err != nil && !errors.As(err, &nf) {
		return errors.Wrap(err, "failed to update paragraph")
	}
	if err == nil {
		p.ID = id
	}
	return err
}

// Delete removes a paragraph. Words extracted from it are kept.
func (r *ParagraphRepository) Delete(ctx context.Context, id int64) error {
	err := execOne(ctx, r.db, paragraphCollection, id, "DELETE FROM paragraphs WHERE id = ?", id)
	var nf *NotFoundError
	if err != nil && !errors.As(err, &nf) {
		return errors.Wrap(err, "failed to delete paragraph")
	}
	return err
}

// Clear removes every paragraph
func (r *ParagraphRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM paragraphs"); err != nil {
		return errors.Wrap(err, "failed to clear paragraphs")
	}
	return nil
}
