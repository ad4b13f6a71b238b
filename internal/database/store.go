package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/leitner/pkg/models"
)

// Store groups the collections of one database
type Store struct {
	DB         *sqlx.DB
	Vocabulary *VocabularyRepository
	Paragraphs *ParagraphRepository
}

// NewStore creates repositories on top of an open connection
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		DB:         db,
		Vocabulary: NewVocabularyRepository(db),
		Paragraphs: NewParagraphRepository(db),
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// LinkTerms fills the derived LinkedTermIDs of a paragraph
func (s *Store) LinkTerms(ctx context.Context, p *models.ParagraphItem) error {
	words, err := s.Vocabulary.ListByParagraph(ctx, p.ID)
	if err != nil {
		return err
	}
	p.LinkedTermIDs = make([]int64, 0, len(words))
	for _, w := range words {
		p.LinkedTermIDs = append(p.LinkedTermIDs, w.ID)
	}
	return nil
}

// ClearAll empties both collections
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.Vocabulary.Clear(ctx); err != nil {
		return err
	}
	return s.Paragraphs.Clear(ctx)
}

// insertReturningID runs an INSERT and returns the generated id on either backend
func insertReturningID(ctx context.Context, db *sqlx.DB, query string, args ...interface{}) (int64, error) {
	query = db.Rebind(query)
	if isPostgres(db) {
		var id int64
		if err := db.QueryRowxContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get last insert ID")
	}
	return id, nil
}

// execOne runs a statement that must touch exactly one row
func execOne(ctx context.Context, db *sqlx.DB, collection string, id int64, query string, args ...interface{}) error {
	result, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return &NotFoundError{Collection: collection, ID: id}
	}
	return nil
}

// utc normalizes timestamps before they are written
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
