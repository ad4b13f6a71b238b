package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/internal/logger"
	"github.com/example/leitner/pkg/models"
)

// Version is written into every backup document
const Version = "1.0.0"

// Summary counts what a restore inserted
type Summary struct {
	Words      int
	Paragraphs int
}

// Service exports and restores the whole store
type Service struct {
	store *database.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewService creates a backup service
func NewService(store *database.Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Export snapshots both collections
func (s *Service) Export(ctx context.Context) (*models.Backup, error) {
	var (
		words      []models.VocabularyItem
		paragraphs []models.ParagraphItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if words, err = s.store.Vocabulary.List(gctx); err != nil {
			return fmt.Errorf("failed to export words: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if paragraphs, err = s.store.Paragraphs.List(gctx); err != nil {
			return fmt.Errorf("failed to export paragraphs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if words == nil {
		words = []models.VocabularyItem{}
	}
	if paragraphs == nil {
		paragraphs = []models.ParagraphItem{}
	}
	return &models.Backup{
		Version:   Version,
		Timestamp: s.now().UTC().Truncate(time.Second),
		Data:      models.BackupData{Words: words, Paragraphs: paragraphs},
	}, nil
}

// Write encodes a backup as indented JSON
func Write(w io.Writer, b *models.Backup) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Read decodes and validates a backup document
func Read(r io.Reader) (*models.Backup, error) {
	var b models.Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	if err := Validate(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks that a backup carries usable data
func Validate(b *models.Backup) error {
	if b == nil {
		return fmt.Errorf("invalid backup: empty document")
	}
	if b.Data.Words == nil && b.Data.Paragraphs == nil {
		return fmt.Errorf("invalid backup: missing data")
	}
	terms := make(map[string]int, len(b.Data.Words))
	for i, w := range b.Data.Words {
		if w.Term == "" || w.Meaning == "" {
			return fmt.Errorf("invalid backup: word %d needs a term and a translation", i+1)
		}
		// terms are unique in the store
		if first, ok := terms[w.Term]; ok {
			return fmt.Errorf("invalid backup: words %d and %d share the term %q", first, i+1, w.Term)
		}
		terms[w.Term] = i + 1
	}
	for i, p := range b.Data.Paragraphs {
		if p.Text == "" {
			return fmt.Errorf("invalid backup: paragraph %d has no text", i+1)
		}
	}
	return nil
}

// Restore replaces the store contents with the backup.
// Ids are reassigned; word back-references follow their paragraphs.
func (s *Service) Restore(ctx context.Context, b *models.Backup) (*Summary, error) {
	if err := Validate(b); err != nil {
		return nil, err
	}
	if err := s.store.ClearAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear store: %w", err)
	}

	summary := &Summary{}
	ids := make(map[int64]int64, len(b.Data.Paragraphs))
	for _, p := range b.Data.Paragraphs {
		oldID := p.ID
		p.ID = 0
		p.LinkedTermIDs = nil
		if p.Translation.Text == "" {
			p.Translation.Text = p.Text
		}
		newID, err := s.store.Paragraphs.Create(ctx, &p)
		if err != nil {
			return summary, fmt.Errorf("failed to restore paragraph %d: %w", oldID, err)
		}
		if oldID != 0 {
			ids[oldID] = newID
		}
		summary.Paragraphs++
	}

	for _, w := range b.Data.Words {
		w.ID = 0
		if newID, ok := ids[w.SourceParagraphID]; ok {
			w.SourceParagraphID = newID
		}
		if _, err := s.store.Vocabulary.Create(ctx, &w); err != nil {
			return summary, fmt.Errorf("failed to restore word %q: %w", w.Term, err)
		}
		summary.Words++
	}

	s.log.Info("Backup restored", "words", summary.Words, "paragraphs", summary.Paragraphs, "version", b.Version)
	return summary, nil
}
