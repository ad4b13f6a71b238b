package review

import (
	"context"

	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/pkg/models"
)

// Card is one vocabulary item as seen by a review session
type Card struct {
	ID          int64
	Term        string
	Translation string
	State       models.ReviewState
}

// Review implements models.Reviewable
func (c Card) Review() models.ReviewState { return c.State }

// Excluded implements models.Reviewable
func (c Card) Excluded() bool { return false }

// Deck is the source of cards for a session and the sink for their outcomes
type Deck interface {
	Cards(ctx context.Context) ([]Card, error)
	SaveReview(ctx context.Context, id int64, state models.ReviewState) error
}

// VocabularyDeck serves cards from the vocabulary collection
type VocabularyDeck struct {
	repo *database.VocabularyRepository
}

// NewVocabularyDeck creates a deck backed by the vocabulary repository
func NewVocabularyDeck(repo *database.VocabularyRepository) *VocabularyDeck {
	return &VocabularyDeck{repo: repo}
}

func (d *VocabularyDeck) Cards(ctx context.Context) ([]Card, error) {
	words, err := d.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	cards := make([]Card, 0, len(words))
	for _, w := range words {
		cards = append(cards, Card{ID: w.ID, Term: w.Term, Translation: w.Meaning, State: w.ReviewState})
	}
	return cards, nil
}

func (d *VocabularyDeck) SaveReview(ctx context.Context, id int64, state models.ReviewState) error {
	return d.repo.UpdateReview(ctx, id, state)
}
