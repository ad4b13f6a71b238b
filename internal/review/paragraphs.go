package review

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/example/leitner/internal/logger"
	"github.com/example/leitner/internal/spaced_repetition"
	"github.com/example/leitner/pkg/models"
)

// ParagraphStore is the part of the paragraph repository a paragraph session needs
type ParagraphStore interface {
	List(ctx context.Context) ([]models.ParagraphItem, error)
	Update(ctx context.Context, id int64, p *models.ParagraphItem) error
}

// WordToken is a distinct word of the paragraph as shown to the learner
type WordToken struct {
	Word   string // normalized
	Focus  bool   // stored in the paragraph's focus words
	Marked bool   // clicked during this review
}

// ParagraphView is a snapshot of the paragraph under review
type ParagraphView struct {
	Paragraph          models.ParagraphItem
	Words              []WordToken
	ShowingTranslation bool
	Position           int // 1-based
	Total              int
}

// ParagraphOutcome is the result of finishing one paragraph
type ParagraphOutcome struct {
	Successful bool
	Marked     int
	Done       bool
}

// ParagraphSession walks through the due paragraphs one at a time
type ParagraphSession struct {
	mu        sync.Mutex
	store     ParagraphStore
	scheduler *spaced_repetition.Leitner
	log       *logger.Logger
	now       func() time.Time

	items       []models.ParagraphItem
	index       int
	translation bool
	marked      []string
}

// NewParagraphSession creates a paragraph session
func NewParagraphSession(store ParagraphStore, scheduler *spaced_repetition.Leitner, log *logger.Logger) *ParagraphSession {
	return &ParagraphSession{store: store, scheduler: scheduler, log: log, now: time.Now}
}

// SetClock replaces the time source
func (s *ParagraphSession) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Start loads the due paragraphs and returns how many there are
func (s *ParagraphSession) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paragraphs, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load paragraphs: %w", err)
	}
	s.items = spaced_repetition.DueItems(s.scheduler, paragraphs, s.now())
	s.index = 0
	s.reset()
	s.log.Info("Paragraph review started", "due", len(s.items))
	return len(s.items), nil
}

func (s *ParagraphSession) reset() {
	s.translation = false
	s.marked = nil
}

// Done reports whether every due paragraph has been reviewed
func (s *ParagraphSession) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index >= len(s.items)
}

// Current returns the paragraph under review
func (s *ParagraphSession) Current() (ParagraphView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.items) {
		return ParagraphView{}, ErrWrongState
	}
	p := s.items[s.index]

	focus := make(map[string]bool, len(p.FocusWords))
	for _, w := range p.FocusWords {
		focus[NormalizeWord(w)] = true
	}
	marked := make(map[string]bool, len(s.marked))
	for _, w := range s.marked {
		marked[w] = true
	}

	var words []WordToken
	for _, w := range paragraphWords(p.Text) {
		words = append(words, WordToken{Word: w, Focus: focus[w], Marked: marked[w]})
	}
	return ParagraphView{
		Paragraph:          p,
		Words:              words,
		ShowingTranslation: s.translation,
		Position:           s.index + 1,
		Total:              len(s.items),
	}, nil
}

// Reveal switches between the paragraph and its translation
func (s *ParagraphSession) Reveal() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.items) {
		return false, ErrWrongState
	}
	s.translation = !s.translation
	return s.translation, nil
}

// ToggleWord marks or unmarks a word. Words cannot be marked while the translation is shown.
func (s *ParagraphSession) ToggleWord(word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.items) || s.translation {
		return ErrWrongState
	}
	w := NormalizeWord(word)
	if !containsWord(s.items[s.index].Text, w) {
		return ErrInvalidSelection
	}
	for i, m := range s.marked {
		if m == w {
			s.marked = append(s.marked[:i], s.marked[i+1:]...)
			return nil
		}
	}
	s.marked = append(s.marked, w)
	return nil
}

// Next stores the marked words and the review outcome, then moves on.
// Marking at least one word counts as a successful review.
func (s *ParagraphSession) Next(ctx context.Context) (*ParagraphOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.items) {
		return nil, ErrWrongState
	}

	p := s.items[s.index]
	successful := len(s.marked) > 0
	p.FocusWords = toggleFocusWords(p.FocusWords, s.marked, p.Text)
	p.ReviewState = s.scheduler.RecordOutcome(p.ReviewState, successful, s.now())

	if err := s.store.Update(ctx, p.ID, &p); err != nil {
		s.log.Error("Failed to save paragraph review", "id", p.ID, "error", err)
		return nil, fmt.Errorf("failed to save paragraph review: %w", err)
	}

	s.items[s.index] = p
	outcome := &ParagraphOutcome{Successful: successful, Marked: len(s.marked)}
	s.index++
	s.reset()
	outcome.Done = s.index >= len(s.items)
	return outcome, nil
}

// toggleFocusWords removes marked words already in focus and adds the ones that occur in the text
func toggleFocusWords(current models.WordList, marked []string, text string) models.WordList {
	inText := make(map[string]bool)
	for _, w := range paragraphWords(text) {
		inText[w] = true
	}

	var out models.WordList
	present := make(map[string]bool)
	for _, w := range current {
		n := strings.ToLower(w)
		if present[n] {
			continue
		}
		present[n] = true
		out = append(out, n)
	}

	for _, m := range marked {
		if present[m] {
			present[m] = false
			continue
		}
		if inText[m] {
			present[m] = true
			out = append(out, m)
		}
	}

	result := models.WordList{}
	for _, w := range out {
		if present[w] {
			result = append(result, w)
		}
	}
	return result
}

// NormalizeWord lower-cases a token and strips everything but letters, digits and underscores
func NormalizeWord(token string) string {
	var b strings.Builder
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for _, w := range paragraphWords(text) {
		if w == word {
			return true
		}
	}
	return false
}

// paragraphWords returns the distinct normalized words of a text in order of appearance
func paragraphWords(text string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, token := range strings.Fields(text) {
		w := NormalizeWord(token)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}
