package review

import (
	"context"
	"math/rand"
	"time"

	"github.com/example/leitner/pkg/models"
)

// LetterView is a snapshot of the current letter attempt
type LetterView struct {
	CardID      int64
	Translation string
	Pool        []rune
	Built       string
	Hints       int
	MaxHints    int
	Length      int
	Remaining   int // cards left in the letter queue, including this one
	StartedAt   time.Time
	CanUndo     bool
}

// LetterResult describes what a letter action did
type LetterResult struct {
	Finished      bool // the pool emptied and the attempt was evaluated
	Passed        bool
	Evaluation    *Evaluation
	Requeued      bool
	Recorded      bool
	Outcome       *models.ReviewState
	AwaitingSave  bool
	BatchComplete bool
	Report        *BatchReport
}

type letterStage struct {
	queue   []int64
	attempt *attempt
}

func newLetterStage(order []int64) *letterStage {
	queue := make([]int64, len(order))
	copy(queue, order)
	return &letterStage{queue: queue}
}

type pick struct {
	index int
	r     rune
}

type attempt struct {
	target    []rune
	pool      []rune
	built     []rune
	history   []pick
	hints     int
	startedAt time.Time
}

func newAttempt(target string, now time.Time, rnd *rand.Rand) *attempt {
	a := &attempt{target: []rune(target), startedAt: now}
	a.shuffle(rnd)
	return a
}

func (a *attempt) shuffle(rnd *rand.Rand) {
	a.pool = make([]rune, len(a.target))
	copy(a.pool, a.target)
	rnd.Shuffle(len(a.pool), func(i, j int) { a.pool[i], a.pool[j] = a.pool[j], a.pool[i] })
	a.built = nil
	a.history = nil
}

func (a *attempt) take(i int) {
	r := a.pool[i]
	a.pool = append(a.pool[:i:i], a.pool[i+1:]...)
	a.built = append(a.built, r)
	a.history = append(a.history, pick{index: i, r: r})
}

// Letters returns a snapshot of the current attempt
func (s *Session) Letters() (LetterView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Letters || s.letters.attempt == nil {
		return LetterView{}, ErrWrongState
	}
	a := s.letters.attempt
	card := s.cards[s.letters.queue[0]].card
	_, maxHints, _ := Limits(card.Term)
	pool := make([]rune, len(a.pool))
	copy(pool, a.pool)
	return LetterView{
		CardID:      card.ID,
		Translation: card.Translation,
		Pool:        pool,
		Built:       string(a.built),
		Hints:       a.hints,
		MaxHints:    maxHints,
		Length:      len(a.target),
		Remaining:   len(s.letters.queue),
		StartedAt:   a.startedAt,
		CanUndo:     len(a.history) > 0,
	}, nil
}

func (s *Session) letterAction() (*attempt, error) {
	if s.state != Letters || s.letters.attempt == nil {
		return nil, ErrWrongState
	}
	if s.pending != nil {
		return nil, ErrAwaitingSave
	}
	return s.letters.attempt, nil
}

// PickLetter moves the letter at index i of the pool to the built word
func (s *Session) PickLetter(ctx context.Context, i int) (*LetterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.letterAction()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(a.pool) {
		return nil, ErrInvalidSelection
	}
	a.take(i)
	return s.afterPick(ctx)
}

// Hint appends the next correct letter taken from the pool
func (s *Session) Hint(ctx context.Context) (*LetterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.letterAction()
	if err != nil {
		return nil, err
	}
	needed := a.target[len(a.built)]
	for i, r := range a.pool {
		if r == needed {
			a.hints++
			a.take(i)
			return s.afterPick(ctx)
		}
	}
	return nil, ErrNoHint
}

// Undo returns the last picked letter to its place in the pool
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.letterAction()
	if err != nil {
		return err
	}
	if len(a.history) == 0 {
		return nil
	}
	last := a.history[len(a.history)-1]
	a.history = a.history[:len(a.history)-1]
	a.built = a.built[:len(a.built)-1]
	a.pool = append(a.pool[:last.index:last.index], append([]rune{last.r}, a.pool[last.index:]...)...)
	return nil
}

// Clear reshuffles the whole word into the pool. Hints and the clock carry over.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.letterAction()
	if err != nil {
		return err
	}
	a.shuffle(s.rnd)
	return nil
}

func (s *Session) afterPick(ctx context.Context) (*LetterResult, error) {
	a := s.letters.attempt
	if len(a.pool) > 0 {
		return &LetterResult{}, nil
	}

	id := s.letters.queue[0]
	eval := Evaluate(string(a.target), string(a.built), a.hints, s.now().Sub(a.startedAt))
	result := &LetterResult{Finished: true, Passed: eval.Passed, Evaluation: &eval}

	if !eval.Passed {
		s.letters.queue = append(s.letters.queue[1:], id)
		result.Requeued = true
		s.newAttempt()
		return result, nil
	}

	if err := s.record(ctx, id, result); err != nil {
		return result, err
	}
	return result, nil
}
