package review

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/example/leitner/internal/logger"
	"github.com/example/leitner/internal/spaced_repetition"
	"github.com/example/leitner/pkg/models"
)

// MatchRetryDelay is how long an incorrect pairing stays visible before it is cleared
const MatchRetryDelay = 2 * time.Second

// State is the phase of a review session
type State int

const (
	Idle State = iota
	Loading
	Matching
	Letters
	BatchComplete
	SessionComplete
	NoItemsDue
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Matching:
		return "matching"
	case Letters:
		return "letters"
	case BatchComplete:
		return "batch_complete"
	case SessionComplete:
		return "session_complete"
	case NoItemsDue:
		return "no_items_due"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrWrongState       = errors.New("action not allowed in current state")
	ErrInvalidSelection = errors.New("item cannot be selected")
	ErrNoHint           = errors.New("next letter is not available")
	ErrAwaitingSave     = errors.New("previous result has not been saved")
)

// BatchReport summarises a finished batch
type BatchReport struct {
	Batch    int // 1-based
	Total    int // number of batches in the session
	Correct  int
	Recorded int
}

// progress tracks one card within the current batch
type progress struct {
	card          Card
	needsMatching bool
	matchedClean  bool // first pairing was correct, or matching was skipped
	recorded      bool
	successful    bool
}

// Session drives the word review flow: batches of cards go through
// matching (new cards only) and then the letter stage.
type Session struct {
	mu        sync.Mutex
	deck      Deck
	scheduler *spaced_repetition.Leitner
	log       *logger.Logger
	now       func() time.Time
	rnd       *rand.Rand

	state      State
	batches    [][]Card
	batchIndex int
	generation int

	cards map[int64]*progress
	order []int64

	match   *matching
	letters *letterStage
	pending *pendingSave
}

type pendingSave struct {
	id    int64
	state models.ReviewState
}

// NewSession creates an idle session
func NewSession(deck Deck, scheduler *spaced_repetition.Leitner, log *logger.Logger) *Session {
	return &Session{
		deck:      deck,
		scheduler: scheduler,
		log:       log,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		state:     Idle,
	}
}

// SetClock replaces the time source
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetRand replaces the shuffling source
func (s *Session) SetRand(rnd *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd = rnd
}

// Start loads due cards and sets up the first batch
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return ErrWrongState
	}
	s.state = Loading

	cards, err := s.deck.Cards(ctx)
	if err != nil {
		s.state = Idle
		return fmt.Errorf("failed to load cards: %w", err)
	}

	due := spaced_repetition.DueItems(s.scheduler, cards, s.now())
	if len(due) == 0 {
		s.state = NoItemsDue
		s.log.Info("No words due for review", "total", len(cards))
		return nil
	}

	s.batches = spaced_repetition.Partition(due, spaced_repetition.BatchSize)
	s.batchIndex = 0
	s.log.Info("Review session started", "due", len(due), "batches", len(s.batches))
	s.setupBatch()
	return nil
}

// setupBatch prepares the current batch. Cards never reviewed go through matching first.
func (s *Session) setupBatch() {
	s.generation++
	s.cards = make(map[int64]*progress)
	s.order = nil
	s.match = nil
	s.letters = nil
	s.pending = nil

	var fresh []Card
	for _, c := range s.batches[s.batchIndex] {
		p := &progress{card: c, needsMatching: c.State.NeverReviewed()}
		if !p.needsMatching {
			p.matchedClean = true
		}
		s.cards[c.ID] = p
		s.order = append(s.order, c.ID)
		if p.needsMatching {
			fresh = append(fresh, c)
		}
	}

	if len(fresh) > 0 {
		s.match = newMatching(fresh, s.rnd)
		s.state = Matching
		return
	}
	s.startLetters()
}

func (s *Session) startLetters() {
	s.letters = newLetterStage(s.order)
	s.state = Letters
	s.newAttempt()
}

func (s *Session) newAttempt() {
	id := s.letters.queue[0]
	s.letters.attempt = newAttempt(s.cards[id].card.Term, s.now(), s.rnd)
}

// State returns the current phase
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Report returns the summary of the current batch
func (s *Session) Report() BatchReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report()
}

func (s *Session) report() BatchReport {
	r := BatchReport{Batch: s.batchIndex + 1, Total: len(s.batches)}
	for _, p := range s.cards {
		if p.recorded {
			r.Recorded++
			if p.successful {
				r.Correct++
			}
		}
	}
	return r
}

// NextBatch moves on from a completed batch
func (s *Session) NextBatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextBatch()
}

func (s *Session) nextBatch() error {
	if s.state != BatchComplete {
		return ErrWrongState
	}
	s.batchIndex++
	if s.batchIndex >= len(s.batches) {
		s.generation++
		s.state = SessionComplete
		s.log.Info("Review session complete", "batches", len(s.batches))
		return nil
	}
	s.setupBatch()
	return nil
}

// Continuation is a deferred step tied to the batch that produced it.
// Resuming it after the batch is gone does nothing.
type Continuation struct {
	s          *Session
	generation int
	run        func()
}

// Resume applies the deferred step and reports whether it still applied
func (c *Continuation) Resume() bool {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.s.generation != c.generation {
		return false
	}
	c.run()
	return true
}

func (s *Session) continuation(run func()) *Continuation {
	return &Continuation{s: s, generation: s.generation, run: run}
}

// AdvanceLater returns a continuation that starts the next batch
func (s *Session) AdvanceLater() (*Continuation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != BatchComplete {
		return nil, ErrWrongState
	}
	return s.continuation(func() {
		_ = s.nextBatch()
	}), nil
}

// Stop tears the session down; outstanding continuations become no-ops
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.state = Idle
	s.batches = nil
	s.cards = nil
	s.match = nil
	s.letters = nil
	s.pending = nil
}

// AwaitingSave reports whether an outcome failed to persist and must be retried
func (s *Session) AwaitingSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// RetrySave re-attempts persisting the outcome of the current card
func (s *Session) RetrySave(ctx context.Context) (*LetterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, ErrWrongState
	}
	result := &LetterResult{Passed: true}
	if err := s.save(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

// record computes the outcome of a card that passed the letter stage and persists it
func (s *Session) record(ctx context.Context, id int64, result *LetterResult) error {
	p := s.cards[id]
	if p.recorded {
		s.advance(result)
		return nil
	}
	successful := p.matchedClean
	s.pending = &pendingSave{id: id, state: s.scheduler.RecordOutcome(p.card.State, successful, s.now())}
	return s.save(ctx, result)
}

func (s *Session) save(ctx context.Context, result *LetterResult) error {
	pending := s.pending
	if err := s.deck.SaveReview(ctx, pending.id, pending.state); err != nil {
		s.log.Error("Failed to save review", "id", pending.id, "error", err)
		result.AwaitingSave = true
		return fmt.Errorf("failed to save review: %w", err)
	}

	p := s.cards[pending.id]
	p.recorded = true
	p.successful = p.matchedClean
	p.card.State = pending.state
	s.pending = nil

	result.Recorded = true
	result.Outcome = &pending.state
	s.advance(result)
	return nil
}

// advance drops the current card from the letter queue
func (s *Session) advance(result *LetterResult) {
	s.letters.queue = s.letters.queue[1:]
	if len(s.letters.queue) == 0 {
		s.letters.attempt = nil
		s.state = BatchComplete
		report := s.report()
		result.BatchComplete = true
		result.Report = &report
		s.log.Info("Batch complete", "batch", report.Batch, "correct", report.Correct, "recorded", report.Recorded)
		return
	}
	s.newAttempt()
}
